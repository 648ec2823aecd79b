package inference

import (
	"context"

	"github.com/dmitrijs2005/visionlock/internal/face"
	"golang.org/x/sync/semaphore"
)

// Limited bounds the number of in-flight calls to the wrapped Service.
// Callers wait for a slot or for their context to end.
type Limited struct {
	next Service
	sem  *semaphore.Weighted
}

func NewLimited(next Service, n int64) *Limited {
	if n < 1 {
		n = 1
	}
	return &Limited{next: next, sem: semaphore.NewWeighted(n)}
}

func (l *Limited) Classify(ctx context.Context, image []byte) (EyeState, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return EyeUnknown, err
	}
	defer l.sem.Release(1)
	return l.next.Classify(ctx, image)
}

func (l *Limited) Extract(ctx context.Context, image []byte) (face.Embedding, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.next.Extract(ctx, image)
}
