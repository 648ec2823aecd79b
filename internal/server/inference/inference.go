// Package inference talks to the vision model service: an eye-state
// classifier and a face-embedding extractor behind one HTTP API.
//
//	POST {base}/classify  {"image": "<base64>"} -> {"state": "open"|"closed"|"unknown"}
//	POST {base}/embed     {"image": "<base64>"} -> {"embedding": [...]}, 422 when no face
package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/visionlock/internal/face"
)

var (
	ErrNoFace      = errors.New("no face in image")
	ErrUnavailable = errors.New("inference service unavailable")
)

type EyeState int

const (
	EyeUnknown EyeState = iota
	EyeOpen
	EyeClosed
)

func (s EyeState) String() string {
	switch s {
	case EyeOpen:
		return "open"
	case EyeClosed:
		return "closed"
	case EyeUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("eye_state(%d)", int(s))
	}
}

func parseEyeState(s string) (EyeState, error) {
	switch s {
	case "open":
		return EyeOpen, nil
	case "closed":
		return EyeClosed, nil
	case "unknown", "":
		return EyeUnknown, nil
	default:
		return EyeUnknown, fmt.Errorf("unexpected eye state %q", s)
	}
}

// Classifier reports the eye state in one frame.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (EyeState, error)
}

// Extractor computes the embedding of the single face in an image.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (face.Embedding, error)
}

// Service is both halves of the model API. Implementations must be safe
// for concurrent use; one instance is shared by all connections.
type Service interface {
	Classifier
	Extractor
}
