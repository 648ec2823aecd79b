package api

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"

	"github.com/dmitrijs2005/visionlock/internal/common"
	"github.com/dmitrijs2005/visionlock/internal/face"
	"github.com/dmitrijs2005/visionlock/internal/server/inference"
	"github.com/dmitrijs2005/visionlock/internal/server/models"
)

var aliceFace = face.Embedding{0.1, 0.2, 0.3}

// fakeUsers knows one user, alice, with PIN "5" and aliceFace.
type fakeUsers struct {
	mu sync.Mutex

	matchErr    error
	registerErr error
	verifyErr   error
	resetErr    error
	checkErr    error

	registered []string
	checks     []string
}

func (f *fakeUsers) MatchFace(_ context.Context, emb face.Embedding, policy face.Policy) (face.Result, error) {
	if f.matchErr != nil {
		return face.Result{}, f.matchErr
	}
	if err := emb.Validate(); err != nil {
		return face.Result{}, err
	}
	if slices.Equal(emb, aliceFace) {
		return face.Result{Policy: policy, Matched: true, Identity: "alice"}, nil
	}
	return face.Result{Policy: policy}, nil
}

func (f *fakeUsers) CheckPin(_ context.Context, identity, pin string) (bool, error) {
	f.mu.Lock()
	f.checks = append(f.checks, identity+":"+pin)
	f.mu.Unlock()
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return identity == "alice" && pin == "5", nil
}

func (f *fakeUsers) Register(_ context.Context, identity, pin string, emb face.Embedding) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = append(f.registered, identity)
	return &models.User{Identity: identity, Embedding: emb}, nil
}

func (f *fakeUsers) VerifyLogin(_ context.Context, identity, pin string) (string, error) {
	if f.verifyErr != nil {
		return "", f.verifyErr
	}
	return "tok-" + identity, nil
}

func (f *fakeUsers) ResetPin(_ context.Context, emb face.Embedding, newPin string) (string, error) {
	if f.resetErr != nil {
		return "", f.resetErr
	}
	if !slices.Equal(emb, aliceFace) {
		return "", common.ErrorNotFound
	}
	return "alice", nil
}

func (f *fakeUsers) IssueToken(identity string) (string, error) {
	return "tok-" + identity, nil
}

func (f *fakeUsers) IdentityFromToken(token string) (string, error) {
	switch token {
	case "tok-alice":
		return "alice", nil
	case "old":
		return "", common.ErrTokenExpired
	default:
		return "", common.ErrInvalidToken
	}
}

// fakeInference reads the frame content as its verdict: "closed", "open"
// and "blur" for the classifier; "alice", "stranger" and "noface" for the
// extractor. "down" fails both.
type fakeInference struct{}

func (fakeInference) Classify(_ context.Context, image []byte) (inference.EyeState, error) {
	switch string(image) {
	case "closed":
		return inference.EyeClosed, nil
	case "open":
		return inference.EyeOpen, nil
	case "down":
		return inference.EyeUnknown, inference.ErrUnavailable
	default:
		return inference.EyeUnknown, nil
	}
}

func (fakeInference) Extract(_ context.Context, image []byte) (face.Embedding, error) {
	switch string(image) {
	case "alice":
		return slices.Clone(aliceFace), nil
	case "stranger":
		return face.Embedding{0.9, -0.1, 0.4}, nil
	case "down":
		return nil, inference.ErrUnavailable
	default:
		return nil, inference.ErrNoFace
	}
}

type fakeAlerts struct {
	mu     sync.Mutex
	labels []string
	images [][]byte
	err    error
}

func (f *fakeAlerts) Send(_ context.Context, image []byte, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels = append(f.labels, label)
	f.images = append(f.images, image)
	return f.err
}

func (f *fakeAlerts) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.labels)
}

type fakeVoice struct {
	name string
	err  error
	got  string
}

func (f *fakeVoice) Username(_ context.Context, _ string, audio io.Reader) (string, error) {
	b, _ := io.ReadAll(audio)
	f.got = string(b)
	return f.name, f.err
}

var errBoom = errors.New("boom")
