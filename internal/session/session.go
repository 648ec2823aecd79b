// Package session implements the per-connection authentication flow:
// face capture, blink PIN entry, verification, and lockout with an alert.
//
// A Session is owned by exactly one connection and is not safe for
// concurrent use. Sessions share nothing but the Users and AlertSink
// implementations they are built with.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/visionlock/internal/blink"
	"github.com/dmitrijs2005/visionlock/internal/face"
	"github.com/dmitrijs2005/visionlock/internal/logging"
	"github.com/dmitrijs2005/visionlock/internal/morse"
	"github.com/google/uuid"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrWrongPhase    = errors.New("operation not allowed in current phase")
)

const (
	DefaultLockoutThreshold = 5
	UnknownLabel            = "unknown"
)

type Phase int

const (
	Idle Phase = iota
	FaceCapture
	PinEntry
	Verifying
	Success
	// Failed is passed through after a rejected PIN on the way back to
	// PinEntry or on to Locked.
	Failed
	Locked
	// Aborted ends a session after a user store error.
	Aborted
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case FaceCapture:
		return "face_capture"
	case PinEntry:
		return "pin_entry"
	case Verifying:
		return "verifying"
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Locked:
		return "locked"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Users is the subset of the user service a session needs.
type Users interface {
	MatchFace(ctx context.Context, emb face.Embedding, policy face.Policy) (face.Result, error)
	// CheckPin verifies pin for identity. An empty or unknown identity
	// must still cost one hash verification and report false.
	CheckPin(ctx context.Context, identity, pin string) (bool, error)
}

// AlertSink delivers a lockout notification. Delivery is best effort.
type AlertSink interface {
	Send(ctx context.Context, image []byte, label string) error
}

type Config struct {
	Blink            blink.Thresholds
	MinPinLength     int
	LockoutThreshold int
}

func DefaultConfig() Config {
	return Config{
		Blink:            blink.DefaultThresholds(),
		MinPinLength:     morse.DefaultMinLength,
		LockoutThreshold: DefaultLockoutThreshold,
	}
}

type Verdict int

const (
	VerdictNone Verdict = iota
	VerdictAccepted
	VerdictRejected
	VerdictLocked
)

// Step reports what one ObserveEye call did.
type Step struct {
	Symbol      morse.Symbol
	Emitted     bool
	PinComplete bool
	Verdict     Verdict
	// Identity is set only with VerdictAccepted.
	Identity string
}

type Session struct {
	ID        string
	CreatedAt time.Time

	cfg    Config
	users  Users
	alerts AlertSink
	log    logging.Logger

	phase          Phase
	matched        bool
	identity       string
	entry          *PinAttempt
	failedAttempts int
	lastFrame      []byte
}

func New(cfg Config, users Users, alerts AlertSink, log logging.Logger) *Session {
	if cfg.LockoutThreshold < 1 {
		cfg.LockoutThreshold = DefaultLockoutThreshold
	}
	id := uuid.NewString()
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		cfg:       cfg,
		users:     users,
		alerts:    alerts,
		log:       log.With("module", "session", "session_id", id),
		phase:     Idle,
	}
}

func (s *Session) Phase() Phase { return s.phase }

func (s *Session) FailedAttempts() int { return s.failedAttempts }

func (s *Session) closed() bool {
	return s.phase == Success || s.phase == Locked || s.phase == Aborted
}

func (s *Session) setPhase(ctx context.Context, p Phase) {
	s.log.Debug(ctx, "phase changed", "from", s.phase.String(), "to", p.String())
	s.phase = p
}

// Open starts face capture.
func (s *Session) Open() error {
	if s.closed() {
		return ErrSessionClosed
	}
	if s.phase != Idle {
		return fmt.Errorf("%w: open in %s", ErrWrongPhase, s.phase)
	}
	s.setPhase(context.Background(), FaceCapture)
	return nil
}

// CaptureFace matches emb in Authenticate mode and moves on to PIN entry
// whether or not a match was found; the outcome only shows at verification.
// An invalid embedding leaves the session in FaceCapture.
func (s *Session) CaptureFace(ctx context.Context, frame []byte, emb face.Embedding) error {
	if s.closed() {
		return ErrSessionClosed
	}
	if s.phase != FaceCapture {
		return fmt.Errorf("%w: capture face in %s", ErrWrongPhase, s.phase)
	}
	s.lastFrame = frame

	res, err := s.users.MatchFace(ctx, emb, face.Authenticate)
	if err != nil {
		if errors.Is(err, face.ErrInvalidEmbedding) {
			return err
		}
		s.setPhase(ctx, Aborted)
		return fmt.Errorf("match face: %w", err)
	}

	s.matched, s.identity = res.Matched, res.Identity
	s.log.Debug(ctx, "face captured", "matched", res.Matched, "score", res.Score)

	s.entry = NewPinAttempt(s.cfg.Blink, s.cfg.MinPinLength)
	s.setPhase(ctx, PinEntry)
	return nil
}

// ObserveEye feeds one classified frame into PIN entry. Decode errors are
// returned with the step and the session continues. A decode error may
// accompany a completed PIN when its last character was dropped; the PIN
// is still verified. An error from the user store ends the session in
// Aborted.
func (s *Session) ObserveEye(ctx context.Context, frame []byte, ev blink.Event) (Step, error) {
	if s.closed() {
		return Step{}, ErrSessionClosed
	}
	if s.phase != PinEntry {
		return Step{}, fmt.Errorf("%w: observe eye in %s", ErrWrongPhase, s.phase)
	}
	s.lastFrame = frame

	es, decodeErr := s.entry.Observe(ev)
	step := Step{Symbol: es.Symbol, Emitted: es.Emitted}
	if !es.Done {
		return step, decodeErr
	}

	step.PinComplete = true
	s.setPhase(ctx, Verifying)

	ok, err := s.users.CheckPin(ctx, s.identity, es.Pin)
	if err != nil {
		s.setPhase(ctx, Aborted)
		return step, fmt.Errorf("check pin: %w", err)
	}

	if ok && s.matched {
		s.setPhase(ctx, Success)
		step.Verdict, step.Identity = VerdictAccepted, s.identity
		s.log.Info(ctx, "authenticated", "identity", s.identity)
		return step, decodeErr
	}

	s.setPhase(ctx, Failed)
	s.failedAttempts++
	s.log.Info(ctx, "authentication failed", "attempt", s.failedAttempts)

	if s.failedAttempts >= s.cfg.LockoutThreshold {
		s.setPhase(ctx, Locked)
		step.Verdict = VerdictLocked
		s.alert(ctx)
		return step, decodeErr
	}

	s.entry.Reset()
	s.setPhase(ctx, PinEntry)
	step.Verdict = VerdictRejected
	return step, decodeErr
}

func (s *Session) alert(ctx context.Context) {
	label := UnknownLabel
	if s.matched {
		label = s.identity
	}
	s.log.Warn(ctx, "session locked", "attempts", s.failedAttempts, "label", label)

	if s.alerts == nil {
		return
	}
	// a client that disconnects right after lockout must not cancel delivery
	if err := s.alerts.Send(context.WithoutCancel(ctx), s.lastFrame, label); err != nil {
		s.log.Error(ctx, "alert delivery failed", "error", err)
	}
}
