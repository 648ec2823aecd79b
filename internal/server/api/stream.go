package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/visionlock/internal/blink"
	"github.com/dmitrijs2005/visionlock/internal/face"
	"github.com/dmitrijs2005/visionlock/internal/imagex"
	"github.com/dmitrijs2005/visionlock/internal/logging"
	"github.com/dmitrijs2005/visionlock/internal/metrics"
	"github.com/dmitrijs2005/visionlock/internal/morse"
	"github.com/dmitrijs2005/visionlock/internal/server/inference"
	"github.com/dmitrijs2005/visionlock/internal/session"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	endpointLogin    = "login"
	endpointRegister = "register"

	msgAuthFailed = "authentication failed"
	msgInternal   = "internal error"
)

type inMessage struct {
	Image string `json:"image"`
	// TS is the client capture time in epoch milliseconds.
	TS *int64 `json:"ts,omitempty"`
}

type outMessage struct {
	Status   string `json:"status,omitempty"`
	Morse    string `json:"morse,omitempty"`
	Error    string `json:"error,omitempty"`
	Token    string `json:"token,omitempty"`
	Identity string `json:"identity,omitempty"`
	Pin      string `json:"pin,omitempty"`
}

type frame struct {
	at    time.Time
	image []byte
}

// stream is one WebSocket connection. Sends are serialized because the
// reader reports malformed input while the worker reports progress.
type stream struct {
	conn *websocket.Conn
	log  logging.Logger
	mu   sync.Mutex
}

func (s *stream) send(m outMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return websocket.JSON.Send(s.conn, m)
}

func (s *stream) sendError(msg string) {
	_ = s.send(outMessage{Error: msg})
}

type worker func(ctx context.Context, s *stream, frames <-chan frame) error

func (h *Handler) serveLogin(conn *websocket.Conn) {
	h.serveStream(conn, endpointLogin, h.runLogin)
}

func (h *Handler) serveRegister(conn *websocket.Conn) {
	h.serveStream(conn, endpointRegister, h.runRegister)
}

// serveStream runs a reader and a worker over one connection. The reader
// stamps frames and queues them; the worker consumes them in order. The
// connection closes when either side is done.
func (h *Handler) serveStream(conn *websocket.Conn, endpoint string, work worker) {
	defer conn.Close()

	metrics.ActiveStreams.WithLabelValues(endpoint).Inc()
	defer metrics.ActiveStreams.WithLabelValues(endpoint).Dec()

	s := &stream{conn: conn, log: h.log.With("endpoint", endpoint, "conn_id", uuid.NewString())}
	ctx, cancel := context.WithCancel(conn.Request().Context())
	defer cancel()

	if err := s.send(outMessage{Status: "connected"}); err != nil {
		return
	}
	s.log.Debug(ctx, "stream opened")

	g, ctx := errgroup.WithContext(ctx)
	frames := make(chan frame, h.opts.QueueSize)

	g.Go(func() error {
		defer close(frames)
		return h.read(ctx, s, frames)
	})
	g.Go(func() error {
		// the reader may be blocked on a full queue or on the socket
		defer conn.Close()
		defer cancel()
		return work(ctx, s, frames)
	})

	if err := g.Wait(); err != nil {
		s.log.Error(ctx, "stream closed with error", "error", err)
		return
	}
	s.log.Debug(ctx, "stream closed")
}

// read queues frames until the peer goes away. The first valid frame fixes
// the clock for the connection: with a ts every later frame must carry
// one, without it the server stamps frames on arrival and ignores ts.
func (h *Handler) read(ctx context.Context, s *stream, frames chan<- frame) error {
	var clientClock *bool
	for {
		var raw string
		if err := websocket.Message.Receive(s.conn, &raw); err != nil {
			// EOF, peer gone, or the worker closed the connection
			return nil
		}
		at := h.now()

		var msg inMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			s.sendError("invalid message")
			continue
		}
		if msg.Image == "" {
			s.sendError("image is required")
			continue
		}
		img, _, err := imagex.DecodeDataURL(msg.Image)
		if err != nil {
			s.sendError("invalid image")
			continue
		}
		if clientClock == nil {
			stamped := msg.TS != nil
			clientClock = &stamped
		}
		if *clientClock {
			if msg.TS == nil {
				s.sendError("ts is required")
				continue
			}
			at = time.UnixMilli(*msg.TS)
		}

		select {
		case frames <- frame{at: at, image: img}:
		case <-ctx.Done():
			return nil
		}
	}
}

// classify asks the classifier about one frame. A false ok means the frame
// carries no usable eye state and was skipped.
func (h *Handler) classify(ctx context.Context, s *stream, endpoint string, f frame) (blink.Event, bool) {
	state, err := h.inference.Classify(ctx, f.image)
	if err != nil {
		s.log.Warn(ctx, "classify failed", "error", err)
		metrics.FramesTotal.WithLabelValues(endpoint, "error").Inc()
		s.sendError("blink classification failed")
		return blink.Event{}, false
	}
	metrics.FramesTotal.WithLabelValues(endpoint, state.String()).Inc()
	if state == inference.EyeUnknown {
		return blink.Event{}, false
	}
	return blink.Event{At: f.at, Closed: state == inference.EyeClosed}, true
}

// decodeError reports a per-frame decode failure. It returns false for
// anything that is not one.
func decodeError(s *stream, err error) bool {
	var kind string
	switch {
	case errors.Is(err, blink.ErrBlinkTooLong):
		kind = "blink_too_long"
	case errors.Is(err, blink.ErrOutOfOrder):
		kind = "out_of_order"
	case errors.Is(err, morse.ErrUnrecognizedPattern):
		kind = "unrecognized_pattern"
	case errors.Is(err, morse.ErrEmptyPin):
		kind = "empty_pin"
	default:
		return false
	}
	metrics.DecodeErrorsTotal.WithLabelValues(kind).Inc()
	s.sendError(err.Error())
	return true
}

func emitSymbol(s *stream, sym morse.Symbol, emitted bool) {
	if !emitted {
		return
	}
	metrics.SymbolsTotal.WithLabelValues(sym.String()).Inc()
	if mark, ok := sym.Mark(); ok {
		_ = s.send(outMessage{Morse: mark})
	}
}

func (h *Handler) runLogin(ctx context.Context, s *stream, frames <-chan frame) error {
	sess := session.New(h.opts.Session, h.users, h.alerts, s.log)
	if err := sess.Open(); err != nil {
		return err
	}

	for f := range frames {
		switch sess.Phase() {
		case session.FaceCapture:
			done, err := h.captureFace(ctx, s, sess, f)
			if err != nil || done {
				return err
			}
		case session.PinEntry:
			done, err := h.observeEye(ctx, s, sess, f)
			if err != nil || done {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (h *Handler) captureFace(ctx context.Context, s *stream, sess *session.Session, f frame) (bool, error) {
	emb, err := h.inference.Extract(ctx, f.image)
	switch {
	case errors.Is(err, inference.ErrNoFace):
		s.sendError("no face detected")
		return false, nil
	case err != nil:
		s.log.Warn(ctx, "extract failed", "error", err)
		s.sendError("face extraction failed")
		return false, nil
	}

	if err := sess.CaptureFace(ctx, f.image, emb); err != nil {
		if errors.Is(err, face.ErrInvalidEmbedding) {
			s.sendError("face extraction failed")
			return false, nil
		}
		s.sendError(msgInternal)
		return true, err
	}
	return false, s.send(outMessage{Status: "face_captured"})
}

func (h *Handler) observeEye(ctx context.Context, s *stream, sess *session.Session, f frame) (bool, error) {
	ev, ok := h.classify(ctx, s, endpointLogin, f)
	if !ok {
		return false, nil
	}

	step, err := sess.ObserveEye(ctx, f.image, ev)
	emitSymbol(s, step.Symbol, step.Emitted)
	if step.PinComplete {
		if err := s.send(outMessage{Status: "pin_complete"}); err != nil {
			return true, nil
		}
	}
	if err != nil && !decodeError(s, err) {
		s.sendError(msgInternal)
		return true, err
	}

	switch step.Verdict {
	case session.VerdictAccepted:
		metrics.AuthOutcomesTotal.WithLabelValues("accepted").Inc()
		token, err := h.users.IssueToken(step.Identity)
		if err != nil {
			s.sendError(msgInternal)
			return true, err
		}
		_ = s.send(outMessage{Status: "authenticated", Token: token, Identity: step.Identity})
		return true, nil
	case session.VerdictRejected:
		metrics.AuthOutcomesTotal.WithLabelValues("rejected").Inc()
		s.sendError(msgAuthFailed)
	case session.VerdictLocked:
		metrics.AuthOutcomesTotal.WithLabelValues("locked").Inc()
		s.sendError(msgAuthFailed)
		_ = s.send(outMessage{Status: "locked"})
		return true, nil
	}
	return false, nil
}

// runRegister only decodes the PIN. The client submits it with the
// embedding through register-user.
func (h *Handler) runRegister(ctx context.Context, s *stream, frames <-chan frame) error {
	entry := session.NewPinAttempt(h.opts.Session.Blink, h.opts.Session.MinPinLength)

	for f := range frames {
		ev, ok := h.classify(ctx, s, endpointRegister, f)
		if !ok {
			continue
		}

		step, err := entry.Observe(ev)
		emitSymbol(s, step.Symbol, step.Emitted)
		if err != nil {
			decodeError(s, err)
		}
		if step.Done {
			if err := s.send(outMessage{Status: "pin_complete", Pin: step.Pin}); err != nil {
				return nil
			}
		}
	}
	return nil
}
