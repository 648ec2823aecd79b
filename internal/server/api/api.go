// Package api is the HTTP face of the server: the JSON request/response
// endpoints under /api, the two WebSocket streams and the probes.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/visionlock/internal/common"
	"github.com/dmitrijs2005/visionlock/internal/face"
	"github.com/dmitrijs2005/visionlock/internal/imagex"
	"github.com/dmitrijs2005/visionlock/internal/logging"
	"github.com/dmitrijs2005/visionlock/internal/metrics"
	"github.com/dmitrijs2005/visionlock/internal/server/inference"
	"github.com/dmitrijs2005/visionlock/internal/server/models"
	"github.com/dmitrijs2005/visionlock/internal/session"
	"github.com/gin-gonic/gin"
	"golang.org/x/net/websocket"
)

const defaultQueueSize = 32

// Users is the user service as seen by the transport.
type Users interface {
	session.Users
	Register(ctx context.Context, identity, pin string, emb face.Embedding) (*models.User, error)
	VerifyLogin(ctx context.Context, identity, pin string) (string, error)
	ResetPin(ctx context.Context, emb face.Embedding, newPin string) (string, error)
	IssueToken(identity string) (string, error)
	IdentityFromToken(token string) (string, error)
}

type Transcriber interface {
	Username(ctx context.Context, filename string, audio io.Reader) (string, error)
}

type Options struct {
	Session session.Config
	// QueueSize bounds the frames buffered per stream connection.
	QueueSize int
}

type Handler struct {
	users     Users
	inference inference.Service
	alerts    session.AlertSink
	voice     Transcriber
	log       logging.Logger
	opts      Options
	now       func() time.Time
}

// NewHandler wires the transport. alerts and voice may be nil.
func NewHandler(users Users, inf inference.Service, alerts session.AlertSink, voice Transcriber, opts Options, log logging.Logger) *Handler {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	return &Handler{
		users:     users,
		inference: inf,
		alerts:    alerts,
		voice:     voice,
		log:       log.With("module", "api"),
		opts:      opts,
		now:       time.Now,
	}
}

func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), metrics.GinMiddleware())

	r.GET("/up", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.POST("/match-face", h.matchFace)
	api.POST("/register-user", h.registerUser)
	api.POST("/verify-login", h.verifyLogin)
	api.POST("/reset-pin", h.resetPin)
	api.POST("/alert-admin", h.alertAdmin)
	api.POST("/transcribe-username", h.transcribeUsername)
	api.GET("/me", h.me)

	r.GET("/ws/login", gin.WrapH(websocket.Handler(h.serveLogin)))
	r.GET("/ws/register", gin.WrapH(websocket.Handler(h.serveRegister)))

	return r
}

// statusFor maps a service error to an HTTP status and a client message.
// Anything unrecognized is an internal error and its details stay in the log.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, imagex.ErrInvalidImage):
		return http.StatusBadRequest, "invalid image"
	case errors.Is(err, face.ErrInvalidEmbedding):
		return http.StatusBadRequest, "invalid embedding"
	case errors.Is(err, inference.ErrNoFace):
		return http.StatusBadRequest, "no face detected"
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrDuplicateIdentity):
		return http.StatusConflict, "identity already exists"
	case errors.Is(err, common.ErrDuplicateFace):
		return http.StatusConflict, "face already enrolled"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "authentication failed"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, inference.ErrUnavailable):
		return http.StatusServiceUnavailable, "inference unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error(c.Request.Context(), op, "error", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
