package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/visionlock/internal/common"
	"github.com/dmitrijs2005/visionlock/internal/face"
	"github.com/dmitrijs2005/visionlock/internal/imagex"
	"github.com/dmitrijs2005/visionlock/internal/server/inference"
	"github.com/dmitrijs2005/visionlock/internal/server/voice"
	"github.com/dmitrijs2005/visionlock/internal/session"
	"github.com/gin-gonic/gin"
)

type imageRequest struct {
	Image string `json:"image" binding:"required"`
}

type registerRequest struct {
	Identity  string         `json:"identity" binding:"required"`
	Pin       string         `json:"pin" binding:"required"`
	Embedding face.Embedding `json:"embedding" binding:"required"`
}

type verifyRequest struct {
	Identity string `json:"identity" binding:"required"`
	Pin      string `json:"pin" binding:"required"`
}

type resetRequest struct {
	Image  string `json:"image" binding:"required"`
	NewPin string `json:"new_pin" binding:"required"`
}

type alertRequest struct {
	Image    string `json:"image" binding:"required"`
	Identity string `json:"identity"`
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// matchFace identifies the face in the image. No face and no match both
// answer with a null identity.
func (h *Handler) matchFace(c *gin.Context) {
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "image is required")
		return
	}
	img, _, err := imagex.DecodeDataURL(req.Image)
	if err != nil {
		h.fail(c, "match face", err)
		return
	}

	ctx := c.Request.Context()
	emb, err := h.inference.Extract(ctx, img)
	if errors.Is(err, inference.ErrNoFace) {
		c.JSON(http.StatusOK, gin.H{"identity": nil})
		return
	}
	if err != nil {
		h.fail(c, "extract", err)
		return
	}

	res, err := h.users.MatchFace(ctx, emb, face.Identify)
	if err != nil {
		h.fail(c, "match face", err)
		return
	}

	var identity any
	if res.Matched {
		identity = res.Identity
	}
	c.JSON(http.StatusOK, gin.H{"identity": identity, "embedding": emb})
}

func (h *Handler) registerUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "identity, pin and embedding are required")
		return
	}
	if _, err := h.users.Register(c.Request.Context(), req.Identity, req.Pin, req.Embedding); err != nil {
		h.fail(c, "register", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success"})
}

func (h *Handler) verifyLogin(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "identity and pin are required")
		return
	}
	token, err := h.users.VerifyLogin(c.Request.Context(), req.Identity, req.Pin)
	if err != nil {
		h.fail(c, "verify login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "token": token})
}

func (h *Handler) resetPin(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "image and new_pin are required")
		return
	}
	img, _, err := imagex.DecodeDataURL(req.Image)
	if err != nil {
		h.fail(c, "reset pin", err)
		return
	}

	ctx := c.Request.Context()
	emb, err := h.inference.Extract(ctx, img)
	if err != nil {
		h.fail(c, "extract", err)
		return
	}

	identity, err := h.users.ResetPin(ctx, emb, req.NewPin)
	if err != nil {
		h.fail(c, "reset pin", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "identity": identity})
}

// alertAdmin forwards a client-side alert. Delivery failures are logged
// and never reported to the caller.
func (h *Handler) alertAdmin(c *gin.Context) {
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "image is required")
		return
	}
	img, _, err := imagex.DecodeDataURL(req.Image)
	if err != nil {
		h.fail(c, "alert admin", err)
		return
	}

	label := strings.TrimSpace(req.Identity)
	if label == "" {
		label = session.UnknownLabel
	}

	ctx := c.Request.Context()
	if h.alerts != nil {
		if err := h.alerts.Send(ctx, img, label); err != nil {
			h.log.Error(ctx, "alert delivery failed", "label", label, "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "alert_sent"})
}

func (h *Handler) transcribeUsername(c *gin.Context) {
	if h.voice == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "transcription not configured"})
		return
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		badRequest(c, "audio file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "audio file is unreadable")
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	name, err := h.voice.Username(ctx, fh.Filename, f)
	if errors.Is(err, voice.ErrEmptyTranscript) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "no username recognized"})
		return
	}
	if err != nil {
		h.log.Error(ctx, "transcribe", "error", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "transcription failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": name})
}

func (h *Handler) me(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	identity, err := h.users.IdentityFromToken(strings.TrimSpace(token))
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, common.ErrTokenExpired) {
			msg = "token expired"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identity})
}
