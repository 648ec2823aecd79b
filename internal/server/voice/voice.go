// Package voice turns a short spoken username into text.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/dmitrijs2005/visionlock/internal/metrics"
	"github.com/sashabaranov/go-openai"
)

var ErrEmptyTranscript = errors.New("empty transcript")

type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Transcriber struct {
	client audioTranscriber
	model  string
}

func NewTranscriber(cfg Config) *Transcriber {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{client: openai.NewClientWithConfig(oc), model: model}
}

// Username transcribes the recording and normalizes it into an identity:
// lower case, letters and digits only.
func (t *Transcriber) Username(ctx context.Context, filename string, audio io.Reader) (string, error) {
	start := time.Now()
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: filename,
		Reader:   audio,
		Format:   openai.AudioResponseFormatJSON,
		Language: "en",
	})
	metrics.RecordInference("transcribe", err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	name := Normalize(resp.Text)
	if name == "" {
		return "", ErrEmptyTranscript
	}
	return name, nil
}

func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
