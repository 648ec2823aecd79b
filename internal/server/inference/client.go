package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/visionlock/internal/face"
	"github.com/dmitrijs2005/visionlock/internal/metrics"
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{baseURL: strings.TrimRight(cfg.BaseURL, "/"), http: hc}
}

type imageRequest struct {
	Image string `json:"image"`
}

type classifyResponse struct {
	State string `json:"state"`
}

type embedResponse struct {
	Embedding face.Embedding `json:"embedding"`
}

func (c *Client) Classify(ctx context.Context, image []byte) (state EyeState, err error) {
	start := time.Now()
	defer func() { metrics.RecordInference("classify", err, time.Since(start)) }()

	var out classifyResponse
	if err := c.post(ctx, "/classify", image, &out); err != nil {
		return EyeUnknown, err
	}
	return parseEyeState(out.State)
}

func (c *Client) Extract(ctx context.Context, image []byte) (emb face.Embedding, err error) {
	start := time.Now()
	defer func() { metrics.RecordInference("embed", err, time.Since(start)) }()

	var out embedResponse
	if err := c.post(ctx, "/embed", image, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, ErrNoFace
	}
	if err := out.Embedding.Validate(); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return out.Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, image []byte, out any) error {
	body, err := json.Marshal(imageRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return ErrNoFace
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s", ErrUnavailable, path, resp.Status)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
