// Package gemini implements extract.FieldExtractor using Google Gemini,
// attaching rasterized pages as inline image parts for scanned documents.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"invoicedigest/internal/common"
	"invoicedigest/internal/extract"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string // if empty, falls back to env GEMINI_API_KEY
	Model       string // e.g. "gemini-2.5-pro"
	Temperature float32
	Timeout     time.Duration
}

type Client struct {
	cfg    Config
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-pro"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)

	return &Client{cfg: cfg, client: client, model: model, logger: logger}, nil
}

// ExtractFields implements extract.FieldExtractor.
func (c *Client) ExtractFields(ctx context.Context, req extract.ExtractRequest) (json.RawMessage, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	prompt := extract.BuildSystemPrompt(req) +
		"\n\nJSON Schema:\n" + req.Schema.JSON() +
		"\n\n" + extract.BuildUserPrompt(req, req.ImagePNG != nil)

	parts := []genai.Part{}
	if req.ImagePNG != nil {
		// genai.ImageData expects the format suffix, not the full MIME type;
		// conversion has already normalized everything to PNG.
		parts = append(parts, genai.ImageData("png", req.ImagePNG))
	}
	parts = append(parts, genai.Text(prompt))

	c.logger.Info("llm.extract.start",
		"provider", "gemini",
		"model", c.cfg.Model,
		"text_len", len(req.Text),
		"has_image", req.ImagePNG != nil,
	)

	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, c.wrapError(err, time.Since(start))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, common.NewExtractionError("no response from gemini", nil)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	out, err := extract.Finalize(req.Schema, sb.String(), c.logger)
	if err != nil {
		c.logger.Error("llm.extract.invalid_response",
			"provider", "gemini", "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	c.logger.Info("llm.extract.ok",
		"provider", "gemini",
		"bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// Close closes the underlying Gemini client.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) wrapError(err error, elapsed time.Duration) error {
	c.logger.Error("llm.extract.request_failed",
		"provider", "gemini", "error", err,
		"elapsed_ms", elapsed.Milliseconds())

	var apierr *googleapi.Error
	if errors.As(err, &apierr) {
		return common.NewExtractionError("gemini generate", &extract.HTTPStatusError{
			Operation:  "gemini.generate",
			StatusCode: apierr.Code,
			Body:       apierr.Message,
		})
	}
	return common.NewExtractionError("gemini generate", err)
}
