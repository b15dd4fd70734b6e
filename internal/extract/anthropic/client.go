// Package anthropic implements extract.FieldExtractor on the Anthropic
// Messages API, with base64 PNG image blocks for scanned documents.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"invoicedigest/internal/common"
	"invoicedigest/internal/extract"
)

// Config for the Anthropic client.
type Config struct {
	APIKey      string // if empty, falls back to env ANTHROPIC_API_KEY
	Model       string // e.g. "claude-3-5-sonnet-20241022"
	Temperature float32
	MaxTokens   int64
	Timeout     time.Duration
}

type Client struct {
	cfg    Config
	client anthropic.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = string(anthropic.ModelClaude3_5Sonnet20241022)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	)
	return &Client{cfg: cfg, client: client, logger: logger}
}

// ExtractFields implements extract.FieldExtractor.
func (c *Client) ExtractFields(ctx context.Context, req extract.ExtractRequest) (json.RawMessage, error) {
	start := time.Now()

	sys := extract.BuildSystemPrompt(req) + "\n\nJSON Schema:\n" + req.Schema.JSON()
	user := extract.BuildUserPrompt(req, req.ImagePNG != nil)

	var blocks []anthropic.ContentBlockParamUnion
	if req.ImagePNG != nil {
		blocks = append(blocks, anthropic.NewImageBlockBase64(
			"image/png", base64.StdEncoding.EncodeToString(req.ImagePNG)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(user))

	c.logger.Info("llm.extract.start",
		"provider", "anthropic",
		"model", c.cfg.Model,
		"text_len", len(req.Text),
		"has_image", req.ImagePNG != nil,
	)

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.cfg.Model),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: anthropic.Float(float64(c.cfg.Temperature)),
		System:      []anthropic.TextBlockParam{{Text: sys}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		return nil, c.wrapError(err, time.Since(start))
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return nil, common.NewExtractionError("no text content in anthropic response", nil)
	}

	out, err := extract.Finalize(req.Schema, sb.String(), c.logger)
	if err != nil {
		c.logger.Error("llm.extract.invalid_response",
			"provider", "anthropic", "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	c.logger.Info("llm.extract.ok",
		"provider", "anthropic",
		"bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (c *Client) wrapError(err error, elapsed time.Duration) error {
	c.logger.Error("llm.extract.request_failed",
		"provider", "anthropic", "error", err,
		"elapsed_ms", elapsed.Milliseconds())

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return common.NewExtractionError("anthropic message", &extract.HTTPStatusError{
			Operation:  "anthropic.messages",
			StatusCode: apierr.StatusCode,
			Body:       apierr.Error(),
		})
	}
	return common.NewExtractionError("anthropic message", err)
}
