// Package openai implements extract.FieldExtractor using the official OpenAI
// SDK with text-only chat completions and json_object response format.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"invoicedigest/internal/common"
	"invoicedigest/internal/extract"
)

// Config for the OpenAI client.
type Config struct {
	APIKey      string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL     string        // default is the SDK's api.openai.com endpoint
	Model       string        // e.g. "gpt-4o"
	Temperature float32       // 0..2
	Timeout     time.Duration // per-request timeout
}

type Client struct {
	cfg    Config
	client openai.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		cfg:    cfg,
		client: openai.NewClient(opts...),
		logger: logger,
	}
}

// ExtractFields implements extract.FieldExtractor. If the request carries an
// image without a usable text layer we fail fast: this adapter is text-only
// and a vision-capable provider should be configured instead.
func (c *Client) ExtractFields(ctx context.Context, req extract.ExtractRequest) (json.RawMessage, error) {
	start := time.Now()

	if req.ImagePNG != nil && strings.TrimSpace(req.Text) == "" {
		return nil, common.NewExtractionError(
			fmt.Sprintf("openai adapter is text-only; document %q has no text layer", req.FilenameHint), nil)
	}
	if req.ImagePNG != nil {
		c.logger.Warn("llm.extract.image_ignored",
			"model", c.cfg.Model,
			"hint", "vision path not implemented; proceeding with text-only")
	}

	sys := extract.BuildSystemPrompt(req)
	user := extract.BuildUserPrompt(req, false)

	c.logger.Info("llm.extract.start",
		"provider", "openai",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
	)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.Model),
		Temperature: openai.Float(float64(c.cfg.Temperature)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(sys),
			openai.UserMessage(user + "\n\nReturn ONLY JSON that matches the provided schema."),
			openai.SystemMessage("JSON Schema:\n" + req.Schema.JSON()),
		},
	})
	if err != nil {
		return nil, c.wrapError(err, time.Since(start))
	}
	if len(resp.Choices) == 0 {
		return nil, common.NewExtractionError("no choices in openai response", nil)
	}

	out, err := extract.Finalize(req.Schema, resp.Choices[0].Message.Content, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.invalid_response",
			"provider", "openai", "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	c.logger.Info("llm.extract.ok",
		"provider", "openai",
		"bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (c *Client) wrapError(err error, elapsed time.Duration) error {
	c.logger.Error("llm.extract.request_failed",
		"provider", "openai", "error", err,
		"elapsed_ms", elapsed.Milliseconds())

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return common.NewExtractionError("openai chat completion", &extract.HTTPStatusError{
			Operation:  "openai.chat",
			StatusCode: apierr.StatusCode,
			Body:       apierr.Message,
		})
	}
	return common.NewExtractionError("openai chat completion", err)
}
