package openai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/core/llm"
)

// Config for the OpenAI-compatible client.
type Config struct {
	APIKey  string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL string        // default https://api.openai.com/v1
	Model   string        // e.g., "gpt-4o-mini"
	Timeout time.Duration // http client timeout
}

// Client summarizes through any chat/completions compatible endpoint.
type Client struct {
	cfg    Config
	client openai.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		// each call is attempted exactly once
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return &Client{cfg: cfg, client: openai.NewClient(opts...), logger: logger}
}

// Summarize implements llm.Summarizer with a single user message.
func (c *Client) Summarize(ctx context.Context, req llm.Request) (llm.Response, error) {
	start := time.Now()
	c.logger.Info("llm.openai.request", "model", c.cfg.Model, "base_url", c.cfg.BaseURL, "prompt_len", len(req.Prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.cfg.Model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)},
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		c.logger.Error("llm.openai.error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.Response{}, common.ExternalCallErrorf("Error calling OpenAI API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, common.ExternalCallErrorf("Error calling OpenAI API: %w", errors.New("no choices in response"))
	}

	model := resp.Model
	if model == "" {
		model = c.cfg.Model
	}
	elapsed := time.Since(start)
	c.logger.Info("llm.openai.ok",
		"model", model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return llm.Response{
		Summary: resp.Choices[0].Message.Content,
		Info: llm.ModelInfo{
			Model:           model,
			TotalDuration:   elapsed.Nanoseconds(),
			PromptEvalCount: resp.Usage.PromptTokens,
			EvalCount:       resp.Usage.CompletionTokens,
		},
	}, nil
}
