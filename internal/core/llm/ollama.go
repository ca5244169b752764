package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/common"
)

// OllamaConfig configures the Ollama client.
type OllamaConfig struct {
	Endpoint  string // default http://localhost:11434
	Model     string // default llama3
	APIMethod constants.APIMethod
	Timeout   time.Duration
}

// OllamaClient calls /api/generate or /api/chat without streaming.
type OllamaClient struct {
	cfg    OllamaConfig
	http   *http.Client
	logger *slog.Logger
}

func NewOllamaClient(cfg OllamaConfig, logger *slog.Logger) *OllamaClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = constants.DefaultOllamaEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	if cfg.APIMethod == "" {
		cfg.APIMethod = constants.APIGenerate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Prompt   string          `json:"prompt,omitempty"`
	Messages []ollamaMessage `json:"messages,omitempty"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaResponse struct {
	Model              string         `json:"model"`
	Response           string         `json:"response"`
	Message            *ollamaMessage `json:"message"`
	TotalDuration      int64          `json:"total_duration"`
	LoadDuration       int64          `json:"load_duration"`
	PromptEvalCount    int64          `json:"prompt_eval_count"`
	PromptEvalDuration int64          `json:"prompt_eval_duration"`
	EvalCount          int64          `json:"eval_count"`
	EvalDuration       int64          `json:"eval_duration"`
}

func (c *OllamaClient) Summarize(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	body := ollamaRequest{
		Model:   c.cfg.Model,
		Stream:  false,
		Options: ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	}
	switch c.cfg.APIMethod {
	case constants.APIChat:
		body.Messages = []ollamaMessage{{Role: "user", Content: req.Prompt}}
	case constants.APIGenerate:
		body.Prompt = req.Prompt
	default:
		return Response{}, common.ConfigurationErrorf("unknown api method %q", c.cfg.APIMethod)
	}

	url := strings.TrimRight(c.cfg.Endpoint, "/") + "/api/" + string(c.cfg.APIMethod)
	raw, _, err := SendJSON(ctx, c.http, url, body, nil, c.logger)
	if err != nil {
		return Response{}, common.ExternalCallErrorf("Error calling Ollama API: %w", err)
	}

	var or ollamaResponse
	if err := json.Unmarshal(raw, &or); err != nil {
		return Response{}, common.ExternalCallErrorf("Error calling Ollama API: decode response: %w", err)
	}

	summary := or.Response
	if c.cfg.APIMethod == constants.APIChat {
		if or.Message == nil {
			return Response{}, common.ExternalCallErrorf("Error calling Ollama API: %w", fmt.Errorf("response has no message"))
		}
		summary = or.Message.Content
	}
	model := or.Model
	if model == "" {
		model = c.cfg.Model
	}

	c.logger.Info("llm.ollama.ok",
		"model", model,
		"api_method", c.cfg.APIMethod,
		"eval_count", or.EvalCount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Response{
		Summary: summary,
		Info: ModelInfo{
			Model:              model,
			TotalDuration:      or.TotalDuration,
			LoadDuration:       or.LoadDuration,
			PromptEvalCount:    or.PromptEvalCount,
			PromptEvalDuration: or.PromptEvalDuration,
			EvalCount:          or.EvalCount,
			EvalDuration:       or.EvalDuration,
		},
	}, nil
}
