package summarize

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/core/llm"
	"github.com/joseph-ayodele/docpipe/internal/core/llm/openai"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

// Input modes.
const (
	InputFields = "fields"
	InputText   = "text"
)

// Options configures the summarization stage.
type Options struct {
	Provider         constants.Provider
	Endpoint         string
	Model            string
	APIMethod        constants.APIMethod
	APIKey           string
	PromptTemplate   string
	InputMode        string
	Temperature      float64
	MaxTokens        int
	IncludeInputData bool
	IncludeModelInfo bool
	Timeout          time.Duration
}

// DefaultOptions mirrors the stage's documented defaults.
func DefaultOptions() Options {
	return Options{
		Provider:         constants.ProviderOllama,
		Endpoint:         constants.DefaultOllamaEndpoint,
		Model:            "llama3",
		APIMethod:        constants.APIGenerate,
		PromptTemplate:   llm.DefaultPromptTemplate,
		InputMode:        InputFields,
		Temperature:      0.7,
		MaxTokens:        500,
		IncludeModelInfo: true,
	}
}

// Validate checks generation parameters and selectors.
func (o Options) Validate() error {
	v := common.NewValidator()
	v.Field("provider", string(o.Provider), common.OneOf(string(constants.ProviderOllama), string(constants.ProviderOpenAI)))
	v.Field("apiMethod", string(o.APIMethod), common.OneOf(string(constants.APIGenerate), string(constants.APIChat)))
	v.Field("inputMode", o.InputMode, common.OneOf(InputFields, InputText))
	v.Field("model", o.Model, common.Required)
	v.Field("temperature", o.Temperature, common.Between(0, 1))
	v.Field("maxTokens", o.MaxTokens, common.AtLeast(1))
	return v.Err()
}

// NewClient builds the summarizer for the configured provider.
func NewClient(o Options, logger *slog.Logger) (llm.Summarizer, error) {
	switch o.Provider {
	case constants.ProviderOllama, "":
		return llm.NewOllamaClient(llm.OllamaConfig{
			Endpoint:  o.Endpoint,
			Model:     o.Model,
			APIMethod: o.APIMethod,
			Timeout:   o.Timeout,
		}, logger), nil
	case constants.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:  o.APIKey,
			BaseURL: openAIBaseURL(o.Endpoint),
			Model:   o.Model,
			Timeout: o.Timeout,
		}, logger), nil
	default:
		return nil, common.ConfigurationErrorf("unknown provider %q", o.Provider)
	}
}

// openAIBaseURL drops the Ollama default so the client falls back to the
// public OpenAI API.
func openAIBaseURL(endpoint string) string {
	if strings.TrimRight(endpoint, "/") == constants.DefaultOllamaEndpoint {
		return ""
	}
	return endpoint
}

// Stage produces a summary field from each record.
type Stage struct {
	opts   Options
	client llm.Summarizer
	logger *slog.Logger
}

// NewStage validates opts; a nil client is built from opts.
func NewStage(opts Options, client llm.Summarizer, logger *slog.Logger) (*Stage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.InputMode == "" {
		opts.InputMode = InputFields
	}
	if opts.APIMethod == "" {
		opts.APIMethod = constants.APIGenerate
	}
	if opts.Provider == "" {
		opts.Provider = constants.ProviderOllama
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		c, err := NewClient(opts, logger)
		if err != nil {
			return nil, err
		}
		client = c
	}
	return &Stage{opts: opts, client: client, logger: logger}, nil
}

func (s *Stage) Name() string { return "summarize" }

func (s *Stage) Transform(ctx context.Context, rec entity.Record) (entity.Record, error) {
	data, err := s.input(rec)
	if err != nil {
		return entity.Record{}, err
	}

	resp, err := s.client.Summarize(ctx, llm.Request{
		Prompt:      llm.RenderPrompt(s.opts.PromptTemplate, data),
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return entity.Record{}, err
	}

	fields := entity.Fields{constants.FieldSummary: resp.Summary}
	if s.opts.IncludeModelInfo {
		fields[constants.FieldModelInfo] = resp.Info.Map()
	}
	if s.opts.IncludeInputData {
		fields[constants.FieldInputData] = data
	}
	return entity.Record{Fields: fields}, nil
}

// input serializes what the model should see: the extracted fields without
// bookkeeping keys, or the raw text.
func (s *Stage) input(rec entity.Record) (string, error) {
	if s.opts.InputMode == InputText {
		text, _ := rec.String(constants.FieldText)
		if text == "" {
			// after parsefields the source text travels as rawText
			text, _ = rec.String(constants.FieldRawText)
		}
		if text == "" {
			return "", common.MissingInputErrorf("No text content found in input")
		}
		return text, nil
	}

	fields := rec.CloneFields()
	delete(fields, constants.FieldExtractionMetadata)
	delete(fields, constants.FieldRawText)
	delete(fields, constants.FieldSuccess)
	b, err := entity.MarshalIndent(map[string]any(fields))
	if err != nil {
		return "", common.ConfigurationErrorf("serialize input fields: %w", err)
	}
	return string(b), nil
}
