package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/docpipe/constants"
)

// Config holds all application configuration
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Extract   ExtractConfig   `yaml:"extract"`
	Summarize SummarizeConfig `yaml:"summarize"`
	Sink      SinkConfig      `yaml:"sink"`
	Runner    RunnerConfig    `yaml:"runner"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Log       LogConfig       `yaml:"log"`
}

// SourceConfig holds PDF text extraction configuration
type SourceConfig struct {
	Pdftotext       string `yaml:"pdftotext"`
	Pdfinfo         string `yaml:"pdfinfo"`
	Method          string `yaml:"method"`
	PageRange       string `yaml:"page_range"`
	IncludeMetadata bool   `yaml:"include_metadata"`
	AttachFile      bool   `yaml:"attach_file"`
	Normalize       bool   `yaml:"normalize"`
}

// ExtractConfig holds rule-based field extraction configuration
type ExtractConfig struct {
	Rules                     RulesPayload `yaml:"rules"`
	RulesFile                 string       `yaml:"rules_file"`
	OutputFormat              string       `yaml:"output_format"`
	IncludeRawText            bool         `yaml:"include_raw_text"`
	IncludeExtractionMetadata bool         `yaml:"include_extraction_metadata"`
}

// SummarizeConfig holds language-model configuration
type SummarizeConfig struct {
	Provider         string        `yaml:"provider"`
	Endpoint         string        `yaml:"endpoint"`
	Model            string        `yaml:"model"`
	APIMethod        string        `yaml:"api_method"`
	APIKey           string        `yaml:"api_key"`
	PromptTemplate   string        `yaml:"prompt_template"`
	InputMode        string        `yaml:"input_mode"`
	Temperature      float64       `yaml:"temperature"`
	MaxTokens        int           `yaml:"max_tokens"`
	IncludeInputData bool          `yaml:"include_input_data"`
	IncludeModelInfo bool          `yaml:"include_model_info"`
	Timeout          time.Duration `yaml:"timeout"`
}

// SinkConfig holds file output configuration
type SinkConfig struct {
	OutputPath       string `yaml:"output_path"`
	FileName         string `yaml:"file_name"`
	Format           string `yaml:"format"`
	ContentField     string `yaml:"content_field"`
	Append           bool   `yaml:"append"`
	CreateDirectory  bool   `yaml:"create_directory"`
	IncludeTimestamp bool   `yaml:"include_timestamp"`
	IncludeMetadata  bool   `yaml:"include_metadata"`
}

// RunnerConfig holds batch execution policy
type RunnerConfig struct {
	ContinueOnFail bool          `yaml:"continue_on_fail"`
	Concurrency    int           `yaml:"concurrency"`
	Workers        int           `yaml:"workers"`
	JobTimeout     time.Duration `yaml:"job_timeout"`
}

// LedgerConfig holds run-history storage configuration. Empty DSN disables the ledger.
type LedgerConfig struct {
	DSN         string        `yaml:"dsn"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// TracingConfig holds OpenTelemetry export configuration. Empty endpoint disables export.
type TracingConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RulesPayload is the serialized rule set. In YAML it may be written either as
// a JSON string or as a nested mapping, which is re-encoded to JSON.
type RulesPayload string

func (r *RulesPayload) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*r = RulesPayload(n.Value)
		return nil
	}
	var m map[string]any
	if err := n.Decode(&m); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	*r = RulesPayload(b)
	return nil
}

// LoadConfig loads configuration from environment variables. A .env file in the
// working directory is read first if present; real environment variables win.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	return &Config{
		Source: SourceConfig{
			Pdftotext:       getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdfinfo:         getEnv("PDFINFO_BIN", "pdfinfo"),
			Method:          getEnv("PDF_EXTRACTION_METHOD", string(constants.MethodPopplerUtils)),
			PageRange:       getEnv("PDF_PAGE_RANGE", "all"),
			IncludeMetadata: getEnvAsBool("PDF_INCLUDE_METADATA", true),
			AttachFile:      getEnvAsBool("PDF_ATTACH_FILE", false),
			Normalize:       getEnvAsBool("PDF_NORMALIZE_TEXT", false),
		},
		Extract: ExtractConfig{
			Rules:                     RulesPayload(getEnv("EXTRACTION_RULES", "")),
			RulesFile:                 getEnv("EXTRACTION_RULES_FILE", ""),
			OutputFormat:              getEnv("EXTRACTION_OUTPUT_FORMAT", "json"),
			IncludeRawText:            getEnvAsBool("EXTRACTION_INCLUDE_RAW_TEXT", false),
			IncludeExtractionMetadata: getEnvAsBool("EXTRACTION_INCLUDE_METADATA", true),
		},
		Summarize: SummarizeConfig{
			Provider:         getEnv("LLM_PROVIDER", string(constants.ProviderOllama)),
			Endpoint:         getEnv("OLLAMA_ENDPOINT", constants.DefaultOllamaEndpoint),
			Model:            getEnv("LLM_MODEL", "llama3"),
			APIMethod:        getEnv("LLM_API_METHOD", string(constants.APIGenerate)),
			APIKey:           getEnv("LLM_API_KEY", ""),
			PromptTemplate:   getEnv("LLM_PROMPT_TEMPLATE", ""),
			InputMode:        getEnv("LLM_INPUT_MODE", "fields"),
			Temperature:      getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:        getEnvAsInt("LLM_MAX_TOKENS", 500),
			IncludeInputData: getEnvAsBool("LLM_INCLUDE_INPUT_DATA", false),
			IncludeModelInfo: getEnvAsBool("LLM_INCLUDE_MODEL_INFO", true),
			Timeout:          getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
		},
		Sink: SinkConfig{
			OutputPath:       getEnv("OUTPUT_PATH", "/tmp"),
			FileName:         getEnv("OUTPUT_FILE_NAME", "summary_{{timestamp}}.txt"),
			Format:           getEnv("OUTPUT_FORMAT", string(constants.FormatText)),
			ContentField:     getEnv("OUTPUT_CONTENT_FIELD", constants.FieldSummary),
			Append:           getEnvAsBool("OUTPUT_APPEND", false),
			CreateDirectory:  getEnvAsBool("OUTPUT_CREATE_DIRECTORY", true),
			IncludeTimestamp: getEnvAsBool("OUTPUT_INCLUDE_TIMESTAMP", false),
			IncludeMetadata:  getEnvAsBool("OUTPUT_INCLUDE_METADATA", false),
		},
		Runner: RunnerConfig{
			ContinueOnFail: getEnvAsBool("CONTINUE_ON_FAIL", false),
			Concurrency:    getEnvAsInt("CONCURRENCY", 1),
			Workers:        getEnvAsInt("WATCH_WORKERS", 2),
			JobTimeout:     getEnvAsDuration("WATCH_JOB_TIMEOUT", 5*time.Minute),
		},
		Ledger: LedgerConfig{
			DSN:         getEnv("LEDGER_DSN", ""),
			DialTimeout: getEnvAsDuration("LEDGER_DIAL_TIMEOUT", 3*time.Second),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "docpipe"),
			SampleRatio:  getEnvAsFloat("OTEL_SAMPLE_RATIO", 1.0),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// LoadFile overlays a YAML pipeline file on top of cfg. Keys absent from the
// file keep their current (environment/default) values.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return IOErrorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return ConfigurationErrorf("parse config %s: %w", path, err)
	}
	return nil
}

// RulesJSON returns the serialized rule set, reading RulesFile when set.
// YAML rule files are converted to JSON. Empty means "use the default rule set".
func (c *Config) RulesJSON() (string, error) {
	if c.Extract.RulesFile == "" {
		return string(c.Extract.Rules), nil
	}
	b, err := os.ReadFile(c.Extract.RulesFile)
	if err != nil {
		return "", IOErrorf("read rules file %s: %w", c.Extract.RulesFile, err)
	}
	switch strings.ToLower(filepath.Ext(c.Extract.RulesFile)) {
	case ".yaml", ".yml":
		var m map[string]any
		if err := yaml.Unmarshal(b, &m); err != nil {
			return "", ConfigurationErrorf("Invalid extraction rules YAML: %w", err)
		}
		out, err := json.Marshal(m)
		if err != nil {
			return "", ConfigurationErrorf("Invalid extraction rules YAML: %w", err)
		}
		return string(out), nil
	default:
		return string(b), nil
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	formats := make([]string, 0, len(constants.OutputFormats))
	for _, f := range constants.OutputFormats {
		formats = append(formats, string(f))
	}

	v := NewValidator()
	v.Field("source.method", c.Source.Method, Required)
	v.Field("extract.output_format", c.Extract.OutputFormat, OneOf("json", "keyValue"))
	v.Field("summarize.provider", c.Summarize.Provider, OneOf(string(constants.ProviderOllama), string(constants.ProviderOpenAI)))
	v.Field("summarize.endpoint", c.Summarize.Endpoint, Required)
	v.Field("summarize.model", c.Summarize.Model, Required)
	v.Field("summarize.api_method", c.Summarize.APIMethod, OneOf(string(constants.APIGenerate), string(constants.APIChat)))
	v.Field("summarize.input_mode", c.Summarize.InputMode, OneOf("fields", "text"))
	v.Field("summarize.temperature", c.Summarize.Temperature, Between(0, 1))
	v.Field("summarize.max_tokens", c.Summarize.MaxTokens, AtLeast(1))
	v.Field("sink.output_path", c.Sink.OutputPath, Required)
	v.Field("sink.file_name", c.Sink.FileName, Required)
	v.Field("sink.format", c.Sink.Format, OneOf(formats...))
	v.Field("sink.content_field", c.Sink.ContentField, Required)
	v.Field("runner.concurrency", c.Runner.Concurrency, AtLeast(1))
	return v.Err()
}
