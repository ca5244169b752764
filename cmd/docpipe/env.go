package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/core/extract"
	"github.com/joseph-ayodele/docpipe/internal/core/ocr"
	corepipe "github.com/joseph-ayodele/docpipe/internal/core/pipeline"
	"github.com/joseph-ayodele/docpipe/internal/pipeline"
	"github.com/joseph-ayodele/docpipe/internal/pipeline/parsefields"
	"github.com/joseph-ayodele/docpipe/internal/pipeline/sink"
	"github.com/joseph-ayodele/docpipe/internal/pipeline/summarize"
	"github.com/joseph-ayodele/docpipe/internal/pipeline/textextract"
	"github.com/joseph-ayodele/docpipe/internal/repository"
	"github.com/joseph-ayodele/docpipe/internal/tracing"
)

const healthTimeout = 3 * time.Second

// env is everything a command needs, built once from configuration.
type env struct {
	cfg    *common.Config
	logger *slog.Logger

	db       *repository.DB
	shutdown tracing.ShutdownFunc
}

// loadConfig reads the environment, overlays --config, and applies global flags.
func loadConfig(c *cli.Context) (*common.Config, error) {
	cfg := common.LoadConfig()
	if path := c.String("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := c.String("log-format"); v != "" {
		cfg.Log.Format = v
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg common.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setup loads configuration and starts the optional tracer and ledger.
func setup(c *cli.Context, withLedger bool) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger := newLogger(c.App.ErrWriter, cfg.Log)
	slog.SetDefault(logger)

	e := &env{cfg: cfg, logger: logger}
	if cfg.Tracing.OTLPEndpoint != "" {
		shutdown, err := tracing.Setup(c.Context, tracing.FromCommon(cfg.Tracing, Version), logger)
		if err != nil {
			return nil, err
		}
		e.shutdown = shutdown
	}
	if withLedger && cfg.Ledger.DSN != "" {
		db, err := repository.Open(c.Context, repository.Config{
			DSN:         cfg.Ledger.DSN,
			MaxConns:    4,
			DialTimeout: cfg.Ledger.DialTimeout,
		}, logger)
		if err != nil {
			e.close()
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		e.db = db
	}
	return e, nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
	if e.shutdown != nil {
		_ = tracing.Shutdown(e.shutdown, e.logger)
	}
}

// ledger returns nil when no DSN is configured.
func (e *env) ledger() pipeline.Ledger {
	if e.db == nil {
		return nil
	}
	return repository.NewRunRepository(e.db, e.logger)
}

// buildStages assembles text source, field extraction, summarization and sink.
func buildStages(cfg *common.Config, logger *slog.Logger) ([]pipeline.Stage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rules, err := cfg.RulesJSON()
	if err != nil {
		return nil, err
	}

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext: cfg.Source.Pdftotext,
		Pdfinfo:   cfg.Source.Pdfinfo,
	}, nil, logger)
	source := textextract.NewStage(textextract.Options{
		Method:          constants.ExtractionMethod(cfg.Source.Method),
		IncludeMetadata: cfg.Source.IncludeMetadata,
		PageRange:       cfg.Source.PageRange,
		AttachFile:      cfg.Source.AttachFile,
		Normalize:       cfg.Source.Normalize,
	}, extractor, logger)

	parse := parsefields.NewStage(parsefields.Options{
		Rules:                     rules,
		OutputFormat:              cfg.Extract.OutputFormat,
		IncludeRawText:            cfg.Extract.IncludeRawText || cfg.Summarize.InputMode == summarize.InputText,
		IncludeExtractionMetadata: cfg.Extract.IncludeExtractionMetadata,
	}, extract.NewEngine(logger), logger)

	sum, err := summarize.NewStage(summarize.Options{
		Provider:         constants.Provider(cfg.Summarize.Provider),
		Endpoint:         cfg.Summarize.Endpoint,
		Model:            cfg.Summarize.Model,
		APIMethod:        constants.APIMethod(cfg.Summarize.APIMethod),
		APIKey:           cfg.Summarize.APIKey,
		PromptTemplate:   cfg.Summarize.PromptTemplate,
		InputMode:        cfg.Summarize.InputMode,
		Temperature:      cfg.Summarize.Temperature,
		MaxTokens:        cfg.Summarize.MaxTokens,
		IncludeInputData: cfg.Summarize.IncludeInputData,
		IncludeModelInfo: cfg.Summarize.IncludeModelInfo,
		Timeout:          cfg.Summarize.Timeout,
	}, nil, logger)
	if err != nil {
		return nil, err
	}

	out, err := sink.NewStage(sink.Options{
		OutputPath:       cfg.Sink.OutputPath,
		FileName:         cfg.Sink.FileName,
		Format:           constants.OutputFormat(cfg.Sink.Format),
		ContentField:     cfg.Sink.ContentField,
		Append:           cfg.Sink.Append,
		CreateDirectory:  cfg.Sink.CreateDirectory,
		IncludeTimestamp: cfg.Sink.IncludeTimestamp,
		IncludeMetadata:  cfg.Sink.IncludeMetadata,
	}, logger)
	if err != nil {
		return nil, err
	}
	return []pipeline.Stage{source, parse, sum, out}, nil
}

func (e *env) processor() (*pipeline.Processor, error) {
	stages, err := buildStages(e.cfg, e.logger)
	if err != nil {
		return nil, err
	}
	opts := corepipe.Options{
		ContinueOnFail: e.cfg.Runner.ContinueOnFail,
		Concurrency:    e.cfg.Runner.Concurrency,
		Logger:         e.logger,
	}
	return pipeline.NewProcessor(e.logger, opts, e.ledger(), stages...), nil
}

func healthCheck(ctx context.Context, db *repository.DB, logger *slog.Logger) error {
	if err := db.HealthCheck(ctx, healthTimeout); err != nil {
		logger.Error("ledger health check failed", "dialect", db.Dialect(), "error", err)
		return err
	}
	logger.Info("ledger health OK", "dialect", db.Dialect())
	return nil
}

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), d)
}

func parseRunID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, common.ConfigurationErrorf("invalid run id %q: %w", s, err)
	}
	return id, nil
}
