package parsefields

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/core/extract"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

// Output formats. Both produce the same flat field mapping.
const (
	FormatJSON     = "json"
	FormatKeyValue = "keyValue"
)

// Options configures the field extraction stage.
type Options struct {
	// Rules is the serialized rule set; empty selects the default title/date/amount rules.
	Rules                     string
	OutputFormat              string
	IncludeRawText            bool
	IncludeExtractionMetadata bool
}

// Stage applies a rule set to each record's text field.
type Stage struct {
	opts   Options
	engine *extract.Engine
	logger *slog.Logger

	once     sync.Once
	rules    extract.RuleSet
	rulesErr error
}

func NewStage(opts Options, engine *extract.Engine, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = extract.NewEngine(logger)
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = FormatJSON
	}
	return &Stage{opts: opts, engine: engine, logger: logger}
}

func (s *Stage) Name() string { return "parsefields" }

// ruleSet parses the configured rules once; the result (or error) is shared by every record.
func (s *Stage) ruleSet() (extract.RuleSet, error) {
	s.once.Do(func() {
		s.rules, s.rulesErr = extract.ParseRuleSet(s.opts.Rules)
		if s.rulesErr != nil {
			s.logger.Error("parsefields.rules_invalid", "error", s.rulesErr)
		}
	})
	return s.rules, s.rulesErr
}

func (s *Stage) Transform(_ context.Context, rec entity.Record) (entity.Record, error) {
	text, _ := rec.String(constants.FieldText)
	if text == "" {
		return entity.Record{}, common.MissingInputErrorf("No text content found in input")
	}
	rules, err := s.ruleSet()
	if err != nil {
		return entity.Record{}, err
	}
	if s.opts.OutputFormat != FormatJSON && s.opts.OutputFormat != FormatKeyValue {
		return entity.Record{}, common.ConfigurationErrorf("unknown output format %q", s.opts.OutputFormat)
	}

	result, meta := s.engine.Apply(text, rules)

	fields := make(entity.Fields, len(result)+2)
	for k, v := range result {
		fields[k] = v
	}
	if s.opts.IncludeRawText {
		fields[constants.FieldRawText] = text
	}
	if s.opts.IncludeExtractionMetadata {
		fields[constants.FieldExtractionMetadata] = meta.Map()
	}
	return entity.Record{Fields: fields}, nil
}
