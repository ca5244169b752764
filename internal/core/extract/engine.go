package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

// Result maps field names to extracted values. Only rules that fired appear.
type Result map[string]any

// Metadata describes one application of a rule set.
type Metadata struct {
	TotalRules       int      `json:"totalRules"`
	MatchedRules     int      `json:"matchedRules"`
	ProcessingTimeMs int64    `json:"processingTimeMs"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Map renders the metadata as a record field value.
func (m Metadata) Map() map[string]any {
	out := map[string]any{
		"totalRules":       float64(m.TotalRules),
		"matchedRules":     float64(m.MatchedRules),
		"processingTimeMs": float64(m.ProcessingTimeMs),
	}
	if len(m.Warnings) > 0 {
		ws := make([]any, len(m.Warnings))
		for i, w := range m.Warnings {
			ws[i] = w
		}
		out["warnings"] = ws
	}
	return out
}

// Engine applies rule sets to text.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Apply runs every rule independently against text. A rule whose pattern does
// not compile is skipped with a warning; it never affects the other rules.
func (e *Engine) Apply(text string, rules RuleSet) (Result, Metadata) {
	start := time.Now()
	result := Result{}
	meta := Metadata{TotalRules: len(rules)}

	for _, name := range rules.Names() {
		rule := rules[name]

		re, err := compileRule(name, rule)
		if err != nil {
			e.logger.Warn("extract.rule.skipped", "field", name, "pattern", rule.Pattern, "error", err)
			meta.Warnings = append(meta.Warnings, err.Error())
			continue
		}

		m := re.FindStringSubmatch(text)
		if len(m) < 2 || m[1] == "" {
			continue
		}

		v, err := Convert(m[1], rule.Type)
		if errors.Is(err, ErrNotANumber) {
			meta.Warnings = append(meta.Warnings,
				fmt.Sprintf("field %q: value %q is not a number", name, strings.TrimSpace(m[1])))
		} else if err != nil {
			e.logger.Warn("extract.rule.convert_failed", "field", name, "error", err)
			meta.Warnings = append(meta.Warnings, err.Error())
			continue
		}
		result[name] = v
		meta.MatchedRules++
	}

	meta.ProcessingTimeMs = time.Since(start).Milliseconds()
	e.logger.Debug("extract.apply",
		"total_rules", meta.TotalRules,
		"matched_rules", meta.MatchedRules,
		"warnings", len(meta.Warnings),
		"elapsed_ms", meta.ProcessingTimeMs,
	)
	return result, meta
}

func compileRule(name string, rule Rule) (*regexp.Regexp, error) {
	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		return nil, common.RulePatternErrorf("field %q: invalid pattern: %w", name, err)
	}
	return re, nil
}
