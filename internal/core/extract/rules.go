package extract

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

// RuleType selects how a captured string is converted.
type RuleType string

const (
	TypeString  RuleType = "string"
	TypeNumber  RuleType = "number"
	TypeBoolean RuleType = "boolean"
	TypeDate    RuleType = "date"
)

// Valid reports whether t is one of the recognized rule types.
func (t RuleType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate:
		return true
	}
	return false
}

// Rule extracts one field: the first capture group of the first match of
// Pattern, converted according to Type.
type Rule struct {
	Pattern string   `json:"pattern" yaml:"pattern"`
	Type    RuleType `json:"type,omitempty" yaml:"type,omitempty"`
}

// RuleSet maps field names to rules.
type RuleSet map[string]Rule

// Names returns the rule names in sorted order so application is deterministic.
func (rs RuleSet) Names() []string {
	names := make([]string, 0, len(rs))
	for name := range rs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultRuleSetJSON is used when no rules are configured.
const DefaultRuleSetJSON = `{
  "title": {"pattern": "Title:\\s*(.+)", "type": "string"},
  "date": {"pattern": "Date:\\s*(\\d{2}/\\d{2}/\\d{4})", "type": "date"},
  "amount": {"pattern": "Amount:\\s*\\$(\\d+\\.\\d{2})", "type": "number"}
}`

// ParseRuleSet decodes and structurally validates a serialized rule set.
// An empty payload yields the default rule set. Rules without a type default
// to string. Any failure is a configuration error.
func ParseRuleSet(payload string) (RuleSet, error) {
	if strings.TrimSpace(payload) == "" {
		payload = DefaultRuleSetJSON
	}

	var doc any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, common.ConfigurationErrorf("Invalid extraction rules JSON: %w", err)
	}
	if err := validateRuleSet(doc); err != nil {
		return nil, common.ConfigurationErrorf("Invalid extraction rules JSON: %w", err)
	}

	var rs RuleSet
	if err := json.Unmarshal([]byte(payload), &rs); err != nil {
		return nil, common.ConfigurationErrorf("Invalid extraction rules JSON: %w", err)
	}
	for name, r := range rs {
		if r.Type == "" {
			r.Type = TypeString
			rs[name] = r
		}
		if !r.Type.Valid() {
			return nil, common.ConfigurationErrorf("Invalid extraction rules JSON: rule %q has unknown type %q", name, r.Type)
		}
	}
	return rs, nil
}
