package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ruleSetSchema describes the accepted shape of a serialized rule set.
var ruleSetSchema = map[string]any{
	"type": "object",
	"additionalProperties": map[string]any{
		"type":     "object",
		"required": []any{"pattern"},
		"properties": map[string]any{
			"pattern": map[string]any{"type": "string"},
			"type": map[string]any{
				"enum": []any{string(TypeString), string(TypeNumber), string(TypeBoolean), string(TypeDate)},
			},
		},
	},
}

// schemaURL is absolute so the compiler never resolves it against the
// working directory.
const schemaURL = "mem://rules.schema.json"

var compiledRuleSetSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return compileSchema(ruleSetSchema)
})

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// validateRuleSet checks a decoded JSON document against the rule set schema.
func validateRuleSet(doc any) error {
	schema, err := compiledRuleSetSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("rule set does not match schema: %w", err)
	}
	return nil
}
