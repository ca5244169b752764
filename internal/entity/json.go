package entity

import (
	"encoding/json"
	"math"
)

// JSONSafe returns a copy of v in which NaN and ±Inf floats are replaced by
// nil, so the value can always be encoded with encoding/json.
func JSONSafe(v any) any {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case float32:
		return JSONSafe(float64(t))
	case Fields:
		return JSONSafe(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = JSONSafe(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = JSONSafe(e)
		}
		return out
	default:
		return v
	}
}

// MarshalIndent encodes v as 2-space indented JSON after JSONSafe.
func MarshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(JSONSafe(v), "", "  ")
}
