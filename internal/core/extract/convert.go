package extract

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

// ErrNotANumber is returned with a NaN value when a number capture has no
// numeric prefix.
var ErrNotANumber = errors.New("not a number")

// reNumericPrefix matches the longest leading decimal literal, the way a
// lenient float parser reads "19.99 USD" as 19.99.
var reNumericPrefix = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)`)

// Convert turns a captured string into the value stored for a rule type.
// Numbers that cannot be parsed yield NaN together with ErrNotANumber.
func Convert(captured string, t RuleType) (any, error) {
	s := strings.TrimSpace(captured)
	switch t {
	case TypeNumber:
		return parseNumber(s)
	case TypeBoolean:
		return strings.ToLower(s) == "true" || s == "1", nil
	case TypeDate, TypeString, "":
		return s, nil
	default:
		return nil, common.ConfigurationErrorf("unknown rule type %q", t)
	}
}

func parseNumber(s string) (float64, error) {
	prefix := reNumericPrefix.FindString(s)
	if prefix == "" {
		return math.NaN(), ErrNotANumber
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		var numErr *strconv.NumError
		// out-of-range literals still parse to ±Inf
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return f, nil
		}
		return math.NaN(), ErrNotANumber
	}
	return f, nil
}
