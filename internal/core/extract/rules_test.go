package extract

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

func TestParseRuleSet_DefaultWhenEmpty(t *testing.T) {
	rs, err := ParseRuleSet("  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"amount", "date", "title"}, rs.Names())
	assert.Equal(t, TypeNumber, rs["amount"].Type)
	assert.Equal(t, TypeDate, rs["date"].Type)
}

func TestParseRuleSet_MissingTypeDefaultsToString(t *testing.T) {
	rs, err := ParseRuleSet(`{"vendor":{"pattern":"Vendor:\\s*(.+)"}}`)
	require.NoError(t, err)
	assert.Equal(t, TypeString, rs["vendor"].Type)
}

func TestParseRuleSet_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"a":`},
		{"not an object", `["a"]`},
		{"rule not an object", `{"a":"Title:(.+)"}`},
		{"missing pattern", `{"a":{"type":"string"}}`},
		{"pattern not string", `{"a":{"pattern":5}}`},
		{"unknown type", `{"a":{"pattern":"(x)","type":"currency"}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRuleSet(tc.payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrConfiguration)
			assert.Contains(t, err.Error(), "Invalid extraction rules JSON")
		})
	}
}

func TestParseRuleSet_ErrorOmitsWorkingDirectory(t *testing.T) {
	_, err := ParseRuleSet(`{"a":{"type":"string"}}`)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "file://")
	wd, werr := os.Getwd()
	require.NoError(t, werr)
	assert.NotContains(t, err.Error(), wd)
}

func TestParseRuleSet_InvalidPatternAcceptedAtLoad(t *testing.T) {
	rs, err := ParseRuleSet(`{"a":{"pattern":"("}}`)
	require.NoError(t, err)
	assert.Len(t, rs, 1)
}
