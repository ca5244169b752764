package export

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docpipe/constants"
)

var ts = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func TestRender_Text(t *testing.T) {
	out, err := Render(Document{Content: "hello", Format: constants.FormatText})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	out, err = Render(Document{
		Content:          "hello",
		Format:           constants.FormatText,
		Timestamp:        ts,
		IncludeTimestamp: true,
		IncludeMetadata:  true,
		ModelInfo:        map[string]any{"model": "llama3", "total_duration": 1234.0},
	})
	require.NoError(t, err)
	assert.Equal(t, "Summary - 3/5/2024, 2:07:09 PM\n\nhello\n\nMetadata:\nModel: llama3\nProcessing Time: 1234\n", string(out))
}

func TestRender_TextMetadataNeedsModelInfo(t *testing.T) {
	out, err := Render(Document{Content: "hello", Format: constants.FormatText, IncludeMetadata: true})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestRender_Markdown(t *testing.T) {
	out, err := Render(Document{Content: "body", Format: constants.FormatMarkdown})
	require.NoError(t, err)
	assert.Equal(t, "# Summary\n\nbody", string(out))

	out, err = Render(Document{
		Content:          "body",
		Format:           constants.FormatMarkdown,
		Timestamp:        ts,
		IncludeTimestamp: true,
		IncludeMetadata:  true,
		ModelInfo:        map[string]any{"total_duration": 0.0},
	})
	require.NoError(t, err)
	assert.Equal(t, "# Summary - 3/5/2024, 2:07:09 PM\n\nbody\n\n## Metadata\n\n- Model: Unknown\n- Processing Time: Unknown\n", string(out))
}

func TestRender_JSON(t *testing.T) {
	tests := []struct {
		name    string
		content any
		want    string
	}{
		{"object pretty printed", map[string]any{"a": 1.0}, "{\n  \"a\": 1\n}"},
		{"valid json string kept", `{"x":true}`, `{"x":true}`},
		{"plain string wrapped", "just text", "{\n  \"content\": \"just text\"\n}"},
		{"number marshalled", 19.99, "19.99"},
		{"nan becomes null", map[string]any{"n": math.NaN()}, "{\n  \"n\": null\n}"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Render(Document{Content: tc.content, Format: constants.FormatJSON})
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(out))
		})
	}
}

func TestContentString(t *testing.T) {
	assert.Equal(t, "", ContentString(nil))
	assert.Equal(t, "true", ContentString(true))
	assert.Equal(t, "42.5", ContentString(42.5))
	assert.Equal(t, "NaN", ContentString(math.NaN()))
	assert.Equal(t, "{\n  \"k\": \"v\"\n}", ContentString(map[string]any{"k": "v"}))
}

func TestWriteFile_OverwriteAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	require.NoError(t, WriteFile(path, []byte("one"), false))
	require.NoError(t, WriteFile(path, []byte("two"), false))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))

	require.NoError(t, WriteFile(path, []byte("three"), true))
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "twothree", string(b))
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "nope", "out.txt"), []byte("x"), false)
	assert.Error(t, err)
}

func TestWriteXLSX_HeaderAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")

	require.NoError(t, WriteXLSX(path, map[string]any{"title": "Report", "amount": 19.99}, false, nil))
	require.NoError(t, WriteXLSX(path, map[string]any{"title": "Second", "vendor": "Acme"}, true, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"amount", "title", "vendor"}, rows[0])
	assert.Equal(t, []string{"19.99", "Report"}, rows[1])
	assert.Equal(t, []string{"", "Second", "Acme"}, rows[2])
}

func TestWriteXLSX_OverwriteStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteXLSX(path, map[string]any{"a": "1"}, false, nil))
	require.NoError(t, WriteXLSX(path, map[string]any{"b": map[string]any{"x": 1.0}}, false, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"b"}, rows[0])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(rows[1][0]), &decoded))
	assert.Equal(t, 1.0, decoded["x"])
}
