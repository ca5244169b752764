package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docpipe/internal/async"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.RunContext(context.Background(), append([]string{"docpipe"}, args...))
	return out.String(), err
}

func TestExtractCommand_InlineRules(t *testing.T) {
	dir := t.TempDir()
	textFile := filepath.Join(dir, "invoice.txt")
	require.NoError(t, os.WriteFile(textFile, []byte("Title: Quarterly Report\nAmount: $1,234.50\n"), 0o644))

	out, err := runApp(t, "extract", "--rules", `{"title":{"pattern":"Title:\\s*(.+)","type":"string"},"amount":{"pattern":"Amount:\\s*\\$?([\\d.]+)","type":"number"}}`, "--text-file", textFile)
	require.NoError(t, err)

	var got struct {
		Fields             map[string]any `json:"fields"`
		ExtractionMetadata map[string]any `json:"extractionMetadata"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Quarterly Report", got.Fields["title"])
	assert.Equal(t, 2.0, got.ExtractionMetadata["totalRules"])
	assert.Equal(t, 2.0, got.ExtractionMetadata["matchedRules"])
}

func TestExtractCommand_InvalidRules(t *testing.T) {
	textFile := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(textFile, []byte("x"), 0o644))

	_, err := runApp(t, "extract", "--rules", "{not json", "--text-file", textFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid extraction rules JSON")
}

func TestRunCommand_NoInput(t *testing.T) {
	t.Setenv("LEDGER_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	_, err := runApp(t, "run")
	require.Error(t, err)
	assert.Equal(t, common.CodeMissingInput, common.CodeOf(err))
}

func TestDBHealthCommand_SQLite(t *testing.T) {
	t.Setenv("LEDGER_DSN", filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	out, err := runApp(t, "dbhealth")
	require.NoError(t, err)
	assert.Contains(t, out, "ledger health: OK")
}

func TestDBHealthCommand_NoDSN(t *testing.T) {
	t.Setenv("LEDGER_DSN", "")
	_, err := runApp(t, "dbhealth")
	require.Error(t, err)
	assert.Equal(t, common.CodeConfiguration, common.CodeOf(err))
}

func TestBuildStages_Defaults(t *testing.T) {
	t.Setenv("EXTRACTION_RULES", "")
	t.Setenv("EXTRACTION_RULES_FILE", "")
	cfg := common.LoadConfig()

	stages, err := buildStages(cfg, slog.Default())
	require.NoError(t, err)
	var names []string
	for _, s := range stages {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"textextract", "parsefields", "summarize", "sink"}, names)
}

func TestBuildStages_InvalidConfig(t *testing.T) {
	cfg := common.LoadConfig()
	cfg.Sink.Format = "docx"
	_, err := buildStages(cfg, slog.Default())
	require.Error(t, err)
	assert.Equal(t, common.CodeConfiguration, common.CodeOf(err))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestResultPrinter_ConcurrentWorkers(t *testing.T) {
	var out bytes.Buffer
	emit := resultPrinter(&out, slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 1 {
				err = errors.New("boom")
			}
			emit(async.NewJob(fmt.Sprintf("doc-%d.pdf", i)), entity.Succeeded(entity.Fields{"n": i}, nil), err)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 16)
	for _, line := range lines {
		var got struct {
			Path    string         `json:"path"`
			Outcome map[string]any `json:"outcome"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &got), line)
		assert.NotEmpty(t, got.Path)
		assert.Contains(t, got.Outcome, "success")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestResultPrinter_LogsWriteFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	resultPrinter(failingWriter{}, logger)(async.NewJob("a.pdf"), entity.Succeeded(nil, nil), nil)
	assert.Contains(t, logs.String(), "write result failed")
	assert.Contains(t, logs.String(), "closed pipe")
}
