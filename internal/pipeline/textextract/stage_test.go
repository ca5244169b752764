package textextract

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/core/ocr"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

type fakeRunner struct {
	out  map[string]string
	errs map[string]error
	args map[string][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	if f.args == nil {
		f.args = map[string][]string{}
	}
	f.args[name] = args
	return []byte(f.out[name]), nil, f.errs[name]
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))
	return path
}

func newStage(opts Options, r *fakeRunner) *Stage {
	return NewStage(opts, ocr.NewExtractor(ocr.Config{}, r, nil), nil)
}

func TestStage_ExtractsTextAndMetadata(t *testing.T) {
	path := writePDF(t)
	r := &fakeRunner{out: map[string]string{
		"pdftotext": "Title: Report\nDate: 01/02/2023\f",
		"pdfinfo":   "Producer: test\nPages: 1\n",
	}}
	s := newStage(Options{FilePath: path, IncludeMetadata: true}, r)

	out, err := s.Transform(context.Background(), entity.NewRecord(nil))
	require.NoError(t, err)

	assert.Equal(t, path, out.Fields["filePath"])
	assert.Equal(t, "popplerUtils", out.Fields["extractionMethod"])
	assert.Equal(t, "Title: Report\nDate: 01/02/2023\f", out.Fields["text"])
	assert.Equal(t, "all", out.Fields["pageRange"])
	assert.Equal(t, 1.0, out.Fields["pages"])
	assert.Equal(t, map[string]any{"Producer": "test", "Pages": "1"}, out.Fields["metadata"])
	assert.Nil(t, out.Binary)
	assert.Equal(t, []string{"-enc", "UTF-8", "-eol", "unix", path, "-"}, r.args["pdftotext"])
}

func TestStage_FilePathFromRecord(t *testing.T) {
	path := writePDF(t)
	s := newStage(Options{}, &fakeRunner{out: map[string]string{"pdftotext": "x"}})

	out, err := s.Transform(context.Background(), entity.NewRecord(entity.Fields{"filePath": path}))
	require.NoError(t, err)
	assert.Equal(t, path, out.Fields["filePath"])
	assert.NotContains(t, out.Fields, "metadata")
}

func TestStage_MetadataFailureIsInline(t *testing.T) {
	path := writePDF(t)
	r := &fakeRunner{
		out:  map[string]string{"pdftotext": "text"},
		errs: map[string]error{"pdfinfo": errors.New("exit status 1")},
	}
	s := newStage(Options{FilePath: path, IncludeMetadata: true}, r)

	out, err := s.Transform(context.Background(), entity.NewRecord(nil))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"error": "Failed to extract metadata: exit status 1"}, out.Fields["metadata"])
}

func TestStage_Errors(t *testing.T) {
	path := writePDF(t)

	_, err := newStage(Options{}, &fakeRunner{}).Transform(context.Background(), entity.NewRecord(nil))
	assert.ErrorIs(t, err, common.ErrMissingInput)
	assert.EqualError(t, err, "File path is required")

	missing := filepath.Join(t.TempDir(), "missing.pdf")
	_, err = newStage(Options{FilePath: missing}, &fakeRunner{}).Transform(context.Background(), entity.NewRecord(nil))
	assert.ErrorIs(t, err, common.ErrIO)
	assert.EqualError(t, err, "File not found: "+missing)

	_, err = newStage(Options{FilePath: path, Method: constants.MethodTextOnly}, &fakeRunner{}).Transform(context.Background(), entity.NewRecord(nil))
	assert.ErrorIs(t, err, common.ErrConfiguration)
	assert.EqualError(t, err, "Extraction method 'textOnly' is not implemented yet. Please use 'popplerUtils'.")

	_, err = newStage(Options{FilePath: path, PageRange: "3-1"}, &fakeRunner{}).Transform(context.Background(), entity.NewRecord(nil))
	assert.ErrorIs(t, err, common.ErrConfiguration)

	r := &fakeRunner{errs: map[string]error{"pdftotext": errors.New("exit status 1")}}
	_, err = newStage(Options{FilePath: path}, r).Transform(context.Background(), entity.NewRecord(nil))
	assert.ErrorIs(t, err, common.ErrExternalCall)
	assert.EqualError(t, err, "Error extracting text from PDF: exit status 1")
}

func TestStage_PageRangeAndAttachment(t *testing.T) {
	path := writePDF(t)
	r := &fakeRunner{out: map[string]string{"pdftotext": "Title:\t Report  \n\n\n\nEnd\f"}}
	s := newStage(Options{FilePath: path, PageRange: "1-2", AttachFile: true, Normalize: true}, r)

	out, err := s.Transform(context.Background(), entity.NewRecord(nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"-f", "1", "-l", "2", "-enc", "UTF-8", "-eol", "unix", path, "-"}, r.args["pdftotext"])
	assert.Equal(t, "1-2", out.Fields["pageRange"])
	assert.Equal(t, "Title: Report\n\nEnd", out.Fields["text"])
	// the fake file is not a real PDF, so the range could not be verified
	assert.Contains(t, out.Fields["warning"], "page range not verified")

	require.Contains(t, out.Binary, "data")
	assert.Equal(t, []byte("%PDF-1.4 fake"), out.Binary["data"].Data)
	assert.Equal(t, "application/pdf", out.Binary["data"].MimeType)
	assert.Equal(t, "report.pdf", out.Binary["data"].FileName)
}
