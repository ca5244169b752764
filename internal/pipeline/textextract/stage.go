package textextract

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/core/ocr"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

// Options configures the text source stage.
type Options struct {
	// FilePath is read for every record; when empty the record's filePath field is used.
	FilePath        string
	Method          constants.ExtractionMethod
	IncludeMetadata bool
	PageRange       string
	// AttachFile puts the PDF bytes on the output as binary "data".
	AttachFile bool
	Normalize  bool
}

// Stage turns a PDF path into a record holding its text.
type Stage struct {
	opts      Options
	extractor *ocr.Extractor
	logger    *slog.Logger
}

func NewStage(opts Options, extractor *ocr.Extractor, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Method == "" {
		opts.Method = constants.MethodPopplerUtils
	}
	if extractor == nil {
		extractor = ocr.NewExtractor(ocr.Config{}, nil, logger)
	}
	return &Stage{opts: opts, extractor: extractor, logger: logger}
}

func (s *Stage) Name() string { return "textextract" }

func (s *Stage) Transform(ctx context.Context, rec entity.Record) (entity.Record, error) {
	path := strings.TrimSpace(s.opts.FilePath)
	if path == "" {
		path, _ = rec.String(constants.FieldFilePath)
		path = strings.TrimSpace(path)
	}
	if path == "" {
		return entity.Record{}, common.MissingInputErrorf("File path is required")
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entity.Record{}, common.IOErrorf("File not found: %s", path)
		}
		return entity.Record{}, common.IOErrorf("File not accessible: %s: %w", path, err)
	}

	if s.opts.Method != constants.MethodPopplerUtils {
		return entity.Record{}, common.ConfigurationErrorf(
			"Extraction method '%s' is not implemented yet. Please use 'popplerUtils'.", s.opts.Method)
	}

	pr, err := ocr.ParsePageRange(s.opts.PageRange)
	if err != nil {
		return entity.Record{}, err
	}
	warning, err := s.extractor.CheckRange(path, pr)
	if err != nil {
		return entity.Record{}, err
	}

	res, err := s.extractor.ExtractText(ctx, path, pr)
	if err != nil {
		return entity.Record{}, err
	}
	text := res.Text
	if s.opts.Normalize {
		text = ocr.Normalize(text)
	}

	fields := entity.Fields{
		constants.FieldFilePath: path,
		"extractionMethod":      string(s.opts.Method),
		constants.FieldText:     text,
		"pageRange":             pr.String(),
		"pages":                 float64(res.Pages),
	}
	if warning != "" {
		fields["warning"] = warning
	}
	if s.opts.IncludeMetadata {
		fields["metadata"] = s.metadata(ctx, path)
	}

	out := entity.Record{Fields: fields}
	if s.opts.AttachFile {
		data, err := os.ReadFile(path)
		if err != nil {
			return entity.Record{}, common.IOErrorf("read %s: %w", path, err)
		}
		out.Binary = map[string]entity.BinaryData{
			"data": {Data: data, MimeType: constants.PDFMimeType, FileName: filepath.Base(path)},
		}
	}

	s.logger.Debug("textextract.ok", "path", path, "pages", res.Pages, "text_len", len(text))
	return out, nil
}

// metadata never fails the record; a pdfinfo failure is reported inline.
func (s *Stage) metadata(ctx context.Context, path string) map[string]any {
	md, err := s.extractor.Metadata(ctx, path)
	if err != nil {
		s.logger.Warn("textextract.metadata_failed", "path", path, "error", err)
		return map[string]any{constants.FieldError: err.Error()}
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
