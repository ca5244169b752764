package sink

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/entity"
	"github.com/joseph-ayodele/docpipe/internal/export"
)

// TimestampPlaceholder is replaced with unix milliseconds in file names.
const TimestampPlaceholder = "{{timestamp}}"

// Options configures the file sink.
type Options struct {
	OutputPath       string
	FileName         string
	Format           constants.OutputFormat
	ContentField     string
	Append           bool
	CreateDirectory  bool
	IncludeTimestamp bool
	IncludeMetadata  bool
}

// DefaultOptions mirrors the stage's documented defaults.
func DefaultOptions() Options {
	return Options{
		OutputPath:      "/tmp",
		FileName:        "summary_" + TimestampPlaceholder + ".txt",
		Format:          constants.FormatText,
		ContentField:    constants.FieldSummary,
		CreateDirectory: true,
	}
}

// Stage writes one field of each record to a file.
type Stage struct {
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

func NewStage(opts Options, logger *slog.Logger) (*Stage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Format == "" {
		opts.Format = constants.FormatText
	}
	f, ok := constants.ParseOutputFormat(string(opts.Format))
	if !ok {
		return nil, common.ConfigurationErrorf("unknown output format %q", opts.Format)
	}
	opts.Format = f
	if opts.ContentField == "" {
		opts.ContentField = constants.FieldSummary
	}
	if strings.TrimSpace(opts.FileName) == "" {
		return nil, common.ConfigurationErrorf("file name is required")
	}
	return &Stage{opts: opts, now: time.Now, logger: logger}, nil
}

func (s *Stage) Name() string { return "sink" }

// FileName resolves the file name template for the given instant.
func (s *Stage) FileName(at time.Time) string {
	name := strings.ReplaceAll(s.opts.FileName, TimestampPlaceholder, strconv.FormatInt(at.UnixMilli(), 10))
	if ext := "." + string(s.opts.Format); !strings.HasSuffix(name, ext) {
		name += ext
	}
	return name
}

func (s *Stage) Transform(_ context.Context, rec entity.Record) (entity.Record, error) {
	content, ok := rec.Fields[s.opts.ContentField]
	if !ok {
		return entity.Record{}, common.MissingInputErrorf("Content field \"%s\" not found in input data", s.opts.ContentField)
	}

	now := s.now()
	name := s.FileName(now)
	path := filepath.Join(s.opts.OutputPath, name)
	if s.opts.CreateDirectory {
		// the file name may carry its own subdirectories
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return entity.Record{}, common.IOErrorf("Failed to create directory: %w", err)
		}
	}
	modelInfo, _ := rec.Fields[constants.FieldModelInfo].(map[string]any)

	if err := s.write(path, content, modelInfo, now); err != nil {
		return entity.Record{}, common.IOErrorf("Failed to write to file: %w", err)
	}
	s.logger.Info("sink.write.ok", "path", path, "format", s.opts.Format, "append", s.opts.Append)

	return entity.Record{Fields: entity.Fields{
		constants.FieldFilePath: path,
		"fileName":              name,
		"fileFormat":            string(s.opts.Format),
		"timestamp":             float64(now.UnixMilli()),
	}}, nil
}

func (s *Stage) write(path string, content any, modelInfo map[string]any, now time.Time) error {
	if s.opts.Format == constants.FormatXLSX {
		row := map[string]any{}
		if m, ok := content.(map[string]any); ok {
			maps.Copy(row, m)
		} else {
			row[s.opts.ContentField] = content
		}
		if s.opts.IncludeTimestamp {
			row["timestamp"] = now.Format(export.TimestampLayout)
		}
		if s.opts.IncludeMetadata && modelInfo != nil {
			row["model"] = modelInfo["model"]
			row["processingTime"] = modelInfo["total_duration"]
		}
		return export.WriteXLSX(path, row, s.opts.Append, s.logger)
	}

	data, err := export.Render(export.Document{
		Content:          content,
		Format:           s.opts.Format,
		Timestamp:        now,
		IncludeTimestamp: s.opts.IncludeTimestamp,
		IncludeMetadata:  s.opts.IncludeMetadata,
		ModelInfo:        modelInfo,
	})
	if err != nil {
		return err
	}
	return export.WriteFile(path, data, s.opts.Append)
}
