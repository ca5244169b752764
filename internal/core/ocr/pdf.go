package ocr

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

// Config names the poppler binaries. Empty values fall back to $PATH lookups.
type Config struct {
	Pdftotext string
	Pdfinfo   string
}

// PageRange selects pages for pdftotext. The zero value means all pages.
type PageRange struct {
	First int
	Last  int
}

// All reports whether the range covers the whole document.
func (p PageRange) All() bool { return p.First == 0 && p.Last == 0 }

func (p PageRange) String() string {
	if p.All() {
		return "all"
	}
	if p.First == p.Last {
		return strconv.Itoa(p.First)
	}
	return fmt.Sprintf("%d-%d", p.First, p.Last)
}

// Args returns the pdftotext flags for the range.
func (p PageRange) Args() []string {
	if p.All() {
		return nil
	}
	return []string{"-f", strconv.Itoa(p.First), "-l", strconv.Itoa(p.Last)}
}

// ParsePageRange accepts "all" (or empty), "N" or "N-M" with 1 <= N <= M.
func ParsePageRange(s string) (PageRange, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return PageRange{}, nil
	}
	first, last, found := strings.Cut(s, "-")
	f, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || f < 1 {
		return PageRange{}, common.ConfigurationErrorf("invalid page range %q", s)
	}
	if !found {
		return PageRange{First: f, Last: f}, nil
	}
	l, err := strconv.Atoi(strings.TrimSpace(last))
	if err != nil || l < f {
		return PageRange{}, common.ConfigurationErrorf("invalid page range %q", s)
	}
	return PageRange{First: f, Last: l}, nil
}

// TextResult is the output of one pdftotext call.
type TextResult struct {
	Text     string
	Pages    int
	Duration time.Duration
}

// Extractor wraps pdftotext, pdfinfo and pdfcpu.
type Extractor struct {
	cfg       Config
	runner    Runner
	logger    *slog.Logger
	pageCount func(path string) (int, error)
}

func NewExtractor(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{WaitDelay: 2 * time.Second}
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdfinfo == "" {
		cfg.Pdfinfo = "pdfinfo"
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger, pageCount: api.PageCountFile}
}

// ExtractText runs `pdftotext [-f N -l M] -enc UTF-8 -eol unix <path> -`.
func (e *Extractor) ExtractText(ctx context.Context, path string, pr PageRange) (TextResult, error) {
	start := time.Now()
	args := append(pr.Args(), "-enc", "UTF-8", "-eol", "unix", path, "-")

	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, args...)
	if err != nil {
		return TextResult{}, common.ExternalCallErrorf("Error extracting text from PDF: %w", withStderr(err, errb))
	}

	text := string(out)
	// pdftotext terminates every page with a form feed
	pages := strings.Count(text, "\f")
	if pages == 0 && strings.TrimSpace(text) != "" {
		pages = 1
	}
	res := TextResult{Text: text, Pages: pages, Duration: time.Since(start)}
	e.logger.Info("pdf.text.ok",
		"path", path,
		"page_range", pr.String(),
		"pages", res.Pages,
		"bytes", len(text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// Metadata runs pdfinfo and splits each line on its first colon.
func (e *Extractor) Metadata(ctx context.Context, path string) (map[string]string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdfinfo, e.logger, path)
	if err != nil {
		return nil, common.ExternalCallErrorf("Failed to extract metadata: %w", withStderr(err, errb))
	}
	return parseInfo(string(out)), nil
}

// PageCount reads the page count with pdfcpu.
func (e *Extractor) PageCount(path string) (int, error) {
	n, err := e.pageCount(path)
	if err != nil {
		return 0, fmt.Errorf("read page count: %w", err)
	}
	return n, nil
}

// CheckRange validates pr against the document. A document pdfcpu cannot read
// is reported as a warning so pdftotext still gets a chance.
func (e *Extractor) CheckRange(path string, pr PageRange) (warning string, err error) {
	if pr.All() {
		return "", nil
	}
	n, err := e.PageCount(path)
	if err != nil {
		e.logger.Warn("pdf.page_count.unavailable", "path", path, "error", err)
		return fmt.Sprintf("page range not verified: %v", err), nil
	}
	if pr.Last > n {
		return "", common.ConfigurationErrorf("page range %s exceeds document page count %d", pr, n)
	}
	return "", nil
}

func parseInfo(s string) map[string]string {
	md := map[string]string{}
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		md[key] = strings.TrimSpace(value)
	}
	return md
}

func withStderr(err error, stderr []byte) error {
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, msg)
}
