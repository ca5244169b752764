package ingest

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

type ScanStats struct {
	Scanned int
	Matched int
	Skipped int
}

// ScanDirectory walks root and returns one {filePath} record per PDF, sorted by path.
// Unreadable entries are logged and skipped; the walk itself only fails on the root.
func ScanDirectory(root string, skipHidden bool, logger *slog.Logger) ([]entity.Record, ScanStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var stats ScanStats
	if strings.TrimSpace(root) == "" {
		return nil, stats, common.ConfigurationErrorf("root path is required")
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logger.Warn("scan: skipping unreadable entry", "path", path, "error", walkErr)
			stats.Skipped++
			return nil
		}
		if path != root && skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, stats, common.IOErrorf("walk %s: %w", root, err)
	}

	sort.Strings(paths)
	batch := make([]entity.Record, len(paths))
	for i, p := range paths {
		batch[i] = entity.NewRecord(entity.Fields{constants.FieldFilePath: p})
	}
	logger.Info("scan complete", "root", root, "scanned", stats.Scanned, "matched", stats.Matched, "skipped", stats.Skipped)
	return batch, stats, nil
}

// FileRecords turns explicit paths into a batch, keeping their order.
func FileRecords(paths ...string) []entity.Record {
	batch := make([]entity.Record, 0, len(paths))
	for _, p := range paths {
		batch = append(batch, entity.NewRecord(entity.Fields{constants.FieldFilePath: p}))
	}
	return batch
}

func extSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return constants.AllowedExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}
