package export

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by the xlsx sink.
const SheetName = "Outputs"

// WriteXLSX writes row as a header row plus a value row. With appendRow and an
// existing workbook, the row is added below the existing ones and unseen
// columns are added to the header.
func WriteXLSX(path string, row map[string]any, appendRow bool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	f, err := openWorkbook(path, appendRow)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("export.xlsx.close_error", "path", path, "error", err)
		}
	}()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return fmt.Errorf("read sheet: %w", err)
	}
	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !slices.Contains(header, k) {
			header = append(header, k)
		}
	}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("set header: %w", err)
		}
	}

	target := max(len(rows)+1, 2)
	for i, h := range header {
		v, ok := row[h]
		if !ok {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, target)
		if err := f.SetCellValue(SheetName, cell, cellValue(v)); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	_ = f.SetColWidth(SheetName, "A", columnName(len(header)), 24)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	logger.Info("export.xlsx.ok",
		"path", path,
		"row", target,
		"columns", len(header),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func openWorkbook(path string, appendRow bool) (*excelize.File, error) {
	if appendRow {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			f, err := excelize.OpenFile(path)
			if err != nil {
				return nil, fmt.Errorf("open workbook: %w", err)
			}
			if idx, _ := f.GetSheetIndex(SheetName); idx == -1 {
				if _, err := f.NewSheet(SheetName); err != nil {
					return nil, err
				}
			}
			return f, nil
		case !errors.Is(statErr, fs.ErrNotExist):
			return nil, fmt.Errorf("open workbook: %w", statErr)
		}
	}

	f := excelize.NewFile()
	// rename the default sheet so the workbook has exactly one
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}
	return f, nil
}

func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return t
	case string, bool, int, int64:
		return t
	default:
		return ContentString(t)
	}
}

func columnName(n int) string {
	if n < 1 {
		n = 1
	}
	name, _ := excelize.ColumnNumberToName(n)
	return name
}
