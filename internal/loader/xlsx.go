package loader

import (
	"fmt"
	"io"

	"recommendation-dashboard/internal/models"

	"github.com/xuri/excelize/v2"
)

// LoadXLSX reads order records from the first sheet of an Excel workbook.
// The first non-empty row is the header.
func LoadXLSX(r io.Reader, opts Options) (*models.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	start := 0
	for start < len(rows) && isBlank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, ErrEmptyFile
	}

	b, err := newBuilder(rows[start], opts)
	if err != nil {
		return nil, err
	}

	for _, record := range rows[start+1:] {
		if isBlank(record) {
			continue
		}
		if err := b.add(record); err != nil {
			return nil, err
		}
	}

	return b.dataset(), nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if cell != "" {
			return false
		}
	}
	return true
}
