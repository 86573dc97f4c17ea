package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"recommendation-dashboard/internal/analysis"
	"recommendation-dashboard/internal/models"

	"github.com/araddon/dateparse"
)

const utf8BOM = "\ufeff"

var (
	// ErrEmptyFile is returned when the upload has no header row
	ErrEmptyFile = errors.New("file has no header row")
	// ErrTooManyRows is returned when the upload exceeds Options.MaxRows
	ErrTooManyRows = errors.New("file exceeds maximum row count")
)

// Options controls how an uploaded file is turned into a dataset
type Options struct {
	// SkipInvalidRows drops rows whose log date cannot be parsed instead of
	// failing the whole upload. Dropped rows are counted in Dataset.SkippedRows.
	SkipInvalidRows bool
	// MaxRows limits data rows read; 0 means unlimited.
	MaxRows int
	// Location is used for timestamps without a zone. Defaults to UTC.
	Location *time.Location
}

// Load parses an uploaded file, choosing the format from its extension
func Load(name string, r io.Reader, opts Options) (*models.Dataset, error) {
	var (
		ds  *models.Dataset
		err error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		ds, err = LoadXLSX(r, opts)
	default:
		ds, err = LoadCSV(r, opts)
	}
	if err != nil {
		return nil, err
	}

	ds.SourceName = filepath.Base(name)
	return ds, nil
}

// LoadCSV reads comma separated order records with a header row
func LoadCSV(r io.Reader, opts Options) (*models.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	b, err := newBuilder(header, opts)
	if err != nil {
		return nil, err
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		if err := b.add(record); err != nil {
			return nil, err
		}
	}

	return b.dataset(), nil
}

// builder converts raw string records into order rows
type builder struct {
	opts    Options
	columns []string
	index   map[string]int
	rows    []models.OrderRow
	skipped int
	seen    int
}

func newBuilder(header []string, opts Options) (*builder, error) {
	if len(header) == 0 {
		return nil, ErrEmptyFile
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	columns := make([]string, len(header))
	copy(columns, header)
	columns[0] = strings.TrimPrefix(columns[0], utf8BOM)

	if err := analysis.RequireColumns(columns); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	return &builder{
		opts:    opts,
		columns: columns,
		index:   index,
	}, nil
}

func (b *builder) field(record []string, column string) string {
	i := b.index[column]
	if i >= len(record) {
		return ""
	}
	return record[i]
}

func (b *builder) add(record []string) error {
	b.seen++
	if b.opts.MaxRows > 0 && b.seen > b.opts.MaxRows {
		return fmt.Errorf("%w: limit %d", ErrTooManyRows, b.opts.MaxRows)
	}

	rawLogDate := b.field(record, analysis.ColumnLogDate)
	logDate, err := parseDate(rawLogDate, b.opts.Location)
	if err != nil {
		if b.opts.SkipInvalidRows {
			b.skipped++
			return nil
		}
		return &analysis.ParseError{
			Row:    b.seen,
			Column: analysis.ColumnLogDate,
			Value:  rawLogDate,
			Err:    err,
		}
	}

	row := models.OrderRow{
		OrderID:  b.field(record, analysis.ColumnOrderID),
		LogDate:  logDate,
		Seller:   b.field(record, analysis.ColumnSeller),
		Product:  b.field(record, analysis.ColumnProduct),
		Customer: b.field(record, analysis.ColumnCustomer),
	}

	if last, err := parseDate(b.field(record, analysis.ColumnLastPurchaseDate), b.opts.Location); err == nil {
		row.LastPurchaseDate = &last
	}

	b.rows = append(b.rows, row)
	return nil
}

func (b *builder) dataset() *models.Dataset {
	rows := b.rows
	if rows == nil {
		rows = []models.OrderRow{}
	}
	return &models.Dataset{
		Columns:     b.columns,
		Rows:        rows,
		SkippedRows: b.skipped,
		UploadedAt:  time.Now().UTC(),
	}
}

// parseDate accepts any layout dateparse recognises; ambiguous day/month
// values are retried with the fields swapped.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	return dateparse.ParseIn(value, loc, dateparse.RetryAmbiguousDateWithSwap(true))
}
