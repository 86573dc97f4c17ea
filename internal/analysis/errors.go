package analysis

import (
	"errors"
	"fmt"
)

// Column headers of the order file
const (
	ColumnOrderID          = "ID_PEDIDO"
	ColumnLogDate          = "DATA_LOG"
	ColumnLastPurchaseDate = "ULTIMA_COMPRA"
	ColumnSeller           = "VENDEDOR"
	ColumnProduct          = "PRODUTO"
	ColumnCustomer         = "CLIENTE"
)

// RequiredColumns lists the headers every uploaded file must carry
var RequiredColumns = []string{
	ColumnOrderID,
	ColumnLogDate,
	ColumnLastPurchaseDate,
	ColumnSeller,
	ColumnProduct,
	ColumnCustomer,
}

// Threshold bounds in days
const (
	MinThresholdDays     = 30
	MaxThresholdDays     = 720
	DefaultThresholdDays = 60
)

// ErrThresholdOutOfRange is returned for a staleness threshold outside [30, 720]
var ErrThresholdOutOfRange = errors.New("staleness threshold out of range")

// MissingColumnError reports a required column absent from the input
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column: %s", e.Column)
}

// ParseError reports a required value that could not be parsed.
// Row is the 1-based data row number, not counting the header.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: cannot parse %s value %q", e.Row, e.Column, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidateThreshold checks that days is within the accepted threshold range
func ValidateThreshold(days int) error {
	if days < MinThresholdDays || days > MaxThresholdDays {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrThresholdOutOfRange, days, MinThresholdDays, MaxThresholdDays)
	}
	return nil
}

// RequireColumns returns a MissingColumnError naming the first required column
// absent from columns.
func RequireColumns(columns []string) error {
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[c] = struct{}{}
	}
	for _, required := range RequiredColumns {
		if _, ok := present[required]; !ok {
			return &MissingColumnError{Column: required}
		}
	}
	return nil
}
