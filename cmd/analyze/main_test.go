package main

import (
	"bytes"
	"testing"
	"time"

	"recommendation-dashboard/internal/analysis"
	"recommendation-dashboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dataset() *models.Dataset {
	last := day(2024, 1, 1)
	recent := day(2024, 3, 1)
	return &models.Dataset{
		SourceName:  "orders.csv",
		Columns:     analysis.RequiredColumns,
		SkippedRows: 1,
		Rows: []models.OrderRow{
			{OrderID: "A", LogDate: day(2024, 3, 10), LastPurchaseDate: &last, Seller: "ana", Product: "p1", Customer: "c1"},
			{OrderID: "B", LogDate: day(2024, 3, 10), Seller: "ana", Product: "p2", Customer: "c2"},
			{OrderID: "C", LogDate: day(2024, 3, 10), LastPurchaseDate: &recent, Seller: "bia", Product: "p1", Customer: "c1"},
		},
	}
}

func TestRunMatchesAnalysisPipeline(t *testing.T) {
	ds := dataset()

	got, err := run(ds, 60, true)
	require.NoError(t, err)

	want, err := analysis.Run(ds, 60)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, got.SkippedRows)
}

func TestRunRejectsThreshold(t *testing.T) {
	_, err := run(dataset(), 721, false)
	assert.ErrorIs(t, err, analysis.ErrThresholdOutOfRange)
}

func TestRunRequiresColumns(t *testing.T) {
	ds := dataset()
	ds.Columns = []string{analysis.ColumnOrderID, analysis.ColumnLogDate}

	_, err := run(ds, 60, false)

	var missing *analysis.MissingColumnError
	assert.ErrorAs(t, err, &missing)
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	summary, err := run(dataset(), 60, false)
	require.NoError(t, err)
	printSummary(&out, "orders.csv", summary, 1)

	text := out.String()
	assert.Contains(t, text, "Arquivo: orders.csv (limite 60 dias)")
	assert.Contains(t, text, "Linhas ignoradas")
	assert.Contains(t, text, "Top Vendedores")
	assert.Contains(t, text, "ana")
	assert.NotContains(t, text, "bia", "top limits each table")
}
