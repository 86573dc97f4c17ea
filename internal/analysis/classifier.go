package analysis

import (
	"time"

	"recommendation-dashboard/internal/models"
)

const day = 24 * time.Hour

// Classify derives the recommendation status of a single row.
// A nil lastPurchase means the customer never bought the product.
func Classify(logDate time.Time, lastPurchase *time.Time, thresholdDays int) models.Status {
	if lastPurchase == nil {
		return models.StatusNewProduct
	}

	// Duration division truncates toward zero; negative ages fall through to recurring.
	ageDays := int(logDate.Sub(*lastPurchase) / day)
	if ageDays > thresholdDays {
		return models.StatusStaleRepurchase
	}
	return models.StatusRecurring
}

// ClassifyAll classifies every row, preserving input order
func ClassifyAll(rows []models.OrderRow, thresholdDays int) []models.ClassifiedRow {
	classified := make([]models.ClassifiedRow, len(rows))
	for i, row := range rows {
		classified[i] = models.ClassifiedRow{
			OrderRow: row,
			Status:   Classify(row.LogDate, row.LastPurchaseDate, thresholdDays),
		}
	}
	return classified
}
