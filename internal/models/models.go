package models

import "time"

// OrderRow represents one record of the uploaded order file
type OrderRow struct {
	OrderID          string     `json:"order_id"`
	LogDate          time.Time  `json:"log_date"`
	LastPurchaseDate *time.Time `json:"last_purchase_date,omitempty"`
	Seller           string     `json:"seller"`
	Product          string     `json:"product"`
	Customer         string     `json:"customer"`
}

// Status is the recommendation freshness of a row
type Status string

// Recommendation statuses
const (
	StatusNewProduct      Status = "NEW_PRODUCT"
	StatusStaleRepurchase Status = "STALE_REPURCHASE"
	StatusRecurring       Status = "RECURRING"
)

// Statuses lists every status in display order
var Statuses = []Status{StatusNewProduct, StatusStaleRepurchase, StatusRecurring}

// Label returns the dashboard label of the status
func (s Status) Label() string {
	switch s {
	case StatusNewProduct:
		return "Novo Produto"
	case StatusStaleRepurchase:
		return "Compra Antiga"
	case StatusRecurring:
		return "Recorrente"
	default:
		return string(s)
	}
}

// ClassifiedRow is an order row with its derived status
type ClassifiedRow struct {
	OrderRow
	Status Status `json:"status"`
}

// Dataset holds the rows of one uploaded file for a session
type Dataset struct {
	SourceName  string     `json:"source_name"`
	Columns     []string   `json:"columns"`
	Rows        []OrderRow `json:"rows"`
	SkippedRows int        `json:"skipped_rows"`
	UploadedAt  time.Time  `json:"uploaded_at"`

	// RecordedThresholdDays is the threshold of the last published analysis
	RecordedThresholdDays int `json:"recorded_threshold_days,omitempty"`
}

// GroupCount is one row of a single-key grouped table
type GroupCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// StatusGroupCount is one row of a (key, status) grouped table
type StatusGroupCount struct {
	Key    string `json:"key"`
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// StatusCount is one bar of the status distribution
type StatusCount struct {
	Status Status `json:"status"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// Summary holds the metrics and grouped tables of one analysis run
type Summary struct {
	ThresholdDays        int                `json:"threshold_days"`
	TotalRecords         int                `json:"total_records"`
	NewProducts          int                `json:"new_products"`
	StaleRepurchases     int                `json:"stale_repurchases"`
	Recurring            int                `json:"recurring"`
	DistinctOrders       int                `json:"distinct_orders"`
	SkippedRows          int                `json:"skipped_rows"`
	StatusDistribution   []StatusCount      `json:"status_distribution"`
	SellerCounts         []GroupCount       `json:"seller_counts"`
	ProductStatusCounts  []StatusGroupCount `json:"product_status_counts"`
	CustomerStatusCounts []StatusGroupCount `json:"customer_status_counts"`
}

// CountFor returns the number of rows classified with the given status
func (s *Summary) CountFor(status Status) int {
	switch status {
	case StatusNewProduct:
		return s.NewProducts
	case StatusStaleRepurchase:
		return s.StaleRepurchases
	case StatusRecurring:
		return s.Recurring
	}
	return 0
}

// AnalysisRun is the audit record of one completed analysis
type AnalysisRun struct {
	ID               int64     `db:"id" json:"id"`
	EventID          string    `db:"event_id" json:"event_id"`
	SessionID        string    `db:"session_id" json:"session_id"`
	SourceName       string    `db:"source_name" json:"source_name"`
	ThresholdDays    int       `db:"threshold_days" json:"threshold_days"`
	TotalRecords     int       `db:"total_records" json:"total_records"`
	NewProducts      int       `db:"new_products" json:"new_products"`
	StaleRepurchases int       `db:"stale_repurchases" json:"stale_repurchases"`
	Recurring        int       `db:"recurring" json:"recurring"`
	DistinctOrders   int       `db:"distinct_orders" json:"distinct_orders"`
	SkippedRows      int       `db:"skipped_rows" json:"skipped_rows"`
	AnalyzedAt       time.Time `db:"analyzed_at" json:"analyzed_at"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
