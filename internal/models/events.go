package models

import "time"

// Event types
const (
	EventTypeAnalysisCompleted = "ANALYSIS_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// AnalysisCompletedEvent published after a dataset has been classified and aggregated.
// It carries counts only, never uploaded rows.
type AnalysisCompletedEvent struct {
	BaseEvent
	SessionID        string `json:"session_id"`
	SourceName       string `json:"source_name"`
	ThresholdDays    int    `json:"threshold_days"`
	TotalRecords     int    `json:"total_records"`
	NewProducts      int    `json:"new_products"`
	StaleRepurchases int    `json:"stale_repurchases"`
	Recurring        int    `json:"recurring"`
	DistinctOrders   int    `json:"distinct_orders"`
	SkippedRows      int    `json:"skipped_rows"`
}

// ToRun converts the event into its audit record
func (e *AnalysisCompletedEvent) ToRun() *AnalysisRun {
	return &AnalysisRun{
		EventID:          e.EventID,
		SessionID:        e.SessionID,
		SourceName:       e.SourceName,
		ThresholdDays:    e.ThresholdDays,
		TotalRecords:     e.TotalRecords,
		NewProducts:      e.NewProducts,
		StaleRepurchases: e.StaleRepurchases,
		Recurring:        e.Recurring,
		DistinctOrders:   e.DistinctOrders,
		SkippedRows:      e.SkippedRows,
		AnalyzedAt:       e.Timestamp,
	}
}
