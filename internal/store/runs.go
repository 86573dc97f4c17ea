package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"recommendation-dashboard/internal/models"

	sq "github.com/Masterminds/squirrel"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
)

var runColumns = []string{
	"id", "event_id", "session_id", "source_name", "threshold_days",
	"total_records", "new_products", "stale_repurchases", "recurring",
	"distinct_orders", "skipped_rows", "analyzed_at", "created_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// RunFilter narrows ListRuns. Zero values mean no filter.
type RunFilter struct {
	SessionID string    `form:"session_id"`
	Since     time.Time `form:"since" time_format:"2006-01-02"`
	Limit     int       `form:"limit" binding:"omitempty,min=1,max=500"`
}

// RecordRun inserts an analysis run. Replaying the same event is a no-op;
// the returned bool reports whether a row was written.
func (s *Store) RecordRun(ctx context.Context, run *models.AnalysisRun) (bool, error) {
	query := `
		INSERT INTO analysis_runs (
			event_id, session_id, source_name, threshold_days, total_records,
			new_products, stale_repurchases, recurring, distinct_orders,
			skipped_rows, analyzed_at)
		VALUES (
			:event_id, :session_id, :source_name, :threshold_days, :total_records,
			:new_products, :stale_repurchases, :recurring, :distinct_orders,
			:skipped_rows, :analyzed_at)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id, created_at`

	rows, err := s.db.NamedQueryContext(ctx, query, run)
	if err != nil {
		return false, fmt.Errorf("failed to record run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return false, rows.Err()
	}
	if err := rows.Scan(&run.ID, &run.CreatedAt); err != nil {
		return false, fmt.Errorf("failed to scan run id: %w", err)
	}
	return true, nil
}

// GetRunByEventID retrieves a run by the id of the event that produced it
func (s *Store) GetRunByEventID(ctx context.Context, eventID string) (*models.AnalysisRun, error) {
	query, args, err := psql.Select(runColumns...).
		From("analysis_runs").
		Where(sq.Eq{"event_id": eventID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var run models.AnalysisRun
	err = s.db.GetContext(ctx, &run, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", eventID)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs first
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]models.AnalysisRun, error) {
	query, args, err := buildListRuns(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	runs := []models.AnalysisRun{}
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func buildListRuns(filter RunFilter) (string, []interface{}, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}
	if limit > maxRunLimit {
		limit = maxRunLimit
	}

	q := psql.Select(runColumns...).
		From("analysis_runs").
		OrderBy("analyzed_at DESC", "id DESC").
		Limit(uint64(limit))

	if filter.SessionID != "" {
		q = q.Where(sq.Eq{"session_id": filter.SessionID})
	}
	if !filter.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"analyzed_at": filter.Since})
	}

	return q.ToSql()
}
