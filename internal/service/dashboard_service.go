package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"recommendation-dashboard/internal/analysis"
	"recommendation-dashboard/internal/loader"
	"recommendation-dashboard/internal/models"
	"recommendation-dashboard/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// analysisNamespace scopes the name-based ids of AnalysisCompleted events
var analysisNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:recommendation-dashboard:analysis"))

// AnalysisPublisher announces completed analyses
type AnalysisPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, event *models.AnalysisCompletedEvent) error
}

// AnalysisResult is what the dashboard renders for one session and threshold
type AnalysisResult struct {
	SessionID  string          `json:"session_id"`
	SourceName string          `json:"source_name"`
	UploadedAt time.Time       `json:"uploaded_at"`
	Summary    *models.Summary `json:"summary"`
}

// DashboardService runs uploads and threshold changes for browser sessions
type DashboardService struct {
	datasets         DatasetStore
	publisher        AnalysisPublisher
	loaderOpts       loader.Options
	defaultThreshold int
	logger           *zap.Logger
	now              func() time.Time
}

// NewDashboardService creates a new dashboard service. publisher may be nil.
func NewDashboardService(
	datasets DatasetStore,
	publisher AnalysisPublisher,
	loaderOpts loader.Options,
	defaultThreshold int,
) *DashboardService {
	if defaultThreshold == 0 {
		defaultThreshold = analysis.DefaultThresholdDays
	}
	return &DashboardService{
		datasets:         datasets,
		publisher:        publisher,
		loaderOpts:       loaderOpts,
		defaultThreshold: defaultThreshold,
		logger:           util.GetLogger(),
		now:              time.Now,
	}
}

// DefaultThreshold is the threshold used when a request does not name one
func (s *DashboardService) DefaultThreshold() int {
	return s.defaultThreshold
}

// ResolveThreshold maps 0 to the default and rejects values outside [30, 720]
func (s *DashboardService) ResolveThreshold(thresholdDays int) (int, error) {
	if thresholdDays == 0 {
		thresholdDays = s.defaultThreshold
	}
	if err := analysis.ValidateThreshold(thresholdDays); err != nil {
		return 0, err
	}
	return thresholdDays, nil
}

// Upload parses a file, replaces the session's dataset with it and analyzes it
func (s *DashboardService) Upload(ctx context.Context, sessionID, fileName string, r io.Reader, thresholdDays int) (*AnalysisResult, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Upload")
	defer span.End()
	span.SetAttributes(attribute.String("file.name", fileName))

	thresholdDays, err := s.ResolveThreshold(thresholdDays)
	if err != nil {
		util.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	ds, err := s.load(ctx, fileName, r)
	if err != nil {
		util.UploadsTotal.WithLabelValues("rejected").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		s.logger.Warn("Upload rejected",
			zap.String("session_id", sessionID),
			zap.String("file", fileName),
			zap.Error(err))
		return nil, err
	}

	ds.RecordedThresholdDays = thresholdDays
	if err := s.datasets.SaveDataset(ctx, sessionID, ds); err != nil {
		util.UploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to save dataset: %w", err)
	}

	util.UploadsTotal.WithLabelValues("accepted").Inc()
	util.RowsIngestedTotal.Add(float64(len(ds.Rows)))
	util.RowsSkippedTotal.Add(float64(ds.SkippedRows))

	s.logger.Info("Dataset uploaded",
		zap.String("session_id", sessionID),
		zap.String("file", ds.SourceName),
		zap.Int("rows", len(ds.Rows)),
		zap.Int("skipped_rows", ds.SkippedRows))

	return s.analyze(ctx, sessionID, ds, thresholdDays, true)
}

func (s *DashboardService) load(ctx context.Context, fileName string, r io.Reader) (*models.Dataset, error) {
	_, span := util.StartSpan(ctx, "loader.Load")
	defer span.End()

	ds, err := loader.Load(fileName, r, s.loaderOpts)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("rows", len(ds.Rows)),
		attribute.Int("skipped_rows", ds.SkippedRows),
	)
	return ds, nil
}

// Analyze re-runs classification and aggregation over the session's stored rows.
// Only a threshold different from the last recorded one publishes an event;
// page reloads and the charts frame render without recording a new run.
func (s *DashboardService) Analyze(ctx context.Context, sessionID string, thresholdDays int) (*AnalysisResult, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Analyze")
	defer span.End()

	thresholdDays, err := s.ResolveThreshold(thresholdDays)
	if err != nil {
		return nil, err
	}

	ds, err := s.datasets.LoadDataset(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	record := ds.RecordedThresholdDays != thresholdDays
	if record {
		// stored datasets are shared, so the update goes through a copy
		updated := *ds
		updated.RecordedThresholdDays = thresholdDays
		if err := s.datasets.SaveDataset(ctx, sessionID, &updated); err != nil {
			return nil, fmt.Errorf("failed to save dataset: %w", err)
		}
		ds = &updated
	}

	return s.analyze(ctx, sessionID, ds, thresholdDays, record)
}

// HasDataset reports whether the session has uploaded rows
func (s *DashboardService) HasDataset(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	_, err := s.datasets.LoadDataset(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load dataset: %w", err)
	}
	return true, nil
}

// Forget discards the session's dataset
func (s *DashboardService) Forget(ctx context.Context, sessionID string) error {
	if err := s.datasets.DeleteDataset(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	s.logger.Info("Dataset discarded", zap.String("session_id", sessionID))
	return nil
}

// analyze computes the summary; record counts the run in metrics and publishes it
func (s *DashboardService) analyze(ctx context.Context, sessionID string, ds *models.Dataset, thresholdDays int, record bool) (*AnalysisResult, error) {
	ctx, span := util.StartSpan(ctx, "analysis.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("threshold_days", thresholdDays),
		attribute.Int("rows", len(ds.Rows)),
		attribute.Bool("recorded", record),
	)

	start := s.now()
	summary, err := analysis.Run(ds, thresholdDays)
	if err != nil {
		util.AnalysisRunsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return nil, err
	}
	util.AnalysisDuration.Observe(s.now().Sub(start).Seconds())

	result := &AnalysisResult{
		SessionID:  sessionID,
		SourceName: ds.SourceName,
		UploadedAt: ds.UploadedAt,
		Summary:    summary,
	}
	if !record {
		return result, nil
	}

	util.AnalysisRunsTotal.WithLabelValues("ok").Inc()
	util.ThresholdDays.Observe(float64(thresholdDays))
	for _, sc := range summary.StatusDistribution {
		util.RowsClassifiedTotal.WithLabelValues(string(sc.Status)).Add(float64(sc.Count))
	}

	s.logger.Debug("Analysis completed",
		zap.String("session_id", sessionID),
		zap.Int("threshold_days", thresholdDays),
		zap.Int("total_records", summary.TotalRecords),
		zap.Int("new_products", summary.NewProducts),
		zap.Int("stale_repurchases", summary.StaleRepurchases),
		zap.Int("recurring", summary.Recurring),
		zap.Int("distinct_orders", summary.DistinctOrders))

	s.publishCompleted(ctx, sessionID, ds, summary)
	return result, nil
}

// analysisEventID names one analysis of one upload, so a replayed event
// carries the same id and the audit store records it once
func analysisEventID(sessionID string, uploadedAt time.Time, thresholdDays int) string {
	name := fmt.Sprintf("%s|%s|%d", sessionID, uploadedAt.UTC().Format(time.RFC3339Nano), thresholdDays)
	return uuid.NewSHA1(analysisNamespace, []byte(name)).String()
}

// publishCompleted is best effort; failures are logged and never returned
func (s *DashboardService) publishCompleted(ctx context.Context, sessionID string, ds *models.Dataset, summary *models.Summary) {
	if s.publisher == nil {
		return
	}

	event := &models.AnalysisCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   analysisEventID(sessionID, ds.UploadedAt, summary.ThresholdDays),
			EventType: models.EventTypeAnalysisCompleted,
			Timestamp: s.now().UTC(),
		},
		SessionID:        sessionID,
		SourceName:       ds.SourceName,
		ThresholdDays:    summary.ThresholdDays,
		TotalRecords:     summary.TotalRecords,
		NewProducts:      summary.NewProducts,
		StaleRepurchases: summary.StaleRepurchases,
		Recurring:        summary.Recurring,
		DistinctOrders:   summary.DistinctOrders,
		SkippedRows:      summary.SkippedRows,
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := s.publisher.PublishAnalysisCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish AnalysisCompleted event",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}
