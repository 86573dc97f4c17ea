package worker

import (
	"context"
	"fmt"

	"recommendation-dashboard/internal/broker"
	"recommendation-dashboard/internal/models"
	"recommendation-dashboard/internal/util"

	"go.uber.org/zap"
)

// RunRecorder persists analysis runs
type RunRecorder interface {
	RecordRun(ctx context.Context, run *models.AnalysisRun) (bool, error)
}

// consumer is satisfied by *broker.Consumer
type consumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// AuditWorker writes every AnalysisCompleted event to the audit store
type AuditWorker struct {
	consumer     consumer
	eventHandler *broker.EventHandler
	recorder     RunRecorder
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(c consumer, recorder RunRecorder) *AuditWorker {
	w := &AuditWorker{
		consumer:     c,
		eventHandler: broker.NewEventHandler(),
		recorder:     recorder,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnAnalysisCompleted(w.HandleAnalysisCompleted)
	return w
}

// Start consumes events until ctx is cancelled
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}

// HandleAnalysisCompleted records the run carried by the event
func (w *AuditWorker) HandleAnalysisCompleted(ctx context.Context, event *models.AnalysisCompletedEvent) error {
	ctx, span := util.StartSpan(ctx, "AuditWorker.HandleAnalysisCompleted")
	defer span.End()

	written, err := w.recorder.RecordRun(ctx, event.ToRun())
	if err != nil {
		return fmt.Errorf("failed to record run for event %s: %w", event.EventID, err)
	}

	if !written {
		w.logger.Debug("Duplicate analysis event ignored", zap.String("event_id", event.EventID))
		return nil
	}

	util.RunsRecordedTotal.Inc()
	w.logger.Info("Analysis run recorded",
		zap.String("event_id", event.EventID),
		zap.String("session_id", event.SessionID),
		zap.Int("threshold_days", event.ThresholdDays),
		zap.Int("total_records", event.TotalRecords),
	)
	return nil
}
