package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"recommendation-dashboard/internal/models"
	"recommendation-dashboard/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing analysis events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishAnalysisCompleted publishes AnalysisCompleted event keyed by session
func (ep *EventPublisher) PublishAnalysisCompleted(ctx context.Context, event *models.AnalysisCompletedEvent) error {
	key := fmt.Sprintf("session-%s", event.SessionID)
	if err := ep.producer.PublishEvent(ctx, key, event); err != nil {
		util.EventsFailedTotal.WithLabelValues(event.EventType).Inc()
		return err
	}
	util.EventsPublishedTotal.WithLabelValues(event.EventType).Inc()
	return nil
}

// EventHandler handles incoming events
type EventHandler struct {
	onAnalysisCompleted func(context.Context, *models.AnalysisCompletedEvent) error
	logger              *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnAnalysisCompleted registers a handler for AnalysisCompleted events
func (eh *EventHandler) OnAnalysisCompleted(handler func(context.Context, *models.AnalysisCompletedEvent) error) {
	eh.onAnalysisCompleted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID),
	)

	switch baseEvent.EventType {
	case models.EventTypeAnalysisCompleted:
		if eh.onAnalysisCompleted != nil {
			var event models.AnalysisCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal AnalysisCompleted event: %w", err)
			}
			return eh.onAnalysisCompleted(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
