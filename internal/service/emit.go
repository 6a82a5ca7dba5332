package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"propertyleads/internal/model"
)

// emit publishes a lead event after its write has committed. Delivery is best
// effort: failures are logged and never returned.
func emit(ctx context.Context, pub EventPublisher, logger *slog.Logger, eventType, leadID string, agentID *int64, status model.LeadStatus, at time.Time) {
	if pub == nil {
		return
	}
	event := model.LeadEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		LeadID:     leadID,
		Status:     status,
		OccurredAt: at.UTC(),
	}
	if agentID != nil {
		id := *agentID
		event.AgentID = &id
	}
	if err := pub.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish lead event", "type", eventType, "lead_id", leadID, "error", err)
	}
}
