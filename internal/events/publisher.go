package events

import (
	"context"
	"errors"

	"propertyleads/internal/model"
)

// Publisher delivers committed lead events to one sink
type Publisher interface {
	Publish(ctx context.Context, event model.LeadEvent) error
}

// Meta describes an event on the wire
type Meta struct {
	ID            string `json:"id"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Producer      string `json:"producer,omitempty"`
	Type          string `json:"type"`
	Time          string `json:"time"`
}

// Envelope wraps an event payload with its metadata
type Envelope struct {
	Meta Meta            `json:"meta"`
	Data model.LeadEvent `json:"data"`
}

// Producer names this service in event metadata
const Producer = "propertyleads"

// NewEnvelope wraps event for transport
func NewEnvelope(event model.LeadEvent) Envelope {
	return Envelope{
		Meta: Meta{
			ID:            event.ID,
			CorrelationID: event.LeadID,
			Producer:      Producer,
			Type:          event.Type,
			Time:          event.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		},
		Data: event,
	}
}

// Multi fans an event out to every publisher. All sinks are tried; their
// errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event model.LeadEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
