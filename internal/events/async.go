package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"propertyleads/internal/model"
)

var (
	ErrQueueFull = errors.New("event queue is full")
	ErrClosed    = errors.New("event queue is closed")
)

// Async hands events to a background worker so callers never wait on sinks.
// Events are delivered in publish order; when the queue is full new events are
// rejected rather than blocking the caller.
type Async struct {
	next    Publisher
	queue   chan model.LeadEvent
	timeout time.Duration
	log     *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the worker. timeout bounds each delivery to next.
func NewAsync(next Publisher, size int, timeout time.Duration, logger *slog.Logger) *Async {
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		next:    next,
		queue:   make(chan model.LeadEvent, size),
		timeout: timeout,
		log:     logger,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish enqueues the event. ctx is not carried to the worker: delivery happens
// after the request that produced the event has finished.
func (a *Async) Publish(ctx context.Context, event model.LeadEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for event := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.next.Publish(ctx, event)
		cancel()
		if err != nil {
			a.log.Warn("lead event delivery failed",
				"type", event.Type,
				"lead_id", event.LeadID,
				"error", err,
			)
		}
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
