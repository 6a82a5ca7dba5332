package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"propertyleads/internal/model"
)

const maxDialDelay = 30 * time.Second

// AMQPOptions configures the lead event exchange connection
type AMQPOptions struct {
	URL           string
	Exchange      string
	RetryAttempts int
	Delay         time.Duration
	Logger        *slog.Logger
}

// AMQPPublisher publishes lead events to a durable topic exchange, routed by
// event type, and waits for the broker's confirmation
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
	log      *slog.Logger
}

// DialWithRetry connects to RabbitMQ with exponential backoff, giving up when
// attempts run out or ctx is done
func DialWithRetry(ctx context.Context, opts AMQPOptions) (*amqp.Connection, error) {
	attempts := opts.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := amqp.Dial(opts.URL)
		if err == nil {
			if i > 1 {
				opts.Logger.Info("rabbit connected", slog.Int("attempt", i))
			}
			return conn, nil
		}
		lastErr = err
		if i == attempts {
			break
		}

		sleep := delay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDialDelay {
			sleep = maxDialDelay
		}
		opts.Logger.Warn("rabbit dial failed",
			slog.Int("attempt", i),
			slog.Duration("sleep", sleep),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, fmt.Errorf("rabbit dial failed after %d attempts: %w", attempts, lastErr)
}

// NewAMQPPublisher connects and declares the exchange
func NewAMQPPublisher(ctx context.Context, opts AMQPOptions) (*AMQPPublisher, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	conn, err := DialWithRetry(ctx, opts)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(opts.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", opts.Exchange, err)
	}

	return &AMQPPublisher{conn: conn, exchange: opts.Exchange, log: opts.Logger}, nil
}

// Publish sends the event on a fresh confirm-mode channel
func (p *AMQPPublisher) Publish(ctx context.Context, event model.LeadEvent) error {
	body, err := json.Marshal(NewEnvelope(event))
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("confirm mode: %w", err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.ID,
		CorrelationId: event.LeadID,
		Type:          event.Type,
		Timestamp:     event.OccurredAt,
		AppId:         Producer,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker nacked %s for lead %s", event.Type, event.LeadID)
	}

	p.log.Debug("published", slog.String("key", event.Type), slog.String("exchange", p.exchange))
	return nil
}

// Close closes the connection
func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}
