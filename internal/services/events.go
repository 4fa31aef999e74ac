package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/chachabrian/wheelster-backend/internal/booking"
)

// BookingExchange is the topic exchange every booking event is routed
// through. The routing key is the event type, e.g. booking.cancelled.
const BookingExchange = "booking_events"

// RabbitMQ publishes booking events to a durable topic exchange.
type RabbitMQ struct {
	url  string
	conn *amqp.Connection
	ch   *amqp.Channel
	mu   sync.RWMutex
	log  *zap.Logger
}

// NewRabbitMQ dials url, retrying with backoff until ctx ends or the
// attempts run out, and declares the booking exchange.
func NewRabbitMQ(ctx context.Context, url string, log *zap.Logger) (*RabbitMQ, error) {
	mq := &RabbitMQ{url: url, log: log.Named("amqp")}

	const maxRetries = 5
	delay := time.Second
	for attempt := 1; ; attempt++ {
		err := mq.connect()
		if err == nil {
			mq.log.Info("rabbitmq connected", zap.Int("attempt", attempt))
			return mq, nil
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, err)
		}
		mq.log.Warn("rabbitmq connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
			delay = min(delay*2, 15*time.Second)
		}
	}
}

func (mq *RabbitMQ) connect() error {
	conn, err := amqp.Dial(mq.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(BookingExchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	mq.mu.Lock()
	mq.conn, mq.ch = conn, ch
	mq.mu.Unlock()
	return nil
}

// Publish implements booking.EventPublisher. A closed channel is reopened
// once before giving up.
func (mq *RabbitMQ) Publish(ctx context.Context, e booking.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	err = mq.publish(ctx, string(e.Type), e.ID, body)
	if errors.Is(err, amqp.ErrClosed) {
		if cerr := mq.connect(); cerr != nil {
			return fmt.Errorf("reconnect rabbitmq: %w", cerr)
		}
		err = mq.publish(ctx, string(e.Type), e.ID, body)
	}
	return err
}

func (mq *RabbitMQ) publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	mq.mu.RLock()
	ch := mq.ch
	mq.mu.RUnlock()
	if ch == nil {
		return amqp.ErrClosed
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return ch.PublishWithContext(publishCtx, BookingExchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    messageID,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	})
}

func (mq *RabbitMQ) Close() error {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	if mq.ch != nil {
		_ = mq.ch.Close()
	}
	if mq.conn != nil {
		return mq.conn.Close()
	}
	return nil
}

// FanoutPublisher hands every event to each publisher in turn and joins
// their errors.
type FanoutPublisher []booking.EventPublisher

func (f FanoutPublisher) Publish(ctx context.Context, e booking.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublisherFunc adapts a plain function to booking.EventPublisher.
type PublisherFunc func(ctx context.Context, e booking.Event) error

func (f PublisherFunc) Publish(ctx context.Context, e booking.Event) error {
	return f(ctx, e)
}
