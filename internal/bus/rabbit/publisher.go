// Package rabbit connects the match core to RabbitMQ. Domain events fan
// out on a durable topic exchange keyed by event kind; bot commands
// arrive on a durable request queue and get correlated replies on the
// queue the bot names.
package rabbit

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sidelinehq/sideline/internal/match/domain"
	"github.com/sidelinehq/sideline/internal/platform/timeouts"
)

// dial connects to the broker with a bounded connection timeout.
func dial(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Dial: amqp.DefaultDial(timeouts.BrokerDial),
	})
}

// Publisher delivers domain events to a topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewPublisher dials the broker and declares the topic exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish delivers each event as its own persistent JSON message, keyed
// by the event kind.
func (p *Publisher) Publish(ctx context.Context, events ...domain.Event) error {
	for _, e := range events {
		body, err := json.Marshal(e.Payload())
		if err != nil {
			return fmt.Errorf("marshal %s: %w", e.Kind(), err)
		}
		err = p.ch.PublishWithContext(ctx, p.exchange, string(e.Kind()), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    e.OccurredAt(),
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish %s: %w", e.Kind(), err)
		}
	}
	return nil
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
