/**
 * @description
 * RabbitMQ publisher for reminder jobs and billing events. Messages carry a
 * caller-supplied deduplication id and a retry budget consumed by the queue
 * consumer.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// PublishOptions carries per-message delivery options.
type PublishOptions struct {
	// MessageID deduplicates logically identical jobs; retried enqueues within
	// the same trigger cycle reuse the same id.
	MessageID string
	// MaxRetries is how many times the consumer may redeliver the message
	// before dropping it.
	MaxRetries int
}

// HeaderAttempt and HeaderMaxRetries track redelivery bookkeeping on the wire.
const (
	HeaderAttempt    = "x-attempt"
	HeaderMaxRetries = "x-max-retries"
)

// Publisher is the interface implemented by job publishers.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}, opts PublishOptions) error
	Close()
}

// EventProducer holds the RabbitMQ connection and channel.
type EventProducer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer creates a RabbitMQ publisher.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch}, nil
}

// Publish sends a message to a topic exchange with a routing key.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}, opts PublishOptions) error {
	if p.channel == nil {
		return errors.New("rabbitmq channel not initialized")
	}

	if err := p.channel.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	headers := amqp091.Table{}
	if opts.MaxRetries > 0 {
		headers[HeaderAttempt] = int32(0)
		headers[HeaderMaxRetries] = int32(opts.MaxRetries)
	}

	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp091.Publishing{
		ContentType: "application/json",
		MessageId:   opts.MessageID,
		Headers:     headers,
		Body:        payload,
		Timestamp:   time.Now(),
	})
}

// Close closes the RabbitMQ connection.
func (p *EventProducer) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
