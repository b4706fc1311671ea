/**
 * @description
 * RabbitMQ consumer with per-routing-key handlers and a bounded retry budget.
 * Failed deliveries are republished with an incremented attempt counter; once
 * the budget is spent the message is acknowledged and dropped.
 */
package rabbitmq

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultMaxRetries = 3

type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", fmt.Errorf("invalid AMQP scheme: %s", parsed.Scheme)
	}
	return clean, nil
}

func NewConsumer(amqpURL string) (*Consumer, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch}, nil
}

// ConsumeWithBindings binds the queue to one handler per routing key and
// consumes in the background. A handler returning false counts as a failed
// attempt and the message is retried up to its budget.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, bindings map[string]func([]byte) bool) error {
	if len(bindings) == 0 {
		return fmt.Errorf("no bindings provided")
	}

	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}

	handlers := make(map[string]func([]byte) bool)
	for routingKey, handler := range bindings {
		if handler == nil {
			continue
		}
		handlers[routingKey] = handler
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return err
		}
	}

	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			handler, ok := handlers[d.RoutingKey]
			if !ok {
				log.Printf("No handler for routing key %s; acknowledging to drop", d.RoutingKey)
				d.Ack(false)
				continue
			}
			if handler(d.Body) {
				d.Ack(false)
				continue
			}
			c.retryOrDrop(d)
		}
	}()

	return nil
}

// retryOrDrop republishes a failed delivery with an incremented attempt
// counter, or drops it once the retry budget is exhausted.
func (c *Consumer) retryOrDrop(d amqp.Delivery) {
	attempt := headerInt(d.Headers, HeaderAttempt)
	maxRetries := headerInt(d.Headers, HeaderMaxRetries)
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	if attempt+1 >= maxRetries {
		log.Printf("Dropping message %s on routing key %s after %d attempts", d.MessageId, d.RoutingKey, attempt+1)
		d.Ack(false)
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[HeaderAttempt] = int32(attempt + 1)
	headers[HeaderMaxRetries] = int32(maxRetries)

	err := c.ch.PublishWithContext(context.Background(), d.Exchange, d.RoutingKey, false, false, amqp.Publishing{
		ContentType: d.ContentType,
		MessageId:   d.MessageId,
		Headers:     headers,
		Body:        d.Body,
	})
	if err != nil {
		log.Printf("Failed to republish message %s; re-queuing via nack: %v", d.MessageId, err)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

func headerInt(headers amqp.Table, key string) int {
	if headers == nil {
		return 0
	}
	switch v := headers[key].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
