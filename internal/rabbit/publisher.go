// Package rabbit carries composite domain events over RabbitMQ.
package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rabbitmq/amqp091-go"

	"product-composite/internal/logger"
	"product-composite/internal/model"
)

// amqpChannel is the part of *amqp091.Channel the publisher needs.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher sends each event to the topic exchange "<channel>.events" with
// routing key "<channel>.<event type>", e.g. "products.create".
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	ch       amqpChannel
	declared map[string]bool
	log      logger.Logger
}

func Dial(url string, log logger.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	p := newPublisher(ch, log)
	p.conn = conn
	p.log.Info("connected to RabbitMQ")
	return p, nil
}

func newPublisher(ch amqpChannel, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{ch: ch, declared: map[string]bool{}, log: log}
}

func Exchange(channel string) string { return channel + ".events" }

func RoutingKey(channel string, t model.EventType) string {
	return channel + "." + strings.ToLower(string(t))
}

func (p *Publisher) Publish(ctx context.Context, channel string, evt model.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	exchange := Exchange(channel)
	if !p.declared[exchange] {
		if err := p.ch.ExchangeDeclare(exchange, amqp091.ExchangeTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
		p.declared[exchange] = true
	}

	err = p.ch.PublishWithContext(ctx, exchange, RoutingKey(channel, evt.Type), false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    strconv.Itoa(evt.Key),
		Timestamp:    evt.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", evt.Type, exchange, err)
	}
	p.log.Debug("event published", "exchange", exchange, "type", evt.Type, "key", evt.Key)
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	p.log.Info("RabbitMQ connection closed")
	return err
}
