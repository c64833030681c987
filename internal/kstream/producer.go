// Package kstream carries composite domain events over Kafka.
package kstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"product-composite/internal/logger"
	"product-composite/internal/model"
)

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter constructs the producer for one topic. Writes are async: the
// caller never waits on the broker, and failed batches are reported through
// Completion.
func NewWriter(broker, topic string, log logger.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn("kafka delivery failed", "topic", topic, "messages", len(msgs), "error", err)
			}
		},
	}
}

// Publisher writes each event to the topic named after its channel, keyed by
// product id so all events of a product land on the same partition.
type Publisher struct {
	mu      sync.Mutex
	writers map[string]messageWriter
	open    func(topic string) messageWriter
	log     logger.Logger
}

func NewPublisher(broker string, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return newPublisher(func(topic string) messageWriter {
		return NewWriter(broker, topic, log)
	}, log)
}

func newPublisher(open func(topic string) messageWriter, log logger.Logger) *Publisher {
	return &Publisher{writers: map[string]messageWriter{}, open: open, log: log}
}

func (p *Publisher) writer(channel string) messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.writers[channel]
	if !ok {
		w = p.open(channel)
		p.writers[channel] = w
	}
	return w
}

func (p *Publisher) Publish(ctx context.Context, channel string, evt model.Event) error {
	msg, err := Message(evt)
	if err != nil {
		return err
	}
	if err := p.writer(channel).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", evt.Type, channel, err)
	}
	p.log.Debug("event published", "channel", channel, "type", evt.Type, "key", evt.Key)
	return nil
}

// Close flushes pending async writes.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for channel, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s writer: %w", channel, err))
		}
	}
	p.writers = map[string]messageWriter{}
	return errors.Join(errs...)
}

// Message encodes evt as a Kafka message.
func Message(evt model.Event) (kafka.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.Itoa(evt.Key)),
		Value: data,
		Time:  evt.CreatedAt,
	}, nil
}
