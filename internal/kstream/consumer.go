package kstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"product-composite/internal/logger"
	"product-composite/internal/model"
)

// Envelope is a received event whose payload is left undecoded; the entity
// type depends on the topic it came from.
type Envelope struct {
	Type      model.EventType `json:"type"`
	Key       int             `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Deleted reports whether the envelope is a delete, whose payload is null.
func (e Envelope) Deleted() bool { return e.Type == model.EventDelete }

// Decode parses a message value into an Envelope.
func Decode(value []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type != model.EventCreate && env.Type != model.EventDelete {
		return Envelope{}, fmt.Errorf("decode envelope: unknown event type %q", env.Type)
	}
	return env, nil
}

// NewReader creates a consumer group reader for one topic.
func NewReader(broker, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Handler processes one decoded event of topic.
type Handler func(ctx context.Context, topic string, env Envelope) error

// Consume reads r until ctx is cancelled. Messages that do not decode are
// logged and skipped, handler errors are logged and do not stop the loop.
func Consume(ctx context.Context, r messageReader, handle Handler, log logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		env, err := Decode(msg.Value)
		if err != nil {
			log.Warn("skipping malformed event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
			continue
		}
		if err := handle(ctx, msg.Topic, env); err != nil {
			log.Error("event handler failed", "topic", msg.Topic, "key", env.Key, "type", env.Type, "error", err)
		}
	}
}
