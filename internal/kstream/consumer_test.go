package kstream

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-composite/internal/logger"
	"product-composite/internal/model"
)

type fakeReader struct {
	msgs []kafka.Message
	err  error
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		if r.err != nil {
			return kafka.Message{}, r.err
		}
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func TestDecode(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		env, err := Decode([]byte(`{"type":"CREATE","key":3,"payload":{"productId":3,"name":"n","weight":1},"createdAt":"2024-05-01T10:00:00Z"}`))

		require.NoError(t, err)
		assert.Equal(t, model.EventCreate, env.Type)
		assert.Equal(t, 3, env.Key)
		assert.False(t, env.Deleted())
		assert.JSONEq(t, `{"productId":3,"name":"n","weight":1}`, string(env.Payload))
		assert.Equal(t, 2024, env.CreatedAt.Year())
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := Decode([]byte(`{"type":`))
		assert.Error(t, err)
	})

	t.Run("Unknown type", func(t *testing.T) {
		_, err := Decode([]byte(`{"type":"UPDATE","key":1}`))
		assert.ErrorContains(t, err, "unknown event type")
	})
}

func TestConsume(t *testing.T) {
	valid, err := Message(model.NewEvent(model.EventCreate, 1, model.Review{ProductID: 1, ReviewID: 2}))
	require.NoError(t, err)
	valid.Topic = model.ChannelReviews
	deleted, err := Message(model.NewEvent(model.EventDelete, 1, nil))
	require.NoError(t, err)
	deleted.Topic = model.ChannelReviews

	r := &fakeReader{msgs: []kafka.Message{
		valid,
		{Topic: model.ChannelReviews, Value: []byte("garbage")},
		deleted,
	}}

	ctx, cancel := context.WithCancel(context.Background())
	var got []Envelope
	handle := func(_ context.Context, topic string, env Envelope) error {
		assert.Equal(t, model.ChannelReviews, topic)
		got = append(got, env)
		if len(got) == 2 {
			cancel()
		}
		return errors.New("handler errors do not stop the loop")
	}

	err = Consume(ctx, r, handle, logger.Nop())

	assert.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.EventCreate, got[0].Type)
	assert.True(t, got[1].Deleted())
}

func TestConsumeReaderError(t *testing.T) {
	r := &fakeReader{err: errors.New("group coordinator not available")}

	err := Consume(context.Background(), r, func(context.Context, string, Envelope) error { return nil }, nil)

	assert.ErrorContains(t, err, "coordinator")
}
