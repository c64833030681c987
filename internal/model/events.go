package model

import "time"

// EventType is the kind of state change announced on an entity channel.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventDelete EventType = "DELETE"
)

// Channel names, one per downstream entity. The Kafka publisher uses them as
// topic names, the RabbitMQ publisher derives its exchanges from them.
const (
	ChannelProducts        = "products"
	ChannelRecommendations = "recommendations"
	ChannelReviews         = "reviews"
)

// Event is the envelope emitted for every create or delete the composite
// fans out. Key is always the productId so all events of one product land on
// the same partition.
type Event struct {
	Type      EventType `json:"type"`
	Key       int       `json:"key"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEvent stamps an event with the current time (UTC).
func NewEvent(t EventType, key int, payload any) Event {
	return Event{
		Type:      t,
		Key:       key,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}
