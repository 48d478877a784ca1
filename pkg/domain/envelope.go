package domain

import "time"

// Topic identifies a notification channel. The set is closed; the contract
// registry pins the same values.
type Topic string

// Notification topics.
const (
	TopicAnimalUpdated    Topic = "animal.updated"
	TopicEventCreated     Topic = "event.created"
	TopicCostCreated      Topic = "cost.created"
	TopicDimensionChanged Topic = "dimension.changed"
)

// Topics lists all notification topics in canonical order.
func Topics() []Topic {
	return []Topic{TopicAnimalUpdated, TopicEventCreated, TopicCostCreated, TopicDimensionChanged}
}

// Envelope is a transient change notification. Envelopes are never persisted
// and missed envelopes are not replayed.
type Envelope struct {
	Topic         Topic     `json:"topic"`
	OccurredAt    time.Time `json:"occurred_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Payload       Payload   `json:"payload"`
}
