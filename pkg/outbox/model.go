package outbox

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// DefaultMaxRetries is how many failed dispatches park an event as failed.
const DefaultMaxRetries = 5

const HeaderAggregateType = "aggregate_type"

// Event is one row of the transactional outbox.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
}

// NewEvent encodes payload as JSON into a pending event.
func NewEvent(aggregateType, aggregateID, eventType string, payload any, traceparent string) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       raw,
		Headers:       map[string]string{HeaderAggregateType: aggregateType},
		Traceparent:   traceparent,
		Status:        StatusPending,
	}, nil
}

// Key partitions events per aggregate so one order's events stay ordered.
func (e Event) Key() string {
	return e.AggregateType + ":" + e.AggregateID
}
