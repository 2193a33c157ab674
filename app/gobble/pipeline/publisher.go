package pipeline

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"
)

// eventsSubject is the NATS subject event rows are published on.
const eventsSubject = "gobble-events"

// EventPublisher mirrors written events onto a NATS subject for downstream
// consumers. Publishing is best effort; failures are logged and never block
// the write path.
type EventPublisher struct {
	log  *log.Logger
	conn *nats.Conn
}

// NewEventPublisher connects to the NATS server at natsURL. An empty url
// returns a nil publisher, which publishes nothing.
func NewEventPublisher(log *log.Logger, natsURL string) (*EventPublisher, error) {
	if natsURL == "" {
		return nil, nil
	}
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &EventPublisher{log: log, conn: conn}, nil
}

// Publish sends one event row as JSON.
func (p *EventPublisher) Publish(event *Event) {
	if p == nil {
		return
	}
	contents, err := json.Marshal(event)
	if err != nil {
		p.log.Printf("failed to marshal event for publishing: %v", err)
		return
	}
	if err := p.conn.Publish(eventsSubject, contents); err != nil {
		p.log.Printf("failed to publish event for trip %s: %v", event.TripID, err)
	}
}

// Close drains and closes the connection.
func (p *EventPublisher) Close() {
	if p == nil {
		return
	}
	_ = p.conn.Drain()
}
