// Package events publishes itinerary lifecycle events to NATS so downstream
// consumers can react without polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for itinerary lifecycle events.
const (
	SubjectGenerated = "itinerary.generated"
	SubjectFailed    = "itinerary.failed"
)

// Generated is published after a successful generation was persisted.
type Generated struct {
	ItineraryID string    `json:"itinerary_id"`
	UserID      string    `json:"user_id"`
	Destination string    `json:"destination"`
	Duration    int       `json:"duration"`
	Language    string    `json:"language"`
	Model       string    `json:"model"`
	Attempts    int       `json:"attempts"`
	CreatedAt   time.Time `json:"created_at"`
}

// Failed is published after a generation run exhausted the cascade or
// aborted.
type Failed struct {
	UserID      string `json:"user_id"`
	Destination string `json:"destination"`
	Duration    int    `json:"duration"`
	Language    string `json:"language"`
	Model       string `json:"model"`
	Attempts    int    `json:"attempts"`
	ErrorKind   string `json:"error_kind"`
	Error       string `json:"error"`
}

// Publisher emits lifecycle events. Publishing is best-effort from the
// caller's point of view; a broker outage must not fail the request.
type Publisher interface {
	PublishGenerated(ctx context.Context, ev Generated) error
	PublishFailed(ctx context.Context, ev Failed) error
}

// NATS publishes events to a NATS broker.
type NATS struct {
	conn *nats.Conn
}

// Connect dials the broker at url.
func Connect(url string) (*NATS, error) {
	conn, err := nats.Connect(url, nats.Name("tripweave"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATS{conn: conn}, nil
}

// NewNATS wraps an existing connection.
func NewNATS(conn *nats.Conn) *NATS {
	return &NATS{conn: conn}
}

// PublishGenerated emits a Generated event.
func (n *NATS) PublishGenerated(_ context.Context, ev Generated) error {
	return n.publish(SubjectGenerated, ev)
}

// PublishFailed emits a Failed event.
func (n *NATS) PublishFailed(_ context.Context, ev Failed) error {
	return n.publish(SubjectFailed, ev)
}

func (n *NATS) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection, flushing any buffered events.
func (n *NATS) Close() {
	_ = n.conn.Drain()
}

// Noop discards all events. Used when NATS is not configured.
type Noop struct{}

// PublishGenerated discards the event.
func (Noop) PublishGenerated(context.Context, Generated) error { return nil }

// PublishFailed discards the event.
func (Noop) PublishFailed(context.Context, Failed) error { return nil }
