// Package webhook delivers signed event notifications to subscriber
// endpoints and to fixed-shape third-party integrations.
package webhook

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a notification.
type EventType string

const (
	EventLinkCreated   EventType = "link.created"
	EventLinkDeleted   EventType = "link.deleted"
	EventClickRecorded EventType = "click.recorded"
	EventWebhookTest   EventType = "webhook.test"
)

var ErrUnknownEventType = errors.New("unknown event type")

// ParseEventType validates an event type received from outside.
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(s); t {
	case EventLinkCreated, EventLinkDeleted, EventClickRecorded, EventWebhookTest:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
}

// Event is the envelope every subscriber receives. It is built once per
// emission and shared by all deliveries.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

func NewEvent(eventType EventType, data map[string]any, now time.Time) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: now.Unix(),
		Data:      data,
	}
}

// Emitter accepts events for asynchronous delivery. Emit never blocks on
// the network and never reports delivery failures.
type Emitter interface {
	Emit(orgID string, eventType EventType, data map[string]any)
}

// Emitters fans one emission out to several emitters.
type Emitters []Emitter

func (es Emitters) Emit(orgID string, eventType EventType, data map[string]any) {
	for _, e := range es {
		e.Emit(orgID, eventType, data)
	}
}
