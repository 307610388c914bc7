package webhook

import (
	"context"
	"slices"
)

// Endpoint is a subscriber URL registered by an org.
type Endpoint struct {
	ID     string
	OrgID  string
	URL    string
	Secret string
	// Events lists subscribed types; "*" subscribes to all.
	Events  []string
	Enabled bool
}

func (e Endpoint) Subscribed(t EventType) bool {
	return e.Enabled && (slices.Contains(e.Events, "*") || slices.Contains(e.Events, string(t)))
}

// EndpointStore lists an org's enabled endpoints subscribed to an event.
type EndpointStore interface {
	ListSubscribed(ctx context.Context, orgID string, eventType EventType) ([]Endpoint, error)
}
