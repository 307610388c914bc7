// Package pipeline moves click events from the redirect path to the
// analytics store: a queue in between, consumer loops draining it, and a
// processor that enriches, persists and announces each click.
package pipeline

import (
	"context"
	"errors"
	"time"
)

// ErrNoMessage is returned by Receive when the poll timeout elapsed empty.
var ErrNoMessage = errors.New("no message available")

// Message is one queued click. It must be acknowledged once handled;
// unacknowledged messages are redelivered by the backend.
type Message struct {
	Body []byte
	ack  func(ctx context.Context) error
}

func NewMessage(body []byte, ack func(ctx context.Context) error) *Message {
	return &Message{Body: body, ack: ack}
}

func (m *Message) Ack(ctx context.Context) error {
	if m.ack == nil {
		return nil
	}
	return m.ack(ctx)
}

// Queue is the transport between Enqueue and the workers.
type Queue interface {
	Publish(ctx context.Context, body []byte) error
	// Receive waits at most wait for a message addressed to consumer.
	Receive(ctx context.Context, consumer string, wait time.Duration) (*Message, error)
	Close() error
}

// Recoverer is implemented by backends that park in-flight messages per
// consumer and need them returned after a crash.
type Recoverer interface {
	Recover(ctx context.Context, consumer string) (int, error)
}

// OrphanRecoverer reclaims in-flight messages of consumers that are gone.
type OrphanRecoverer interface {
	RecoverOrphans(ctx context.Context) (int, error)
}
