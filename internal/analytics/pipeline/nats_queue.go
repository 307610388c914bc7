package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

type NATSConfig struct {
	URL     string
	Stream  string
	Subject string
	Durable string
	AckWait time.Duration
}

// NATSQueue publishes to a JetStream work-queue stream and pulls through a
// shared durable consumer. Messages not acked within AckWait are redelivered.
type NATSQueue struct {
	cfg NATSConfig
	nc  *nats.Conn
	js  nats.JetStreamContext

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

var _ Queue = (*NATSQueue)(nil)

func NewNATSQueue(cfg NATSConfig) (*NATSQueue, error) {
	if cfg.AckWait <= 0 {
		cfg.AckWait = 30 * time.Second
	}
	nc, err := nats.Connect(cfg.URL, nats.Name("shortlink"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	if _, err := js.StreamInfo(cfg.Stream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			nc.Close()
			return nil, fmt.Errorf("stream info: %w", err)
		}
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      cfg.Stream,
			Subjects:  []string{cfg.Subject},
			Retention: nats.WorkQueuePolicy,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create stream %s: %w", cfg.Stream, err)
		}
	}

	return &NATSQueue{cfg: cfg, nc: nc, js: js, subs: make(map[string]*nats.Subscription)}, nil
}

func (q *NATSQueue) Publish(ctx context.Context, body []byte) error {
	if _, err := q.js.Publish(q.cfg.Subject, body, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish click: %w", err)
	}
	return nil
}

func (q *NATSQueue) subscription(consumer string) (*nats.Subscription, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if sub, ok := q.subs[consumer]; ok {
		return sub, nil
	}
	sub, err := q.js.PullSubscribe(q.cfg.Subject, q.cfg.Durable,
		nats.BindStream(q.cfg.Stream),
		nats.AckWait(q.cfg.AckWait),
	)
	if err != nil {
		return nil, fmt.Errorf("pull subscribe: %w", err)
	}
	q.subs[consumer] = sub
	return sub, nil
}

func (q *NATSQueue) Receive(ctx context.Context, consumer string, wait time.Duration) (*Message, error) {
	sub, err := q.subscription(consumer)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	msgs, err := sub.Fetch(1, nats.Context(fetchCtx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrNoMessage
		}
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrNoMessage
	}

	m := msgs[0]
	return NewMessage(m.Data, func(ctx context.Context) error {
		return m.Ack(nats.Context(ctx))
	}), nil
}

func (q *NATSQueue) Close() error {
	q.nc.Close()
	return nil
}
