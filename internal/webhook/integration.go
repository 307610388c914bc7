package webhook

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntegrationDispatcher fans events out to configured targets. A failing
// target is logged and never affects the others.
type IntegrationDispatcher struct {
	targets []Target
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewIntegrationDispatcher(targets []Target, timeout time.Duration, logger *zap.Logger) *IntegrationDispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &IntegrationDispatcher{targets: targets, timeout: timeout, logger: logger, now: time.Now}
}

func (d *IntegrationDispatcher) Emit(orgID string, eventType EventType, data map[string]any) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped || len(d.targets) == 0 {
		return
	}

	evt := NewEvent(eventType, data, d.now())
	for _, target := range d.targets {
		if !target.Accepts(eventType) {
			continue
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := target.Deliver(ctx, orgID, evt); err != nil {
				d.logger.Warn("integration delivery failed",
					zap.String("target", target.Name()),
					zap.String("event", string(eventType)),
					zap.String("event_id", evt.ID),
					zap.Error(err),
				)
			}
		}()
	}
}

func (d *IntegrationDispatcher) Start(context.Context) error { return nil }

// Stop refuses new events and waits for in-flight deliveries.
func (d *IntegrationDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
