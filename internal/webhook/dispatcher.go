package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// maxResponseDrain bounds how much of a subscriber's response is read.
const maxResponseDrain = 64 << 10

type Config struct {
	// Secret signs deliveries to endpoints without their own secret.
	Secret     string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// Dispatcher delivers events to subscribed endpoints. Each endpoint gets its
// own goroutine with bounded exponential-backoff retries; nothing is
// reported back to the caller.
type Dispatcher struct {
	cfg       Config
	endpoints EndpointStore
	client    *http.Client
	logger    *zap.Logger
	now       func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(cfg Config, endpoints EndpointStore, client *http.Client, logger *zap.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if client == nil {
		client = NewHTTPClient(cfg.Timeout, false)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:       cfg,
		endpoints: endpoints,
		client:    client,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Emit returns immediately; endpoint lookup and delivery run in the background.
func (d *Dispatcher) Emit(orgID string, eventType EventType, data map[string]any) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.logger.Warn("webhook dispatcher stopped, dropping event",
			zap.String("org_id", orgID), zap.String("event", string(eventType)))
		return
	}
	evt := NewEvent(eventType, data, d.now())

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.fanOut(orgID, evt)
	}()
}

func (d *Dispatcher) fanOut(orgID string, evt Event) {
	logger := d.logger.With(
		zap.String("org_id", orgID),
		zap.String("event", string(evt.Type)),
		zap.String("event_id", evt.ID),
	)

	lookupCtx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
	endpoints, err := d.endpoints.ListSubscribed(lookupCtx, orgID, evt.Type)
	cancel()
	if err != nil {
		logger.Error("webhook endpoint lookup failed", zap.Error(err))
		return
	}
	if len(endpoints) == 0 {
		return
	}

	body, err := json.Marshal(evt)
	if err != nil {
		logger.Error("webhook event encode failed", zap.Error(err))
		return
	}

	for _, ep := range endpoints {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(logger, ep, evt, body)
		}()
	}
}

func (d *Dispatcher) backOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = d.cfg.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = d.cfg.BaseDelay << uint(d.cfg.MaxRetries)
	exp.MaxElapsedTime = 0
	exp.Reset()
	// MaxRetries counts attempts, the wrapper counts retries after the first
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(d.cfg.MaxRetries-1)), d.ctx)
}

func (d *Dispatcher) deliver(logger *zap.Logger, ep Endpoint, evt Event, body []byte) {
	secret := ep.Secret
	if secret == "" {
		secret = d.cfg.Secret
	}
	signature := Sign(secret, evt.Timestamp, body)
	logger = logger.With(zap.String("endpoint_id", ep.ID), zap.String("url", ep.URL))

	attempts := 0
	op := func() error {
		attempts++
		return d.post(ep.URL, evt, body, signature)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("webhook delivery failed, retrying",
			zap.Int("attempt", attempts),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, d.backOff(), notify); err != nil {
		logger.Error("webhook delivery given up", zap.Int("attempts", attempts), zap.Error(err))
		return
	}
	logger.Debug("webhook delivered", zap.Int("attempts", attempts))
}

func (d *Dispatcher) post(url string, evt Event, body []byte, signature string) error {
	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "shortlink-webhooks/1")
	req.Header.Set(HeaderEvent, string(evt.Type))
	req.Header.Set(HeaderID, evt.ID)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(evt.Timestamp, 10))
	req.Header.Set(HeaderSignature, signature)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseDrain))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint responded %d", resp.StatusCode)
	}
	return nil
}

// Start satisfies the kratos transport.Server contract; deliveries start on Emit.
func (d *Dispatcher) Start(context.Context) error { return nil }

// Stop waits for in-flight deliveries until ctx expires, then cancels the
// remaining retries and waits for them to unwind.
func (d *Dispatcher) Stop(ctx context.Context) error {
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
	case <-ctx.Done():
		d.cancel()
		<-done
	}
	d.cancel()
	return nil
}
