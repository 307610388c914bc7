package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Target is a fixed-shape third-party integration.
type Target interface {
	Name() string
	Accepts(eventType EventType) bool
	Deliver(ctx context.Context, orgID string, evt Event) error
}

// eventFilter accepts every type when empty.
type eventFilter []string

func (f eventFilter) accepts(t EventType) bool {
	return len(f) == 0 || slices.Contains(f, "*") || slices.Contains(f, string(t))
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any, decorate func(*http.Request)) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if decorate != nil {
		decorate(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseDrain))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s responded %d", url, resp.StatusCode)
	}
	return nil
}

// GenericTarget posts the event envelope as is.
type GenericTarget struct {
	url    string
	events eventFilter
	client *http.Client
}

func NewGenericTarget(url string, events []string, client *http.Client) *GenericTarget {
	return &GenericTarget{url: url, events: events, client: client}
}

func (t *GenericTarget) Name() string              { return "generic" }
func (t *GenericTarget) Accepts(et EventType) bool { return t.events.accepts(et) }

func (t *GenericTarget) Deliver(ctx context.Context, _ string, evt Event) error {
	return postJSON(ctx, t.client, t.url, evt, func(r *http.Request) {
		r.Header.Set(HeaderEvent, string(evt.Type))
		r.Header.Set(HeaderID, evt.ID)
	})
}

// ChatTarget posts a one-line message to an incoming-webhook chat URL.
type ChatTarget struct {
	url    string
	events eventFilter
	client *http.Client
}

func NewChatTarget(url string, events []string, client *http.Client) *ChatTarget {
	return &ChatTarget{url: url, events: events, client: client}
}

func (t *ChatTarget) Name() string              { return "chat" }
func (t *ChatTarget) Accepts(et EventType) bool { return t.events.accepts(et) }

func (t *ChatTarget) Deliver(ctx context.Context, _ string, evt Event) error {
	return postJSON(ctx, t.client, t.url, map[string]string{"text": ChatMessage(evt)}, nil)
}

// ChatMessage renders an event as a short human-readable line.
func ChatMessage(evt Event) string {
	str := func(key string) string {
		if v, ok := evt.Data[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return "?"
	}
	switch evt.Type {
	case EventLinkCreated:
		return fmt.Sprintf("Link /%s created for %s", str("short_code"), str("destination_url"))
	case EventLinkDeleted:
		return fmt.Sprintf("Link /%s deleted", str("short_code"))
	case EventClickRecorded:
		country := str("country_code")
		if country == "?" || country == "" {
			country = "unknown location"
		}
		return fmt.Sprintf("Click on /%s from %s", str("short_code"), country)
	case EventWebhookTest:
		return "Test notification from shortlink"
	default:
		return fmt.Sprintf("Event %s", evt.Type)
	}
}

// CollectorTarget batches events for an analytics collector and flushes
// when the batch is full or on an interval. It runs as a lifecycle server.
type CollectorTarget struct {
	url           string
	writeKey      string
	events        eventFilter
	client        *http.Client
	batchSize     int
	flushInterval time.Duration
	timeout       time.Duration
	logger        *zap.Logger

	mu      sync.Mutex
	pending []collectorEvent
	full    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

type collectorEvent struct {
	Type        string         `json:"type"`
	Event       string         `json:"event"`
	MessageID   string         `json:"messageId"`
	AnonymousID string         `json:"anonymousId"`
	Timestamp   string         `json:"timestamp"`
	Properties  map[string]any `json:"properties"`
}

type collectorBatch struct {
	Batch  []collectorEvent `json:"batch"`
	SentAt string           `json:"sent_at"`
}

type CollectorConfig struct {
	URL           string
	WriteKey      string
	Events        []string
	BatchSize     int
	FlushInterval time.Duration
	Timeout       time.Duration
}

func NewCollectorTarget(cfg CollectorConfig, client *http.Client, logger *zap.Logger) *CollectorTarget {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &CollectorTarget{
		url:           cfg.URL,
		writeKey:      cfg.WriteKey,
		events:        cfg.Events,
		client:        client,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		timeout:       cfg.Timeout,
		logger:        logger,
		full:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (t *CollectorTarget) Name() string              { return "collector" }
func (t *CollectorTarget) Accepts(et EventType) bool { return t.events.accepts(et) }

// Deliver only buffers; the flush loop does the network work.
func (t *CollectorTarget) Deliver(_ context.Context, orgID string, evt Event) error {
	t.mu.Lock()
	t.pending = append(t.pending, collectorEvent{
		Type:        "track",
		Event:       string(evt.Type),
		MessageID:   evt.ID,
		AnonymousID: orgID,
		Timestamp:   time.Unix(evt.Timestamp, 0).UTC().Format(time.RFC3339),
		Properties:  evt.Data,
	})
	isFull := len(t.pending) >= t.batchSize
	t.mu.Unlock()

	if isFull {
		select {
		case t.full <- struct{}{}:
		default:
		}
	}
	return nil
}

// Start runs the flush loop until Stop.
func (t *CollectorTarget) Start(context.Context) error {
	go t.run()
	return nil
}

func (t *CollectorTarget) run() {
	defer close(t.done)
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			t.Flush(context.Background())
			return
		case <-ticker.C:
			t.Flush(context.Background())
		case <-t.full:
			t.Flush(context.Background())
		}
	}
}

// Stop ends the loop after a final flush.
func (t *CollectorTarget) Stop(ctx context.Context) error {
	t.once.Do(func() { close(t.stop) })
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush sends everything pending, batchSize events per request. A failed
// batch is logged and dropped.
func (t *CollectorTarget) Flush(ctx context.Context) {
	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	for len(pending) > 0 {
		n := min(len(pending), t.batchSize)
		batch := collectorBatch{Batch: pending[:n], SentAt: time.Now().UTC().Format(time.RFC3339)}
		pending = pending[n:]

		reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
		err := postJSON(reqCtx, t.client, t.url, batch, func(r *http.Request) {
			if t.writeKey != "" {
				r.SetBasicAuth(t.writeKey, "")
			}
		})
		cancel()
		if err != nil {
			t.logger.Warn("collector batch dropped", zap.Int("events", n), zap.Error(err))
		}
	}
}
