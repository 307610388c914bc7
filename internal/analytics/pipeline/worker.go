package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go-shortlink/internal/analytics/domain"

	"github.com/go-kratos/kratos/v2/transport"
	"go.uber.org/zap"
)

type WorkerConfig struct {
	// ConsumerID names this worker's consumers. It must survive restarts
	// for the worker to reclaim its own in-flight clicks; the hostname is
	// used when empty.
	ConsumerID      string
	Concurrency     int
	PollTimeout     time.Duration
	ProcessTimeout  time.Duration
	ReclaimInterval time.Duration
}

// Worker runs the consumer loops as a kratos server.
type Worker struct {
	queue     Queue
	processor ClickProcessor
	cfg       WorkerConfig
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ transport.Server = (*Worker)(nil)

func NewWorker(queue Queue, processor ClickProcessor, cfg WorkerConfig, logger *zap.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 10 * time.Second
	}
	if cfg.ReclaimInterval <= 0 {
		cfg.ReclaimInterval = time.Minute
	}
	return &Worker{queue: queue, processor: processor, cfg: cfg, logger: logger}
}

func (w *Worker) Start(ctx context.Context) error {
	if w.queue == nil {
		w.logger.Info("click worker disabled, no queue configured")
		return nil
	}
	ctx, w.cancel = context.WithCancel(ctx)

	name := w.cfg.ConsumerID
	if name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "worker"
		}
		name = host
	}
	for i := 0; i < w.cfg.Concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", name, i)
		if r, ok := w.queue.(Recoverer); ok {
			n, err := r.Recover(ctx, consumer)
			if err != nil {
				w.logger.Warn("click recovery failed", zap.String("consumer", consumer), zap.Error(err))
			} else if n > 0 {
				w.logger.Info("requeued unacknowledged clicks", zap.String("consumer", consumer), zap.Int("count", n))
			}
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.loop(ctx, consumer)
		}()
	}
	if r, ok := w.queue.(OrphanRecoverer); ok {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.reclaim(ctx, r)
		}()
	}
	w.logger.Info("click worker started", zap.String("name", name), zap.Int("consumers", w.cfg.Concurrency))
	return nil
}

// reclaim requeues clicks held by dead consumers now and on every interval.
func (w *Worker) reclaim(ctx context.Context, r OrphanRecoverer) {
	ticker := time.NewTicker(w.cfg.ReclaimInterval)
	defer ticker.Stop()
	for {
		n, err := r.RecoverOrphans(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			w.logger.Warn("orphaned click recovery failed", zap.Error(err))
		case n > 0:
			w.logger.Info("requeued clicks of departed consumers", zap.Int("count", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.logger.Info("click worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(ctx context.Context, consumer string) {
	logger := w.logger.With(zap.String("consumer", consumer))
	for ctx.Err() == nil {
		msg, err := w.queue.Receive(ctx, consumer, w.cfg.PollTimeout)
		if errors.Is(err, ErrNoMessage) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("click queue receive failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.PollTimeout):
			}
			continue
		}
		w.handle(logger, msg)
	}
}

// handle acks every message, failed ones included.
func (w *Worker) handle(logger *zap.Logger, msg *Message) {
	var in domain.ClickInput
	if err := json.Unmarshal(msg.Body, &in); err != nil {
		logger.Error("undecodable click dropped", zap.Error(err))
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ProcessTimeout)
		if err := w.processor.Process(ctx, in); err != nil {
			logger.Error("click processing failed", zap.Int64("link_id", in.LinkID), zap.Error(err))
		}
		cancel()
	}

	ackCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := msg.Ack(ackCtx); err != nil {
		logger.Warn("click ack failed", zap.Error(err))
	}
}
