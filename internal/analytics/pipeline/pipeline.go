package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-shortlink/internal/analytics/domain"

	"go.uber.org/zap"
)

// Pipeline is the producer side used by the redirect path.
type Pipeline struct {
	queue     Queue
	processor ClickProcessor
	logger    *zap.Logger
	now       func() time.Time
}

// NewPipeline builds the producer. A nil queue processes every click inline.
func NewPipeline(queue Queue, processor ClickProcessor, logger *zap.Logger) *Pipeline {
	return &Pipeline{queue: queue, processor: processor, logger: logger, now: time.Now}
}

// Enqueue publishes the click. When the queue rejects it the click is
// processed synchronously instead so it is not lost.
func (p *Pipeline) Enqueue(ctx context.Context, in domain.ClickInput) error {
	in.Normalize(p.now())
	if err := in.Validate(); err != nil {
		return err
	}

	if p.queue != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode click: %w", err)
		}
		err = p.queue.Publish(ctx, body)
		if err == nil {
			return nil
		}
		p.logger.Warn("click queue unavailable, processing inline",
			zap.Int64("link_id", in.LinkID), zap.Error(err))
	}

	return p.processor.Process(ctx, in)
}
