package data

import (
	"fmt"

	"go-shortlink/internal/analytics/pipeline"
	"go-shortlink/internal/conf"

	"go.uber.org/zap"
)

// NewClickQueue builds the configured click queue. It returns a nil queue
// for backend "none", or for "redis" without a Redis connection; clicks are
// then processed inline.
func NewClickQueue(c conf.Data, d *Data, logger *zap.Logger) (pipeline.Queue, func(), error) {
	switch c.Queue.Backend {
	case "redis", "":
		if d.Redis == nil {
			logger.Warn("click queue disabled, redis not configured")
			return nil, func() {}, nil
		}
		return pipeline.NewRedisQueue(d.Redis, c.Queue.Key), func() {}, nil
	case "nats":
		q, err := pipeline.NewNATSQueue(pipeline.NATSConfig{
			URL:     c.Queue.NATSURL,
			Stream:  c.Queue.Stream,
			Subject: c.Queue.Subject,
			Durable: c.Queue.Durable,
			AckWait: c.Queue.AckWait.Std(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect click queue: %w", err)
		}
		cleanup := func() {
			if err := q.Close(); err != nil {
				logger.Error("close click queue", zap.Error(err))
			}
		}
		return q, cleanup, nil
	case "none":
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown click queue backend %q", c.Queue.Backend)
	}
}
