package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// leaseTTL is how long a consumer counts as alive after its last poll.
const leaseTTL = 30 * time.Second

// RedisQueue is a list-backed queue. Receive moves the item into a
// per-consumer processing list and Ack removes it from there. Every poll
// renews the consumer's lease so lists of dead consumers can be reclaimed.
type RedisQueue struct {
	rdb redis.UniversalClient
	key string
}

var (
	_ Queue     = (*RedisQueue)(nil)
	_ Recoverer       = (*RedisQueue)(nil)
	_ OrphanRecoverer = (*RedisQueue)(nil)
)

func NewRedisQueue(rdb redis.UniversalClient, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) processingKey(consumer string) string {
	return q.key + ":processing:" + consumer
}

func (q *RedisQueue) leaseKey(consumer string) string {
	return q.key + ":lease:" + consumer
}

func (q *RedisQueue) Publish(ctx context.Context, body []byte) error {
	if err := q.rdb.LPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("push click: %w", err)
	}
	return nil
}

func (q *RedisQueue) Receive(ctx context.Context, consumer string, wait time.Duration) (*Message, error) {
	processing := q.processingKey(consumer)
	if err := q.rdb.Set(ctx, q.leaseKey(consumer), time.Now().Unix(), leaseTTL+wait).Err(); err != nil {
		return nil, fmt.Errorf("renew lease: %w", err)
	}
	body, err := q.rdb.BLMove(ctx, q.key, processing, "RIGHT", "LEFT", wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoMessage
	}
	if err != nil {
		return nil, err
	}
	return NewMessage([]byte(body), func(ctx context.Context) error {
		return q.rdb.LRem(ctx, processing, 1, body).Err()
	}), nil
}

// Recover returns everything left in consumer's processing list to the
// head of the queue, oldest first.
func (q *RedisQueue) Recover(ctx context.Context, consumer string) (int, error) {
	processing := q.processingKey(consumer)
	n := 0
	for {
		err := q.rdb.LMove(ctx, processing, q.key, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover %s: %w", processing, err)
		}
		n++
	}
}

// RecoverOrphans requeues the processing lists of consumers whose lease has
// expired, such as workers that crashed and came back under another name.
func (q *RedisQueue) RecoverOrphans(ctx context.Context) (int, error) {
	prefix := q.key + ":processing:"
	total := 0
	iter := q.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		consumer := strings.TrimPrefix(iter.Val(), prefix)
		alive, err := q.rdb.Exists(ctx, q.leaseKey(consumer)).Result()
		if err != nil {
			return total, fmt.Errorf("check lease of %s: %w", consumer, err)
		}
		if alive > 0 {
			continue
		}
		n, err := q.Recover(ctx, consumer)
		total += n
		if err != nil {
			return total, err
		}
	}
	if err := iter.Err(); err != nil {
		return total, fmt.Errorf("scan processing lists: %w", err)
	}
	return total, nil
}

// Close is a no-op; the client belongs to the data layer.
func (q *RedisQueue) Close() error { return nil }
