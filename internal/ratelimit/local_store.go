package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	idleBucketTTL = time.Hour
	sweepInterval = 10 * time.Minute
)

type localBucket struct {
	limiter  *rate.Limiter
	budget   Budget
	lastSeen time.Time
}

// LocalStore keeps one golang.org/x/time/rate bucket per key in memory.
// It is accurate per process only.
type LocalStore struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
}

func NewLocalStore() *LocalStore {
	return &LocalStore{buckets: make(map[string]*localBucket)}
}

func refillPerSecond(b Budget) float64 {
	return float64(b.Limit) / b.Window.Seconds()
}

func (s *LocalStore) Take(_ context.Context, key string, budget Budget, now time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now)

	bucket, ok := s.buckets[key]
	if !ok || bucket.budget != budget {
		bucket = &localBucket{
			limiter: rate.NewLimiter(rate.Limit(refillPerSecond(budget)), budget.Limit),
			budget:  budget,
		}
		s.buckets[key] = bucket
	}
	bucket.lastSeen = now

	allowed := bucket.limiter.AllowN(now, 1)
	tokens := bucket.limiter.TokensAt(now)
	// seconds needed to refill n tokens
	refill := func(n float64) time.Duration {
		return secondsToDuration(n * budget.Window.Seconds() / float64(budget.Limit))
	}

	res := Result{
		Allowed:   allowed,
		Limit:     budget.Limit,
		Remaining: max(0, int(math.Floor(tokens))),
		ResetAt:   now.Add(refill(float64(budget.Limit) - tokens)),
	}
	if !allowed {
		res.RetryAfter = refill(1 - tokens)
	}
	return res, nil
}

func (s *LocalStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now
	for key, b := range s.buckets {
		if now.Sub(b.lastSeen) > idleBucketTTL {
			delete(s.buckets, key)
		}
	}
}

func secondsToDuration(sec float64) time.Duration {
	if sec <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(sec * float64(time.Second)))
}
