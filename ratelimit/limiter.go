package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultMaxBuckets bounds the number of tracked submitter keys.
	DefaultMaxBuckets = 10000

	// DefaultIdleAfter is how long a bucket may go unused before it is
	// eligible for eviction.
	DefaultIdleAfter = time.Hour
)

// Options configures a Limiter. Capacity, RefillAmount and RefillPeriod are
// shared by every bucket.
type Options struct {
	Capacity     int
	RefillAmount int
	RefillPeriod time.Duration
	MaxBuckets   int
	IdleAfter    time.Duration
}

// Limiter is a token-bucket rate limiter keyed by submitter. Each key gets
// an independent bucket; buckets refill greedily in whole periods so a
// submitter never loses fractional refill progress and never accumulates
// more than Capacity tokens.
type Limiter struct {
	opts Options
	now  func() time.Time

	mu      sync.RWMutex
	buckets map[string]*bucket
}

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
	lastSeen   atomic.Int64 // unix nanos, read by eviction without the bucket lock
}

// New creates a Limiter with the given options.
func New(opts Options) *Limiter {
	if opts.Capacity < 1 {
		opts.Capacity = 1
	}
	if opts.RefillAmount < 1 {
		opts.RefillAmount = 1
	}
	if opts.RefillPeriod <= 0 {
		opts.RefillPeriod = time.Minute
	}
	if opts.MaxBuckets <= 0 {
		opts.MaxBuckets = DefaultMaxBuckets
	}
	if opts.IdleAfter <= 0 {
		opts.IdleAfter = DefaultIdleAfter
	}
	return &Limiter{
		opts:    opts,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// TryConsume takes one token from the bucket for key, creating a full
// bucket on first sight of the key. It reports whether the request is
// admitted. Safe for concurrent use; requests for different keys do not
// contend beyond the map lookup.
func (l *Limiter) TryConsume(key string) bool {
	b := l.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	b.lastSeen.Store(now.UnixNano())

	if periods := int64(now.Sub(b.lastRefill) / l.opts.RefillPeriod); periods > 0 {
		b.tokens += int(periods) * l.opts.RefillAmount
		if b.tokens > l.opts.Capacity {
			b.tokens = l.opts.Capacity
		}
		// Advance by whole periods, not to now, so partial progress
		// toward the next refill is kept.
		b.lastRefill = b.lastRefill.Add(time.Duration(periods) * l.opts.RefillPeriod)
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Size returns the number of tracked buckets.
func (l *Limiter) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

func (l *Limiter) bucket(key string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		return b
	}

	if len(l.buckets) >= l.opts.MaxBuckets {
		l.evictLocked()
	}

	now := l.now()
	b = &bucket{tokens: l.opts.Capacity, lastRefill: now}
	b.lastSeen.Store(now.UnixNano())
	l.buckets[key] = b
	return b
}

// evictLocked drops buckets idle longer than IdleAfter. If none are idle it
// drops the least recently seen bucket so the table never grows past
// MaxBuckets. Caller holds l.mu.
func (l *Limiter) evictLocked() {
	cutoff := l.now().Add(-l.opts.IdleAfter).UnixNano()

	var oldestKey string
	var oldestSeen int64
	for k, b := range l.buckets {
		seen := b.lastSeen.Load()
		if seen < cutoff {
			delete(l.buckets, k)
			continue
		}
		if oldestKey == "" || seen < oldestSeen {
			oldestKey, oldestSeen = k, seen
		}
	}

	if len(l.buckets) >= l.opts.MaxBuckets && oldestKey != "" {
		delete(l.buckets, oldestKey)
	}
}
