package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a token bucket. It starts full and refills continuously.
type Bucket struct {
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewBucket creates a full bucket holding up to capacity tokens and
// regaining refillRate tokens per second.
func NewBucket(capacity int, refillRate float64) *Bucket {
	return newBucket(capacity, refillRate, time.Now)
}

func newBucket(capacity int, refillRate float64, now func() time.Time) *Bucket {
	return &Bucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Take consumes one token. It returns false when the bucket is empty.
func (b *Bucket) Take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Tokens returns the number of tokens currently available.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// Reset fills the bucket back up.
func (b *Bucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = b.capacity
	b.lastRefill = b.now()
}

// caller holds b.mu
func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	}
	b.lastRefill = now
}

func (b *Bucket) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRefill
}

// Limiter keeps one Bucket per key, e.g. per user id or per client IP.
type Limiter struct {
	capacity   int
	refillRate float64
	ttl        time.Duration
	now        func() time.Time

	mu      sync.Mutex
	buckets map[string]*Bucket
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithTTL drops buckets that have been idle for longer than ttl on the next Prune.
func WithTTL(ttl time.Duration) Option {
	return func(l *Limiter) {
		l.ttl = ttl
	}
}

// NewLimiter creates a keyed limiter. Every key gets its own bucket of the
// given capacity and refill rate.
func NewLimiter(capacity int, refillRate float64, opts ...Option) *Limiter {
	l := &Limiter{
		capacity:   capacity,
		refillRate: refillRate,
		now:        time.Now,
		buckets:    make(map[string]*Bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes a token for key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = newBucket(l.capacity, l.refillRate, l.now)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	return bucket.Take()
}

// Reset forgets everything about key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Prune removes idle buckets and returns how many were dropped. It is a no-op
// when no TTL is configured.
func (l *Limiter) Prune() int {
	if l.ttl <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, bucket := range l.buckets {
		if now.Sub(bucket.idleSince()) > l.ttl {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
