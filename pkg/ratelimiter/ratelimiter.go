package ratelimiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Bucket implements a token bucket. It is safe for concurrent use.
type Bucket struct {
	config Config
	now    func() time.Time

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// Option configures a Bucket.
type Option func(*Bucket)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Bucket) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBucket creates a full token bucket.
func NewBucket(config Config, opts ...Option) (*Bucket, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	b := &Bucket{
		config: config,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.tokens = config.Capacity
	b.lastRefill = b.now()
	return b, nil
}

func (b *Bucket) Allow() (*Result, error) {
	return b.AllowN(1)
}

// AllowN takes n tokens if all of them are available. A denied call takes nothing.
func (b *Bucket) AllowN(n int) (*Result, error) {
	if n <= 0 || n > b.config.Capacity {
		return nil, fmt.Errorf("%w: must be in 1..%d, got %d", ErrInvalidTokenCount, b.config.Capacity, n)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	res := &Result{Limit: b.config.Capacity}
	if b.tokens >= n {
		b.tokens -= n
		res.allowed = true
	}
	res.Remaining = b.tokens
	res.ResetAt = b.lastRefill.Add(b.config.RefillInterval)
	return res, nil
}

func (b *Bucket) Wait(ctx context.Context) error {
	return b.WaitN(ctx, 1)
}

// WaitN blocks until n tokens are taken or ctx is done.
func (b *Bucket) WaitN(ctx context.Context, n int) error {
	for {
		res, err := b.AllowN(n)
		if err != nil {
			return err
		}
		if res.Allowed() {
			return nil
		}

		timer := time.NewTimer(res.RetryAfter(b.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill adds the tokens earned since the last refill. Caller holds mu.
func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill)
	// Cap intervals to prevent integer overflow in high-capacity/low-rate scenarios
	maxIntervals := int64(b.config.Capacity/b.config.RefillRate + 1)
	intervals := int(min(int64(elapsed/b.config.RefillInterval), maxIntervals))
	if intervals <= 0 {
		return
	}

	b.tokens = min(b.tokens+intervals*b.config.RefillRate, b.config.Capacity)
	// Advance by whole intervals to prevent time drift accumulation
	b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * b.config.RefillInterval)
	if now.Sub(b.lastRefill) >= b.config.RefillInterval {
		b.lastRefill = now
	}
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}
