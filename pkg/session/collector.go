package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/dynamosession/pkg/logger"
)

// ErrCollectorDisabled is returned by Start when the interval is not positive.
var ErrCollectorDisabled = errors.New("session.collector_disabled")

// Collector runs Handler.GC on a fixed interval, independent of request
// traffic. A failed sweep is logged and the next tick tries again.
type Collector struct {
	handler     Handler
	interval    time.Duration
	maxLifetime time.Duration
	logger      *slog.Logger
}

// CollectorOption is a functional option for configuring a Collector
type CollectorOption func(*Collector)

// WithInterval sets the time between sweeps. Zero disables the collector.
func WithInterval(d time.Duration) CollectorOption {
	return func(c *Collector) {
		if d >= 0 {
			c.interval = d
		}
	}
}

// WithMaxLifetime sets the maxLifetime passed to every GC call.
func WithMaxLifetime(d time.Duration) CollectorOption {
	return func(c *Collector) {
		c.maxLifetime = d
	}
}

// WithCollectorLogger sets the collector logger
func WithCollectorLogger(l *slog.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCollector creates a collector for handler.
func NewCollector(handler Handler, opts ...CollectorOption) *Collector {
	c := &Collector{
		handler:     handler,
		interval:    10 * time.Minute,
		maxLifetime: DefaultLifetime,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("session_gc"))
	return c
}

// Start sweeps once immediately and then on every tick until ctx is done.
// It blocks; run it in its own goroutine.
func (c *Collector) Start(ctx context.Context) error {
	if c.interval <= 0 {
		return ErrCollectorDisabled
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "session gc stopped")
			return ctx.Err()
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Collector) sweep(ctx context.Context) {
	if err := c.handler.GC(ctx, c.maxLifetime); err != nil && ctx.Err() == nil {
		c.logger.ErrorContext(ctx, "session gc failed", logger.Error(err))
	}
}
