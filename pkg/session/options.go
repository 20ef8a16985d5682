package session

import (
	"log/slog"
	"time"
)

// DefaultLifetime matches the conventional 1440 second session lifetime.
const DefaultLifetime = 24 * time.Minute

// Option is a functional option for configuring the Store
type Option func(*Store)

// WithLifetime sets how long a written session stays readable.
// Non-positive values are ignored.
func WithLifetime(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

// WithKeyPrefix namespaces stored ids, e.g. per application sharing a table.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.keyPrefix = prefix
	}
}

// WithLogger sets the store logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for expiry stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDeleteRate caps GC deletes per second, e.g. to the table's write
// capacity. Zero leaves deletes unthrottled.
func WithDeleteRate(perSecond int) Option {
	return func(s *Store) {
		if perSecond >= 0 {
			s.deleteRate = perSecond
		}
	}
}
