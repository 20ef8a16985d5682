package redis

import (
	"context"
	"errors"
)

// Healthcheck returns a readiness check for the storage. Besides reaching the
// server it verifies that the configured key prefix is writable: a read-only
// replica answers PING but cannot hold session tables.
func Healthcheck(s *Storage) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := s.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		key := s.prefix + "healthcheck"
		if err := s.db.Set(ctx, key, s.now().Unix(), healthcheckTTL).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
