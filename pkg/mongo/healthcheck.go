package mongo

import (
	"context"
	"errors"
)

// Healthcheck returns a readiness check for the storage.
//
// Besides pinging the deployment it counts the table metadata collection, which
// fails when the credentials cannot read the configured database.
func Healthcheck(s *Storage) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := s.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		if _, err := s.db.Collection(s.meta).EstimatedDocumentCount(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
