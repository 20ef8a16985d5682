package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
	"github.com/dmitrymomot/dynamosession/pkg/logger"
	"github.com/dmitrymomot/dynamosession/pkg/provision"
	"github.com/dmitrymomot/dynamosession/pkg/ratelimiter"
)

// Store implements Handler on top of a kvstore.Client. It holds no
// per-request state and is safe for concurrent use by many requests.
// Nothing is retried here; retries belong to the client.
type Store struct {
	client    kvstore.Client
	table     kvstore.TableRef
	lifetime  time.Duration
	keyPrefix string
	now       func() time.Time
	logger    *slog.Logger
	connected atomic.Bool

	deleteRate    int
	deleteLimiter *ratelimiter.Bucket
}

// NewStore binds a store to a table that EnsureTable has reported active.
func NewStore(client kvstore.Client, table *provision.ActiveTable, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	ref := table.Ref()
	if ref.Name == "" || ref.HashKey == "" {
		return nil, ErrTableNotProvisioned
	}

	s := &Store{
		client:   client,
		table:    ref,
		lifetime: DefaultLifetime,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deleteRate > 0 {
		b, err := ratelimiter.NewBucket(ratelimiter.PerSecond(s.deleteRate))
		if err != nil {
			return nil, err
		}
		s.deleteLimiter = b
	}
	s.logger = s.logger.With(logger.Component("session"), logger.Table(ref.Name))
	return s, nil
}

// NewStoreFromConfig creates a Store from the provided Config.
func NewStoreFromConfig(client kvstore.Client, table *provision.ActiveTable, cfg Config, opts ...Option) (*Store, error) {
	return NewStore(client, table, append(cfg.Options(), opts...)...)
}

// Open verifies the backing store is reachable. The check runs until it
// succeeds once; later calls are free. savePath has no meaning for a
// key-value store and is ignored.
func (s *Store) Open(ctx context.Context, savePath, id string) error {
	if s.connected.Load() {
		return nil
	}
	if err := s.client.Ping(ctx); err != nil {
		s.logger.ErrorContext(ctx, "session store unreachable", logger.SessionID(id), logger.Error(err))
		return errors.Join(ErrConnectionFailed, err)
	}
	s.connected.Store(true)
	return nil
}

// Close releases per-request resources. There are none; it always succeeds.
func (s *Store) Close(ctx context.Context) error {
	return nil
}

// Read returns the stored payload. Missing or expired sessions yield an
// empty payload and no error.
func (s *Store) Read(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, ErrInvalidSessionID
	}

	rec, err := s.client.GetItem(ctx, s.table, s.key(id))
	switch {
	case errors.Is(err, kvstore.ErrItemNotFound):
		return []byte{}, nil
	case err != nil:
		return nil, errors.Join(ErrUpstream, err)
	}

	if expired(rec.Expires, s.now()) {
		return []byte{}, nil
	}
	if rec.Data == nil {
		return []byte{}, nil
	}
	return rec.Data, nil
}

// Write stores the whole payload in one put; it is never partially applied.
func (s *Store) Write(ctx context.Context, id string, data []byte) error {
	if id == "" {
		return ErrInvalidSessionID
	}

	now := s.now()
	rec := kvstore.Record{
		ID:       s.key(id),
		Data:     data,
		Expires:  now.Add(s.lifetime).Unix(),
		Modified: now.Unix(),
	}
	if err := s.client.PutItem(ctx, s.table, rec); err != nil {
		return errors.Join(ErrUpstream, err)
	}
	return nil
}

// Destroy deletes the session. Destroying an absent session succeeds.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidSessionID
	}

	err := s.client.DeleteItem(ctx, s.table, s.key(id))
	if err != nil && !errors.Is(err, kvstore.ErrItemNotFound) {
		return errors.Join(ErrUpstream, err)
	}
	return nil
}

// GC deletes sessions that expired or were last written more than
// maxLifetime ago. A non-positive maxLifetime only removes expired sessions.
// Deletion continues past individual failures; all of them are reported.
func (s *Store) GC(ctx context.Context, maxLifetime time.Duration) error {
	start := time.Now()
	now := s.now()
	in := kvstore.ScanInput{
		Table: s.table,
		AnyOf: []kvstore.Condition{{Attribute: kvstore.AttrExpires, Before: expiryCutoff(now)}},
	}
	if maxLifetime > 0 {
		in.AnyOf = append(in.AnyOf, kvstore.Condition{
			Attribute: kvstore.AttrModified,
			Before:    now.Add(-maxLifetime).Unix(),
		})
	}

	recs, err := s.client.Scan(ctx, in)
	if err != nil {
		s.logger.ErrorContext(ctx, "session gc scan failed", logger.Error(err))
		return errors.Join(ErrUpstream, err)
	}

	var errs []error
	deleted := 0
	for _, rec := range recs {
		if !strings.HasPrefix(rec.ID, s.keyPrefix) {
			continue
		}
		if err := s.throttleDelete(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.client.DeleteItem(ctx, s.table, rec.ID); err != nil && !errors.Is(err, kvstore.ErrItemNotFound) {
			errs = append(errs, err)
			continue
		}
		deleted++
	}

	s.logger.InfoContext(ctx, "session gc finished",
		logger.Count(deleted),
		slog.Int("failed", len(errs)),
		logger.Duration(time.Since(start)),
	)
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrUpstream}, errs...)...)
	}
	return nil
}

// expired reports whether a record with the given expiry is no longer
// readable at now. A zero expiry never expires.
func expired(expires int64, now time.Time) bool {
	return expires > 0 && expires < expiryCutoff(now)
}

// expiryCutoff is the exclusive upper bound of expired timestamps, so Read
// and GC agree on a record expiring in the current second.
func expiryCutoff(now time.Time) int64 {
	return now.Unix() + 1
}

// throttleDelete keeps GC deletes within the configured write rate.
func (s *Store) throttleDelete(ctx context.Context) error {
	if s.deleteLimiter == nil {
		return ctx.Err()
	}
	return s.deleteLimiter.Wait(ctx)
}

func (s *Store) key(id string) string {
	return s.keyPrefix + id
}
