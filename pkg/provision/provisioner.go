package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
	"github.com/dmitrymomot/dynamosession/pkg/logger"
)

// Provisioner makes sure the session table exists and is active before any
// session traffic is served. It is safe for concurrent use.
type Provisioner struct {
	client      kvstore.Client
	encode      schemaEncoder
	waitTimeout time.Duration
	logger      *slog.Logger
	group       singleflight.Group
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithWaitTimeout bounds the wait for a new table to become active.
// Non-positive values are ignored.
func WithWaitTimeout(d time.Duration) Option {
	return func(p *Provisioner) {
		if d > 0 {
			p.waitTimeout = d
		}
	}
}

// WithLogger sets the logger used to report provisioning progress.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provisioner) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Provisioner. The key schema encoding is chosen here, once,
// from the API generation the client reports.
func New(client kvstore.Client, opts ...Option) *Provisioner {
	if client == nil {
		panic(ErrNilClient)
	}

	p := &Provisioner{
		client:      client,
		encode:      selectSchemaEncoder(client.APIVersion()),
		waitTimeout: DefaultWaitTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(logger.Component("provision"))
	return p
}

// EnsureTable returns once the table described by spec exists and is active,
// creating it on first run. Calling it again for an active table issues no
// create request.
//
// Only a "table not found" answer triggers creation. Any other failure while
// checking the table is returned joined with ErrUpstream. A racing creator's
// "already exists" answer is tolerated. Concurrent calls for the same table
// name within this process share a single execution; each caller still stops
// on its own context, and a caller whose shared execution was abandoned by
// another caller's cancellation starts a new one.
func (p *Provisioner) EnsureTable(ctx context.Context, spec TableSpec) (*ActiveTable, error) {
	if !spec.valid() {
		return nil, ErrInvalidSpec
	}

	for {
		var leader bool
		ch := p.group.DoChan(spec.tableName, func() (any, error) {
			leader = true
			return p.ensure(ctx, spec)
		})

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrWaitAbandoned, ctx.Err())
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(*ActiveTable), nil
			}
			if !leader && ctx.Err() == nil && cancelled(res.Err) {
				p.logger.DebugContext(ctx, "shared provisioning was abandoned, retrying",
					logger.Table(spec.tableName))
				continue
			}
			return nil, res.Err
		}
	}
}

// cancelled reports whether err stems from a context ending rather than
// from the store.
func cancelled(err error) bool {
	return errors.Is(err, ErrWaitAbandoned) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (p *Provisioner) ensure(ctx context.Context, spec TableSpec) (*ActiveTable, error) {
	log := p.logger.With(logger.Table(spec.tableName))

	meta, err := p.client.DescribeTable(ctx, spec.tableName)
	switch {
	case errors.Is(err, kvstore.ErrTableNotFound), err == nil && meta.Status == kvstore.StatusAbsent:
		if err := p.create(ctx, spec, log); err != nil {
			return nil, err
		}
	case err != nil:
		log.ErrorContext(ctx, "failed to describe session table", logger.Error(err))
		return nil, errors.Join(ErrUpstream, err)
	case meta.Status.Usable():
		log.DebugContext(ctx, "session table is active", slog.String("status", string(meta.Status)))
		return &ActiveTable{ref: spec.ref()}, nil
	case meta.Status == kvstore.StatusCreating:
		log.InfoContext(ctx, "session table is being created by another process")
	default:
		return nil, errors.Join(ErrUpstream,
			fmt.Errorf("%w: table %q is %s", ErrTableUnavailable, spec.tableName, meta.Status))
	}

	if err := p.wait(ctx, spec, log); err != nil {
		return nil, err
	}
	return &ActiveTable{ref: spec.ref()}, nil
}

func (p *Provisioner) create(ctx context.Context, spec TableSpec, log *slog.Logger) error {
	req := kvstore.CreateTableRequest{
		TableName:     spec.tableName,
		KeySchema:     p.encode(spec.hashKey),
		ReadCapacity:  spec.readCapacity,
		WriteCapacity: spec.writeCapacity,
	}

	log.InfoContext(ctx, "creating session table",
		slog.String("hash_key", spec.hashKey),
		slog.Int64("read_capacity", spec.readCapacity),
		slog.Int64("write_capacity", spec.writeCapacity),
	)

	err := p.client.CreateTable(ctx, req)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, kvstore.ErrTableInUse):
		log.InfoContext(ctx, "session table was created concurrently", logger.Error(err))
		return nil
	default:
		log.ErrorContext(ctx, "failed to create session table", logger.Error(err))
		return errors.Join(ErrUpstream, err)
	}
}

func (p *Provisioner) wait(ctx context.Context, spec TableSpec, log *slog.Logger) error {
	start := time.Now()
	err := p.client.WaitUntilActive(ctx, spec.tableName, p.waitTimeout)
	switch {
	case err == nil:
		log.InfoContext(ctx, "session table is active", logger.Duration(time.Since(start)))
		return nil
	case ctx.Err() != nil:
		log.WarnContext(ctx, "stopped waiting for session table", logger.Error(ctx.Err()))
		return errors.Join(ErrWaitAbandoned, ctx.Err())
	case errors.Is(err, kvstore.ErrWaitTimeout):
		log.ErrorContext(ctx, "session table did not become active",
			slog.Duration("timeout", p.waitTimeout))
		return errors.Join(ErrTimeout, err)
	default:
		log.ErrorContext(ctx, "failed waiting for session table", logger.Error(err))
		return errors.Join(ErrUpstream, err)
	}
}
