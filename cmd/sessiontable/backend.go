package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/dynamosession/pkg/config"
	"github.com/dmitrymomot/dynamosession/pkg/dynamo"
	"github.com/dmitrymomot/dynamosession/pkg/environment"
	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
	"github.com/dmitrymomot/dynamosession/pkg/logger"
	"github.com/dmitrymomot/dynamosession/pkg/mongo"
	"github.com/dmitrymomot/dynamosession/pkg/provision"
	"github.com/dmitrymomot/dynamosession/pkg/redis"
)

var (
	ErrUnknownBackend = errors.New("unknown storage backend")
	ErrMemoryInProd   = errors.New("memory backend is not allowed in production")
)

// openClient builds the kvstore.Client for the selected backend. The
// returned close func releases its connections.
func (a *app) openClient(ctx context.Context) (kvstore.Client, func(), error) {
	log := a.log.With(logger.Backend(a.backend))

	switch a.backend {
	case "dynamodb":
		var cfg dynamo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		client, err := dynamo.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := dynamo.Healthcheck(client)(ctx); err != nil {
			return nil, nil, err
		}
		log.DebugContext(ctx, "connected", slog.String("region", cfg.Region), slog.String("endpoint", cfg.Endpoint))
		return client, func() {}, nil

	case "redis":
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		conn, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		storage := redis.NewStorageWithConfig(conn, cfg)
		if err := redis.Healthcheck(storage)(ctx); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		log.DebugContext(ctx, "connected", slog.String("key_prefix", cfg.KeyPrefix))
		return storage, func() { _ = conn.Close() }, nil

	case "mongo":
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		db, err := mongo.NewWithDatabase(ctx, cfg, "")
		if err != nil {
			return nil, nil, err
		}
		disconnect := func() { _ = db.Client().Disconnect(context.Background()) }
		storage := mongo.NewStorage(db,
			mongo.WithPollInterval(cfg.PollInterval),
			mongo.WithClaimTTL(cfg.ClaimTTL),
		)
		if err := mongo.Healthcheck(storage)(ctx); err != nil {
			disconnect()
			return nil, nil, err
		}
		log.DebugContext(ctx, "connected", slog.String("database", db.Name()))
		return storage, disconnect, nil

	case "memory":
		if environment.IsProduction(ctx) {
			return nil, nil, ErrMemoryInProd
		}
		client := kvstore.NewMemoryClient()
		return client, func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, a.backend)
	}
}

// ensureTable provisions the configured table on client.
func (a *app) ensureTable(ctx context.Context, client kvstore.Client) (*provision.ActiveTable, error) {
	var cfg provision.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	spec, err := cfg.TableSpec()
	if err != nil {
		return nil, err
	}
	return provision.NewFromConfig(client, cfg, provision.WithLogger(a.log)).EnsureTable(ctx, spec)
}
