// Package redis connects to Redis and exposes it as a kvstore.Client so the
// session table can live in Redis instead of DynamoDB.
//
// The package wraps the go-redis client and adds:
//
//   - Robust `Connect` which retries the connection using the supplied
//     configuration.
//   - `Storage`, a kvstore.Client implementation. Table metadata is a hash
//     claimed by a Lua script with an expiring claim, records are hashes
//     carrying a native TTL equal to their expiry.
//   - Health-check helpers to integrate Redis into liveness / readiness probes.
//
// Configuration is described by the `Config` struct whose fields can be
// populated from environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    // handle error, probably terminate the application
//	}
//	defer client.Close()
//
//	store := redis.NewStorageWithConfig(client, cfg)
//	table, err := provision.New(store).EnsureTable(ctx, spec)
//
// Register a health-check in your observability stack:
//
//	checker := redis.Healthcheck(store)
//	if err := checker(ctx); err != nil {
//	    // redis is not healthy
//	}
//
// # Errors
//
// The package defines several sentinel errors (e.g. ErrRedisNotReady) that wrap
// the underlying go-redis errors using errors.Join. Storage reports missing
// tables and records with the kvstore sentinels.
package redis
