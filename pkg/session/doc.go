// Package session provides a session-handler backend on top of a key-value
// store whose table has been provisioned by package provision.
//
// Store implements Handler, the capability set session middleware drives
// for every request:
//
//	Open  -> Read / Write ... -> Close
//	Destroy on logout, GC on a schedule
//
// A Store can only be constructed from a *provision.ActiveTable, so session
// traffic never reaches a table that is missing or still being created.
//
// # Usage
//
//	table, err := provision.New(client).EnsureTable(ctx, spec)
//	if err != nil {
//	    return err
//	}
//	store, err := session.NewStore(client, table,
//	    session.WithLifetime(time.Hour),
//	    session.WithKeyPrefix("app_"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	go session.NewCollector(store, session.WithInterval(10*time.Minute)).Start(ctx)
//
// # Semantics
//
//   - Read of a missing or expired session returns an empty payload, not an error.
//   - Write replaces the whole record in a single put.
//   - Destroy of a missing session succeeds.
//   - GC removes sessions that expired or were not written within maxLifetime.
//
// Stored records carry the opaque payload, an expiry stamp (write time plus
// the configured lifetime) and the last write time. Payload encoding,
// cookies and authentication are left to the caller.
//
// # Errors
//
//   - ErrConnectionFailed – Open could not reach the store
//   - ErrUpstream         – any other store failure, joined with the cause
//   - ErrInvalidSessionID – empty session id
//
// No operation retries; retry and backoff belong to the store client.
package session
