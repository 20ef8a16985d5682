// Package kvstore defines the backing-store contract used to provision the
// session table and to persist session records, together with the shared
// types and error values every backend maps its own failures onto.
//
// Backends live in sibling packages (dynamodb, redis, mongo). MemoryClient is
// an in-process implementation for tests and local development; it can
// report either API generation and simulate slow table creation:
//
//	client := kvstore.NewMemoryClient(
//	    kvstore.WithActivationDelay(200*time.Millisecond),
//	)
//
// # Errors
//
// Backends translate their native failures into the sentinel values below so
// callers can branch with errors.Is:
//
//   - ErrTableNotFound – the table does not exist (creation trigger)
//   - ErrTableInUse    – the table exists or is being created
//   - ErrItemNotFound  – no record under the key
//   - ErrWaitTimeout   – table did not become active in time
package kvstore
