package kvstore

import (
	"context"
	"time"
)

// Client is the backing-store contract consumed by the provisioner and the
// session store. Implementations must be safe for concurrent use.
type Client interface {
	// APIVersion reports the API generation the client speaks.
	APIVersion() string

	// Ping verifies that the store is reachable.
	Ping(ctx context.Context) error

	// DescribeTable returns table metadata or ErrTableNotFound.
	DescribeTable(ctx context.Context, name string) (*TableMetadata, error)

	// CreateTable starts table creation. Returns ErrTableInUse when the
	// table already exists or is being created.
	CreateTable(ctx context.Context, req CreateTableRequest) error

	// WaitUntilActive blocks until the table is usable, the timeout elapses
	// (ErrWaitTimeout) or ctx is done.
	WaitUntilActive(ctx context.Context, name string, timeout time.Duration) error

	// GetItem returns the record stored under id or ErrItemNotFound.
	GetItem(ctx context.Context, table TableRef, id string) (*Record, error)

	// PutItem stores the full record, replacing any previous one.
	PutItem(ctx context.Context, table TableRef, rec Record) error

	// DeleteItem removes the record. Deleting an absent record is not an error.
	DeleteItem(ctx context.Context, table TableRef, id string) error

	// Scan returns records matching the input filter.
	Scan(ctx context.Context, in ScanInput) ([]Record, error)
}
