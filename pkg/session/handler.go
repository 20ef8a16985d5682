package session

import (
	"context"
	"time"
)

// Handler is the capability set session middleware expects from a storage
// backend. Open is called once per request before the first access and
// Close once after the last; Read and Write any number of times in between;
// Destroy on logout; GC on a schedule independent of requests.
type Handler interface {
	Open(ctx context.Context, savePath, id string) error
	Close(ctx context.Context) error
	Read(ctx context.Context, id string) ([]byte, error)
	Write(ctx context.Context, id string, data []byte) error
	Destroy(ctx context.Context, id string) error
	GC(ctx context.Context, maxLifetime time.Duration) error
}

var _ Handler = (*Store)(nil)
