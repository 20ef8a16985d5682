package kvstore

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryClient implements Client in process memory. It understands both key
// schema encodings and can simulate asynchronous table creation.
type MemoryClient struct {
	mu              sync.RWMutex
	tables          map[string]*memoryTable
	apiVersion      string
	activationDelay time.Duration
	pollInterval    time.Duration
	closed          bool
	now             func() time.Time
}

type memoryTable struct {
	meta     TableMetadata
	activeAt time.Time
	records  map[string]Record
}

// MemoryOption configures a MemoryClient.
type MemoryOption func(*MemoryClient)

// WithAPIVersion sets the API generation reported by the client.
func WithAPIVersion(v string) MemoryOption {
	return func(c *MemoryClient) {
		if v != "" {
			c.apiVersion = v
		}
	}
}

// WithActivationDelay keeps created tables in CREATING state for d.
func WithActivationDelay(d time.Duration) MemoryOption {
	return func(c *MemoryClient) {
		if d >= 0 {
			c.activationDelay = d
		}
	}
}

// WithPollInterval sets how often WaitUntilActive re-checks table status.
func WithPollInterval(d time.Duration) MemoryOption {
	return func(c *MemoryClient) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithClock overrides the time source. Useful for expiry tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryClient) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMemoryClient creates an empty in-memory store.
func NewMemoryClient(opts ...MemoryOption) *MemoryClient {
	c := &MemoryClient{
		tables:       make(map[string]*memoryTable),
		apiVersion:   APIVersion20120810,
		pollInterval: 50 * time.Millisecond,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryClient) APIVersion() string { return c.apiVersion }

func (c *MemoryClient) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Close makes every subsequent call fail with ErrClosed.
func (c *MemoryClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *MemoryClient) DescribeTable(ctx context.Context, name string) (*TableMetadata, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	t, ok := c.tables[name]
	if !ok {
		return nil, ErrTableNotFound
	}
	meta := t.meta
	meta.Status = c.statusOf(t)
	meta.ItemCount = int64(len(t.records))
	return &meta, nil
}

func (c *MemoryClient) CreateTable(ctx context.Context, req CreateTableRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if _, legacy := req.KeySchema.(LegacyKeySchema); legacy != (c.apiVersion < APIVersion20120810) {
		return ErrUnsupportedKeySchema
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, exists := c.tables[req.TableName]; exists {
		return ErrTableInUse
	}

	now := c.now()
	c.tables[req.TableName] = &memoryTable{
		meta: TableMetadata{
			Name:          req.TableName,
			HashKey:       req.KeySchema.HashKeyName(),
			ReadCapacity:  req.ReadCapacity,
			WriteCapacity: req.WriteCapacity,
			CreatedAt:     now,
		},
		activeAt: now.Add(c.activationDelay),
		records:  make(map[string]Record),
	}
	return nil
}

func (c *MemoryClient) WaitUntilActive(ctx context.Context, name string, timeout time.Duration) error {
	if timeout <= 0 {
		return ErrInvalidRequest
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		meta, err := c.DescribeTable(ctx, name)
		switch {
		case err == nil && meta.Status.Usable():
			return nil
		case err != nil && !errors.Is(err, ErrTableNotFound):
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrWaitTimeout
		case <-ticker.C:
		}
	}
}

func (c *MemoryClient) GetItem(ctx context.Context, table TableRef, id string) (*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, err := c.usableTable(table.Name)
	if err != nil {
		return nil, err
	}
	rec, ok := t.records[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	rec.Data = bytes.Clone(rec.Data)
	return &rec, nil
}

func (c *MemoryClient) PutItem(ctx context.Context, table TableRef, rec Record) error {
	if rec.ID == "" {
		return ErrInvalidRequest
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.usableTable(table.Name)
	if err != nil {
		return err
	}
	rec.Data = bytes.Clone(rec.Data)
	t.records[rec.ID] = rec
	return nil
}

func (c *MemoryClient) DeleteItem(ctx context.Context, table TableRef, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.usableTable(table.Name)
	if err != nil {
		return err
	}
	delete(t.records, id)
	return nil
}

func (c *MemoryClient) Scan(ctx context.Context, in ScanInput) ([]Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, err := c.usableTable(in.Table.Name)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0)
	for _, rec := range t.records {
		if in.Matches(rec) {
			rec.Data = bytes.Clone(rec.Data)
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// usableTable must be called with c.mu held.
func (c *MemoryClient) usableTable(name string) (*memoryTable, error) {
	if c.closed {
		return nil, ErrClosed
	}
	t, ok := c.tables[name]
	if !ok {
		return nil, ErrTableNotFound
	}
	if !c.statusOf(t).Usable() {
		return nil, ErrTableInUse
	}
	return t, nil
}

func (c *MemoryClient) statusOf(t *memoryTable) TableStatus {
	if c.now().Before(t.activeAt) {
		return StatusCreating
	}
	return StatusActive
}
