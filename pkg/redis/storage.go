package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
)

// Table metadata hash fields.
const (
	fieldStatus        = "status"
	fieldHashKey       = "hash_key"
	fieldReadCapacity  = "read_capacity"
	fieldWriteCapacity = "write_capacity"
	fieldCreatedAt     = "created_at"
	fieldClaimedAt     = "claimed_at"
)

// healthcheckTTL expires the key written by Healthcheck.
const healthcheckTTL = time.Minute

// DefaultClaimTTL bounds how long an unfinished table creation blocks others.
const DefaultClaimTTL = time.Minute

// claimScript takes the table hash for a new creator. It succeeds on a missing
// hash and on a stale claim left behind by a creator that never finished.
//
// KEYS[1] table hash; ARGV: hash key, claim token, now ms, stale before ms, ttl ms.
var claimScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], 'status') == 1 then
	return 0
end
local claimed = redis.call('HGET', KEYS[1], 'claimed_at')
if claimed and tonumber(claimed) and tonumber(claimed) > tonumber(ARGV[4]) then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'hash_key', ARGV[1], 'claim', ARGV[2], 'claimed_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// activateScript marks a claimed table active and drops the claim TTL,
// provided the claim still belongs to the caller.
//
// KEYS[1] table hash; ARGV: claim token, read, write, created at, status.
var activateScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'claim') ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'read_capacity', ARGV[2], 'write_capacity', ARGV[3], 'created_at', ARGV[4], 'status', ARGV[5])
redis.call('HDEL', KEYS[1], 'claim', 'claimed_at')
redis.call('PERSIST', KEYS[1])
return 1
`)

// releaseScript deletes the table hash if the caller still holds the claim.
var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'claim') == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Storage implements kvstore.Client on Redis.
//
// A table is a metadata hash at "<prefix>table:<name>". Each record is a hash
// at "<prefix>item:<table>:<id>" holding the data, expires and modified
// fields, with a Redis TTL matching its expiry. Table names are restricted by
// kvstore.ValidTableName, so they never contain the ':' delimiter.
type Storage struct {
	db            redis.UniversalClient
	prefix        string
	scanBatchSize int64
	pollInterval  time.Duration
	claimTTL      time.Duration
	now           func() time.Time
}

var _ kvstore.Client = (*Storage)(nil)

// StorageOption configures Storage.
type StorageOption func(*Storage)

// WithKeyPrefix namespaces every key written by the storage.
func WithKeyPrefix(prefix string) StorageOption {
	return func(s *Storage) {
		s.prefix = prefix
	}
}

// WithScanBatchSize sets the COUNT hint for SCAN. Non-positive values are ignored.
func WithScanBatchSize(n int64) StorageOption {
	return func(s *Storage) {
		if n > 0 {
			s.scanBatchSize = n
		}
	}
}

// WithPollInterval sets the delay between status checks in WaitUntilActive.
func WithPollInterval(d time.Duration) StorageOption {
	return func(s *Storage) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithClaimTTL sets how long an unfinished table creation holds its claim.
// Non-positive values are ignored.
func WithClaimTTL(d time.Duration) StorageOption {
	return func(s *Storage) {
		if d > 0 {
			s.claimTTL = d
		}
	}
}

// NewStorage wraps a connected Redis client.
// Uses default scan batch size of 1000 for efficient key scanning.
func NewStorage(redisClient redis.UniversalClient, opts ...StorageOption) *Storage {
	s := &Storage{
		db:            redisClient,
		prefix:        "kv:",
		scanBatchSize: 1000,
		pollInterval:  100 * time.Millisecond,
		claimTTL:      DefaultClaimTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStorageWithConfig creates a Redis storage with custom configuration.
func NewStorageWithConfig(redisClient redis.UniversalClient, cfg Config) *Storage {
	return NewStorage(redisClient,
		WithKeyPrefix(cfg.KeyPrefix),
		WithScanBatchSize(cfg.ScanBatchSize),
		WithPollInterval(cfg.PollInterval),
		WithClaimTTL(cfg.ClaimTTL),
	)
}

// Conn returns the underlying Redis client for advanced operations.
func (s *Storage) Conn() redis.UniversalClient {
	return s.db
}

// APIVersion reports the modern key schema generation; Redis itself is schemaless.
func (s *Storage) APIVersion() string {
	return kvstore.APIVersion20120810
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *Storage) tableKey(name string) string {
	return s.prefix + "table:" + name
}

func (s *Storage) itemPrefix(table string) string {
	return s.prefix + "item:" + table + ":"
}

func (s *Storage) itemKey(table, id string) string {
	return s.itemPrefix(table) + id
}

func checkTable(table kvstore.TableRef) error {
	if !kvstore.ValidTableName(table.Name) {
		return fmt.Errorf("%w: table name %q", kvstore.ErrInvalidRequest, table.Name)
	}
	return nil
}

// DescribeTable reads the table metadata hash. A hash without a status field
// belongs to a table whose creation is still in flight; once its claim is
// older than the claim TTL the table is reported as not found so that a new
// creator can take over.
func (s *Storage) DescribeTable(ctx context.Context, name string) (*kvstore.TableMetadata, error) {
	fields, err := s.db.HGetAll(ctx, s.tableKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis describe table: %w", err)
	}
	if len(fields) == 0 {
		return nil, kvstore.ErrTableNotFound
	}

	meta := &kvstore.TableMetadata{
		Name:    name,
		Status:  kvstore.TableStatus(fields[fieldStatus]),
		HashKey: fields[fieldHashKey],
	}
	if meta.Status == "" {
		if s.staleClaim(fields[fieldClaimedAt]) {
			return nil, kvstore.ErrTableNotFound
		}
		meta.Status = kvstore.StatusCreating
	}
	meta.ReadCapacity, _ = strconv.ParseInt(fields[fieldReadCapacity], 10, 64)
	meta.WriteCapacity, _ = strconv.ParseInt(fields[fieldWriteCapacity], 10, 64)
	if ts, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64); err == nil {
		meta.CreatedAt = time.Unix(ts, 0)
	}
	return meta, nil
}

func (s *Storage) staleClaim(claimedAt string) bool {
	ms, err := strconv.ParseInt(claimedAt, 10, 64)
	if err != nil {
		return true
	}
	return ms <= s.now().Add(-s.claimTTL).UnixMilli()
}

// CreateTable claims the metadata hash with a script so that exactly one
// concurrent creator wins; the others get kvstore.ErrTableInUse. The claim
// expires after the claim TTL and is released when activation fails, so an
// interrupted creation never blocks later ones.
func (s *Storage) CreateTable(ctx context.Context, req kvstore.CreateTableRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	key := s.tableKey(req.TableName)
	token := uuid.NewString()
	now := s.now()

	claimed, err := claimScript.Run(ctx, s.db, []string{key},
		req.KeySchema.HashKeyName(),
		token,
		now.UnixMilli(),
		now.Add(-s.claimTTL).UnixMilli(),
		s.claimTTL.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis create table: %w", err)
	}
	if claimed == 0 {
		return fmt.Errorf("%w: %s", kvstore.ErrTableInUse, req.TableName)
	}

	activated, err := activateScript.Run(ctx, s.db, []string{key},
		token,
		req.ReadCapacity,
		req.WriteCapacity,
		now.Unix(),
		string(kvstore.StatusActive),
	).Int()
	if err != nil {
		s.release(ctx, key, token)
		return fmt.Errorf("redis create table: %w", err)
	}
	if activated == 0 {
		return fmt.Errorf("%w: %s: claim expired before activation", kvstore.ErrTableInUse, req.TableName)
	}
	return nil
}

// release drops a claim after a failed activation. It runs even when ctx is
// already cancelled.
func (s *Storage) release(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, s.db, []string{key}, token).Err()
}

// WaitUntilActive polls the table metadata until it is usable.
func (s *Storage) WaitUntilActive(ctx context.Context, name string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		meta, err := s.DescribeTable(ctx, name)
		switch {
		case err == nil && meta.Status.Usable():
			return nil
		case err != nil && !errors.Is(err, kvstore.ErrTableNotFound):
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %s", kvstore.ErrWaitTimeout, name)
		case <-ticker.C:
		}
	}
}

func (s *Storage) GetItem(ctx context.Context, table kvstore.TableRef, id string) (*kvstore.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	fields, err := s.db.HGetAll(ctx, s.itemKey(table.Name, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get item: %w", err)
	}
	if len(fields) == 0 {
		return nil, kvstore.ErrItemNotFound
	}

	rec := kvstore.Record{ID: id, Data: []byte(fields[kvstore.AttrData])}
	if err := parseTimestamps(&rec, fields[kvstore.AttrExpires], fields[kvstore.AttrModified]); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutItem replaces the record in a single MULTI/EXEC.
func (s *Storage) PutItem(ctx context.Context, table kvstore.TableRef, rec kvstore.Record) error {
	if err := checkTable(table); err != nil {
		return err
	}
	key := s.itemKey(table.Name, rec.ID)
	_, err := s.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]any{
			kvstore.AttrData:     rec.Data,
			kvstore.AttrExpires:  rec.Expires,
			kvstore.AttrModified: rec.Modified,
		})
		if rec.Expires > 0 {
			pipe.ExpireAt(ctx, key, time.Unix(rec.Expires, 0))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put item: %w", err)
	}
	return nil
}

func (s *Storage) DeleteItem(ctx context.Context, table kvstore.TableRef, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if err := s.db.Del(ctx, s.itemKey(table.Name, id)).Err(); err != nil {
		return fmt.Errorf("redis delete item: %w", err)
	}
	return nil
}

// Scan walks the table's keys with SCAN to avoid blocking Redis and fetches
// timestamps for each batch in one pipeline. Record payloads are not fetched.
func (s *Storage) Scan(ctx context.Context, in kvstore.ScanInput) ([]kvstore.Record, error) {
	if err := checkTable(in.Table); err != nil {
		return nil, err
	}
	prefix := s.itemPrefix(in.Table.Name)
	match := globEscape(prefix) + "*"
	count := s.scanBatchSize
	if in.PageSize > 0 {
		count = int64(in.PageSize)
	}

	var (
		records []kvstore.Record
		cursor  uint64
	)
	for {
		keys, next, err := s.db.Scan(ctx, cursor, match, count).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}

		batch, err := s.fetchTimestamps(ctx, prefix, keys)
		if err != nil {
			return nil, err
		}
		for _, rec := range batch {
			if in.Matches(rec) {
				records = append(records, rec)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return records, nil
}

func (s *Storage) fetchTimestamps(ctx context.Context, prefix string, keys []string) ([]kvstore.Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.SliceCmd, len(keys))
	_, err := s.db.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HMGet(ctx, key, kvstore.AttrExpires, kvstore.AttrModified)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}

	records := make([]kvstore.Record, 0, len(keys))
	for i, cmd := range cmds {
		vals := cmd.Val()
		// expired between SCAN and HMGET
		if len(vals) != 2 || (vals[0] == nil && vals[1] == nil) {
			continue
		}
		rec := kvstore.Record{ID: strings.TrimPrefix(keys[i], prefix)}
		expires, _ := vals[0].(string)
		modified, _ := vals[1].(string)
		if err := parseTimestamps(&rec, expires, modified); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseTimestamps(rec *kvstore.Record, expires, modified string) error {
	var err error
	if rec.Expires, err = strconv.ParseInt(expires, 10, 64); err != nil {
		return errors.Join(ErrCorruptedRecord, err)
	}
	if rec.Modified, err = strconv.ParseInt(modified, 10, 64); err != nil {
		return errors.Join(ErrCorruptedRecord, err)
	}
	return nil
}

// globEscape escapes the characters SCAN MATCH treats as patterns.
func globEscape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
