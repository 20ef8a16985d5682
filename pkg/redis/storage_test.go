package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
	"github.com/dmitrymomot/dynamosession/pkg/provision"
	"github.com/dmitrymomot/dynamosession/pkg/redis"
)

func TestConnect_InvalidConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := redis.Connect(ctx, redis.Config{ConnectTimeout: time.Second})
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)

	_, err = redis.Connect(ctx, redis.Config{ConnectionURL: "mysql://nope", ConnectTimeout: time.Second})
	assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
}

// connect returns storage backed by an in-process Redis server.
func connect(t *testing.T, opts ...redis.StorageOption) (*redis.Storage, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)

	client, err := redis.Connect(context.Background(), redis.Config{
		ConnectionURL:  "redis://" + srv.Addr(),
		RetryAttempts:  1,
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	opts = append([]redis.StorageOption{redis.WithPollInterval(10 * time.Millisecond)}, opts...)
	return redis.NewStorage(client, opts...), srv
}

func TestStorage_Provisioning(t *testing.T) {
	t.Parallel()
	s, srv := connect(t)
	ctx := context.Background()

	_, err := s.DescribeTable(ctx, "sessions")
	assert.ErrorIs(t, err, kvstore.ErrTableNotFound)

	spec, err := provision.NewTableSpec("sessions", 5, 5)
	require.NoError(t, err)
	table, err := provision.New(s).EnsureTable(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, "sessions", table.Name())

	meta, err := s.DescribeTable(ctx, "sessions")
	require.NoError(t, err)
	assert.Equal(t, kvstore.StatusActive, meta.Status)
	assert.Equal(t, "id", meta.HashKey)
	assert.Equal(t, int64(5), meta.ReadCapacity)

	// an active table carries no claim and never expires
	assert.Empty(t, srv.HGet("kv:table:sessions", "claim"))
	assert.Zero(t, srv.TTL("kv:table:sessions"))

	err = s.CreateTable(ctx, kvstore.CreateTableRequest{
		TableName: "sessions",
		KeySchema: kvstore.LegacyKeySchema{
			HashKeyElement: kvstore.KeyElement{AttributeName: "id", AttributeType: kvstore.AttributeTypeString},
		},
		ReadCapacity:  1,
		WriteCapacity: 1,
	})
	assert.ErrorIs(t, err, kvstore.ErrTableInUse)

	require.NoError(t, s.WaitUntilActive(ctx, "sessions", time.Second))
}

func TestStorage_InterruptedCreation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	spec, err := provision.NewTableSpec("sessions", 5, 5)
	require.NoError(t, err)

	t.Run("claim without timestamp", func(t *testing.T) {
		t.Parallel()
		s, srv := connect(t)
		srv.HSet("kv:table:sessions", "hash_key", "id")

		_, err := s.DescribeTable(ctx, "sessions")
		assert.ErrorIs(t, err, kvstore.ErrTableNotFound)

		for range 2 {
			_, err := provision.New(s, provision.WithWaitTimeout(time.Second)).EnsureTable(ctx, spec)
			require.NoError(t, err)
		}
		assert.Equal(t, "ACTIVE", srv.HGet("kv:table:sessions", "status"))
	})

	t.Run("claim expires", func(t *testing.T) {
		t.Parallel()
		s, srv := connect(t, redis.WithClaimTTL(time.Minute))
		srv.HSet("kv:table:sessions",
			"hash_key", "id",
			"claim", "someone-else",
			"claimed_at", "9999999999999",
		)
		srv.SetTTL("kv:table:sessions", time.Minute)

		meta, err := s.DescribeTable(ctx, "sessions")
		require.NoError(t, err)
		assert.Equal(t, kvstore.StatusCreating, meta.Status)
		assert.ErrorIs(t, s.CreateTable(ctx, kvstore.CreateTableRequest{
			TableName:     "sessions",
			KeySchema:     kvstore.ModernKeySchema{KeySchema: []kvstore.KeySchemaElement{{AttributeName: "id", KeyType: kvstore.KeyTypeHash}}},
			ReadCapacity:  1,
			WriteCapacity: 1,
		}), kvstore.ErrTableInUse)

		srv.FastForward(time.Minute)

		_, err = provision.New(s, provision.WithWaitTimeout(time.Second)).EnsureTable(ctx, spec)
		require.NoError(t, err)
		assert.Equal(t, "ACTIVE", srv.HGet("kv:table:sessions", "status"))
	})
}

func TestStorage_Items(t *testing.T) {
	t.Parallel()
	s, _ := connect(t)
	ctx := context.Background()
	table := kvstore.TableRef{Name: "sessions", HashKey: "id"}
	now := time.Now()

	_, err := s.GetItem(ctx, table, "missing")
	assert.ErrorIs(t, err, kvstore.ErrItemNotFound)

	rec := kvstore.Record{ID: "abc", Data: []byte("payload"), Expires: now.Add(time.Hour).Unix(), Modified: now.Unix()}
	require.NoError(t, s.PutItem(ctx, table, rec))

	got, err := s.GetItem(ctx, table, "abc")
	require.NoError(t, err)
	assert.Equal(t, &rec, got)

	require.NoError(t, s.PutItem(ctx, table, kvstore.Record{
		ID: "stale", Data: []byte("x"), Expires: now.Add(time.Hour).Unix(), Modified: now.Add(-2 * time.Hour).Unix(),
	}))

	recs, err := s.Scan(ctx, kvstore.ScanInput{
		Table: table,
		AnyOf: []kvstore.Condition{
			{Attribute: kvstore.AttrExpires, Before: now.Unix()},
			{Attribute: kvstore.AttrModified, Before: now.Add(-time.Hour).Unix()},
		},
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "stale", recs[0].ID)

	require.NoError(t, s.DeleteItem(ctx, table, "abc"))
	require.NoError(t, s.DeleteItem(ctx, table, "abc"))
	_, err = s.GetItem(ctx, table, "abc")
	assert.ErrorIs(t, err, kvstore.ErrItemNotFound)
}

func TestStorage_TablesAreIsolated(t *testing.T) {
	t.Parallel()
	s, _ := connect(t)
	ctx := context.Background()
	sess := kvstore.TableRef{Name: "sess", HashKey: "id"}
	other := kvstore.TableRef{Name: "sess-x", HashKey: "id"}
	old := kvstore.Record{ID: "abc", Data: []byte("x"), Expires: time.Now().Add(time.Hour).Unix(), Modified: 1}

	bad := kvstore.TableRef{Name: "sess:x", HashKey: "id"}
	assert.ErrorIs(t, s.PutItem(ctx, bad, old), kvstore.ErrInvalidRequest)
	_, err := s.GetItem(ctx, bad, "abc")
	assert.ErrorIs(t, err, kvstore.ErrInvalidRequest)
	_, err = s.Scan(ctx, kvstore.ScanInput{Table: bad})
	assert.ErrorIs(t, err, kvstore.ErrInvalidRequest)
	assert.ErrorIs(t, s.CreateTable(ctx, kvstore.CreateTableRequest{
		TableName:     "sess:x",
		KeySchema:     kvstore.ModernKeySchema{KeySchema: []kvstore.KeySchemaElement{{AttributeName: "id", KeyType: kvstore.KeyTypeHash}}},
		ReadCapacity:  1,
		WriteCapacity: 1,
	}), kvstore.ErrInvalidRequest)

	require.NoError(t, s.PutItem(ctx, other, old))

	recs, err := s.Scan(ctx, kvstore.ScanInput{
		Table: sess,
		AnyOf: []kvstore.Condition{{Attribute: kvstore.AttrModified, Before: 100}},
	})
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = s.GetItem(ctx, other, "abc")
	assert.NoError(t, err)
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()
	s, srv := connect(t)
	ctx := context.Background()

	require.NoError(t, redis.Healthcheck(s)(ctx))
	assert.True(t, srv.Exists("kv:healthcheck"))

	srv.SetError("READONLY You can't write against a read only replica.")
	assert.ErrorIs(t, redis.Healthcheck(s)(ctx), redis.ErrHealthcheckFailed)
}
