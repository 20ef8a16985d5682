package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
	"github.com/dmitrymomot/dynamosession/pkg/provision"
	"github.com/dmitrymomot/dynamosession/pkg/session"
)

// MockClient is a mock implementation of kvstore.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) APIVersion() string { return kvstore.APIVersion20120810 }

func (m *MockClient) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockClient) DescribeTable(ctx context.Context, name string) (*kvstore.TableMetadata, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kvstore.TableMetadata), args.Error(1)
}

func (m *MockClient) CreateTable(ctx context.Context, req kvstore.CreateTableRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockClient) WaitUntilActive(ctx context.Context, name string, timeout time.Duration) error {
	return m.Called(ctx, name, timeout).Error(0)
}

func (m *MockClient) GetItem(ctx context.Context, table kvstore.TableRef, id string) (*kvstore.Record, error) {
	args := m.Called(ctx, table, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kvstore.Record), args.Error(1)
}

func (m *MockClient) PutItem(ctx context.Context, table kvstore.TableRef, rec kvstore.Record) error {
	return m.Called(ctx, table, rec).Error(0)
}

func (m *MockClient) DeleteItem(ctx context.Context, table kvstore.TableRef, id string) error {
	return m.Called(ctx, table, id).Error(0)
}

func (m *MockClient) Scan(ctx context.Context, in kvstore.ScanInput) ([]kvstore.Record, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]kvstore.Record), args.Error(1)
}

func provisioned(t *testing.T, opts ...kvstore.MemoryOption) (*kvstore.MemoryClient, *provision.ActiveTable) {
	t.Helper()
	client := kvstore.NewMemoryClient(opts...)
	spec, err := provision.NewTableSpec("sessions", 5, 5)
	require.NoError(t, err)
	table, err := provision.New(client).EnsureTable(context.Background(), spec)
	require.NoError(t, err)
	return client, table
}

func TestNewStore(t *testing.T) {
	t.Parallel()
	client, table := provisioned(t)

	t.Run("requires client", func(t *testing.T) {
		_, err := session.NewStore(nil, table)
		assert.ErrorIs(t, err, session.ErrNoClient)
	})

	t.Run("requires provisioned table", func(t *testing.T) {
		_, err := session.NewStore(client, nil)
		assert.ErrorIs(t, err, session.ErrTableNotProvisioned)
		_, err = session.NewStore(client, &provision.ActiveTable{})
		assert.ErrorIs(t, err, session.ErrTableNotProvisioned)
	})

	t.Run("from config", func(t *testing.T) {
		store, err := session.NewStoreFromConfig(client, table, session.DefaultConfig())
		require.NoError(t, err)
		assert.NotNil(t, store)
	})
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, table := provisioned(t)
	store, err := session.NewStore(client, table)
	require.NoError(t, err)

	require.NoError(t, store.Open(ctx, "", "abc123"))
	defer store.Close(ctx)

	require.NoError(t, store.Write(ctx, "abc123", []byte("payload")))
	data, err := store.Read(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	require.NoError(t, store.Destroy(ctx, "abc123"))
	data, err = store.Read(ctx, "abc123")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestStore_Overwrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, table := provisioned(t)
	store, err := session.NewStore(client, table)
	require.NoError(t, err)

	id := uuid.NewString()
	require.NoError(t, store.Write(ctx, id, []byte("first")))
	require.NoError(t, store.Write(ctx, id, []byte("second")))

	data, err := store.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestStore_AbsentSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, table := provisioned(t)
	store, err := session.NewStore(client, table)
	require.NoError(t, err)

	data, err := store.Read(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.NotNil(t, data)
	assert.Empty(t, data)

	assert.NoError(t, store.Destroy(ctx, uuid.NewString()))
}

func TestStore_InvalidID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, table := provisioned(t)
	store, err := session.NewStore(client, table)
	require.NoError(t, err)

	_, err = store.Read(ctx, "")
	assert.ErrorIs(t, err, session.ErrInvalidSessionID)
	assert.ErrorIs(t, store.Write(ctx, "", []byte("x")), session.ErrInvalidSessionID)
	assert.ErrorIs(t, store.Destroy(ctx, ""), session.ErrInvalidSessionID)
}

func TestStore_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	client, table := provisioned(t)
	store, err := session.NewStore(client, table,
		session.WithLifetime(time.Minute),
		session.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, "abc123", []byte("payload")))

	rec, err := client.GetItem(ctx, table.Ref(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute).Unix(), rec.Expires)
	assert.Equal(t, now.Unix(), rec.Modified)

	now = now.Add(time.Minute)
	data, err := store.Read(ctx, "abc123")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestStore_ExpiryBoundary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	client, table := provisioned(t)
	store, err := session.NewStore(client, table,
		session.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	require.NoError(t, client.PutItem(ctx, table.Ref(), kvstore.Record{
		ID: "edge", Data: []byte("x"), Expires: now.Unix(), Modified: now.Add(-time.Minute).Unix(),
	}))
	require.NoError(t, client.PutItem(ctx, table.Ref(), kvstore.Record{
		ID: "next", Data: []byte("y"), Expires: now.Unix() + 1, Modified: now.Add(-time.Minute).Unix(),
	}))

	data, err := store.Read(ctx, "edge")
	require.NoError(t, err)
	assert.Empty(t, data)
	data, err = store.Read(ctx, "next")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), data)

	require.NoError(t, store.GC(ctx, 0))

	_, err = client.GetItem(ctx, table.Ref(), "edge")
	assert.ErrorIs(t, err, kvstore.ErrItemNotFound)
	_, err = client.GetItem(ctx, table.Ref(), "next")
	assert.NoError(t, err)
}

func TestStore_KeyPrefix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, table := provisioned(t)
	store, err := session.NewStore(client, table, session.WithKeyPrefix("app_"))
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, "abc123", []byte("payload")))

	rec, err := client.GetItem(ctx, table.Ref(), "app_abc123")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), rec.Data)

	_, err = client.GetItem(ctx, table.Ref(), "abc123")
	assert.ErrorIs(t, err, kvstore.ErrItemNotFound)
}

func TestStore_GC(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	client, table := provisioned(t)
	ref := table.Ref()
	store, err := session.NewStore(client, table,
		session.WithKeyPrefix("app_"),
		session.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	put := func(id string, expires, modified time.Time) {
		require.NoError(t, client.PutItem(ctx, ref, kvstore.Record{
			ID: id, Data: []byte("x"), Expires: expires.Unix(), Modified: modified.Unix(),
		}))
	}
	put("app_fresh", now.Add(time.Hour), now.Add(-time.Minute))
	put("app_expired", now.Add(-time.Second), now.Add(-time.Minute))
	put("app_stale", now.Add(time.Hour), now.Add(-2*time.Hour))
	put("other_stale", now.Add(time.Hour), now.Add(-2*time.Hour))

	require.NoError(t, store.GC(ctx, time.Hour))

	for id, kept := range map[string]bool{
		"app_fresh":   true,
		"app_expired": false,
		"app_stale":   false,
		"other_stale": true,
	} {
		_, err := client.GetItem(ctx, ref, id)
		if kept {
			assert.NoError(t, err, id)
		} else {
			assert.ErrorIs(t, err, kvstore.ErrItemNotFound, id)
		}
	}
}

func TestStore_OpenClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("connection failure", func(t *testing.T) {
		t.Parallel()
		client, table := provisioned(t)
		store, err := session.NewStore(client, table)
		require.NoError(t, err)
		require.NoError(t, client.Close())

		err = store.Open(ctx, "", "abc123")
		assert.ErrorIs(t, err, session.ErrConnectionFailed)
		assert.ErrorIs(t, err, kvstore.ErrClosed)
	})

	t.Run("pings until first success", func(t *testing.T) {
		t.Parallel()
		_, table := provisioned(t)
		client := new(MockClient)
		client.On("Ping", ctx).Return(errors.New("dial tcp: connection refused")).Once()
		client.On("Ping", ctx).Return(nil).Once()

		store, err := session.NewStore(client, table)
		require.NoError(t, err)

		assert.ErrorIs(t, store.Open(ctx, "", "a"), session.ErrConnectionFailed)
		assert.NoError(t, store.Open(ctx, "", "a"))
		assert.NoError(t, store.Open(ctx, "", "b"))
		client.AssertNumberOfCalls(t, "Ping", 2)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		t.Parallel()
		client, table := provisioned(t)
		store, err := session.NewStore(client, table)
		require.NoError(t, err)
		assert.NoError(t, store.Close(ctx))
		assert.NoError(t, store.Close(ctx))
	})
}

func TestStore_UpstreamErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, table := provisioned(t)
	ref := table.Ref()
	cause := errors.New("ProvisionedThroughputExceededException")

	client := new(MockClient)
	client.On("GetItem", ctx, ref, "abc123").Return(nil, cause)
	client.On("PutItem", ctx, ref, mock.AnythingOfType("kvstore.Record")).Return(cause)
	client.On("DeleteItem", ctx, ref, "abc123").Return(cause)
	client.On("Scan", ctx, mock.AnythingOfType("kvstore.ScanInput")).Return(nil, cause)

	store, err := session.NewStore(client, table)
	require.NoError(t, err)

	_, err = store.Read(ctx, "abc123")
	assert.ErrorIs(t, err, session.ErrUpstream)
	assert.ErrorIs(t, err, cause)

	err = store.Write(ctx, "abc123", []byte("payload"))
	assert.ErrorIs(t, err, session.ErrUpstream)
	assert.ErrorIs(t, err, cause)

	err = store.Destroy(ctx, "abc123")
	assert.ErrorIs(t, err, session.ErrUpstream)
	assert.ErrorIs(t, err, cause)

	err = store.GC(ctx, time.Hour)
	assert.ErrorIs(t, err, session.ErrUpstream)
	assert.ErrorIs(t, err, cause)
}

func TestStore_GCReportsDeleteFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, table := provisioned(t)
	ref := table.Ref()
	cause := errors.New("InternalServerError")

	client := new(MockClient)
	client.On("Scan", ctx, mock.AnythingOfType("kvstore.ScanInput")).
		Return([]kvstore.Record{{ID: "a"}, {ID: "b"}}, nil)
	client.On("DeleteItem", ctx, ref, "a").Return(cause)
	client.On("DeleteItem", ctx, ref, "b").Return(nil)

	store, err := session.NewStore(client, table)
	require.NoError(t, err)

	err = store.GC(ctx, time.Hour)
	assert.ErrorIs(t, err, session.ErrUpstream)
	assert.ErrorIs(t, err, cause)
	client.AssertCalled(t, "DeleteItem", ctx, ref, "b")
}

func TestStore_GCDeleteRate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()

	client, table := provisioned(t)
	ref := table.Ref()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, client.PutItem(ctx, ref, kvstore.Record{
			ID: id, Data: []byte("x"), Expires: now.Add(-time.Minute).Unix(), Modified: now.Add(-time.Hour).Unix(),
		}))
	}

	store, err := session.NewStore(client, table, session.WithDeleteRate(2))
	require.NoError(t, err)

	// two deletes fit the first second, the third waits for a refill
	cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	err = store.GC(cctx, 0)
	assert.ErrorIs(t, err, session.ErrUpstream)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	recs, err := client.Scan(ctx, kvstore.ScanInput{Table: ref})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
