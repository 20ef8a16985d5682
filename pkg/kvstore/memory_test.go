package kvstore_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
)

func modernRequest(name string) kvstore.CreateTableRequest {
	return kvstore.CreateTableRequest{
		TableName: name,
		KeySchema: kvstore.ModernKeySchema{
			AttributeDefinitions: []kvstore.AttributeDefinition{{AttributeName: "id", AttributeType: kvstore.AttributeTypeString}},
			KeySchema:            []kvstore.KeySchemaElement{{AttributeName: "id", KeyType: kvstore.KeyTypeHash}},
		},
		ReadCapacity:  5,
		WriteCapacity: 5,
	}
}

func TestMemoryClient_CreateAndDescribe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing table", func(t *testing.T) {
		t.Parallel()
		client := kvstore.NewMemoryClient()
		_, err := client.DescribeTable(ctx, "sessions")
		assert.ErrorIs(t, err, kvstore.ErrTableNotFound)
	})

	t.Run("created table is active", func(t *testing.T) {
		t.Parallel()
		client := kvstore.NewMemoryClient()
		require.NoError(t, client.CreateTable(ctx, modernRequest("sessions")))

		meta, err := client.DescribeTable(ctx, "sessions")
		require.NoError(t, err)
		assert.Equal(t, kvstore.StatusActive, meta.Status)
		assert.Equal(t, "id", meta.HashKey)
		assert.Equal(t, int64(5), meta.ReadCapacity)
		assert.Equal(t, int64(5), meta.WriteCapacity)
	})

	t.Run("second create conflicts", func(t *testing.T) {
		t.Parallel()
		client := kvstore.NewMemoryClient()
		require.NoError(t, client.CreateTable(ctx, modernRequest("sessions")))
		assert.ErrorIs(t, client.CreateTable(ctx, modernRequest("sessions")), kvstore.ErrTableInUse)
	})

	t.Run("invalid request", func(t *testing.T) {
		t.Parallel()
		client := kvstore.NewMemoryClient()
		req := modernRequest("sessions")
		req.ReadCapacity = 0
		assert.ErrorIs(t, client.CreateTable(ctx, req), kvstore.ErrInvalidRequest)
	})

	t.Run("table name must be valid", func(t *testing.T) {
		t.Parallel()
		client := kvstore.NewMemoryClient()
		assert.ErrorIs(t, client.CreateTable(ctx, modernRequest("sess:x")), kvstore.ErrInvalidRequest)
		assert.ErrorIs(t, client.CreateTable(ctx, modernRequest("ab")), kvstore.ErrInvalidRequest)
	})

	t.Run("encoding must match api version", func(t *testing.T) {
		t.Parallel()
		legacy := kvstore.NewMemoryClient(kvstore.WithAPIVersion(kvstore.APIVersion20111205))
		assert.ErrorIs(t, legacy.CreateTable(ctx, modernRequest("sessions")), kvstore.ErrUnsupportedKeySchema)

		err := legacy.CreateTable(ctx, kvstore.CreateTableRequest{
			TableName: "sessions",
			KeySchema: kvstore.LegacyKeySchema{
				HashKeyElement: kvstore.KeyElement{AttributeName: "id", AttributeType: kvstore.AttributeTypeString},
			},
			ReadCapacity:  1,
			WriteCapacity: 1,
		})
		assert.NoError(t, err)
	})
}

func TestMemoryClient_WaitUntilActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("becomes active", func(t *testing.T) {
		t.Parallel()
		client := kvstore.NewMemoryClient(
			kvstore.WithActivationDelay(30*time.Millisecond),
			kvstore.WithPollInterval(5*time.Millisecond),
		)
		require.NoError(t, client.CreateTable(ctx, modernRequest("sessions")))

		meta, err := client.DescribeTable(ctx, "sessions")
		require.NoError(t, err)
		assert.Equal(t, kvstore.StatusCreating, meta.Status)

		require.NoError(t, client.WaitUntilActive(ctx, "sessions", time.Second))
	})

	t.Run("times out", func(t *testing.T) {
		t.Parallel()
		client := kvstore.NewMemoryClient(
			kvstore.WithActivationDelay(time.Hour),
			kvstore.WithPollInterval(5*time.Millisecond),
		)
		require.NoError(t, client.CreateTable(ctx, modernRequest("sessions")))

		err := client.WaitUntilActive(ctx, "sessions", 20*time.Millisecond)
		assert.ErrorIs(t, err, kvstore.ErrWaitTimeout)
	})

	t.Run("caller cancels", func(t *testing.T) {
		t.Parallel()
		client := kvstore.NewMemoryClient(
			kvstore.WithActivationDelay(time.Hour),
			kvstore.WithPollInterval(5*time.Millisecond),
		)
		require.NoError(t, client.CreateTable(ctx, modernRequest("sessions")))

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := client.WaitUntilActive(cctx, "sessions", time.Second)
		assert.ErrorIs(t, err, context.Canceled)

		// creation is not rolled back
		_, err = client.DescribeTable(ctx, "sessions")
		assert.NoError(t, err)
	})
}

func TestMemoryClient_Items(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := kvstore.NewMemoryClient()
	require.NoError(t, client.CreateTable(ctx, modernRequest("sessions")))
	table := kvstore.TableRef{Name: "sessions", HashKey: "id"}

	t.Run("get missing", func(t *testing.T) {
		_, err := client.GetItem(ctx, table, "missing")
		assert.ErrorIs(t, err, kvstore.ErrItemNotFound)
	})

	t.Run("put get delete", func(t *testing.T) {
		data := []byte("payload")
		require.NoError(t, client.PutItem(ctx, table, kvstore.Record{ID: "abc", Data: data, Expires: 10, Modified: 5}))
		data[0] = 'X'

		rec, err := client.GetItem(ctx, table, "abc")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), rec.Data)
		assert.Equal(t, int64(10), rec.Expires)

		require.NoError(t, client.DeleteItem(ctx, table, "abc"))
		require.NoError(t, client.DeleteItem(ctx, table, "abc"))
		_, err = client.GetItem(ctx, table, "abc")
		assert.ErrorIs(t, err, kvstore.ErrItemNotFound)
	})

	t.Run("scan filters", func(t *testing.T) {
		require.NoError(t, client.PutItem(ctx, table, kvstore.Record{ID: "old", Expires: 100, Modified: 10}))
		require.NoError(t, client.PutItem(ctx, table, kvstore.Record{ID: "expired", Expires: 40, Modified: 90}))
		require.NoError(t, client.PutItem(ctx, table, kvstore.Record{ID: "fresh", Expires: 100, Modified: 90}))

		recs, err := client.Scan(ctx, kvstore.ScanInput{
			Table: table,
			AnyOf: []kvstore.Condition{
				{Attribute: kvstore.AttrModified, Before: 50},
				{Attribute: kvstore.AttrExpires, Before: 50},
			},
		})
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "expired", recs[0].ID)
		assert.Equal(t, "old", recs[1].ID)
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := client.GetItem(ctx, kvstore.TableRef{Name: "other", HashKey: "id"}, "abc")
		assert.ErrorIs(t, err, kvstore.ErrTableNotFound)
	})
}

func TestMemoryClient_Close(t *testing.T) {
	t.Parallel()
	client := kvstore.NewMemoryClient()
	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Ping(context.Background()), kvstore.ErrClosed)
}

func TestValidTableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		valid bool
	}{
		{"sessions", true},
		{"app.sessions-v2_EU", true},
		{"abc", true},
		{"ab", false},
		{"", false},
		{"sess:x", false},
		{"sess{x}", false},
		{"sess*", false},
		{"séssions", false},
		{strings.Repeat("a", 255), true},
		{strings.Repeat("a", 256), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, kvstore.ValidTableName(tt.name), tt.name)
	}
}
