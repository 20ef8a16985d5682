package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobEscape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"kv:item:sessions:", "kv:item:sessions:"},
		{"kv:item:a*b:", `kv:item:a\*b:`},
		{"t?[x]", `t\?\[x\]`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, globEscape(tt.in), tt.in)
	}
}

func TestStorage_Keys(t *testing.T) {
	t.Parallel()
	s := NewStorage(nil, WithKeyPrefix("app:"))

	assert.Equal(t, "app:table:sessions", s.tableKey("sessions"))
	assert.Equal(t, "app:item:sessions:abc", s.itemKey("sessions", "abc"))
}

func TestStorage_ReleaseClaim(t *testing.T) {
	t.Parallel()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := NewStorage(client)
	ctx := context.Background()
	key := s.tableKey("sessions")

	srv.HSet(key, fieldHashKey, "id", "claim", "mine", fieldClaimedAt, "1")

	// a foreign token neither activates nor releases the claim
	n, err := activateScript.Run(ctx, client, []string{key}, "theirs", 1, 1, 1, "ACTIVE").Int()
	require.NoError(t, err)
	assert.Zero(t, n)
	s.release(ctx, key, "theirs")
	assert.True(t, srv.Exists(key))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	s.release(cctx, key, "mine")
	assert.False(t, srv.Exists(key))
}

func TestStorage_StaleClaim(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	s := NewStorage(nil, WithClaimTTL(time.Minute))
	s.now = func() time.Time { return now }

	assert.True(t, s.staleClaim(""))
	assert.True(t, s.staleClaim("garbage"))
	assert.True(t, s.staleClaim(strconv.FormatInt(now.Add(-time.Minute).UnixMilli(), 10)))
	assert.False(t, s.staleClaim(strconv.FormatInt(now.Add(-time.Second).UnixMilli(), 10)))
}
