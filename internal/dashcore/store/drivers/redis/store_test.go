package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	redisstore "github.com/aussiebroadwan/dashcore/internal/dashcore/store/drivers/redis"
)

func newMiniRedisStore(t *testing.T) (*miniredis.Miniredis, *redisstore.Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := redisstore.NewStore(client, "test:")
	t.Cleanup(func() { _ = s.Close() })

	return mr, s
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	mr, s := newMiniRedisStore(t)

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Set(ctx, map[string]string{"session.token": "tok", "session.profile": "{}"}))

	// Keys are namespaced by the prefix.
	val, err := mr.Get("test:session.token")
	require.NoError(t, err)
	require.Equal(t, "tok", val)

	got, err := s.Get(ctx, "session.token", "session.profile", "missing")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"session.token": "tok", "session.profile": "{}"}, got)

	require.NoError(t, s.Delete(ctx, "session.token", "session.profile"))
	require.False(t, mr.Exists("test:session.token"))
	require.False(t, mr.Exists("test:session.profile"))
}

func TestDefaultPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	s := redisstore.Open(mr.Addr(), "", 0, "")
	defer s.Close()

	require.NoError(t, s.Set(ctx, map[string]string{"k": "v"}))
	require.True(t, mr.Exists(redisstore.DefaultPrefix+"k"))
}

func TestGetFailsWhenServerGone(t *testing.T) {
	mr, s := newMiniRedisStore(t)
	mr.Close()

	_, err := s.Get(context.Background(), "session.token")
	require.Error(t, err)
}
