package cache_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-estimate-backend/internal/cache"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRedis_SetAndExists(t *testing.T) {
	mr := miniredis.RunT(t)
	r := cache.NewRedis("redis://"+mr.Addr(), quietLogger())
	defer r.Close()

	ctx := context.Background()
	seen, err := r.Exists(ctx, "stripe:event:evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, r.Set(ctx, "stripe:event:evt_1", "1", 24*time.Hour))

	seen, err = r.Exists(ctx, "stripe:event:evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, 24*time.Hour, mr.TTL("stripe:event:evt_1"))
}

func TestRedis_KeyExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	r := cache.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), quietLogger())
	defer r.Close()

	ctx := context.Background()
	require.NoError(t, r.Set(ctx, "k", "1", time.Minute))

	mr.FastForward(2 * time.Minute)

	seen, err := r.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedis_SetDefaultsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	r := cache.NewRedis("redis://"+mr.Addr(), quietLogger())
	defer r.Close()

	require.NoError(t, r.Set(context.Background(), "k", "1", 0))
	assert.Equal(t, 30*time.Second, mr.TTL("k"))
}

func TestRedis_DegradesWithoutURL(t *testing.T) {
	r := cache.NewRedis("", quietLogger())

	seen, err := r.Exists(context.Background(), "k")
	assert.NoError(t, err)
	assert.False(t, seen)
	assert.NoError(t, r.Set(context.Background(), "k", "1", time.Minute))
	assert.Error(t, r.Ping(context.Background()))
	assert.NoError(t, r.Close())
}

func TestRedis_DegradesWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	r := cache.NewRedis("redis://"+addr, quietLogger())

	seen, err := r.Exists(context.Background(), "k")
	assert.NoError(t, err)
	assert.False(t, seen)
}
