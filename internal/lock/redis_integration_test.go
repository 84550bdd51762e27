//go:build integration

package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PulpFictionApps/veterinaria/internal/config"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	client, err := NewClient(ctx, &config.RedisConfig{Addr: getEnv("TEST_REDIS_ADDR", "localhost:6379")})
	if err != nil {
		t.Skipf("Redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLocker(client)
	key := "test:" + uuid.NewString()

	release, ok, err := locker.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "lease is held")

	release(ctx)
	release(ctx)

	release2, ok, err := locker.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	release2(ctx)

	_, _, err = locker.Acquire(ctx, key, 0)
	assert.Error(t, err)
}
