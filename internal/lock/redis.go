// Package lock — аренда в Redis, чтобы периодическую работу выполняла
// одна реплика за раз.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/PulpFictionApps/veterinaria/internal/config"
)

// Снимаем ключ, только если он всё ещё наш.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client, prefix: "scheduling:lock:"}
}

// NewClient подключается к Redis и проверяет соединение.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Acquire берёт аренду key на ttl. ok=false — аренда у другого держателя.
// release идемпотентен и не трогает чужую аренду.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	if ttl <= 0 {
		return nil, false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	full := l.prefix + key

	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{full}, token).Err()
	}
	return release, true, nil
}
