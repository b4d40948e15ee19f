package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "bulletin:lock:"

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker shares run locks between service instances.
type RedisLocker struct {
	client *redis.Client
}

type redisLock struct {
	client *redis.Client
	key    string
	value  string
}

// NewRedisLocker connects to Redis and verifies the connection
func NewRedisLocker(addr, password string, db int) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &RedisLocker{client: client}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lockKey := keyPrefix + key
	value := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, value, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	slog.Debug("Lock acquired", "key", lockKey)

	return &redisLock{client: l.client, key: lockKey, value: value}, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// Release deletes the key only if this lock still owns it
func (lk *redisLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lk.client, []string{lk.key}, lk.value).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", lk.key, err)
	}
	if result == 0 {
		return ErrNotHeld
	}

	slog.Debug("Lock released", "key", lk.key)
	return nil
}
