// Package cache implements the Redis-backed approval cache and the
// cross-process lock used by the reminder dispatcher.
package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/reminder"
	"github.com/akilisha/darasa/core/user"
)

func NewClient(conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// ApprovalCache caches the per-user approval flag so the client's
// polling does not hit the database on every round-trip.
type ApprovalCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ user.ApprovalCache = (*ApprovalCache)(nil)

func NewApprovalCache(client *redis.Client, conf *core.Config) *ApprovalCache {
	return &ApprovalCache{client: client, ttl: conf.ApprovalCacheTTL}
}

func approvalKey(userID string) string {
	return "approval:" + userID
}

func (c *ApprovalCache) GetApproval(ctx context.Context, userID string) (approved, cached bool, err error) {
	val, err := c.client.Get(ctx, approvalKey(userID)).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, errors.Wrap(err, "getting cached approval")
	}
	return val == "1", true, nil
}

func (c *ApprovalCache) SetApproval(ctx context.Context, userID string, approved bool) error {
	val := "0"
	if approved {
		val = "1"
	}
	if err := c.client.Set(ctx, approvalKey(userID), val, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "caching approval")
	}
	return nil
}

func (c *ApprovalCache) DeleteApproval(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, approvalKey(userID)).Err(); err != nil {
		return errors.Wrap(err, "invalidating cached approval")
	}
	return nil
}

// RedisLock is a best-effort SET NX lock.
type RedisLock struct {
	client *redis.Client
}

var _ reminder.Locker = (*RedisLock)(nil)

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

func (l *RedisLock) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, "lock:"+key, "1", ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "acquiring lock")
	}
	return ok, nil
}

func (l *RedisLock) Unlock(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, "lock:"+key).Err(); err != nil {
		return errors.Wrap(err, "releasing lock")
	}
	return nil
}
