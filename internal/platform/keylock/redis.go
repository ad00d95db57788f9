// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package keylock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/facultyeval/internal/platform/sec"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements [Locker] with SET NX PX, shared by every API replica.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a Redis-backed Locker.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

/*
Acquire takes the lock on key for at most ttl.

Parameters:
  - ctx: context.Context
  - key: string
  - ttl: time.Duration

Returns:
  - Release: Gives the lock back
  - error: ErrLocked or connectivity errors
*/
func (locker *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {

	// Each holder writes a random token so a late release cannot delete a successor's lock
	token, err := sec.GenerateSecureToken(16)
	if err != nil {
		return nil, fmt.Errorf("redis_keylock_token_failed: %w", err)
	}

	acquired, err := locker.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_keylock_acquire_failed: %w", err)
	}

	if !acquired {
		return nil, ErrLocked
	}

	release := func(releaseCtx context.Context) error {
		if err := releaseScript.Run(releaseCtx, locker.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("redis_keylock_release_failed: %w", err)
		}
		return nil
	}

	return release, nil
}

// Ping reports whether Redis is reachable.
func (locker *RedisLocker) Ping(ctx context.Context) error {
	return locker.client.Ping(ctx).Err()
}
