// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package keylock

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/taibuivan/facultyeval/internal/platform/sec"
)

// memoryCleanupInterval is how often expired lock entries are purged.
const memoryCleanupInterval = 1 * time.Minute

// MemoryLocker implements [Locker] in process. It is used when REDIS_URL is
// empty, which is only correct for a single API instance.
type MemoryLocker struct {
	mutex sync.Mutex
	store *cache.Cache
}

// NewMemoryLocker creates an in-process Locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		store: cache.New(cache.NoExpiration, memoryCleanupInterval),
	}
}

// Acquire takes the lock on key for at most ttl.
func (locker *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	token, err := sec.GenerateSecureToken(16)
	if err != nil {
		return nil, err
	}

	locker.mutex.Lock()
	defer locker.mutex.Unlock()

	// Add fails while an unexpired entry exists for key
	if err := locker.store.Add(key, token, ttl); err != nil {
		return nil, ErrLocked
	}

	release := func(context.Context) error {
		locker.mutex.Lock()
		defer locker.mutex.Unlock()

		if current, found := locker.store.Get(key); found && current == token {
			locker.store.Delete(key)
		}
		return nil
	}

	return release, nil
}

// Ping always succeeds.
func (locker *MemoryLocker) Ping(context.Context) error {
	return nil
}
