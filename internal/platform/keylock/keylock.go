// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package keylock provides short-lived, per-key mutual exclusion.
//
// # Usage
//
// The verification resend flow holds a lock on the email address while it
// checks the resend budget and rotates the code, so two concurrent resend
// clicks cannot both pass the cooldown check. The store's conditional update
// remains the final backstop; the lock only turns a lost race into a clean
// Cooldown answer instead of a second email.
//
// Locks always carry a TTL. A request that crashes while holding one blocks
// the key for at most that long.
package keylock

import (
	"context"
	"errors"
	"time"
)

// ErrLocked is returned by [Locker.Acquire] when another holder owns the key.
var ErrLocked = errors.New("keylock: key is held by another request")

// Release gives a lock back. Releasing a lock that already expired, or that
// another holder re-acquired after expiry, is a no-op.
type Release func(context.Context) error

// Locker acquires exclusive, expiring locks on string keys.
type Locker interface {
	// Acquire takes the lock on key for at most ttl. It returns [ErrLocked]
	// without waiting when the key is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)

	// Ping reports whether the lock backend is reachable.
	Ping(ctx context.Context) error
}
