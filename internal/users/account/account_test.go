// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/facultyeval/internal/users/account"
	"github.com/taibuivan/facultyeval/pkg/pointer"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

/*
TestRegisterFailedAttempt walks the lockout counter through its transitions.
*/
func TestRegisterFailedAttempt(t *testing.T) {
	t.Run("locks_on_fifth_failure", func(t *testing.T) {
		identity := &account.Identity{}

		for i := 1; i < account.MaxLoginAttempts; i++ {
			identity.RegisterFailedAttempt(epoch)
			assert.Equal(t, i, identity.LoginAttempts)
			assert.False(t, identity.IsLocked(epoch))
		}

		identity.RegisterFailedAttempt(epoch)
		assert.Equal(t, account.MaxLoginAttempts, identity.LoginAttempts)
		require.NotNil(t, identity.LockUntil)
		assert.Equal(t, epoch.Add(account.LockDuration), *identity.LockUntil)
		assert.True(t, identity.IsLocked(epoch))
		assert.Equal(t, 0, identity.AttemptsLeft())
	})

	t.Run("expired_lock_restarts_at_one", func(t *testing.T) {
		identity := &account.Identity{
			LoginAttempts: account.MaxLoginAttempts,
			LockUntil:     pointer.To(epoch.Add(-time.Minute)),
		}

		identity.RegisterFailedAttempt(epoch)

		assert.Equal(t, 1, identity.LoginAttempts)
		assert.Nil(t, identity.LockUntil)
		assert.Equal(t, account.MaxLoginAttempts-1, identity.AttemptsLeft())
	})

	t.Run("lock_ending_exactly_now_counts_as_expired", func(t *testing.T) {
		identity := &account.Identity{LoginAttempts: 5, LockUntil: pointer.To(epoch)}

		assert.False(t, identity.IsLocked(epoch))
		identity.RegisterFailedAttempt(epoch)
		assert.Equal(t, 1, identity.LoginAttempts)
	})

	t.Run("active_lock_is_not_extended", func(t *testing.T) {
		until := epoch.Add(time.Hour)
		identity := &account.Identity{LoginAttempts: 5, LockUntil: pointer.To(until)}

		identity.RegisterFailedAttempt(epoch)

		assert.Equal(t, 6, identity.LoginAttempts)
		assert.Equal(t, until, *identity.LockUntil)
	})
}

/*
TestResetLoginAttempts clears the counter and stamps the login time.
*/
func TestResetLoginAttempts(t *testing.T) {
	identity := &account.Identity{LoginAttempts: 3, LockUntil: pointer.To(epoch.Add(-time.Hour))}

	identity.ResetLoginAttempts(epoch)

	assert.Zero(t, identity.LoginAttempts)
	assert.Nil(t, identity.LockUntil)
	require.NotNil(t, identity.LastLogin)
	assert.Equal(t, epoch, *identity.LastLogin)
}

/*
TestVerifyEmail is idempotent and clears the stored token.
*/
func TestVerifyEmail(t *testing.T) {
	identity := &account.Identity{
		EmailVerificationToken:   pointer.To("abc"),
		EmailVerificationExpires: pointer.To(epoch.Add(account.VerificationTTL)),
	}

	assert.True(t, identity.VerifyEmail())
	assert.True(t, identity.IsEmailVerified)
	assert.Nil(t, identity.EmailVerificationToken)
	assert.Nil(t, identity.EmailVerificationExpires)

	assert.False(t, identity.VerifyEmail())
	assert.True(t, identity.IsEmailVerified)
}

/*
TestAdminCanLogin starts verified and is gated only by the lock.
*/
func TestAdminCanLogin(t *testing.T) {
	admin := account.NewAdmin("id-1", "root@university.edu", "Root Admin", "hash", epoch)

	assert.True(t, admin.IsEmailVerified)
	assert.True(t, admin.CanLogin(epoch))

	admin.LockUntil = pointer.To(epoch.Add(time.Minute))
	assert.False(t, admin.CanLogin(epoch))
	assert.True(t, admin.CanLogin(epoch.Add(time.Minute)))
}
