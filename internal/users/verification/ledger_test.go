// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package verification_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/platform/constants"
	"github.com/taibuivan/facultyeval/internal/platform/keylock"
	"github.com/taibuivan/facultyeval/internal/platform/sec"
	"github.com/taibuivan/facultyeval/internal/users/account"
	"github.com/taibuivan/facultyeval/internal/users/memstore"
	"github.com/taibuivan/facultyeval/internal/users/verification"
)

const email = "asha@university.edu"

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }
func (c *clock) Advance(delta time.Duration) { c.now = c.now.Add(delta) }

type fixture struct {
	ledger   *verification.Ledger
	records  *memstore.VerificationRepository
	accounts *memstore.AccountRepository
	locker   *keylock.MemoryLocker
	clock    *clock
	record   *verification.Record
}

func setup(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		records:  memstore.NewVerificationRepository(),
		accounts: memstore.NewAccountRepository(),
		locker:   keylock.NewMemoryLocker(),
		clock:    &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.ledger = verification.NewLedger(f.records, f.accounts, f.locker, f.clock.Now)

	student := account.NewStudent("s1", email, "Asha Rao", "hash", "", account.AcademicRecord{
		AdmissionNo: "AB12345678", UniversityRollNo: "123456", Semester: "1st", Section: "Section A",
	}, f.clock.now)
	require.NoError(t, f.accounts.Create(context.Background(), student))

	record, err := f.ledger.Issue(context.Background(), email, "s1", sec.RoleStudent)
	require.NoError(t, err)
	f.record = record
	return f
}

func (f *fixture) accountVerified(t *testing.T) bool {
	t.Helper()
	stored, err := f.accounts.FindByID(context.Background(), "s1")
	require.NoError(t, err)
	return stored.Base().IsEmailVerified
}

func code(t *testing.T, err error) string {
	t.Helper()
	appErr := apperr.As(err)
	require.NotNil(t, appErr, "expected an AppError, got %v", err)
	return appErr.Code
}

/*
TestIssue produces a hex token and an uppercase code with a 24h expiry.
*/
func TestIssue(t *testing.T) {
	f := setup(t)

	assert.Len(t, f.record.Token, verification.TokenBytes*2)
	assert.Len(t, f.record.Code, verification.CodeLength)
	assert.Equal(t, strings.ToUpper(f.record.Code), f.record.Code)
	assert.Equal(t, f.record.CreatedAt.Add(verification.RecordTTL), f.record.ExpiresAt)
	assert.Zero(t, f.record.Attempts)
	assert.Zero(t, f.record.ResendCount)
	assert.False(t, f.record.IsVerified)
}

/*
TestVerify covers the round trip and every failure kind.
*/
func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("token_round_trip", func(t *testing.T) {
		f := setup(t)

		record, err := f.ledger.Locate(ctx, email, f.record.Token)
		require.NoError(t, err)
		verified, err := f.ledger.Verify(ctx, record, f.record.Token)
		require.NoError(t, err)

		assert.True(t, verified.IsVerified)
		assert.NotNil(t, verified.VerifiedAt)
		assert.True(t, f.accountVerified(t))

		latest, err := f.records.FindLatest(ctx, email)
		require.NoError(t, err)
		assert.True(t, latest.IsVerified)
	})

	t.Run("code_is_case_insensitive", func(t *testing.T) {
		f := setup(t)
		presented := " " + strings.ToLower(f.record.Code) + " "

		record, err := f.ledger.Locate(ctx, email, presented)
		require.NoError(t, err)
		_, err = f.ledger.Verify(ctx, record, presented)
		require.NoError(t, err)
		assert.True(t, f.accountVerified(t))
	})

	t.Run("wrong_code_counts_against_pending_record", func(t *testing.T) {
		f := setup(t)

		record, err := f.ledger.Locate(ctx, email, "ZZZZZZ")
		require.NoError(t, err)
		assert.Equal(t, f.record.ID, record.ID)

		_, err = f.ledger.Verify(ctx, record, "ZZZZZZ")
		assert.Equal(t, verification.CodeInvalidCredential, code(t, err))
		assert.Equal(t, 4, apperr.As(err).Meta["attempts_left"])
		assert.False(t, f.accountVerified(t))
	})

	t.Run("attempt_cap_refuses_correct_code", func(t *testing.T) {
		f := setup(t)
		f.record.Attempts = verification.MaxAttempts
		f.records.Update(f.record)

		record, err := f.ledger.Locate(ctx, email, f.record.Code)
		require.NoError(t, err)
		_, err = f.ledger.Verify(ctx, record, f.record.Code)

		assert.Equal(t, verification.CodeTooManyAttempts, code(t, err))
		assert.False(t, f.accountVerified(t))
	})

	t.Run("attempt_cap_still_accepts_link_token", func(t *testing.T) {
		f := setup(t)
		for range verification.MaxAttempts {
			record, err := f.ledger.Locate(ctx, email, "ZZZZZZ")
			require.NoError(t, err)
			_, err = f.ledger.Verify(ctx, record, "ZZZZZZ")
			require.Equal(t, verification.CodeInvalidCredential, code(t, err))
		}

		record, err := f.ledger.Locate(ctx, email, f.record.Code)
		require.NoError(t, err)
		_, err = f.ledger.Verify(ctx, record, f.record.Code)
		require.Equal(t, verification.CodeTooManyAttempts, code(t, err))

		record, err = f.ledger.Locate(ctx, email, f.record.Token)
		require.NoError(t, err)
		_, err = f.ledger.Verify(ctx, record, f.record.Token)

		require.NoError(t, err)
		assert.True(t, f.accountVerified(t))
	})

	t.Run("second_verify_is_already_verified", func(t *testing.T) {
		f := setup(t)
		record, err := f.ledger.Locate(ctx, email, f.record.Token)
		require.NoError(t, err)
		_, err = f.ledger.Verify(ctx, record, f.record.Token)
		require.NoError(t, err)

		record, err = f.ledger.Locate(ctx, email, f.record.Token)
		require.NoError(t, err)
		_, err = f.ledger.Verify(ctx, record, f.record.Token)

		assert.Equal(t, verification.CodeAlreadyVerified, code(t, err))
		assert.True(t, f.accountVerified(t))
	})

	t.Run("verified_record_heals_account", func(t *testing.T) {
		f := setup(t)
		_, err := f.records.MarkVerified(ctx, f.record.ID, f.clock.Now())
		require.NoError(t, err)
		require.False(t, f.accountVerified(t))

		record, err := f.ledger.Locate(ctx, email, f.record.Code)
		require.NoError(t, err)
		_, err = f.ledger.Verify(ctx, record, f.record.Code)

		assert.Equal(t, verification.CodeAlreadyVerified, code(t, err))
		assert.True(t, f.accountVerified(t))
	})

	t.Run("expired_record_is_invalid", func(t *testing.T) {
		f := setup(t)
		f.clock.Advance(verification.RecordTTL)

		_, err := f.ledger.Locate(ctx, email, f.record.Token)
		assert.Equal(t, verification.CodeInvalidOrExpired, code(t, err))
	})

	t.Run("unknown_email_is_invalid", func(t *testing.T) {
		f := setup(t)

		_, err := f.ledger.Locate(ctx, "ghost@university.edu", f.record.Token)
		assert.Equal(t, verification.CodeInvalidOrExpired, code(t, err))
	})
}

/*
TestResend checks the budget order and the code rotation.
*/
func TestResend(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates_code_keeps_token", func(t *testing.T) {
		f := setup(t)
		f.record.Attempts = 3
		f.records.Update(f.record)

		record, err := f.ledger.Resend(ctx, email)
		require.NoError(t, err)

		assert.Equal(t, f.record.Token, record.Token)
		assert.Equal(t, 1, record.ResendCount)
		assert.Zero(t, record.Attempts)
		require.NotNil(t, record.LastResendAt)

		stored, err := f.records.FindPending(ctx, email, f.clock.Now())
		require.NoError(t, err)
		assert.Equal(t, record.Code, stored.Code)
		assert.Zero(t, stored.Attempts)
	})

	t.Run("cooldown_between_resends", func(t *testing.T) {
		f := setup(t)
		_, err := f.ledger.Resend(ctx, email)
		require.NoError(t, err)

		f.clock.Advance(verification.ResendCooldown - time.Minute)
		_, err = f.ledger.Resend(ctx, email)
		assert.Equal(t, verification.CodeCooldown, code(t, err))
		assert.Equal(t, 60, apperr.As(err).Meta["retry_after_seconds"])

		f.clock.Advance(time.Minute)
		_, err = f.ledger.Resend(ctx, email)
		assert.NoError(t, err)
	})

	t.Run("fourth_resend_hits_limit_after_cooldown", func(t *testing.T) {
		f := setup(t)
		for range verification.MaxResends {
			_, err := f.ledger.Resend(ctx, email)
			require.NoError(t, err)
			f.clock.Advance(verification.ResendCooldown)
		}

		f.clock.Advance(time.Hour)
		_, err := f.ledger.Resend(ctx, email)
		assert.Equal(t, verification.CodeLimitReached, code(t, err))
	})

	t.Run("no_pending_record", func(t *testing.T) {
		f := setup(t)

		_, err := f.ledger.Resend(ctx, "ghost@university.edu")
		assert.Equal(t, verification.CodeNotFound, code(t, err))
	})

	t.Run("concurrent_holder_gets_cooldown", func(t *testing.T) {
		f := setup(t)
		release, err := f.locker.Acquire(ctx, constants.LockPrefixResend+email, time.Minute)
		require.NoError(t, err)
		defer func() { _ = release(ctx) }()

		_, err = f.ledger.Resend(ctx, email)
		assert.Equal(t, verification.CodeCooldown, code(t, err))
	})
}

/*
TestCleanupExpired removes only stale unverified records.
*/
func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	verified, err := f.ledger.Issue(ctx, "other@university.edu", "s1", sec.RoleStudent)
	require.NoError(t, err)
	_, err = f.records.MarkVerified(ctx, verified.ID, f.clock.Now())
	require.NoError(t, err)

	deleted, err := f.ledger.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	f.clock.Advance(verification.RecordTTL + time.Second)
	deleted, err = f.ledger.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	records, err := f.ledger.Verified(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, verified.ID, records[0].ID)
}

/*
TestRecordMatches compares codes case-insensitively and tokens exactly.
*/
func TestRecordMatches(t *testing.T) {
	record := &verification.Record{Token: strings.Repeat("ab", 32), Code: "K7QX2M"}

	tests := []struct {
		name      string
		presented string
		want      bool
	}{
		{"code_exact", "K7QX2M", true},
		{"code_lowercase", "k7qx2m", true},
		{"code_wrong", "K7QX2N", false},
		{"token_exact", strings.Repeat("ab", 32), true},
		{"token_uppercase_rejected", strings.Repeat("AB", 32), false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, record.Matches(tt.presented))
		})
	}
}
