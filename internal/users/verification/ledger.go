// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/platform/constants"
	"github.com/taibuivan/facultyeval/internal/platform/ctxutil"
	"github.com/taibuivan/facultyeval/internal/platform/keylock"
	"github.com/taibuivan/facultyeval/internal/platform/sec"
	"github.com/taibuivan/facultyeval/pkg/pointer"
	"github.com/taibuivan/facultyeval/pkg/uuid"
)

// # Contracts

// AccountVerifier marks the owning account verified. It must be idempotent.
type AccountVerifier interface {
	MarkEmailVerified(context context.Context, id string, now time.Time) (bool, error)
}

// Ledger issues, checks and rotates verification credentials.
type Ledger struct {
	repository Repository
	accounts   AccountVerifier
	locker     keylock.Locker
	clock      func() time.Time
}

// NewLedger constructs a [Ledger]. A nil clock defaults to UTC wall time.
func NewLedger(repository Repository, accounts AccountVerifier, locker keylock.Locker, clock func() time.Time) *Ledger {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{repository: repository, accounts: accounts, locker: locker, clock: clock}
}

// # Issuance

/*
Issue creates a record with a fresh token and code.

Parameters:
  - context: context.Context
  - email: string (normalized)
  - userID: string
  - userType: sec.UserRole (student or faculty)

Returns:
  - *Record: The stored record, carrying both credentials
  - error: Storage or entropy failures
*/
func (ledger *Ledger) Issue(context context.Context, email, userID string, userType sec.UserRole) (*Record, error) {
	token, err := sec.GenerateSecureToken(TokenBytes)
	if err != nil {
		return nil, fmt.Errorf("verification_ledger_token_failed: %w", err)
	}

	code, err := sec.GenerateCode(CodeLength)
	if err != nil {
		return nil, fmt.Errorf("verification_ledger_code_failed: %w", err)
	}

	now := ledger.clock()
	record := &Record{
		ID:        uuid.New(),
		Email:     email,
		Token:     token,
		Code:      code,
		UserID:    userID,
		UserType:  userType,
		CreatedAt: now,
		ExpiresAt: now.Add(RecordTTL),
	}

	if err := ledger.repository.Create(context, record); err != nil {
		return nil, fmt.Errorf("verification_ledger_issue_failed: %w", err)
	}

	return record, nil
}

// # Lookup

/*
FindActive returns the unverified, unexpired record matching the identifier.

Parameters:
  - context: context.Context
  - identifier: string (token or code)
  - email: string (normalized)

Returns:
  - *Record
  - error: apperr.NotFound or storage failures
*/
func (ledger *Ledger) FindActive(context context.Context, identifier, email string) (*Record, error) {
	identifier = strings.TrimSpace(identifier)
	if IsCode(identifier) {
		identifier = strings.ToUpper(identifier)
	}
	return ledger.repository.FindActive(context, email, identifier, ledger.clock())
}

/*
Locate picks the record a verification request is judged against.

Description: An exact match wins. Otherwise the pending record of the email
is returned so a wrong code still counts against its budget, and failing that
a verified record so the caller learns the email is already verified.

Parameters:
  - context: context.Context
  - email: string (normalized)
  - presented: string (token or code)

Returns:
  - *Record
  - error: ErrInvalidOrExpired or storage failures
*/
func (ledger *Ledger) Locate(context context.Context, email, presented string) (*Record, error) {
	record, err := ledger.FindActive(context, presented, email)
	if err == nil {
		return record, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	record, err = ledger.repository.FindPending(context, email, ledger.clock())
	if err == nil {
		return record, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	record, err = ledger.repository.FindLatest(context, email)
	if err == nil && record.IsVerified {
		return record, nil
	}
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	return nil, ErrInvalidOrExpired()
}

// Pending returns the newest unverified, unexpired record of email.
func (ledger *Ledger) Pending(context context.Context, email string) (*Record, error) {
	return ledger.repository.FindPending(context, email, ledger.clock())
}

// Latest returns the newest record of email in any state.
func (ledger *Ledger) Latest(context context.Context, email string) (*Record, error) {
	return ledger.repository.FindLatest(context, email)
}

// # Verification

/*
Verify checks presented against record and, on a match, verifies both the
record and the owning account.

Description: A verified record is answered with AlreadyVerified after the
account is re-marked, which heals an account write lost after the ledger
write. Codes are refused once the attempt budget is spent; the stable token
from the emailed link is still accepted.

Parameters:
  - context: context.Context
  - record: *Record
  - presented: string (token or code)

Returns:
  - *Record: The record, now verified
  - error: AlreadyVerified, TooManyAttempts, InvalidCredential or storage failures
*/
func (ledger *Ledger) Verify(context context.Context, record *Record, presented string) (*Record, error) {
	logger := ctxutil.GetLogger(context)
	now := ledger.clock()

	if record.IsVerified {
		if _, err := ledger.accounts.MarkEmailVerified(context, record.UserID, now); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("verification_ledger_heal_failed: %w", err)
		}
		return nil, ErrAlreadyVerified()
	}

	if IsCode(presented) && record.Attempts >= MaxAttempts {
		return nil, ErrTooManyAttempts()
	}

	if !record.Matches(presented) {
		attempts, err := ledger.repository.IncrementAttempts(context, record.ID)
		if err != nil {
			return nil, fmt.Errorf("verification_ledger_increment_failed: %w", err)
		}
		record.Attempts = attempts

		logger.Info("verification_attempt_failed",
			slog.String("record_id", record.ID),
			slog.Int("attempts", attempts),
		)
		return nil, ErrInvalidCredential(record.AttemptsLeft())
	}

	// The ledger write happens before the account write
	if _, err := ledger.repository.MarkVerified(context, record.ID, now); err != nil {
		return nil, fmt.Errorf("verification_ledger_mark_failed: %w", err)
	}
	record.IsVerified = true
	record.VerifiedAt = pointer.To(now)

	if _, err := ledger.accounts.MarkEmailVerified(context, record.UserID, now); err != nil {
		return nil, fmt.Errorf("verification_ledger_account_failed: %w", err)
	}

	return record, nil
}

// # Resend

/*
Resend rotates the code of the pending record of email.

Description: Checks run as NotFound, then LimitReached, then Cooldown, so a
spent budget is reported even after the cooldown elapsed. The key lock
serializes concurrent resends; the conditional rotate is the backstop.

Parameters:
  - context: context.Context
  - email: string (normalized)

Returns:
  - *Record: The record with the new code
  - error: NotFound, LimitReached, Cooldown or storage failures
*/
func (ledger *Ledger) Resend(ctx context.Context, email string) (*Record, error) {
	release, err := ledger.locker.Acquire(ctx, constants.LockPrefixResend+email, constants.ResendLockTTL)
	if errors.Is(err, keylock.ErrLocked) {
		return nil, ErrCooldown(ResendCooldown)
	}
	if err != nil {
		return nil, fmt.Errorf("verification_ledger_lock_failed: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			ctxutil.GetLogger(ctx).Warn("resend_lock_release_failed", slog.Any("error", err))
		}
	}()

	now := ledger.clock()
	record, err := ledger.repository.FindPending(ctx, email, now)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound()
		}
		return nil, fmt.Errorf("verification_ledger_find_pending_failed: %w", err)
	}

	if record.ResendCount >= MaxResends {
		return nil, ErrLimitReached()
	}

	if remaining := record.CooldownRemaining(now); remaining > 0 {
		return nil, ErrCooldown(remaining)
	}

	code, err := sec.GenerateCode(CodeLength)
	if err != nil {
		return nil, fmt.Errorf("verification_ledger_code_failed: %w", err)
	}

	if err := ledger.repository.Rotate(ctx, record.ID, code, record.ResendCount, now); err != nil {
		if errors.Is(err, ErrStale) {
			return nil, ErrCooldown(ResendCooldown)
		}
		return nil, fmt.Errorf("verification_ledger_rotate_failed: %w", err)
	}

	record.Code = code
	record.ResendCount++
	record.Attempts = 0
	record.LastResendAt = pointer.To(now)

	return record, nil
}

// # Maintenance

// CleanupExpired deletes unverified records older than [RecordTTL].
func (ledger *Ledger) CleanupExpired(context context.Context) (int64, error) {
	deleted, err := ledger.repository.DeleteUnverifiedBefore(context, ledger.clock().Add(-RecordTTL))
	if err != nil {
		return 0, fmt.Errorf("verification_ledger_cleanup_failed: %w", err)
	}
	return deleted, nil
}

// Verified lists every verified record for reconciliation.
func (ledger *Ledger) Verified(context context.Context) ([]*Record, error) {
	return ledger.repository.ListVerified(context)
}

func isNotFound(err error) bool {
	appErr := apperr.As(err)
	return appErr != nil && appErr.Code == "NOT_FOUND"
}
