// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package verification implements the ledger of pending email verifications.

A [Record] proves control of an email address through either a long token
(embedded in the emailed link) or a short code (typed by hand). The token is
stable for the life of the record; the code is rotated on every resend and is
the credential subject to the attempt and resend budgets.

# Ownership

The record is the only writer of its own attempts and resend counters. The
account remains the only writer of its verified flag; the [Ledger] marks the
record first and then asks the account to verify itself, so a crash between
the two writes is healed by the next verification attempt.
*/
package verification

import (
	"crypto/subtle"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/platform/sec"
)

// # Ledger Policy

const (
	// TokenBytes is the entropy of the link token before hex encoding.
	TokenBytes = 32

	// CodeLength is the length of the hand-typed fallback code.
	CodeLength = 6

	// MaxAttempts is the number of wrong codes accepted before the record refuses codes.
	// The cap applies to the hand-typed code only. The emailed link token is too
	// long to guess, so it still verifies a record that has used up its attempts.
	MaxAttempts = 5

	// MaxResends is the number of code rotations a record allows.
	MaxResends = 3

	// ResendCooldown is the minimum spacing between two resends.
	ResendCooldown = 5 * time.Minute

	// RecordTTL is the absolute lifetime of an unverified record.
	RecordTTL = 24 * time.Hour
)

// # Record

// Record is one verification ledger entry.
type Record struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	Token        string       `json:"-"`
	Code         string       `json:"-"`
	UserID       string       `json:"user_id"`
	UserType     sec.UserRole `json:"user_type"`
	IsVerified   bool         `json:"is_verified"`
	VerifiedAt   *time.Time   `json:"verified_at,omitempty"`
	Attempts     int          `json:"attempts"`
	ResendCount  int          `json:"resend_count"`
	LastResendAt *time.Time   `json:"last_resend_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// IsCode reports whether presented has the shape of a code rather than a token.
func IsCode(presented string) bool {
	return len(strings.TrimSpace(presented)) == CodeLength
}

// Matches compares presented against the code (case-insensitive) or the
// token (exact), in constant time.
func (record *Record) Matches(presented string) bool {
	presented = strings.TrimSpace(presented)
	if IsCode(presented) {
		return subtle.ConstantTimeCompare([]byte(strings.ToUpper(presented)), []byte(record.Code)) == 1
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(record.Token)) == 1
}

// AttemptsLeft is the number of wrong codes still tolerated.
func (record *Record) AttemptsLeft() int {
	return max(MaxAttempts-record.Attempts, 0)
}

// CooldownRemaining is how long until the next resend is allowed.
func (record *Record) CooldownRemaining(now time.Time) time.Duration {
	if record.LastResendAt == nil {
		return 0
	}
	return max(record.LastResendAt.Add(ResendCooldown).Sub(now), 0)
}

// CanResend reports whether a resend would currently be accepted.
func (record *Record) CanResend(now time.Time) bool {
	return !record.IsVerified && record.ResendCount < MaxResends && record.CooldownRemaining(now) == 0
}

// IsExpired reports whether the absolute lifetime has elapsed.
func (record *Record) IsExpired(now time.Time) bool {
	return !now.Before(record.ExpiresAt)
}

// # Failure Kinds

// Machine-readable codes of the ledger failures.
const (
	CodeInvalidOrExpired  = "INVALID_OR_EXPIRED"
	CodeAlreadyVerified   = "ALREADY_VERIFIED"
	CodeTooManyAttempts   = "TOO_MANY_ATTEMPTS"
	CodeInvalidCredential = "INVALID_CREDENTIAL"
	CodeNotFound          = "VERIFICATION_NOT_FOUND"
	CodeLimitReached      = "RESEND_LIMIT_REACHED"
	CodeCooldown          = "RESEND_COOLDOWN"
)

// ErrInvalidOrExpired means no usable record matches the email.
func ErrInvalidOrExpired() *apperr.AppError {
	return apperr.New(http.StatusBadRequest, CodeInvalidOrExpired,
		"This verification link or code is invalid or has expired")
}

// ErrAlreadyVerified means the email was verified before.
func ErrAlreadyVerified() *apperr.AppError {
	return apperr.New(http.StatusConflict, CodeAlreadyVerified, "This email is already verified. You can log in.")
}

// ErrTooManyAttempts means the code budget is spent; a resend restores it.
func ErrTooManyAttempts() *apperr.AppError {
	return apperr.New(http.StatusTooManyRequests, CodeTooManyAttempts,
		"Too many incorrect codes. Request a new code to try again.").
		WithMeta("attempts_left", 0).
		WithMeta("can_resend", true)
}

// ErrInvalidCredential reports a mismatch with the remaining budget.
func ErrInvalidCredential(attemptsLeft int) *apperr.AppError {
	return apperr.New(http.StatusBadRequest, CodeInvalidCredential,
		fmt.Sprintf("Incorrect verification code. %d attempt(s) left.", attemptsLeft)).
		WithMeta("attempts_left", attemptsLeft)
}

// ErrNotFound means the email has no pending verification.
func ErrNotFound() *apperr.AppError {
	return apperr.New(http.StatusNotFound, CodeNotFound,
		"No pending verification for this email. Check the address or sign up first.")
}

// ErrLimitReached means all resends were used.
func ErrLimitReached() *apperr.AppError {
	return apperr.New(http.StatusTooManyRequests, CodeLimitReached,
		"The resend limit for this email was reached. Contact support.").
		WithMeta("max_resends", MaxResends).
		WithMeta("resends_left", 0)
}

// ErrCooldown means the previous resend was too recent.
func ErrCooldown(remaining time.Duration) *apperr.AppError {
	seconds := int(math.Ceil(remaining.Seconds()))
	return apperr.New(http.StatusTooManyRequests, CodeCooldown,
		fmt.Sprintf("Please wait %ds before requesting another code.", seconds)).
		WithMeta("retry_after_seconds", seconds)
}
