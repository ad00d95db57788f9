// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/users/account"
)

// # Login Gates

// Machine-readable codes of the login gates, in evaluation order.
const (
	CodeEmailNotFound    = "EMAIL_NOT_FOUND"
	CodeAccountLocked    = "ACCOUNT_LOCKED"
	CodeEmailNotVerified = "EMAIL_NOT_VERIFIED"
	CodeApprovalRequired = "APPROVAL_REQUIRED"
	CodeAccountInactive  = "ACCOUNT_INACTIVE"
	CodeWrongPassword    = "WRONG_PASSWORD"
)

// ErrEmailNotFound is returned when no account holds the email.
func ErrEmailNotFound() *apperr.AppError {
	return apperr.New(http.StatusNotFound, CodeEmailNotFound, "No account is registered with this email")
}

// ErrAccountLocked carries the unlock time.
func ErrAccountLocked(lockUntil time.Time) *apperr.AppError {
	return apperr.New(http.StatusLocked, CodeAccountLocked, "Too many failed attempts. The account is temporarily locked.").
		WithMeta("lock_until", lockUntil.UTC())
}

// ErrEmailNotVerified tells the client whether a new code can be requested right now.
func ErrEmailNotVerified(canResend bool) *apperr.AppError {
	return apperr.New(http.StatusForbidden, CodeEmailNotVerified, "Verify your email before logging in").
		WithMeta("can_resend", canResend)
}

// ErrApprovalRequired carries the faculty review state and the reason of a rejection.
func ErrApprovalRequired(faculty *account.Faculty) *apperr.AppError {
	message := "Your faculty account is awaiting administrator approval"
	if faculty.ApprovalStatus == account.ApprovalRejected {
		message = "Your faculty account request was rejected"
	}

	appErr := apperr.New(http.StatusForbidden, CodeApprovalRequired, message).
		WithMeta("approval_status", faculty.ApprovalStatus)
	if faculty.RejectionReason != nil {
		appErr.WithMeta("rejection_reason", *faculty.RejectionReason)
	}
	return appErr
}

// ErrAccountInactive is returned for a deactivated student.
func ErrAccountInactive() *apperr.AppError {
	return apperr.New(http.StatusForbidden, CodeAccountInactive, "This account has been deactivated")
}

// ErrWrongPassword carries the remaining budget, and the unlock time once the
// failure that was just recorded locked the account.
func ErrWrongPassword(lockout account.Lockout, now time.Time) *apperr.AppError {
	appErr := apperr.New(http.StatusUnauthorized, CodeWrongPassword, "Incorrect password").
		WithMeta("attempts_left", max(account.MaxLoginAttempts-lockout.Attempts, 0))
	if lockout.LockUntil != nil && lockout.LockUntil.After(now) {
		appErr.Message = "Incorrect password. The account is now temporarily locked."
		appErr.WithMeta("lock_until", lockout.LockUntil.UTC())
	}
	return appErr
}

// # Next Steps

// Guidance returned after a successful verification.
const (
	nextStepVerified = "Your email is verified."
	nextStepLogin    = "You can now log in."
	nextStepApproval = "An administrator will review your faculty account before you can log in."
)
