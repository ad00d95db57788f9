// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account defines the Student, Faculty and Admin entities and the
invariants they own.

Every variant embeds an [Identity] carrying the credential, verification and
lockout fields. Variant-specific gates (student activation, faculty approval)
live on the variant itself, so a login decision is made by asking the entity,
never by reading loose fields.

# Architecture

Entities have no storage dependency. The methods here are the single source
of truth for each transition; the repositories apply the same rules as one
atomic update against the stored document (see [Repository]).
*/
package account

import (
	"net/http"
	"time"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/platform/sec"
	"github.com/taibuivan/facultyeval/pkg/pointer"
)

// # Lockout Policy

const (
	// MaxLoginAttempts is the number of consecutive failed passwords that locks an account.
	MaxLoginAttempts = 5

	// LockDuration is how long a locked account stays locked.
	LockDuration = 2 * time.Hour

	// VerificationTTL is the lifetime of the verification token stored on the account.
	VerificationTTL = 24 * time.Hour
)

// ErrInvalidTransition is returned when an approval transition is not allowed
// from the account's current state.
var ErrInvalidTransition = apperr.New(http.StatusConflict, "INVALID_TRANSITION", "This change is not allowed in the account's current state")

// # Identity

// Identity holds the fields shared by every account variant.
type Identity struct {
	ID    string       `json:"id"`
	Role  sec.UserRole `json:"role"`
	Email string       `json:"email"`
	Name  string       `json:"name"`

	PasswordHash string `json:"-"`

	IsEmailVerified          bool       `json:"is_email_verified"`
	EmailVerificationToken   *string    `json:"-"`
	EmailVerificationExpires *time.Time `json:"-"`

	LoginAttempts int        `json:"-"`
	LockUntil     *time.Time `json:"lock_until,omitempty"`
	LastLogin     *time.Time `json:"last_login,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsLocked reports whether a lock is set and still in the future.
func (identity *Identity) IsLocked(now time.Time) bool {
	return identity.LockUntil != nil && identity.LockUntil.After(now)
}

// VerifyEmail marks the email as verified and clears the token fields.
//
// Calling it on an already verified account leaves the state unchanged and
// reports false; it never fails.
func (identity *Identity) VerifyEmail() bool {
	if identity.IsEmailVerified {
		return false
	}

	identity.IsEmailVerified = true
	identity.EmailVerificationToken = nil
	identity.EmailVerificationExpires = nil
	return true
}

// RegisterFailedAttempt records a wrong password.
//
// An expired lock restarts the count at 1 instead of continuing from the
// stale value. Reaching [MaxLoginAttempts] while unlocked sets a fresh lock
// of [LockDuration].
func (identity *Identity) RegisterFailedAttempt(now time.Time) {
	if identity.LockUntil != nil && !identity.LockUntil.After(now) {
		identity.LoginAttempts = 1
		identity.LockUntil = nil
		return
	}

	identity.LoginAttempts++
	if identity.LoginAttempts >= MaxLoginAttempts && !identity.IsLocked(now) {
		identity.LockUntil = pointer.To(now.Add(LockDuration))
	}
}

// ResetLoginAttempts clears the failure count and any lock after a successful login.
func (identity *Identity) ResetLoginAttempts(now time.Time) {
	identity.LoginAttempts = 0
	identity.LockUntil = nil
	identity.LastLogin = pointer.To(now)
}

// AttemptsLeft is the number of wrong passwords tolerated before the lock.
func (identity *Identity) AttemptsLeft() int {
	return max(MaxLoginAttempts-identity.LoginAttempts, 0)
}

// # Account Variants

// Account is implemented by [*Student], [*Faculty] and [*Admin].
type Account interface {
	// Base returns the shared identity fields.
	Base() *Identity

	// CanLogin reports whether every login gate passes at now,
	// ignoring the password.
	CanLogin(now time.Time) bool
}

// Base returns the shared identity fields.
func (identity *Identity) Base() *Identity {
	return identity
}

// Admin is a platform operator. It has no gate beyond verification and lockout.
type Admin struct {
	Identity
}

// NewAdmin creates an admin. Admins are provisioned from the command line,
// so the email is trusted and starts verified.
func NewAdmin(id, email, name, passwordHash string, now time.Time) *Admin {
	return &Admin{Identity: Identity{
		ID:              id,
		Role:            sec.RoleAdmin,
		Email:           email,
		Name:            name,
		PasswordHash:    passwordHash,
		IsEmailVerified: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}}
}

// CanLogin reports whether the admin is verified and unlocked.
func (admin *Admin) CanLogin(now time.Time) bool {
	return admin.IsEmailVerified && !admin.IsLocked(now)
}

// # Field Identifiers

// JSON field names used for validation and conflict reporting.
const (
	FieldEmail            = "email"
	FieldName             = "name"
	FieldPassword         = "password"
	FieldRole             = "role"
	FieldPhone            = "phone"
	FieldDepartment       = "department"
	FieldSubject          = "subject"
	FieldAdmissionNo      = "admission_no"
	FieldUniversityRollNo = "university_roll_no"
	FieldSemester         = "semester"
	FieldSection          = "section"
	FieldReason           = "reason"
)
