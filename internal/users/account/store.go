// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"time"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/pkg/pagination"
)

// ErrApprovalChanged is returned by [Repository.UpdateApproval] when another
// reviewer changed the status first.
var ErrApprovalChanged = apperr.Conflict("", "The faculty review state changed meanwhile. Reload and try again.")

// # Query Types

// Lockout is the lockout state after a failed attempt was recorded.
type Lockout struct {
	Attempts  int
	LockUntil *time.Time
}

// FacultyFilter narrows the admin faculty queue.
type FacultyFilter struct {
	// Statuses restricts the result to these approval states. Empty means all.
	Statuses []ApprovalStatus
	Page     pagination.Params
}

// UniqueField is an identifier with a uniqueness constraint.
type UniqueField string

const (
	UniqueEmail            UniqueField = FieldEmail
	UniqueAdmissionNo      UniqueField = FieldAdmissionNo
	UniqueUniversityRollNo UniqueField = FieldUniversityRollNo
)

// NormalizeReport counts the rows rewritten by [Repository.NormalizeIdentifiers].
type NormalizeReport struct {
	Emails       int64 `json:"emails"`
	AdmissionNos int64 `json:"admission_nos"`
}

// # Account Data Access

// Repository defines the data access contract for every account variant.
//
// Every mutating method is a single atomic update against the stored state.
// None of them reads the document, recomputes it in Go and writes it back.
type Repository interface {

	/*
		Create persists a new account.

		Parameters:
		  - context: context.Context
		  - account: Account (*Student, *Faculty or *Admin)

		Returns:
		  - error: apperr.Conflict scoped to the duplicated field, or storage failures
	*/
	Create(context context.Context, account Account) error

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - Account: Hydrated variant
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id string) (Account, error)

	/*
		FindByEmail returns the account with the given normalized email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - Account: Hydrated variant
		  - error: apperr.NotFound or storage failures
	*/
	FindByEmail(context context.Context, email string) (Account, error)

	/*
		Exists reports whether any account already holds value for field.

		Parameters:
		  - context: context.Context
		  - field: UniqueField
		  - value: string (normalized)

		Returns:
		  - bool: True if taken
		  - error: Storage failures
	*/
	Exists(context context.Context, field UniqueField, value string) (bool, error)

	/*
		SetVerificationToken stores the pending verification token on the account.

		Parameters:
		  - context: context.Context
		  - id: string
		  - token: string
		  - expires: time.Time

		Returns:
		  - error: Storage failures
	*/
	SetVerificationToken(context context.Context, id, token string, expires time.Time) error

	/*
		MarkEmailVerified sets the verified flag and clears the token fields.

		Description: Conditional on the account still being unverified, so a
		second call is a no-op that reports false.

		Parameters:
		  - context: context.Context
		  - id: string
		  - now: time.Time

		Returns:
		  - bool: True if this call changed the account
		  - error: apperr.NotFound or storage failures
	*/
	MarkEmailVerified(context context.Context, id string, now time.Time) (bool, error)

	/*
		IncrementLoginAttempts records a failed password in one atomic update.

		Description: An expired lock restarts the counter at 1 and clears the
		lock; otherwise the counter is incremented and a lock of LockDuration is
		set when it reaches MaxLoginAttempts on an unlocked account.

		Parameters:
		  - context: context.Context
		  - id: string
		  - now: time.Time

		Returns:
		  - Lockout: The state after the update
		  - error: apperr.NotFound or storage failures
	*/
	IncrementLoginAttempts(context context.Context, id string, now time.Time) (Lockout, error)

	/*
		ResetLoginAttempts clears the counter and lock and stamps the last login.

		Parameters:
		  - context: context.Context
		  - id: string
		  - now: time.Time

		Returns:
		  - error: Storage failures
	*/
	ResetLoginAttempts(context context.Context, id string, now time.Time) error

	/*
		UpdateApproval writes the faculty review fields.

		Description: Conditional on the stored status still being expected, so
		two admins reviewing the same account cannot silently overwrite each other.

		Parameters:
		  - context: context.Context
		  - faculty: *Faculty (with the new review state)
		  - expected: ApprovalStatus (the status the change was decided from)

		Returns:
		  - error: apperr.Conflict if the status changed meanwhile, or storage failures
	*/
	UpdateApproval(context context.Context, faculty *Faculty, expected ApprovalStatus) error

	/*
		ListFaculty returns one page of faculty accounts, oldest first.

		Parameters:
		  - context: context.Context
		  - filter: FacultyFilter

		Returns:
		  - []*Faculty: The page
		  - int: Total matching accounts
		  - error: Storage failures
	*/
	ListFaculty(context context.Context, filter FacultyFilter) ([]*Faculty, int, error)

	/*
		UpdateEnrollment writes a student's academic record, legacy flags and
		cached completeness.

		Parameters:
		  - context: context.Context
		  - student: *Student

		Returns:
		  - error: apperr.Conflict scoped to the duplicated field, or storage failures
	*/
	UpdateEnrollment(context context.Context, student *Student) error

	/*
		NormalizeIdentifiers rewrites malformed identifiers in bulk: emails to
		trimmed lowercase, admission numbers to trimmed uppercase.

		Parameters:
		  - context: context.Context

		Returns:
		  - NormalizeReport: Rows changed per identifier
		  - error: apperr.Conflict if normalizing would collide with another account
	*/
	NormalizeIdentifiers(context context.Context) (NormalizeReport, error)

	/*
		Ping reports whether the store is reachable.
	*/
	Ping(context context.Context) error
}

// conflictFields maps constraint and index names to the field they protect.
var conflictFields = map[string]string{
	"uq_account_email":            FieldEmail,
	"uq_account_admissionno":      FieldAdmissionNo,
	"uq_account_universityrollno": FieldUniversityRollNo,
	"email_1":                     FieldEmail,
	"admissionNo_1":               FieldAdmissionNo,
	"universityRollNo_1":          FieldUniversityRollNo,
}
