// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package memstore provides in-process repositories for accounts and
verification records.

They back STORE_DRIVER=memory for local development and serve as the fakes in
service and handler tests. Every method holds one mutex for its whole
read-modify-write, which gives the same single-update atomicity the database
implementations get from conditional UPDATEs. Entities are copied on the way
in and out so callers never share state with the store.
*/
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/users/account"
	"github.com/taibuivan/facultyeval/pkg/pointer"
)

// AccountRepository implements [account.Repository] in memory.
type AccountRepository struct {
	mutex    sync.Mutex
	accounts map[string]account.Account
}

// NewAccountRepository creates an empty in-memory account store.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]account.Account)}
}

// Create stores a copy of the account after checking every unique identifier.
func (repository *AccountRepository) Create(_ context.Context, candidate account.Account) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if _, exists := repository.accounts[candidate.Base().ID]; exists {
		return apperr.Conflict("", "Account already exists")
	}
	if err := repository.checkUnique(candidate); err != nil {
		return err
	}

	repository.accounts[candidate.Base().ID] = clone(candidate)
	return nil
}

// FindByID returns a copy of the account with the given ID.
func (repository *AccountRepository) FindByID(_ context.Context, id string) (account.Account, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	stored, ok := repository.accounts[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return clone(stored), nil
}

// FindByEmail returns a copy of the account with the given email.
func (repository *AccountRepository) FindByEmail(_ context.Context, email string) (account.Account, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	for _, stored := range repository.accounts {
		if stored.Base().Email == email {
			return clone(stored), nil
		}
	}
	return nil, apperr.NotFound("Account")
}

// Exists reports whether any account holds value for field.
func (repository *AccountRepository) Exists(_ context.Context, field account.UniqueField, value string) (bool, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	for _, stored := range repository.accounts {
		if identifier(stored, field) == value {
			return true, nil
		}
	}
	return false, nil
}

// SetVerificationToken stores the pending token on an unverified account.
func (repository *AccountRepository) SetVerificationToken(_ context.Context, id, token string, expires time.Time) error {
	return repository.mutate(id, func(stored account.Account) error {
		base := stored.Base()
		if base.IsEmailVerified {
			return nil
		}
		base.EmailVerificationToken = pointer.To(token)
		base.EmailVerificationExpires = pointer.To(expires)
		return nil
	})
}

// MarkEmailVerified flips the verified flag and reports whether it changed.
func (repository *AccountRepository) MarkEmailVerified(_ context.Context, id string, now time.Time) (bool, error) {
	var changed bool
	err := repository.mutate(id, func(stored account.Account) error {
		changed = stored.Base().VerifyEmail()
		if changed {
			stored.Base().UpdatedAt = now
		}
		return nil
	})
	return changed, err
}

// IncrementLoginAttempts applies [account.Identity.RegisterFailedAttempt] under the lock.
func (repository *AccountRepository) IncrementLoginAttempts(_ context.Context, id string, now time.Time) (account.Lockout, error) {
	var lockout account.Lockout
	err := repository.mutate(id, func(stored account.Account) error {
		base := stored.Base()
		base.RegisterFailedAttempt(now)
		base.UpdatedAt = now
		lockout = account.Lockout{Attempts: base.LoginAttempts, LockUntil: base.LockUntil}
		return nil
	})
	return lockout, err
}

// ResetLoginAttempts clears lockout state and stamps the last login.
func (repository *AccountRepository) ResetLoginAttempts(_ context.Context, id string, now time.Time) error {
	return repository.mutate(id, func(stored account.Account) error {
		stored.Base().ResetLoginAttempts(now)
		stored.Base().UpdatedAt = now
		return nil
	})
}

// UpdateApproval writes the review fields if the status is still expected.
func (repository *AccountRepository) UpdateApproval(_ context.Context, faculty *account.Faculty, expected account.ApprovalStatus) error {
	return repository.mutate(faculty.ID, func(stored account.Account) error {
		member, ok := stored.(*account.Faculty)
		if !ok || member.ApprovalStatus != expected {
			return account.ErrApprovalChanged
		}

		member.ApprovalStatus = faculty.ApprovalStatus
		member.ApprovedBy = faculty.ApprovedBy
		member.ApprovedAt = faculty.ApprovedAt
		member.RejectedAt = faculty.RejectedAt
		member.RejectionReason = faculty.RejectionReason
		member.UpdatedAt = faculty.UpdatedAt
		return nil
	})
}

// ListFaculty returns one page of faculty accounts, oldest signup first.
func (repository *AccountRepository) ListFaculty(_ context.Context, filter account.FacultyFilter) ([]*account.Faculty, int, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	var matches []*account.Faculty
	for _, stored := range repository.accounts {
		member, ok := stored.(*account.Faculty)
		if !ok {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, member.ApprovalStatus) {
			continue
		}
		matches = append(matches, clone(member).(*account.Faculty))
	}

	slices.SortFunc(matches, func(a, b *account.Faculty) int {
		if byTime := a.CreatedAt.Compare(b.CreatedAt); byTime != 0 {
			return byTime
		}
		return strings.Compare(a.ID, b.ID)
	})

	total := len(matches)
	start := min(filter.Page.Offset(), total)
	end := total
	if filter.Page.Limit > 0 {
		end = min(start+filter.Page.Limit, total)
	}

	return matches[start:end], total, nil
}

// UpdateEnrollment writes a student's academic record and legacy flags.
func (repository *AccountRepository) UpdateEnrollment(_ context.Context, student *account.Student) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	stored, ok := repository.accounts[student.ID].(*account.Student)
	if !ok {
		return apperr.NotFound("Student")
	}

	if err := repository.checkUnique(student); err != nil {
		return err
	}

	stored.Enrollment = student.Enrollment
	stored.ProfileCompleteness = student.ProfileCompleteness
	stored.UpdatedAt = student.UpdatedAt
	return nil
}

// NormalizeIdentifiers lowercases emails and uppercases admission numbers.
//
// Collisions are detected before anything is written, so a conflict leaves
// the store untouched like the transactional PostgreSQL version.
func (repository *AccountRepository) NormalizeIdentifiers(_ context.Context) (account.NormalizeReport, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	emails := make(map[string]string)
	admissions := make(map[string]string)
	for id, stored := range repository.accounts {
		email := strings.ToLower(strings.TrimSpace(stored.Base().Email))
		if owner, taken := emails[email]; taken && owner != id {
			return account.NormalizeReport{}, apperr.Conflict(account.FieldEmail, "This email is already registered")
		}
		emails[email] = id

		if student, ok := stored.(*account.Student); ok && student.Record().AdmissionNo != "" {
			admission := strings.ToUpper(strings.TrimSpace(student.Record().AdmissionNo))
			if owner, taken := admissions[admission]; taken && owner != id {
				return account.NormalizeReport{}, apperr.Conflict(account.FieldAdmissionNo, "This admission_no is already registered")
			}
			admissions[admission] = id
		}
	}

	var report account.NormalizeReport
	for _, stored := range repository.accounts {
		base := stored.Base()
		if email := strings.ToLower(strings.TrimSpace(base.Email)); email != base.Email {
			base.Email = email
			report.Emails++
		}

		student, ok := stored.(*account.Student)
		if !ok {
			continue
		}
		record := student.Record()
		if admission := strings.ToUpper(strings.TrimSpace(record.AdmissionNo)); admission != record.AdmissionNo {
			record.AdmissionNo = admission
			student.Enrollment = withRecord(student.Enrollment, record)
			report.AdmissionNos++
		}
	}

	return report, nil
}

// Ping always succeeds.
func (repository *AccountRepository) Ping(context.Context) error {
	return nil
}

// # Helpers

func (repository *AccountRepository) mutate(id string, apply func(account.Account) error) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	stored, ok := repository.accounts[id]
	if !ok {
		return apperr.NotFound("Account")
	}
	return apply(stored)
}

// checkUnique must be called with the mutex held.
func (repository *AccountRepository) checkUnique(candidate account.Account) error {
	fields := []account.UniqueField{account.UniqueEmail, account.UniqueAdmissionNo, account.UniqueUniversityRollNo}
	for _, field := range fields {
		value := identifier(candidate, field)
		if value == "" {
			continue
		}
		for id, stored := range repository.accounts {
			if id != candidate.Base().ID && identifier(stored, field) == value {
				return apperr.Conflict(string(field), fmt.Sprintf("This %s is already registered", field))
			}
		}
	}
	return nil
}

func identifier(stored account.Account, field account.UniqueField) string {
	if field == account.UniqueEmail {
		return stored.Base().Email
	}

	student, ok := stored.(*account.Student)
	if !ok {
		return ""
	}

	switch field {
	case account.UniqueAdmissionNo:
		return student.Record().AdmissionNo
	case account.UniqueUniversityRollNo:
		return student.Record().UniversityRollNo
	default:
		return ""
	}
}

func withRecord(enrollment account.Enrollment, record account.AcademicRecord) account.Enrollment {
	if legacy, ok := enrollment.(account.LegacyEnrollment); ok {
		legacy.AcademicRecord = record
		return legacy
	}
	return account.StandardEnrollment{AcademicRecord: record}
}

// clone copies the variant struct. Pointer fields are shared but entities
// only ever replace them, never write through them.
func clone(source account.Account) account.Account {
	switch variant := source.(type) {
	case *account.Student:
		copied := *variant
		return &copied
	case *account.Faculty:
		copied := *variant
		return &copied
	case *account.Admin:
		copied := *variant
		return &copied
	default:
		panic(fmt.Sprintf("memstore: unknown account variant %T", source))
	}
}
