// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the account state machine: signup, login gating,
email verification and the faculty review workflow.

Architecture:

  - Service: Orchestrates the use cases over an [account.Repository] and a
    [verification.Ledger].
  - Handler: Thin HTTP surface for the public auth endpoints.
  - AdminHandler: Faculty review queue and maintenance endpoints.

Every operation re-reads the state it acts on. Per-account mutations are
delegated to the repository's single atomic updates, so concurrent requests
never overwrite each other's counters.
*/
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/platform/constants"
	"github.com/taibuivan/facultyeval/internal/platform/ctxutil"
	"github.com/taibuivan/facultyeval/internal/platform/sec"
	"github.com/taibuivan/facultyeval/internal/platform/validate"
	"github.com/taibuivan/facultyeval/internal/users/account"
	"github.com/taibuivan/facultyeval/internal/users/notify"
	"github.com/taibuivan/facultyeval/internal/users/verification"
	"github.com/taibuivan/facultyeval/pkg/uuid"
)

// # Contracts & Types

// TokenProvider defines the contract for generating security tokens.
type TokenProvider interface {
	// GenerateAccessToken creates a signed JWT string for the given account.
	//
	// # Parameters
	//   - userID: The ID of the account.
	//   - email: The email of the account.
	//   - role: The role of the account.
	//   - timeToLive: The duration before the token expires.
	//
	// # Returns
	//   - A signed JWT string, or an err if signing fails.
	GenerateAccessToken(userID, email, role string, timeToLive time.Duration) (string, error)
}

// Notifier delivers lifecycle emails. Implementations log failures instead
// of returning them.
type Notifier interface {
	SendVerification(ctx context.Context, to notify.Recipient, token, code string)
	SendWelcome(ctx context.Context, to notify.Recipient)
	SendFacultyPending(ctx context.Context, to notify.Recipient)
	SendApproval(ctx context.Context, to notify.Recipient)
	SendRejection(ctx context.Context, to notify.Recipient, reason string)
}

// Service implements the account lifecycle use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, login gating
// or lockout bookkeeping must be reviewed by the security team.
type Service struct {
	accounts       account.Repository
	ledger         *verification.Ledger
	notifier       Notifier
	tokenProvider  TokenProvider
	allowedDomains []string
	clock          func() time.Time
}

// NewService constructs a new [Service] with its dependencies. A nil clock
// defaults to the UTC wall clock.
func NewService(
	accounts account.Repository,
	ledger *verification.Ledger,
	notifier Notifier,
	tokenProvider TokenProvider,
	allowedDomains []string,
	clock func() time.Time,
) *Service {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		accounts:       accounts,
		ledger:         ledger,
		notifier:       notifier,
		tokenProvider:  tokenProvider,
		allowedDomains: allowedDomains,
		clock:          clock,
	}
}

// # Signup Flow

// SignupInput holds the raw registration form. Fields that do not apply to
// the chosen role are ignored.
type SignupInput struct {
	Role     sec.UserRole
	Email    string
	Name     string
	Password string
	Phone    string

	// Faculty
	Department string
	Subject    string

	// Student
	AdmissionNo      string
	UniversityRollNo string
	Semester         string
	Section          string
}

// normalizedSignup is a validated [SignupInput] holding only normalized values.
type normalizedSignup struct {
	email, name, phone  string
	department, subject string
	record              account.AcademicRecord
}

/*
Signup validates, hashes and persists a new student or faculty account, then
issues the verification credentials and emails them.

Description: Uniqueness is checked up front for every identifier so the
client sees each duplicated field at once. The store's unique constraints
remain the backstop for a concurrent signup and map to the same field errors.

Parameters:
  - context: context.Context
  - input: SignupInput

Returns:
  - account.Account: Created entity (unverified)
  - error: ValidationError, field-scoped Conflict or storage failures
*/
func (service *Service) Signup(context context.Context, input SignupInput) (account.Account, error) {
	form, err := service.validateSignup(input)
	if err != nil {
		return nil, err
	}

	if err := service.checkUnique(context, input.Role, form); err != nil {
		return nil, err
	}

	// Prevent storing plain-text passwords.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	now := service.clock()
	id := uuid.New()

	var created account.Account
	switch input.Role {
	case sec.RoleFaculty:
		created = account.NewFaculty(id, form.email, form.name, hashedPassword, form.department, form.subject, form.phone, now)
	default:
		created = account.NewStudent(id, form.email, form.name, hashedPassword, form.phone, form.record, now)
	}

	if err := service.accounts.Create(context, created); err != nil {
		if apperr.IsAppError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("auth_service_signup_failed: %w", err)
	}

	record, err := service.ledger.Issue(context, form.email, id, input.Role)
	if err != nil {
		return nil, fmt.Errorf("auth_service_issue_verification_failed: %w", err)
	}

	if err := service.accounts.SetVerificationToken(context, id, record.Token, record.ExpiresAt); err != nil {
		return nil, fmt.Errorf("auth_service_store_token_failed: %w", err)
	}

	identity := created.Base()
	identity.EmailVerificationToken = &record.Token
	identity.EmailVerificationExpires = &record.ExpiresAt

	ctxutil.GetLogger(context).Info("account_created",
		slog.String("user_id", id),
		slog.String("role", string(input.Role)),
	)

	service.notifier.SendVerification(context, recipientOf(created), record.Token, record.Code)
	return created, nil
}

// validateSignup applies the role-conditional field rules.
func (service *Service) validateSignup(input SignupInput) (normalizedSignup, error) {
	email := validate.CheckEmail(input.Email, service.allowedDomains)
	name := validate.CheckName(input.Name)
	phone := validate.CheckPhone(input.Phone)

	validator := &validate.Validator{}
	validator.OneOf(account.FieldRole, string(input.Role), string(sec.RoleStudent), string(sec.RoleFaculty)).
		Check(account.FieldEmail, email).
		Check(account.FieldName, name).
		Check(account.FieldPassword, validate.CheckPassword(input.Password)).
		Check(account.FieldPhone, phone)

	form := normalizedSignup{
		email: email.Normalized,
		name:  name.Normalized,
		phone: phone.Normalized,
	}

	switch input.Role {
	case sec.RoleFaculty:
		form.department = strings.TrimSpace(input.Department)
		form.subject = strings.TrimSpace(input.Subject)

		validator.Required(account.FieldDepartment, form.department).
			MaxLen(account.FieldDepartment, form.department, 100).
			Required(account.FieldSubject, form.subject).
			MaxLen(account.FieldSubject, form.subject, 100).
			Required(account.FieldPhone, input.Phone)

	case sec.RoleStudent:
		form.record = validateRecord(validator, input.AdmissionNo, input.UniversityRollNo, input.Semester, input.Section)
	}

	return form, validator.Err()
}

// validateRecord checks the four academic fields and returns them normalized.
func validateRecord(validator *validate.Validator, admissionNo, rollNo, semester, section string) account.AcademicRecord {
	admission := validate.CheckAdmissionNumber(admissionNo)
	roll := validate.CheckUniversityRollNo(rollNo)
	record := account.AcademicRecord{
		AdmissionNo:      admission.Normalized,
		UniversityRollNo: roll.Normalized,
		Semester:         account.Semester(strings.TrimSpace(semester)),
		Section:          account.Section(strings.TrimSpace(section)),
	}

	validator.Check(account.FieldAdmissionNo, admission).
		Check(account.FieldUniversityRollNo, roll).
		Custom(account.FieldSemester, !record.Semester.Valid(), "Semester must be one of 1st to 8th").
		Custom(account.FieldSection, !record.Section.Valid(), "Section must be one of Section A to Section F")

	return record
}

// uniqueCheck is one identifier probed before signup.
type uniqueCheck struct {
	field account.UniqueField
	value string
	label string
}

// checkUnique reports every identifier that is already taken.
func (service *Service) checkUnique(context context.Context, role sec.UserRole, form normalizedSignup) error {
	checks := []uniqueCheck{{account.UniqueEmail, form.email, "email"}}
	if role == sec.RoleStudent {
		checks = append(checks,
			uniqueCheck{account.UniqueAdmissionNo, form.record.AdmissionNo, "admission number"},
			uniqueCheck{account.UniqueUniversityRollNo, form.record.UniversityRollNo, "university roll number"},
		)
	}
	return service.probe(context, checks)
}

// probe reports every probed identifier that is already taken as one
// field-scoped conflict.
func (service *Service) probe(context context.Context, checks []uniqueCheck) error {
	var conflict *apperr.AppError
	for _, check := range checks {
		taken, err := service.accounts.Exists(context, check.field, check.value)
		if err != nil {
			return fmt.Errorf("auth_service_uniqueness_check_failed: %w", err)
		}
		if !taken {
			continue
		}

		message := "This " + check.label + " is already registered"
		if conflict == nil {
			conflict = apperr.Conflict(string(check.field), message)
			continue
		}
		conflict.Details = append(conflict.Details, apperr.FieldError{Field: string(check.field), Message: message})
	}

	if conflict != nil {
		return conflict
	}
	return nil
}

// # Login Flow

// LoginResult is a successful login: the public profile and an access token.
type LoginResult struct {
	User        account.Account `json:"user"`
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int             `json:"expires_in"`
}

/*
Login evaluates the login gates in a fixed order and issues an access token.

Description: The first failing gate wins: missing account, active lock,
unverified email, faculty approval, student activation and only then the
password. A wrong password is recorded with one atomic increment that may
lock the account. A success atomically clears the counter.

Parameters:
  - context: context.Context
  - email: string (raw, normalized here)
  - password: string

Returns:
  - *LoginResult: Profile and access token
  - error: One of the login gate errors or internal failures
*/
func (service *Service) Login(context context.Context, email, password string) (*LoginResult, error) {
	logger := ctxutil.GetLogger(context)
	email = strings.ToLower(strings.TrimSpace(email))

	// 1. The account must exist.
	found, err := service.accounts.FindByEmail(context, email)
	if err != nil {
		if apperr.HasCode(err, "NOT_FOUND") {
			return nil, ErrEmailNotFound()
		}
		return nil, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
	}

	now := service.clock()
	identity := found.Base()

	// 2. An active lock refuses every attempt, even a correct one.
	if identity.IsLocked(now) {
		return nil, ErrAccountLocked(*identity.LockUntil)
	}

	// 3. The email must be verified.
	if !identity.IsEmailVerified {
		return nil, ErrEmailNotVerified(service.canResend(context, email, now))
	}

	// 4-5. Variant gates.
	switch variant := found.(type) {
	case *account.Faculty:
		if variant.ApprovalStatus != account.ApprovalApproved {
			return nil, ErrApprovalRequired(variant)
		}
	case *account.Student:
		if !variant.IsActive {
			return nil, ErrAccountInactive()
		}
	}

	// 6. Verify password hash using bcrypt's constant-time comparison.
	if !sec.CheckPasswordHash(password, identity.PasswordHash) {
		lockout, err := service.accounts.IncrementLoginAttempts(context, identity.ID, now)
		if err != nil {
			return nil, fmt.Errorf("auth_service_record_failure_failed: %w", err)
		}

		if lockout.LockUntil != nil && lockout.LockUntil.After(now) {
			logger.Warn("account_locked",
				slog.String("user_id", identity.ID),
				slog.Time("lock_until", *lockout.LockUntil),
			)
		}
		return nil, ErrWrongPassword(lockout, now)
	}

	// 7. Success clears the failure bookkeeping.
	if err := service.accounts.ResetLoginAttempts(context, identity.ID, now); err != nil {
		return nil, fmt.Errorf("auth_service_reset_attempts_failed: %w", err)
	}
	identity.ResetLoginAttempts(now)

	accessToken, err := service.tokenProvider.GenerateAccessToken(identity.ID, identity.Email, string(identity.Role), constants.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	logger.Info("login_succeeded",
		slog.String("user_id", identity.ID),
		slog.String("role", string(identity.Role)),
	)

	return &LoginResult{
		User:        found,
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(constants.AccessTokenTTL / time.Second),
	}, nil
}

// canResend reports whether a pending record would accept a resend now.
// Lookup failures answer false; they never hide the verification gate.
func (service *Service) canResend(context context.Context, email string, now time.Time) bool {
	record, err := service.ledger.Pending(context, email)
	if err != nil {
		return false
	}
	return record.CanResend(now)
}

// recipientOf addresses a lifecycle email to an account.
func recipientOf(target account.Account) notify.Recipient {
	identity := target.Base()
	return notify.Recipient{Email: identity.Email, Name: identity.Name, Role: identity.Role}
}
