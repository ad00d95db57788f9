// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/platform/ctxutil"
	"github.com/taibuivan/facultyeval/internal/platform/sec"
	"github.com/taibuivan/facultyeval/internal/platform/validate"
	"github.com/taibuivan/facultyeval/internal/users/account"
	"github.com/taibuivan/facultyeval/internal/users/notify"
	"github.com/taibuivan/facultyeval/internal/users/verification"
)

// # Email Verification

// VerifyResult tells the client what happens after a successful verification.
type VerifyResult struct {
	Success   bool         `json:"success"`
	UserType  sec.UserRole `json:"user_type"`
	NextSteps []string     `json:"next_steps"`
}

/*
VerifyEmail redeems a link token or a typed code for email.

Description: The ledger record is verified first and the account second.
Presenting the same credential again answers ALREADY_VERIFIED and re-applies
the account write, so an interrupted verification heals itself.

Parameters:
  - context: context.Context
  - email: string (raw)
  - presented: string (token or code)

Returns:
  - *VerifyResult: Role and next steps
  - error: Ledger failure kinds or storage failures
*/
func (service *Service) VerifyEmail(context context.Context, email, presented string) (*VerifyResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	presented = strings.TrimSpace(presented)

	record, err := service.ledger.Locate(context, email, presented)
	if err != nil {
		return nil, err
	}

	verified, err := service.ledger.Verify(context, record, presented)
	if err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).Info("email_verified",
		slog.String("user_id", verified.UserID),
		slog.String("role", string(verified.UserType)),
	)

	result := &VerifyResult{Success: true, UserType: verified.UserType, NextSteps: []string{nextStepVerified, nextStepLogin}}
	recipient := service.recipientByID(context, verified.UserID, verified.Email, verified.UserType)

	if verified.UserType == sec.RoleFaculty {
		result.NextSteps = []string{nextStepVerified, nextStepApproval}
		service.notifier.SendFacultyPending(context, recipient)
	} else {
		service.notifier.SendWelcome(context, recipient)
	}

	return result, nil
}

// ResendResult reports the resend budget after a successful resend.
type ResendResult struct {
	Success         bool `json:"success"`
	ResendCount     int  `json:"resend_count"`
	MaxResends      int  `json:"max_resends"`
	CooldownMinutes int  `json:"cooldown_minutes"`
}

/*
ResendVerification rotates the code of the pending record and emails it again.

Parameters:
  - context: context.Context
  - email: string (raw)

Returns:
  - *ResendResult: Updated budget
  - error: VERIFICATION_NOT_FOUND, RESEND_LIMIT_REACHED, RESEND_COOLDOWN or storage failures
*/
func (service *Service) ResendVerification(context context.Context, email string) (*ResendResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	record, err := service.ledger.Resend(context, email)
	if err != nil {
		return nil, err
	}

	recipient := service.recipientByID(context, record.UserID, record.Email, record.UserType)
	service.notifier.SendVerification(context, recipient, record.Token, record.Code)

	ctxutil.GetLogger(context).Info("verification_resent",
		slog.String("user_id", record.UserID),
		slog.Int("resend_count", record.ResendCount),
	)

	return &ResendResult{
		Success:         true,
		ResendCount:     record.ResendCount,
		MaxResends:      verification.MaxResends,
		CooldownMinutes: int(verification.ResendCooldown.Minutes()),
	}, nil
}

// StatusResult is the verification progress of an email.
type StatusResult struct {
	IsVerified     bool                    `json:"is_verified"`
	Attempts       int                     `json:"attempts"`
	ResendCount    int                     `json:"resend_count"`
	CanResend      bool                    `json:"can_resend"`
	ApprovalStatus *account.ApprovalStatus `json:"approval_status,omitempty"`
}

/*
VerificationStatus reports the verification progress of email.

Description: The account flag is authoritative for is_verified. The counters
come from the newest ledger record and are zero when none is left.

Parameters:
  - context: context.Context
  - email: string (raw)

Returns:
  - *StatusResult
  - error: EMAIL_NOT_FOUND or storage failures
*/
func (service *Service) VerificationStatus(context context.Context, email string) (*StatusResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	found, err := service.accounts.FindByEmail(context, email)
	if err != nil {
		if apperr.HasCode(err, "NOT_FOUND") {
			return nil, ErrEmailNotFound()
		}
		return nil, fmt.Errorf("auth_service_status_lookup_failed: %w", err)
	}

	now := service.clock()
	status := &StatusResult{IsVerified: found.Base().IsEmailVerified}

	record, err := service.ledger.Latest(context, email)
	switch {
	case err == nil:
		status.Attempts = record.Attempts
		status.ResendCount = record.ResendCount
		status.CanResend = !status.IsVerified && !record.IsExpired(now) && record.CanResend(now)
	case !apperr.HasCode(err, "NOT_FOUND"):
		return nil, fmt.Errorf("auth_service_status_record_failed: %w", err)
	}

	if faculty, ok := found.(*account.Faculty); ok {
		approval := faculty.ApprovalStatus
		status.ApprovalStatus = &approval
	}

	return status, nil
}

// # Legacy Profile Completion

// ProfileInput holds the four academic fields a legacy student still owes.
type ProfileInput struct {
	AdmissionNo      string
	UniversityRollNo string
	Semester         string
	Section          string
}

// ErrProfileComplete is returned when a student with a standard enrollment
// tries to complete the profile again.
func ErrProfileComplete() *apperr.AppError {
	return apperr.New(http.StatusConflict, "PROFILE_ALREADY_COMPLETE", "The academic profile is already complete")
}

/*
CompleteProfile supplies the academic fields of a legacy student and converts
the enrollment to standard.

Parameters:
  - context: context.Context
  - userID: string (the authenticated student)
  - input: ProfileInput

Returns:
  - *account.Student: Updated entity
  - error: Forbidden, ValidationError, field-scoped Conflict or storage failures
*/
func (service *Service) CompleteProfile(context context.Context, userID string, input ProfileInput) (*account.Student, error) {
	found, err := service.accounts.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	student, ok := found.(*account.Student)
	if !ok {
		return nil, apperr.Forbidden("Only student accounts have an academic profile")
	}
	if !student.NeedsProfileCompletion() {
		return nil, ErrProfileComplete()
	}

	validator := &validate.Validator{}
	record := validateRecord(validator, input.AdmissionNo, input.UniversityRollNo, input.Semester, input.Section)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// The student's own partial values are not a conflict.
	current := student.Record()
	var checks []uniqueCheck
	if record.AdmissionNo != current.AdmissionNo {
		checks = append(checks, uniqueCheck{account.UniqueAdmissionNo, record.AdmissionNo, "admission number"})
	}
	if record.UniversityRollNo != current.UniversityRollNo {
		checks = append(checks, uniqueCheck{account.UniqueUniversityRollNo, record.UniversityRollNo, "university roll number"})
	}
	if err := service.probe(context, checks); err != nil {
		return nil, err
	}

	student.CompleteProfile(record, service.clock())
	if err := service.accounts.UpdateEnrollment(context, student); err != nil {
		if apperr.IsAppError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("auth_service_complete_profile_failed: %w", err)
	}

	ctxutil.GetLogger(context).Info("profile_completed",
		slog.String("user_id", student.ID),
		slog.Int("profile_completeness", student.ProfileCompleteness),
	)

	return student, nil
}

// recipientByID addresses an email to the account's display name, falling
// back to the bare ledger address when the account cannot be read.
func (service *Service) recipientByID(context context.Context, userID, email string, role sec.UserRole) notify.Recipient {
	found, err := service.accounts.FindByID(context, userID)
	if err != nil {
		ctxutil.GetLogger(context).Warn("notification_recipient_lookup_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return notify.Recipient{Email: email, Role: role}
	}
	return recipientOf(found)
}
