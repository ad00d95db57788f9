// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/platform/ctxutil"
	"github.com/taibuivan/facultyeval/internal/platform/validate"
	"github.com/taibuivan/facultyeval/internal/users/account"
	"github.com/taibuivan/facultyeval/pkg/pagination"
)

// # Faculty Review

const (
	// RejectionReasonMaxLength bounds the reason shown to a rejected faculty member.
	RejectionReasonMaxLength = 500

	// reconcileConcurrency bounds the heal tasks running at once.
	reconcileConcurrency = 8
)

/*
ListFaculty returns one page of the faculty review queue, oldest first.

Parameters:
  - context: context.Context
  - statuses: []string (approval states, empty for all)
  - page: pagination.Params

Returns:
  - []*account.Faculty: The page
  - int: Total matching accounts
  - error: ValidationError for an unknown status, or storage failures
*/
func (service *Service) ListFaculty(context context.Context, statuses []string, page pagination.Params) ([]*account.Faculty, int, error) {
	filter := account.FacultyFilter{Page: page}

	validator := &validate.Validator{}
	for _, raw := range statuses {
		status := account.ApprovalStatus(raw)
		validator.Custom("status", !status.Valid(), "Unknown approval status: "+raw)
		filter.Statuses = append(filter.Statuses, status)
	}
	if err := validator.Err(); err != nil {
		return nil, 0, err
	}

	faculty, total, err := service.accounts.ListFaculty(context, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("auth_service_list_faculty_failed: %w", err)
	}
	return faculty, total, nil
}

/*
ApproveFaculty grants a pending or rejected faculty member access.

Description: Approving an approved account is a no-op that returns the
account unchanged and sends no email.

Parameters:
  - context: context.Context
  - adminID: string (the acting admin)
  - facultyID: string

Returns:
  - *account.Faculty: The account after the decision
  - error: NotFound, INVALID_TRANSITION, Conflict (concurrent review) or storage failures
*/
func (service *Service) ApproveFaculty(context context.Context, adminID, facultyID string) (*account.Faculty, error) {
	faculty, err := service.findFaculty(context, facultyID)
	if err != nil {
		return nil, err
	}

	expected := faculty.ApprovalStatus
	changed, err := faculty.Approve(adminID, service.clock())
	if err != nil || !changed {
		return faculty, err
	}

	if err := service.accounts.UpdateApproval(context, faculty, expected); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).Info("faculty_approved",
		slog.String("user_id", faculty.ID),
		slog.String("admin_id", adminID),
		slog.String("previous_status", string(expected)),
	)

	service.notifier.SendApproval(context, recipientOf(faculty))
	return faculty, nil
}

/*
RejectFaculty denies a faculty member access. It revokes an earlier approval
and replaces the reason of an earlier rejection.

Parameters:
  - context: context.Context
  - adminID: string (the acting admin)
  - facultyID: string
  - reason: string (shown to the faculty member)

Returns:
  - *account.Faculty: The account after the decision
  - error: ValidationError, NotFound, INVALID_TRANSITION, Conflict or storage failures
*/
func (service *Service) RejectFaculty(context context.Context, adminID, facultyID, reason string) (*account.Faculty, error) {
	reason = strings.TrimSpace(reason)

	validator := &validate.Validator{}
	validator.Required(account.FieldReason, reason).
		MaxLen(account.FieldReason, reason, RejectionReasonMaxLength)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	faculty, err := service.findFaculty(context, facultyID)
	if err != nil {
		return nil, err
	}

	expected := faculty.ApprovalStatus
	if err := faculty.Reject(adminID, reason, service.clock()); err != nil {
		return nil, err
	}

	if err := service.accounts.UpdateApproval(context, faculty, expected); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).Info("faculty_rejected",
		slog.String("user_id", faculty.ID),
		slog.String("admin_id", adminID),
	)

	service.notifier.SendRejection(context, recipientOf(faculty), reason)
	return faculty, nil
}

/*
ReopenFaculty returns a rejected faculty member to the pending queue.

Parameters:
  - context: context.Context
  - adminID: string (the acting admin, logged only)
  - facultyID: string

Returns:
  - *account.Faculty: The account, now pending
  - error: NotFound, INVALID_TRANSITION, Conflict or storage failures
*/
func (service *Service) ReopenFaculty(context context.Context, adminID, facultyID string) (*account.Faculty, error) {
	faculty, err := service.findFaculty(context, facultyID)
	if err != nil {
		return nil, err
	}

	expected := faculty.ApprovalStatus
	if err := faculty.Reopen(service.clock()); err != nil {
		return nil, err
	}

	if err := service.accounts.UpdateApproval(context, faculty, expected); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).Info("faculty_reopened",
		slog.String("user_id", faculty.ID),
		slog.String("admin_id", adminID),
	)
	return faculty, nil
}

// findFaculty loads id and requires it to be a faculty account.
func (service *Service) findFaculty(context context.Context, id string) (*account.Faculty, error) {
	found, err := service.accounts.FindByID(context, id)
	if err != nil {
		return nil, err
	}

	faculty, ok := found.(*account.Faculty)
	if !ok {
		return nil, apperr.NotFound("Faculty")
	}
	return faculty, nil
}

// # Maintenance

/*
CleanupVerifications deletes unverified ledger records past their lifetime.

Returns:
  - int64: Records deleted
  - error: Storage failures
*/
func (service *Service) CleanupVerifications(context context.Context) (int64, error) {
	deleted, err := service.ledger.CleanupExpired(context)
	if err != nil {
		return 0, fmt.Errorf("auth_service_cleanup_failed: %w", err)
	}

	ctxutil.GetLogger(context).Info("verifications_cleaned_up", slog.Int64("deleted", deleted))
	return deleted, nil
}

// ReconcileFailure is one heal task that did not complete.
type ReconcileFailure struct {
	RecordID string `json:"record_id"`
	UserID   string `json:"user_id"`
	Error    string `json:"error"`
}

type healOutcome struct {
	healed bool
	err    error
}

// ReconcileReport summarizes a reconciliation run.
type ReconcileReport struct {
	Normalized account.NormalizeReport `json:"normalized"`
	Checked    int                     `json:"checked"`
	Healed     int                     `json:"healed"`
	Failures   []ReconcileFailure      `json:"failures"`
}

/*
Reconcile repairs drift between the stores. It is safe to run repeatedly.

Description: First the identifiers are normalized in bulk. Then every
verified ledger record re-applies the idempotent account verification as an
independent task. A failing task is reported and never stops the others.
Failures are listed in ledger order. Cancelling the context stops tasks that
have not started and fails the run.

Parameters:
  - context: context.Context

Returns:
  - *ReconcileReport
  - error: Normalization or ledger read failures, or context cancellation
*/
func (service *Service) Reconcile(context context.Context) (*ReconcileReport, error) {
	logger := ctxutil.GetLogger(context)

	normalized, err := service.accounts.NormalizeIdentifiers(context)
	if err != nil {
		return nil, fmt.Errorf("auth_service_normalize_failed: %w", err)
	}

	records, err := service.ledger.Verified(context)
	if err != nil {
		return nil, fmt.Errorf("auth_service_list_verified_failed: %w", err)
	}

	report := &ReconcileReport{
		Normalized: normalized,
		Checked:    len(records),
		Failures:   []ReconcileFailure{},
	}

	// Each task owns one slot, so no lock is needed.
	outcomes := make([]healOutcome, len(records))
	group := errgroup.Group{}
	group.SetLimit(reconcileConcurrency)

	for i, record := range records {
		group.Go(func() error {
			if err := context.Err(); err != nil {
				return err
			}

			healed, err := service.accounts.MarkEmailVerified(context, record.UserID, service.clock())
			outcomes[i] = healOutcome{healed: healed, err: err}
			if healed {
				logger.Info("account_verification_healed", slog.String("user_id", record.UserID))
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("auth_service_reconcile_interrupted: %w", err)
	}

	for i, outcome := range outcomes {
		if outcome.err != nil {
			report.Failures = append(report.Failures, ReconcileFailure{
				RecordID: records[i].ID,
				UserID:   records[i].UserID,
				Error:    outcome.err.Error(),
			})
			continue
		}
		if outcome.healed {
			report.Healed++
		}
	}

	logger.Info("reconcile_completed",
		slog.Int64("normalized_emails", normalized.Emails),
		slog.Int64("normalized_admission_nos", normalized.AdmissionNos),
		slog.Int("checked", report.Checked),
		slog.Int("healed", report.Healed),
		slog.Int("failed", len(report.Failures)),
	)
	return report, nil
}
