// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"time"

	"github.com/taibuivan/facultyeval/internal/platform/sec"
	"github.com/taibuivan/facultyeval/pkg/pointer"
)

// # Approval

// ApprovalStatus is the admin review state of a faculty account.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	default:
		return false
	}
}

// # Faculty

// Faculty is a teaching staff account. It needs admin approval on top of
// email verification before it can log in.
type Faculty struct {
	Identity

	Department string `json:"department"`
	Subject    string `json:"subject"`
	Phone      string `json:"phone"`

	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	ApprovedBy      *string        `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	RejectedAt      *time.Time     `json:"rejected_at,omitempty"`
	RejectionReason *string        `json:"rejection_reason,omitempty"`
}

// NewFaculty creates an unverified faculty account pending approval.
func NewFaculty(id, email, name, passwordHash, department, subject, phone string, now time.Time) *Faculty {
	return &Faculty{
		Identity: Identity{
			ID:           id,
			Role:         sec.RoleFaculty,
			Email:        email,
			Name:         name,
			PasswordHash: passwordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Department:     department,
		Subject:        subject,
		Phone:          phone,
		ApprovalStatus: ApprovalPending,
	}
}

// CanLogin reports whether the faculty member is verified, unlocked and approved.
func (faculty *Faculty) CanLogin(now time.Time) bool {
	return faculty.IsEmailVerified && !faculty.IsLocked(now) && faculty.ApprovalStatus == ApprovalApproved
}

// Approve grants access. Pending and rejected accounts can be approved;
// approving an approved account changes nothing and reports false.
func (faculty *Faculty) Approve(approverID string, now time.Time) (bool, error) {
	switch faculty.ApprovalStatus {
	case ApprovalApproved:
		return false, nil
	case ApprovalPending, ApprovalRejected:
	default:
		return false, ErrInvalidTransition
	}

	faculty.ApprovalStatus = ApprovalApproved
	faculty.ApprovedBy = pointer.To(approverID)
	faculty.ApprovedAt = pointer.To(now)
	faculty.RejectedAt = nil
	faculty.RejectionReason = nil
	faculty.UpdatedAt = now
	return true, nil
}

// Reject denies access with a reason. Pending, approved and rejected accounts
// can all be rejected. Rejecting an approved account revokes its approval, and
// rejecting again replaces the reason.
func (faculty *Faculty) Reject(approverID, reason string, now time.Time) error {
	if !faculty.ApprovalStatus.Valid() {
		return ErrInvalidTransition
	}

	faculty.ApprovalStatus = ApprovalRejected
	faculty.ApprovedBy = pointer.To(approverID)
	faculty.ApprovedAt = nil
	faculty.RejectedAt = pointer.To(now)
	faculty.RejectionReason = pointer.To(reason)
	faculty.UpdatedAt = now
	return nil
}

// Reopen returns a rejected account to the pending queue for re-evaluation.
func (faculty *Faculty) Reopen(now time.Time) error {
	if faculty.ApprovalStatus != ApprovalRejected {
		return ErrInvalidTransition
	}

	faculty.ApprovalStatus = ApprovalPending
	faculty.ApprovedBy = nil
	faculty.ApprovedAt = nil
	faculty.RejectedAt = nil
	faculty.RejectionReason = nil
	faculty.UpdatedAt = now
	return nil
}
