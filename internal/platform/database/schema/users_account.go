// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the PostgreSQL tables and columns used by the stores,
// so a column rename touches one place instead of every query string.
package schema

// UserAccountTable represents the 'users.account' table.
type UserAccountTable struct {
	Table string

	ID           string
	Role         string
	Email        string
	Name         string
	PasswordHash string

	IsEmailVerified          string
	EmailVerificationToken   string
	EmailVerificationExpires string

	LoginAttempts string
	LockUntil     string
	LastLogin     string

	IsActive               string
	Phone                  string
	AdmissionNo            string
	UniversityRollNo       string
	Semester               string
	Section                string
	IsLegacyAccount        string
	NeedsProfileCompletion string
	Profile                string
	ProfileCompleteness    string

	Department      string
	Subject         string
	ApprovalStatus  string
	ApprovedBy      string
	ApprovedAt      string
	RejectedAt      string
	RejectionReason string

	CreatedAt string
	UpdatedAt string
}

// UserAccount is the schema definition for users.account.
var UserAccount = UserAccountTable{
	Table: "users.account",

	ID:           "id",
	Role:         "role",
	Email:        "email",
	Name:         "name",
	PasswordHash: "passwordhash",

	IsEmailVerified:          "isemailverified",
	EmailVerificationToken:   "emailverificationtoken",
	EmailVerificationExpires: "emailverificationexpires",

	LoginAttempts: "loginattempts",
	LockUntil:     "lockuntil",
	LastLogin:     "lastlogin",

	IsActive:               "isactive",
	Phone:                  "phone",
	AdmissionNo:            "admissionno",
	UniversityRollNo:       "universityrollno",
	Semester:               "semester",
	Section:                "section",
	IsLegacyAccount:        "islegacyaccount",
	NeedsProfileCompletion: "needsprofilecompletion",
	Profile:                "profile",
	ProfileCompleteness:    "profilecompleteness",

	Department:      "department",
	Subject:         "subject",
	ApprovalStatus:  "approvalstatus",
	ApprovedBy:      "approvedby",
	ApprovedAt:      "approvedat",
	RejectedAt:      "rejectedat",
	RejectionReason: "rejectionreason",

	CreatedAt: "createdat",
	UpdatedAt: "updatedat",
}

// Columns returns every column in scan order.
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Role, t.Email, t.Name, t.PasswordHash,
		t.IsEmailVerified, t.EmailVerificationToken, t.EmailVerificationExpires,
		t.LoginAttempts, t.LockUntil, t.LastLogin,
		t.IsActive, t.Phone, t.AdmissionNo, t.UniversityRollNo, t.Semester, t.Section,
		t.IsLegacyAccount, t.NeedsProfileCompletion, t.Profile, t.ProfileCompleteness,
		t.Department, t.Subject, t.ApprovalStatus, t.ApprovedBy, t.ApprovedAt, t.RejectedAt, t.RejectionReason,
		t.CreatedAt, t.UpdatedAt,
	}
}
