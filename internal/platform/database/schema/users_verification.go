// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserVerificationTable represents the 'users.verification' table.
type UserVerificationTable struct {
	Table             string
	ID                string
	Email             string
	VerificationToken string
	VerificationCode  string
	UserID            string
	UserType          string
	IsVerified        string
	VerifiedAt        string
	Attempts          string
	ResendCount       string
	LastResendAt      string
	CreatedAt         string
	ExpiresAt         string
}

// UserVerification is the schema definition for users.verification.
var UserVerification = UserVerificationTable{
	Table:             "users.verification",
	ID:                "id",
	Email:             "email",
	VerificationToken: "verificationtoken",
	VerificationCode:  "verificationcode",
	UserID:            "userid",
	UserType:          "usertype",
	IsVerified:        "isverified",
	VerifiedAt:        "verifiedat",
	Attempts:          "attempts",
	ResendCount:       "resendcount",
	LastResendAt:      "lastresendat",
	CreatedAt:         "createdat",
	ExpiresAt:         "expiresat",
}

// Columns returns every column in scan order.
func (t UserVerificationTable) Columns() []string {
	return []string{
		t.ID, t.Email, t.VerificationToken, t.VerificationCode, t.UserID, t.UserType,
		t.IsVerified, t.VerifiedAt, t.Attempts, t.ResendCount, t.LastResendAt,
		t.CreatedAt, t.ExpiresAt,
	}
}
