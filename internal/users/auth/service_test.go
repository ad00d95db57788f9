// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/platform/keylock"
	"github.com/taibuivan/facultyeval/internal/platform/sec"
	"github.com/taibuivan/facultyeval/internal/users/account"
	"github.com/taibuivan/facultyeval/internal/users/auth"
	"github.com/taibuivan/facultyeval/internal/users/memstore"
	"github.com/taibuivan/facultyeval/internal/users/notify"
	"github.com/taibuivan/facultyeval/internal/users/verification"
	"github.com/taibuivan/facultyeval/pkg/pagination"
)

const password = "Campus#2026"

// # Fakes

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }
func (c *clock) Advance(delta time.Duration) { c.now = c.now.Add(delta) }

type tokens struct{}

func (tokens) GenerateAccessToken(userID, _, role string, _ time.Duration) (string, error) {
	return "jwt." + role + "." + userID, nil
}

type mail struct {
	kind   string
	to     notify.Recipient
	token  string
	code   string
	reason string
}

type outbox struct {
	mutex sync.Mutex
	sent  []mail
}

func (box *outbox) push(message mail) {
	box.mutex.Lock()
	defer box.mutex.Unlock()
	box.sent = append(box.sent, message)
}

func (box *outbox) SendVerification(_ context.Context, to notify.Recipient, token, code string) {
	box.push(mail{kind: "verification", to: to, token: token, code: code})
}

func (box *outbox) SendWelcome(_ context.Context, to notify.Recipient) {
	box.push(mail{kind: "welcome", to: to})
}

func (box *outbox) SendFacultyPending(_ context.Context, to notify.Recipient) {
	box.push(mail{kind: "pending", to: to})
}

func (box *outbox) SendApproval(_ context.Context, to notify.Recipient) {
	box.push(mail{kind: "approved", to: to})
}

func (box *outbox) SendRejection(_ context.Context, to notify.Recipient, reason string) {
	box.push(mail{kind: "rejected", to: to, reason: reason})
}

// last returns the newest message of kind addressed to email.
func (box *outbox) last(t *testing.T, kind, email string) mail {
	t.Helper()
	box.mutex.Lock()
	defer box.mutex.Unlock()
	for i := len(box.sent) - 1; i >= 0; i-- {
		if box.sent[i].kind == kind && box.sent[i].to.Email == email {
			return box.sent[i]
		}
	}
	t.Fatalf("no %s message for %s", kind, email)
	return mail{}
}

func (box *outbox) count(kind string) int {
	box.mutex.Lock()
	defer box.mutex.Unlock()
	n := 0
	for _, message := range box.sent {
		if message.kind == kind {
			n++
		}
	}
	return n
}

// # Fixture

type fixture struct {
	service  *auth.Service
	accounts *memstore.AccountRepository
	records  *memstore.VerificationRepository
	outbox   *outbox
	clock    *clock
}

func setup(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		accounts: memstore.NewAccountRepository(),
		records:  memstore.NewVerificationRepository(),
		outbox:   &outbox{},
		clock:    &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	ledger := verification.NewLedger(f.records, f.accounts, keylock.NewMemoryLocker(), f.clock.Now)
	f.service = auth.NewService(f.accounts, ledger, f.outbox, tokens{}, []string{"university.edu"}, f.clock.Now)
	return f
}

func studentInput(email string) auth.SignupInput {
	return auth.SignupInput{
		Role:             sec.RoleStudent,
		Email:            email,
		Name:             "Asha Rao",
		Password:         password,
		AdmissionNo:      "ab12345678",
		UniversityRollNo: "123456",
		Semester:         "1st",
		Section:          "Section A",
	}
}

func facultyInput(email string) auth.SignupInput {
	return auth.SignupInput{
		Role:       sec.RoleFaculty,
		Email:      email,
		Name:       "Kavya Iyer",
		Password:   password,
		Phone:      "+91 98765-43210",
		Department: "Computer Science",
		Subject:    "Compilers",
	}
}

// signup creates an account and returns it with the emailed credentials.
func (f *fixture) signup(t *testing.T, input auth.SignupInput) (account.Account, mail) {
	t.Helper()
	created, err := f.service.Signup(context.Background(), input)
	require.NoError(t, err)
	return created, f.outbox.last(t, "verification", created.Base().Email)
}

// verified creates an account and redeems its code.
func (f *fixture) verified(t *testing.T, input auth.SignupInput) account.Account {
	t.Helper()
	created, message := f.signup(t, input)
	_, err := f.service.VerifyEmail(context.Background(), created.Base().Email, message.code)
	require.NoError(t, err)
	return created
}

func (f *fixture) stored(t *testing.T, id string) account.Account {
	t.Helper()
	found, err := f.accounts.FindByID(context.Background(), id)
	require.NoError(t, err)
	return found
}

func appErr(t *testing.T, err error, code string) *apperr.AppError {
	t.Helper()
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae, "expected an AppError, got %v", err)
	require.Equal(t, code, ae.Code, ae.Message)
	return ae
}

func fields(ae *apperr.AppError) []string {
	names := make([]string, 0, len(ae.Details))
	for _, detail := range ae.Details {
		names = append(names, detail.Field)
	}
	return names
}

// # Signup

/*
TestSignup_Validation rejects role-specific missing or malformed fields.
*/
func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*auth.SignupInput)
		base   func(string) auth.SignupInput
		field  string
	}{
		{"student_without_admission", func(in *auth.SignupInput) { in.AdmissionNo = "" }, studentInput, account.FieldAdmissionNo},
		{"student_bad_roll", func(in *auth.SignupInput) { in.UniversityRollNo = "12ab" }, studentInput, account.FieldUniversityRollNo},
		{"student_bad_semester", func(in *auth.SignupInput) { in.Semester = "9th" }, studentInput, account.FieldSemester},
		{"student_bad_section", func(in *auth.SignupInput) { in.Section = "Section Z" }, studentInput, account.FieldSection},
		{"faculty_without_department", func(in *auth.SignupInput) { in.Department = " " }, facultyInput, account.FieldDepartment},
		{"faculty_without_phone", func(in *auth.SignupInput) { in.Phone = "" }, facultyInput, account.FieldPhone},
		{"admin_cannot_sign_up", func(in *auth.SignupInput) { in.Role = sec.RoleAdmin }, facultyInput, account.FieldRole},
		{"foreign_domain", func(in *auth.SignupInput) { in.Email = "asha@gmail.com" }, studentInput, account.FieldEmail},
		{"repeated_password", func(in *auth.SignupInput) { in.Password = "aaaaaaaa" }, studentInput, account.FieldPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			input := tt.base("asha@university.edu")
			tt.mutate(&input)

			_, err := f.service.Signup(context.Background(), input)

			ae := appErr(t, err, "VALIDATION_ERROR")
			assert.Contains(t, fields(ae), tt.field)
			assert.Zero(t, f.outbox.count("verification"))
		})
	}
}

/*
TestSignup_Persists stores normalized values and emails both credentials.
*/
func TestSignup_Persists(t *testing.T) {
	f := setup(t)

	created, message := f.signup(t, studentInput("  Asha@University.EDU "))

	student := f.stored(t, created.Base().ID).(*account.Student)
	assert.Equal(t, "asha@university.edu", student.Email)
	assert.Equal(t, "AB12345678", student.Record().AdmissionNo)
	assert.False(t, student.IsEmailVerified)
	assert.True(t, student.IsActive)
	require.NotNil(t, student.EmailVerificationToken)
	assert.Equal(t, message.token, *student.EmailVerificationToken)
	assert.Len(t, message.code, verification.CodeLength)
	assert.Equal(t, "Asha Rao", message.to.Name)

	faculty, _ := f.signup(t, facultyInput("k.iyer@university.edu"))
	stored := f.stored(t, faculty.Base().ID).(*account.Faculty)
	assert.Equal(t, account.ApprovalPending, stored.ApprovalStatus)
	assert.Equal(t, "919876543210", stored.Phone)
}

/*
TestSignup_Conflicts reports every duplicated identifier by field.
*/
func TestSignup_Conflicts(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.signup(t, studentInput("asha@university.edu"))

	t.Run("email_differs_only_in_case_and_space", func(t *testing.T) {
		input := facultyInput(" ASHA@university.edu ")
		_, err := f.service.Signup(ctx, input)

		ae := appErr(t, err, "CONFLICT")
		assert.Equal(t, []string{account.FieldEmail}, fields(ae))
	})

	t.Run("every_student_identifier", func(t *testing.T) {
		_, err := f.service.Signup(ctx, studentInput("asha@university.edu"))

		ae := appErr(t, err, "CONFLICT")
		assert.Equal(t, []string{account.FieldEmail, account.FieldAdmissionNo, account.FieldUniversityRollNo}, fields(ae))
	})

	t.Run("roll_number_only", func(t *testing.T) {
		input := studentInput("ravi@university.edu")
		input.AdmissionNo = "CD12345678"
		_, err := f.service.Signup(ctx, input)

		ae := appErr(t, err, "CONFLICT")
		assert.Equal(t, []string{account.FieldUniversityRollNo}, fields(ae))
	})
}

// # Login

/*
TestLogin_StudentScenario walks signup, a refused login, verification and a
successful login.
*/
func TestLogin_StudentScenario(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	created, message := f.signup(t, studentInput("asha@university.edu"))

	_, err := f.service.Login(ctx, "asha@university.edu", password)
	ae := appErr(t, err, auth.CodeEmailNotVerified)
	assert.Equal(t, true, ae.Meta["can_resend"])

	result, err := f.service.VerifyEmail(ctx, "asha@university.edu", message.token)
	require.NoError(t, err)
	assert.Equal(t, sec.RoleStudent, result.UserType)
	assert.Equal(t, []string{"Your email is verified.", "You can now log in."}, result.NextSteps)
	assert.Equal(t, 1, f.outbox.count("welcome"))

	login, err := f.service.Login(ctx, " ASHA@university.edu", password)
	require.NoError(t, err)
	assert.Equal(t, "jwt.student."+created.Base().ID, login.AccessToken)
	assert.Equal(t, "Bearer", login.TokenType)
	assert.Equal(t, 3600, login.ExpiresIn)
	require.NotNil(t, login.User.Base().LastLogin)
	assert.Equal(t, f.clock.Now(), *login.User.Base().LastLogin)
}

/*
TestLogin_Precedence returns the first failing gate.
*/
func TestLogin_Precedence(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown_email", func(t *testing.T) {
		f := setup(t)
		_, err := f.service.Login(ctx, "ghost@university.edu", password)
		appErr(t, err, auth.CodeEmailNotFound)
	})

	t.Run("unverified_pending_faculty_with_wrong_password", func(t *testing.T) {
		f := setup(t)
		created, _ := f.signup(t, facultyInput("k.iyer@university.edu"))

		_, err := f.service.Login(ctx, "k.iyer@university.edu", "wrong-password")

		appErr(t, err, auth.CodeEmailNotVerified)
		assert.Zero(t, f.stored(t, created.Base().ID).Base().LoginAttempts)
	})

	t.Run("verified_pending_faculty", func(t *testing.T) {
		f := setup(t)
		f.verified(t, facultyInput("k.iyer@university.edu"))

		_, err := f.service.Login(ctx, "k.iyer@university.edu", password)

		ae := appErr(t, err, auth.CodeApprovalRequired)
		assert.Equal(t, account.ApprovalPending, ae.Meta["approval_status"])
		assert.NotContains(t, ae.Meta, "rejection_reason")
	})

	t.Run("rejected_faculty_sees_reason", func(t *testing.T) {
		f := setup(t)
		created := f.verified(t, facultyInput("k.iyer@university.edu"))
		_, err := f.service.RejectFaculty(ctx, "admin-1", created.Base().ID, "Missing appointment letter")
		require.NoError(t, err)

		_, err = f.service.Login(ctx, "k.iyer@university.edu", password)

		ae := appErr(t, err, auth.CodeApprovalRequired)
		assert.Equal(t, account.ApprovalRejected, ae.Meta["approval_status"])
		assert.Equal(t, "Missing appointment letter", ae.Meta["rejection_reason"])
	})

	t.Run("inactive_student", func(t *testing.T) {
		f := setup(t)
		hash, err := sec.HashPassword(password)
		require.NoError(t, err)
		student := account.NewStudent("s1", "asha@university.edu", "Asha Rao", hash, "", account.AcademicRecord{}, f.clock.Now())
		student.IsEmailVerified = true
		student.IsActive = false
		require.NoError(t, f.accounts.Create(ctx, student))

		_, err = f.service.Login(ctx, "asha@university.edu", password)
		appErr(t, err, auth.CodeAccountInactive)
	})

	t.Run("lock_beats_correct_password", func(t *testing.T) {
		f := setup(t)
		f.verified(t, studentInput("asha@university.edu"))
		for range account.MaxLoginAttempts {
			_, _ = f.service.Login(ctx, "asha@university.edu", "wrong-password")
		}

		_, err := f.service.Login(ctx, "asha@university.edu", password)

		ae := appErr(t, err, auth.CodeAccountLocked)
		assert.Equal(t, f.clock.Now().Add(account.LockDuration), ae.Meta["lock_until"])
	})
}

/*
TestLogin_Lockout locks on the fifth failure and restarts the count after the
lock expires.
*/
func TestLogin_Lockout(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	created := f.verified(t, studentInput("asha@university.edu"))

	for attempt := 1; attempt < account.MaxLoginAttempts; attempt++ {
		_, err := f.service.Login(ctx, "asha@university.edu", "wrong-password")
		ae := appErr(t, err, auth.CodeWrongPassword)
		assert.Equal(t, account.MaxLoginAttempts-attempt, ae.Meta["attempts_left"])
		assert.NotContains(t, ae.Meta, "lock_until")
	}

	_, err := f.service.Login(ctx, "asha@university.edu", "wrong-password")
	ae := appErr(t, err, auth.CodeWrongPassword)
	assert.Equal(t, 0, ae.Meta["attempts_left"])
	assert.Equal(t, f.clock.Now().Add(account.LockDuration), ae.Meta["lock_until"])

	_, err = f.service.Login(ctx, "asha@university.edu", "wrong-password")
	appErr(t, err, auth.CodeAccountLocked)

	f.clock.Advance(account.LockDuration)
	_, err = f.service.Login(ctx, "asha@university.edu", "wrong-password")
	ae = appErr(t, err, auth.CodeWrongPassword)
	assert.Equal(t, account.MaxLoginAttempts-1, ae.Meta["attempts_left"])

	_, err = f.service.Login(ctx, "asha@university.edu", password)
	require.NoError(t, err)

	stored := f.stored(t, created.Base().ID).Base()
	assert.Zero(t, stored.LoginAttempts)
	assert.Nil(t, stored.LockUntil)
}

// # Verification

/*
TestVerifyEmail covers idempotence and the faculty next steps.
*/
func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("second_verification_is_already_verified", func(t *testing.T) {
		f := setup(t)
		created, message := f.signup(t, studentInput("asha@university.edu"))

		_, err := f.service.VerifyEmail(ctx, "asha@university.edu", message.token)
		require.NoError(t, err)
		_, err = f.service.VerifyEmail(ctx, "asha@university.edu", message.token)

		appErr(t, err, verification.CodeAlreadyVerified)
		stored := f.stored(t, created.Base().ID).Base()
		assert.True(t, stored.IsEmailVerified)
		assert.Nil(t, stored.EmailVerificationToken)
		assert.Equal(t, 1, f.outbox.count("welcome"))
	})

	t.Run("faculty_waits_for_approval", func(t *testing.T) {
		f := setup(t)
		_, message := f.signup(t, facultyInput("k.iyer@university.edu"))

		result, err := f.service.VerifyEmail(ctx, "K.Iyer@university.edu ", message.code)

		require.NoError(t, err)
		assert.Equal(t, sec.RoleFaculty, result.UserType)
		require.Len(t, result.NextSteps, 2)
		assert.Equal(t, "Your email is verified.", result.NextSteps[0])
		assert.Contains(t, result.NextSteps[1], "administrator")
		assert.Equal(t, 1, f.outbox.count("pending"))
		assert.Zero(t, f.outbox.count("welcome"))
	})

	t.Run("five_wrong_codes_lock_out_the_correct_one", func(t *testing.T) {
		f := setup(t)
		_, message := f.signup(t, studentInput("asha@university.edu"))

		for range verification.MaxAttempts {
			_, err := f.service.VerifyEmail(ctx, "asha@university.edu", "ZZZZZZ")
			appErr(t, err, verification.CodeInvalidCredential)
		}

		_, err := f.service.VerifyEmail(ctx, "asha@university.edu", message.code)
		appErr(t, err, verification.CodeTooManyAttempts)
	})
}

/*
TestResendVerification rotates the code and enforces the budget.
*/
func TestResendVerification(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	_, first := f.signup(t, studentInput("asha@university.edu"))

	for round := 1; round <= verification.MaxResends; round++ {
		result, err := f.service.ResendVerification(ctx, "Asha@university.edu")
		require.NoError(t, err)
		assert.Equal(t, auth.ResendResult{
			Success:         true,
			ResendCount:     round,
			MaxResends:      verification.MaxResends,
			CooldownMinutes: 5,
		}, *result)

		latest := f.outbox.last(t, "verification", "asha@university.edu")
		assert.Equal(t, first.token, latest.token)
		f.clock.Advance(verification.ResendCooldown)
	}

	_, err := f.service.ResendVerification(ctx, "asha@university.edu")
	appErr(t, err, verification.CodeLimitReached)
	assert.Equal(t, 1+verification.MaxResends, f.outbox.count("verification"))

	_, err = f.service.ResendVerification(ctx, "ghost@university.edu")
	appErr(t, err, verification.CodeNotFound)
}

/*
TestVerificationStatus reports counters and the faculty review state.
*/
func TestVerificationStatus(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	_, message := f.signup(t, facultyInput("k.iyer@university.edu"))

	_, err := f.service.VerifyEmail(ctx, "k.iyer@university.edu", "ZZZZZZ")
	appErr(t, err, verification.CodeInvalidCredential)

	status, err := f.service.VerificationStatus(ctx, "k.iyer@university.edu")
	require.NoError(t, err)
	assert.False(t, status.IsVerified)
	assert.Equal(t, 1, status.Attempts)
	assert.True(t, status.CanResend)
	require.NotNil(t, status.ApprovalStatus)
	assert.Equal(t, account.ApprovalPending, *status.ApprovalStatus)

	_, err = f.service.VerifyEmail(ctx, "k.iyer@university.edu", message.code)
	require.NoError(t, err)

	status, err = f.service.VerificationStatus(ctx, "k.iyer@university.edu")
	require.NoError(t, err)
	assert.True(t, status.IsVerified)
	assert.False(t, status.CanResend)

	_, err = f.service.VerificationStatus(ctx, "ghost@university.edu")
	appErr(t, err, auth.CodeEmailNotFound)
}

// # Faculty Review

/*
TestFacultyReview walks approve, reject and reopen transitions.
*/
func TestFacultyReview(t *testing.T) {
	ctx := context.Background()

	t.Run("approve_unlocks_login_once", func(t *testing.T) {
		f := setup(t)
		created := f.verified(t, facultyInput("k.iyer@university.edu"))

		approved, err := f.service.ApproveFaculty(ctx, "admin-1", created.Base().ID)
		require.NoError(t, err)
		assert.Equal(t, account.ApprovalApproved, approved.ApprovalStatus)
		require.NotNil(t, approved.ApprovedBy)
		assert.Equal(t, "admin-1", *approved.ApprovedBy)

		_, err = f.service.ApproveFaculty(ctx, "admin-2", created.Base().ID)
		require.NoError(t, err)
		assert.Equal(t, 1, f.outbox.count("approved"))
		assert.Equal(t, "admin-1", *f.stored(t, created.Base().ID).(*account.Faculty).ApprovedBy)

		_, err = f.service.Login(ctx, "k.iyer@university.edu", password)
		assert.NoError(t, err)
	})

	t.Run("approved_can_be_rejected", func(t *testing.T) {
		f := setup(t)
		created := f.verified(t, facultyInput("k.iyer@university.edu"))
		_, err := f.service.ApproveFaculty(ctx, "admin-1", created.Base().ID)
		require.NoError(t, err)
		_, err = f.service.Login(ctx, "k.iyer@university.edu", password)
		require.NoError(t, err)

		_, err = f.service.RejectFaculty(ctx, "admin-2", created.Base().ID, "Appointment withdrawn")
		require.NoError(t, err)

		stored := f.stored(t, created.Base().ID).(*account.Faculty)
		assert.Equal(t, account.ApprovalRejected, stored.ApprovalStatus)
		assert.Nil(t, stored.ApprovedAt)
		assert.Equal(t, "admin-2", *stored.ApprovedBy)

		_, err = f.service.Login(ctx, "k.iyer@university.edu", password)
		ae := appErr(t, err, auth.CodeApprovalRequired)
		assert.Equal(t, account.ApprovalRejected, ae.Meta["approval_status"])
		assert.Equal(t, "Appointment withdrawn", ae.Meta["rejection_reason"])
	})

	t.Run("reject_then_reopen_then_approve", func(t *testing.T) {
		f := setup(t)
		created := f.verified(t, facultyInput("k.iyer@university.edu"))
		id := created.Base().ID

		rejected, err := f.service.RejectFaculty(ctx, "admin-1", id, "  Missing letter ")
		require.NoError(t, err)
		assert.Equal(t, "Missing letter", *rejected.RejectionReason)
		assert.Equal(t, "Missing letter", f.outbox.last(t, "rejected", "k.iyer@university.edu").reason)

		reopened, err := f.service.ReopenFaculty(ctx, "admin-1", id)
		require.NoError(t, err)
		assert.Equal(t, account.ApprovalPending, reopened.ApprovalStatus)
		assert.Nil(t, reopened.RejectionReason)

		_, err = f.service.ReopenFaculty(ctx, "admin-1", id)
		appErr(t, err, "INVALID_TRANSITION")

		approved, err := f.service.ApproveFaculty(ctx, "admin-1", id)
		require.NoError(t, err)
		assert.Nil(t, approved.RejectionReason)
	})

	t.Run("reason_is_required", func(t *testing.T) {
		f := setup(t)
		created := f.verified(t, facultyInput("k.iyer@university.edu"))

		_, err := f.service.RejectFaculty(ctx, "admin-1", created.Base().ID, "   ")
		ae := appErr(t, err, "VALIDATION_ERROR")
		assert.Equal(t, []string{account.FieldReason}, fields(ae))
	})

	t.Run("student_is_not_faculty", func(t *testing.T) {
		f := setup(t)
		created := f.verified(t, studentInput("asha@university.edu"))

		_, err := f.service.ApproveFaculty(ctx, "admin-1", created.Base().ID)
		appErr(t, err, "NOT_FOUND")
	})
}

/*
TestListFaculty filters by status and rejects unknown ones.
*/
func TestListFaculty(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	first, _ := f.signup(t, facultyInput("a.iyer@university.edu"))
	f.clock.Advance(time.Minute)
	f.signup(t, facultyInput("b.iyer@university.edu"))
	f.signup(t, studentInput("asha@university.edu"))

	_, err := f.service.RejectFaculty(ctx, "admin-1", first.Base().ID, "Incomplete")
	require.NoError(t, err)

	page, total, err := f.service.ListFaculty(ctx, []string{"pending"}, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, "b.iyer@university.edu", page[0].Email)

	_, total, err = f.service.ListFaculty(ctx, nil, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, _, err = f.service.ListFaculty(ctx, []string{"archived"}, pagination.Params{Page: 1, Limit: 10})
	appErr(t, err, "VALIDATION_ERROR")
}

// # Legacy Profile Completion

func legacyStudent(id, email string, record account.AcademicRecord, now time.Time) *account.Student {
	student := account.NewStudent(id, email, "Asha Rao", "hash", "", record, now)
	student.Enrollment = account.LegacyEnrollment{AcademicRecord: record, NeedsProfileCompletion: true}
	student.IsEmailVerified = true
	student.RefreshCompleteness()
	return student
}

/*
TestCompleteProfile converts a legacy enrollment and guards the identifiers.
*/
func TestCompleteProfile(t *testing.T) {
	ctx := context.Background()
	complete := auth.ProfileInput{
		AdmissionNo:      "cd12345678",
		UniversityRollNo: "654321",
		Semester:         "3rd",
		Section:          "Section B",
	}

	t.Run("converts_to_standard", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.accounts.Create(ctx, legacyStudent("s1", "asha@university.edu", account.AcademicRecord{AdmissionNo: "CD12345678"}, f.clock.Now())))

		student, err := f.service.CompleteProfile(ctx, "s1", complete)
		require.NoError(t, err)
		assert.False(t, student.IsLegacy())
		assert.False(t, student.NeedsProfileCompletion())

		stored := f.stored(t, "s1").(*account.Student)
		assert.Equal(t, "CD12345678", stored.Record().AdmissionNo)
		assert.False(t, stored.NeedsProfileCompletion())
	})

	t.Run("identifier_taken_by_another_student", func(t *testing.T) {
		f := setup(t)
		f.signup(t, studentInput("ravi@university.edu"))
		require.NoError(t, f.accounts.Create(ctx, legacyStudent("s1", "asha@university.edu", account.AcademicRecord{}, f.clock.Now())))

		input := complete
		input.UniversityRollNo = "123456"
		_, err := f.service.CompleteProfile(ctx, "s1", input)

		ae := appErr(t, err, "CONFLICT")
		assert.Equal(t, []string{account.FieldUniversityRollNo}, fields(ae))
	})

	t.Run("standard_student", func(t *testing.T) {
		f := setup(t)
		created := f.verified(t, studentInput("asha@university.edu"))

		_, err := f.service.CompleteProfile(ctx, created.Base().ID, complete)
		appErr(t, err, "PROFILE_ALREADY_COMPLETE")
	})

	t.Run("faculty_has_no_academic_profile", func(t *testing.T) {
		f := setup(t)
		created := f.verified(t, facultyInput("k.iyer@university.edu"))

		_, err := f.service.CompleteProfile(ctx, created.Base().ID, complete)
		appErr(t, err, "FORBIDDEN")
	})
}

// # Maintenance

/*
TestReconcile heals accounts whose verification write was lost and is
re-runnable.
*/
func TestReconcile(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	created, _ := f.signup(t, studentInput("asha@university.edu"))

	record, err := f.records.FindLatest(ctx, "asha@university.edu")
	require.NoError(t, err)
	_, err = f.records.MarkVerified(ctx, record.ID, f.clock.Now())
	require.NoError(t, err)

	drifted := account.NewFaculty("f1", " K.Iyer@University.edu", "Kavya Iyer", "hash", "CS", "Compilers", "", f.clock.Now())
	require.NoError(t, f.accounts.Create(ctx, drifted))

	report, err := f.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Normalized.Emails)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Healed)
	assert.Empty(t, report.Failures)
	assert.True(t, f.stored(t, created.Base().ID).Base().IsEmailVerified)
	assert.Equal(t, "k.iyer@university.edu", f.stored(t, "f1").Base().Email)

	report, err = f.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Normalized.Emails)
	assert.Zero(t, report.Healed)
}

// flakyAccounts fails MarkEmailVerified for one account.
type flakyAccounts struct {
	*memstore.AccountRepository
	failID string
}

func (accounts flakyAccounts) MarkEmailVerified(ctx context.Context, id string, now time.Time) (bool, error) {
	if id == accounts.failID {
		return false, errors.New("primary unavailable")
	}
	return accounts.AccountRepository.MarkEmailVerified(ctx, id, now)
}

/*
TestReconcile_Failures reports a failing heal task and keeps healing the rest.
*/
func TestReconcile_Failures(t *testing.T) {
	ctx := context.Background()

	build := func(t *testing.T) (*fixture, account.Account, account.Account) {
		f := setup(t)
		student, _ := f.signup(t, studentInput("asha@university.edu"))
		faculty, _ := f.signup(t, facultyInput("k.iyer@university.edu"))
		for _, email := range []string{"asha@university.edu", "k.iyer@university.edu"} {
			record, err := f.records.FindLatest(ctx, email)
			require.NoError(t, err)
			_, err = f.records.MarkVerified(ctx, record.ID, f.clock.Now())
			require.NoError(t, err)
		}
		return f, student, faculty
	}

	t.Run("failure_is_reported", func(t *testing.T) {
		f, student, faculty := build(t)
		accounts := flakyAccounts{AccountRepository: f.accounts, failID: student.Base().ID}
		ledger := verification.NewLedger(f.records, accounts, keylock.NewMemoryLocker(), f.clock.Now)
		service := auth.NewService(accounts, ledger, f.outbox, tokens{}, []string{"university.edu"}, f.clock.Now)

		report, err := service.Reconcile(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Checked)
		assert.Equal(t, 1, report.Healed)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, student.Base().ID, report.Failures[0].UserID)
		assert.Equal(t, "primary unavailable", report.Failures[0].Error)
		assert.True(t, f.stored(t, faculty.Base().ID).Base().IsEmailVerified)
	})

	t.Run("cancelled_context_fails_the_run", func(t *testing.T) {
		f, student, _ := build(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		report, err := f.service.Reconcile(cancelled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, report)
		assert.False(t, f.stored(t, student.Base().ID).Base().IsEmailVerified)
	})
}

/*
TestCleanupVerifications removes only stale unverified records.
*/
func TestCleanupVerifications(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.signup(t, studentInput("asha@university.edu"))
	f.verified(t, facultyInput("k.iyer@university.edu"))

	f.clock.Advance(verification.RecordTTL + time.Minute)
	deleted, err := f.service.CleanupVerifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
