// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/platform/database/schema"
	"github.com/taibuivan/facultyeval/internal/platform/dberr"
	"github.com/taibuivan/facultyeval/internal/platform/sec"
)

// # Repository Implementation

// PostgresRepository implements [Repository] on the users.account table.
//
// All roles share one table with a role discriminator; role-specific columns
// are NULL for the other roles.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL implementation of the account Repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var (
	table         = schema.UserAccount
	selectColumns = strings.Join(table.Columns(), ", ")
)

/*
Create persists a new account row.

Parameters:
  - context: context.Context
  - account: Account

Returns:
  - error: apperr.Conflict on a duplicated identifier, or database errors
*/
func (repository *PostgresRepository) Create(context context.Context, account Account) error {
	row, err := newAccountRow(account)
	if err != nil {
		return err
	}

	columns := table.Columns()
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		table.Table, selectColumns, strings.Join(placeholders, ", "))

	if _, err := repository.pool.Exec(context, query, row.values()...); err != nil {
		if _, unique := dberr.UniqueViolation(err); unique {
			return dberr.Wrap(err, "Account", conflictFields)
		}
		return fmt.Errorf("postgres_account_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves an account by primary key.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - Account: Hydrated variant
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresRepository) FindByID(context context.Context, id string) (Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, selectColumns, table.Table, table.ID)
	return repository.findOne(context, "find_by_id", query, id)
}

/*
FindByEmail retrieves an account by its normalized email.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - Account: Hydrated variant
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresRepository) FindByEmail(context context.Context, email string) (Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, selectColumns, table.Table, table.Email)
	return repository.findOne(context, "find_by_email", query, email)
}

func (repository *PostgresRepository) findOne(context context.Context, action, query string, argument any) (Account, error) {
	row := &accountRow{}
	if err := repository.pool.QueryRow(context, query, argument).Scan(row.targets()...); err != nil {
		if dberr.IsNotFound(err) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_%s_failed: %w", action, err)
	}
	return row.toAccount()
}

/*
Exists reports whether an identifier is already registered.

Parameters:
  - context: context.Context
  - field: UniqueField
  - value: string

Returns:
  - bool: True if taken
  - error: Database errors
*/
func (repository *PostgresRepository) Exists(context context.Context, field UniqueField, value string) (bool, error) {
	columns := map[UniqueField]string{
		UniqueEmail:            table.Email,
		UniqueAdmissionNo:      table.AdmissionNo,
		UniqueUniversityRollNo: table.UniversityRollNo,
	}

	column, ok := columns[field]
	if !ok {
		return false, fmt.Errorf("postgres_account_repo_exists_unknown_field: %s", field)
	}

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, table.Table, column)

	var exists bool
	if err := repository.pool.QueryRow(context, query, value).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres_account_repo_exists_failed: %w", err)
	}

	return exists, nil
}

/*
SetVerificationToken stores the pending verification token.

Parameters:
  - context: context.Context
  - id: string
  - token: string
  - expires: time.Time

Returns:
  - error: Database errors
*/
func (repository *PostgresRepository) SetVerificationToken(context context.Context, id, token string, expires time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3, %s = NOW() WHERE %s = $1 AND %s = FALSE`,
		table.Table, table.EmailVerificationToken, table.EmailVerificationExpires, table.UpdatedAt,
		table.ID, table.IsEmailVerified)

	if _, err := repository.pool.Exec(context, query, id, token, expires); err != nil {
		return fmt.Errorf("postgres_account_repo_set_verification_token_failed: %w", err)
	}

	return nil
}

/*
MarkEmailVerified flips the verified flag if it is still false.

Parameters:
  - context: context.Context
  - id: string
  - now: time.Time

Returns:
  - bool: True if this call changed the row
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresRepository) MarkEmailVerified(context context.Context, id string, now time.Time) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = TRUE, %s = NULL, %s = NULL, %s = $2
		WHERE %s = $1 AND %s = FALSE`,
		table.Table,
		table.IsEmailVerified, table.EmailVerificationToken, table.EmailVerificationExpires, table.UpdatedAt,
		table.ID, table.IsEmailVerified)

	tag, err := repository.pool.Exec(context, query, id, now)
	if err != nil {
		return false, fmt.Errorf("postgres_account_repo_mark_email_verified_failed: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Nothing changed: either already verified (a no-op) or no such account
	var exists bool
	existsQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, table.Table, table.ID)
	if err := repository.pool.QueryRow(context, existsQuery, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres_account_repo_mark_email_verified_failed: %w", err)
	}

	if !exists {
		return false, apperr.NotFound("Account")
	}

	return false, nil
}

/*
IncrementLoginAttempts records a failed password in one UPDATE.

Description: Every SET expression reads the pre-update row, so the expired
lock branch and the threshold branch see the same old values.

Parameters:
  - context: context.Context
  - id: string
  - now: time.Time

Returns:
  - Lockout: Counter and lock after the update
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresRepository) IncrementLoginAttempts(context context.Context, id string, now time.Time) (Lockout, error) {
	query := fmt.Sprintf(`
		UPDATE %[1]s
		SET %[2]s = CASE
				WHEN %[3]s IS NOT NULL AND %[3]s <= $2 THEN 1
				ELSE %[2]s + 1
			END,
			%[3]s = CASE
				WHEN %[3]s IS NOT NULL AND %[3]s <= $2 THEN NULL
				WHEN %[2]s + 1 >= $3 AND %[3]s IS NULL THEN $4
				ELSE %[3]s
			END,
			%[4]s = $2
		WHERE %[5]s = $1
		RETURNING %[2]s, %[3]s`,
		table.Table, table.LoginAttempts, table.LockUntil, table.UpdatedAt, table.ID)

	var lockout Lockout
	err := repository.pool.QueryRow(context, query, id, now, MaxLoginAttempts, now.Add(LockDuration)).
		Scan(&lockout.Attempts, &lockout.LockUntil)

	if err != nil {
		if dberr.IsNotFound(err) {
			return Lockout{}, apperr.NotFound("Account")
		}
		return Lockout{}, fmt.Errorf("postgres_account_repo_increment_login_attempts_failed: %w", err)
	}

	return lockout, nil
}

/*
ResetLoginAttempts clears lockout state after a successful login.

Parameters:
  - context: context.Context
  - id: string
  - now: time.Time

Returns:
  - error: Database errors
*/
func (repository *PostgresRepository) ResetLoginAttempts(context context.Context, id string, now time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = 0, %s = NULL, %s = $2, %s = $2 WHERE %s = $1`,
		table.Table, table.LoginAttempts, table.LockUntil, table.LastLogin, table.UpdatedAt, table.ID)

	if _, err := repository.pool.Exec(context, query, id, now); err != nil {
		return fmt.Errorf("postgres_account_repo_reset_login_attempts_failed: %w", err)
	}

	return nil
}

/*
UpdateApproval writes the review fields if the status is still expected.

Parameters:
  - context: context.Context
  - faculty: *Faculty
  - expected: ApprovalStatus

Returns:
  - error: apperr.Conflict when the status moved meanwhile, or database errors
*/
func (repository *PostgresRepository) UpdateApproval(context context.Context, faculty *Faculty, expected ApprovalStatus) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4, %s = $5, %s = $6, %s = $7
		WHERE %s = $1 AND %s = $8 AND %s = $9`,
		table.Table,
		table.ApprovalStatus, table.ApprovedBy, table.ApprovedAt, table.RejectedAt, table.RejectionReason, table.UpdatedAt,
		table.ID, table.Role, table.ApprovalStatus)

	tag, err := repository.pool.Exec(context, query,
		faculty.ID,
		string(faculty.ApprovalStatus),
		faculty.ApprovedBy,
		faculty.ApprovedAt,
		faculty.RejectedAt,
		faculty.RejectionReason,
		faculty.UpdatedAt,
		string(sec.RoleFaculty),
		string(expected),
	)

	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_approval_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrApprovalChanged
	}

	return nil
}

/*
ListFaculty returns one page of the faculty queue.

Parameters:
  - context: context.Context
  - filter: FacultyFilter

Returns:
  - []*Faculty: The page, oldest signup first
  - int: Total matching rows
  - error: Database errors
*/
func (repository *PostgresRepository) ListFaculty(context context.Context, filter FacultyFilter) ([]*Faculty, int, error) {
	var statuses []string
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER ()
		FROM %s
		WHERE %s = $1 AND ($2::text[] IS NULL OR %s = ANY($2))
		ORDER BY %s, %s
		LIMIT $3 OFFSET $4`,
		selectColumns, table.Table, table.Role, table.ApprovalStatus, table.CreatedAt, table.ID)

	rows, err := repository.pool.Query(context, query,
		string(sec.RoleFaculty), statuses, filter.Page.Limit, filter.Page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_list_faculty_failed: %w", err)
	}
	defer rows.Close()

	var (
		faculty []*Faculty
		total   int
	)
	for rows.Next() {
		row := &accountRow{}
		if err := rows.Scan(append(row.targets(), &total)...); err != nil {
			return nil, 0, fmt.Errorf("postgres_account_repo_list_faculty_scan_failed: %w", err)
		}

		account, err := row.toAccount()
		if err != nil {
			return nil, 0, err
		}
		if member, ok := account.(*Faculty); ok {
			faculty = append(faculty, member)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_list_faculty_failed: %w", err)
	}

	// COUNT(*) OVER () is absent when the page is past the end
	if len(faculty) == 0 && filter.Page.Offset() > 0 {
		countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1 AND ($2::text[] IS NULL OR %s = ANY($2))`,
			table.Table, table.Role, table.ApprovalStatus)
		if err := repository.pool.QueryRow(context, countQuery, string(sec.RoleFaculty), statuses).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("postgres_account_repo_count_faculty_failed: %w", err)
		}
	}

	return faculty, total, nil
}

/*
UpdateEnrollment writes a student's academic record and legacy flags.

Parameters:
  - context: context.Context
  - student: *Student

Returns:
  - error: apperr.Conflict on a duplicated identifier, or database errors
*/
func (repository *PostgresRepository) UpdateEnrollment(context context.Context, student *Student) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4, %s = $5, %s = $6, %s = $7, %s = $8, %s = $9
		WHERE %s = $1 AND %s = $10`,
		table.Table,
		table.AdmissionNo, table.UniversityRollNo, table.Semester, table.Section,
		table.IsLegacyAccount, table.NeedsProfileCompletion, table.ProfileCompleteness, table.UpdatedAt,
		table.ID, table.Role)

	record := student.Record()
	tag, err := repository.pool.Exec(context, query,
		student.ID,
		nullable(record.AdmissionNo),
		nullable(record.UniversityRollNo),
		nullable(string(record.Semester)),
		nullable(string(record.Section)),
		student.IsLegacy(),
		student.NeedsProfileCompletion(),
		student.ProfileCompleteness,
		student.UpdatedAt,
		string(sec.RoleStudent),
	)

	if err != nil {
		if _, unique := dberr.UniqueViolation(err); unique {
			return dberr.Wrap(err, "Account", conflictFields)
		}
		return fmt.Errorf("postgres_account_repo_update_enrollment_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Student")
	}

	return nil
}

/*
NormalizeIdentifiers rewrites malformed emails and admission numbers in one transaction.

Parameters:
  - context: context.Context

Returns:
  - NormalizeReport: Rows changed
  - error: apperr.Conflict if a normalized value collides, or database errors
*/
func (repository *PostgresRepository) NormalizeIdentifiers(context context.Context) (NormalizeReport, error) {
	emailQuery := fmt.Sprintf(`UPDATE %[1]s SET %[2]s = LOWER(BTRIM(%[2]s)), %[3]s = NOW() WHERE %[2]s <> LOWER(BTRIM(%[2]s))`,
		table.Table, table.Email, table.UpdatedAt)
	admissionQuery := fmt.Sprintf(`UPDATE %[1]s SET %[2]s = UPPER(BTRIM(%[2]s)), %[3]s = NOW() WHERE %[2]s IS NOT NULL AND %[2]s <> UPPER(BTRIM(%[2]s))`,
		table.Table, table.AdmissionNo, table.UpdatedAt)

	var report NormalizeReport
	err := pgx.BeginFunc(context, repository.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(context, emailQuery)
		if err != nil {
			return err
		}
		report.Emails = tag.RowsAffected()

		tag, err = tx.Exec(context, admissionQuery)
		if err != nil {
			return err
		}
		report.AdmissionNos = tag.RowsAffected()
		return nil
	})

	if err != nil {
		if _, unique := dberr.UniqueViolation(err); unique {
			return NormalizeReport{}, dberr.Wrap(err, "Account", conflictFields)
		}
		return NormalizeReport{}, fmt.Errorf("postgres_account_repo_normalize_identifiers_failed: %w", err)
	}

	return report, nil
}

// Ping reports whether PostgreSQL is reachable.
func (repository *PostgresRepository) Ping(context context.Context) error {
	return repository.pool.Ping(context)
}

// # Row Mapping

// accountRow mirrors one users.account row in [schema.UserAccountTable.Columns] order.
type accountRow struct {
	id           string
	role         string
	email        string
	name         string
	passwordHash string

	isEmailVerified bool
	token           *string
	tokenExpires    *time.Time

	loginAttempts int
	lockUntil     *time.Time
	lastLogin     *time.Time

	isActive        bool
	phone           *string
	admissionNo     *string
	rollNo          *string
	semester        *string
	section         *string
	isLegacy        bool
	needsCompletion bool
	profile         Profile
	completeness    int

	department      *string
	subject         *string
	approvalStatus  *string
	approvedBy      *string
	approvedAt      *time.Time
	rejectedAt      *time.Time
	rejectionReason *string

	createdAt time.Time
	updatedAt time.Time
}

func (row *accountRow) targets() []any {
	return []any{
		&row.id, &row.role, &row.email, &row.name, &row.passwordHash,
		&row.isEmailVerified, &row.token, &row.tokenExpires,
		&row.loginAttempts, &row.lockUntil, &row.lastLogin,
		&row.isActive, &row.phone, &row.admissionNo, &row.rollNo, &row.semester, &row.section,
		&row.isLegacy, &row.needsCompletion, &row.profile, &row.completeness,
		&row.department, &row.subject, &row.approvalStatus, &row.approvedBy, &row.approvedAt, &row.rejectedAt, &row.rejectionReason,
		&row.createdAt, &row.updatedAt,
	}
}

func (row *accountRow) values() []any {
	return []any{
		row.id, row.role, row.email, row.name, row.passwordHash,
		row.isEmailVerified, row.token, row.tokenExpires,
		row.loginAttempts, row.lockUntil, row.lastLogin,
		row.isActive, row.phone, row.admissionNo, row.rollNo, row.semester, row.section,
		row.isLegacy, row.needsCompletion, row.profile, row.completeness,
		row.department, row.subject, row.approvalStatus, row.approvedBy, row.approvedAt, row.rejectedAt, row.rejectionReason,
		row.createdAt, row.updatedAt,
	}
}

func newAccountRow(account Account) (*accountRow, error) {
	base := account.Base()
	row := &accountRow{
		id:              base.ID,
		role:            string(base.Role),
		email:           base.Email,
		name:            base.Name,
		passwordHash:    base.PasswordHash,
		isEmailVerified: base.IsEmailVerified,
		token:           base.EmailVerificationToken,
		tokenExpires:    base.EmailVerificationExpires,
		loginAttempts:   base.LoginAttempts,
		lockUntil:       base.LockUntil,
		lastLogin:       base.LastLogin,
		isActive:        true,
		createdAt:       base.CreatedAt,
		updatedAt:       base.UpdatedAt,
	}

	switch variant := account.(type) {
	case *Student:
		record := variant.Record()
		row.isActive = variant.IsActive
		row.phone = nullable(variant.Phone)
		row.admissionNo = nullable(record.AdmissionNo)
		row.rollNo = nullable(record.UniversityRollNo)
		row.semester = nullable(string(record.Semester))
		row.section = nullable(string(record.Section))
		row.isLegacy = variant.IsLegacy()
		row.needsCompletion = variant.NeedsProfileCompletion()
		row.profile = variant.Profile
		row.completeness = variant.ProfileCompleteness
	case *Faculty:
		status := string(variant.ApprovalStatus)
		row.phone = nullable(variant.Phone)
		row.department = nullable(variant.Department)
		row.subject = nullable(variant.Subject)
		row.approvalStatus = &status
		row.approvedBy = variant.ApprovedBy
		row.approvedAt = variant.ApprovedAt
		row.rejectedAt = variant.RejectedAt
		row.rejectionReason = variant.RejectionReason
	case *Admin:
	default:
		return nil, fmt.Errorf("postgres_account_repo_unknown_variant: %T", account)
	}

	return row, nil
}

func (row *accountRow) toAccount() (Account, error) {
	identity := Identity{
		ID:                       row.id,
		Role:                     sec.UserRole(row.role),
		Email:                    row.email,
		Name:                     row.name,
		PasswordHash:             row.passwordHash,
		IsEmailVerified:          row.isEmailVerified,
		EmailVerificationToken:   row.token,
		EmailVerificationExpires: row.tokenExpires,
		LoginAttempts:            row.loginAttempts,
		LockUntil:                row.lockUntil,
		LastLogin:                row.lastLogin,
		CreatedAt:                row.createdAt,
		UpdatedAt:                row.updatedAt,
	}

	switch identity.Role {
	case sec.RoleStudent:
		record := AcademicRecord{
			AdmissionNo:      deref(row.admissionNo),
			UniversityRollNo: deref(row.rollNo),
			Semester:         Semester(deref(row.semester)),
			Section:          Section(deref(row.section)),
		}

		var enrollment Enrollment = StandardEnrollment{AcademicRecord: record}
		if row.isLegacy {
			enrollment = LegacyEnrollment{AcademicRecord: record, NeedsProfileCompletion: row.needsCompletion}
		}

		return &Student{
			Identity:            identity,
			IsActive:            row.isActive,
			Phone:               deref(row.phone),
			Enrollment:          enrollment,
			Profile:             row.profile,
			ProfileCompleteness: row.completeness,
		}, nil

	case sec.RoleFaculty:
		return &Faculty{
			Identity:        identity,
			Department:      deref(row.department),
			Subject:         deref(row.subject),
			Phone:           deref(row.phone),
			ApprovalStatus:  ApprovalStatus(deref(row.approvalStatus)),
			ApprovedBy:      row.approvedBy,
			ApprovedAt:      row.approvedAt,
			RejectedAt:      row.rejectedAt,
			RejectionReason: row.rejectionReason,
		}, nil

	case sec.RoleAdmin:
		return &Admin{Identity: identity}, nil

	default:
		return nil, fmt.Errorf("postgres_account_repo_unknown_role: %q", row.role)
	}
}

// # Helpers

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
