// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package verification

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

// PostgresRepository implements [Repository] on the users.verification table.
//
// PostgreSQL has no TTL eviction, so every lookup filters on expiresat and
// [Ledger.CleanupExpired] is the only deletion path.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL implementation of the verification Repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var (
	table         = schema.UserVerification
	selectColumns = strings.Join(table.Columns(), ", ")
)

// Create inserts a freshly issued record.
func (repository *PostgresRepository) Create(context context.Context, record *Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		table.Table, selectColumns)

	_, err := repository.pool.Exec(context, query,
		record.ID,
		record.Email,
		record.Token,
		record.Code,
		record.UserID,
		string(record.UserType),
		record.IsVerified,
		record.VerifiedAt,
		record.Attempts,
		record.ResendCount,
		record.LastResendAt,
		record.CreatedAt,
		record.ExpiresAt,
	)

	if err != nil {
		if _, unique := dberr.UniqueViolation(err); unique {
			return dberr.Wrap(err, "Verification", nil)
		}
		return fmt.Errorf("postgres_verification_repo_create_failed: %w", err)
	}

	return nil
}

// FindActive matches an unverified, unexpired record by token or code.
func (repository *PostgresRepository) FindActive(context context.Context, email, identifier string, now time.Time) (*Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = $1 AND %s = FALSE AND %s > $3 AND (%s = $2 OR %s = UPPER($2))
		ORDER BY %s DESC
		LIMIT 1`,
		selectColumns, table.Table,
		table.Email, table.IsVerified, table.ExpiresAt, table.VerificationToken, table.VerificationCode,
		table.CreatedAt)

	return repository.findOne(context, "find_active", query, email, identifier, now)
}

// FindPending returns the newest unverified, unexpired record of email.
func (repository *PostgresRepository) FindPending(context context.Context, email string, now time.Time) (*Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = $1 AND %s = FALSE AND %s > $2
		ORDER BY %s DESC
		LIMIT 1`,
		selectColumns, table.Table, table.Email, table.IsVerified, table.ExpiresAt, table.CreatedAt)

	return repository.findOne(context, "find_pending", query, email, now)
}

// FindLatest returns the newest record of email in any state.
func (repository *PostgresRepository) FindLatest(context context.Context, email string) (*Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s DESC LIMIT 1`,
		selectColumns, table.Table, table.Email, table.CreatedAt)

	return repository.findOne(context, "find_latest", query, email)
}

func (repository *PostgresRepository) findOne(context context.Context, action, query string, arguments ...any) (*Record, error) {
	record, err := scanRecord(repository.pool.QueryRow(context, query, arguments...))
	if err != nil {
		if dberr.IsNotFound(err) {
			return nil, apperr.NotFound("Verification")
		}
		return nil, fmt.Errorf("postgres_verification_repo_%s_failed: %w", action, err)
	}
	return record, nil
}

// IncrementAttempts adds one failed attempt with a single UPDATE.
func (repository *PostgresRepository) IncrementAttempts(context context.Context, id string) (int, error) {
	query := fmt.Sprintf(`UPDATE %[1]s SET %[2]s = %[2]s + 1 WHERE %[3]s = $1 RETURNING %[2]s`,
		table.Table, table.Attempts, table.ID)

	var attempts int
	if err := repository.pool.QueryRow(context, query, id).Scan(&attempts); err != nil {
		if dberr.IsNotFound(err) {
			return 0, apperr.NotFound("Verification")
		}
		return 0, fmt.Errorf("postgres_verification_repo_increment_attempts_failed: %w", err)
	}

	return attempts, nil
}

// MarkVerified stamps the record verified if it is not already.
func (repository *PostgresRepository) MarkVerified(context context.Context, id string, now time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET %s = TRUE, %s = $2 WHERE %s = $1 AND %s = FALSE`,
		table.Table, table.IsVerified, table.VerifiedAt, table.ID, table.IsVerified)

	tag, err := repository.pool.Exec(context, query, id, now)
	if err != nil {
		return false, fmt.Errorf("postgres_verification_repo_mark_verified_failed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Rotate swaps the code if the resend counter is unchanged.
func (repository *PostgresRepository) Rotate(context context.Context, id, code string, expectedResends int, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %[1]s
		SET %[2]s = $2, %[3]s = %[3]s + 1, %[4]s = 0, %[5]s = $3
		WHERE %[6]s = $1 AND %[7]s = FALSE AND %[3]s = $4 AND %[3]s < $5`,
		table.Table, table.VerificationCode, table.ResendCount, table.Attempts, table.LastResendAt,
		table.ID, table.IsVerified)

	tag, err := repository.pool.Exec(context, query, id, code, now, expectedResends, MaxResends)
	if err != nil {
		return fmt.Errorf("postgres_verification_repo_rotate_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrStale
	}

	return nil
}

// DeleteUnverifiedBefore removes unverified records created before cutoff.
func (repository *PostgresRepository) DeleteUnverifiedBefore(context context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = FALSE AND %s < $1`,
		table.Table, table.IsVerified, table.CreatedAt)

	tag, err := repository.pool.Exec(context, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres_verification_repo_delete_unverified_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ListVerified returns every verified record, oldest first.
func (repository *PostgresRepository) ListVerified(context context.Context) ([]*Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = TRUE ORDER BY %s`,
		selectColumns, table.Table, table.IsVerified, table.CreatedAt)

	rows, err := repository.pool.Query(context, query)
	if err != nil {
		return nil, fmt.Errorf("postgres_verification_repo_list_verified_failed: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres_verification_repo_list_verified_scan_failed: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// Ping reports whether PostgreSQL is reachable.
func (repository *PostgresRepository) Ping(context context.Context) error {
	return repository.pool.Ping(context)
}

// scanRecord reads one row in [schema.UserVerificationTable.Columns] order.
func scanRecord(row pgx.Row) (*Record, error) {
	var (
		record   Record
		userType string
	)

	err := row.Scan(
		&record.ID,
		&record.Email,
		&record.Token,
		&record.Code,
		&record.UserID,
		&userType,
		&record.IsVerified,
		&record.VerifiedAt,
		&record.Attempts,
		&record.ResendCount,
		&record.LastResendAt,
		&record.CreatedAt,
		&record.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	record.UserType = sec.UserRole(userType)
	return &record, nil
}
