// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
//
// Both supported engines are covered: PostgreSQL (pgx) and MongoDB. Callers
// get the same [apperr.AppError] kinds whichever store is configured, so the
// service layer never imports a driver.
package dberr

import (
	"errors"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// mongoIndexName extracts the index name from an E11000 message.
var mongoIndexName = regexp.MustCompile(`index: (\S+)`)

// IsNotFound reports whether err means the queried row or document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, mongo.ErrNoDocuments)
}

// UniqueViolation reports whether err is a unique-constraint rejection and
// returns the name of the violated constraint (Postgres) or index (MongoDB).
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}

	if mongo.IsDuplicateKeyError(err) {
		if match := mongoIndexName.FindStringSubmatch(err.Error()); len(match) == 2 {
			return match[1], true
		}
		return "", true
	}

	return "", false
}

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
// fields maps constraint or index names to the JSON field a conflict is
// reported against, so the store's own unique check produces the same
// field-scoped error as the proactive lookup in the service layer.
func Wrap(err error, resource string, fields map[string]string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if IsNotFound(err) {
		return apperr.NotFound(resource)
	}

	// 2. Unique constraint mapping
	if name, ok := UniqueViolation(err); ok {
		field := fields[name]
		if field == "" {
			return apperr.Conflict("", resource+" already exists")
		}
		return apperr.Conflict(field, "This "+field+" is already registered")
	}

	// 3. Unknown query errors become Internal Server Errors
	return apperr.Internal(err)
}
