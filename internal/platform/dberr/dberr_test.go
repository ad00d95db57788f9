// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/platform/dberr"
)

var accountFields = map[string]string{
	"uq_account_email":   "email",
	"email_1":            "email",
	"uq_account_rollno":  "university_roll_no",
	"universityRollNo_1": "university_roll_no",
}

/*
TestWrap verifies the driver error classification for both engines.
*/
func TestWrap(t *testing.T) {
	mongoDuplicate := mongo.WriteException{
		WriteErrors: []mongo.WriteError{{
			Code:    11000,
			Message: `E11000 duplicate key error collection: facultyeval.accounts index: email_1 dup key: { email: "a@b.edu" }`,
		}},
	}

	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		field     string
		unwrapped bool
	}{
		{"pgx_no_rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), http.StatusNotFound, "NOT_FOUND", "", false},
		{"mongo_no_documents", mongo.ErrNoDocuments, http.StatusNotFound, "NOT_FOUND", "", false},
		{"pg_unique_known", &pgconn.PgError{Code: "23505", ConstraintName: "uq_account_rollno"}, http.StatusConflict, "CONFLICT", "university_roll_no", false},
		{"pg_unique_unknown", &pgconn.PgError{Code: "23505", ConstraintName: "uq_other"}, http.StatusConflict, "CONFLICT", "", false},
		{"mongo_duplicate", mongoDuplicate, http.StatusConflict, "CONFLICT", "email", false},
		{"other_pg_error", &pgconn.PgError{Code: "42P01"}, http.StatusInternalServerError, "INTERNAL_ERROR", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := dberr.Wrap(tt.err, "Account", accountFields)

			appErr := apperr.As(wrapped)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
			assert.Equal(t, tt.code, appErr.Code)

			if tt.field != "" {
				require.Len(t, appErr.Details, 1)
				assert.Equal(t, tt.field, appErr.Details[0].Field)
			}
			if tt.unwrapped {
				assert.True(t, errors.Is(wrapped, tt.err))
			}
		})
	}

	assert.NoError(t, dberr.Wrap(nil, "Account", accountFields))
}
