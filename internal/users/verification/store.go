// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package verification

import (
	"context"
	"errors"
	"time"
)

// ErrStale is returned by conditional updates whose precondition no longer holds.
var ErrStale = errors.New("verification: record changed concurrently")

// # Ledger Data Access

// Repository defines the data access contract for verification records.
type Repository interface {

	/*
		Create persists a freshly issued record.

		Parameters:
		  - context: context.Context
		  - record: *Record

		Returns:
		  - error: Storage failures
	*/
	Create(context context.Context, record *Record) error

	/*
		FindActive returns the unverified, unexpired record of email whose
		token equals identifier, or whose code equals it uppercased.

		Parameters:
		  - context: context.Context
		  - email: string
		  - identifier: string (token or code)
		  - now: time.Time

		Returns:
		  - *Record
		  - error: apperr.NotFound or storage failures
	*/
	FindActive(context context.Context, email, identifier string, now time.Time) (*Record, error)

	/*
		FindPending returns the newest unverified, unexpired record of email.

		Parameters:
		  - context: context.Context
		  - email: string
		  - now: time.Time

		Returns:
		  - *Record
		  - error: apperr.NotFound or storage failures
	*/
	FindPending(context context.Context, email string, now time.Time) (*Record, error)

	/*
		FindLatest returns the newest record of email in any state.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *Record
		  - error: apperr.NotFound or storage failures
	*/
	FindLatest(context context.Context, email string) (*Record, error)

	/*
		IncrementAttempts adds one failed attempt and returns the new count.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - int: Attempts after the increment
		  - error: apperr.NotFound or storage failures
	*/
	IncrementAttempts(context context.Context, id string) (int, error)

	/*
		MarkVerified stamps the record verified if it is not already.

		Parameters:
		  - context: context.Context
		  - id: string
		  - now: time.Time

		Returns:
		  - bool: True if this call changed the record
		  - error: Storage failures
	*/
	MarkVerified(context context.Context, id string, now time.Time) (bool, error)

	/*
		Rotate replaces the code, bumps the resend counter and resets attempts.

		Description: Conditional on the record being unverified and its resend
		counter still equal to expectedResends, so of two racing resends only
		one rotates.

		Parameters:
		  - context: context.Context
		  - id: string
		  - code: string
		  - expectedResends: int
		  - now: time.Time

		Returns:
		  - error: ErrStale if the precondition failed, or storage failures
	*/
	Rotate(context context.Context, id, code string, expectedResends int, now time.Time) error

	/*
		DeleteUnverifiedBefore removes unverified records created before cutoff.

		Parameters:
		  - context: context.Context
		  - cutoff: time.Time

		Returns:
		  - int64: Records deleted
		  - error: Storage failures
	*/
	DeleteUnverifiedBefore(context context.Context, cutoff time.Time) (int64, error)

	/*
		ListVerified returns every verified record, oldest first.

		Parameters:
		  - context: context.Context

		Returns:
		  - []*Record
		  - error: Storage failures
	*/
	ListVerified(context context.Context) ([]*Record, error)

	/*
		Ping reports whether the store is reachable.
	*/
	Ping(context context.Context) error
}
