// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/users/verification"
	"github.com/taibuivan/facultyeval/pkg/pointer"
)

// VerificationRepository implements [verification.Repository] in memory.
type VerificationRepository struct {
	mutex   sync.Mutex
	records map[string]*verification.Record
}

// NewVerificationRepository creates an empty in-memory ledger store.
func NewVerificationRepository() *VerificationRepository {
	return &VerificationRepository{records: make(map[string]*verification.Record)}
}

// Create stores a copy of the record.
func (repository *VerificationRepository) Create(_ context.Context, record *verification.Record) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	for _, stored := range repository.records {
		if stored.Token == record.Token {
			return apperr.Conflict("", "Verification already exists")
		}
	}

	copied := *record
	repository.records[record.ID] = &copied
	return nil
}

// FindActive matches an unverified, unexpired record by token or code.
func (repository *VerificationRepository) FindActive(_ context.Context, email, identifier string, now time.Time) (*verification.Record, error) {
	return repository.newest(func(record *verification.Record) bool {
		return record.Email == email && !record.IsVerified && !record.IsExpired(now) &&
			(record.Token == identifier || record.Code == strings.ToUpper(identifier))
	})
}

// FindPending returns the newest unverified, unexpired record of email.
func (repository *VerificationRepository) FindPending(_ context.Context, email string, now time.Time) (*verification.Record, error) {
	return repository.newest(func(record *verification.Record) bool {
		return record.Email == email && !record.IsVerified && !record.IsExpired(now)
	})
}

// FindLatest returns the newest record of email in any state.
func (repository *VerificationRepository) FindLatest(_ context.Context, email string) (*verification.Record, error) {
	return repository.newest(func(record *verification.Record) bool {
		return record.Email == email
	})
}

// IncrementAttempts adds one failed attempt.
func (repository *VerificationRepository) IncrementAttempts(_ context.Context, id string) (int, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	stored, ok := repository.records[id]
	if !ok {
		return 0, apperr.NotFound("Verification")
	}
	stored.Attempts++
	return stored.Attempts, nil
}

// MarkVerified stamps the record verified if it is not already.
func (repository *VerificationRepository) MarkVerified(_ context.Context, id string, now time.Time) (bool, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	stored, ok := repository.records[id]
	if !ok || stored.IsVerified {
		return false, nil
	}
	stored.IsVerified = true
	stored.VerifiedAt = pointer.To(now)
	return true, nil
}

// Rotate swaps the code if the resend counter is unchanged.
func (repository *VerificationRepository) Rotate(_ context.Context, id, code string, expectedResends int, now time.Time) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	stored, ok := repository.records[id]
	if !ok || stored.IsVerified || stored.ResendCount != expectedResends || stored.ResendCount >= verification.MaxResends {
		return verification.ErrStale
	}

	stored.Code = code
	stored.ResendCount++
	stored.Attempts = 0
	stored.LastResendAt = pointer.To(now)
	return nil
}

// DeleteUnverifiedBefore removes unverified records created before cutoff.
func (repository *VerificationRepository) DeleteUnverifiedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	var deleted int64
	for id, stored := range repository.records {
		if !stored.IsVerified && stored.CreatedAt.Before(cutoff) {
			delete(repository.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// ListVerified returns every verified record, oldest first.
func (repository *VerificationRepository) ListVerified(_ context.Context) ([]*verification.Record, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	var records []*verification.Record
	for _, stored := range repository.records {
		if stored.IsVerified {
			copied := *stored
			records = append(records, &copied)
		}
	}

	slices.SortFunc(records, func(a, b *verification.Record) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return records, nil
}

// Ping always succeeds.
func (repository *VerificationRepository) Ping(context.Context) error {
	return nil
}

// Update overwrites a stored record. Tests use it to arrange counters.
func (repository *VerificationRepository) Update(record *verification.Record) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	copied := *record
	repository.records[record.ID] = &copied
}

func (repository *VerificationRepository) newest(match func(*verification.Record) bool) (*verification.Record, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	var found *verification.Record
	for _, stored := range repository.records {
		if !match(stored) {
			continue
		}
		if found == nil || stored.CreatedAt.After(found.CreatedAt) ||
			(stored.CreatedAt.Equal(found.CreatedAt) && stored.ID > found.ID) {
			found = stored
		}
	}

	if found == nil {
		return nil, apperr.NotFound("Verification")
	}

	copied := *found
	return &copied, nil
}
