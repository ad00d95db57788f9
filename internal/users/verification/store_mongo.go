// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/taibuivan/facultyeval/internal/platform/apperr"
	"github.com/taibuivan/facultyeval/internal/platform/constants"
	"github.com/taibuivan/facultyeval/internal/platform/dberr"
	"github.com/taibuivan/facultyeval/internal/platform/sec"
)

// # Repository Implementation

// MongoRepository implements [Repository] on the verifications collection.
//
// A TTL index on expiresAt lets MongoDB evict records on its own; lookups
// still filter on expiresAt because eviction runs in the background.
type MongoRepository struct {
	database   *mongo.Database
	collection *mongo.Collection
}

/*
NewMongoRepository binds the verifications collection and ensures its indexes.

Parameters:
  - context: context.Context
  - database: *mongo.Database

Returns:
  - *MongoRepository
  - error: Index creation failures
*/
func NewMongoRepository(context context.Context, database *mongo.Database) (*MongoRepository, error) {
	collection := database.Collection(constants.CollectionVerifications)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "verificationToken", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("verificationToken_1"),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("expiresAt_ttl"),
		},
	}

	if _, err := collection.Indexes().CreateMany(context, indexes); err != nil {
		return nil, fmt.Errorf("mongo_verification_repo_create_indexes_failed: %w", err)
	}

	return &MongoRepository{database: database, collection: collection}, nil
}

// Create inserts a freshly issued record.
func (repository *MongoRepository) Create(context context.Context, record *Record) error {
	if _, err := repository.collection.InsertOne(context, newRecordDocument(record)); err != nil {
		if _, unique := dberr.UniqueViolation(err); unique {
			return dberr.Wrap(err, "Verification", nil)
		}
		return fmt.Errorf("mongo_verification_repo_create_failed: %w", err)
	}
	return nil
}

// FindActive matches an unverified, unexpired record by token or code.
func (repository *MongoRepository) FindActive(context context.Context, email, identifier string, now time.Time) (*Record, error) {
	filter := bson.M{
		"email":      email,
		"isVerified": false,
		"expiresAt":  bson.M{"$gt": now},
		"$or": bson.A{
			bson.M{"verificationToken": identifier},
			bson.M{"verificationCode": strings.ToUpper(identifier)},
		},
	}
	return repository.findOne(context, "find_active", filter)
}

// FindPending returns the newest unverified, unexpired record of email.
func (repository *MongoRepository) FindPending(context context.Context, email string, now time.Time) (*Record, error) {
	filter := bson.M{"email": email, "isVerified": false, "expiresAt": bson.M{"$gt": now}}
	return repository.findOne(context, "find_pending", filter)
}

// FindLatest returns the newest record of email in any state.
func (repository *MongoRepository) FindLatest(context context.Context, email string) (*Record, error) {
	return repository.findOne(context, "find_latest", bson.M{"email": email})
}

func (repository *MongoRepository) findOne(context context.Context, action string, filter bson.M) (*Record, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var document recordDocument
	if err := repository.collection.FindOne(context, filter, opts).Decode(&document); err != nil {
		if dberr.IsNotFound(err) {
			return nil, apperr.NotFound("Verification")
		}
		return nil, fmt.Errorf("mongo_verification_repo_%s_failed: %w", action, err)
	}

	return document.toRecord(), nil
}

// IncrementAttempts adds one failed attempt with $inc.
func (repository *MongoRepository) IncrementAttempts(context context.Context, id string) (int, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"attempts": 1})

	var result struct {
		Attempts int `bson:"attempts"`
	}

	err := repository.collection.FindOneAndUpdate(context, bson.M{"_id": id}, bson.M{"$inc": bson.M{"attempts": 1}}, opts).Decode(&result)
	if err != nil {
		if dberr.IsNotFound(err) {
			return 0, apperr.NotFound("Verification")
		}
		return 0, fmt.Errorf("mongo_verification_repo_increment_attempts_failed: %w", err)
	}

	return result.Attempts, nil
}

// MarkVerified stamps the record verified if it is not already.
func (repository *MongoRepository) MarkVerified(context context.Context, id string, now time.Time) (bool, error) {
	update := bson.M{"$set": bson.M{"isVerified": true, "verifiedAt": now}}

	result, err := repository.collection.UpdateOne(context, bson.M{"_id": id, "isVerified": false}, update)
	if err != nil {
		return false, fmt.Errorf("mongo_verification_repo_mark_verified_failed: %w", err)
	}

	return result.ModifiedCount == 1, nil
}

// Rotate swaps the code if the resend counter is unchanged.
func (repository *MongoRepository) Rotate(context context.Context, id, code string, expectedResends int, now time.Time) error {
	filter := bson.M{
		"_id":         id,
		"isVerified":  false,
		"resendCount": bson.M{"$eq": expectedResends, "$lt": MaxResends},
	}
	update := bson.M{
		"$set": bson.M{"verificationCode": code, "attempts": 0, "lastResendAt": now},
		"$inc": bson.M{"resendCount": 1},
	}

	result, err := repository.collection.UpdateOne(context, filter, update)
	if err != nil {
		return fmt.Errorf("mongo_verification_repo_rotate_failed: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrStale
	}

	return nil
}

// DeleteUnverifiedBefore removes unverified records created before cutoff.
func (repository *MongoRepository) DeleteUnverifiedBefore(context context.Context, cutoff time.Time) (int64, error) {
	result, err := repository.collection.DeleteMany(context, bson.M{"isVerified": false, "createdAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("mongo_verification_repo_delete_unverified_failed: %w", err)
	}
	return result.DeletedCount, nil
}

// ListVerified returns every verified record, oldest first.
func (repository *MongoRepository) ListVerified(context context.Context) ([]*Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := repository.collection.Find(context, bson.M{"isVerified": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo_verification_repo_list_verified_failed: %w", err)
	}

	var documents []recordDocument
	if err := cursor.All(context, &documents); err != nil {
		return nil, fmt.Errorf("mongo_verification_repo_list_verified_decode_failed: %w", err)
	}

	records := make([]*Record, 0, len(documents))
	for _, document := range documents {
		records = append(records, document.toRecord())
	}

	return records, nil
}

// Ping reports whether the primary is reachable.
func (repository *MongoRepository) Ping(context context.Context) error {
	return repository.database.Client().Ping(context, readpref.Primary())
}

// # Document Mapping

// Verified records keep expiresAt, so the TTL index evicts them as well
// 24 hours after issue. Reconciliation only needs the recent ones.
type recordDocument struct {
	ID           string     `bson:"_id"`
	Email        string     `bson:"email"`
	Token        string     `bson:"verificationToken"`
	Code         string     `bson:"verificationCode"`
	UserID       string     `bson:"userId"`
	UserType     string     `bson:"userType"`
	IsVerified   bool       `bson:"isVerified"`
	VerifiedAt   *time.Time `bson:"verifiedAt,omitempty"`
	Attempts     int        `bson:"attempts"`
	ResendCount  int        `bson:"resendCount"`
	LastResendAt *time.Time `bson:"lastResendAt,omitempty"`
	CreatedAt    time.Time  `bson:"createdAt"`
	ExpiresAt    time.Time  `bson:"expiresAt"`
}

func newRecordDocument(record *Record) *recordDocument {
	return &recordDocument{
		ID:           record.ID,
		Email:        record.Email,
		Token:        record.Token,
		Code:         record.Code,
		UserID:       record.UserID,
		UserType:     string(record.UserType),
		IsVerified:   record.IsVerified,
		VerifiedAt:   record.VerifiedAt,
		Attempts:     record.Attempts,
		ResendCount:  record.ResendCount,
		LastResendAt: record.LastResendAt,
		CreatedAt:    record.CreatedAt,
		ExpiresAt:    record.ExpiresAt,
	}
}

func (document *recordDocument) toRecord() *Record {
	return &Record{
		ID:           document.ID,
		Email:        document.Email,
		Token:        document.Token,
		Code:         document.Code,
		UserID:       document.UserID,
		UserType:     sec.UserRole(document.UserType),
		IsVerified:   document.IsVerified,
		VerifiedAt:   document.VerifiedAt,
		Attempts:     document.Attempts,
		ResendCount:  document.ResendCount,
		LastResendAt: document.LastResendAt,
		CreatedAt:    document.CreatedAt,
		ExpiresAt:    document.ExpiresAt,
	}
}
