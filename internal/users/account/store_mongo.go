// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
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

// MongoRepository implements [Repository] on one collection holding every role.
type MongoRepository struct {
	database   *mongo.Database
	collection *mongo.Collection
}

/*
NewMongoRepository binds the accounts collection and ensures its indexes.

Description: Email is unique across roles. Student identifiers use partial
unique indexes so legacy accounts without them never collide.

Parameters:
  - context: context.Context
  - database: *mongo.Database

Returns:
  - *MongoRepository
  - error: Index creation failures
*/
func NewMongoRepository(context context.Context, database *mongo.Database) (*MongoRepository, error) {
	collection := database.Collection(constants.CollectionAccounts)

	present := bson.M{"$type": "string"}
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_1"),
		},
		{
			Keys: bson.D{{Key: "admissionNo", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("admissionNo_1").
				SetPartialFilterExpression(bson.M{"admissionNo": present}),
		},
		{
			Keys: bson.D{{Key: "universityRollNo", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("universityRollNo_1").
				SetPartialFilterExpression(bson.M{"universityRollNo": present}),
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}, {Key: "approvalStatus", Value: 1}, {Key: "createdAt", Value: 1}},
		},
	}

	if _, err := collection.Indexes().CreateMany(context, indexes); err != nil {
		return nil, fmt.Errorf("mongo_account_repo_create_indexes_failed: %w", err)
	}

	return &MongoRepository{database: database, collection: collection}, nil
}

// Create inserts a new account document.
func (repository *MongoRepository) Create(context context.Context, account Account) error {
	document, err := newAccountDocument(account)
	if err != nil {
		return err
	}

	if _, err := repository.collection.InsertOne(context, document); err != nil {
		if _, unique := dberr.UniqueViolation(err); unique {
			return dberr.Wrap(err, "Account", conflictFields)
		}
		return fmt.Errorf("mongo_account_repo_create_failed: %w", err)
	}

	return nil
}

// FindByID retrieves an account by its ID.
func (repository *MongoRepository) FindByID(context context.Context, id string) (Account, error) {
	return repository.findOne(context, "find_by_id", bson.M{"_id": id})
}

// FindByEmail retrieves an account by its normalized email.
func (repository *MongoRepository) FindByEmail(context context.Context, email string) (Account, error) {
	return repository.findOne(context, "find_by_email", bson.M{"email": email})
}

func (repository *MongoRepository) findOne(context context.Context, action string, filter bson.M) (Account, error) {
	var document accountDocument
	if err := repository.collection.FindOne(context, filter).Decode(&document); err != nil {
		if dberr.IsNotFound(err) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("mongo_account_repo_%s_failed: %w", action, err)
	}
	return document.toAccount()
}

// Exists reports whether an identifier is already registered.
func (repository *MongoRepository) Exists(context context.Context, field UniqueField, value string) (bool, error) {
	keys := map[UniqueField]string{
		UniqueEmail:            "email",
		UniqueAdmissionNo:      "admissionNo",
		UniqueUniversityRollNo: "universityRollNo",
	}

	key, ok := keys[field]
	if !ok {
		return false, fmt.Errorf("mongo_account_repo_exists_unknown_field: %s", field)
	}

	count, err := repository.collection.CountDocuments(context, bson.M{key: value}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo_account_repo_exists_failed: %w", err)
	}

	return count > 0, nil
}

// SetVerificationToken stores the pending verification token.
func (repository *MongoRepository) SetVerificationToken(context context.Context, id, token string, expires time.Time) error {
	update := bson.M{"$set": bson.M{
		"emailVerificationToken":   token,
		"emailVerificationExpires": expires,
		"updatedAt":                time.Now().UTC(),
	}}

	if _, err := repository.collection.UpdateOne(context, bson.M{"_id": id, "isEmailVerified": false}, update); err != nil {
		return fmt.Errorf("mongo_account_repo_set_verification_token_failed: %w", err)
	}

	return nil
}

// MarkEmailVerified flips the verified flag if it is still false.
func (repository *MongoRepository) MarkEmailVerified(context context.Context, id string, now time.Time) (bool, error) {
	update := bson.M{
		"$set":   bson.M{"isEmailVerified": true, "updatedAt": now},
		"$unset": bson.M{"emailVerificationToken": "", "emailVerificationExpires": ""},
	}

	result, err := repository.collection.UpdateOne(context, bson.M{"_id": id, "isEmailVerified": false}, update)
	if err != nil {
		return false, fmt.Errorf("mongo_account_repo_mark_email_verified_failed: %w", err)
	}

	if result.ModifiedCount == 1 {
		return true, nil
	}

	count, err := repository.collection.CountDocuments(context, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo_account_repo_mark_email_verified_failed: %w", err)
	}

	if count == 0 {
		return false, apperr.NotFound("Account")
	}

	return false, nil
}

/*
IncrementLoginAttempts records a failed password with one pipeline update.

Description: Expressions inside the single $set stage all read the input
document, mirroring [Identity.RegisterFailedAttempt].

Parameters:
  - context: context.Context
  - id: string
  - now: time.Time

Returns:
  - Lockout: Counter and lock after the update
  - error: apperr.NotFound or database errors
*/
func (repository *MongoRepository) IncrementLoginAttempts(context context.Context, id string, now time.Time) (Lockout, error) {
	hasLock := bson.M{"$eq": bson.A{bson.M{"$type": "$lockUntil"}, "date"}}
	expired := bson.M{"$and": bson.A{hasLock, bson.M{"$lte": bson.A{"$lockUntil", now}}}}
	next := bson.M{"$add": bson.A{"$loginAttempts", 1}}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "loginAttempts", Value: bson.M{"$cond": bson.A{expired, 1, next}}},
			{Key: "lockUntil", Value: bson.M{"$switch": bson.M{
				"branches": bson.A{
					bson.M{"case": expired, "then": nil},
					bson.M{
						"case": bson.M{"$and": bson.A{
							bson.M{"$gte": bson.A{next, MaxLoginAttempts}},
							bson.M{"$not": bson.A{hasLock}},
						}},
						"then": now.Add(LockDuration),
					},
				},
				"default": "$lockUntil",
			}}},
			{Key: "updatedAt", Value: now},
		}}},
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"loginAttempts": 1, "lockUntil": 1})

	var result struct {
		LoginAttempts int        `bson:"loginAttempts"`
		LockUntil     *time.Time `bson:"lockUntil"`
	}

	if err := repository.collection.FindOneAndUpdate(context, bson.M{"_id": id}, pipeline, opts).Decode(&result); err != nil {
		if dberr.IsNotFound(err) {
			return Lockout{}, apperr.NotFound("Account")
		}
		return Lockout{}, fmt.Errorf("mongo_account_repo_increment_login_attempts_failed: %w", err)
	}

	return Lockout{Attempts: result.LoginAttempts, LockUntil: result.LockUntil}, nil
}

// ResetLoginAttempts clears lockout state after a successful login.
func (repository *MongoRepository) ResetLoginAttempts(context context.Context, id string, now time.Time) error {
	update := bson.M{
		"$set":   bson.M{"loginAttempts": 0, "lastLogin": now, "updatedAt": now},
		"$unset": bson.M{"lockUntil": ""},
	}

	if _, err := repository.collection.UpdateOne(context, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("mongo_account_repo_reset_login_attempts_failed: %w", err)
	}

	return nil
}

// UpdateApproval writes the review fields if the status is still expected.
func (repository *MongoRepository) UpdateApproval(context context.Context, faculty *Faculty, expected ApprovalStatus) error {
	set := bson.M{"approvalStatus": string(faculty.ApprovalStatus), "updatedAt": faculty.UpdatedAt}
	unset := bson.M{}

	optional := map[string]any{
		"approvedBy":      faculty.ApprovedBy,
		"approvedAt":      faculty.ApprovedAt,
		"rejectedAt":      faculty.RejectedAt,
		"rejectionReason": faculty.RejectionReason,
	}
	for key, value := range optional {
		if isNil(value) {
			unset[key] = ""
		} else {
			set[key] = value
		}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	filter := bson.M{"_id": faculty.ID, "role": string(sec.RoleFaculty), "approvalStatus": string(expected)}
	result, err := repository.collection.UpdateOne(context, filter, update)
	if err != nil {
		return fmt.Errorf("mongo_account_repo_update_approval_failed: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrApprovalChanged
	}

	return nil
}

// ListFaculty returns one page of the faculty queue, oldest signup first.
func (repository *MongoRepository) ListFaculty(context context.Context, filter FacultyFilter) ([]*Faculty, int, error) {
	query := bson.M{"role": string(sec.RoleFaculty)}
	if len(filter.Statuses) > 0 {
		statuses := bson.A{}
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		query["approvalStatus"] = bson.M{"$in": statuses}
	}

	total, err := repository.collection.CountDocuments(context, query)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo_account_repo_count_faculty_failed: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(filter.Page.Offset())).
		SetLimit(int64(filter.Page.Limit))

	cursor, err := repository.collection.Find(context, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo_account_repo_list_faculty_failed: %w", err)
	}

	var documents []accountDocument
	if err := cursor.All(context, &documents); err != nil {
		return nil, 0, fmt.Errorf("mongo_account_repo_list_faculty_decode_failed: %w", err)
	}

	faculty := make([]*Faculty, 0, len(documents))
	for _, document := range documents {
		account, err := document.toAccount()
		if err != nil {
			return nil, 0, err
		}
		if member, ok := account.(*Faculty); ok {
			faculty = append(faculty, member)
		}
	}

	return faculty, int(total), nil
}

// UpdateEnrollment writes a student's academic record and legacy flags.
func (repository *MongoRepository) UpdateEnrollment(context context.Context, student *Student) error {
	record := student.Record()
	set := bson.M{
		"isLegacyAccount":        student.IsLegacy(),
		"needsProfileCompletion": student.NeedsProfileCompletion(),
		"profileCompleteness":    student.ProfileCompleteness,
		"updatedAt":              student.UpdatedAt,
	}
	unset := bson.M{}

	identifiers := map[string]string{
		"admissionNo":      record.AdmissionNo,
		"universityRollNo": record.UniversityRollNo,
		"semester":         string(record.Semester),
		"section":          string(record.Section),
	}
	for key, value := range identifiers {
		if value == "" {
			unset[key] = ""
		} else {
			set[key] = value
		}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result, err := repository.collection.UpdateOne(context, bson.M{"_id": student.ID, "role": string(sec.RoleStudent)}, update)
	if err != nil {
		if _, unique := dberr.UniqueViolation(err); unique {
			return dberr.Wrap(err, "Account", conflictFields)
		}
		return fmt.Errorf("mongo_account_repo_update_enrollment_failed: %w", err)
	}

	if result.MatchedCount == 0 {
		return apperr.NotFound("Student")
	}

	return nil
}

/*
NormalizeIdentifiers rewrites malformed emails and admission numbers.

Description: Each pass is one UpdateMany with a pipeline, so a document is
never read into Go and written back. The two passes are not transactional;
rerunning is safe because already normalized documents do not match.

Parameters:
  - context: context.Context

Returns:
  - NormalizeReport: Documents changed
  - error: apperr.Conflict if a normalized value collides, or database errors
*/
func (repository *MongoRepository) NormalizeIdentifiers(context context.Context) (NormalizeReport, error) {
	normalized := func(field, caseOperator string) bson.M {
		return bson.M{caseOperator: bson.M{"$trim": bson.M{"input": "$" + field}}}
	}

	passes := []struct {
		field    string
		operator string
		count    *int64
	}{
		{field: "email", operator: "$toLower"},
		{field: "admissionNo", operator: "$toUpper"},
	}

	var report NormalizeReport
	passes[0].count = &report.Emails
	passes[1].count = &report.AdmissionNos

	for _, pass := range passes {
		target := normalized(pass.field, pass.operator)
		filter := bson.M{
			pass.field: bson.M{"$type": "string"},
			"$expr":    bson.M{"$ne": bson.A{"$" + pass.field, target}},
		}
		pipeline := mongo.Pipeline{
			{{Key: "$set", Value: bson.D{
				{Key: pass.field, Value: target},
				{Key: "updatedAt", Value: "$$NOW"},
			}}},
		}

		result, err := repository.collection.UpdateMany(context, filter, pipeline)
		if err != nil {
			if _, unique := dberr.UniqueViolation(err); unique {
				return NormalizeReport{}, dberr.Wrap(err, "Account", conflictFields)
			}
			return NormalizeReport{}, fmt.Errorf("mongo_account_repo_normalize_identifiers_failed: %w", err)
		}
		*pass.count = result.ModifiedCount
	}

	return report, nil
}

// Ping reports whether the primary is reachable.
func (repository *MongoRepository) Ping(context context.Context) error {
	return repository.database.Client().Ping(context, readpref.Primary())
}

// # Document Mapping

type accountDocument struct {
	ID           string `bson:"_id"`
	Role         string `bson:"role"`
	Email        string `bson:"email"`
	Name         string `bson:"name"`
	PasswordHash string `bson:"passwordHash"`

	IsEmailVerified          bool       `bson:"isEmailVerified"`
	EmailVerificationToken   *string    `bson:"emailVerificationToken,omitempty"`
	EmailVerificationExpires *time.Time `bson:"emailVerificationExpires,omitempty"`

	LoginAttempts int        `bson:"loginAttempts"`
	LockUntil     *time.Time `bson:"lockUntil,omitempty"`
	LastLogin     *time.Time `bson:"lastLogin,omitempty"`

	IsActive               bool    `bson:"isActive"`
	Phone                  string  `bson:"phone,omitempty"`
	AdmissionNo            string  `bson:"admissionNo,omitempty"`
	UniversityRollNo       string  `bson:"universityRollNo,omitempty"`
	Semester               string  `bson:"semester,omitempty"`
	Section                string  `bson:"section,omitempty"`
	IsLegacyAccount        bool    `bson:"isLegacyAccount"`
	NeedsProfileCompletion bool    `bson:"needsProfileCompletion"`
	Profile                Profile `bson:"profile"`
	ProfileCompleteness    int     `bson:"profileCompleteness"`

	Department      string     `bson:"department,omitempty"`
	Subject         string     `bson:"subject,omitempty"`
	ApprovalStatus  string     `bson:"approvalStatus,omitempty"`
	ApprovedBy      *string    `bson:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `bson:"approvedAt,omitempty"`
	RejectedAt      *time.Time `bson:"rejectedAt,omitempty"`
	RejectionReason *string    `bson:"rejectionReason,omitempty"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func newAccountDocument(account Account) (*accountDocument, error) {
	base := account.Base()
	document := &accountDocument{
		ID:                       base.ID,
		Role:                     string(base.Role),
		Email:                    base.Email,
		Name:                     base.Name,
		PasswordHash:             base.PasswordHash,
		IsEmailVerified:          base.IsEmailVerified,
		EmailVerificationToken:   base.EmailVerificationToken,
		EmailVerificationExpires: base.EmailVerificationExpires,
		LoginAttempts:            base.LoginAttempts,
		LockUntil:                base.LockUntil,
		LastLogin:                base.LastLogin,
		IsActive:                 true,
		CreatedAt:                base.CreatedAt,
		UpdatedAt:                base.UpdatedAt,
	}

	switch variant := account.(type) {
	case *Student:
		record := variant.Record()
		document.IsActive = variant.IsActive
		document.Phone = variant.Phone
		document.AdmissionNo = record.AdmissionNo
		document.UniversityRollNo = record.UniversityRollNo
		document.Semester = string(record.Semester)
		document.Section = string(record.Section)
		document.IsLegacyAccount = variant.IsLegacy()
		document.NeedsProfileCompletion = variant.NeedsProfileCompletion()
		document.Profile = variant.Profile
		document.ProfileCompleteness = variant.ProfileCompleteness
	case *Faculty:
		document.Phone = variant.Phone
		document.Department = variant.Department
		document.Subject = variant.Subject
		document.ApprovalStatus = string(variant.ApprovalStatus)
		document.ApprovedBy = variant.ApprovedBy
		document.ApprovedAt = variant.ApprovedAt
		document.RejectedAt = variant.RejectedAt
		document.RejectionReason = variant.RejectionReason
	case *Admin:
	default:
		return nil, fmt.Errorf("mongo_account_repo_unknown_variant: %T", account)
	}

	return document, nil
}

func (document *accountDocument) toAccount() (Account, error) {
	identity := Identity{
		ID:                       document.ID,
		Role:                     sec.UserRole(document.Role),
		Email:                    document.Email,
		Name:                     document.Name,
		PasswordHash:             document.PasswordHash,
		IsEmailVerified:          document.IsEmailVerified,
		EmailVerificationToken:   document.EmailVerificationToken,
		EmailVerificationExpires: document.EmailVerificationExpires,
		LoginAttempts:            document.LoginAttempts,
		LockUntil:                document.LockUntil,
		LastLogin:                document.LastLogin,
		CreatedAt:                document.CreatedAt,
		UpdatedAt:                document.UpdatedAt,
	}

	switch identity.Role {
	case sec.RoleStudent:
		record := AcademicRecord{
			AdmissionNo:      document.AdmissionNo,
			UniversityRollNo: document.UniversityRollNo,
			Semester:         Semester(document.Semester),
			Section:          Section(document.Section),
		}

		var enrollment Enrollment = StandardEnrollment{AcademicRecord: record}
		if document.IsLegacyAccount {
			enrollment = LegacyEnrollment{AcademicRecord: record, NeedsProfileCompletion: document.NeedsProfileCompletion}
		}

		return &Student{
			Identity:            identity,
			IsActive:            document.IsActive,
			Phone:               document.Phone,
			Enrollment:          enrollment,
			Profile:             document.Profile,
			ProfileCompleteness: document.ProfileCompleteness,
		}, nil

	case sec.RoleFaculty:
		return &Faculty{
			Identity:        identity,
			Department:      document.Department,
			Subject:         document.Subject,
			Phone:           document.Phone,
			ApprovalStatus:  ApprovalStatus(document.ApprovalStatus),
			ApprovedBy:      document.ApprovedBy,
			ApprovedAt:      document.ApprovedAt,
			RejectedAt:      document.RejectedAt,
			RejectionReason: document.RejectionReason,
		}, nil

	case sec.RoleAdmin:
		return &Admin{Identity: identity}, nil

	default:
		return nil, fmt.Errorf("mongo_account_repo_unknown_role: %q", document.Role)
	}
}

// isNil reports whether a typed pointer stored in an interface is nil.
func isNil(value any) bool {
	switch typed := value.(type) {
	case *string:
		return typed == nil
	case *time.Time:
		return typed == nil
	default:
		return value == nil
	}
}
