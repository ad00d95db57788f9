// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"encoding/json"
	"math"
	"time"

	"github.com/taibuivan/facultyeval/internal/platform/sec"
	"github.com/taibuivan/facultyeval/internal/platform/validate"
)

// # Academic Enums

// Semester is the student's current semester, "1st" through "8th".
type Semester string

// Semesters lists every valid semester in order.
var Semesters = []Semester{"1st", "2nd", "3rd", "4th", "5th", "6th", "7th", "8th"}

// Valid reports whether s is a known semester.
func (s Semester) Valid() bool {
	for _, candidate := range Semesters {
		if s == candidate {
			return true
		}
	}
	return false
}

// Section is the student's class section.
type Section string

// Sections lists every valid section.
var Sections = []Section{"Section A", "Section B", "Section C", "Section D", "Section E", "Section F"}

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	for _, candidate := range Sections {
		if s == candidate {
			return true
		}
	}
	return false
}

// # Enrollment

// AcademicRecord is the student's academic identity. Each identifier is
// unique across all students.
type AcademicRecord struct {
	AdmissionNo      string   `json:"admission_no,omitempty"`
	UniversityRollNo string   `json:"university_roll_no,omitempty"`
	Semester         Semester `json:"semester,omitempty"`
	Section          Section  `json:"section,omitempty"`
}

// Complete reports whether all four fields are present and well formed.
func (record AcademicRecord) Complete() bool {
	return validate.CheckAdmissionNumber(record.AdmissionNo).IsValid &&
		validate.CheckUniversityRollNo(record.UniversityRollNo).IsValid &&
		record.Semester.Valid() &&
		record.Section.Valid()
}

// Enrollment is either [StandardEnrollment] or [LegacyEnrollment].
//
// Standard enrollments always carry a complete record. Legacy enrollments
// predate the academic fields and may have any of them missing until the
// student completes the profile.
type Enrollment interface {
	Record() AcademicRecord
	enrollment()
}

// StandardEnrollment is a complete academic record.
type StandardEnrollment struct {
	AcademicRecord
}

// Record returns the academic record.
func (enrollment StandardEnrollment) Record() AcademicRecord { return enrollment.AcademicRecord }

func (StandardEnrollment) enrollment() {}

// LegacyEnrollment is a possibly partial academic record of a pre-existing account.
type LegacyEnrollment struct {
	AcademicRecord
	NeedsProfileCompletion bool
}

// Record returns the academic record.
func (enrollment LegacyEnrollment) Record() AcademicRecord { return enrollment.AcademicRecord }

func (LegacyEnrollment) enrollment() {}

// # Student

// Profile holds the optional personal fields that feed profile completeness.
type Profile struct {
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty" bson:"dateOfBirth,omitempty"`
	Address       string     `json:"address,omitempty" bson:"address,omitempty"`
	GuardianName  string     `json:"guardian_name,omitempty" bson:"guardianName,omitempty"`
	GuardianPhone string     `json:"guardian_phone,omitempty" bson:"guardianPhone,omitempty"`
	Bio           string     `json:"bio,omitempty" bson:"bio,omitempty"`
}

// Student is an enrolled student account.
type Student struct {
	Identity

	IsActive   bool       `json:"is_active"`
	Phone      string     `json:"phone,omitempty"`
	Enrollment Enrollment `json:"-"`
	Profile    Profile    `json:"profile"`

	// ProfileCompleteness is a cached 0-100 score. It never gates anything.
	ProfileCompleteness int `json:"profile_completeness"`
}

// NewStudent creates an active, unverified student with a standard enrollment.
func NewStudent(id, email, name, passwordHash, phone string, record AcademicRecord, now time.Time) *Student {
	student := &Student{
		Identity: Identity{
			ID:           id,
			Role:         sec.RoleStudent,
			Email:        email,
			Name:         name,
			PasswordHash: passwordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		IsActive:   true,
		Phone:      phone,
		Enrollment: StandardEnrollment{AcademicRecord: record},
	}
	student.RefreshCompleteness()
	return student
}

// CanLogin reports whether the student is verified, unlocked and active.
func (student *Student) CanLogin(now time.Time) bool {
	return student.IsEmailVerified && !student.IsLocked(now) && student.IsActive
}

// Record returns the student's academic record, empty if no enrollment is set.
func (student *Student) Record() AcademicRecord {
	if student.Enrollment == nil {
		return AcademicRecord{}
	}
	return student.Enrollment.Record()
}

// IsLegacy reports whether the student has a legacy enrollment.
func (student *Student) IsLegacy() bool {
	_, legacy := student.Enrollment.(LegacyEnrollment)
	return legacy
}

// NeedsProfileCompletion reports whether a legacy student still owes academic fields.
func (student *Student) NeedsProfileCompletion() bool {
	legacy, ok := student.Enrollment.(LegacyEnrollment)
	return ok && legacy.NeedsProfileCompletion
}

// CompleteProfile supplies the academic fields. A complete record converts the
// enrollment to standard; a partial one keeps it legacy and still pending.
func (student *Student) CompleteProfile(record AcademicRecord, now time.Time) {
	if record.Complete() {
		student.Enrollment = StandardEnrollment{AcademicRecord: record}
	} else {
		student.Enrollment = LegacyEnrollment{AcademicRecord: record, NeedsProfileCompletion: true}
	}
	student.UpdatedAt = now
	student.RefreshCompleteness()
}

// MarshalJSON flattens the enrollment into the public profile.
func (student *Student) MarshalJSON() ([]byte, error) {
	type plain Student
	return json.Marshal(struct {
		*plain
		AcademicRecord
		IsLegacyAccount        bool `json:"is_legacy_account"`
		NeedsProfileCompletion bool `json:"needs_profile_completion"`
	}{
		plain:                  (*plain)(student),
		AcademicRecord:         student.Record(),
		IsLegacyAccount:        student.IsLegacy(),
		NeedsProfileCompletion: student.NeedsProfileCompletion(),
	})
}

// # Profile Completeness

const (
	requiredWeight = 70.0
	optionalWeight = 30.0
)

// RefreshCompleteness recomputes and caches the completeness score.
func (student *Student) RefreshCompleteness() int {
	student.ProfileCompleteness = student.CalculateProfileCompleteness()
	return student.ProfileCompleteness
}

// CalculateProfileCompleteness scores the profile: 70% spread evenly over
// the required fields, 30% over the optional profile fields.
func (student *Student) CalculateProfileCompleteness() int {
	record := student.Record()

	required := []bool{
		student.Name != "",
		student.Email != "",
		student.Phone != "",
		record.AdmissionNo != "",
		record.UniversityRollNo != "",
		record.Semester != "",
		record.Section != "",
	}
	optional := []bool{
		student.Profile.DateOfBirth != nil,
		student.Profile.Address != "",
		student.Profile.GuardianName != "",
		student.Profile.GuardianPhone != "",
		student.Profile.Bio != "",
	}

	score := requiredWeight*filledShare(required) + optionalWeight*filledShare(optional)
	return int(math.Round(score))
}

func filledShare(fields []bool) float64 {
	filled := 0
	for _, present := range fields {
		if present {
			filled++
		}
	}
	return float64(filled) / float64(len(fields))
}
