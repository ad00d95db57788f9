// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/facultyeval/internal/users/account"
	"github.com/taibuivan/facultyeval/pkg/pointer"
)

var completeRecord = account.AcademicRecord{
	AdmissionNo:      "ADM2024001",
	UniversityRollNo: "2024123456",
	Semester:         "3rd",
	Section:          "Section B",
}

func newStudent() *account.Student {
	return account.NewStudent("id-1", "asha@university.edu", "Asha Rao", "hash", "9876543210", completeRecord, epoch)
}

/*
TestStudentCanLogin requires verification, no lock and an active account.
*/
func TestStudentCanLogin(t *testing.T) {
	student := newStudent()
	assert.False(t, student.CanLogin(epoch), "unverified")

	student.VerifyEmail()
	assert.True(t, student.CanLogin(epoch))

	student.IsActive = false
	assert.False(t, student.CanLogin(epoch), "inactive")
}

/*
TestCalculateProfileCompleteness weighs required fields at 70 and optional at 30.
*/
func TestCalculateProfileCompleteness(t *testing.T) {
	tests := []struct {
		name    string
		student func() *account.Student
		want    int
	}{
		{
			name:    "required_only",
			student: newStudent,
			want:    70,
		},
		{
			name: "everything",
			student: func() *account.Student {
				student := newStudent()
				student.Profile = account.Profile{
					DateOfBirth:   pointer.To(epoch.AddDate(-20, 0, 0)),
					Address:       "12 Campus Road",
					GuardianName:  "R. Rao",
					GuardianPhone: "9876500000",
					Bio:           "Likes compilers",
				}
				return student
			},
			want: 100,
		},
		{
			name: "legacy_without_record",
			student: func() *account.Student {
				return &account.Student{
					Identity:   account.Identity{Name: "Asha Rao", Email: "asha@university.edu"},
					Enrollment: account.LegacyEnrollment{NeedsProfileCompletion: true},
				}
			},
			want: 20,
		},
		{
			name: "legacy_with_phone_and_two_optional",
			student: func() *account.Student {
				return &account.Student{
					Identity:   account.Identity{Name: "Asha Rao", Email: "asha@university.edu"},
					Phone:      "9876543210",
					Enrollment: account.LegacyEnrollment{NeedsProfileCompletion: true},
					Profile:    account.Profile{Address: "12 Campus Road", Bio: "Hi"},
				}
			},
			want: 42,
		},
		{
			name: "no_enrollment",
			student: func() *account.Student {
				return &account.Student{}
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.student().CalculateProfileCompleteness())
		})
	}
}

/*
TestCompleteProfile converts a legacy enrollment once the record is complete.
*/
func TestCompleteProfile(t *testing.T) {
	legacy := func() *account.Student {
		return &account.Student{
			Identity:   account.Identity{Name: "Asha Rao", Email: "asha@university.edu"},
			IsActive:   true,
			Enrollment: account.LegacyEnrollment{NeedsProfileCompletion: true},
		}
	}

	t.Run("complete_record_becomes_standard", func(t *testing.T) {
		student := legacy()
		later := epoch.Add(48 * time.Hour)

		student.CompleteProfile(completeRecord, later)

		assert.False(t, student.IsLegacy())
		assert.False(t, student.NeedsProfileCompletion())
		assert.Equal(t, completeRecord, student.Record())
		assert.Equal(t, later, student.UpdatedAt)
		assert.Equal(t, 60, student.ProfileCompleteness)
	})

	t.Run("partial_record_stays_legacy", func(t *testing.T) {
		student := legacy()

		student.CompleteProfile(account.AcademicRecord{AdmissionNo: "ADM2024001"}, epoch)

		assert.True(t, student.IsLegacy())
		assert.True(t, student.NeedsProfileCompletion())
		assert.Equal(t, "ADM2024001", student.Record().AdmissionNo)
	})

	t.Run("malformed_identifier_stays_legacy", func(t *testing.T) {
		student := legacy()
		record := completeRecord
		record.UniversityRollNo = "12ab"

		student.CompleteProfile(record, epoch)

		assert.True(t, student.NeedsProfileCompletion())
	})
}

/*
TestAcademicEnums accepts only the listed semesters and sections.
*/
func TestAcademicEnums(t *testing.T) {
	assert.True(t, account.Semester("1st").Valid())
	assert.True(t, account.Semester("8th").Valid())
	assert.False(t, account.Semester("9th").Valid())
	assert.False(t, account.Semester("").Valid())

	assert.True(t, account.Section("Section A").Valid())
	assert.False(t, account.Section("Section G").Valid())
	assert.False(t, account.Section("section a").Valid())
}

/*
TestStudentMarshalJSON flattens the record and hides credentials.
*/
func TestStudentMarshalJSON(t *testing.T) {
	student := newStudent()
	student.EmailVerificationToken = pointer.To("secret-token")

	raw, err := json.Marshal(student)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))

	assert.Equal(t, "ADM2024001", body["admission_no"])
	assert.Equal(t, "3rd", body["semester"])
	assert.Equal(t, false, body["is_legacy_account"])
	assert.Equal(t, false, body["needs_profile_completion"])
	assert.Equal(t, "student", body["role"])
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), "secret-token")
}
