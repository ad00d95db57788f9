// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/facultyeval/internal/platform/validate"
)

var allowedDomains = []string{"university.edu", "gmail.com"}

/*
TestCheckEmail covers normalization, the domain allow-list and the suspicious-address heuristics.
*/
func TestCheckEmail(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		isValid    bool
		normalized string
	}{
		{"valid_exact_domain", "asha.rao@university.edu", true, "asha.rao@university.edu"},
		{"normalizes_case_and_space", "  Asha.Rao@University.EDU ", true, "asha.rao@university.edu"},
		{"valid_subdomain", "prof.k@cs.university.edu", true, "prof.k@cs.university.edu"},
		{"single_plus_allowed", "asha+eval@gmail.com", true, "asha+eval@gmail.com"},
		{"empty", "", false, ""},
		{"not_rfc_shaped", "asha.university.edu", false, "asha.university.edu"},
		{"domain_not_allowed", "asha@yahoo.com", false, "asha@yahoo.com"},
		{"suffix_without_dot_rejected", "asha@fakeuniversity.edu", false, "asha@fakeuniversity.edu"},
		{"ten_consecutive_digits", "user1234567890@gmail.com", false, "user1234567890@gmail.com"},
		{"five_repeated_chars", "aaaaab@gmail.com", false, "aaaaab@gmail.com"},
		{"two_char_local_part", "ab@gmail.com", false, "ab@gmail.com"},
		{"multiple_plus", "asha+a+b@gmail.com", false, "asha+a+b@gmail.com"},
		{"consecutive_dots", "asha..rao@gmail.com", false, "asha..rao@gmail.com"},
		{"leading_dot", ".asha@gmail.com", false, ".asha@gmail.com"},
		{"trailing_dot", "asha.@gmail.com", false, "asha.@gmail.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validate.CheckEmail(tt.raw, allowedDomains)

			assert.Equal(t, tt.isValid, result.IsValid, "errors: %v", result.Errors)
			assert.Equal(t, tt.normalized, result.Normalized)
			if !tt.isValid {
				assert.NotEmpty(t, result.Errors)
			}
		})
	}
}

/*
TestCheckEmail_EmptyAllowList accepts every well-formed domain.
*/
func TestCheckEmail_EmptyAllowList(t *testing.T) {
	result := validate.CheckEmail("someone@anywhere.org", nil)
	assert.True(t, result.IsValid)
}

/*
TestCheckPassword covers length bounds, the repeated-character rule and strength labels.
*/
func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		isValid  bool
		strength validate.Strength
	}{
		{"too_short", "abc12", false, validate.StrengthWeak},
		{"too_long", strings.Repeat("ab", 65), false, validate.StrengthWeak},
		{"single_repeated_char", "zzzzzzzz", false, validate.StrengthWeak},
		{"lowercase_only_is_weak_but_valid", "simplepass", true, validate.StrengthWeak},
		{"three_classes_is_medium", "Simple123", true, validate.StrengthMedium},
		{"four_classes_is_strong", "Simple123!", true, validate.StrengthStrong},
		{"long_three_classes_is_strong", "Simplepassword123", true, validate.StrengthStrong},
		{"exactly_min_length", "abcdef", true, validate.StrengthWeak},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validate.CheckPassword(tt.raw)

			assert.Equal(t, tt.isValid, result.IsValid, "errors: %v", result.Errors)
			assert.Equal(t, tt.strength, result.Strength)
			assert.Empty(t, result.Normalized)
		})
	}
}

/*
TestCheckName covers charset, length and repeated characters.
*/
func TestCheckName(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		isValid    bool
		normalized string
	}{
		{"simple", "Asha Rao", true, "Asha Rao"},
		{"collapses_spaces", "  Asha   Rao ", true, "Asha Rao"},
		{"punctuation", "Dr. Mary-Jane O'Neil", true, "Dr. Mary-Jane O'Neil"},
		{"unicode_letters", "José Núñez", true, "José Núñez"},
		{"too_short", "A", false, "A"},
		{"digits_rejected", "Asha 2", false, "Asha 2"},
		{"four_repeated", "Aaaa Rao", false, "Aaaa Rao"},
		{"empty", "   ", false, ""},
		{"too_long", strings.Repeat("Ab ", 40), false, strings.TrimSpace(strings.Repeat("Ab ", 40))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validate.CheckName(tt.raw)

			assert.Equal(t, tt.isValid, result.IsValid, "errors: %v", result.Errors)
			assert.Equal(t, tt.normalized, result.Normalized)
		})
	}
}

/*
TestCheckPhone covers the optional field and digit rules.
*/
func TestCheckPhone(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		isValid    bool
		normalized string
	}{
		{"absent", "", true, ""},
		{"formatted", "+91 (98765) 43210", true, "919876543210"},
		{"too_few_digits", "12-34-56", false, "123456"},
		{"too_many_digits", "1234567890123456", false, "1234567890123456"},
		{"nine_repeated_digits", "9999999991", false, "9999999991"},
		{"eight_repeated_allowed", "99999999123", true, "99999999123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validate.CheckPhone(tt.raw)

			assert.Equal(t, tt.isValid, result.IsValid, "errors: %v", result.Errors)
			assert.Equal(t, tt.normalized, result.Normalized)
		})
	}
}

/*
TestCheckAdmissionNumber covers normalization and format.
*/
func TestCheckAdmissionNumber(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		isValid    bool
		normalized string
	}{
		{"valid", "AB12345678", true, "AB12345678"},
		{"uppercases_and_trims", " ab12345678 ", true, "AB12345678"},
		{"too_short", "AB123", false, "AB123"},
		{"too_long", "AB1234567890123X", false, "AB1234567890123X"},
		{"symbols", "AB-1234567", false, "AB-1234567"},
		{"empty", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validate.CheckAdmissionNumber(tt.raw)

			assert.Equal(t, tt.isValid, result.IsValid, "errors: %v", result.Errors)
			assert.Equal(t, tt.normalized, result.Normalized)
		})
	}
}

/*
TestCheckUniversityRollNo covers digits-only and length rules.
*/
func TestCheckUniversityRollNo(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		isValid bool
	}{
		{"six_digits", "123456", true},
		{"twenty_five_digits", strings.Repeat("1234", 6) + "5", true},
		{"trimmed", " 123456 ", true},
		{"five_digits", "12345", false},
		{"twenty_six_digits", strings.Repeat("12", 13), false},
		{"letters", "12345A", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validate.CheckUniversityRollNo(tt.raw)
			assert.Equal(t, tt.isValid, result.IsValid, "errors: %v", result.Errors)
		})
	}
}
