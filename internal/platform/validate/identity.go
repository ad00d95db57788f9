// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// # Check Results

// Strength labels a password. It is informational only and never rejects.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// Result is the outcome of a single identity check.
type Result struct {
	IsValid    bool     `json:"is_valid"`
	Errors     []string `json:"errors,omitempty"`
	Normalized string   `json:"normalized,omitempty"`
	Strength   Strength `json:"strength,omitempty"`
}

func newResult(normalized string, errs []string) Result {
	return Result{
		IsValid:    len(errs) == 0,
		Errors:     errs,
		Normalized: normalized,
	}
}

// # Limits

const (
	PasswordMinLength = 6
	PasswordMaxLength = 128

	NameMinLength = 2
	NameMaxLength = 100

	PhoneMinDigits = 8
	PhoneMaxDigits = 15

	AdmissionNoMinLength = 8
	AdmissionNoMaxLength = 15

	RollNoMinLength = 6
	RollNoMaxLength = 25
)

var (
	emailShape      = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	nameCharset     = regexp.MustCompile(`^[\p{L} \-'.]+$`)
	admissionFormat = regexp.MustCompile(`^[A-Z0-9]+$`)
	digitsOnly      = regexp.MustCompile(`^[0-9]+$`)
	nonDigit        = regexp.MustCompile(`[^0-9]`)
)

// # Email

/*
CheckEmail normalizes and validates an email address.

Description: The address is trimmed and lowercased, must be RFC-shaped, must
belong to one of allowedDomains (exact match or a subdomain of an allowed
parent), and must not look machine-generated. An empty allow-list accepts
any domain.

Parameters:
  - raw: string
  - allowedDomains: []string (lowercase domains, e.g. "university.edu")

Returns:
  - Result: Normalized holds the lowercase address
*/
func CheckEmail(raw string, allowedDomains []string) Result {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return newResult(email, []string{"Email is required"})
	}

	if !emailShape.MatchString(email) {
		return newResult(email, []string{"Must be a valid email address"})
	}

	var errs []string
	at := strings.LastIndex(email, "@")
	local, domain := email[:at], email[at+1:]

	if !domainAllowed(domain, allowedDomains) {
		errs = append(errs, "Email domain is not allowed")
	}

	if maxDigitRun(email) >= 10 {
		errs = append(errs, "Email contains too many consecutive digits")
	}
	if maxRun(email) >= 5 {
		errs = append(errs, "Email contains too many repeated characters")
	}
	if n := utf8.RuneCountInString(local); n <= 2 {
		errs = append(errs, "Email username is too short")
	}
	if strings.Count(local, "+") > 1 {
		errs = append(errs, "Email contains multiple '+' characters")
	}
	if strings.Contains(email, "..") {
		errs = append(errs, "Email contains consecutive dots")
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		errs = append(errs, "Email cannot start or end with a dot")
	}

	return newResult(email, errs)
}

func domainAllowed(domain string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if domain == candidate || strings.HasSuffix(domain, "."+candidate) {
			return true
		}
	}
	return false
}

// # Password

// CheckPassword enforces the length bounds and rejects a single repeated
// character. Character-class diversity only feeds [Result.Strength].
//
// Normalized is left empty so that a password never ends up in a log line.
func CheckPassword(raw string) Result {
	length := utf8.RuneCountInString(raw)

	var errs []string
	switch {
	case length < PasswordMinLength:
		errs = append(errs, fmt.Sprintf("Password must be at least %d characters", PasswordMinLength))
	case length > PasswordMaxLength:
		errs = append(errs, fmt.Sprintf("Password must be at most %d characters", PasswordMaxLength))
	case maxRun(raw) == length:
		errs = append(errs, "Password cannot be a single repeated character")
	}

	result := newResult("", errs)
	result.Strength = passwordStrength(raw, length)
	return result
}

func passwordStrength(password string, length int) Strength {
	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	score := 0
	for _, present := range []bool{hasLower, hasUpper, hasDigit, hasSpecial} {
		if present {
			score++
		}
	}
	if length >= 12 {
		score++
	}

	switch {
	case score >= 4:
		return StrengthStrong
	case score == 3:
		return StrengthMedium
	default:
		return StrengthWeak
	}
}

// # Name

// CheckName validates a person's display name. The value is NFC-normalized
// and internal whitespace is collapsed before any rule runs.
func CheckName(raw string) Result {
	name := strings.Join(strings.Fields(norm.NFC.String(raw)), " ")
	length := utf8.RuneCountInString(name)

	var errs []string
	switch {
	case length == 0:
		errs = append(errs, "Name is required")
	case length < NameMinLength:
		errs = append(errs, fmt.Sprintf("Name must be at least %d characters", NameMinLength))
	case length > NameMaxLength:
		errs = append(errs, fmt.Sprintf("Name must be at most %d characters", NameMaxLength))
	}

	if length > 0 {
		if !nameCharset.MatchString(name) {
			errs = append(errs, "Name can only contain letters, spaces, hyphens, apostrophes and periods")
		}
		if maxRun(strings.ToLower(name)) >= 4 {
			errs = append(errs, "Name contains too many repeated characters")
		}
	}

	return newResult(name, errs)
}

// # Phone

// CheckPhone validates an optional phone number. An absent phone is valid;
// otherwise every non-digit is stripped and the digits are checked.
func CheckPhone(raw string) Result {
	if strings.TrimSpace(raw) == "" {
		return newResult("", nil)
	}

	digits := nonDigit.ReplaceAllString(raw, "")

	var errs []string
	if len(digits) < PhoneMinDigits || len(digits) > PhoneMaxDigits {
		errs = append(errs, fmt.Sprintf("Phone must contain %d to %d digits", PhoneMinDigits, PhoneMaxDigits))
	}
	if maxRun(digits) >= 9 {
		errs = append(errs, "Phone contains too many repeated digits")
	}

	return newResult(digits, errs)
}

// # Academic Identifiers

// CheckAdmissionNumber trims and uppercases the value, then requires
// 8–15 characters of A–Z and 0–9.
func CheckAdmissionNumber(raw string) Result {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return newResult(value, []string{"Admission number is required"})
	}

	var errs []string
	if len(value) < AdmissionNoMinLength || len(value) > AdmissionNoMaxLength {
		errs = append(errs, fmt.Sprintf("Admission number must be %d to %d characters", AdmissionNoMinLength, AdmissionNoMaxLength))
	}
	if !admissionFormat.MatchString(value) {
		errs = append(errs, "Admission number can only contain letters and digits")
	}

	return newResult(value, errs)
}

// CheckUniversityRollNo trims the value and requires 6–25 digits.
func CheckUniversityRollNo(raw string) Result {
	value := strings.TrimSpace(raw)
	if value == "" {
		return newResult(value, []string{"University roll number is required"})
	}

	var errs []string
	if !digitsOnly.MatchString(value) {
		errs = append(errs, "University roll number must be numeric")
	}
	if len(value) < RollNoMinLength || len(value) > RollNoMaxLength {
		errs = append(errs, fmt.Sprintf("University roll number must be %d to %d digits", RollNoMinLength, RollNoMaxLength))
	}

	return newResult(value, errs)
}

// # Run Helpers

// maxRun returns the length of the longest run of identical consecutive runes.
func maxRun(s string) int {
	longest, current := 0, 0
	var previous rune = -1
	for _, r := range s {
		if r == previous {
			current++
		} else {
			current = 1
			previous = r
		}
		if current > longest {
			longest = current
		}
	}
	return longest
}

// maxDigitRun returns the length of the longest run of consecutive digits.
func maxDigitRun(s string) int {
	longest, current := 0, 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			current++
			if current > longest {
				longest = current
			}
			continue
		}
		current = 0
	}
	return longest
}
