// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/facultyeval/internal/platform/sec"
)

/*
TestPasswordHash round-trips a password through bcrypt.
*/
func TestPasswordHash(t *testing.T) {
	hash, err := sec.HashPassword("correct horse")
	require.NoError(t, err)

	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, sec.CheckPasswordHash("correct horse", hash))
	assert.False(t, sec.CheckPasswordHash("wrong horse", hash))
}

/*
TestGenerateSecureToken checks length and uniqueness of opaque tokens.
*/
func TestGenerateSecureToken(t *testing.T) {
	first, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)
	second, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)

	assert.Len(t, first, 64)
	assert.NotEqual(t, first, second)
}

/*
TestGenerateCode checks that codes are uppercase and avoid ambiguous characters.
*/
func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := sec.GenerateCode(6)
		require.NoError(t, err)

		assert.Len(t, code, 6)
		assert.Equal(t, strings.ToUpper(code), code)
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "1")
		assert.NotContains(t, code, "I")
	}
}

/*
TestUserRole verifies role membership helpers.
*/
func TestUserRole(t *testing.T) {
	assert.True(t, sec.RoleFaculty.Valid())
	assert.False(t, sec.UserRole("moderator").Valid())
	assert.True(t, sec.RoleAdmin.In(sec.RoleFaculty, sec.RoleAdmin))
	assert.False(t, sec.RoleStudent.In(sec.RoleAdmin))
}

/*
TestTokenService signs and verifies an access token.
*/
func TestTokenService(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	service := sec.NewTokenServiceFromKeys(privateKey, &privateKey.PublicKey, "facultyeval.test")

	token, err := service.GenerateAccessToken("user-1", "asha@university.edu", "student", time.Minute)
	require.NoError(t, err)

	claims, err := service.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "asha@university.edu", claims.Email)
	assert.Equal(t, "student", claims.Role)

	// A token signed by a different key is rejected.
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other := sec.NewTokenServiceFromKeys(otherKey, &otherKey.PublicKey, "facultyeval.test")
	foreign, err := other.GenerateAccessToken("user-2", "x@university.edu", "admin", time.Minute)
	require.NoError(t, err)

	_, err = service.VerifyToken(foreign)
	assert.Error(t, err)
}
