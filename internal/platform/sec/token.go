// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// codeAlphabet omits characters that are easy to confuse when typed by hand (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateSecureToken returns a hex-encoded string built from length random bytes.
//
// Hex is URL-safe, so the token can be embedded in a link without escaping.
func GenerateSecureToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}

// GenerateCode returns a short uppercase alphanumeric code of the given length.
func GenerateCode(length int) (string, error) {
	limit := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, length)
	for i := range code {
		index, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("sec: failed to generate code: %w", err)
		}
		code[i] = codeAlphabet[index.Int64()]
	}
	return string(code), nil
}
