// integrity.go: SHA-256 and HMAC helpers with constant-time verification.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	goerrors "github.com/agilira/go-errors"
)

// Hash returns the SHA-256 digest of data as 64 lowercase hex characters.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString is Hash for strings.
func HashString(data string) string {
	return Hash([]byte(data))
}

// VerifyHash recomputes the digest of data and compares it with expected in
// constant time. Malformed hex simply fails to verify.
func VerifyHash(data []byte, expected string) bool {
	want, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)
	return subtle.ConstantTimeCompare(sum[:], want) == 1
}

// VerifyHashString is VerifyHash for strings.
func VerifyHashString(data, expected string) bool {
	return VerifyHash([]byte(data), expected)
}

// GenerateHMAC returns HMAC-SHA256(key, data) as hex.
func GenerateHMAC(data, key []byte) (string, error) {
	if len(key) == 0 {
		return "", validationError(goerrors.New(ErrCodeInvalidKey, "HMAC key cannot be empty"))
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyHMAC recomputes the HMAC and compares it with expected in constant time.
func VerifyHMAC(data, key []byte, expected string) bool {
	if len(key) == 0 {
		return false
	}
	want, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hmac.Equal(mac.Sum(nil), want)
}
