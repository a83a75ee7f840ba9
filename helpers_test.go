// helpers_test.go: Shared fixtures for package tests.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	crypto "github.com/agilira/phylax"
)

// testMasterKeyHex is a fixed 32-byte master key for tests only.
var testMasterKeyHex = strings.Repeat("0123456789abcdef", 4)

// fastKDF keeps scrypt cheap in tests.
var fastKDF = crypto.KDFParams{N: 1024, R: 8, P: 1}

func newTestService(t testing.TB, opts ...crypto.Option) *crypto.Service {
	t.Helper()
	km, err := crypto.NewKeyManagerFromHex(testMasterKeyHex, crypto.WithMasterKeyID("test-kek"))
	require.NoError(t, err)
	svc, err := crypto.NewService(km, append([]crypto.Option{crypto.WithKDFParams(fastKDF)}, opts...)...)
	require.NoError(t, err)
	return svc
}

func newTestDataKey(t testing.TB) *crypto.DataKey {
	t.Helper()
	dk, err := crypto.GenerateDataKey()
	require.NoError(t, err)
	t.Cleanup(dk.Zeroize)
	return dk
}

// cloneEnvelope deep-copies env so tampering tests do not share slices.
func cloneEnvelope(env *crypto.Envelope) *crypto.Envelope {
	return &crypto.Envelope{
		Ciphertext: append([]byte(nil), env.Ciphertext...),
		IV:         append([]byte(nil), env.IV...),
		AuthTag:    append([]byte(nil), env.AuthTag...),
		Algorithm:  env.Algorithm,
		KeyID:      env.KeyID,
	}
}

// failingReader simulates an exhausted entropy source.
type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy source unavailable")
}
