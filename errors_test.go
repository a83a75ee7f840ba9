// errors_test.go: Error kind classification tests.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	crypto "github.com/agilira/phylax"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want crypto.ErrorKind
		name string
	}{
		{nil, crypto.KindUnknown, "unknown"},
		{errors.New("plain"), crypto.KindUnknown, "unknown"},
		{crypto.ErrConfiguration, crypto.KindConfiguration, "configuration"},
		{crypto.ErrValidation, crypto.KindValidation, "validation"},
		{crypto.ErrEncryption, crypto.KindEncryption, "encryption"},
		{crypto.ErrDecryption, crypto.KindDecryption, "decryption"},
		{fmt.Errorf("outer: %w", crypto.ErrDecryption), crypto.KindDecryption, "decryption"},
	}
	for _, tt := range tests {
		got := crypto.KindOf(tt.err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.name, got.String())
	}
}

func TestDecryptionError_IsGeneric(t *testing.T) {
	svc := newTestService(t)
	dk := newTestDataKey(t)

	env, _, err := svc.EncryptWithAAD("x", dk, "a")
	assert.NoError(t, err)

	_, errAAD := svc.DecryptWithAAD(env, dk, "b")
	bad := cloneEnvelope(env)
	bad.AuthTag[0] ^= 1
	_, errTag := svc.DecryptWithAAD(bad, dk, "a")

	assert.ErrorIs(t, errAAD, crypto.ErrDecryption)
	assert.ErrorIs(t, errTag, crypto.ErrDecryption)
	assert.Equal(t, errAAD.Error(), errTag.Error())
	assert.NotContains(t, errAAD.Error(), "aad")
	assert.NotContains(t, errAAD.Error(), "tag")
}
