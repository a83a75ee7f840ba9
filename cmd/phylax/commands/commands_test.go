// commands_test.go: Tests for the phylax CLI commands.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crypto "github.com/agilira/phylax"
)

var testMasterKeyHex = strings.Repeat("0123456789abcdef", 4)

func newTestService(t *testing.T) crypto.Encryptor {
	t.Helper()
	svc, err := crypto.NewServiceFromConfig(&crypto.Config{
		MasterKeyHex: testMasterKeyHex,
		KDFAlgorithm: crypto.KDFScrypt,
		ScryptN:      1024,
	})
	require.NoError(t, err)
	return svc
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode[T any](t *testing.T, out *bytes.Buffer) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	out.Reset()
	return v
}

func TestRunGenerateMasterKey(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RunGenerateMasterKey(discardLogger(), &out))

	got := decode[MasterKeyOutput](t, &out)
	assert.Len(t, got.MasterKey, 64)
	assert.Equal(t, crypto.EnvMasterKey, got.EnvVar)

	_, err := crypto.NewKeyManagerFromHex(got.MasterKey)
	assert.NoError(t, err)
}

func TestRunGenerateKey_UnwrapRoundTrip(t *testing.T) {
	svc := newTestService(t)
	var out bytes.Buffer

	require.NoError(t, RunGenerateKey(svc, discardLogger(), &out))
	gen := decode[GenerateKeyOutput](t, &out)
	require.NotNil(t, gen.WrappedKey)
	assert.Equal(t, gen.DataKey.ID, gen.WrappedKey.DataKeyID)

	wrapped, err := json.Marshal(gen.WrappedKey)
	require.NoError(t, err)
	require.NoError(t, RunUnwrapKey(svc, &out, string(wrapped)))
	unwrapped := decode[KeyOutput](t, &out)
	assert.Equal(t, gen.DataKey.ID, unwrapped.ID)
	assert.Equal(t, gen.DataKey.Key, unwrapped.Key)
}

func TestRunWrapKey(t *testing.T) {
	svc := newTestService(t)
	key := strings.Repeat("ab", 32)
	var out bytes.Buffer

	require.NoError(t, RunWrapKey(svc, &out, key, "dek-1"))
	wk := decode[crypto.WrappedKey](t, &out)
	assert.Equal(t, "dek-1", wk.DataKeyID)

	raw, err := json.Marshal(wk)
	require.NoError(t, err)
	require.NoError(t, RunUnwrapKey(svc, &out, string(raw)))
	assert.Equal(t, key, decode[KeyOutput](t, &out).Key)

	assert.ErrorIs(t, RunWrapKey(svc, &out, "", ""), crypto.ErrValidation)
	assert.ErrorIs(t, RunWrapKey(svc, &out, "abcd", ""), crypto.ErrValidation)
	assert.ErrorIs(t, RunUnwrapKey(svc, &out, ""), crypto.ErrValidation)
}

func TestRunEncryptDecrypt(t *testing.T) {
	svc := newTestService(t)
	var out bytes.Buffer

	require.NoError(t, RunEncrypt(svc, discardLogger(), &out, "allergy: penicillin", "", "", "patient-9"))
	enc := decode[EncryptOutput](t, &out)
	require.NotNil(t, enc.DataKey)
	require.NotNil(t, enc.WrappedKey)
	assert.Equal(t, enc.DataKey.ID, enc.Envelope.KeyID)

	envJSON, err := json.Marshal(enc.Envelope)
	require.NoError(t, err)

	require.NoError(t, RunDecrypt(svc, &out, string(envJSON), enc.DataKey.Key, enc.DataKey.ID, "patient-9"))
	assert.Equal(t, "allergy: penicillin", decode[DecryptOutput](t, &out).Plaintext)

	err = RunDecrypt(svc, &out, string(envJSON), enc.DataKey.Key, enc.DataKey.ID, "patient-10")
	assert.ErrorIs(t, err, crypto.ErrDecryption)
	assert.Zero(t, out.Len())
}

func TestRunEncrypt_WithKey(t *testing.T) {
	svc := newTestService(t)
	key := strings.Repeat("cd", 32)
	var out bytes.Buffer

	require.NoError(t, RunEncrypt(svc, discardLogger(), &out, "x", key, "dek-7", ""))
	enc := decode[EncryptOutput](t, &out)
	assert.Nil(t, enc.DataKey)
	assert.Nil(t, enc.WrappedKey)
	assert.Equal(t, "dek-7", enc.Envelope.KeyID)
}

func TestRunRotate(t *testing.T) {
	svc := newTestService(t)
	var out bytes.Buffer

	require.NoError(t, RunEncrypt(svc, discardLogger(), &out, "bp: 120/80", "", "", ""))
	enc := decode[EncryptOutput](t, &out)
	envJSON, err := json.Marshal(enc.Envelope)
	require.NoError(t, err)

	require.NoError(t, RunRotate(svc, discardLogger(), &out, string(envJSON), enc.DataKey.Key, enc.DataKey.ID, ""))
	rot := decode[RotateOutput](t, &out)
	assert.NotEqual(t, enc.DataKey.ID, rot.DataKey.ID)
	assert.Equal(t, rot.DataKey.ID, rot.WrappedKey.DataKeyID)

	newEnv, err := json.Marshal(rot.Envelope)
	require.NoError(t, err)
	require.NoError(t, RunDecrypt(svc, &out, string(newEnv), rot.DataKey.Key, rot.DataKey.ID, ""))
	assert.Equal(t, "bp: 120/80", decode[DecryptOutput](t, &out).Plaintext)

	err = RunDecrypt(svc, &out, string(envJSON), rot.DataKey.Key, rot.DataKey.ID, "")
	assert.ErrorIs(t, err, crypto.ErrDecryption)
}

func TestRunEncryptDecryptField(t *testing.T) {
	svc := newTestService(t)
	key := strings.Repeat("ef", 32)
	var out bytes.Buffer

	require.NoError(t, RunEncryptField(svc, &out, "123-45-6789", "ssn", "patient-42", key, "dek-f"))
	recJSON := out.String()
	rec := decode[crypto.FieldRecord](t, &out)
	assert.Equal(t, crypto.HashString("123-45-6789"), rec.Hash)

	require.NoError(t, RunDecryptField(svc, &out, recJSON, "ssn", "patient-42", key, "dek-f"))
	assert.Equal(t, "123-45-6789", decode[FieldValueOutput](t, &out).Value)

	err := RunDecryptField(svc, &out, recJSON, "ssn", "patient-43", key, "dek-f")
	assert.ErrorIs(t, err, crypto.ErrDecryption)

	err = RunDecryptField(svc, &out, "{", "ssn", "patient-42", key, "dek-f")
	assert.ErrorIs(t, err, crypto.ErrValidation)
}

func TestRunHashAndHMAC(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, RunHash(&out, "test"))
	assert.Equal(t, "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", decode[HashOutput](t, &out).Hash)

	// RFC 4231 test case 2, key "Jefe".
	require.NoError(t, RunHMAC(&out, "what do ya want for nothing?", "4a656665", ""))
	mac := decode[HMACOutput](t, &out)
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", mac.HMAC)
	assert.Nil(t, mac.Verified)

	require.NoError(t, RunHMAC(&out, "what do ya want for nothing?", "4a656665", mac.HMAC))
	verified := decode[HMACOutput](t, &out)
	require.NotNil(t, verified.Verified)
	assert.True(t, *verified.Verified)

	assert.ErrorIs(t, RunHMAC(&out, "x", "zz", ""), crypto.ErrValidation)
	assert.ErrorIs(t, RunHMAC(&out, "x", "", ""), crypto.ErrValidation)
}

func TestRunDeriveKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, RunDeriveKey(ctx, svc, &out, "pw", "", crypto.KDFScrypt))
	first := decode[DerivedKeyOutput](t, &out)
	assert.Len(t, first.Key, 64)
	assert.Len(t, first.Salt, 2*crypto.SaltSize)

	require.NoError(t, RunDeriveKey(ctx, svc, &out, "pw", first.Salt, crypto.KDFScrypt))
	assert.Equal(t, first.Key, decode[DerivedKeyOutput](t, &out).Key)

	assert.ErrorIs(t, RunDeriveKey(ctx, svc, &out, "pw", "not-hex", crypto.KDFScrypt), crypto.ErrValidation)
	assert.ErrorIs(t, RunDeriveKey(ctx, svc, &out, "", "", crypto.KDFScrypt), crypto.ErrValidation)
}

func TestRunEncryptDecryptFile(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "report.pdf")
	sealed := filepath.Join(dir, "report.pdf.env")
	restored := filepath.Join(dir, "report.restored.pdf")

	content := []byte("%PDF-1.7\x00\x01\x02 discharge summary")
	require.NoError(t, os.WriteFile(in, content, 0o600))

	var out bytes.Buffer
	require.NoError(t, RunEncryptFile(svc, discardLogger(), &out, in, sealed, "", ""))
	enc := decode[FileOutput](t, &out)
	require.NotNil(t, enc.DataKey)
	assert.Equal(t, len(content), enc.Bytes)

	info, err := os.Stat(sealed)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, RunDecryptFile(svc, discardLogger(), &out, sealed, restored, enc.DataKey.Key, enc.DataKey.ID))
	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	wrongKey := strings.Repeat("00", 32)
	err = RunDecryptFile(svc, discardLogger(), &out, sealed, restored, wrongKey, "")
	assert.ErrorIs(t, err, crypto.ErrDecryption)

	assert.ErrorIs(t, RunEncryptFile(svc, discardLogger(), &out, "", sealed, "", ""), crypto.ErrValidation)
	assert.Error(t, RunEncryptFile(svc, discardLogger(), &out, filepath.Join(dir, "missing"), sealed, "", ""))
}

// capturingEncryptor records the data key it is handed and fails.
type capturingEncryptor struct {
	crypto.Encryptor
	seen *crypto.DataKey
}

func (c *capturingEncryptor) EncryptWithAAD(_ string, dk *crypto.DataKey, _ string) (*crypto.Envelope, *crypto.DataKey, error) {
	c.seen = dk
	return nil, nil, crypto.ErrEncryption
}

func (c *capturingEncryptor) EncryptFile(_ []byte, dk *crypto.DataKey) (*crypto.Envelope, *crypto.DataKey, error) {
	c.seen = dk
	return nil, nil, crypto.ErrEncryption
}

func TestRunEncrypt_ZeroizesKeyOnFailure(t *testing.T) {
	key := strings.Repeat("ab", 32)
	var out bytes.Buffer

	enc := &capturingEncryptor{}
	err := RunEncrypt(enc, discardLogger(), &out, "x", key, "dek-1", "")
	require.ErrorIs(t, err, crypto.ErrEncryption)
	require.NotNil(t, enc.seen)
	assert.Nil(t, enc.seen.Key)
	assert.Zero(t, out.Len())

	in := filepath.Join(t.TempDir(), "in.bin")
	require.NoError(t, os.WriteFile(in, []byte("scan"), 0o600))

	enc = &capturingEncryptor{}
	err = RunEncryptFile(enc, discardLogger(), &out, in, in+".env", key, "dek-1")
	require.ErrorIs(t, err, crypto.ErrEncryption)
	require.NotNil(t, enc.seen)
	assert.Nil(t, enc.seen.Key)
	assert.NoFileExists(t, in+".env")
}
