// encryption.go: AES-256-GCM primitives producing and opening envelopes.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	goerrors "github.com/agilira/go-errors"
)

// Algorithm is the value written to Envelope.Algorithm.
const Algorithm = "aes-256-gcm"

// newGCM builds an AES-256-GCM AEAD using the 16-byte IV of the envelope format.
// No cipher is cached: data keys are short-lived and a cache would have to be
// keyed by something derived from the key.
func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return gcm, nil
}

// seal encrypts plaintext under key with a fresh IV from r and splits the
// GCM output into ciphertext and tag.
func seal(r RandomSource, key, plaintext, aad []byte, keyID string) (*Envelope, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, encryptionError(goerrors.Wrap(err, ErrCodeCipherInit, "failed to initialize cipher"))
	}

	iv, err := readRandom(r, IVSize)
	if err != nil {
		return nil, err
	}

	sealed := gcm.Seal(make([]byte, 0, len(plaintext)+TagSize), iv, plaintext, aad) // #nosec G407 -- iv is read from the random source, never reused
	if len(sealed) != len(plaintext)+TagSize {
		return nil, encryptionError(goerrors.New(ErrCodeEncrypt, "unexpected GCM output length"))
	}

	split := len(sealed) - TagSize
	return &Envelope{
		Ciphertext: sealed[:split:split],
		IV:         iv,
		AuthTag:    sealed[split:],
		Algorithm:  Algorithm,
		KeyID:      keyID,
	}, nil
}

// open authenticates and decrypts env. Every failure after key validation,
// including a malformed IV or tag, is reported as the same DecryptionError.
func open(key []byte, env *Envelope, aad []byte) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if env == nil {
		return nil, validationError(goerrors.New(ErrCodeInvalidInput, "envelope is required"))
	}
	if env.Algorithm != "" && env.Algorithm != Algorithm {
		return nil, validationError(goerrors.New(ErrCodeInvalidInput,
			fmt.Sprintf("unsupported algorithm %q", env.Algorithm)))
	}
	if len(env.IV) != IVSize || len(env.AuthTag) != TagSize {
		return nil, decryptionError()
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, encryptionError(goerrors.Wrap(err, ErrCodeCipherInit, "failed to initialize cipher"))
	}

	// GCM wants ciphertext||tag in one slice.
	sealedBuf := getScratch(len(env.Ciphertext) + TagSize)
	defer putScratch(sealedBuf)
	sealed := append(*sealedBuf, env.Ciphertext...)
	sealed = append(sealed, env.AuthTag...)
	*sealedBuf = sealed

	plainBuf := getScratch(len(env.Ciphertext))
	defer putScratch(plainBuf)

	plaintext, err := gcm.Open((*plainBuf)[:0], env.IV, sealed, aad)
	if err != nil {
		return nil, decryptionError()
	}
	*plainBuf = plaintext

	// Copy out; the scratch buffer is wiped on return.
	result := make([]byte, len(plaintext))
	copy(result, plaintext)
	return result, nil
}
