// errors.go: Error taxonomy for the envelope encryption core.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"errors"
	"fmt"

	goerrors "github.com/agilira/go-errors"
)

// ErrorKind classifies every failure returned by this package.
// The set is closed: callers can switch on it exhaustively.
type ErrorKind int

const (
	// KindUnknown is reported for errors that did not originate in this package.
	KindUnknown ErrorKind = iota
	// KindConfiguration means the master key is absent or malformed. Fatal at startup.
	KindConfiguration
	// KindValidation means the caller supplied malformed input.
	KindValidation
	// KindEncryption means the cipher failed to produce ciphertext.
	KindEncryption
	// KindDecryption means authentication failed: wrong key, wrong context or tampering.
	KindDecryption
)

// String returns the kind name used in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindEncryption:
		return "encryption"
	case KindDecryption:
		return "decryption"
	default:
		return "unknown"
	}
}

// Public sentinel errors, one per ErrorKind.
// Every error returned by this package wraps exactly one of them, so
// errors.Is(err, crypto.ErrDecryption) is the supported way to branch.
var (
	// ErrConfiguration is returned when the master key is missing or not 32 bytes.
	ErrConfiguration = errors.New("crypto: configuration error")

	// ErrValidation is returned for malformed caller input (empty password, wrong key size...).
	ErrValidation = errors.New("crypto: validation error")

	// ErrEncryption is returned when the underlying cipher cannot produce ciphertext.
	ErrEncryption = errors.New("crypto: encryption error")

	// ErrDecryption is returned when authenticated decryption fails.
	// The message never says why.
	ErrDecryption = errors.New("crypto: decryption failed, data may be corrupted or tampered")
)

// Error codes for rich error handling
const (
	ErrCodeMasterKeyMissing = "PHYLAX_MASTER_KEY_MISSING"
	ErrCodeMasterKeyFormat  = "PHYLAX_MASTER_KEY_FORMAT"
	ErrCodeMasterKeySize    = "PHYLAX_MASTER_KEY_SIZE"
	ErrCodeConfigInvalid    = "PHYLAX_CONFIG_INVALID"
	ErrCodeInvalidKey       = "PHYLAX_INVALID_KEY"
	ErrCodeInvalidInput     = "PHYLAX_INVALID_INPUT"
	ErrCodeEmptyPassword    = "PHYLAX_EMPTY_PASSWORD"
	ErrCodeInvalidKDF       = "PHYLAX_INVALID_KDF"
	ErrCodeEnvelopeDecode   = "PHYLAX_ENVELOPE_DECODE"
	ErrCodeRandom           = "PHYLAX_RANDOM"
	ErrCodeCipherInit       = "PHYLAX_CIPHER_INIT"
	ErrCodeEncrypt          = "PHYLAX_ENCRYPT"
	ErrCodeDecrypt          = "PHYLAX_DECRYPT"
)

// KindOf reports the ErrorKind carried by err.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrDecryption):
		return KindDecryption
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrEncryption):
		return KindEncryption
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindUnknown
	}
}

func configurationError(rich error) error {
	return fmt.Errorf("%w: %w", ErrConfiguration, rich)
}

func validationError(rich error) error {
	return fmt.Errorf("%w: %w", ErrValidation, rich)
}

func encryptionError(rich error) error {
	return fmt.Errorf("%w: %w", ErrEncryption, rich)
}

// decryptionError deliberately drops the cause: GCM's own error text is
// already generic, but a wrapped cause could still leak which check failed.
func decryptionError() error {
	return fmt.Errorf("%w: %w", ErrDecryption, goerrors.New(ErrCodeDecrypt, "authentication failed"))
}
