// Package crypto is the envelope encryption core of phylax, a library for
// protecting health information at rest.
//
// It provides:
//   - AES-256-GCM authenticated encryption with a 16-byte IV and detached tag
//   - Envelope encryption: per-item data keys (DEKs) wrapped by one master key (KEK)
//   - Field-level encryption bound to a field name and record id
//   - Data key rotation for envelopes and field records
//   - scrypt and Argon2id password-based key derivation
//   - SHA-256 and HMAC-SHA256 with constant-time verification
//   - Redaction of sensitive keys in values headed for logs
//   - OpenTelemetry instrumentation of every service operation
//
// Every failure is one of four kinds: configuration, validation, encryption
// or decryption. Test with errors.Is against ErrConfiguration, ErrValidation,
// ErrEncryption and ErrDecryption, or use KindOf. Decryption failures never
// say which part of the envelope was wrong.
//
// # Quick Start
//
// Load the master key once at startup and share the Service:
//
//	km, err := crypto.NewKeyManagerFromHex(os.Getenv("PHYLAX_MASTER_KEY"))
//	if err != nil {
//		log.Fatal(err) // a ConfigurationError: the process must not start
//	}
//	svc, err := crypto.NewService(km)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Encrypt with a fresh data key and persist the wrapped key next to the data
//	env, dk, err := svc.Encrypt("blood type: O-", nil)
//	if err != nil {
//		return err
//	}
//	wrapped, err := svc.EncryptKey(dk)
//	if err != nil {
//		return err
//	}
//	dk.Zeroize()
//
//	// Later
//	dk, err = svc.DecryptKey(wrapped)
//	if err != nil {
//		return err
//	}
//	plaintext, err := svc.Decrypt(env, dk)
//
// Alternatively LoadConfig reads PHYLAX_* variables (and a .env file) and
// NewServiceFromConfig validates them and builds the Service.
//
// # Field-Level Encryption
//
// A field record is bound to its column and row through additional
// authenticated data "field:record", so a ciphertext copied to another row
// fails to decrypt:
//
//	rec, err := svc.EncryptField("123-45-6789", "ssn", "patient-42", dk)
//	_, err = svc.DecryptField(rec, dk, "ssn", "patient-43") // ErrDecryption
//
// The record also carries a SHA-256 hash of the plaintext; FieldChanged
// compares a candidate value against it without decrypting.
// EncryptFields and DecryptFields process several columns of one record
// concurrently.
//
// # Key Rotation
//
// RotateKey decrypts with the old key, generates a new one and re-encrypts.
// Nothing is persisted by this package: store the new envelope and the new
// wrapped key first, then delete the old ones.
//
// # Wire Format
//
// Envelope and WrappedKey marshal to JSON with base64 fields:
//
//	{"encryptedData":"...","iv":"...","authTag":"...","keyId":"...","algorithm":"aes-256-gcm"}
//
// # Logging and Metrics
//
// WithLogger attaches a slog.Logger; only key ids, operation names and error
// kinds are logged. SanitizeForLogging and SanitizeAttrs redact sensitive
// keys in anything else. NewInstrumentedService wraps a Service with
// OpenTelemetry counters and histograms.
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0
package crypto
