// service.go: EncryptionService composing key management, primitives and the envelope codec.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"crypto/rand"
	"log/slog"
	"runtime"

	goerrors "github.com/agilira/go-errors"
)

// Service is the envelope encryption core. Construct one at startup with
// NewService and pass it to every consumer; there is no package-level instance.
//
// A Service holds no mutable state and is safe for concurrent use.
type Service struct {
	km          *KeyManager
	rand        RandomSource
	kdf         KDFParams
	concurrency int
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRandomSource replaces crypto/rand for IVs, generated keys and salts.
func WithRandomSource(r RandomSource) Option {
	return func(s *Service) { s.rand = r }
}

// WithKDFParams sets the password derivation parameters.
// Zero fields fall back to the defaults.
func WithKDFParams(p KDFParams) Option {
	return func(s *Service) { s.kdf = p.withDefaults() }
}

// WithConcurrency bounds the goroutines used by batch field operations.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the structured logger. Only key ids, operation names and
// error kinds are ever logged.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service around an initialized KeyManager.
func NewService(km *KeyManager, opts ...Option) (*Service, error) {
	if km == nil {
		return nil, configurationError(goerrors.New(ErrCodeMasterKeyMissing, "key manager is required"))
	}
	s := &Service{
		km:          km,
		rand:        rand.Reader,
		kdf:         DefaultKDFParams(),
		concurrency: runtime.GOMAXPROCS(0),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// KeyManager returns the manager holding the master key.
func (s *Service) KeyManager() *KeyManager {
	return s.km
}

// GenerateDataKey creates a new random DEK.
func (s *Service) GenerateDataKey() (*DataKey, error) {
	return generateDataKey(s.rand)
}

// Encrypt encrypts plaintext with dk. If dk is nil a fresh data key is
// generated; the key actually used is always returned.
//
// Example:
//
//	env, dk, err := svc.Encrypt("blood type: O-", nil)
//	if err != nil {
//		return err
//	}
//	wrapped, err := svc.EncryptKey(dk)
func (s *Service) Encrypt(plaintext string, dk *DataKey) (*Envelope, *DataKey, error) {
	return s.EncryptBytesWithAAD([]byte(plaintext), dk, nil)
}

// EncryptWithAAD is Encrypt with additional authenticated data. The same aad
// must be presented to DecryptWithAAD.
func (s *Service) EncryptWithAAD(plaintext string, dk *DataKey, aad string) (*Envelope, *DataKey, error) {
	return s.EncryptBytesWithAAD([]byte(plaintext), dk, []byte(aad))
}

// EncryptBytes is the []byte form of Encrypt.
func (s *Service) EncryptBytes(plaintext []byte, dk *DataKey) (*Envelope, *DataKey, error) {
	return s.EncryptBytesWithAAD(plaintext, dk, nil)
}

// EncryptBytesWithAAD is the core encryption path. A nil aad binds nothing;
// an empty non-nil aad is equivalent to nil for GCM.
func (s *Service) EncryptBytesWithAAD(plaintext []byte, dk *DataKey, aad []byte) (*Envelope, *DataKey, error) {
	if dk == nil {
		var err error
		if dk, err = s.GenerateDataKey(); err != nil {
			return nil, nil, err
		}
	} else if err := dk.validate(); err != nil {
		return nil, nil, err
	}

	env, err := seal(s.rand, dk.Key, plaintext, aad, dk.ID)
	if err != nil {
		s.logAttrs(slog.LevelError, "encryption failed",
			slog.String("key_id", dk.ID),
			slog.String("kind", KindOf(err).String()))
		return nil, nil, err
	}
	return env, dk, nil
}

// Decrypt authenticates and decrypts env with dk.
func (s *Service) Decrypt(env *Envelope, dk *DataKey) (string, error) {
	plaintext, err := s.DecryptBytesWithAAD(env, dk, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// DecryptWithAAD decrypts an envelope produced by EncryptWithAAD.
func (s *Service) DecryptWithAAD(env *Envelope, dk *DataKey, aad string) (string, error) {
	plaintext, err := s.DecryptBytesWithAAD(env, dk, []byte(aad))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// DecryptBytes is the []byte form of Decrypt.
func (s *Service) DecryptBytes(env *Envelope, dk *DataKey) ([]byte, error) {
	return s.DecryptBytesWithAAD(env, dk, nil)
}

// DecryptBytesWithAAD is the core decryption path. On any authentication
// failure it returns a DecryptionError and no plaintext.
func (s *Service) DecryptBytesWithAAD(env *Envelope, dk *DataKey, aad []byte) ([]byte, error) {
	if err := dk.validate(); err != nil {
		return nil, err
	}
	plaintext, err := open(dk.Key, env, aad)
	if err != nil {
		attrs := []slog.Attr{slog.String("key_id", dk.ID), slog.String("kind", KindOf(err).String())}
		if env != nil {
			attrs = append(attrs, slog.String("envelope_key_id", env.KeyID))
		}
		s.logAttrs(slog.LevelWarn, "decryption failed", attrs...)
		return nil, err
	}
	return plaintext, nil
}

// EncryptKey wraps dk under the master key for persistence.
func (s *Service) EncryptKey(dk *DataKey) (*WrappedKey, error) {
	return s.km.WrapKey(dk)
}

// DecryptKey unwraps a data key previously returned by EncryptKey.
func (s *Service) DecryptKey(wk *WrappedKey) (*DataKey, error) {
	dk, err := s.km.UnwrapKey(wk)
	if err != nil {
		s.logAttrs(slog.LevelWarn, "key unwrap failed",
			slog.String("master_key_id", s.km.KeyID()),
			slog.String("kind", KindOf(err).String()))
		return nil, err
	}
	return dk, nil
}
