// kdf.go: Password-based key derivation with memory-hard KDFs (scrypt, Argon2id).
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"context"
	"fmt"

	goerrors "github.com/agilira/go-errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

// KDF algorithm names accepted in KDFParams.Algorithm.
const (
	KDFScrypt   = "scrypt"
	KDFArgon2id = "argon2id"
)

// Default scrypt cost parameters. N=16384, r=8, p=1 are the Node.js
// crypto.scrypt defaults, so keys derived elsewhere with those defaults
// re-derive identically here.
const (
	DefaultScryptN = 16384
	DefaultScryptR = 8
	DefaultScryptP = 1
)

// Default Argon2id parameters, used when Algorithm is KDFArgon2id.
const (
	DefaultArgon2Time      = 3
	DefaultArgon2MemoryKiB = 64 * 1024
	DefaultArgon2Threads   = 4
)

// KDFParams selects and tunes the password KDF. Zero fields take defaults.
//
// Example:
//
//	// Faster parameters for tests
//	svc, _ := crypto.NewService(km, crypto.WithKDFParams(crypto.KDFParams{N: 1024}))
type KDFParams struct {
	// Algorithm is KDFScrypt (default) or KDFArgon2id.
	Algorithm string `json:"algorithm,omitempty"`

	// scrypt cost parameters. N must be a power of two greater than 1.
	N int `json:"n,omitempty"`
	R int `json:"r,omitempty"`
	P int `json:"p,omitempty"`

	// Argon2id parameters.
	Time      uint32 `json:"time,omitempty"`
	MemoryKiB uint32 `json:"memory_kib,omitempty"`
	Threads   uint8  `json:"threads,omitempty"`
}

// DefaultKDFParams returns scrypt with the default cost.
func DefaultKDFParams() KDFParams {
	return KDFParams{}.withDefaults()
}

func (p KDFParams) withDefaults() KDFParams {
	if p.Algorithm == "" {
		p.Algorithm = KDFScrypt
	}
	if p.N == 0 {
		p.N = DefaultScryptN
	}
	if p.R == 0 {
		p.R = DefaultScryptR
	}
	if p.P == 0 {
		p.P = DefaultScryptP
	}
	if p.Time == 0 {
		p.Time = DefaultArgon2Time
	}
	if p.MemoryKiB == 0 {
		p.MemoryKiB = DefaultArgon2MemoryKiB
	}
	if p.Threads == 0 {
		p.Threads = DefaultArgon2Threads
	}
	return p
}

// DerivedKey is a password-derived key and the salt needed to re-derive it.
type DerivedKey struct {
	Key  []byte `json:"-"`
	Salt []byte `json:"salt"`
}

// DeriveKey derives a KeySize key from password and salt.
// A nil params uses DefaultKDFParams.
func DeriveKey(password, salt []byte, params *KDFParams) ([]byte, error) {
	if len(password) == 0 {
		return nil, validationError(goerrors.New(ErrCodeEmptyPassword, "password cannot be empty"))
	}
	if len(salt) == 0 {
		return nil, validationError(goerrors.New(ErrCodeInvalidInput, "salt cannot be empty"))
	}

	p := DefaultKDFParams()
	if params != nil {
		p = params.withDefaults()
	}

	switch p.Algorithm {
	case KDFScrypt:
		key, err := scrypt.Key(password, salt, p.N, p.R, p.P, KeySize)
		if err != nil {
			return nil, validationError(goerrors.Wrap(err, ErrCodeInvalidKDF, "invalid scrypt parameters"))
		}
		return key, nil
	case KDFArgon2id:
		return argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, KeySize), nil
	default:
		return nil, validationError(goerrors.New(ErrCodeInvalidKDF,
			fmt.Sprintf("unsupported KDF algorithm %q", p.Algorithm)))
	}
}

// DeriveKeyFromPassword derives a data key from password. When salt is nil a
// fresh SaltSize salt is generated and returned alongside the key; the same
// password and salt always yield the same key.
//
// The KDF is deliberately slow. Call DeriveKeyFromPasswordContext from
// request paths that must stay cancellable.
func (s *Service) DeriveKeyFromPassword(password string, salt []byte) (*DerivedKey, error) {
	if password == "" {
		return nil, validationError(goerrors.New(ErrCodeEmptyPassword, "password cannot be empty"))
	}
	if salt == nil {
		var err error
		if salt, err = readRandom(s.rand, SaltSize); err != nil {
			return nil, err
		}
	}

	params := s.kdf
	key, err := DeriveKey([]byte(password), salt, &params)
	if err != nil {
		return nil, err
	}
	saltCopy := make([]byte, len(salt))
	copy(saltCopy, salt)
	return &DerivedKey{Key: key, Salt: saltCopy}, nil
}

// DeriveKeyFromPasswordContext runs DeriveKeyFromPassword on its own
// goroutine and returns ctx.Err() if ctx ends first. The derivation itself
// cannot be interrupted; its result is discarded and wiped.
func (s *Service) DeriveKeyFromPasswordContext(ctx context.Context, password string, salt []byte) (*DerivedKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		dk  *DerivedKey
		err error
	}
	done := make(chan result, 1)
	go func() {
		dk, err := s.DeriveKeyFromPassword(password, salt)
		done <- result{dk, err}
	}()

	select {
	case r := <-done:
		return r.dk, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.dk != nil {
				Zeroize(r.dk.Key)
			}
		}()
		return nil, ctx.Err()
	}
}
