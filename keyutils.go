// keyutils.go: Random source, data keys, hex import and zeroization.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	goerrors "github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// Sizes used throughout the package, in bytes.
const (
	// KeySize is the size of master keys and data keys (AES-256).
	KeySize = 32
	// IVSize is the GCM nonce size. 16 bytes matches the persisted envelope format.
	IVSize = 16
	// TagSize is the GCM authentication tag size.
	TagSize = 16
	// SaltSize is the size of salts generated for password derivation.
	SaltSize = 32
	// keyIDBytes random bytes give a 16 hex character key id.
	keyIDBytes = 8
)

// RandomSource is the cryptographically secure byte source used for keys,
// IVs, salts and key ids. crypto/rand.Reader is the default; tests inject
// their own readers.
type RandomSource = io.Reader

// readRandom fills a fresh slice of n bytes from r.
func readRandom(r RandomSource, n int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, encryptionError(goerrors.Wrap(err, ErrCodeRandom, "failed to read random bytes"))
	}
	return buf, nil
}

// GenerateKey generates a random 32-byte key from crypto/rand.
//
// Example:
//
//	key, err := crypto.GenerateKey()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer crypto.Zeroize(key)
func GenerateKey() ([]byte, error) {
	return readRandom(rand.Reader, KeySize)
}

// GenerateIV generates a random IVSize-byte nonce.
func GenerateIV() ([]byte, error) {
	return readRandom(rand.Reader, IVSize)
}

// GenerateSalt generates a random SaltSize-byte salt for password derivation.
func GenerateSalt() ([]byte, error) {
	return readRandom(rand.Reader, SaltSize)
}

// NewKeyID returns a random 16 hex character identifier.
// Key ids are bookkeeping labels and are never derived from key material.
func NewKeyID() (string, error) {
	return newKeyID(rand.Reader)
}

func newKeyID(r RandomSource) (string, error) {
	b, err := readRandom(r, keyIDBytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ValidateKey checks that key is exactly KeySize bytes.
func ValidateKey(key []byte) error {
	if len(key) != KeySize {
		return validationError(goerrors.New(ErrCodeInvalidKey,
			fmt.Sprintf("key must be %d bytes for AES-256, got %d", KeySize, len(key))))
	}
	return nil
}

// KeyToHex encodes a key as lowercase hexadecimal.
func KeyToHex(key []byte) string {
	return hex.EncodeToString(key)
}

// KeyFromHex decodes a hexadecimal key and checks its size.
// Upper and lower case digits are accepted.
func KeyFromHex(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, validationError(goerrors.Wrap(err, ErrCodeInvalidKey, "failed to decode hex key"))
	}
	if err := ValidateKey(key); err != nil {
		Zeroize(key)
		return nil, err
	}
	return key, nil
}

// Zeroize overwrites b with zeros in place.
func Zeroize(b []byte) {
	clearBuffer(b)
}

// DataKey is a data encryption key (DEK) together with its bookkeeping id.
//
// The id is random and assigned when the key is created or imported; it
// travels in Envelope.KeyID and WrappedKey.DataKeyID. It is never used to
// decide whether a key is trusted.
type DataKey struct {
	ID        string    `json:"id"`
	Key       []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateDataKey creates a new random DEK with a fresh id.
func GenerateDataKey() (*DataKey, error) {
	return generateDataKey(rand.Reader)
}

func generateDataKey(r RandomSource) (*DataKey, error) {
	key, err := readRandom(r, KeySize)
	if err != nil {
		return nil, err
	}
	id, err := newKeyID(r)
	if err != nil {
		Zeroize(key)
		return nil, err
	}
	return &DataKey{ID: id, Key: key, CreatedAt: timecache.CachedTime().UTC()}, nil
}

// NewDataKey imports caller-supplied key material. The bytes are copied.
// If id is empty a random one is assigned.
func NewDataKey(id string, key []byte) (*DataKey, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := validateKeyID(id); err != nil {
		return nil, err
	}
	if id == "" {
		var err error
		if id, err = NewKeyID(); err != nil {
			return nil, err
		}
	}
	material := make([]byte, KeySize)
	copy(material, key)
	return &DataKey{ID: id, Key: material, CreatedAt: timecache.CachedTime().UTC()}, nil
}

// Zeroize wipes the key material. The DataKey is unusable afterwards.
func (dk *DataKey) Zeroize() {
	if dk == nil {
		return
	}
	Zeroize(dk.Key)
	dk.Key = nil
}

// validate reports a ValidationError for nil or wrongly sized keys and for
// ids that would not fit the keyId field of an encoded envelope.
func (dk *DataKey) validate() error {
	if dk == nil {
		return validationError(goerrors.New(ErrCodeInvalidKey, "data key is required"))
	}
	if err := validateKeyID(dk.ID); err != nil {
		return err
	}
	return ValidateKey(dk.Key)
}

func validateKeyID(id string) error {
	if len(id) > 2*keyIDBytes {
		return validationError(goerrors.New(ErrCodeInvalidInput,
			fmt.Sprintf("key id must be at most %d characters", 2*keyIDBytes)))
	}
	return nil
}
