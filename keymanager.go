// keymanager.go: Master key (KEK) custody and data key wrapping.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// KeyManager owns the master key for the lifetime of the process.
//
// It is immutable after construction and safe for concurrent use. The master
// key never leaves the KeyManager: callers only ever see wrapped data keys.
type KeyManager struct {
	kek      []byte
	kekID    string
	loadedAt time.Time
	rand     RandomSource
}

// KeyManagerOption configures a KeyManager.
type KeyManagerOption func(*KeyManager)

// WithMasterKeyID labels the master key. The id ends up in WrappedKey.KeyID.
// When unset a random id is generated at construction.
func WithMasterKeyID(id string) KeyManagerOption {
	return func(km *KeyManager) { km.kekID = id }
}

// WithKeyManagerRandom replaces crypto/rand for key and IV generation.
func WithKeyManagerRandom(r RandomSource) KeyManagerOption {
	return func(km *KeyManager) { km.rand = r }
}

// NewKeyManager creates a KeyManager from raw master key bytes. The bytes are
// copied. A key that is not exactly 32 bytes is a ConfigurationError.
func NewKeyManager(masterKey []byte, opts ...KeyManagerOption) (*KeyManager, error) {
	if len(masterKey) == 0 {
		return nil, configurationError(goerrors.New(ErrCodeMasterKeyMissing, "master key is not set"))
	}
	if len(masterKey) != KeySize {
		return nil, configurationError(goerrors.New(ErrCodeMasterKeySize,
			fmt.Sprintf("master key must be %d bytes (%d hex characters), got %d bytes",
				KeySize, 2*KeySize, len(masterKey))))
	}

	km := &KeyManager{rand: rand.Reader}
	for _, opt := range opts {
		opt(km)
	}

	if len(km.kekID) > 2*keyIDBytes {
		return nil, configurationError(goerrors.New(ErrCodeConfigInvalid,
			fmt.Sprintf("master key id must be at most %d characters", 2*keyIDBytes)))
	}
	if km.kekID == "" {
		id, err := newKeyID(km.rand)
		if err != nil {
			return nil, configurationError(goerrors.Wrap(err, ErrCodeRandom, "failed to generate master key id"))
		}
		km.kekID = id
	}

	km.kek = make([]byte, KeySize)
	copy(km.kek, masterKey)
	km.loadedAt = timecache.CachedTime().UTC()
	return km, nil
}

// NewKeyManagerFromHex creates a KeyManager from a 64 character hex string,
// the form in which the master key is supplied by configuration.
func NewKeyManagerFromHex(masterKeyHex string, opts ...KeyManagerOption) (*KeyManager, error) {
	masterKeyHex = strings.TrimSpace(masterKeyHex)
	if masterKeyHex == "" {
		return nil, configurationError(goerrors.New(ErrCodeMasterKeyMissing, "master key is not set"))
	}
	if len(masterKeyHex) != 2*KeySize {
		return nil, configurationError(goerrors.New(ErrCodeMasterKeySize,
			fmt.Sprintf("master key must be %d bytes (%d hex characters), got %d hex characters",
				KeySize, 2*KeySize, len(masterKeyHex))))
	}

	raw, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, configurationError(goerrors.Wrap(err, ErrCodeMasterKeyFormat, "master key is not valid hex"))
	}
	defer Zeroize(raw)

	return NewKeyManager(raw, opts...)
}

// KeyID returns the master key id.
func (km *KeyManager) KeyID() string {
	return km.kekID
}

// LoadedAt returns when the master key was loaded.
func (km *KeyManager) LoadedAt() time.Time {
	return km.loadedAt
}

// GenerateDataKey creates a fresh DEK using the manager's random source.
func (km *KeyManager) GenerateDataKey() (*DataKey, error) {
	return generateDataKey(km.rand)
}

// WrapKey encrypts a data key under the master key.
//
// The plaintext is the base64 encoding of the key bytes. The data key id is
// bound as additional authenticated data, so a wrapped key stored under one
// id cannot be replayed under another.
func (km *KeyManager) WrapKey(dk *DataKey) (*WrappedKey, error) {
	if err := dk.validate(); err != nil {
		return nil, err
	}
	if dk.ID == "" {
		return nil, validationError(goerrors.New(ErrCodeInvalidKey, "data key id is required for wrapping"))
	}

	encoded := []byte(base64.StdEncoding.EncodeToString(dk.Key))
	defer Zeroize(encoded)

	env, err := seal(km.rand, km.kek, encoded, wrapAAD(dk.ID), km.kekID)
	if err != nil {
		return nil, err
	}
	return &WrappedKey{Envelope: *env, DataKeyID: dk.ID, CreatedAt: dk.CreatedAt}, nil
}

// UnwrapKey recovers a data key. It fails with a DecryptionError when the
// wrapped key was modified or was produced under a different master key.
func (km *KeyManager) UnwrapKey(wk *WrappedKey) (*DataKey, error) {
	if wk == nil {
		return nil, validationError(goerrors.New(ErrCodeInvalidInput, "wrapped key is required"))
	}

	encoded, err := open(km.kek, &wk.Envelope, wrapAAD(wk.DataKeyID))
	if err != nil {
		return nil, err
	}
	defer Zeroize(encoded)

	key := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(key, encoded)
	if err != nil || n != KeySize {
		Zeroize(key)
		// Authenticated but not a key: produced by something other than WrapKey.
		return nil, decryptionError()
	}

	return &DataKey{ID: wk.DataKeyID, Key: key[:KeySize], CreatedAt: wk.CreatedAt}, nil
}

func wrapAAD(dataKeyID string) []byte {
	return []byte("dek:" + dataKeyID)
}
