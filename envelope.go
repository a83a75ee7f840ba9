// envelope.go: Envelope types and their transport-safe representation.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	goerrors "github.com/agilira/go-errors"
)

// Envelope is one authenticated ciphertext. Ciphertext, IV and AuthTag are
// only meaningful together; persist them atomically.
type Envelope struct {
	Ciphertext []byte
	IV         []byte
	AuthTag    []byte
	Algorithm  string
	// KeyID names the key that produced the envelope. Informational only.
	KeyID string
}

// EnvelopeWire is the persisted/transmitted form of an Envelope.
type EnvelopeWire struct {
	EncryptedData string `json:"encryptedData"`
	IV            string `json:"iv"`
	AuthTag       string `json:"authTag"`
	KeyID         string `json:"keyId"`
	Algorithm     string `json:"algorithm"`
}

// WrappedKey is a data key encrypted under the master key. Envelope.KeyID
// is the master key id; DataKeyID is the id of the wrapped DEK.
type WrappedKey struct {
	Envelope
	DataKeyID string
	CreatedAt time.Time
}

// wrappedKeyWire is the JSON form of WrappedKey.
type wrappedKeyWire struct {
	EnvelopeWire
	DataKeyID string    `json:"dataKeyId"`
	CreatedAt time.Time `json:"createdAt"`
}

// EncodeEnvelope converts env to its base64 wire form.
func EncodeEnvelope(env *Envelope) EnvelopeWire {
	return EnvelopeWire{
		EncryptedData: base64.StdEncoding.EncodeToString(env.Ciphertext),
		IV:            base64.StdEncoding.EncodeToString(env.IV),
		AuthTag:       base64.StdEncoding.EncodeToString(env.AuthTag),
		KeyID:         env.KeyID,
		Algorithm:     env.Algorithm,
	}
}

// DecodeEnvelope parses the wire form. IV, tag and algorithm are required;
// encryptedData may be empty (empty plaintext). Sizes are checked so a
// truncated record is rejected before it reaches the cipher.
func DecodeEnvelope(w EnvelopeWire) (*Envelope, error) {
	if w.IV == "" || w.AuthTag == "" || w.Algorithm == "" {
		return nil, validationError(goerrors.New(ErrCodeEnvelopeDecode, "envelope is missing required fields"))
	}
	if w.Algorithm != Algorithm {
		return nil, validationError(goerrors.New(ErrCodeEnvelopeDecode,
			fmt.Sprintf("unsupported algorithm %q", w.Algorithm)))
	}
	if len(w.KeyID) > 2*keyIDBytes {
		return nil, validationError(goerrors.New(ErrCodeEnvelopeDecode, "keyId is too long"))
	}

	ct, err := base64.StdEncoding.DecodeString(w.EncryptedData)
	if err != nil {
		return nil, validationError(goerrors.Wrap(err, ErrCodeEnvelopeDecode, "invalid encryptedData encoding"))
	}
	iv, err := base64.StdEncoding.DecodeString(w.IV)
	if err != nil {
		return nil, validationError(goerrors.Wrap(err, ErrCodeEnvelopeDecode, "invalid iv encoding"))
	}
	tag, err := base64.StdEncoding.DecodeString(w.AuthTag)
	if err != nil {
		return nil, validationError(goerrors.Wrap(err, ErrCodeEnvelopeDecode, "invalid authTag encoding"))
	}
	if len(iv) != IVSize || len(tag) != TagSize {
		return nil, validationError(goerrors.New(ErrCodeEnvelopeDecode,
			fmt.Sprintf("iv and authTag must be %d bytes", IVSize)))
	}

	return &Envelope{
		Ciphertext: ct,
		IV:         iv,
		AuthTag:    tag,
		Algorithm:  w.Algorithm,
		KeyID:      w.KeyID,
	}, nil
}

// MarshalJSON encodes the envelope in its wire form.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(EncodeEnvelope(&e))
}

// UnmarshalJSON decodes and validates the wire form.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w EnvelopeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return validationError(goerrors.Wrap(err, ErrCodeEnvelopeDecode, "invalid envelope JSON"))
	}
	decoded, err := DecodeEnvelope(w)
	if err != nil {
		return err
	}
	*e = *decoded
	return nil
}

// MarshalJSON encodes the wrapped key with its data key id.
func (w WrappedKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(wrappedKeyWire{
		EnvelopeWire: EncodeEnvelope(&w.Envelope),
		DataKeyID:    w.DataKeyID,
		CreatedAt:    w.CreatedAt,
	})
}

// UnmarshalJSON decodes a wrapped key.
func (w *WrappedKey) UnmarshalJSON(data []byte) error {
	var wire wrappedKeyWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return validationError(goerrors.Wrap(err, ErrCodeEnvelopeDecode, "invalid wrapped key JSON"))
	}
	if wire.DataKeyID == "" {
		return validationError(goerrors.New(ErrCodeEnvelopeDecode, "wrapped key is missing dataKeyId"))
	}
	env, err := DecodeEnvelope(wire.EnvelopeWire)
	if err != nil {
		return err
	}
	*w = WrappedKey{Envelope: *env, DataKeyID: wire.DataKeyID, CreatedAt: wire.CreatedAt}
	return nil
}
