// keyrotation.go: Data key rotation for envelopes and field records.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"log/slog"
)

// Rotation is the output of a successful rotation. Nothing is persisted by
// this package: store Envelope first, then discard the old key and envelope.
type Rotation struct {
	NewKey   *DataKey
	Envelope *Envelope
}

// FieldRotation is the field record counterpart of Rotation.
type FieldRotation struct {
	NewKey *DataKey
	Record *FieldRecord
}

// RotateKey re-encrypts env under a freshly generated data key.
//
// Steps: open env with oldKey, generate a new key, seal the recovered
// plaintext. If opening fails a DecryptionError is returned and nothing is
// produced; the old envelope stays the only valid copy.
func (s *Service) RotateKey(oldKey *DataKey, env *Envelope) (*Rotation, error) {
	return s.RotateKeyWithAAD(oldKey, env, "")
}

// RotateKeyWithAAD rotates an envelope that was bound to aad. The new
// envelope is bound to the same aad.
func (s *Service) RotateKeyWithAAD(oldKey *DataKey, env *Envelope, aad string) (*Rotation, error) {
	plaintext, err := s.DecryptBytesWithAAD(env, oldKey, []byte(aad))
	if err != nil {
		return nil, err
	}
	defer Zeroize(plaintext)

	newKey, err := s.GenerateDataKey()
	if err != nil {
		return nil, err
	}

	newEnv, _, err := s.EncryptBytesWithAAD(plaintext, newKey, []byte(aad))
	if err != nil {
		newKey.Zeroize()
		return nil, err
	}

	s.logAttrs(slog.LevelInfo, "data key rotated",
		slog.String("old_key_id", oldKey.ID),
		slog.String("new_key_id", newKey.ID))
	return &Rotation{NewKey: newKey, Envelope: newEnv}, nil
}

// RotateField moves a field record to a new data key, keeping its
// field/record binding. The plaintext hash does not change.
func (s *Service) RotateField(rec *FieldRecord, oldKey *DataKey, fieldName, recordID string) (*FieldRotation, error) {
	env, err := rec.envelope()
	if err != nil {
		return nil, err
	}
	rot, err := s.RotateKeyWithAAD(oldKey, env, FieldAAD(fieldName, recordID))
	if err != nil {
		return nil, err
	}
	w := EncodeEnvelope(rot.Envelope)
	return &FieldRotation{
		NewKey: rot.NewKey,
		Record: &FieldRecord{
			Encrypted: w.EncryptedData,
			IV:        w.IV,
			AuthTag:   w.AuthTag,
			Hash:      rec.Hash,
			KeyID:     w.KeyID,
		},
	}, nil
}
