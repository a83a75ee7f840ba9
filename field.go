// field.go: Field-level encryption bound to a (field, record) context.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"context"
	"encoding/base64"
	"sync"

	goerrors "github.com/agilira/go-errors"
	"golang.org/x/sync/errgroup"
)

// FieldRecord is an encrypted column value. It can only be decrypted for the
// same field name and record id it was encrypted for.
type FieldRecord struct {
	Encrypted string `json:"encrypted"`
	IV        string `json:"iv"`
	AuthTag   string `json:"authTag"`
	// Hash is the SHA-256 hex digest of the plaintext, for change detection.
	Hash  string `json:"hash"`
	KeyID string `json:"keyId,omitempty"`
}

// FieldAAD returns the additional authenticated data for a field: "field:record".
func FieldAAD(fieldName, recordID string) string {
	return fieldName + ":" + recordID
}

// EncryptField encrypts value for fieldName of recordID.
//
// Example:
//
//	rec, err := svc.EncryptField("123-45-6789", "ssn", "patient-42", dk)
//	// svc.DecryptField(rec, dk, "ssn", "patient-43") fails with ErrDecryption
func (s *Service) EncryptField(value, fieldName, recordID string, dk *DataKey) (*FieldRecord, error) {
	if err := dk.validate(); err != nil {
		return nil, err
	}
	if fieldName == "" || recordID == "" {
		return nil, validationError(goerrors.New(ErrCodeInvalidInput, "field name and record id are required"))
	}

	env, _, err := s.EncryptBytesWithAAD([]byte(value), dk, []byte(FieldAAD(fieldName, recordID)))
	if err != nil {
		return nil, err
	}
	return &FieldRecord{
		Encrypted: base64.StdEncoding.EncodeToString(env.Ciphertext),
		IV:        base64.StdEncoding.EncodeToString(env.IV),
		AuthTag:   base64.StdEncoding.EncodeToString(env.AuthTag),
		Hash:      HashString(value),
		KeyID:     env.KeyID,
	}, nil
}

// DecryptField decrypts rec. A fieldName or recordID different from the one
// used at encryption time yields a DecryptionError.
func (s *Service) DecryptField(rec *FieldRecord, dk *DataKey, fieldName, recordID string) (string, error) {
	env, err := rec.envelope()
	if err != nil {
		return "", err
	}
	return s.DecryptWithAAD(env, dk, FieldAAD(fieldName, recordID))
}

// FieldChanged reports whether value differs from the plaintext rec was
// created from, without decrypting.
func FieldChanged(rec *FieldRecord, value string) bool {
	if rec == nil {
		return true
	}
	return !VerifyHashString(value, rec.Hash)
}

// envelope converts the record back into an Envelope.
func (rec *FieldRecord) envelope() (*Envelope, error) {
	if rec == nil {
		return nil, validationError(goerrors.New(ErrCodeInvalidInput, "field record is required"))
	}
	return DecodeEnvelope(EnvelopeWire{
		EncryptedData: rec.Encrypted,
		IV:            rec.IV,
		AuthTag:       rec.AuthTag,
		KeyID:         rec.KeyID,
		Algorithm:     Algorithm,
	})
}

// EncryptFields encrypts several columns of one record concurrently, bounded
// by WithConcurrency. The first failure cancels the remaining work and no
// partial result is returned.
func (s *Service) EncryptFields(ctx context.Context, values map[string]string, recordID string, dk *DataKey) (map[string]*FieldRecord, error) {
	if err := dk.validate(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	out := make(map[string]*FieldRecord, len(values))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for field, value := range values {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := s.EncryptField(value, field, recordID, dk)
			if err != nil {
				return err
			}
			mu.Lock()
			out[field] = rec
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// DecryptFields is the inverse of EncryptFields.
func (s *Service) DecryptFields(ctx context.Context, recs map[string]*FieldRecord, recordID string, dk *DataKey) (map[string]string, error) {
	if err := dk.validate(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	out := make(map[string]string, len(recs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for field, rec := range recs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			value, err := s.DecryptField(rec, dk, field, recordID)
			if err != nil {
				return err
			}
			mu.Lock()
			out[field] = value
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
