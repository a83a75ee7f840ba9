// field.go: Field-level encryption commands.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"io"

	crypto "github.com/agilira/phylax"
)

// RunEncryptField encrypts value for one field of one record.
func RunEncryptField(svc crypto.Encryptor, w io.Writer, value, field, recordID, keyHex, keyID string) error {
	dk, err := requireDataKey(keyHex, keyID)
	if err != nil {
		return err
	}
	defer dk.Zeroize()

	rec, err := svc.EncryptField(value, field, recordID, dk)
	if err != nil {
		return err
	}
	return writeJSON(w, rec)
}

// FieldValueOutput is written by RunDecryptField.
type FieldValueOutput struct {
	Value string `json:"value"`
}

// RunDecryptField decrypts a field record given as JSON.
func RunDecryptField(svc crypto.Encryptor, w io.Writer, recordJSON, field, recordID, keyHex, keyID string) error {
	dk, err := requireDataKey(keyHex, keyID)
	if err != nil {
		return err
	}
	defer dk.Zeroize()

	if recordJSON == "" {
		return fmt.Errorf("%w: --encrypted is required", crypto.ErrValidation)
	}
	var rec crypto.FieldRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return fmt.Errorf("%w: invalid field record JSON: %w", crypto.ErrValidation, err)
	}

	value, err := svc.DecryptField(&rec, dk, field, recordID)
	if err != nil {
		return err
	}
	return writeJSON(w, FieldValueOutput{Value: value})
}
