// file.go: Whole-buffer file encryption.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"encoding/base64"

	goerrors "github.com/agilira/go-errors"
)

// EncryptFile encrypts a binary payload. The payload is base64 encoded
// before encryption and the whole buffer is sealed as one unit; there is no
// chunking, so memory use is proportional to the file size.
func (s *Service) EncryptFile(data []byte, dk *DataKey) (*Envelope, *DataKey, error) {
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(encoded, data)
	defer Zeroize(encoded)

	return s.EncryptBytesWithAAD(encoded, dk, nil)
}

// DecryptFile reverses EncryptFile.
func (s *Service) DecryptFile(env *Envelope, dk *DataKey) ([]byte, error) {
	encoded, err := s.DecryptBytesWithAAD(env, dk, nil)
	if err != nil {
		return nil, err
	}
	defer Zeroize(encoded)

	data := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(data, encoded)
	if err != nil {
		Zeroize(data)
		return nil, validationError(goerrors.Wrap(err, ErrCodeInvalidInput, "envelope does not contain file data"))
	}
	return data[:n], nil
}
