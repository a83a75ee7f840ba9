// integrity.go: Hash, HMAC and password derivation commands.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	crypto "github.com/agilira/phylax"
)

// HashOutput is written by RunHash.
type HashOutput struct {
	Hash string `json:"hash"`
}

// RunHash prints the SHA-256 digest of data.
func RunHash(w io.Writer, data string) error {
	return writeJSON(w, HashOutput{Hash: crypto.HashString(data)})
}

// HMACOutput is written by RunHMAC.
type HMACOutput struct {
	HMAC     string `json:"hmac"`
	Verified *bool  `json:"verified,omitempty"`
}

// RunHMAC prints HMAC-SHA256(key, data). When expected is set the command
// verifies it instead and reports the result.
func RunHMAC(w io.Writer, data, keyHex, expected string) error {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return fmt.Errorf("%w: --hmac-key must be hex: %w", crypto.ErrValidation, err)
	}
	defer crypto.Zeroize(key)

	mac, err := crypto.GenerateHMAC([]byte(data), key)
	if err != nil {
		return err
	}
	out := HMACOutput{HMAC: mac}
	if expected != "" {
		ok := crypto.VerifyHMAC([]byte(data), key, expected)
		out.Verified = &ok
	}
	return writeJSON(w, out)
}

// DerivedKeyOutput is written by RunDeriveKey.
type DerivedKeyOutput struct {
	Key       string `json:"key"`
	Salt      string `json:"salt"`
	Algorithm string `json:"algorithm"`
}

// RunDeriveKey derives a key from password. saltHex may be empty, in which
// case a random salt is generated and printed.
func RunDeriveKey(ctx context.Context, svc crypto.Encryptor, w io.Writer, password, saltHex, algorithm string) error {
	var salt []byte
	if saltHex != "" {
		var err error
		if salt, err = hex.DecodeString(saltHex); err != nil {
			return fmt.Errorf("%w: --salt must be hex: %w", crypto.ErrValidation, err)
		}
	}

	derived, err := svc.DeriveKeyFromPasswordContext(ctx, password, salt)
	if err != nil {
		return err
	}
	defer crypto.Zeroize(derived.Key)

	return writeJSON(w, DerivedKeyOutput{
		Key:       crypto.KeyToHex(derived.Key),
		Salt:      hex.EncodeToString(derived.Salt),
		Algorithm: algorithm,
	})
}
