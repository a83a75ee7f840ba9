// data.go: Encrypt, decrypt and rotate commands.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package commands

import (
	"io"
	"log/slog"

	crypto "github.com/agilira/phylax"
)

// EncryptOutput is written by RunEncrypt. DataKey is only set when the key
// was generated by the command.
type EncryptOutput struct {
	Envelope   *crypto.Envelope   `json:"envelope"`
	DataKey    *KeyOutput         `json:"dataKey,omitempty"`
	WrappedKey *crypto.WrappedKey `json:"wrappedKey,omitempty"`
}

// RunEncrypt encrypts plaintext. Without keyHex a data key is generated and
// printed together with its wrapped form.
func RunEncrypt(svc crypto.Encryptor, logger *slog.Logger, w io.Writer, plaintext, keyHex, keyID, aad string) error {
	dk, err := parseDataKey(keyHex, keyID)
	if err != nil {
		return err
	}
	defer dk.Zeroize()

	env, used, err := svc.EncryptWithAAD(plaintext, dk, aad)
	if err != nil {
		return err
	}
	defer used.Zeroize()

	out := EncryptOutput{Envelope: env}
	if dk == nil {
		ko := keyOutput(used)
		out.DataKey = &ko
		if out.WrappedKey, err = svc.EncryptKey(used); err != nil {
			return err
		}
	}

	logger.Debug("plaintext encrypted", slog.String("key_id", used.ID))
	return writeJSON(w, out)
}

// DecryptOutput is written by RunDecrypt.
type DecryptOutput struct {
	Plaintext string `json:"plaintext"`
}

// RunDecrypt decrypts an envelope given as JSON.
func RunDecrypt(svc crypto.Encryptor, w io.Writer, envelopeJSON, keyHex, keyID, aad string) error {
	dk, err := requireDataKey(keyHex, keyID)
	if err != nil {
		return err
	}
	defer dk.Zeroize()

	env, err := parseEnvelope(envelopeJSON)
	if err != nil {
		return err
	}

	plaintext, err := svc.DecryptWithAAD(env, dk, aad)
	if err != nil {
		return err
	}
	return writeJSON(w, DecryptOutput{Plaintext: plaintext})
}

// RotateOutput is written by RunRotate.
type RotateOutput struct {
	Envelope   *crypto.Envelope   `json:"envelope"`
	DataKey    KeyOutput          `json:"dataKey"`
	WrappedKey *crypto.WrappedKey `json:"wrappedKey"`
}

// RunRotate re-encrypts an envelope under a new data key. The caller stores
// the new envelope and wrapped key before discarding the old ones.
func RunRotate(svc crypto.Encryptor, logger *slog.Logger, w io.Writer, envelopeJSON, keyHex, keyID, aad string) error {
	oldKey, err := requireDataKey(keyHex, keyID)
	if err != nil {
		return err
	}
	defer oldKey.Zeroize()

	env, err := parseEnvelope(envelopeJSON)
	if err != nil {
		return err
	}

	rot, err := svc.RotateKeyWithAAD(oldKey, env, aad)
	if err != nil {
		return err
	}
	defer rot.NewKey.Zeroize()

	wk, err := svc.EncryptKey(rot.NewKey)
	if err != nil {
		return err
	}

	logger.Info("envelope rotated",
		slog.String("old_key_id", oldKey.ID),
		slog.String("new_key_id", rot.NewKey.ID))
	return writeJSON(w, RotateOutput{Envelope: rot.Envelope, DataKey: keyOutput(rot.NewKey), WrappedKey: wk})
}
