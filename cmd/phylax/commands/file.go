// file.go: Whole-file encryption commands.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	crypto "github.com/agilira/phylax"
)

// FileOutput is written by RunEncryptFile and RunDecryptFile.
type FileOutput struct {
	Output     string             `json:"output"`
	Bytes      int                `json:"bytes"`
	KeyID      string             `json:"keyId"`
	DataKey    *KeyOutput         `json:"dataKey,omitempty"`
	WrappedKey *crypto.WrappedKey `json:"wrappedKey,omitempty"`
}

// RunEncryptFile reads inPath, encrypts it and writes the envelope JSON to
// outPath with 0600 permissions.
func RunEncryptFile(svc crypto.Encryptor, logger *slog.Logger, w io.Writer, inPath, outPath, keyHex, keyID string) error {
	if inPath == "" || outPath == "" {
		return fmt.Errorf("%w: --in and --out are required", crypto.ErrValidation)
	}
	dk, err := parseDataKey(keyHex, keyID)
	if err != nil {
		return err
	}
	defer dk.Zeroize()

	data, err := os.ReadFile(inPath) // #nosec G304 -- path is chosen by the operator
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	defer crypto.Zeroize(data)

	env, used, err := svc.EncryptFile(data, dk)
	if err != nil {
		return err
	}
	defer used.Zeroize()

	encoded, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	out := FileOutput{Output: outPath, Bytes: len(data), KeyID: used.ID}
	if dk == nil {
		ko := keyOutput(used)
		out.DataKey = &ko
		if out.WrappedKey, err = svc.EncryptKey(used); err != nil {
			return err
		}
	}

	logger.Info("file encrypted", slog.String("key_id", used.ID), slog.Int("bytes", len(data)))
	return writeJSON(w, out)
}

// RunDecryptFile reads an envelope JSON file and writes the recovered bytes
// to outPath with 0600 permissions.
func RunDecryptFile(svc crypto.Encryptor, logger *slog.Logger, w io.Writer, inPath, outPath, keyHex, keyID string) error {
	if inPath == "" || outPath == "" {
		return fmt.Errorf("%w: --in and --out are required", crypto.ErrValidation)
	}
	dk, err := requireDataKey(keyHex, keyID)
	if err != nil {
		return err
	}
	defer dk.Zeroize()

	raw, err := os.ReadFile(inPath) // #nosec G304 -- path is chosen by the operator
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	env, err := parseEnvelope(string(raw))
	if err != nil {
		return err
	}

	data, err := svc.DecryptFile(env, dk)
	if err != nil {
		return err
	}
	defer crypto.Zeroize(data)

	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	logger.Info("file decrypted", slog.String("key_id", dk.ID), slog.Int("bytes", len(data)))
	return writeJSON(w, FileOutput{Output: outPath, Bytes: len(data), KeyID: dk.ID})
}
