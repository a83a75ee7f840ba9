// keys.go: Master key and data key commands.
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

	crypto "github.com/agilira/phylax"
)

// MasterKeyOutput is written by RunGenerateMasterKey.
type MasterKeyOutput struct {
	MasterKey string `json:"masterKey"`
	EnvVar    string `json:"envVar"`
}

// RunGenerateMasterKey prints a new 32-byte master key as hex, ready for
// PHYLAX_MASTER_KEY. Store it in a secrets manager, never in source control.
func RunGenerateMasterKey(logger *slog.Logger, w io.Writer) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	defer crypto.Zeroize(key)

	logger.Info("master key generated")
	return writeJSON(w, MasterKeyOutput{MasterKey: crypto.KeyToHex(key), EnvVar: crypto.EnvMasterKey})
}

// GenerateKeyOutput is written by RunGenerateKey.
type GenerateKeyOutput struct {
	DataKey    KeyOutput          `json:"dataKey"`
	WrappedKey *crypto.WrappedKey `json:"wrappedKey"`
}

// RunGenerateKey creates a data key and prints it with its wrapped form.
func RunGenerateKey(svc crypto.Encryptor, logger *slog.Logger, w io.Writer) error {
	dk, err := svc.GenerateDataKey()
	if err != nil {
		return err
	}
	defer dk.Zeroize()

	wk, err := svc.EncryptKey(dk)
	if err != nil {
		return err
	}

	logger.Info("data key generated", slog.String("key_id", dk.ID))
	return writeJSON(w, GenerateKeyOutput{DataKey: keyOutput(dk), WrappedKey: wk})
}

// RunWrapKey wraps a hex data key under the master key.
func RunWrapKey(svc crypto.Encryptor, w io.Writer, keyHex, keyID string) error {
	dk, err := requireDataKey(keyHex, keyID)
	if err != nil {
		return err
	}
	defer dk.Zeroize()

	wk, err := svc.EncryptKey(dk)
	if err != nil {
		return err
	}
	return writeJSON(w, wk)
}

// RunUnwrapKey recovers a data key from its wrapped JSON form.
func RunUnwrapKey(svc crypto.Encryptor, w io.Writer, wrappedJSON string) error {
	if wrappedJSON == "" {
		return fmt.Errorf("%w: --wrapped is required", crypto.ErrValidation)
	}
	var wk crypto.WrappedKey
	if err := json.Unmarshal([]byte(wrappedJSON), &wk); err != nil {
		return err
	}

	dk, err := svc.DecryptKey(&wk)
	if err != nil {
		return err
	}
	defer dk.Zeroize()
	return writeJSON(w, keyOutput(dk))
}
