// helpers.go: Shared plumbing for phylax CLI commands.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package commands contains the phylax CLI command implementations.
// Every command writes a single JSON document to the writer it is given.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	crypto "github.com/agilira/phylax"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// KeyOutput is the JSON form of a data key. It carries raw key material and
// is only ever written to the operator's terminal.
type KeyOutput struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
}

func keyOutput(dk *crypto.DataKey) KeyOutput {
	return KeyOutput{ID: dk.ID, Key: crypto.KeyToHex(dk.Key), CreatedAt: dk.CreatedAt}
}

func writeJSON(w io.Writer, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonBytes))
	return err
}

// parseDataKey builds a data key from a hex string and an optional id.
// An empty keyHex returns nil, letting the service generate a key.
func parseDataKey(keyHex, keyID string) (*crypto.DataKey, error) {
	if keyHex == "" {
		return nil, nil
	}
	raw, err := crypto.KeyFromHex(keyHex)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(raw)
	return crypto.NewDataKey(keyID, raw)
}

// requireDataKey is parseDataKey for commands that cannot generate a key.
func requireDataKey(keyHex, keyID string) (*crypto.DataKey, error) {
	if keyHex == "" {
		return nil, fmt.Errorf("%w: --key is required", crypto.ErrValidation)
	}
	return parseDataKey(keyHex, keyID)
}

func parseEnvelope(data string) (*crypto.Envelope, error) {
	if data == "" {
		return nil, fmt.Errorf("%w: --envelope is required", crypto.ErrValidation)
	}
	var env crypto.Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, err
	}
	return &env, nil
}
