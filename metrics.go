// metrics.go: OpenTelemetry instrumentation for the encryption service.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Encryptor is the operation set of Service. Consumers that want metrics
// depend on Encryptor and receive the result of NewInstrumentedService.
type Encryptor interface {
	GenerateDataKey() (*DataKey, error)

	Encrypt(plaintext string, dk *DataKey) (*Envelope, *DataKey, error)
	EncryptWithAAD(plaintext string, dk *DataKey, aad string) (*Envelope, *DataKey, error)
	EncryptBytes(plaintext []byte, dk *DataKey) (*Envelope, *DataKey, error)
	EncryptBytesWithAAD(plaintext []byte, dk *DataKey, aad []byte) (*Envelope, *DataKey, error)

	Decrypt(env *Envelope, dk *DataKey) (string, error)
	DecryptWithAAD(env *Envelope, dk *DataKey, aad string) (string, error)
	DecryptBytes(env *Envelope, dk *DataKey) ([]byte, error)
	DecryptBytesWithAAD(env *Envelope, dk *DataKey, aad []byte) ([]byte, error)

	EncryptKey(dk *DataKey) (*WrappedKey, error)
	DecryptKey(wk *WrappedKey) (*DataKey, error)

	EncryptField(value, fieldName, recordID string, dk *DataKey) (*FieldRecord, error)
	DecryptField(rec *FieldRecord, dk *DataKey, fieldName, recordID string) (string, error)
	EncryptFields(ctx context.Context, values map[string]string, recordID string, dk *DataKey) (map[string]*FieldRecord, error)
	DecryptFields(ctx context.Context, recs map[string]*FieldRecord, recordID string, dk *DataKey) (map[string]string, error)

	RotateKey(oldKey *DataKey, env *Envelope) (*Rotation, error)
	RotateKeyWithAAD(oldKey *DataKey, env *Envelope, aad string) (*Rotation, error)
	RotateField(rec *FieldRecord, oldKey *DataKey, fieldName, recordID string) (*FieldRotation, error)

	DeriveKeyFromPassword(password string, salt []byte) (*DerivedKey, error)
	DeriveKeyFromPasswordContext(ctx context.Context, password string, salt []byte) (*DerivedKey, error)

	EncryptFile(data []byte, dk *DataKey) (*Envelope, *DataKey, error)
	DecryptFile(env *Envelope, dk *DataKey) ([]byte, error)
}

var _ Encryptor = (*Service)(nil)

// Operation names used as the "operation" metric attribute.
const (
	OpGenerateDataKey = "generate_data_key"
	OpEncrypt         = "encrypt"
	OpDecrypt         = "decrypt"
	OpEncryptKey      = "encrypt_key"
	OpDecryptKey      = "decrypt_key"
	OpEncryptField    = "encrypt_field"
	OpDecryptField    = "decrypt_field"
	OpEncryptFields   = "encrypt_fields"
	OpDecryptFields   = "decrypt_fields"
	OpRotateKey       = "rotate_key"
	OpRotateField     = "rotate_field"
	OpDeriveKey       = "derive_key"
	OpEncryptFile     = "encrypt_file"
	OpDecryptFile     = "decrypt_file"
)

// StatusSuccess is the "status" attribute of a call that returned no error.
// Failed calls carry the error kind instead ("validation", "decryption", ...).
const StatusSuccess = "success"

type instrumentedService struct {
	next     Encryptor
	counter  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewInstrumentedService wraps next so that every call records
// <namespace>_operations_total and <namespace>_operation_duration_seconds,
// both labelled with operation and status. Only names and error kinds are
// recorded, never key ids or data. A nil mp uses the global provider.
func NewInstrumentedService(next Encryptor, mp metric.MeterProvider, namespace string) (Encryptor, error) {
	if next == nil {
		return nil, fmt.Errorf("%w: encryptor is required", ErrConfiguration)
	}
	if namespace == "" {
		namespace = "phylax"
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(namespace)

	counter, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of encryption service operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of encryption service operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &instrumentedService{next: next, counter: counter, duration: duration}, nil
}

func (m *instrumentedService) record(ctx context.Context, operation string, start time.Time, err error) {
	status := StatusSuccess
	if err != nil {
		status = KindOf(err).String()
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	m.counter.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

func (m *instrumentedService) GenerateDataKey() (*DataKey, error) {
	start := time.Now()
	dk, err := m.next.GenerateDataKey()
	m.record(context.Background(), OpGenerateDataKey, start, err)
	return dk, err
}

func (m *instrumentedService) Encrypt(plaintext string, dk *DataKey) (*Envelope, *DataKey, error) {
	start := time.Now()
	env, used, err := m.next.Encrypt(plaintext, dk)
	m.record(context.Background(), OpEncrypt, start, err)
	return env, used, err
}

func (m *instrumentedService) EncryptWithAAD(plaintext string, dk *DataKey, aad string) (*Envelope, *DataKey, error) {
	start := time.Now()
	env, used, err := m.next.EncryptWithAAD(plaintext, dk, aad)
	m.record(context.Background(), OpEncrypt, start, err)
	return env, used, err
}

func (m *instrumentedService) EncryptBytes(plaintext []byte, dk *DataKey) (*Envelope, *DataKey, error) {
	start := time.Now()
	env, used, err := m.next.EncryptBytes(plaintext, dk)
	m.record(context.Background(), OpEncrypt, start, err)
	return env, used, err
}

func (m *instrumentedService) EncryptBytesWithAAD(plaintext []byte, dk *DataKey, aad []byte) (*Envelope, *DataKey, error) {
	start := time.Now()
	env, used, err := m.next.EncryptBytesWithAAD(plaintext, dk, aad)
	m.record(context.Background(), OpEncrypt, start, err)
	return env, used, err
}

func (m *instrumentedService) Decrypt(env *Envelope, dk *DataKey) (string, error) {
	start := time.Now()
	plaintext, err := m.next.Decrypt(env, dk)
	m.record(context.Background(), OpDecrypt, start, err)
	return plaintext, err
}

func (m *instrumentedService) DecryptWithAAD(env *Envelope, dk *DataKey, aad string) (string, error) {
	start := time.Now()
	plaintext, err := m.next.DecryptWithAAD(env, dk, aad)
	m.record(context.Background(), OpDecrypt, start, err)
	return plaintext, err
}

func (m *instrumentedService) DecryptBytes(env *Envelope, dk *DataKey) ([]byte, error) {
	start := time.Now()
	plaintext, err := m.next.DecryptBytes(env, dk)
	m.record(context.Background(), OpDecrypt, start, err)
	return plaintext, err
}

func (m *instrumentedService) DecryptBytesWithAAD(env *Envelope, dk *DataKey, aad []byte) ([]byte, error) {
	start := time.Now()
	plaintext, err := m.next.DecryptBytesWithAAD(env, dk, aad)
	m.record(context.Background(), OpDecrypt, start, err)
	return plaintext, err
}

func (m *instrumentedService) EncryptKey(dk *DataKey) (*WrappedKey, error) {
	start := time.Now()
	wk, err := m.next.EncryptKey(dk)
	m.record(context.Background(), OpEncryptKey, start, err)
	return wk, err
}

func (m *instrumentedService) DecryptKey(wk *WrappedKey) (*DataKey, error) {
	start := time.Now()
	dk, err := m.next.DecryptKey(wk)
	m.record(context.Background(), OpDecryptKey, start, err)
	return dk, err
}

func (m *instrumentedService) EncryptField(value, fieldName, recordID string, dk *DataKey) (*FieldRecord, error) {
	start := time.Now()
	rec, err := m.next.EncryptField(value, fieldName, recordID, dk)
	m.record(context.Background(), OpEncryptField, start, err)
	return rec, err
}

func (m *instrumentedService) DecryptField(rec *FieldRecord, dk *DataKey, fieldName, recordID string) (string, error) {
	start := time.Now()
	value, err := m.next.DecryptField(rec, dk, fieldName, recordID)
	m.record(context.Background(), OpDecryptField, start, err)
	return value, err
}

func (m *instrumentedService) EncryptFields(ctx context.Context, values map[string]string, recordID string, dk *DataKey) (map[string]*FieldRecord, error) {
	start := time.Now()
	recs, err := m.next.EncryptFields(ctx, values, recordID, dk)
	m.record(ctx, OpEncryptFields, start, err)
	return recs, err
}

func (m *instrumentedService) DecryptFields(ctx context.Context, recs map[string]*FieldRecord, recordID string, dk *DataKey) (map[string]string, error) {
	start := time.Now()
	values, err := m.next.DecryptFields(ctx, recs, recordID, dk)
	m.record(ctx, OpDecryptFields, start, err)
	return values, err
}

func (m *instrumentedService) RotateKey(oldKey *DataKey, env *Envelope) (*Rotation, error) {
	start := time.Now()
	rot, err := m.next.RotateKey(oldKey, env)
	m.record(context.Background(), OpRotateKey, start, err)
	return rot, err
}

func (m *instrumentedService) RotateKeyWithAAD(oldKey *DataKey, env *Envelope, aad string) (*Rotation, error) {
	start := time.Now()
	rot, err := m.next.RotateKeyWithAAD(oldKey, env, aad)
	m.record(context.Background(), OpRotateKey, start, err)
	return rot, err
}

func (m *instrumentedService) RotateField(rec *FieldRecord, oldKey *DataKey, fieldName, recordID string) (*FieldRotation, error) {
	start := time.Now()
	rot, err := m.next.RotateField(rec, oldKey, fieldName, recordID)
	m.record(context.Background(), OpRotateField, start, err)
	return rot, err
}

func (m *instrumentedService) DeriveKeyFromPassword(password string, salt []byte) (*DerivedKey, error) {
	start := time.Now()
	dk, err := m.next.DeriveKeyFromPassword(password, salt)
	m.record(context.Background(), OpDeriveKey, start, err)
	return dk, err
}

func (m *instrumentedService) DeriveKeyFromPasswordContext(ctx context.Context, password string, salt []byte) (*DerivedKey, error) {
	start := time.Now()
	dk, err := m.next.DeriveKeyFromPasswordContext(ctx, password, salt)
	m.record(ctx, OpDeriveKey, start, err)
	return dk, err
}

func (m *instrumentedService) EncryptFile(data []byte, dk *DataKey) (*Envelope, *DataKey, error) {
	start := time.Now()
	env, used, err := m.next.EncryptFile(data, dk)
	m.record(context.Background(), OpEncryptFile, start, err)
	return env, used, err
}

func (m *instrumentedService) DecryptFile(env *Envelope, dk *DataKey) ([]byte, error) {
	start := time.Now()
	data, err := m.next.DecryptFile(env, dk)
	m.record(context.Background(), OpDecryptFile, start, err)
	return data, err
}
