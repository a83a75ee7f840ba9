// sanitize.go: Redaction of sensitive keys in values headed for logs.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"
)

// RedactedValue replaces every sensitive value.
const RedactedValue = "***REDACTED***"

// maxSanitizeDepth bounds recursion on cyclic or pathological values.
const maxSanitizeDepth = 32

// sensitiveTerms are matched as substrings of the normalized key.
var sensitiveTerms = []string{
	"password",
	"ssn",
	"creditcard",
	"apikey",
	"secret",
	"token",
	"privatekey",
}

var timeType = reflect.TypeOf(time.Time{})

// IsSensitiveKey reports whether a field named key must be redacted.
// Matching ignores case, '_' and '-', so "API_KEY", "apiKey" and "api-key"
// all match.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	k = strings.NewReplacer("_", "", "-", "").Replace(k)
	for _, term := range sensitiveTerms {
		if strings.Contains(k, term) {
			return true
		}
	}
	return false
}

// SanitizeForLogging returns a copy of v in which every map entry or struct
// field with a sensitive name is replaced by RedactedValue. Maps become
// map[string]any, slices become []any, structs become map[string]any keyed
// by their json names. Scalars are returned unchanged.
//
// This is a safety net for request/response logging, not a licence to log PHI.
//
// Example:
//
//	crypto.SanitizeForLogging(map[string]any{"password": "x", "note": "ok"})
//	// map[note:ok password:***REDACTED***]
func SanitizeForLogging(v any) any {
	if v == nil {
		return nil
	}
	return sanitizeValue(reflect.ValueOf(v), 0)
}

func sanitizeValue(v reflect.Value, depth int) any {
	if !v.IsValid() {
		return nil
	}
	if depth > maxSanitizeDepth {
		return RedactedValue
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return sanitizeValue(v.Elem(), depth+1)

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprint(leafValue(iter.Key()))
			if IsSensitiveKey(key) {
				out[key] = RedactedValue
				continue
			}
			out[key] = sanitizeValue(iter.Value(), depth+1)
		}
		return out

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			if !v.CanInterface() && v.Kind() == reflect.Slice {
				return append([]byte(nil), v.Bytes()...)
			}
			return leafValue(v)
		}
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = sanitizeValue(v.Index(i), depth+1)
		}
		return out

	case reflect.Struct:
		if v.Type() == timeType {
			return leafValue(v)
		}
		return sanitizeStruct(v, depth)

	default:
		return leafValue(v)
	}
}

// leafValue returns v as an interface. Values promoted through unexported
// embedded structs cannot be interfaced, so basic kinds are read directly.
func leafValue(v reflect.Value) any {
	if v.CanInterface() {
		return v.Interface()
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	default:
		return nil
	}
}

// sanitizeStruct keys fields by their json names. Untagged embedded structs
// are flattened into the parent; fields of the parent win on conflicts.
func sanitizeStruct(v reflect.Value, depth int) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	var embedded []reflect.Value
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Name
		tagged := false
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name, tagged = tagName, true
			}
		}
		if f.Anonymous && !tagged {
			if ev, ok := embeddedStruct(f, v.Field(i)); ok {
				if ev.IsValid() {
					embedded = append(embedded, ev)
				}
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if IsSensitiveKey(name) {
			out[name] = RedactedValue
			continue
		}
		out[name] = sanitizeValue(v.Field(i), depth+1)
	}

	if depth >= maxSanitizeDepth {
		return out
	}
	for _, ev := range embedded {
		for k, val := range sanitizeStruct(ev, depth+1) {
			if _, exists := out[k]; !exists {
				out[k] = val
			}
		}
	}
	return out
}

// embeddedStruct reports whether an embedded field promotes struct fields
// and resolves it through a pointer. A nil pointer yields an invalid Value.
func embeddedStruct(f reflect.StructField, v reflect.Value) (reflect.Value, bool) {
	ft := f.Type
	if ft.Kind() == reflect.Pointer {
		ft = ft.Elem()
	}
	if ft.Kind() != reflect.Struct || ft == timeType {
		return reflect.Value{}, false
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, true
		}
		v = v.Elem()
	}
	return v, true
}

// SanitizeAttrs applies the same redaction to slog attributes, descending
// into groups.
func SanitizeAttrs(attrs ...slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, sanitizeAttr(a))
	}
	return out
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	if IsSensitiveKey(a.Key) {
		return slog.String(a.Key, RedactedValue)
	}
	switch a.Value.Kind() {
	case slog.KindGroup:
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(SanitizeAttrs(a.Value.Group()...)...)}
	case slog.KindAny:
		return slog.Any(a.Key, SanitizeForLogging(a.Value.Any()))
	default:
		return a
	}
}

// logAttrs emits a sanitized log record.
func (s *Service) logAttrs(level slog.Level, msg string, attrs ...slog.Attr) {
	s.logger.LogAttrs(context.Background(), level, msg, SanitizeAttrs(attrs...)...)
}
