// concurrent_test.go: Concurrent use of a shared Service.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	crypto "github.com/agilira/phylax"
)

// TestService_ConcurrentAccess shares one Service and one data key across
// goroutines. Run with -race.
func TestService_ConcurrentAccess(t *testing.T) {
	svc := newTestService(t)
	dk := newTestDataKey(t)

	const numGoroutines = 32
	const numOps = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			record := fmt.Sprintf("patient-%d", id)

			for j := 0; j < numOps; j++ {
				text := fmt.Sprintf("note %d/%d", id, j)

				env, _, err := svc.EncryptWithAAD(text, dk, record)
				if err != nil {
					t.Errorf("goroutine %d: encrypt failed: %v", id, err)
					return
				}
				got, err := svc.DecryptWithAAD(env, dk, record)
				if err != nil || got != text {
					t.Errorf("goroutine %d: decrypt mismatch %q: %v", id, got, err)
					return
				}

				rec, err := svc.EncryptField(text, "note", record, dk)
				if err != nil {
					t.Errorf("goroutine %d: field encrypt failed: %v", id, err)
					return
				}
				if got, err := svc.DecryptField(rec, dk, "note", record); err != nil || got != text {
					t.Errorf("goroutine %d: field decrypt mismatch %q: %v", id, got, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

// TestService_ConcurrentKeyLifecycle generates, wraps and unwraps data keys
// and runs batches from many goroutines at once.
func TestService_ConcurrentKeyLifecycle(t *testing.T) {
	svc := newTestService(t, crypto.WithConcurrency(2))

	const numGoroutines = 16

	var mu sync.Mutex
	seen := make(map[string]bool, numGoroutines)

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			env, dk, err := svc.Encrypt("vitals", nil)
			if err != nil {
				t.Errorf("goroutine %d: encrypt failed: %v", id, err)
				return
			}
			defer dk.Zeroize()

			wk, err := svc.EncryptKey(dk)
			if err != nil {
				t.Errorf("goroutine %d: wrap failed: %v", id, err)
				return
			}
			unwrapped, err := svc.DecryptKey(wk)
			if err != nil {
				t.Errorf("goroutine %d: unwrap failed: %v", id, err)
				return
			}
			defer unwrapped.Zeroize()

			if got, err := svc.Decrypt(env, unwrapped); err != nil || got != "vitals" {
				t.Errorf("goroutine %d: decrypt with unwrapped key failed: %v", id, err)
				return
			}

			values := map[string]string{"bp": "120/80", "hr": "64", "spo2": "98"}
			recs, err := svc.EncryptFields(context.Background(), values, "r1", unwrapped)
			if err != nil {
				t.Errorf("goroutine %d: batch encrypt failed: %v", id, err)
				return
			}
			if _, err := svc.DecryptFields(context.Background(), recs, "r1", unwrapped); err != nil {
				t.Errorf("goroutine %d: batch decrypt failed: %v", id, err)
				return
			}

			mu.Lock()
			if seen[dk.ID] {
				t.Errorf("duplicate data key id %q", dk.ID)
			}
			seen[dk.ID] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
}
