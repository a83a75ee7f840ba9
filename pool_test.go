// pool_test.go: Scratch buffer pooling tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"sync"
	"testing"
)

// TestScratchPoolBasic verifies get/put for several sizes
func TestScratchPoolBasic(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"Small buffer (32B)", 32},
		{"Default buffer (512B)", scratchSize},
		{"Large buffer (64KB)", 64 * 1024},
		{"Oversized buffer (128KB)", 128 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := getScratch(tt.size)
			if buf == nil {
				t.Fatal("getScratch returned nil")
			}
			if len(*buf) != 0 {
				t.Errorf("Expected empty buffer, got length %d", len(*buf))
			}
			if cap(*buf) < tt.size {
				t.Errorf("Buffer capacity %d < requested size %d", cap(*buf), tt.size)
			}

			*buf = append(*buf, make([]byte, tt.size)...)
			putScratch(buf)
		})
	}
}

// TestScratchPoolWipesOnPut verifies that putScratch zeroes the whole capacity
func TestScratchPoolWipesOnPut(t *testing.T) {
	buf := getScratch(64)
	*buf = append(*buf, []byte("patient ssn 123-45-6789")...)
	backing := (*buf)[:cap(*buf)]

	putScratch(buf)

	for i, b := range backing {
		if b != 0 {
			t.Fatalf("Buffer not zeroed at position %d: got %v, want 0", i, b)
		}
	}
}

// TestScratchPoolOversizedNotRetained verifies large buffers are wiped but dropped
func TestScratchPoolOversizedNotRetained(t *testing.T) {
	buf := getScratch(maxPooledScratch + 1)
	*buf = append(*buf, 0xFF)
	backing := (*buf)[:cap(*buf)]

	putScratch(buf)

	if backing[0] != 0 {
		t.Error("Oversized buffer was not zeroed")
	}
	putScratch(nil) // must not panic
}

// TestScratchPoolConcurrency verifies thread-safety
func TestScratchPoolConcurrency(t *testing.T) {
	const numGoroutines = 100
	const numOpsPerGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			for j := 0; j < numOpsPerGoroutine; j++ {
				small := getScratch(32)
				*small = append(*small, byte(id))
				putScratch(small)

				medium := getScratch(1024)
				*medium = append(*medium, byte(j))
				putScratch(medium)
			}
		}(i)
	}

	wg.Wait()
}

// TestClearBuffer covers the short and unrolled paths
func TestClearBuffer(t *testing.T) {
	for _, size := range []int{0, 1, 7, 64, 65, 71, 4096} {
		buf := make([]byte, size)
		for i := range buf {
			buf[i] = byte(i + 1)
		}
		clearBuffer(buf)
		for i, b := range buf {
			if b != 0 {
				t.Fatalf("size %d: byte %d not cleared", size, i)
			}
		}
	}
}

// TestOpenUsesFreshResult verifies decrypted output does not alias pooled memory
func TestOpenUsesFreshResult(t *testing.T) {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}

	env, err := seal(nil, key, []byte("vital signs"), nil, "k1")
	if err != nil {
		t.Fatalf("seal() error: %v", err)
	}

	first, err := open(key, env, nil)
	if err != nil {
		t.Fatalf("open() error: %v", err)
	}
	// Drive more traffic through the pool; first must be unaffected.
	for i := 0; i < 10; i++ {
		if _, err := open(key, env, nil); err != nil {
			t.Fatalf("open() error: %v", err)
		}
	}
	if string(first) != "vital signs" {
		t.Errorf("Result was modified through the pool: %q", first)
	}
}

// BenchmarkOpen measures decryption with pooled scratch buffers
func BenchmarkOpen(b *testing.B) {
	key := make([]byte, KeySize)
	env, err := seal(nil, key, make([]byte, 256), nil, "bench")
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := open(key, env, nil); err != nil {
			b.Fatal(err)
		}
	}
}
