// pool.go: Scratch buffer pooling for authenticated decryption
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"sync"
)

const (
	// scratchSize is the initial capacity of pooled buffers; most PHI fields fit.
	scratchSize = 512
	// maxPooledScratch caps what goes back to the pool so one large file
	// does not pin memory for the process lifetime.
	maxPooledScratch = 64 * 1024
)

var scratchPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 0, scratchSize)
		return &buf // pointer avoids an allocation on Put (SA6002)
	},
}

// getScratch returns an empty buffer with at least n bytes of capacity.
func getScratch(n int) *[]byte {
	buf := scratchPool.Get().(*[]byte)
	if cap(*buf) < n {
		*buf = make([]byte, 0, n)
	}
	*buf = (*buf)[:0]
	return buf
}

// putScratch zeroes the whole capacity of buf and returns it to the pool.
// Plaintext passes through these buffers, so the wipe is unconditional.
func putScratch(buf *[]byte) {
	if buf == nil {
		return
	}
	full := (*buf)[:cap(*buf)]
	clearBuffer(full)
	if cap(full) > maxPooledScratch {
		return
	}
	*buf = full[:0]
	scratchPool.Put(buf)
}

// clearBuffer zeroes buf, unrolled by 8 for longer slices.
func clearBuffer(buf []byte) {
	if len(buf) <= 64 {
		for i := range buf {
			buf[i] = 0
		}
		return
	}

	i := 0
	for i < len(buf)-7 {
		buf[i] = 0
		buf[i+1] = 0
		buf[i+2] = 0
		buf[i+3] = 0
		buf[i+4] = 0
		buf[i+5] = 0
		buf[i+6] = 0
		buf[i+7] = 0
		i += 8
	}
	for i < len(buf) {
		buf[i] = 0
		i++
	}
}
