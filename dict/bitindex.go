// Copyright 2017 The Prometheus Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dict

import "math/bits"

// rankSelect is an in-memory rank index (rank1/rank0; no select) over a
// fixed-width-coded bit sequence, built once and then queried read-only. It is small
// enough (one array of popcounts per 64-bit word) that the pack's
// mmap-based file layout is not needed for it; the wavelet tree's
// top-level node count is bounded by the symbol alphabet's bit width,
// not by the document count.
type rankSelect struct {
	words []uint64
	n     int
	// cum[i] is the number of set bits in words[0:i].
	cum []uint32
}

func newRankSelect(n int) *rankSelect {
	return &rankSelect{words: make([]uint64, (n+63)/64), n: n}
}

func (r *rankSelect) set(i int) {
	r.words[i/64] |= 1 << uint(i%64)
}

func (r *rankSelect) get(i int) bool {
	return r.words[i/64]&(1<<uint(i%64)) != 0
}

// build computes prefix popcounts. Call once after all bits are set.
func (r *rankSelect) build() {
	r.cum = make([]uint32, len(r.words)+1)
	var total uint32
	for i, w := range r.words {
		r.cum[i] = total
		total += uint32(bits.OnesCount64(w))
	}
	r.cum[len(r.words)] = total
}

// rank1 returns the number of set bits in [0, i).
func (r *rankSelect) rank1(i int) int {
	word := i / 64
	bit := uint(i % 64)
	n := int(r.cum[word])
	if bit > 0 {
		n += bits.OnesCount64(r.words[word] & ((1 << bit) - 1))
	}
	return n
}

func (r *rankSelect) rank0(i int) int {
	return i - r.rank1(i)
}
