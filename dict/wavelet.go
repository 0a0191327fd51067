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

import (
	"encoding/binary"
	"math/bits"
	"os"

	"github.com/golang/snappy"
)

// WaveletTree is a wavelet-matrix permutation index: given a position it
// returns the value stored there (LookupOne, the forward direction used
// by id->string lookups), and given a value it returns the position that
// holds it (DecodeOne/Decode, the reverse direction used when a merge
// carries a prior wavelet tree's permutation forward unchanged).
//
// The forward direction is answered with the standard wavelet-matrix
// rank walk. The reverse direction is answered from a stored inverse
// array built once at construction time rather than a select structure:
// values here form a permutation of [0, n), so the inverse is a single
// n-length array and needs no extra index machinery to query.
type WaveletTree struct {
	levels  []rankSelect
	zeros   []int // zeros[l] = count of 0-bits at level l
	width   int
	n       int
	inverse []uint64 // inverse[v] = position p such that LookupOne(p) == v
}

// BuildWaveletTree constructs a wavelet matrix over values, which must
// be a permutation of [0, len(values)) -- i.e. every value in range
// appears exactly once. width is the bit width to encode (the caller
// computes it as ceil(log2(max(values)+1))).
func BuildWaveletTree(values []uint64, width int) *WaveletTree {
	n := len(values)
	wt := &WaveletTree{
		levels:  make([]rankSelect, width),
		zeros:   make([]int, width),
		width:   width,
		n:       n,
		inverse: make([]uint64, n),
	}

	cur := make([]uint64, n)
	copy(cur, values)

	for l := 0; l < width; l++ {
		shift := uint(width - 1 - l)
		rs := newRankSelect(n)
		zeroBuf := make([]uint64, 0, n)
		oneBuf := make([]uint64, 0, n)

		for i, v := range cur {
			bit := (v >> shift) & 1
			if bit == 1 {
				rs.set(i)
				oneBuf = append(oneBuf, v)
			} else {
				zeroBuf = append(zeroBuf, v)
			}
		}
		rs.build()
		wt.levels[l] = *rs
		wt.zeros[l] = len(zeroBuf)

		cur = append(zeroBuf, oneBuf...)
	}

	for p, v := range values {
		wt.inverse[v] = uint64(p)
	}

	return wt
}

// Len returns the number of positions (== number of distinct values)
// indexed by the tree.
func (wt *WaveletTree) Len() int { return wt.n }

// LookupOne returns the value stored at position pos.
func (wt *WaveletTree) LookupOne(pos int) (uint64, error) {
	if pos < 0 || pos >= wt.n {
		return 0, ErrOutOfRange
	}

	var value uint64
	for l := 0; l < wt.width; l++ {
		level := &wt.levels[l]
		bit := level.get(pos)
		value <<= 1
		if bit {
			value |= 1
			pos = wt.zeros[l] + level.rank1(pos)
		} else {
			pos = level.rank0(pos)
		}
	}
	return value, nil
}

// DecodeOne returns the position that holds value.
func (wt *WaveletTree) DecodeOne(value uint64) (int, error) {
	if value >= uint64(wt.n) {
		return 0, ErrOutOfRange
	}
	return int(wt.inverse[value]), nil
}

// Decode returns the full inverse permutation: Decode()[v] is the
// position that holds value v.
func (wt *WaveletTree) Decode() []uint64 {
	out := make([]uint64, len(wt.inverse))
	copy(out, wt.inverse)
	return out
}

// WidthFor returns the bit width needed to encode values in [0, maxVal].
func WidthFor(maxVal uint64) int {
	if maxVal == 0 {
		return 1
	}
	return bits.Len64(maxVal)
}

// Save persists the tree to a single file: a header (width, n), one
// snappy-compressed packed bitset per level, and the snappy-compressed
// inverse permutation array. Rank indexes are not stored; Load rebuilds
// them from the raw bits, which is cheap relative to the merge that
// produced the tree in the first place. The permutation bitsets compress
// well -- each level is close to evenly split between 0s and 1s locally
// but highly repetitive in long runs for the skewed id distributions a
// layer merge produces -- so compressing here trades a little CPU on
// load for meaningfully less space held by an index that is rebuilt on
// every merge.
func (wt *WaveletTree) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(wt.width))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(wt.n))
	if _, err := f.Write(hdr[:]); err != nil {
		return err
	}

	writeBlock := func(raw []byte) error {
		compressed := snappy.Encode(nil, raw)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(compressed)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			return err
		}
		_, err := f.Write(compressed)
		return err
	}

	nbytes := (wt.n + 7) / 8
	for l := 0; l < wt.width; l++ {
		packed := make([]byte, nbytes)
		level := &wt.levels[l]
		for i := 0; i < wt.n; i++ {
			if level.get(i) {
				packed[i/8] |= 1 << uint(i%8)
			}
		}
		if err := writeBlock(packed); err != nil {
			return err
		}
	}

	invBuf := make([]byte, wt.n*8)
	for i, v := range wt.inverse {
		binary.BigEndian.PutUint64(invBuf[i*8:i*8+8], v)
	}
	return writeBlock(invBuf)
}

// LoadWaveletTree reads a tree previously written by Save.
func LoadWaveletTree(path string) (*WaveletTree, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < 8 {
		return nil, ErrOutOfRange
	}

	width := int(binary.BigEndian.Uint32(raw[0:4]))
	n := int(binary.BigEndian.Uint32(raw[4:8]))
	pos := 8

	readBlock := func(wantSize int) ([]byte, error) {
		if len(raw) < pos+4 {
			return nil, ErrOutOfRange
		}
		clen := int(binary.BigEndian.Uint32(raw[pos : pos+4]))
		pos += 4
		if len(raw) < pos+clen {
			return nil, ErrOutOfRange
		}
		compressed := raw[pos : pos+clen]
		pos += clen
		out, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, err
		}
		if len(out) != wantSize {
			return nil, ErrOutOfRange
		}
		return out, nil
	}

	nbytes := (n + 7) / 8
	wt := &WaveletTree{
		levels: make([]rankSelect, width),
		zeros:  make([]int, width),
		width:  width,
		n:      n,
	}

	for l := 0; l < width; l++ {
		packed, err := readBlock(nbytes)
		if err != nil {
			return nil, err
		}
		rs := newRankSelect(n)
		zeros := 0
		for i := 0; i < n; i++ {
			if packed[i/8]&(1<<uint(i%8)) != 0 {
				rs.set(i)
			} else {
				zeros++
			}
		}
		rs.build()
		wt.levels[l] = *rs
		wt.zeros[l] = zeros
	}

	invBuf, err := readBlock(n * 8)
	if err != nil {
		return nil, err
	}
	wt.inverse = make([]uint64, n)
	for i := range wt.inverse {
		wt.inverse[i] = binary.BigEndian.Uint64(invBuf[i*8 : i*8+8])
	}

	return wt, nil
}
