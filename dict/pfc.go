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

// Package dict implements the merged mapped dictionary engine: a
// front-coded string dictionary (PfcDict) paired with a wavelet-tree
// permutation index (WaveletTree) that together map between external
// ids and strings, plus a k-way merge that builds a new dictionary pair
// out of several existing ones.
package dict

import (
	"encoding/binary"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/layergraph/store/internal/encoding"
)

// errChecksumMismatch is returned when the offsets file's trailing
// xxhash of the blocks file does not match the blocks file's actual
// content, meaning the two files were copied or truncated out of sync.
var errChecksumMismatch = errors.New("dict: blocks checksum mismatch")

// blockSize is the number of strings grouped under one full string in
// the front-coded blocks file; every blockSize-th string is stored in
// full, the rest as (shared-prefix-length, suffix).
const blockSize = 8

// PfcDict is a read-only front-coded dictionary over two memory-mapped
// files: blocks holds the encoded strings, offsets holds one uint64 per
// front-coding block pointing at that block's start in blocks.
type PfcDict struct {
	data    mmap.MMap
	offsets []uint64
	count   int
}

// OpenPfcDict memory-maps blocksPath and loads offsetsPath (a small,
// fully in-memory index: one entry per block, not per string).
func OpenPfcDict(blocksPath, offsetsPath string, count int) (*PfcDict, error) {
	bf, err := os.Open(blocksPath)
	if err != nil {
		return nil, err
	}
	defer bf.Close()

	data, err := mmap.Map(bf, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(offsetsPath)
	if err != nil {
		data.Unmap()
		return nil, err
	}
	if len(raw) < 8 || len(raw)%8 != 0 {
		data.Unmap()
		return nil, errors.New("dict: offsets file size not a multiple of 8")
	}

	wantSum := binary.BigEndian.Uint64(raw[len(raw)-8:])
	raw = raw[:len(raw)-8]
	if xxhash.Sum64(data) != wantSum {
		data.Unmap()
		return nil, errChecksumMismatch
	}

	offsets := make([]uint64, len(raw)/8)
	for i := range offsets {
		offsets[i] = binary.BigEndian.Uint64(raw[i*8 : i*8+8])
	}

	return &PfcDict{data: data, offsets: offsets, count: count}, nil
}

// Close unmaps the underlying blocks file.
func (d *PfcDict) Close() error {
	if d.data == nil {
		return nil
	}
	return d.data.Unmap()
}

// Count returns the number of strings in the dictionary.
func (d *PfcDict) Count() int { return d.count }

// Get returns the string at local index ix (0-based). It reconstructs
// forward from the start of ix's block, since every non-anchor string is
// stored only as a diff against its predecessor.
func (d *PfcDict) Get(ix int) (string, error) {
	if ix < 0 || ix >= d.count {
		return "", ErrOutOfRange
	}

	block := ix / blockSize
	if block >= len(d.offsets) {
		return "", ErrOutOfRange
	}
	pos := d.offsets[block]

	dec := encoding.Decbuf{B: d.data[pos:]}
	anchor := dec.ReadUvarintStr()
	if dec.Err() != nil {
		return "", dec.Err()
	}
	if ix%blockSize == 0 {
		return anchor, nil
	}

	cur := anchor
	for i := 0; i < ix%blockSize; i++ {
		shared := int(dec.ReadUvarint())
		suffix := dec.ReadUvarintStr()
		if dec.Err() != nil {
			return "", dec.Err()
		}
		cur = cur[:shared] + suffix
	}
	return cur, nil
}

// ID returns the local index of s, if present, via binary search over
// block anchors followed by a linear scan within the matching block.
// The dictionary must have been built from sorted input for this to be
// correct.
func (d *PfcDict) ID(s string) (int, bool) {
	lo, hi := 0, len(d.offsets)-1
	block := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		anchor, err := d.Get(mid * blockSize)
		if err != nil {
			return 0, false
		}
		if anchor <= s {
			block = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	for i := 0; i < blockSize; i++ {
		ix := block*blockSize + i
		if ix >= d.count {
			break
		}
		cur, err := d.Get(ix)
		if err != nil {
			return 0, false
		}
		if cur == s {
			return ix, true
		}
		if cur > s {
			break
		}
	}
	return 0, false
}

// PfcDictBuilder writes a new front-coded dictionary. Strings must be
// added in strictly increasing sorted order.
type PfcDictBuilder struct {
	blocks  *os.File
	offsets *os.File
	prev    string
	n       int
	enc     encoding.Encbuf
	pos     uint64
	hasher  *xxhash.Digest
}

// CreatePfcDict truncates/creates blocksPath and offsetsPath for writing.
func CreatePfcDict(blocksPath, offsetsPath string) (*PfcDictBuilder, error) {
	bf, err := os.Create(blocksPath)
	if err != nil {
		return nil, err
	}
	of, err := os.Create(offsetsPath)
	if err != nil {
		bf.Close()
		return nil, err
	}
	return &PfcDictBuilder{blocks: bf, offsets: of, hasher: xxhash.New()}, nil
}

// Add appends s, which must sort strictly after every previously added
// string.
func (b *PfcDictBuilder) Add(s string) error {
	if b.n > 0 && s <= b.prev {
		return ErrNotSorted
	}

	if b.n%blockSize == 0 {
		if b.enc.Len() > 0 {
			if err := b.flushBlock(); err != nil {
				return err
			}
		}
		var off [8]byte
		binary.BigEndian.PutUint64(off[:], b.pos)
		if _, err := b.offsets.Write(off[:]); err != nil {
			return err
		}
		b.enc.Reset()
		b.enc.PutUvarint(len(s))
		b.enc.PutString(s)
	} else {
		shared := commonPrefixLen(b.prev, s)
		b.enc.PutUvarint(shared)
		suffix := s[shared:]
		b.enc.PutUvarint(len(suffix))
		b.enc.PutString(suffix)
	}

	b.prev = s
	b.n++
	return nil
}

func (b *PfcDictBuilder) flushBlock() error {
	buf := b.enc.Get()
	n, err := b.blocks.Write(buf)
	if err != nil {
		return err
	}
	b.hasher.Write(buf)
	b.pos += uint64(n)
	return nil
}

// Close flushes the final partial block, appends an xxhash64 checksum
// of the blocks file to the end of the offsets file (so a later
// OpenPfcDict can detect the two files having drifted out of sync), and
// closes both files, returning the total string count written.
func (b *PfcDictBuilder) Close() (int, error) {
	if b.enc.Len() > 0 {
		if err := b.flushBlock(); err != nil {
			return 0, err
		}
	}
	if err := b.blocks.Close(); err != nil {
		return 0, err
	}

	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], b.hasher.Sum64())
	if _, err := b.offsets.Write(sum[:]); err != nil {
		return 0, err
	}
	if err := b.offsets.Close(); err != nil {
		return 0, err
	}
	return b.n, nil
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
