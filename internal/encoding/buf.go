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

// Package encoding provides small binary encode/decode buffers, used by
// the dict package's front-coded dictionary. It mirrors the encbuf/decbuf helpers used
// throughout the store's index and WAL code: a reusable append-only byte
// buffer for encoding, and a cursor-over-a-slice for decoding, both with
// big-endian fixed-width and varint helpers plus a trailing CRC32 helper.
package encoding

import (
	"encoding/binary"
	"hash"
	"hash/crc32"

	"github.com/pkg/errors"
)

// Encbuf is a reusable append-only encode buffer.
type Encbuf struct {
	B []byte
}

func (e *Encbuf) Reset()    { e.B = e.B[:0] }
func (e *Encbuf) Get() []byte { return e.B }
func (e *Encbuf) Len() int    { return len(e.B) }

func (e *Encbuf) PutByte(c byte)    { e.B = append(e.B, c) }
func (e *Encbuf) PutBytes(b []byte) { e.B = append(e.B, b...) }
func (e *Encbuf) PutString(s string) { e.B = append(e.B, s...) }

func (e *Encbuf) PutBE32(x uint32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, x)
	e.B = append(e.B, b...)
}

func (e *Encbuf) PutBE64(x uint64) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, x)
	e.B = append(e.B, b...)
}

func (e *Encbuf) PutUvarint(x int)       { e.PutUvarint64(uint64(x)) }
func (e *Encbuf) PutUvarint64(x uint64) {
	b := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(b, x)
	e.B = append(e.B, b[:n]...)
}

// PutHash appends the CRC32 of everything written into e so far.
func (e *Encbuf) PutHash(h hash.Hash) {
	h.Reset()
	h.Write(e.B)
	e.B = h.Sum(e.B)
}

// Decbuf is a cursor over a byte slice with an accumulated error, in the
// style of the index reader's decbuf: once err is set, all further reads
// are no-ops that keep returning zero values.
type Decbuf struct {
	B []byte
	E error
}

func (d *Decbuf) Len() int { return len(d.B) }
func (d *Decbuf) Err() error { return d.E }

func (d *Decbuf) Get(l int) Decbuf {
	if d.E != nil {
		return Decbuf{E: d.E}
	}
	if len(d.B) < l {
		return Decbuf{E: errors.Wrap(ErrInvalidSize, "get")}
	}
	return Decbuf{B: d.B[:l]}
}

func (d *Decbuf) ReadByte() byte {
	if d.E != nil {
		return 0
	}
	if len(d.B) < 1 {
		d.E = errors.Wrap(ErrInvalidSize, "byte")
		return 0
	}
	b := d.B[0]
	d.B = d.B[1:]
	return b
}

func (d *Decbuf) ReadBE32() uint32 {
	if d.E != nil {
		return 0
	}
	if len(d.B) < 4 {
		d.E = errors.Wrap(ErrInvalidSize, "BE32")
		return 0
	}
	x := binary.BigEndian.Uint32(d.B)
	d.B = d.B[4:]
	return x
}

func (d *Decbuf) ReadBE64() uint64 {
	if d.E != nil {
		return 0
	}
	if len(d.B) < 8 {
		d.E = errors.Wrap(ErrInvalidSize, "BE64")
		return 0
	}
	x := binary.BigEndian.Uint64(d.B)
	d.B = d.B[8:]
	return x
}

func (d *Decbuf) ReadUvarint() uint64 {
	if d.E != nil {
		return 0
	}
	x, n := binary.Uvarint(d.B)
	if n <= 0 {
		d.E = errors.Wrap(ErrInvalidSize, "uvarint")
		return 0
	}
	d.B = d.B[n:]
	return x
}

// ReadUvarintStr reads a uvarint length prefix followed by that many
// bytes, in the style of the index reader's readUvarintStr.
func (d *Decbuf) ReadUvarintStr() string {
	l := d.ReadUvarint()
	if d.E != nil {
		return ""
	}
	b := d.Get(int(l))
	if b.E != nil {
		d.E = b.E
		return ""
	}
	d.B = d.B[l:]
	return string(b.B)
}

// ErrInvalidSize is returned when a Decbuf runs out of bytes mid-read.
var ErrInvalidSize = errors.New("invalid size")

// CRC32 returns a new IEEE polynomial CRC32 hash, matching the WAL
// envelope's checksum algorithm (spec requires CRC32-IEEE, not the
// Castagnoli variant used elsewhere in the teacher's index format).
func CRC32() hash.Hash32 {
	return crc32.NewIEEE()
}
