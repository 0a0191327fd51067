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

package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// RecordType identifies the kind of a framed WAL record.
type RecordType byte

const (
	RecordTypeLabelSet  RecordType = 0
	RecordTypeCheckpoint RecordType = 1
)

// LayerAddress is the opaque 5-word big-endian addressing of a layer in
// the store. It has no meaning to the WAL itself.
type LayerAddress [5]uint32

// LabelSetEntry pairs one label with the layer address it currently
// resolves to.
type LabelSetEntry struct {
	Label string
	Layer LayerAddress
}

// Record is implemented by LabelSetRecord and CheckpointRecord.
type Record interface {
	Type() RecordType
}

// LabelSetRecord groups label->layer bindings committed atomically to
// the log. ID is a monotonically increasing identifier; Entries order is
// not semantically meaningful (recovery keys by label).
type LabelSetRecord struct {
	ID      uint32
	Entries []LabelSetEntry
}

func (r *LabelSetRecord) Type() RecordType { return RecordTypeLabelSet }

// CheckpointRecord marks that all label bindings with ID <= this value
// have been durably promoted to the main label store.
type CheckpointRecord struct {
	ID uint32
}

func (r *CheckpointRecord) Type() RecordType { return RecordTypeCheckpoint }

const maxLabelSetEntries = 100

// Encode assembles the framed envelope for r: type || body || length ||
// crc32-ieee(type||body). Sizing invariants (entry count, label length)
// are programmer errors and panic, per the spec's error handling design;
// a duplicate label within a single record is a legitimate data error
// and is returned rather than panicked on.
func Encode(r Record) ([]byte, error) {
	switch rec := r.(type) {
	case *LabelSetRecord:
		body, err := encodeLabelSetBody(rec)
		if err != nil {
			return nil, err
		}
		return assembleEnvelope(byte(RecordTypeLabelSet), body), nil
	case *CheckpointRecord:
		return assembleEnvelope(byte(RecordTypeCheckpoint), encodeCheckpointBody(rec)), nil
	default:
		panic(fmt.Sprintf("wal: unknown record implementation %T", r))
	}
}

func assembleEnvelope(typ byte, body []byte) []byte {
	buf := make([]byte, 0, 1+len(body)+8)
	buf = append(buf, typ)
	buf = append(buf, body...)

	crc := crc32.ChecksumIEEE(buf)

	var tail [8]byte
	binary.BigEndian.PutUint32(tail[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(tail[4:8], crc)

	return append(buf, tail[:]...)
}

func encodeLabelSetBody(r *LabelSetRecord) ([]byte, error) {
	if len(r.Entries) == 0 {
		panic("wal: label set record must have at least one entry")
	}
	if len(r.Entries) > maxLabelSetEntries {
		panic("wal: label set record has more than 100 entries")
	}

	seen := make(map[string]struct{}, len(r.Entries))
	body := make([]byte, 0, 1+len(r.Entries)*32)
	body = append(body, byte(len(r.Entries)))

	for _, e := range r.Entries {
		if len(e.Label) == 0 || len(e.Label) > 255 {
			panic("wal: label must be 1..=255 bytes")
		}
		if _, ok := seen[e.Label]; ok {
			return nil, errors.Wrapf(ErrDuplicateLabel, "label %q", e.Label)
		}
		seen[e.Label] = struct{}{}

		body = append(body, byte(len(e.Label)))
		body = append(body, e.Label...)

		var layer [20]byte
		for i, w := range e.Layer {
			binary.BigEndian.PutUint32(layer[i*4:i*4+4], w)
		}
		body = append(body, layer[:]...)
	}

	var id [4]byte
	binary.BigEndian.PutUint32(id[:], r.ID)
	body = append(body, id[:]...)

	return body, nil
}

func encodeCheckpointBody(r *CheckpointRecord) []byte {
	var id [4]byte
	binary.BigEndian.PutUint32(id[:], r.ID)
	return id[:]
}

// Decoder incrementally decodes framed records from a growing byte
// stream. Bytes are fed with Feed, which may be called repeatedly as
// more data becomes available; the decoder never rewinds past a
// committed prefix. On a decode error the decoder is left unusable for
// the rest of the current frame -- construct a new Decoder (or call
// Reset) to resynchronize at the next byte boundary the caller chooses.
type Decoder struct {
	buf []byte
}

// NewDecoder returns a ready-to-use streaming decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset clears any buffered partial frame.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Feed appends p to the decoder's internal buffer and attempts to
// produce the next complete record. It returns (nil, nil) when more
// bytes are required. A non-nil error is terminal for the frame that
// was being assembled.
func (d *Decoder) Feed(p []byte) (Record, error) {
	d.buf = append(d.buf, p...)

	rec, n, err := decodeFrame(d.buf)
	if err != nil {
		d.buf = nil
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	d.buf = d.buf[n:]
	return rec, nil
}

// decodeFrame attempts to parse exactly one framed record from the head
// of buf. It returns (nil, 0, nil) when buf does not yet hold a full
// frame, (rec, n, nil) on success where n is the number of bytes the
// frame occupied, or (nil, 0, err) on a malformed frame.
func decodeFrame(buf []byte) (Record, int, error) {
	if len(buf) < 1 {
		return nil, 0, nil
	}
	switch RecordType(buf[0]) {
	case RecordTypeLabelSet:
		return decodeLabelSetFrame(buf)
	case RecordTypeCheckpoint:
		return decodeCheckpointFrame(buf)
	default:
		return nil, 0, errors.Wrapf(ErrUnknownRecordType, "type byte %d", buf[0])
	}
}

func decodeLabelSetFrame(buf []byte) (Record, int, error) {
	pos := 1
	if len(buf) < pos+1 {
		return nil, 0, nil
	}
	numEntries := buf[pos]
	if numEntries == 0 {
		return nil, 0, ErrZeroLabels
	}
	if int(numEntries) > maxLabelSetEntries {
		return nil, 0, ErrTooManyLabels
	}
	pos++

	entries := make([]LabelSetEntry, 0, numEntries)
	seen := make(map[string]struct{}, numEntries)

	for i := 0; i < int(numEntries); i++ {
		if len(buf) < pos+1 {
			return nil, 0, nil
		}
		labelLen := int(buf[pos])
		pos++

		need := pos + labelLen + 20
		if len(buf) < need {
			return nil, 0, nil
		}

		labelBytes := buf[pos : pos+labelLen]
		if !utf8.Valid(labelBytes) {
			return nil, 0, ErrLabelNotUTF8
		}
		label := string(labelBytes)
		if _, ok := seen[label]; ok {
			return nil, 0, errors.Wrapf(ErrDuplicateLabel, "label %q", label)
		}
		seen[label] = struct{}{}
		pos += labelLen

		var layer LayerAddress
		for j := 0; j < 5; j++ {
			layer[j] = binary.BigEndian.Uint32(buf[pos : pos+4])
			pos += 4
		}

		entries = append(entries, LabelSetEntry{Label: label, Layer: layer})
	}

	if len(buf) < pos+4 {
		return nil, 0, nil
	}
	id := binary.BigEndian.Uint32(buf[pos : pos+4])
	pos += 4

	bodyLen := pos - 1

	n, err := readTrailer(buf, pos, bodyLen)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, nil
	}

	return &LabelSetRecord{ID: id, Entries: entries}, pos + 8, nil
}

func decodeCheckpointFrame(buf []byte) (Record, int, error) {
	pos := 1
	if len(buf) < pos+4 {
		return nil, 0, nil
	}
	id := binary.BigEndian.Uint32(buf[pos : pos+4])
	pos += 4

	bodyLen := pos - 1

	n, err := readTrailer(buf, pos, bodyLen)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, nil
	}

	return &CheckpointRecord{ID: id}, pos + 8, nil
}

// readTrailer validates the length+crc trailer starting at buf[pos:].
// bodyLen is the already-parsed body length (type byte excluded). It
// returns (8, nil) on success, (0, nil) if buf is too short, or an
// error on a mismatch.
func readTrailer(buf []byte, pos, bodyLen int) (int, error) {
	if len(buf) < pos+8 {
		return 0, nil
	}
	length := binary.BigEndian.Uint32(buf[pos : pos+4])
	crc := binary.BigEndian.Uint32(buf[pos+4 : pos+8])

	if int(length) != bodyLen {
		return 0, ErrInvalidRecordLength
	}
	computed := crc32.ChecksumIEEE(buf[:pos])
	if computed != crc {
		return 0, ErrCrcFailure
	}
	return 8, nil
}
