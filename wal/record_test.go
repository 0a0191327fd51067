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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeLabelSet(t *testing.T) {
	rec := &LabelSetRecord{
		ID: 1,
		Entries: []LabelSetEntry{
			{Label: "rdf:type", Layer: LayerAddress{1, 2, 3, 4, 5}},
			{Label: "name", Layer: LayerAddress{9, 8, 7, 6, 5}},
		},
	}

	buf, err := Encode(rec)
	require.NoError(t, err)

	dec := NewDecoder()
	got, err := dec.Feed(buf)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestEncodeDecodeCheckpoint(t *testing.T) {
	rec := &CheckpointRecord{ID: 42}
	buf, err := Encode(rec)
	require.NoError(t, err)

	dec := NewDecoder()
	got, err := dec.Feed(buf)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestDecoderFeedsIncrementally(t *testing.T) {
	rec := &LabelSetRecord{
		ID:      7,
		Entries: []LabelSetEntry{{Label: "x", Layer: LayerAddress{1, 1, 1, 1, 1}}},
	}
	buf, err := Encode(rec)
	require.NoError(t, err)

	dec := NewDecoder()
	var got Record
	for i := 0; i < len(buf); i++ {
		got, err = dec.Feed(buf[i : i+1])
		require.NoError(t, err)
		if i < len(buf)-1 {
			require.Nil(t, got)
		}
	}
	require.Equal(t, rec, got)
}

func TestEncodeDuplicateLabelRejected(t *testing.T) {
	rec := &LabelSetRecord{
		ID: 1,
		Entries: []LabelSetEntry{
			{Label: "dup", Layer: LayerAddress{1, 1, 1, 1, 1}},
			{Label: "dup", Layer: LayerAddress{2, 2, 2, 2, 2}},
		},
	}
	_, err := Encode(rec)
	require.ErrorIs(t, err, ErrDuplicateLabel)
}

func TestEncodeZeroEntriesPanics(t *testing.T) {
	require.Panics(t, func() {
		_, _ = Encode(&LabelSetRecord{ID: 1})
	})
}

func TestDecodeCorruptCrcFails(t *testing.T) {
	rec := &CheckpointRecord{ID: 1}
	buf, err := Encode(rec)
	require.NoError(t, err)
	buf[len(buf)-1] ^= 0xFF

	dec := NewDecoder()
	_, err = dec.Feed(buf)
	require.ErrorIs(t, err, ErrCrcFailure)
}

func TestDecodeUnknownRecordType(t *testing.T) {
	dec := NewDecoder()
	_, err := dec.Feed([]byte{0xEE, 0, 0, 0, 0, 0, 0, 0, 0})
	require.ErrorIs(t, err, ErrUnknownRecordType)
}
