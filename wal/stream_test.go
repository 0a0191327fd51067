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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildLog(t *testing.T, recs ...Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, r := range recs {
		b, err := Encode(r)
		require.NoError(t, err)
		buf.Write(b)
	}
	return buf.Bytes()
}

func TestStreamEmptyFileNavigation(t *testing.T) {
	s := NewStream(bytes.NewReader(nil))

	rec, err := s.Next()
	require.NoError(t, err)
	require.Nil(t, rec)

	rec, err = s.Previous()
	require.NoError(t, err)
	require.Nil(t, rec)

	pos, err := s.Pos()
	require.NoError(t, err)
	require.Zero(t, pos)
}

func TestStreamForwardIteration(t *testing.T) {
	r1 := &LabelSetRecord{ID: 1, Entries: []LabelSetEntry{{Label: "a", Layer: LayerAddress{1, 1, 1, 1, 1}}}}
	r2 := &CheckpointRecord{ID: 1}
	data := buildLog(t, r1, r2)

	s := NewStream(bytes.NewReader(data))

	got1, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, r1, got1)

	got2, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, r2, got2)

	got3, err := s.Next()
	require.NoError(t, err)
	require.Nil(t, got3)
}

func TestStreamWalkBackwards(t *testing.T) {
	r1 := &LabelSetRecord{ID: 1, Entries: []LabelSetEntry{{Label: "a", Layer: LayerAddress{1, 1, 1, 1, 1}}}}
	r2 := &CheckpointRecord{ID: 1}
	r3 := &LabelSetRecord{ID: 2, Entries: []LabelSetEntry{{Label: "b", Layer: LayerAddress{2, 2, 2, 2, 2}}}}
	data := buildLog(t, r1, r2, r3)

	rs := bytes.NewReader(data)
	_, err := rs.Seek(0, 2)
	require.NoError(t, err)
	s := NewStream(rs)

	var seen []Record
	_, err = WalkBackwards(s, func(rec Record) (struct{}, bool) {
		if rec == nil {
			return struct{}{}, true
		}
		seen = append(seen, rec)
		return struct{}{}, false
	})
	require.NoError(t, err)
	require.Equal(t, []Record{r3, r2, r1}, seen)
}

func TestStreamTruncatedTailIsIncomplete(t *testing.T) {
	torn := make([]byte, 5)

	rs := bytes.NewReader(torn)
	_, err := rs.Seek(0, 2)
	require.NoError(t, err)
	s := NewStream(rs)

	_, err = s.SeekPrevious()
	require.ErrorIs(t, err, ErrIncompleteRecord)
}

func TestStreamPeekPreviousDetectsTornFrame(t *testing.T) {
	r1 := &CheckpointRecord{ID: 1}
	data := buildLog(t, r1)
	torn := append(data, buildLog(t, &CheckpointRecord{ID: 2})[:5]...)

	rs := bytes.NewReader(torn)
	_, err := rs.Seek(0, 2)
	require.NoError(t, err)
	s := NewStream(rs)

	_, err = s.PeekPrevious()
	require.Error(t, err)
}
