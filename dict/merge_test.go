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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeDisjointDictionaries(t *testing.T) {
	a := buildPfc(t, []string{"alpha", "charlie", "echo"})
	b := buildPfc(t, []string{"bravo", "delta", "foxtrot"})

	dir := t.TempDir()
	wt, count, err := MergeDictionaryStack(
		[]Input{{Dict: a}, {Dict: b}},
		filepath.Join(dir, "merged-blocks"),
		filepath.Join(dir, "merged-offsets"),
	)
	require.NoError(t, err)
	require.Equal(t, 6, count)

	merged, err := OpenPfcDict(filepath.Join(dir, "merged-blocks"), filepath.Join(dir, "merged-offsets"), count)
	require.NoError(t, err)
	defer merged.Close()

	wantOrder := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}
	for i, s := range wantOrder {
		got, err := merged.Get(i)
		require.NoError(t, err)
		require.Equal(t, s, got)
	}

	m := NewMappedPfcDict(merged, wt)
	aliceID, ok := m.ID("alpha")
	require.True(t, ok)
	require.EqualValues(t, 0, aliceID) // first entry of input 0

	bravoID, ok := m.ID("bravo")
	require.True(t, ok)
	require.EqualValues(t, 3, bravoID) // first entry of input 1, offset by len(a)==3
}

func TestMergeDuplicateStringLowestInputWins(t *testing.T) {
	a := buildPfc(t, []string{"alpha", "shared"})
	b := buildPfc(t, []string{"shared", "zulu"})

	dir := t.TempDir()
	wt, count, err := MergeDictionaryStack(
		[]Input{{Dict: a}, {Dict: b}},
		filepath.Join(dir, "merged-blocks"),
		filepath.Join(dir, "merged-offsets"),
	)
	require.NoError(t, err)
	require.Equal(t, 3, count) // "shared" deduplicated

	merged, err := OpenPfcDict(filepath.Join(dir, "merged-blocks"), filepath.Join(dir, "merged-offsets"), count)
	require.NoError(t, err)
	defer merged.Close()

	m := NewMappedPfcDict(merged, wt)
	sharedID, ok := m.ID("shared")
	require.True(t, ok)
	require.EqualValues(t, 1, sharedID) // input 0's external id for "shared" (index 1 in a)
}

func TestMergePreservesRemappedExternalIDs(t *testing.T) {
	base := buildPfc(t, []string{"alpha", "bravo", "charlie"})
	// A prior merge left alpha/bravo/charlie (local indexes 0/1/2) holding
	// external ids 2/0/1 respectively. A wavelet tree answers
	// LookupOne(externalID) == localIndex, so built "at position externalID,
	// store localIndex" the values array is indexed by external id:
	// values[0]=1 (bravo), values[1]=2 (charlie), values[2]=0 (alpha).
	prior := BuildWaveletTree([]uint64{1, 2, 0}, WidthFor(2))

	incoming := buildPfc(t, []string{"delta"})

	dir := t.TempDir()
	wt, count, err := MergeDictionaryStack(
		[]Input{{Dict: base, Remap: prior}, {Dict: incoming}},
		filepath.Join(dir, "merged-blocks"),
		filepath.Join(dir, "merged-offsets"),
	)
	require.NoError(t, err)
	require.Equal(t, 4, count)

	merged, err := OpenPfcDict(filepath.Join(dir, "merged-blocks"), filepath.Join(dir, "merged-offsets"), count)
	require.NoError(t, err)
	defer merged.Close()

	m := NewMappedPfcDict(merged, wt)

	id, ok := m.ID("alpha")
	require.True(t, ok)
	require.EqualValues(t, 2, id)

	id, ok = m.ID("bravo")
	require.True(t, ok)
	require.EqualValues(t, 0, id)

	id, ok = m.ID("charlie")
	require.True(t, ok)
	require.EqualValues(t, 1, id)

	id, ok = m.ID("delta")
	require.True(t, ok)
	require.EqualValues(t, 3, id) // delta's fresh id continues the running count across every prior input, remapped or not
}

func TestMergeRejectsEmptyInputs(t *testing.T) {
	dir := t.TempDir()
	_, _, err := MergeDictionaryStack(nil, filepath.Join(dir, "b"), filepath.Join(dir, "o"))
	require.ErrorIs(t, err, ErrEmptyMerge)
}
