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
	"context"
	"crypto/rand"
	"sort"
	"time"

	"github.com/bboreham/go-loser"
	"github.com/go-kit/log/level"
	"github.com/oklog/ulid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Input is one dictionary layer participating in a merge. Remap is
// non-nil for at most one input -- the slot carrying forward a prior
// merge's wavelet tree -- and instructs the merge to reuse that tree's
// decoded permutation as external ids for this input's strings instead
// of assigning fresh ones. Only slot 0 may carry a Remap; this mirrors
// how the layer stack always rebases the bottom-most (oldest, already
// merged) layer rather than any layer above it.
type Input struct {
	Dict  *PfcDict
	Remap *WaveletTree
}

type mergeEntry struct {
	str      string
	extID    uint64
	inputIdx int
}

// inputSeq adapts one Input into the loser tree's Sequence contract: a
// cursor that yields (string, external id) pairs in increasing string
// order, pre-computed once up front.
type inputSeq struct {
	dict     *PfcDict
	ids      []uint64
	inputIdx int
	idx      int
	cur      mergeEntry
	err      error
}

func (s *inputSeq) Next() bool {
	s.idx++
	if s.idx >= s.dict.Count() {
		return false
	}
	str, err := s.dict.Get(s.idx)
	if err != nil {
		s.err = err
		return false
	}
	s.cur = mergeEntry{str: str, extID: s.ids[s.idx], inputIdx: s.inputIdx}
	return true
}

// sentinel sorts after any valid dictionary string; it marks an
// exhausted input to the loser tree.
var sentinel = mergeEntry{str: "\xff\xff\xff\xff", inputIdx: -1}

// MergeDictionaryStack k-way merges the sorted string streams of inputs
// into a single new front-coded dictionary written to outBlocksPath/
// outOffsetsPath, and returns the wavelet tree recording which external
// id each merged string now carries.
//
// Non-remapped inputs are assigned fresh external ids by a running count
// over input order, which advances past every input (remapped or not) so
// later non-remapped inputs never collide with an earlier input's ids;
// the remapped input's own prior external ids pass through unchanged via
// its existing wavelet tree's Decode(). When the same string occurs in
// more than one input, the copy from the lowest-indexed input wins and
// the others are dropped, which leaves the surviving external ids with
// gaps; those are compacted to a dense [0, count) space (preserving
// their relative order) before the output wavelet tree is built, since
// the tree's value space must be dense for DecodeOne/Decode to address
// every local index.
func MergeDictionaryStack(inputs []Input, outBlocksPath, outOffsetsPath string) (*WaveletTree, int, error) {
	if len(inputs) == 0 {
		return nil, 0, ErrEmptyMerge
	}

	runID := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	level.Info(logger).Log("msg", "merge starting", "merge_id", runID, "inputs", len(inputs))

	for i, in := range inputs {
		if in.Remap != nil && i != 0 {
			return nil, 0, errors.New("dict: only the first input may carry a remap")
		}
	}

	counts := make([]int, len(inputs))
	g, _ := errgroup.WithContext(context.Background())
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			counts[i] = in.Dict.Count()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	idsPerInput := make([][]uint64, len(inputs))
	var offset uint64
	for i, in := range inputs {
		n := counts[i]
		ids := make([]uint64, n)
		if in.Remap != nil {
			copy(ids, in.Remap.Decode())
		} else {
			for j := 0; j < n; j++ {
				ids[j] = offset + uint64(j)
			}
		}
		offset += uint64(n)
		idsPerInput[i] = ids
	}

	seqs := make([]*inputSeq, len(inputs))
	for i, in := range inputs {
		seqs[i] = &inputSeq{dict: in.Dict, ids: idsPerInput[i], inputIdx: i, idx: -1}
	}

	tree := loser.New(
		seqs,
		sentinel,
		func(s *inputSeq) mergeEntry { return s.cur },
		func(a, b mergeEntry) bool { return a.str < b.str },
		func(s *inputSeq) {},
	)

	builder, err := CreatePfcDict(outBlocksPath, outOffsetsPath)
	if err != nil {
		return nil, 0, err
	}

	var indexes []uint64
	var pending mergeEntry
	havePending := false

	flush := func() error {
		if !havePending {
			return nil
		}
		if err := builder.Add(pending.str); err != nil {
			return err
		}
		indexes = append(indexes, pending.extID)
		return nil
	}

	for tree.Next() {
		e := tree.At()
		if havePending && e.str == pending.str {
			if e.inputIdx < pending.inputIdx {
				pending = e
			}
			continue
		}
		if err := flush(); err != nil {
			builder.Close()
			return nil, 0, err
		}
		pending = e
		havePending = true
	}
	if err := flush(); err != nil {
		builder.Close()
		return nil, 0, err
	}

	for _, s := range seqs {
		if s.err != nil {
			builder.Close()
			return nil, 0, s.err
		}
	}

	count, err := builder.Close()
	if err != nil {
		return nil, 0, err
	}

	// Deduplication drops the external ids of losing duplicates, so
	// indexes in general has gaps and is not a dense permutation of
	// [0, len(indexes)). Compact the surviving ids to a dense range
	// first, preserving their relative order, so every compacted id in
	// [0, count) is assigned to exactly one local index.
	sorted := make([]uint64, len(indexes))
	copy(sorted, indexes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	rank := make(map[uint64]uint64, len(sorted))
	for r, extID := range sorted {
		rank[extID] = uint64(r)
	}

	// The tree must answer LookupOne(compactedID) == localIndex (the
	// direction MappedPfcDict.Get needs), so it is built over the
	// inverse of the compacted ids: position compactedID holds value
	// localIndex, not the other way around.
	values := make([]uint64, len(indexes))
	for localIdx, extID := range indexes {
		values[rank[extID]] = uint64(localIdx)
	}
	var maxIdx uint64
	if n := len(indexes); n > 0 {
		maxIdx = uint64(n - 1)
	}
	wt := BuildWaveletTree(values, WidthFor(maxIdx))

	level.Info(logger).Log("msg", "merge complete", "merge_id", runID, "strings", count)
	return wt, count, nil
}
