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

// LabelBinding is the recovered state of one label as of a point in the
// log: the id of the label-set record that last bound it, and the layer
// address it resolved to.
type LabelBinding struct {
	ID    uint32
	Layer LayerAddress
}

// GetLastCheckpoint walks backwards from the stream's current position
// (callers typically seek to EOF first) and returns the id of the most
// recent CheckpointRecord, or 0 if none is found before the start of the
// file.
func GetLastCheckpoint(s *Stream) (uint32, error) {
	return WalkBackwards(s, func(rec Record) (uint32, bool) {
		if rec == nil {
			return 0, true
		}
		if cp, ok := rec.(*CheckpointRecord); ok {
			return cp.ID, true
		}
		return 0, false
	})
}

// GetLastID returns the id of the most recent LabelSetRecord in the
// log, skipping past any trailing CheckpointRecords to find it. It
// falls back to the last checkpoint's id only when the log holds no
// LabelSetRecord at all, and to 0 when the log is empty.
func GetLastID(s *Stream) (uint32, error) {
	var lastCp uint32
	haveCp := false
	return WalkBackwards(s, func(rec Record) (uint32, bool) {
		switch r := rec.(type) {
		case nil:
			if haveCp {
				return lastCp, true
			}
			return 0, true
		case *LabelSetRecord:
			return r.ID, true
		case *CheckpointRecord:
			if !haveCp {
				haveCp = true
				lastCp = r.ID
			}
			return 0, false
		default:
			return 0, false
		}
	})
}

type recoveryState struct {
	checkpoint uint32
	haveCp     bool
	bindings   map[string]LabelBinding
	wanted     map[string]struct{}
}

// GetLabelsSinceLastCheckpoint walks backwards from the stream's current
// position and returns the bindings of every label named in wanted that
// was set since the last checkpoint, together with that checkpoint's id
// (0 if the log has never been checkpointed).
//
// Labels bound more than once since the checkpoint resolve to their most
// recent (highest-id) binding: walking backwards, the first LabelSet
// record to mention a label in this pass is chronologically the latest,
// so "first wins in reverse" is "latest wins".
func GetLabelsSinceLastCheckpoint(s *Stream, wanted map[string]struct{}) (map[string]LabelBinding, uint32, error) {
	st := &recoveryState{
		bindings: make(map[string]LabelBinding, len(wanted)),
		wanted:   wanted,
	}
	_, err := WalkBackwards(s, func(rec Record) (struct{}, bool) {
		return walkLabelsSinceCheckpoint(st, rec, false)
	})
	if err != nil {
		return nil, 0, err
	}
	return st.bindings, st.checkpoint, nil
}

// GetAllLabelsSinceLastCheckpoint is GetLabelsSinceLastCheckpoint without
// a label filter: every label bound since the last checkpoint is
// returned.
func GetAllLabelsSinceLastCheckpoint(s *Stream) (map[string]LabelBinding, uint32, error) {
	st := &recoveryState{
		bindings: make(map[string]LabelBinding),
	}
	_, err := WalkBackwards(s, func(rec Record) (struct{}, bool) {
		return walkLabelsSinceCheckpoint(st, rec, true)
	})
	if err != nil {
		return nil, 0, err
	}
	return st.bindings, st.checkpoint, nil
}

func walkLabelsSinceCheckpoint(st *recoveryState, rec Record, all bool) (struct{}, bool) {
	switch r := rec.(type) {
	case nil:
		return struct{}{}, true
	case *CheckpointRecord:
		if !st.haveCp {
			st.haveCp = true
			st.checkpoint = r.ID
		}
		return struct{}{}, false
	case *LabelSetRecord:
		if st.haveCp && r.ID <= st.checkpoint {
			return struct{}{}, true
		}
		for _, e := range r.Entries {
			if _, have := st.bindings[e.Label]; have {
				continue
			}
			if !all {
				if _, want := st.wanted[e.Label]; !want {
					continue
				}
			}
			st.bindings[e.Label] = LabelBinding{ID: r.ID, Layer: e.Layer}
		}
		return struct{}{}, false
	default:
		return struct{}{}, false
	}
}
