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
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Writer is the sole append point for one WAL file. It holds the file's
// exclusive lock for its entire lifetime, so append order within a
// Writer's life is total and every append that returns nil error is
// durable on disk before the call returns.
type Writer struct {
	f      *LockedFile
	lastID uint32
	lastCp uint32
}

// OpenWriter opens path for exclusive append, recovering lastID and
// lastCp from the existing log (if any) so subsequent appends can be
// sequence-checked against it.
func OpenWriter(path string) (*Writer, error) {
	f, err := OpenExclusive(path)
	if err != nil {
		return nil, err
	}

	if _, err := f.Seek(0, 2); err != nil {
		f.Close()
		return nil, err
	}
	s := NewStream(f)

	lastID, err := GetLastID(s)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "recover last id")
	}
	if _, err := f.Seek(0, 2); err != nil {
		f.Close()
		return nil, err
	}
	lastCp, err := GetLastCheckpoint(s)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "recover last checkpoint")
	}

	if _, err := f.Seek(0, 2); err != nil {
		f.Close()
		return nil, err
	}

	return &Writer{f: f, lastID: lastID, lastCp: lastCp}, nil
}

// AppendLabelSet appends a LabelSetRecord binding labels with the given
// id. It returns (false, nil) without writing anything if id is not
// exactly one greater than the last record's id, since ids must form an
// unbroken sequence for recovery's checkpoint-stop logic to be sound.
func (w *Writer) AppendLabelSet(id uint32, labels map[string]LayerAddress) (bool, error) {
	if id != w.lastID+1 {
		return false, nil
	}

	entries := make([]LabelSetEntry, 0, len(labels))
	for label, layer := range labels {
		entries = append(entries, LabelSetEntry{Label: label, Layer: layer})
	}

	rec := &LabelSetRecord{ID: id, Entries: entries}
	buf, err := Encode(rec)
	if err != nil {
		return false, err
	}
	if err := w.write(buf); err != nil {
		return false, err
	}

	w.lastID = id
	level.Debug(logger).Log("msg", "appended label set", "id", id, "entries", len(entries))
	return true, nil
}

// AppendCheckpoint appends a CheckpointRecord. It returns (false, nil)
// without writing anything if checkpointID does not exceed the log's
// last checkpoint, since checkpoints must be monotonically increasing.
func (w *Writer) AppendCheckpoint(checkpointID uint32) (bool, error) {
	if checkpointID <= w.lastCp {
		return false, nil
	}

	rec := &CheckpointRecord{ID: checkpointID}
	buf, err := Encode(rec)
	if err != nil {
		return false, err
	}
	if err := w.write(buf); err != nil {
		return false, err
	}

	w.lastCp = checkpointID
	if checkpointID > w.lastID {
		w.lastID = checkpointID
	}
	level.Info(logger).Log("msg", "appended checkpoint", "id", checkpointID)
	return true, nil
}

func (w *Writer) write(buf []byte) error {
	if _, err := w.f.Write(buf); err != nil {
		return err
	}
	return w.f.Sync()
}

// Truncate cuts the file off at the writer's current position. It first
// checks with PeekPrevious that the frame ending at that position is
// intact, so the cut lands on a frame boundary; if the check fails, the
// error is returned and the file is not truncated. Truncate does not
// search for a torn tail.
func (w *Writer) Truncate() error {
	s := NewStream(w.f)
	pos, err := s.Pos()
	if err != nil {
		return err
	}
	if _, err := s.PeekPrevious(); err != nil {
		return err
	}
	if _, err := w.f.Seek(pos, 0); err != nil {
		return err
	}
	if err := w.f.Truncate(); err != nil {
		return err
	}
	level.Warn(logger).Log("msg", "truncated log", "truncate_offset", pos)
	return w.f.Sync()
}

// Close releases the writer's exclusive lock.
func (w *Writer) Close() error {
	return w.f.Close()
}
