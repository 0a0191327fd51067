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
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// LockedFile is a *os.File held under an advisory flock. It is the
// minimal stand-in for the spec's external "file-lock facility": the
// lock is acquired by the constructor and released by Close, on every
// path, matching the scoped-acquisition contract in spec.md §5.
type LockedFile struct {
	*os.File
	exclusive bool
}

// OpenShared opens an existing path for reading under a shared
// (multi-reader) lock. A missing file is reported as ErrFileNotFound; it
// is not created.
func OpenShared(path string) (*LockedFile, error) {
	return openLocked(path, false)
}

// OpenExclusive opens path for reading and writing under an exclusive
// lock, creating it if it does not yet exist.
func OpenExclusive(path string) (*LockedFile, error) {
	return openLocked(path, true)
}

func openLocked(path string, exclusive bool) (*LockedFile, error) {
	mode := os.O_RDONLY
	if exclusive {
		mode = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, mode, 0666)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrFileNotFound, "%s", path)
		}
		return nil, err
	}

	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "flock %s", path)
	}

	return &LockedFile{File: f, exclusive: exclusive}, nil
}

// Close releases the lock and closes the underlying file descriptor,
// durably: it syncs before closing so a crash immediately after Close
// cannot lose data the caller believes is on disk.
func (f *LockedFile) Close() error {
	if err := f.File.Sync(); err != nil {
		f.File.Close()
		return err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		f.File.Close()
		return err
	}
	return f.File.Close()
}

// Truncate truncates the underlying file at its current cursor
// position, matching the spec's "truncate at current offset" contract.
func (f *LockedFile) Truncate() error {
	pos, err := f.Seek(0, os.SEEK_CUR)
	if err != nil {
		return err
	}
	return f.File.Truncate(pos)
}
