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

import "github.com/pkg/errors"

// Error taxonomy surfaced to callers, as specified by the WAL framing
// contract. Values are compared with errors.Is; richer context is added
// with errors.Wrap/Wrapf at the call site in the teacher's style.
var (
	ErrFileNotFound       = errors.New("wal: file not found")
	ErrIncompleteRecord   = errors.New("wal: incomplete record")
	ErrUnknownRecordType  = errors.New("wal: unknown record type")
	ErrLabelNotUTF8       = errors.New("wal: label is not valid utf-8")
	ErrZeroLabels         = errors.New("wal: label set record has zero entries")
	ErrTooManyLabels      = errors.New("wal: label set record has more than 100 entries")
	ErrDuplicateLabel     = errors.New("wal: duplicate label in label set record")
	ErrInvalidRecordLength = errors.New("wal: stored record length does not match body")
	ErrCrcFailure         = errors.New("wal: crc32 checksum mismatch")
)
