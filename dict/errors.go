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

import "github.com/pkg/errors"

var (
	// ErrNotSorted is returned by a PfcDict builder when an inserted
	// string does not sort after the previous one; front-coding requires
	// a strictly increasing input order.
	ErrNotSorted = errors.New("dict: strings must be added in sorted order")

	// ErrOutOfRange is returned by Get/LookupOne when an index or
	// position falls outside the structure's bounds.
	ErrOutOfRange = errors.New("dict: index out of range")

	// ErrEmptyMerge is returned by MergeDictionaryStack when given no
	// inputs to merge.
	ErrEmptyMerge = errors.New("dict: merge requires at least one input")
)
