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

// MappedPfcDict pairs a front-coded string dictionary with a wavelet
// tree permutation, so that external ids (stable across merges) can be
// translated to and from strings via an intermediate local dictionary
// index: external id -> wavelet lookup -> local index -> dict.Get.
type MappedPfcDict struct {
	inner *PfcDict
	wt    *WaveletTree
}

// NewMappedPfcDict pairs an already-open dictionary and wavelet tree.
// The two must agree in length.
func NewMappedPfcDict(inner *PfcDict, wt *WaveletTree) *MappedPfcDict {
	return &MappedPfcDict{inner: inner, wt: wt}
}

// Len returns the number of entries.
func (m *MappedPfcDict) Len() int { return m.inner.Count() }

// Get returns the string addressed by external id ix.
func (m *MappedPfcDict) Get(ix int) (string, error) {
	local, err := m.wt.LookupOne(ix)
	if err != nil {
		return "", err
	}
	return m.inner.Get(int(local))
}

// ID returns the external id of s, if present.
func (m *MappedPfcDict) ID(s string) (int, bool) {
	local, ok := m.inner.ID(s)
	if !ok {
		return 0, false
	}
	ix, err := m.wt.DecodeOne(uint64(local))
	if err != nil {
		return 0, false
	}
	return ix, true
}

// Close releases the underlying dictionary's memory-mapped file.
func (m *MappedPfcDict) Close() error {
	return m.inner.Close()
}
