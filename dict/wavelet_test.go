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

func TestWaveletTreeLookupAndDecode(t *testing.T) {
	values := []uint64{3, 0, 2, 1, 4}
	wt := BuildWaveletTree(values, WidthFor(4))

	for pos, v := range values {
		got, err := wt.LookupOne(pos)
		require.NoError(t, err)
		require.Equal(t, v, got)

		p, err := wt.DecodeOne(v)
		require.NoError(t, err)
		require.Equal(t, pos, p)
	}

	require.Equal(t, []uint64{1, 3, 2, 0, 4}, wt.Decode())
}

func TestWaveletTreeSaveLoad(t *testing.T) {
	values := []uint64{5, 4, 3, 2, 1, 0}
	wt := BuildWaveletTree(values, WidthFor(5))

	path := filepath.Join(t.TempDir(), "wavelet")
	require.NoError(t, wt.Save(path))

	loaded, err := LoadWaveletTree(path)
	require.NoError(t, err)

	for pos := range values {
		want, err := wt.LookupOne(pos)
		require.NoError(t, err)
		got, err := loaded.LookupOne(pos)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}
