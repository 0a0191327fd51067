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
	"github.com/go-kit/log"

	"github.com/layergraph/store/internal/obslog"
)

// logger is package-global the way the teacher's wal.go takes a logger
// in through its SegmentWAL constructor; callers that want append and
// truncate events logged call SetLogger once at startup, everything
// else defaults to discarding them.
var logger log.Logger = obslog.NewNop()

// SetLogger installs the logger used for Writer append/truncate events.
func SetLogger(l log.Logger) {
	if l == nil {
		l = obslog.NewNop()
	}
	logger = l
}
