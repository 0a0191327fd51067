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

// Package obslog wraps go-kit/log the way the teacher's binaries set it
// up: a leveled logger writing logfmt to stderr, with timestamp and
// caller fields attached once at construction instead of at every call
// site.
package obslog

import (
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// New returns a leveled logfmt logger. minLevel is one of "debug",
// "info", "warn", "error"; an unrecognized value defaults to "info".
func New(minLevel string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var opt level.Option
	switch minLevel {
	case "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}
	return level.NewFilter(logger, opt)
}

// NewNop returns a logger that discards everything, for tests and
// callers that don't want operational logging.
func NewNop() log.Logger {
	return log.NewNopLogger()
}
