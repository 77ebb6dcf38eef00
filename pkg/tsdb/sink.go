// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tsdb implements the agent's local time-series sink: an
// append-only, line-delimited record store on a filesystem path, with a
// periodic pruner enforcing age and total-size bounds.
//
// Records are one JSON object per line (`{ts_ms,series,labels,value}`),
// written into a file named by the UTC date of the write — pruning drops
// whole files, never truncates one mid-record, so a crash mid-write
// leaves at most the last line of the current day's file malformed. The
// package has no reader of its own.
//
// Failure to initialize the sink is non-fatal: New returns an error the
// caller logs, and the feature is disabled for the process lifetime.
package tsdb

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/esnode-io/esnode-core/pkg/errors"
	"github.com/esnode-io/esnode-core/pkg/registry"
)

// Record is one persisted sample.
type Record struct {
	TimestampMs int64   `json:"ts_ms"`
	Series      string  `json:"series"`
	Labels      string  `json:"labels"`
	Value       float64 `json:"value"`
}

// Sink appends registry samples to a directory of UTC-date-named files.
type Sink struct {
	dir string

	mu          sync.Mutex
	currentDate string
	file        *os.File
	writer      *bufio.Writer
}

// New creates the sink's root directory (if absent) and returns a Sink
// ready to accept writes. Returns a *errors.StructuredError classified
// ErrCodeConfiguration if dir cannot be created — the caller disables the
// feature rather than treating this as fatal.
func New(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeConfiguration,
			"tsdb: failed to create local store directory", err, map[string]any{"dir": dir})
	}
	return &Sink{dir: dir}, nil
}

// WriteSamples appends every sample in samples, stamped with nowUnixMs,
// to the file for today's UTC date. The whole call runs under a single
// lock, including opening a new day's file and flushing the buffered
// writer to disk.
func (s *Sink) WriteSamples(samples []registry.Sample, nowUnixMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rotateLocked(nowUnixMs); err != nil {
		return err
	}

	for _, sample := range samples {
		rec := Record{TimestampMs: nowUnixMs, Series: sample.Series, Labels: sample.Labels, Value: sample.Value}
		line, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "tsdb: failed to encode record", err)
		}
		if _, err := s.writer.Write(line); err != nil {
			return errors.Wrap(errors.ErrCodeTransient, "tsdb: failed to write record", err)
		}
		if err := s.writer.WriteByte('\n'); err != nil {
			return errors.Wrap(errors.ErrCodeTransient, "tsdb: failed to write record", err)
		}
	}
	return s.writer.Flush()
}

// rotateLocked opens today's file if the sink has rolled over since the
// last write, or hasn't opened anything yet. Callers must hold s.mu.
func (s *Sink) rotateLocked(nowUnixMs int64) error {
	date := dateString(nowUnixMs)
	if date == s.currentDate && s.file != nil {
		return nil
	}

	if s.file != nil {
		_ = s.writer.Flush()
		_ = s.file.Close()
	}

	path := filepath.Join(s.dir, date+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.WrapWithContext(errors.ErrCodeTransient,
			"tsdb: failed to open store file", err, map[string]any{"path": path})
	}

	s.currentDate = date
	s.file = f
	s.writer = bufio.NewWriter(f)
	return nil
}

// Close flushes and closes the currently open file, if any.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	_ = s.writer.Flush()
	err := s.file.Close()
	s.file = nil
	return err
}

func dateString(unixMs int64) string {
	return time.UnixMilli(unixMs).UTC().Format("2006-01-02")
}

func dateFromFileName(name string) (time.Time, bool) {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if ext != ".jsonl" {
		return time.Time{}, false
	}
	stamp := base[:len(base)-len(ext)]
	t, err := time.Parse("2006-01-02", stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
