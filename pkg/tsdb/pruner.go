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

package tsdb

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Pruner periodically enforces age and total-size bounds over a Sink's
// directory, dropping the oldest whole files first.
type Pruner struct {
	Dir             string
	Interval        time.Duration
	RetentionWindow time.Duration
	MaxDiskBytes    int64
}

// NewPruner constructs a Pruner over dir with the given bounds.
func NewPruner(dir string, interval, retention time.Duration, maxDiskBytes int64) *Pruner {
	return &Pruner{Dir: dir, Interval: interval, RetentionWindow: retention, MaxDiskBytes: maxDiskBytes}
}

// Run blocks, sweeping on Interval until ctx is canceled.
func (p *Pruner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.sweep(time.Now()); err != nil {
				slog.Warn("tsdb pruner sweep failed", "error", err)
			}
		}
	}
}

type storeFile struct {
	path string
	date time.Time
	size int64
}

// sweep removes files older than RetentionWindow relative to now, then —
// if the remaining total still exceeds MaxDiskBytes — removes the oldest
// remaining files until it fits.
func (p *Pruner) sweep(now time.Time) error {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	files := make([]storeFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		date, ok := dateFromFileName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, storeFile{path: filepath.Join(p.Dir, entry.Name()), date: date, size: info.Size()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].date.Before(files[j].date) })

	var kept []storeFile
	for _, f := range files {
		if p.RetentionWindow > 0 && now.Sub(f.date) > p.RetentionWindow {
			p.remove(f.path)
			continue
		}
		kept = append(kept, f)
	}

	if p.MaxDiskBytes <= 0 {
		return nil
	}

	var total int64
	for _, f := range kept {
		total += f.size
	}
	for i := 0; total > p.MaxDiskBytes && i < len(kept); i++ {
		p.remove(kept[i].path)
		total -= kept[i].size
	}
	return nil
}

func (p *Pruner) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("tsdb pruner failed to remove file", "path", path, "error", err)
		return
	}
	slog.Debug("tsdb pruner removed file", "path", path)
}
