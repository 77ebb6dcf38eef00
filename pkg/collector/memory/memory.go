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

// Package memory implements the memory collector: total/used/
// free/available/buffers/cached, swap total/used/free, and page-in/out
// bytes, sampled from procfs.
package memory

import (
	"context"

	"github.com/prometheus/procfs"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// Collector samples /proc/meminfo and /proc/vmstat.
type Collector struct {
	fs procfs.FS
}

// New opens the default procfs mount.
func New() (*Collector, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	return &Collector{fs: fs}, nil
}

// Name implements collector.Collector.
func (c *Collector) Name() string { return "memory" }

// Collect implements collector.Collector.
func (c *Collector) Collect(ctx context.Context, reg *registry.Registry, st *status.State) error {
	mem, err := c.fs.Meminfo()
	if err != nil {
		return err
	}

	const kb = 1024.0

	set := func(name, help string, kb *uint64) *uint64 {
		if kb == nil {
			return nil
		}
		bytes := *kb * 1024
		_ = reg.GaugeSet(name, help, nil, float64(bytes))
		return &bytes
	}

	total := set("memory_total_bytes", "total physical memory", mem.MemTotal)
	free := set("memory_free_bytes", "free physical memory", mem.MemFree)
	avail := set("memory_available_bytes", "estimated available memory", mem.MemAvailable)
	buffers := set("memory_buffers_bytes", "buffer cache", mem.Buffers)
	cached := set("memory_cached_bytes", "page cache", mem.Cached)
	swapTotal := set("memory_swap_total_bytes", "total swap", mem.SwapTotal)
	swapFree := set("memory_swap_free_bytes", "free swap", mem.SwapFree)

	used := usedBytes(total, free, buffers, cached)
	if used != nil {
		_ = reg.GaugeSet("memory_used_bytes", "used physical memory", nil, float64(*used))
	}

	swapUsed := deltaBytes(swapTotal, swapFree)
	if swapUsed != nil {
		_ = reg.GaugeSet("memory_swap_used_bytes", "used swap", nil, float64(*swapUsed))
	}

	if mem.Pgpgin != nil {
		if err := reg.CounterAbsolute("memory_page_in_bytes_total", "cumulative page-in bytes", nil, float64(*mem.Pgpgin)*kb); err != nil {
			return err
		}
	}
	if mem.Pgpgout != nil {
		if err := reg.CounterAbsolute("memory_page_out_bytes_total", "cumulative page-out bytes", nil, float64(*mem.Pgpgout)*kb); err != nil {
			return err
		}
	}

	_ = avail // exported directly above; kept for clarity of intent

	st.SetMemorySummary(status.MemorySummary{
		TotalBytes:    total,
		UsedBytes:     used,
		FreeBytes:     free,
		SwapUsedBytes: swapUsed,
	})

	return nil
}

// usedBytes computes physical memory in active use: total minus free,
// buffers, and cache. A missing total or free yields an unknown (nil)
// result rather than a misleading zero; missing buffers or cache count as
// zero.
func usedBytes(total, free, buffers, cached *uint64) *uint64 {
	if total == nil || free == nil {
		return nil
	}
	v := *total - *free
	if buffers != nil {
		v -= *buffers
	}
	if cached != nil {
		v -= *cached
	}
	return &v
}

// deltaBytes computes a - b when both are known.
func deltaBytes(a, b *uint64) *uint64 {
	if a == nil || b == nil {
		return nil
	}
	v := *a - *b
	return &v
}
