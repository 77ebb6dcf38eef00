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

// Package disk implements the disk collector: per-mount total/used/free
// capacity via unix.Statfs, and per-block-device
// read/write bytes, ops, and IO-time via procfs diskstats. The root mount
// summary is echoed into the status state.
package disk

import (
	"context"
	"fmt"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// Collector samples filesystem capacity and block-device counters.
type Collector struct {
	fs     procfs.FS
	Mounts []string // filesystem paths to report capacity for; "/" is always included
}

// New opens the default procfs mount and configures the set of mount
// points to report capacity for.
func New(mounts ...string) (*Collector, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	if len(mounts) == 0 {
		mounts = []string{"/"}
	}
	return &Collector{fs: fs, Mounts: mounts}, nil
}

// Name implements collector.Collector.
func (c *Collector) Name() string { return "disk" }

// Collect implements collector.Collector.
func (c *Collector) Collect(ctx context.Context, reg *registry.Registry, st *status.State) error {
	var rootTotal, rootUsed *uint64

	for _, mount := range c.Mounts {
		var statfs unix.Statfs_t
		if err := unix.Statfs(mount, &statfs); err != nil {
			// A single unavailable mount is a partial failure, not a fatal
			// one; skip it and keep sampling the rest.
			continue
		}
		blockSize := uint64(statfs.Bsize)
		total := statfs.Blocks * blockSize
		free := statfs.Bfree * blockSize
		used := total - free

		labels := map[string]string{"mount": mount}
		if err := reg.GaugeSet("disk_total_bytes", "total filesystem capacity", labels, float64(total)); err != nil {
			return err
		}
		if err := reg.GaugeSet("disk_used_bytes", "used filesystem capacity", labels, float64(used)); err != nil {
			return err
		}
		if err := reg.GaugeSet("disk_free_bytes", "free filesystem capacity", labels, float64(free)); err != nil {
			return err
		}

		if mount == "/" {
			rootTotal, rootUsed = &total, &used
		}
	}

	diskstats, err := c.fs.Diskstats()
	if err != nil {
		return fmt.Errorf("disk: read diskstats: %w", err)
	}

	var rootIOTimeMs *uint64
	for _, d := range diskstats {
		labels := map[string]string{"device": d.DeviceName}
		if err := reg.CounterAbsolute("disk_read_bytes_total", "cumulative bytes read", labels, float64(d.ReadSectors)*512); err != nil {
			return err
		}
		if err := reg.CounterAbsolute("disk_write_bytes_total", "cumulative bytes written", labels, float64(d.WriteSectors)*512); err != nil {
			return err
		}
		if err := reg.CounterAbsolute("disk_read_ops_total", "cumulative read operations", labels, float64(d.ReadIOs)); err != nil {
			return err
		}
		if err := reg.CounterAbsolute("disk_write_ops_total", "cumulative write operations", labels, float64(d.WriteIOs)); err != nil {
			return err
		}
		if err := reg.CounterAbsolute("disk_io_time_ms_total", "cumulative IO time in milliseconds", labels, float64(d.IOsTotalTicks)); err != nil {
			return err
		}
		v := d.IOsTotalTicks
		rootIOTimeMs = &v
	}

	st.SetDiskSummary(status.DiskSummary{
		TotalBytes: rootTotal,
		UsedBytes:  rootUsed,
		IOTimeMs:   rootIOTimeMs,
	})

	return nil
}
