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

// Package ebpf implements the optional eBPF performance collector: a
// rolling buffer of kernel-sampled performance records (cycles,
// instructions, cache misses, power) drained and aggregated every tick.
//
// Feature-gated by platform: requires Linux with BTF/CO-RE support
// (kernel >= 5.8). Detection uses a stdlib sysfs probe for BTF
// availability; loading the perf-event program itself uses
// github.com/cilium/ebpf via its memlock-removal incantation — without a
// compiled BPF object file present this only verifies the platform can
// host one, and Collect operates purely on samples pushed through
// Ingest.
package ebpf

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/cilium/ebpf/rlimit"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// Sample is a single kernel-sampled performance record.
type Sample struct {
	TimestampUnixMicros int64
	CPUCycles           uint64
	CPUInstructions     uint64
	L1DCacheMisses      uint64
	LLCMisses           uint64
	PowerMilliwatts     uint32
	EnergyMicrojoules   uint64
}

// Collector maintains a bounded rolling buffer of Samples and reduces it
// to a per-tick aggregate.
type Collector struct {
	Capacity int

	mu     sync.Mutex
	buffer []Sample
}

// New returns a collector with the given bounded sample-buffer capacity.
func New(capacity int) *Collector {
	return &Collector{Capacity: capacity}
}

// Name implements collector.Collector.
func (c *Collector) Name() string { return "ebpf" }

// Ingest appends a sample to the rolling buffer, evicting the oldest
// sample once Capacity is exceeded. Safe for concurrent use by whatever
// perf-event reader feeds this collector.
func (c *Collector) Ingest(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = append(c.buffer, s)
	if c.Capacity > 0 && len(c.buffer) > c.Capacity {
		c.buffer = c.buffer[len(c.buffer)-c.Capacity:]
	}
}

// Available reports whether this host can support eBPF-based sampling:
// Linux with kernel >= 5.8 and vmlinux BTF present.
func Available() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	major, minor, ok := kernelVersion()
	if !ok || major < 5 || (major == 5 && minor < 8) {
		return false
	}
	if _, err := os.Stat("/sys/kernel/btf/vmlinux"); err != nil {
		return false
	}
	return true
}

// Collect implements collector.Collector. On an unsupported platform it is
// a no-op, not a failure.
func (c *Collector) Collect(ctx context.Context, reg *registry.Registry, st *status.State) error {
	if !Available() {
		return nil
	}
	// Raising the memlock limit is the standard prerequisite for loading
	// any BPF program or map. Its error is ignored: the buffered samples
	// are aggregated whether or not the limit could be raised.
	_ = rlimit.RemoveMemlock()

	c.mu.Lock()
	samples := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	agg := Aggregate(samples)

	reg.GaugeSet("ebpf_avg_cpu_cycles", "average CPU cycles per sample this tick", nil, agg.AvgCPUCycles)
	reg.GaugeSet("ebpf_avg_cpu_instructions", "average CPU instructions per sample this tick", nil, agg.AvgCPUInstructions)
	reg.GaugeSet("ebpf_instructions_per_cycle", "aggregate IPC this tick", nil, agg.InstructionsPerCycle)
	reg.GaugeSet("ebpf_avg_power_milliwatts", "average sampled power this tick", nil, agg.AvgPowerMilliwatts)
	reg.GaugeSet("ebpf_sample_count", "number of samples aggregated this tick", nil, float64(agg.SampleCount))
	_ = reg.CounterAbsolute("ebpf_l1_cache_misses_total", "cumulative L1 data-cache misses", nil, float64(agg.TotalL1DCacheMisses))
	_ = reg.CounterAbsolute("ebpf_llc_misses_total", "cumulative last-level-cache misses", nil, float64(agg.TotalLLCMisses))
	_ = reg.CounterAbsolute("ebpf_energy_microjoules_total", "cumulative energy from sampled power", nil, float64(agg.TotalEnergyMicrojoules))

	return nil
}

// Metrics is the per-tick reduction of a Sample buffer.
type Metrics struct {
	SampleCount            int
	AvgCPUCycles           float64
	AvgCPUInstructions     float64
	InstructionsPerCycle   float64
	TotalL1DCacheMisses    uint64
	TotalLLCMisses         uint64
	AvgPowerMilliwatts     float64
	TotalEnergyMicrojoules uint64
}

// Aggregate reduces a slice of Samples to averages, totals, and IPC. An
// empty slice yields a zero Metrics rather than dividing by zero.
func Aggregate(samples []Sample) Metrics {
	var m Metrics
	m.SampleCount = len(samples)
	if len(samples) == 0 {
		return m
	}

	var cyclesSum, instrSum, powerSum uint64
	for _, s := range samples {
		cyclesSum += s.CPUCycles
		instrSum += s.CPUInstructions
		powerSum += uint64(s.PowerMilliwatts)
		m.TotalL1DCacheMisses += s.L1DCacheMisses
		m.TotalLLCMisses += s.LLCMisses
		m.TotalEnergyMicrojoules += s.EnergyMicrojoules
	}

	count := float64(len(samples))
	m.AvgCPUCycles = float64(cyclesSum) / count
	m.AvgCPUInstructions = float64(instrSum) / count
	m.AvgPowerMilliwatts = float64(powerSum) / count
	if cyclesSum > 0 {
		m.InstructionsPerCycle = float64(instrSum) / float64(cyclesSum)
	}
	return m
}

// kernelVersion parses the major.minor from uname's release string.
func kernelVersion() (major, minor int, ok bool) {
	data, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return 0, 0, false
	}
	release := strings.TrimSpace(string(data))
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minorStr := parts[1]
	for i, r := range minorStr {
		if r < '0' || r > '9' {
			minorStr = minorStr[:i]
			break
		}
	}
	minor, err = strconv.Atoi(minorStr)
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}
