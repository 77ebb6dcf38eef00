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

// Package cpu implements the CPU collector: cores, overall utilization,
// CPU time by state, context switches, interrupts, load averages, and
// uptime, sampled from procfs. Per-core utilization is not computed: the
// per-core samples kept between ticks are not published.
package cpu

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/procfs"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// Collector samples /proc via github.com/prometheus/procfs.
type Collector struct {
	fs procfs.FS

	mu       sync.Mutex
	lastTime time.Time
	lastCPU  map[int64]procfs.CPUStat
}

// New opens the default procfs mount (/proc) and returns an error when it
// cannot be opened. After construction, a failed read makes Collect fail
// for that tick, which the scheduler treats as a transient error.
func New() (*Collector, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	return &Collector{fs: fs, lastCPU: make(map[int64]procfs.CPUStat)}, nil
}

// Name implements collector.Collector.
func (c *Collector) Name() string { return "cpu" }

// Collect implements collector.Collector.
func (c *Collector) Collect(ctx context.Context, reg *registry.Registry, st *status.State) error {
	stat, err := c.fs.Stat()
	if err != nil {
		return err
	}
	load, err := c.fs.LoadAvg()
	if err != nil {
		return err
	}

	now := time.Now()
	c.mu.Lock()
	dt := now.Sub(c.lastTime).Seconds()
	prevTotal, havePrev := c.lastCPU[-1]
	cores := uint64(len(stat.CPU))
	c.lastTime = now

	totalDelta, utilPercent := cpuUtilPercent(prevTotal, stat.CPUTotal, dt, havePrev)
	_ = totalDelta

	for i, s := range stat.CPU {
		c.lastCPU[i] = s
	}
	c.lastCPU[-1] = stat.CPUTotal
	c.mu.Unlock()

	if err := reg.CounterAbsolute("cpu_context_switches_total", "context switches since boot", nil, float64(stat.ContextSwitches)); err != nil {
		return err
	}
	if err := reg.CounterAbsolute("cpu_interrupts_total", "interrupts since boot", nil, float64(stat.IRQTotal)); err != nil {
		return err
	}

	for name, seconds := range cpuStateSeconds(stat.CPUTotal) {
		if err := reg.CounterAbsolute("cpu_time_seconds_total", "cumulative CPU time by state", map[string]string{"state": name}, seconds); err != nil {
			return err
		}
	}

	if err := reg.GaugeSet("cpu_load1", "1-minute load average", nil, load.Load1); err != nil {
		return err
	}
	if err := reg.GaugeSet("cpu_load5", "5-minute load average", nil, load.Load5); err != nil {
		return err
	}
	if err := reg.GaugeSet("cpu_load15", "15-minute load average", nil, load.Load15); err != nil {
		return err
	}

	var uptime *uint64
	if stat.BootTime > 0 {
		v := uint64(now.Unix()) - stat.BootTime
		uptime = &v
	}

	var coresPtr *uint64
	if cores > 0 {
		coresPtr = &cores
	}
	var utilPtr *float64
	if havePrev {
		utilPtr = &utilPercent
	}
	load5 := load.Load5
	load15 := load.Load15

	st.SetCPUSummary(status.CPUSummary{
		Cores:         coresPtr,
		UtilPercent:   utilPtr,
		LoadAvg1m:     load.Load1,
		LoadAvg5m:     &load5,
		LoadAvg15m:    &load15,
		UptimeSeconds: uptime,
	})

	return nil
}

// cpuUtilPercent derives instantaneous CPU utilization from the delta
// between two cumulative CPUStat samples.
func cpuUtilPercent(prev, cur procfs.CPUStat, dt float64, havePrev bool) (totalDelta, percent float64) {
	if !havePrev || dt <= 0 {
		return 0, 0
	}
	prevTotal := prev.User + prev.Nice + prev.System + prev.Idle + prev.Iowait + prev.IRQ + prev.SoftIRQ + prev.Steal
	curTotal := cur.User + cur.Nice + cur.System + cur.Idle + cur.Iowait + cur.IRQ + cur.SoftIRQ + cur.Steal
	totalDelta = curTotal - prevTotal
	if totalDelta <= 0 {
		return totalDelta, 0
	}
	idleDelta := cur.Idle - prev.Idle
	busy := totalDelta - idleDelta
	percent = (busy / totalDelta) * 100.0
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return totalDelta, percent
}

func cpuStateSeconds(s procfs.CPUStat) map[string]float64 {
	return map[string]float64{
		"user":    s.User,
		"system":  s.System,
		"idle":    s.Idle,
		"iowait":  s.Iowait,
		"irq":     s.IRQ,
		"softirq": s.SoftIRQ,
	}
}
