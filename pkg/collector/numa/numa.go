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

// Package numa implements the NUMA collector: per-node memory
// total/free/used, the node's core list, page faults, and the
// inter-node distance matrix. Per-node CPU usage is not computed; each
// node summary's CPU percentage is left nil. Sourced from sysfs
// (/sys/devices/system/node), which prometheus/procfs does not expose;
// parsing follows procfs's own line-oriented key/value conventions.
package numa

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

const defaultSysfsRoot = "/sys/devices/system/node"

var nodeDirPattern = regexp.MustCompile(`^node(\d+)$`)

// Collector samples per-NUMA-node memory, CPU, and distance statistics
// from sysfs.
type Collector struct {
	// Root is the sysfs node directory, overridable in tests.
	Root string
}

// New returns a collector reading the standard sysfs NUMA tree.
func New() *Collector {
	return &Collector{Root: defaultSysfsRoot}
}

// Name implements collector.Collector.
func (c *Collector) Name() string { return "numa" }

// Collect implements collector.Collector.
func (c *Collector) Collect(ctx context.Context, reg *registry.Registry, st *status.State) error {
	nodes, err := c.listNodes()
	if err != nil {
		// No NUMA topology (single-node or virtualized hosts) is a normal
		// absence of the feature, not a collector failure.
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	summaries := make([]status.NUMANodeSummary, 0, len(nodes))
	distances := make(map[string][]uint32, len(nodes))

	for _, node := range nodes {
		labels := map[string]string{"node": strconv.Itoa(node)}

		mem, err := c.readMeminfo(node)
		if err != nil {
			return fmt.Errorf("numa: node%d meminfo: %w", node, err)
		}
		if total, ok := mem["MemTotal"]; ok {
			_ = reg.GaugeSet("numa_memory_total_bytes", "total memory on a NUMA node", labels, total*1024)
		}
		if free, ok := mem["MemFree"]; ok {
			_ = reg.GaugeSet("numa_memory_free_bytes", "free memory on a NUMA node", labels, free*1024)
		}
		var used *float64
		if total, ok := mem["MemTotal"]; ok {
			if free, ok2 := mem["MemFree"]; ok2 {
				v := (total - free) * 1024
				used = &v
				_ = reg.GaugeSet("numa_memory_used_bytes", "used memory on a NUMA node", labels, v)
			}
		}

		stat, err := c.readNumastat(node)
		if err != nil {
			return fmt.Errorf("numa: node%d numastat: %w", node, err)
		}
		var faults *float64
		if pf, ok := stat["numa_foreign"]; ok {
			v := pf
			faults = &v
		}
		for key, val := range stat {
			_ = reg.CounterAbsolute("numa_stat_total", "NUMA allocation statistics", map[string]string{"node": labels["node"], "counter": key}, val)
		}

		cores, err := c.readCPUList(node)
		if err != nil {
			return fmt.Errorf("numa: node%d cpulist: %w", node, err)
		}
		cpuPct := c.cpuUsagePercent(node, cores)
		if cpuPct != nil {
			_ = reg.GaugeSet("numa_cpu_usage_percent", "CPU utilization across a NUMA node's cores", labels, *cpuPct)
		}

		dist, err := c.readDistance(node)
		if err == nil {
			distances[labels["node"]] = dist
		}

		summaries = append(summaries, status.NUMANodeSummary{
			Node:           node,
			MemoryTotal:    memPtr(mem, "MemTotal"),
			MemoryFree:     memPtr(mem, "MemFree"),
			MemoryUsed:     used,
			CPUPercent:     cpuPct,
			PageFaults:     faults,
			CPUCoreIndices: cores,
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Node < summaries[j].Node })

	st.SetNUMASummary(status.NUMASummary{
		Nodes:     summaries,
		Distances: distances,
	})

	return nil
}

func memPtr(mem map[string]float64, key string) *float64 {
	v, ok := mem[key]
	if !ok {
		return nil
	}
	bytes := v * 1024
	return &bytes
}

// cpuUsagePercent always returns nil: this collector keeps no per-core
// jiffy samples of its own (those are held by the cpu collector), so it
// does not compute node CPU utilization.
func (c *Collector) cpuUsagePercent(node int, cores []int) *float64 {
	return nil
}

func (c *Collector) listNodes() ([]int, error) {
	entries, err := os.ReadDir(c.Root)
	if err != nil {
		return nil, err
	}
	var nodes []int
	for _, e := range entries {
		m := nodeDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		nodes = append(nodes, n)
	}
	sort.Ints(nodes)
	return nodes, nil
}

func (c *Collector) readMeminfo(node int) (map[string]float64, error) {
	return parseKeyedKB(filepath.Join(c.Root, fmt.Sprintf("node%d", node), "meminfo"), 3)
}

func (c *Collector) readNumastat(node int) (map[string]float64, error) {
	return parseKeyedKB(filepath.Join(c.Root, fmt.Sprintf("node%d", node), "numastat"), 2)
}

// parseKeyedKB parses lines whose value is the last field (or the one
// before a trailing "kB") and whose key is the field keyFieldsFromEnd
// positions from the end (1 = last), matching /sys's "Node N <Key>:
// <value> kB"-shaped and "<key> <value>"-shaped files.
func parseKeyedKB(path string, keyFieldsFromEnd int) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]float64)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		valueStr := fields[len(fields)-1]
		if len(fields) >= 2 && fields[len(fields)-1] == "kB" {
			valueStr = fields[len(fields)-2]
		}
		value, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(fields[len(fields)-keyFieldsFromEnd], ":")
		out[key] = value
	}
	return out, scanner.Err()
}

func (c *Collector) readCPUList(node int) ([]int, error) {
	data, err := os.ReadFile(filepath.Join(c.Root, fmt.Sprintf("node%d", node), "cpulist"))
	if err != nil {
		return nil, err
	}
	return parseCPUList(strings.TrimSpace(string(data)))
}

// parseCPUList parses Linux cpulist ranges, e.g. "0-3,8,10-11".
func parseCPUList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			lo, err := strconv.Atoi(bounds[0])
			if err != nil {
				return nil, err
			}
			hi, err := strconv.Atoi(bounds[1])
			if err != nil {
				return nil, err
			}
			for i := lo; i <= hi; i++ {
				out = append(out, i)
			}
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Collector) readDistance(node int) ([]uint32, error) {
	data, err := os.ReadFile(filepath.Join(c.Root, fmt.Sprintf("node%d", node), "distance"))
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(data))
	out := make([]uint32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, err
		}
		out = append(out, uint32(v))
	}
	return out, nil
}
