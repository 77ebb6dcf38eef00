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

// Package network implements the network collector: per-interface rx/tx
// bytes, packets, errors and drops, sampled from procfs. Each tick it
// selects a "primary NIC" — the non-loopback interface with the highest
// (rx+tx) byte delta — and echoes its per-second rates into the status
// state. Ties are broken by interface name, lexicographically smallest
// wins.
package network

import (
	"context"
	"sort"
	"time"

	"github.com/prometheus/procfs"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// Collector samples /proc/net/dev.
type Collector struct {
	fs procfs.FS

	lastTime time.Time
	lastDevs map[string]procfs.NetDevLine
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
func (c *Collector) Name() string { return "network" }

// Collect implements collector.Collector.
func (c *Collector) Collect(ctx context.Context, reg *registry.Registry, st *status.State) error {
	devs, err := c.fs.NetDev()
	if err != nil {
		return err
	}

	now := time.Now()
	dt := now.Sub(c.lastTime).Seconds()
	havePrev := !c.lastTime.IsZero() && dt > 0

	current := make(map[string]uint64, len(devs))
	for name, d := range devs {
		labels := map[string]string{"interface": name}
		if err := reg.CounterAbsolute("network_rx_bytes_total", "cumulative bytes received", labels, float64(d.RxBytes)); err != nil {
			return err
		}
		if err := reg.CounterAbsolute("network_tx_bytes_total", "cumulative bytes transmitted", labels, float64(d.TxBytes)); err != nil {
			return err
		}
		if err := reg.CounterAbsolute("network_rx_packets_total", "cumulative packets received", labels, float64(d.RxPackets)); err != nil {
			return err
		}
		if err := reg.CounterAbsolute("network_tx_packets_total", "cumulative packets transmitted", labels, float64(d.TxPackets)); err != nil {
			return err
		}
		if err := reg.CounterAbsolute("network_rx_errors_total", "cumulative receive errors", labels, float64(d.RxErrors)); err != nil {
			return err
		}
		if err := reg.CounterAbsolute("network_rx_drops_total", "cumulative receive drops", labels, float64(d.RxDropped)); err != nil {
			return err
		}
		if err := reg.CounterAbsolute("network_tx_drops_total", "cumulative transmit drops", labels, float64(d.TxDropped)); err != nil {
			return err
		}
		current[name] = d.RxBytes + d.TxBytes
	}

	var primaryPtr *string
	var rxRate, txRate, dropRate *float64
	if havePrev {
		previous := make(map[string]uint64, len(c.lastDevs))
		for name, d := range c.lastDevs {
			previous[name] = d.RxBytes + d.TxBytes
		}
		if name, ok := selectPrimaryNIC(current, previous); ok {
			cur := devs[name]
			prev := c.lastDevs[name]
			rx := float64(cur.RxBytes-prev.RxBytes) / dt
			tx := float64(cur.TxBytes-prev.TxBytes) / dt
			drop := float64((cur.RxDropped+cur.TxDropped)-(prev.RxDropped+prev.TxDropped)) / dt
			primaryPtr, rxRate, txRate, dropRate = &name, &rx, &tx, &drop
		}
	}

	c.lastDevs = devs
	c.lastTime = now

	st.SetNetworkSummary(status.NetworkSummary{
		PrimaryNIC:    primaryPtr,
		RxBytesPerSec: rxRate,
		TxBytesPerSec: txRate,
		DropsPerSec:   dropRate,
	})
	st.SetNetworkDegraded(dropRate != nil && *dropRate > 0)

	return nil
}

// selectPrimaryNIC picks the non-loopback interface with the highest
// (rx+tx) byte delta since the previous tick. Ties are broken by
// lexicographically smallest interface name.
func selectPrimaryNIC(current, previous map[string]uint64) (string, bool) {
	type candidate struct {
		name  string
		delta uint64
	}
	var candidates []candidate
	for name, cur := range current {
		if name == "lo" {
			continue
		}
		prev, ok := previous[name]
		if !ok || cur < prev {
			continue
		}
		candidates = append(candidates, candidate{name: name, delta: cur - prev})
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].delta != candidates[j].delta {
			return candidates[i].delta > candidates[j].delta
		}
		return candidates[i].name < candidates[j].name
	})
	return candidates[0].name, true
}
