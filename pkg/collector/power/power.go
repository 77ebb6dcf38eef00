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

// Package power implements the power collector: CPU package power and
// cumulative energy from the kernel's RAPL powercap interface,
// optional whole-node power from a BMC/hwmon sensor, and the
// node_power_envelope_exceeded flag.
//
// Neither RAPL nor hwmon has a client_golang/procfs binding in the
// retrieval pack, so both are read directly from sysfs with stdlib
// os/bufio, following the same line-oriented parsing convention used by
// the numa collector.
package power

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

const (
	defaultRAPLRoot  = "/sys/class/powercap"
	defaultHwmonRoot = "/sys/class/hwmon"
)

type packageState struct {
	lastEnergyUJ uint64
	lastTime     time.Time
}

// Collector samples CPU package power/energy from RAPL and, optionally,
// whole-node power from hwmon.
type Collector struct {
	RAPLRoot  string
	HwmonRoot string

	// EnvelopeWatts is the configured node power budget; when the sampled
	// node power exceeds it, node_power_envelope_exceeded is set to 1.
	EnvelopeWatts float64

	states map[string]*packageState
}

// New returns a collector reading the standard sysfs RAPL and hwmon trees.
func New(envelopeWatts float64) *Collector {
	return &Collector{
		RAPLRoot:      defaultRAPLRoot,
		HwmonRoot:     defaultHwmonRoot,
		EnvelopeWatts: envelopeWatts,
		states:        make(map[string]*packageState),
	}
}

// Name implements collector.Collector.
func (c *Collector) Name() string { return "power" }

// Collect implements collector.Collector.
func (c *Collector) Collect(ctx context.Context, reg *registry.Registry, st *status.State) error {
	if c.states == nil {
		c.states = make(map[string]*packageState)
	}

	now := time.Now()
	packages, err := c.listRAPLPackages()
	if err != nil {
		if os.IsNotExist(err) {
			packages = nil
		} else {
			return fmt.Errorf("power: list RAPL packages: %w", err)
		}
	}

	for _, pkg := range packages {
		name, err := c.readName(pkg)
		if err != nil {
			continue
		}
		energyUJ, err := c.readEnergyUJ(pkg)
		if err != nil {
			continue
		}

		state, ok := c.states[pkg]
		if !ok {
			state = &packageState{}
			c.states[pkg] = state
		}

		var watts float64
		if !state.lastTime.IsZero() && energyUJ >= state.lastEnergyUJ {
			dt := now.Sub(state.lastTime).Seconds()
			if dt > 0 {
				watts = float64(energyUJ-state.lastEnergyUJ) / 1_000_000.0 / dt
			}
		}

		labels := map[string]string{"package": name}
		_ = reg.GaugeSet("cpu_package_power_watts", "instantaneous CPU package power draw", labels, watts)
		if err := reg.CounterAbsolute("cpu_package_energy_joules_total", "cumulative CPU package energy", labels, float64(energyUJ)/1_000_000.0); err != nil {
			return err
		}

		st.SetCPUPackagePower(name, watts)

		state.lastEnergyUJ = energyUJ
		state.lastTime = now
	}

	nodeWatts, found, err := c.readHwmonNodePower()
	if err != nil {
		return fmt.Errorf("power: read hwmon node power: %w", err)
	}
	if found {
		_ = reg.GaugeSet("node_power_watts", "whole-node power draw from a BMC/hwmon sensor", nil, nodeWatts)
		st.SetNodePower(nodeWatts)

		exceeded := 0.0
		if c.EnvelopeWatts > 0 && nodeWatts > c.EnvelopeWatts {
			exceeded = 1.0
		}
		_ = reg.GaugeSet("node_power_envelope_exceeded", "1 when node power exceeds the configured envelope", nil, exceeded)
	}

	return nil
}

func (c *Collector) listRAPLPackages() ([]string, error) {
	entries, err := os.ReadDir(c.RAPLRoot)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "intel-rapl:") {
			out = append(out, filepath.Join(c.RAPLRoot, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (c *Collector) readName(pkgDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(pkgDir, "name"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (c *Collector) readEnergyUJ(pkgDir string) (uint64, error) {
	data, err := os.ReadFile(filepath.Join(pkgDir, "energy_uj"))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

// readHwmonNodePower scans /sys/class/hwmon and sums the power input
// channels of every device there as the whole-node reading. Returns
// found=false when no hwmon power sensor is present, which is the common
// case off a BMC-equipped server.
func (c *Collector) readHwmonNodePower() (float64, bool, error) {
	entries, err := os.ReadDir(c.HwmonRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	var total float64
	found := false
	for _, e := range entries {
		dir := filepath.Join(c.HwmonRoot, e.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if !strings.HasPrefix(f.Name(), "power") || !strings.HasSuffix(f.Name(), "_input") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, f.Name()))
			if err != nil {
				continue
			}
			microwatts, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
			if err != nil {
				continue
			}
			total += microwatts / 1_000_000.0
			found = true
		}
	}
	return total, found, nil
}
