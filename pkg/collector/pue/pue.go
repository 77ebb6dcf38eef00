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

// Package pue implements the power-usage-effectiveness collector: two
// independent maps of named power sources (IT load and
// facility overhead) reduced to PUE = Σfacility / ΣIT, clamped to a
// sane [1.0, 10.0] range with a warning logged outside it.
package pue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

const (
	minSanePUE = 1.0
	maxSanePUE = 10.0
)

// Collector aggregates independently-reported IT and facility power
// sources into a PUE ratio.
type Collector struct {
	mu                   sync.Mutex
	itPowerSources       map[string]float64
	facilityPowerSources map[string]float64
}

// New returns an empty collector; sources are populated via SetITPower
// and SetFacilityPower by whatever sensor integration owns them.
func New() *Collector {
	return &Collector{
		itPowerSources:       make(map[string]float64),
		facilityPowerSources: make(map[string]float64),
	}
}

// Name implements collector.Collector.
func (c *Collector) Name() string { return "pue" }

// SetITPower records the current reading of a named IT-load power source.
func (c *Collector) SetITPower(source string, watts float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.itPowerSources[source] = watts
}

// SetFacilityPower records the current reading of a named facility-
// overhead power source (cooling, UPS loss, lighting, etc.).
func (c *Collector) SetFacilityPower(source string, watts float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.facilityPowerSources[source] = watts
}

// Collect implements collector.Collector.
func (c *Collector) Collect(ctx context.Context, reg *registry.Registry, st *status.State) error {
	c.mu.Lock()
	itTotal := sumValues(c.itPowerSources)
	facilityTotal := sumValues(c.facilityPowerSources)
	c.mu.Unlock()

	_ = reg.GaugeSet("pue_it_power_watts", "summed IT-load power sources", nil, itTotal)
	_ = reg.GaugeSet("pue_facility_power_watts", "summed facility-overhead power sources", nil, facilityTotal)

	if itTotal <= 0 {
		return nil
	}

	pue, warn := ComputePUE(facilityTotal, itTotal)
	if warn != "" {
		slog.Warn("pue out of sane range", "pue", pue, "reason", warn)
	}
	_ = reg.GaugeSet("pue_ratio", "facility/IT power usage effectiveness", nil, pue)

	return nil
}

// ComputePUE returns Σfacility / ΣIT clamped to [1.0, 10.0], plus a
// non-empty warning string when the unclamped ratio fell outside that
// range (under-reported facility power below 1.0, or a runaway overhead
// reading above 10.0).
func ComputePUE(facilityTotal, itTotal float64) (float64, string) {
	if itTotal <= 0 {
		return 0, ""
	}
	raw := facilityTotal / itTotal
	switch {
	case raw < minSanePUE:
		return minSanePUE, "PUE below 1.0 indicates under-reported facility power"
	case raw > maxSanePUE:
		return maxSanePUE, "PUE above 10.0 clamped; check facility power source wiring"
	default:
		return raw, ""
	}
}

func sumValues(m map[string]float64) float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	return total
}
