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

// Package collector defines the capability contract every telemetry
// collector implements and a Set that the scheduler drives in
// registration order.
//
// A Collector has a stable Name and a single Collect call per scheduler
// tick. Collect may suspend on I/O; it must never be invoked concurrently
// with itself (the scheduler guarantees this by constrution — see
// pkg/scheduler). Errors are returned, not panicked; the scheduler owns
// logging, error counting, and status-ring recording for the collector.
package collector

import (
	"context"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// Collector samples one telemetry domain and publishes into the shared
// registry and status state.
type Collector interface {
	// Name is a stable, lowercase identifier used as the "collector" label
	// on agent_errors_total and agent_scrape_duration_seconds.
	Name() string

	// Collect runs one sampling pass. Implementations must tolerate partial
	// hardware/sensor unavailability: unavailable fields are simply left
	// unpublished rather than causing the whole call to fail, except for
	// the fixed set of always-on compatibility series a collector chooses
	// to export as zero.
	Collect(ctx context.Context, reg *registry.Registry, st *status.State) error
}

// Set is an ordered list of collectors. Order is registration order; the
// scheduler iterates it sequentially each tick, guaranteeing no re-entry
// and a coherent post-tick snapshot without extra synchronization.
type Set struct {
	collectors []Collector
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{}
}

// Add appends a collector to the set.
func (s *Set) Add(c Collector) {
	s.collectors = append(s.collectors, c)
}

// All returns the collectors in registration order. The returned slice is
// shared; callers must not mutate it.
func (s *Set) All() []Collector {
	return s.collectors
}

// Len returns the number of registered collectors.
func (s *Set) Len() int {
	return len(s.collectors)
}
