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

// Package aiops implements the AIOps layer: a rolling-window root-cause
// correlator and a per-GPU failure-risk predictor, both fed one status
// snapshot per scheduler tick via the scheduler.SnapshotConsumer seam.
package aiops

import (
	"math"
	"strconv"
	"time"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// utilizationDipPriorFloor is the minimum previous-tick utilization a GPU
// must have had for a drop to be considered a dip.
const utilizationDipPriorFloor = 50.0

// utilizationDipDrop is the minimum percentage-point drop from the
// previous tick's utilization that qualifies as a dip.
const utilizationDipDrop = 20.0

// networkCauseLookback bounds how many of the most recent snapshots the
// network-degradation check considers.
const networkCauseLookback = 3

// window is a capacity-bounded FIFO ring of status snapshots.
type window struct {
	capacity int
	samples  []status.Snapshot
}

func newWindow(duration, scrapeInterval time.Duration) *window {
	capacity := int(math.Ceil(duration.Seconds() / scrapeInterval.Seconds()))
	if capacity < 1 {
		capacity = 1
	}
	return &window{capacity: capacity, samples: make([]status.Snapshot, 0, capacity)}
}

func (w *window) add(snap status.Snapshot) {
	if len(w.samples) >= w.capacity {
		w.samples = w.samples[1:]
	}
	w.samples = append(w.samples, snap)
}

// RCAEngine correlates a GPU utilization dip observed on a tick against
// recent-history signals, in priority order: network degradation, thermal
// throttling, Kubernetes events.
type RCAEngine struct {
	Registry *registry.Registry
	Status   *status.State

	window *window
}

// NewRCAEngine constructs an RCAEngine whose window holds up to
// ceil(windowDuration/scrapeInterval) snapshots.
func NewRCAEngine(windowDuration, scrapeInterval time.Duration, reg *registry.Registry, st *status.State) *RCAEngine {
	return &RCAEngine{
		Registry: reg,
		Status:   st,
		window:   newWindow(windowDuration, scrapeInterval),
	}
}

// Observe implements scheduler.SnapshotConsumer: it feeds the snapshot into
// the rolling window, runs the correlation pass, and publishes the result
// into status and metrics.
func (e *RCAEngine) Observe(snap status.Snapshot) {
	e.window.add(snap)
	events := e.analyze()

	if e.Status != nil {
		e.Status.SetRCAEvents(events)
	}
	if e.Registry != nil {
		for _, ev := range events {
			_ = e.Registry.CounterInc(
				"aiops_rca_events_total",
				"cumulative RCA correlation events emitted",
				map[string]string{"cause": string(ev.Cause)},
				1,
			)
		}
	}
}

// analyze compares the two most recent snapshots in the window and emits
// at most one event per GPU index, following a fixed cause-priority
// order.
func (e *RCAEngine) analyze() []status.RCAEvent {
	samples := e.window.samples
	if len(samples) < 2 {
		return nil
	}

	latest := samples[len(samples)-1]
	prev := samples[len(samples)-2]

	var events []status.RCAEvent
	now := time.Now().UnixMilli()

	for idx, gpu := range latest.GPUs {
		if idx >= len(prev.GPUs) {
			break
		}
		prevGPU := prev.GPUs[idx]

		currUtil := floatOrZero(gpu.UtilPercent)
		prevUtil := floatOrZero(prevGPU.UtilPercent)

		if !(prevUtil > utilizationDipPriorFloor && currUtil < prevUtil-utilizationDipDrop) {
			continue
		}

		gpuLabel := gpuIdentifier(idx, gpu)

		if e.networkDegradedRecently() {
			events = append(events, status.RCAEvent{
				GPU:         gpuLabel,
				Cause:       status.RootCauseNetworkLatency,
				Description: "GPU utilization dropped coincident with network degradation",
				Confidence:  0.8,
				UnixMs:      now,
			})
			continue
		}

		if gpu.ThermalThrottle {
			events = append(events, status.RCAEvent{
				GPU:         gpuLabel,
				Cause:       status.RootCauseThermalThrottling,
				Description: "GPU utilization dropped due to thermal throttling",
				Confidence:  1.0,
				UnixMs:      now,
			})
			continue
		}

		if latest.K8sEventsDetected {
			events = append(events, status.RCAEvent{
				GPU:         gpuLabel,
				Cause:       status.RootCauseKubernetesEvents,
				Description: "GPU utilization drop correlates with Kubernetes pod events (evictions/rescheduling)",
				Confidence:  0.9,
				UnixMs:      now,
			})
			continue
		}
	}

	return events
}

// networkDegradedRecently reports whether any of the last
// networkCauseLookback snapshots in the window observed a degraded primary
// NIC.
func (e *RCAEngine) networkDegradedRecently() bool {
	samples := e.window.samples
	start := len(samples) - networkCauseLookback
	if start < 0 {
		start = 0
	}
	for i := len(samples) - 1; i >= start; i-- {
		if samples[i].NetworkDegraded {
			return true
		}
	}
	return false
}

func floatOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func gpuIdentifier(idx int, gpu status.GPUStatus) string {
	if gpu.UUID != "" {
		return gpu.UUID
	}
	if gpu.GPU != "" {
		return gpu.GPU
	}
	return indexLabel(idx)
}

func indexLabel(idx int) string {
	return "GPU-" + strconv.Itoa(idx)
}
