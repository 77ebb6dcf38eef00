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

package aiops

import (
	"testing"
	"time"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

func ptr(v float64) *float64 { return &v }

func TestWindowEvictsOldestPastCapacity(t *testing.T) {
	w := newWindow(10*time.Second, 1*time.Second)
	if w.capacity != 10 {
		t.Fatalf("expected capacity 10, got %d", w.capacity)
	}

	for i := 0; i < 15; i++ {
		w.add(status.Snapshot{LastScrapeUnixMs: int64(i)})
	}

	if len(w.samples) != 10 {
		t.Fatalf("expected 10 retained samples, got %d", len(w.samples))
	}
	if w.samples[0].LastScrapeUnixMs != 5 {
		t.Errorf("expected oldest retained sample to be index 5, got %d", w.samples[0].LastScrapeUnixMs)
	}
}

func TestAnalyzeRequiresAtLeastTwoSamples(t *testing.T) {
	e := NewRCAEngine(10*time.Second, 1*time.Second, registry.New(), status.New())
	e.Observe(status.Snapshot{GPUs: []status.GPUStatus{{GPU: "GPU-0", UtilPercent: ptr(10)}}})

	if events := e.Status.Snapshot().RCAEvents; len(events) != 0 {
		t.Fatalf("expected no events with a single sample, got %d", len(events))
	}
}

func TestAnalyzeEmitsNetworkLatencyWhenRecentlyDegraded(t *testing.T) {
	st := status.New()
	e := NewRCAEngine(10*time.Second, 1*time.Second, registry.New(), st)

	e.Observe(status.Snapshot{
		GPUs:            []status.GPUStatus{{GPU: "GPU-0", UtilPercent: ptr(90)}},
		NetworkDegraded: true,
	})
	e.Observe(status.Snapshot{
		GPUs: []status.GPUStatus{{GPU: "GPU-0", UtilPercent: ptr(20)}},
	})

	events := st.Snapshot().RCAEvents
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Cause != status.RootCauseNetworkLatency {
		t.Errorf("expected NetworkLatency cause, got %q", events[0].Cause)
	}
	if events[0].Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", events[0].Confidence)
	}
}

func TestAnalyzePrefersThermalThrottlingOverKubernetesEvents(t *testing.T) {
	st := status.New()
	e := NewRCAEngine(10*time.Second, 1*time.Second, registry.New(), st)

	e.Observe(status.Snapshot{GPUs: []status.GPUStatus{{GPU: "GPU-0", UtilPercent: ptr(90)}}})
	e.Observe(status.Snapshot{
		GPUs:              []status.GPUStatus{{GPU: "GPU-0", UtilPercent: ptr(10), ThermalThrottle: true}},
		K8sEventsDetected: true,
	})

	events := st.Snapshot().RCAEvents
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Cause != status.RootCauseThermalThrottling {
		t.Errorf("expected ThermalThrottling to take priority, got %q", events[0].Cause)
	}
}

func TestAnalyzeFallsBackToKubernetesEvents(t *testing.T) {
	st := status.New()
	e := NewRCAEngine(10*time.Second, 1*time.Second, registry.New(), st)

	e.Observe(status.Snapshot{GPUs: []status.GPUStatus{{GPU: "GPU-0", UtilPercent: ptr(90)}}})
	e.Observe(status.Snapshot{
		GPUs:              []status.GPUStatus{{GPU: "GPU-0", UtilPercent: ptr(10)}},
		K8sEventsDetected: true,
	})

	events := st.Snapshot().RCAEvents
	if len(events) != 1 || events[0].Cause != status.RootCauseKubernetesEvents {
		t.Fatalf("expected a single KubernetesEvents event, got %+v", events)
	}
}

func TestAnalyzeIgnoresDipsBelowThePriorUtilizationFloor(t *testing.T) {
	st := status.New()
	e := NewRCAEngine(10*time.Second, 1*time.Second, registry.New(), st)

	e.Observe(status.Snapshot{GPUs: []status.GPUStatus{{GPU: "GPU-0", UtilPercent: ptr(40)}}})
	e.Observe(status.Snapshot{
		GPUs:              []status.GPUStatus{{GPU: "GPU-0", UtilPercent: ptr(5)}},
		K8sEventsDetected: true,
	})

	if events := st.Snapshot().RCAEvents; len(events) != 0 {
		t.Fatalf("expected no events when prior utilization never exceeded the floor, got %d", len(events))
	}
}
