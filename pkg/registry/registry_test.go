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

package registry

import (
	"strings"
	"testing"
)

func TestCounterIncAccumulates(t *testing.T) {
	r := New()
	labels := map[string]string{"collector": "cpu"}

	if err := r.CounterInc("agent_errors_total", "errors by collector", labels, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.CounterInc("agent_errors_total", "errors by collector", labels, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := r.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), `agent_errors_total{collector="cpu"} 3`) {
		t.Errorf("expected accumulated counter of 3, got %s", out)
	}
}

func TestCounterIncRejectsNegativeDelta(t *testing.T) {
	r := New()
	if err := r.CounterInc("c", "help", nil, -1); err == nil {
		t.Errorf("expected error for negative delta")
	}
}

func TestCounterAbsoluteRollback(t *testing.T) {
	r := New()
	labels := map[string]string{"nic": "eth0"}

	if err := r.CounterAbsolute("network_rx_bytes_total", "help", labels, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Source counter resets (e.g. driver reboot): 100 -> 10.
	if err := r.CounterAbsolute("network_rx_bytes_total", "help", labels, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := r.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// First observation establishes a baseline of 100 with a delta of 0;
	// the rollback to 10 must also apply a delta of 0, never -90.
	if !strings.Contains(string(out), `network_rx_bytes_total{nic="eth0"} 0`) {
		t.Errorf("expected counter held at 0 across rollback, got %s", out)
	}

	// Once the source catches back up past the old baseline, new deltas apply.
	if err := r.CounterAbsolute("network_rx_bytes_total", "help", labels, 25); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err = r.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), `network_rx_bytes_total{nic="eth0"} 15`) {
		t.Errorf("expected counter of 15 after source catches up, got %s", out)
	}
}

func TestGaugeSetOverwrites(t *testing.T) {
	r := New()
	labels := map[string]string{"gpu": "0"}

	if err := r.GaugeSet("gpu_temperature_celsius", "help", labels, 70); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.GaugeSet("gpu_temperature_celsius", "help", labels, 85); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := r.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), `gpu_temperature_celsius{gpu="0"} 85`) {
		t.Errorf("expected gauge overwritten to 85, got %s", out)
	}
}

func TestSchemaMismatch(t *testing.T) {
	r := New()
	if err := r.GaugeSet("x", "help", map[string]string{"a": "1"}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := r.GaugeSet("x", "help", map[string]string{"b": "1"}, 1)
	if err == nil {
		t.Fatal("expected schema mismatch error")
	}
	var mismatch *SchemaMismatchError
	if !asSchemaMismatch(err, &mismatch) {
		t.Errorf("expected *SchemaMismatchError, got %T: %v", err, err)
	}
}

func TestSchemaMismatchAcrossKind(t *testing.T) {
	r := New()
	if err := r.CounterInc("y", "help", map[string]string{"a": "1"}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.GaugeSet("y", "help", map[string]string{"a": "1"}, 1); err == nil {
		t.Errorf("expected schema mismatch when reusing a counter name as a gauge")
	}
}

func TestEncodeIsLabelOrderStable(t *testing.T) {
	r := New()
	labels := map[string]string{"z": "1", "a": "2", "m": "3"}
	if err := r.GaugeSet("ordered", "help", labels, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := r.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), `ordered{a="2",m="3",z="1"} 1`) {
		t.Errorf("expected lexicographically ordered labels, got %s", out)
	}
}

func TestEncodeOmitsTimestamps(t *testing.T) {
	r := New()
	if err := r.GaugeSet("no_ts", "help", nil, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := r.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	line := strings.TrimSpace(string(out))
	if strings.Count(line, " ") != 1 {
		t.Errorf("expected exactly one space separating name and value (no timestamp field), got %q", line)
	}
}

func asSchemaMismatch(err error, target **SchemaMismatchError) bool {
	if e, ok := err.(*SchemaMismatchError); ok {
		*target = e
		return true
	}
	return false
}
