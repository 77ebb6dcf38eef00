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

package orchestrator

import "errors"

// LatencyClass names a task's latency sensitivity, mirroring the external
// Orchestrator's scheduling hint.
type LatencyClass string

const (
	LatencyClassLow    LatencyClass = "low"
	LatencyClassMedium LatencyClass = "medium"
	LatencyClassHigh   LatencyClass = "high"
)

// Task describes one unit of work the external Orchestrator would place on
// a Device. EstFLOPs and EstBytes are reserved for the scoring heuristics
// the external Orchestrator's own engine applies once a candidate device is
// chosen; this package only reproduces the thermal-avoidance contract its
// tests exercise, so they are carried but not yet scored against.
type Task struct {
	ID             string
	EstFLOPs       float64
	EstBytes       float64
	LatencyClass   LatencyClass
	PreferredKinds []DeviceKind
}

// ErrNoEligibleDevice is returned when no device matches a task's preferred
// kinds.
var ErrNoEligibleDevice = errors.New("orchestrator: no eligible device for task")

// PickDeviceForTask returns the id of the least-loaded device eligible for
// task among devices, preferring devices whose Kind is listed in
// task.PreferredKinds (or any kind, when the task lists none). Ties are
// broken by device id so selection is deterministic.
//
// The external Orchestrator's own scoring engine (which additionally
// weighs peak FLOPs, memory headroom, and latency class) is not part of
// this bridge's retrieved source; this is the minimal selection rule that
// satisfies its thermal-avoidance contract: a hot device's inflated load
// (see ApplyThermalManagement) loses to any cooler, equally eligible
// device.
func PickDeviceForTask(devices []*Device, task Task) (string, error) {
	var best *Device
	for _, dev := range devices {
		if !deviceEligible(dev, task) {
			continue
		}
		switch {
		case best == nil:
			best = dev
		case dev.CurrentLoad < best.CurrentLoad:
			best = dev
		case dev.CurrentLoad == best.CurrentLoad && dev.ID < best.ID:
			best = dev
		}
	}
	if best == nil {
		return "", ErrNoEligibleDevice
	}
	return best.ID, nil
}

func deviceEligible(dev *Device, task Task) bool {
	if len(task.PreferredKinds) == 0 {
		return true
	}
	for _, kind := range task.PreferredKinds {
		if dev.Kind == kind {
			return true
		}
	}
	return false
}
