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

// Package orchestrator implements the one-way bridge from a status
// snapshot to the external multi-node Orchestrator's device model. The
// Orchestrator's own scheduling engine and HTTP surface live outside this
// agent; this package only builds and pushes the device records it
// consumes, plus a client-side reproduction of the thermal-load-penalty
// mechanism its device model documents, so the bridge's device shape is
// exercised against the same contract.
package orchestrator

import (
	"strconv"

	"github.com/esnode-io/esnode-core/pkg/config"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// DeviceKind names the physical device class a Device record describes.
type DeviceKind string

const (
	DeviceKindGPU DeviceKind = "gpu"
	DeviceKindCPU DeviceKind = "cpu"
)

// Device is the external Orchestrator's device-model record.
type Device struct {
	ID                 string     `json:"id"`
	Kind               DeviceKind `json:"kind"`
	PeakFLOPsTFLOPs    float64    `json:"peak_flops_tflops"`
	MemGB              float64    `json:"mem_gb"`
	PowerWattsIdle     float64    `json:"power_watts_idle"`
	PowerWattsMax      float64    `json:"power_watts_max"`
	CurrentLoad        float64    `json:"current_load"`
	TemperatureCelsius *float64   `json:"temperature_celsius,omitempty"`
	RealPowerWatts     *float64   `json:"real_power_watts,omitempty"`
	AssignedTasks      []string   `json:"assigned_tasks"`
	LastSeenUnixMs     int64      `json:"last_seen"`
}

// DevicesFromSnapshot builds one Device record per GPU in snap. cfg
// supplies the static peak-FLOPs and idle-watt estimates the snapshot
// itself cannot provide.
func DevicesFromSnapshot(snap status.Snapshot, cfg config.OrchestratorConfig, nowUnixMs int64) []Device {
	devices := make([]Device, 0, len(snap.GPUs))
	for idx, gpu := range snap.GPUs {
		devices = append(devices, deviceFromGPU(idx, gpu, cfg, nowUnixMs))
	}
	return devices
}

func deviceFromGPU(idx int, gpu status.GPUStatus, cfg config.OrchestratorConfig, nowUnixMs int64) Device {
	memGB := 0.0
	if gpu.MemoryTotalBytes != nil {
		memGB = *gpu.MemoryTotalBytes / (1 << 30)
	}

	maxWatts := cfg.IdleWattsEstimate
	if gpu.PowerWatts != nil && *gpu.PowerWatts > maxWatts {
		maxWatts = *gpu.PowerWatts
	}
	if maxWatts < 100 {
		maxWatts = 100
	}

	load := 0.0
	if gpu.UtilPercent != nil {
		load = *gpu.UtilPercent / 100.0
	}

	return Device{
		ID:                 deviceID(idx, gpu),
		Kind:               DeviceKindGPU,
		PeakFLOPsTFLOPs:    cfg.PeakFLOPsTFLOPs,
		MemGB:              memGB,
		PowerWattsIdle:     cfg.IdleWattsEstimate,
		PowerWattsMax:      maxWatts,
		CurrentLoad:        load,
		TemperatureCelsius: gpu.TemperatureCelsius,
		RealPowerWatts:     gpu.PowerWatts,
		AssignedTasks:      []string{},
		LastSeenUnixMs:     nowUnixMs,
	}
}

func deviceID(idx int, gpu status.GPUStatus) string {
	if gpu.UUID != "" {
		return gpu.UUID
	}
	return "gpu-" + strconv.Itoa(idx)
}
