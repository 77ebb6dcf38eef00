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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esnode-io/esnode-core/pkg/config"
	"github.com/esnode-io/esnode-core/pkg/status"
)

func ptr(f float64) *float64 { return &f }

func TestDevicesFromSnapshotDerivesFields(t *testing.T) {
	st := status.New()
	st.SetGPUStatuses([]status.GPUStatus{
		{
			GPU:                "0",
			UUID:               "GPU-abc",
			TemperatureCelsius: ptr(60),
			PowerWatts:         ptr(250),
			UtilPercent:        ptr(75),
			MemoryTotalBytes:   ptr(float64(80) * (1 << 30)),
		},
	})

	cfg := config.OrchestratorConfig{PeakFLOPsTFLOPs: 312, IdleWattsEstimate: 40}
	devices := DevicesFromSnapshot(st.Snapshot(), cfg, 1000)
	require.Len(t, devices, 1)

	dev := devices[0]
	assert.Equal(t, "GPU-abc", dev.ID)
	assert.Equal(t, DeviceKindGPU, dev.Kind)
	assert.Equal(t, 312.0, dev.PeakFLOPsTFLOPs)
	assert.InDelta(t, 80.0, dev.MemGB, 0.001)
	assert.Equal(t, 40.0, dev.PowerWattsIdle)
	assert.Equal(t, 250.0, dev.PowerWattsMax)
	assert.Equal(t, 0.75, dev.CurrentLoad)
	require.NotNil(t, dev.TemperatureCelsius)
	assert.Equal(t, 60.0, *dev.TemperatureCelsius)
	require.NotNil(t, dev.RealPowerWatts)
	assert.Equal(t, 250.0, *dev.RealPowerWatts)
	assert.Empty(t, dev.AssignedTasks)
	assert.Equal(t, int64(1000), dev.LastSeenUnixMs)
}

func TestDevicesFromSnapshotFallsBackToIndexID(t *testing.T) {
	st := status.New()
	st.SetGPUStatuses([]status.GPUStatus{{GPU: "0"}})

	devices := DevicesFromSnapshot(st.Snapshot(), config.OrchestratorConfig{}, 0)
	require.Len(t, devices, 1)
	assert.Equal(t, "gpu-0", devices[0].ID)
}

func TestDevicesFromSnapshotEnforcesMinimumMaxWatts(t *testing.T) {
	st := status.New()
	st.SetGPUStatuses([]status.GPUStatus{{GPU: "0", PowerWatts: ptr(10)}})

	devices := DevicesFromSnapshot(st.Snapshot(), config.OrchestratorConfig{IdleWattsEstimate: 5}, 0)
	require.Len(t, devices, 1)
	assert.Equal(t, 100.0, devices[0].PowerWattsMax)
}

// TestThermalAvoidancePicksCoolerDevice reproduces the external
// Orchestrator's thermal-avoidance contract: given a hot device and a cool
// device at equal starting load, the task is placed on the cool one once
// ApplyThermalManagement has inflated the hot device's load.
func TestThermalAvoidancePicksCoolerDevice(t *testing.T) {
	cool := &Device{ID: "cpu1", Kind: DeviceKindCPU, CurrentLoad: 0.1, TemperatureCelsius: ptr(30)}
	hot := &Device{ID: "cpu2", Kind: DeviceKindCPU, CurrentLoad: 0.1, TemperatureCelsius: ptr(95)}
	devices := []*Device{cool, hot}

	ApplyThermalManagement(devices)
	assert.Equal(t, 0.1, cool.CurrentLoad)
	assert.Equal(t, 0.6, hot.CurrentLoad)

	id, err := PickDeviceForTask(devices, Task{ID: "hot_task"})
	require.NoError(t, err)
	assert.Equal(t, "cpu1", id)
}

func TestApplyThermalManagementClampsAtOne(t *testing.T) {
	dev := &Device{ID: "gpu-0", CurrentLoad: 0.8, TemperatureCelsius: ptr(90)}
	ApplyThermalManagement([]*Device{dev})
	assert.Equal(t, 1.0, dev.CurrentLoad)
}

func TestPickDeviceForTaskRespectsPreferredKinds(t *testing.T) {
	cpu := &Device{ID: "cpu1", Kind: DeviceKindCPU, CurrentLoad: 0.0}
	gpu := &Device{ID: "gpu1", Kind: DeviceKindGPU, CurrentLoad: 0.9}

	id, err := PickDeviceForTask([]*Device{cpu, gpu}, Task{PreferredKinds: []DeviceKind{DeviceKindGPU}})
	require.NoError(t, err)
	assert.Equal(t, "gpu1", id)
}

func TestPickDeviceForTaskReturnsErrorWhenNoneEligible(t *testing.T) {
	cpu := &Device{ID: "cpu1", Kind: DeviceKindCPU}
	_, err := PickDeviceForTask([]*Device{cpu}, Task{PreferredKinds: []DeviceKind{DeviceKindGPU}})
	assert.ErrorIs(t, err, ErrNoEligibleDevice)
}
