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

// thermalHotThresholdCelsius is the temperature above which a device is
// considered hot for the purposes of load-based thermal avoidance.
const thermalHotThresholdCelsius = 85.0

// thermalLoadPenalty is added to a hot device's current load, capped at 1.0,
// so that device selection steers new work away from it without taking it
// out of rotation entirely.
const thermalLoadPenalty = 0.5

// ApplyThermalManagement inflates the reported load of every hot device in
// place. A device is hot when it reports a temperature above
// thermalHotThresholdCelsius; its current load is bumped by
// thermalLoadPenalty and clamped to 1.0 so PickDeviceForTask deprioritizes
// it without needing thermal awareness of its own.
func ApplyThermalManagement(devices []*Device) {
	for _, dev := range devices {
		if dev.TemperatureCelsius == nil {
			continue
		}
		if *dev.TemperatureCelsius <= thermalHotThresholdCelsius {
			continue
		}
		dev.CurrentLoad = min(dev.CurrentLoad+thermalLoadPenalty, 1.0)
	}
}
