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

// Package driver defines the uniform field-bus adapter capability
// consumed by the protocol runner collector. A Driver has a stable id
// and three operations: Connect, ReadAll, Disconnect. All three are
// idempotent at the protocol level, and ReadAll must never return a
// partial reading list silently on transport error — it returns an
// error instead.
//
// Only the capability contract and per-protocol construction are
// specified here; the wire codecs themselves (Modbus register framing,
// DNP3 link-layer CRC framing, SNMP PDU encoding, MQTT broker sessions)
// are out of scope and are not implemented.
package driver

import (
	"context"
	"time"
)

// SensorType tags the physical quantity a Reading represents.
type SensorType int

const (
	SensorCurrent SensorType = iota
	SensorVoltage
	SensorPower
	SensorEnergy
	SensorFrequency
	SensorTemperature
	SensorPressure
	SensorStateOfCharge
	SensorOther
)

// String renders the sensor type the way the protocol runner labels
// iot_sensor_value series with it.
func (s SensorType) String() string {
	switch s {
	case SensorCurrent:
		return "Current"
	case SensorVoltage:
		return "Voltage"
	case SensorPower:
		return "Power"
	case SensorEnergy:
		return "Energy"
	case SensorFrequency:
		return "Frequency"
	case SensorTemperature:
		return "Temperature"
	case SensorPressure:
		return "Pressure"
	case SensorStateOfCharge:
		return "StateOfCharge"
	default:
		return "Other"
	}
}

// Reading is a single sampled datapoint from a Driver.
type Reading struct {
	SensorType  SensorType
	Unit        string
	Value       float64
	TimestampMs int64
	Metadata    map[string]string
}

// Driver is the uniform capability for field-bus adapters. Drivers are
// owned exclusively by the protocol runner collector; they are never
// shared across goroutines outside of it.
type Driver interface {
	// ID returns the stable identifier for this driver instance
	// (e.g. "modbus-inverter-1"), used as the driver label on every
	// reading it produces.
	ID() string

	// Connect establishes the underlying transport link. Idempotent:
	// calling it while already connected is a no-op success.
	Connect(ctx context.Context) error

	// ReadAll polls every configured datapoint. On any transport error
	// it returns a nil slice and a non-nil error rather than a partial
	// reading list.
	ReadAll(ctx context.Context) ([]Reading, error)

	// Disconnect closes the underlying transport link. Idempotent.
	Disconnect(ctx context.Context) error
}

// nowMillis returns the current time in unix milliseconds, the unit of
// Reading.TimestampMs; a var so tests can override it. None of the stub
// adapters calls it, since none of them produces readings.
var nowMillis = func() int64 {
	return time.Now().UnixMilli()
}
