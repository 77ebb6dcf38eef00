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

// Package modbus is a construction-only Modbus TCP driver adapter: it
// satisfies pkg/driver.Driver's contract and shape (register mappings,
// slave id, scale factor) but does not implement the Modbus wire codec.
package modbus

import (
	"context"
	"fmt"

	"github.com/esnode-io/esnode-core/pkg/driver"
)

// RegisterMapping describes one polled Modbus input register.
type RegisterMapping struct {
	Address    uint16
	Count      uint16
	SensorType driver.SensorType
	Unit       string
	Scale      float64
}

// Config is the construction-time configuration for a Modbus driver
// instance: TCP address, slave id, and the register mappings to poll.
type Config struct {
	Addr     string
	SlaveID  uint8
	Mappings []RegisterMapping
}

// Driver is a Modbus TCP field-bus adapter.
type Driver struct {
	id        string
	cfg       Config
	connected bool
}

// New constructs a Modbus driver from its id and configuration.
func New(id string, cfg Config) *Driver {
	return &Driver{id: id, cfg: cfg}
}

// ID implements driver.Driver.
func (d *Driver) ID() string { return d.id }

// Connect implements driver.Driver. The wire-level TCP handshake is not
// implemented; this records connected state for ReadAll's precondition.
func (d *Driver) Connect(ctx context.Context) error {
	d.connected = true
	return nil
}

// ReadAll implements driver.Driver.
func (d *Driver) ReadAll(ctx context.Context) ([]driver.Reading, error) {
	if !d.connected {
		return nil, fmt.Errorf("modbus driver %s: not connected", d.id)
	}
	return nil, fmt.Errorf("modbus driver %s: wire codec not implemented", d.id)
}

// Disconnect implements driver.Driver.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.connected = false
	return nil
}
