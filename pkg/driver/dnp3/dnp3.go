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

// Package dnp3 is a construction-only DNP3 driver adapter: it satisfies
// pkg/driver.Driver's contract and shape (master/outstation link
// addresses, integrity poll interval) but does not implement the DNP3
// link-layer framing or CRC.
package dnp3

import (
	"context"
	"fmt"
	"time"

	"github.com/esnode-io/esnode-core/pkg/driver"
)

// Config is the construction-time configuration for a DNP3 driver
// instance.
type Config struct {
	Addr              string
	LocalAddr         uint16
	RemoteAddr        uint16
	IntegrityInterval time.Duration
}

// Driver is a DNP3 field-bus adapter.
type Driver struct {
	id        string
	cfg       Config
	connected bool
}

// New constructs a DNP3 driver from its id and configuration.
func New(id string, cfg Config) *Driver {
	return &Driver{id: id, cfg: cfg}
}

// ID implements driver.Driver.
func (d *Driver) ID() string { return d.id }

// Connect implements driver.Driver.
func (d *Driver) Connect(ctx context.Context) error {
	d.connected = true
	return nil
}

// ReadAll implements driver.Driver.
func (d *Driver) ReadAll(ctx context.Context) ([]driver.Reading, error) {
	if !d.connected {
		return nil, fmt.Errorf("dnp3 driver %s: not connected", d.id)
	}
	return nil, fmt.Errorf("dnp3 driver %s: link-layer codec not implemented", d.id)
}

// Disconnect implements driver.Driver.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.connected = false
	return nil
}
