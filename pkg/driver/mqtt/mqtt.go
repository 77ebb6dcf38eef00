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

// Package mqtt is a construction-only MQTT driver adapter: it satisfies
// pkg/driver.Driver's contract and shape (broker, credentials, topic
// mappings, optional TLS config) but does not implement an MQTT client
// session.
package mqtt

import (
	"context"
	"fmt"

	"github.com/esnode-io/esnode-core/pkg/driver"
)

// TLSConfig holds optional mTLS material for a broker connection.
type TLSConfig struct {
	CACertPath     string
	ClientCertPath string
	ClientKeyPath  string
}

// Config is the construction-time configuration for an MQTT driver
// instance.
type Config struct {
	Broker   string
	Port     uint16
	ClientID string
	Username string
	Password string
	Topics   []string
	QoS      uint8
	TLS      *TLSConfig
}

// Driver is an MQTT field-bus adapter. It opens no broker session and
// buffers no readings: once connected, ReadAll returns an error.
type Driver struct {
	id        string
	cfg       Config
	connected bool
}

// New constructs an MQTT driver from its id and configuration.
func New(id string, cfg Config) *Driver {
	return &Driver{id: id, cfg: cfg}
}

// ID implements driver.Driver.
func (d *Driver) ID() string { return d.id }

// Connect implements driver.Driver. A real adapter opens a broker
// session and subscribes to cfg.Topics here.
func (d *Driver) Connect(ctx context.Context) error {
	d.connected = true
	return nil
}

// ReadAll implements driver.Driver.
func (d *Driver) ReadAll(ctx context.Context) ([]driver.Reading, error) {
	if !d.connected {
		return nil, fmt.Errorf("mqtt driver %s: not connected", d.id)
	}
	return nil, fmt.Errorf("mqtt driver %s: broker session not implemented", d.id)
}

// Disconnect implements driver.Driver.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.connected = false
	return nil
}
