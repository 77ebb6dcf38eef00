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

package mqtt

import (
	"context"
	"testing"

	"github.com/esnode-io/esnode-core/pkg/driver"
)

func TestReadAllRequiresConnect(t *testing.T) {
	d := New("mqtt-fleet-1", Config{Broker: "mqtt.example.com", Port: 1883, ClientID: "esnode-core", Topics: []string{"sensors/+/power"}})
	if _, err := d.ReadAll(context.Background()); err == nil {
		t.Fatal("expected error reading before connect")
	}
}

func TestConfigCarriesOptionalTLS(t *testing.T) {
	cfg := Config{
		Broker: "mqtt.example.com",
		TLS: &TLSConfig{
			CACertPath: "/etc/esnode/ca.pem",
		},
	}
	d := New("mqtt-fleet-1", cfg)
	if d.cfg.TLS == nil || d.cfg.TLS.CACertPath != "/etc/esnode/ca.pem" {
		t.Fatal("expected TLS config to be retained")
	}
}

var _ driver.Driver = (*Driver)(nil)
