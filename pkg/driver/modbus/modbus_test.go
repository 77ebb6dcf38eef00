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

package modbus

import (
	"context"
	"testing"

	"github.com/esnode-io/esnode-core/pkg/driver"
)

func TestReadAllRequiresConnect(t *testing.T) {
	d := New("modbus-inverter-1", Config{Addr: "127.0.0.1:502", SlaveID: 1})
	if _, err := d.ReadAll(context.Background()); err == nil {
		t.Fatal("expected error reading before connect")
	}
}

func TestConnectThenDisconnectResetsState(t *testing.T) {
	d := New("modbus-inverter-1", Config{Addr: "127.0.0.1:502", SlaveID: 1})
	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	if err := d.Disconnect(context.Background()); err != nil {
		t.Fatalf("unexpected disconnect error: %v", err)
	}
	if _, err := d.ReadAll(context.Background()); err == nil {
		t.Fatal("expected error reading after disconnect")
	}
}

func TestIDReturnsConstructedIdentifier(t *testing.T) {
	d := New("modbus-inverter-1", Config{})
	if d.ID() != "modbus-inverter-1" {
		t.Errorf("expected id modbus-inverter-1, got %q", d.ID())
	}
}

var _ driver.Driver = (*Driver)(nil)
