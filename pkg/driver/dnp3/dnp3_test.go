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

package dnp3

import (
	"context"
	"testing"
	"time"

	"github.com/esnode-io/esnode-core/pkg/driver"
)

func TestReadAllRequiresConnect(t *testing.T) {
	d := New("dnp3-rtu-1", Config{Addr: "127.0.0.1:20000", IntegrityInterval: time.Minute})
	if _, err := d.ReadAll(context.Background()); err == nil {
		t.Fatal("expected error reading before connect")
	}
}

func TestConnectAllowsSubsequentReadAllAttempt(t *testing.T) {
	d := New("dnp3-rtu-1", Config{Addr: "127.0.0.1:20000"})
	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	if _, err := d.ReadAll(context.Background()); err == nil {
		t.Fatal("expected codec-not-implemented error even once connected")
	}
}

var _ driver.Driver = (*Driver)(nil)
