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

package network

import "testing"

func TestSelectPrimaryNICHighestDeltaWins(t *testing.T) {
	current := map[string]uint64{"eth0": 1000, "eth1": 5000, "lo": 9000}
	previous := map[string]uint64{"eth0": 900, "eth1": 4000, "lo": 0}

	name, ok := selectPrimaryNIC(current, previous)
	if !ok {
		t.Fatal("expected a primary NIC to be selected")
	}
	if name != "eth1" {
		t.Errorf("expected eth1 (delta 1000), got %s", name)
	}
}

func TestSelectPrimaryNICExcludesLoopback(t *testing.T) {
	current := map[string]uint64{"lo": 100000}
	previous := map[string]uint64{"lo": 0}

	if _, ok := selectPrimaryNIC(current, previous); ok {
		t.Error("loopback interface must never be selected as primary")
	}
}

func TestSelectPrimaryNICTieBrokenByName(t *testing.T) {
	current := map[string]uint64{"eth1": 100, "eth0": 100}
	previous := map[string]uint64{"eth1": 0, "eth0": 0}

	name, ok := selectPrimaryNIC(current, previous)
	if !ok {
		t.Fatal("expected a primary NIC to be selected")
	}
	if name != "eth0" {
		t.Errorf("expected tie broken toward eth0 (lexicographically smallest), got %s", name)
	}
}

func TestSelectPrimaryNICSkipsUnseenInterfaces(t *testing.T) {
	current := map[string]uint64{"eth0": 500, "eth2": 10}
	previous := map[string]uint64{"eth0": 400}

	name, ok := selectPrimaryNIC(current, previous)
	if !ok || name != "eth0" {
		t.Errorf("expected eth0 selected despite eth2 having no prior sample, got %s ok=%v", name, ok)
	}
}

func TestSelectPrimaryNICNoneWhenNoGrowth(t *testing.T) {
	current := map[string]uint64{"eth0": 100}
	previous := map[string]uint64{"eth0": 150}

	if _, ok := selectPrimaryNIC(current, previous); ok {
		t.Error("a counter decrease (reset) must not be selected as the primary NIC delta")
	}
}

func TestSelectPrimaryNICEmpty(t *testing.T) {
	if _, ok := selectPrimaryNIC(nil, nil); ok {
		t.Error("expected no selection with no interfaces")
	}
}
