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

package memory

import "testing"

func u64(v uint64) *uint64 { return &v }

func TestUsedBytesSubtractsBuffersAndCache(t *testing.T) {
	got := usedBytes(u64(1000), u64(200), u64(100), u64(50))
	if got == nil || *got != 650 {
		t.Fatalf("expected 650, got %v", got)
	}
}

func TestUsedBytesMissingBuffersAndCache(t *testing.T) {
	got := usedBytes(u64(1000), u64(200), nil, nil)
	if got == nil || *got != 800 {
		t.Fatalf("expected 800, got %v", got)
	}
}

func TestUsedBytesNilWithoutTotal(t *testing.T) {
	if got := usedBytes(nil, u64(200), nil, nil); got != nil {
		t.Errorf("expected nil when total is unknown, got %v", *got)
	}
}

func TestDeltaBytes(t *testing.T) {
	got := deltaBytes(u64(500), u64(150))
	if got == nil || *got != 350 {
		t.Fatalf("expected 350, got %v", got)
	}
	if deltaBytes(nil, u64(1)) != nil {
		t.Errorf("expected nil when a is unknown")
	}
}
