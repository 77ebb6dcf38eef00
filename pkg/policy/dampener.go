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

package policy

import (
	"sync"
	"time"
)

// dampenerKey identifies one (policy, target resource) pair.
type dampenerKey struct {
	policy   string
	resource string
}

// dampener tracks the last time each (policy, target resource) pair was
// enforced, suppressing re-enforcement until interval has elapsed. This is
// the only runtime state the policy engine owns; the profile itself is
// reloaded fresh on every tick.
type dampener struct {
	interval time.Duration

	mu       sync.Mutex
	lastFire map[dampenerKey]time.Time
}

func newDampener(interval time.Duration) *dampener {
	return &dampener{interval: interval, lastFire: make(map[dampenerKey]time.Time)}
}

// allowed reports whether (policy, resource) may fire now: true if it has
// never fired, or if interval has elapsed since its last arm. It does not
// mutate state — callers arm separately, and only on a successful action,
// so a failed enforcement attempt leaves the dampener unarmed and
// eligible to retry on the next tick.
func (d *dampener) allowed(policy, resource string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	last, ok := d.lastFire[dampenerKey{policy: policy, resource: resource}]
	return !ok || now.Sub(last) >= d.interval
}

// arm records now as the (policy, resource) pair's last-fire time,
// suppressing further enforcement of it until interval elapses.
func (d *dampener) arm(policy, resource string, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastFire[dampenerKey{policy: policy, resource: resource}] = now
}
