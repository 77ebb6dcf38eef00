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

// Package policy implements the policy engine: a YAML efficiency profile
// is planned against a status snapshot on every enforcement tick, and
// each violation is, subject to a flap dampener, handed to an action
// executor that applies side-effecting changes to GPU devices.
//
// Plan is always side-effect-free; Enforce is the only phase that may
// call out to hardware. Loaded fresh on each tick for live reload, an
// EfficiencyProfile carries no state of its own — all state (the
// dampener's last-action-time table) lives in the Engine that drives it.
package policy

import "gopkg.in/yaml.v3"

// Target names the observable quantity a policy's condition is evaluated
// against.
type Target string

const (
	TargetGPUTempCelsius         Target = "gpu_temp_celsius"
	TargetGPUUtilization         Target = "gpu_utilization"
	TargetGPUPowerWatts          Target = "gpu_power_watts"
	TargetMemoryAllocatedPercent Target = "memory_allocated_percent"
	TargetTokensPerWatt          Target = "tokens_per_watt"
)

// Severity is a policy's declared importance, carried through into the
// plan result for display but not otherwise interpreted by Plan/Enforce.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warn"
	SeverityCritical Severity = "critical"
)

// ActionType names the side-effecting operation Enforce invokes for a
// violated policy.
type ActionType string

const (
	ActionThrottlePower ActionType = "throttle_power"
	ActionLockClock     ActionType = "lock_clock"
	ActionAlert         ActionType = "alert"
	ActionKillProcess   ActionType = "kill_process"
	ActionMigratePod    ActionType = "migrate_pod"
)

// Action is a policy's declared response to a violation: a type plus a
// free-form parameter map (e.g. {limit_watts: 300} for throttle_power).
type Action struct {
	Type       ActionType     `yaml:"type"`
	Parameters map[string]any `yaml:"parameters,omitempty"`
}

// Rule is one policy within an EfficiencyProfile.
type Rule struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Target      Target   `yaml:"target"`
	Condition   string   `yaml:"condition"`
	Duration    string   `yaml:"duration,omitempty"`
	Severity    Severity `yaml:"severity"`
	Action      Action   `yaml:"action"`
}

// Metadata identifies an EfficiencyProfile.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Version     string `yaml:"version"`
}

// Selectors scope which nodes an EfficiencyProfile applies to; evaluated
// by the caller before Plan is invoked, not by Plan itself.
type Selectors struct {
	MatchTags   map[string]string `yaml:"matchTags,omitempty"`
	MatchLabels map[string]string `yaml:"matchLabels,omitempty"`
}

// EfficiencyProfile is the root manifest for a `kind: EfficiencyProfile`
// YAML document.
type EfficiencyProfile struct {
	APIVersion string    `yaml:"apiVersion"`
	Kind       string    `yaml:"kind"`
	Metadata   Metadata  `yaml:"metadata"`
	Selectors  Selectors `yaml:"selectors,omitempty"`
	Policies   []Rule    `yaml:"policies"`
}

// ParseProfile decodes an EfficiencyProfile from its YAML representation.
func ParseProfile(data []byte) (*EfficiencyProfile, error) {
	var profile EfficiencyProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// PlanStatus is the outcome of evaluating one policy against one
// candidate resource.
type PlanStatus string

const (
	StatusSatisfied PlanStatus = "SATISFIED"
	StatusViolated  PlanStatus = "VIOLATED"
	StatusSkipped   PlanStatus = "SKIPPED"
)

// Plan is one policy-by-resource plan entry.
type Plan struct {
	PolicyName     string
	TargetResource string
	CurrentValue   string
	Threshold      string
	Status         PlanStatus
	ComputedAction string
}

// Result is the outcome of planning an entire profile against one
// snapshot.
type Result struct {
	ProfileName string
	Plans       []Plan
}
