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
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// Engine drives Plan/Enforce against a registry and status state, owning
// the flap dampener — the only runtime state that survives across ticks.
type Engine struct {
	Registry *registry.Registry
	Status   *status.State
	Limiter  PowerLimiter

	dampener *dampener
}

// NewEngine constructs an Engine whose dampener enforces dampeningInterval
// between two enforcements of the same (policy, target resource) pair.
func NewEngine(dampeningInterval time.Duration, reg *registry.Registry, st *status.State, limiter PowerLimiter) *Engine {
	return &Engine{
		Registry: reg,
		Status:   st,
		Limiter:  limiter,
		dampener: newDampener(dampeningInterval),
	}
}

// Plan evaluates every policy in profile against snap and returns one Plan
// entry per policy-by-resource pair. Plan never mutates state or calls out
// to hardware.
func Plan(profile *EfficiencyProfile, snap status.Snapshot) Result {
	plans := make([]Plan, 0, len(profile.Policies))
	for _, rule := range profile.Policies {
		plans = append(plans, planRule(rule, snap)...)
	}
	return Result{ProfileName: profile.Metadata.Name, Plans: plans}
}

func planRule(rule Rule, snap status.Snapshot) []Plan {
	cond, err := ParseCondition(rule.Condition)
	if err != nil {
		slog.Error("policy: malformed condition, skipping", "policy", rule.Name, "condition", rule.Condition, "error", err)
		return []Plan{{
			PolicyName:     rule.Name,
			TargetResource: "ALL",
			CurrentValue:   "N/A",
			Threshold:      rule.Condition,
			Status:         StatusSkipped,
		}}
	}

	switch rule.Target {
	case TargetGPUTempCelsius:
		return planPerGPU(rule, cond, snap, func(g status.GPUStatus) (float64, bool) {
			return derefOrZero(g.TemperatureCelsius), g.TemperatureCelsius != nil
		})
	case TargetGPUUtilization:
		return planPerGPU(rule, cond, snap, func(g status.GPUStatus) (float64, bool) {
			return derefOrZero(g.UtilPercent), g.UtilPercent != nil
		})
	case TargetGPUPowerWatts:
		return planPerGPU(rule, cond, snap, func(g status.GPUStatus) (float64, bool) {
			return derefOrZero(g.PowerWatts), g.PowerWatts != nil
		})
	case TargetMemoryAllocatedPercent:
		return planPerGPU(rule, cond, snap, func(g status.GPUStatus) (float64, bool) {
			if g.MemoryTotalBytes == nil || *g.MemoryTotalBytes <= 0 || g.MemoryUsedBytes == nil {
				return 0, false
			}
			return *g.MemoryUsedBytes / *g.MemoryTotalBytes * 100, true
		})
	case TargetTokensPerWatt:
		return []Plan{planGlobal(rule, cond, snap)}
	default:
		return []Plan{{
			PolicyName:     rule.Name,
			TargetResource: "ALL",
			CurrentValue:   "N/A",
			Threshold:      rule.Condition,
			Status:         StatusSkipped,
		}}
	}
}

// planPerGPU evaluates rule's condition against every GPU in the
// snapshot, reading the current value with extract.
func planPerGPU(rule Rule, cond *Condition, snap status.Snapshot, extract func(status.GPUStatus) (float64, bool)) []Plan {
	plans := make([]Plan, 0, len(snap.GPUs))
	for idx, gpu := range snap.GPUs {
		current, ok := extract(gpu)
		if !ok {
			continue
		}
		plans = append(plans, Plan{
			PolicyName:     rule.Name,
			TargetResource: gpuResourceID(idx, gpu),
			CurrentValue:   formatValue(current, cond.Unit),
			Threshold:      formatValue(cond.Threshold, cond.Unit),
			Status:         planStatus(cond.Evaluate(current)),
			ComputedAction: computedAction(rule, cond.Evaluate(current)),
		})
	}
	return plans
}

// planGlobal evaluates rule's condition against a single node-wide
// resource (currently only tokens_per_watt).
func planGlobal(rule Rule, cond *Condition, snap status.Snapshot) Plan {
	if snap.NodePowerWatts == nil || *snap.NodePowerWatts <= 0 {
		return Plan{
			PolicyName:     rule.Name,
			TargetResource: "ALL",
			CurrentValue:   "N/A",
			Threshold:      formatValue(cond.Threshold, cond.Unit),
			Status:         StatusSkipped,
		}
	}

	current := snap.TokensPerSecond / *snap.NodePowerWatts
	return Plan{
		PolicyName:     rule.Name,
		TargetResource: "ALL",
		CurrentValue:   formatValue(current, cond.Unit),
		Threshold:      formatValue(cond.Threshold, cond.Unit),
		Status:         planStatus(cond.Evaluate(current)),
		ComputedAction: computedAction(rule, cond.Evaluate(current)),
	}
}

func planStatus(violated bool) PlanStatus {
	if violated {
		return StatusViolated
	}
	return StatusSatisfied
}

func computedAction(rule Rule, violated bool) string {
	if !violated {
		return ""
	}
	return fmt.Sprintf("%s %v", rule.Action.Type, rule.Action.Parameters)
}

func gpuResourceID(idx int, gpu status.GPUStatus) string {
	if gpu.UUID != "" {
		return "GPU-" + gpu.UUID
	}
	if gpu.GPU != "" {
		return "GPU-" + gpu.GPU
	}
	return "GPU-" + strconv.Itoa(idx)
}

func formatValue(v float64, unit string) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + unit
}

func derefOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// EnforceOutcome is one policy-by-resource enforcement attempt's result,
// published into policy_enforced_total{policy,target,result}.
type EnforceOutcome struct {
	Plan    Plan
	Applied bool
	Message string
	Err     error
}

// Enforce plans profile against snap, then for every violation whose
// dampener allows it, invokes the action executor. It always publishes
// policy_violations_total{policy,target,outcome} for every plan entry, and
// policy_enforced_total{policy,target,result} for every enforcement
// attempt.
func (e *Engine) Enforce(ctx context.Context, profile *EfficiencyProfile, snap status.Snapshot) []EnforceOutcome {
	result := Plan(profile, snap)
	now := time.Now()

	var outcomes []EnforceOutcome
	for _, p := range result.Plans {
		e.recordViolation(p)

		if p.Status != StatusViolated {
			continue
		}
		if !e.dampener.allowed(p.PolicyName, p.TargetResource, now) {
			continue
		}

		rule, ok := findRule(profile, p.PolicyName)
		if !ok {
			continue
		}

		message, err := e.executeAction(ctx, rule, p.TargetResource, snap)
		outcome := EnforceOutcome{Plan: p, Message: message, Err: err}
		if err != nil {
			slog.Error("policy enforcement failed", "policy", p.PolicyName, "target", p.TargetResource, "error", err)
			e.recordEnforced(p, false)
		} else {
			outcome.Applied = true
			e.dampener.arm(p.PolicyName, p.TargetResource, now)
			e.recordEnforced(p, true)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func findRule(profile *EfficiencyProfile, name string) (Rule, bool) {
	for _, r := range profile.Policies {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

func (e *Engine) recordViolation(p Plan) {
	if e.Registry == nil {
		return
	}
	_ = e.Registry.CounterInc(
		"policy_violations_total",
		"cumulative policy evaluation outcomes",
		map[string]string{"policy": p.PolicyName, "target": p.TargetResource, "outcome": string(p.Status)},
		1,
	)
}

func (e *Engine) recordEnforced(p Plan, success bool) {
	if e.Registry == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	_ = e.Registry.CounterInc(
		"policy_enforced_total",
		"cumulative policy enforcement attempts",
		map[string]string{"policy": p.PolicyName, "target": p.TargetResource, "result": result},
		1,
	)
}
