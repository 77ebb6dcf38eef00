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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/esnode-io/esnode-core/pkg/errors"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// PowerLimiter applies a power-limit change to a physical GPU. The
// production implementation shells out to nvidia-smi, the same way
// pkg/collector/gpu samples GPU state; tests substitute a fake.
type PowerLimiter interface {
	SetPowerLimitWatts(ctx context.Context, gpuIndex string, watts float64) error
}

// NvidiaSMIPowerLimiter invokes `nvidia-smi -i <index> -pl <watts>`.
type NvidiaSMIPowerLimiter struct{}

// SetPowerLimitWatts implements PowerLimiter.
func (NvidiaSMIPowerLimiter) SetPowerLimitWatts(ctx context.Context, gpuIndex string, watts float64) error {
	cmd := exec.CommandContext(ctx, "nvidia-smi", "-i", gpuIndex, "-pl", strconv.FormatFloat(watts, 'f', 0, 64))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("nvidia-smi -pl: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// resolveGPU finds the GPU in snap whose UUID or device index matches a
// "GPU-<uuid|index>" target resource string.
func resolveGPU(snap status.Snapshot, targetResource string) (status.GPUStatus, bool) {
	id := strings.TrimPrefix(targetResource, "GPU-")
	for _, gpu := range snap.GPUs {
		if gpu.UUID == id || gpu.UUID == targetResource || gpu.GPU == id {
			return gpu, true
		}
	}
	return status.GPUStatus{}, false
}

// executeAction applies rule's action against the GPU identified by
// targetResource. It returns a human-readable result message on success,
// or a *errors.StructuredError classified ErrCodeEnforcement on failure
// (ErrCodeConfiguration for an unknown action type) — the dampener must
// not be armed for a failed attempt.
func (e *Engine) executeAction(ctx context.Context, rule Rule, targetResource string, snap status.Snapshot) (string, error) {
	switch rule.Action.Type {
	case ActionThrottlePower:
		return e.executeThrottlePower(ctx, rule, targetResource, snap)
	case ActionAlert:
		message, _ := rule.Action.Parameters["message"].(string)
		if message == "" {
			message = fmt.Sprintf("policy %q violated on %s", rule.Name, targetResource)
		}
		slog.Warn("policy alert", "policy", rule.Name, "target", targetResource, "message", message)
		return "alert logged", nil
	case ActionLockClock, ActionKillProcess, ActionMigratePod:
		slog.Info("policy action not implemented, treating as no-op",
			"policy", rule.Name, "action", rule.Action.Type, "target", targetResource)
		return fmt.Sprintf("%s: reserved action, no-op", rule.Action.Type), nil
	default:
		return "", errors.NewWithContext(errors.ErrCodeConfiguration,
			"unknown action type", map[string]any{"action": rule.Action.Type})
	}
}

func (e *Engine) executeThrottlePower(ctx context.Context, rule Rule, targetResource string, snap status.Snapshot) (string, error) {
	gpu, ok := resolveGPU(snap, targetResource)
	if !ok {
		return "", errors.NewWithContext(errors.ErrCodeEnforcement,
			"throttle_power: target GPU not found", map[string]any{"target": targetResource})
	}

	limit, ok := throttlePowerLimit(rule.Action.Parameters)
	if !ok {
		return "", errors.NewWithContext(errors.ErrCodeEnforcement,
			"throttle_power: missing limit_watts/limit parameter", map[string]any{"policy": rule.Name})
	}

	if gpu.MinPowerLimitWatts != nil && limit < *gpu.MinPowerLimitWatts {
		return "", errors.NewWithContext(errors.ErrCodeEnforcement,
			"throttle_power: requested limit below device minimum",
			map[string]any{"requested": limit, "min": *gpu.MinPowerLimitWatts})
	}
	if gpu.MaxPowerLimitWatts != nil && limit > *gpu.MaxPowerLimitWatts {
		return "", errors.NewWithContext(errors.ErrCodeEnforcement,
			"throttle_power: requested limit above device maximum",
			map[string]any{"requested": limit, "max": *gpu.MaxPowerLimitWatts})
	}

	if e.Limiter == nil {
		return "", errors.New(errors.ErrCodeEnforcement, "throttle_power: no power limiter configured")
	}
	if err := e.Limiter.SetPowerLimitWatts(ctx, gpu.GPU, limit); err != nil {
		return "", errors.Wrap(errors.ErrCodeEnforcement, "throttle_power: device call failed", err)
	}

	return fmt.Sprintf("throttled %s to %.0fW (%.0fuW)", targetResource, limit, limit*1_000_000), nil
}

// throttlePowerLimit reads the watt limit from either "limit_watts" or
// "limit", accepting both the int and float64 shapes a YAML/JSON decoder
// may produce.
func throttlePowerLimit(params map[string]any) (float64, bool) {
	for _, key := range []string{"limit_watts", "limit"} {
		switch v := params[key].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		}
	}
	return 0, false
}
