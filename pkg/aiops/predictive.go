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

package aiops

import (
	"fmt"
	"sync"
	"time"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// Scoring contributions the failure-risk predictor applies per factor.
const (
	scoreUncorrectedECC    = 80.0
	pFailUncorrectedECC    = 0.5
	scoreCorrectedECCHigh  = 50.0
	pFailCorrectedECCHigh  = 0.2
	correctedECCHighDelta  = 1000
	scoreCorrectedECCModer = 20.0
	pFailCorrectedECCModer = 0.05
	correctedECCModerDelta = 100
	scoreThermalThrottle   = 30.0
	pFailThermalThrottle   = 0.1
	thermalThrottleSamples = 10
	scoreRetiredPages      = 40.0
	pFailRetiredPages      = 0.15
	retiredPagesThreshold  = 1

	baselineFailureProbability = 0.01
	maxRiskScore               = 100.0
	maxFailureProbability      = 1.0
)

// timestampedUint is one reading taken at a point in time, used for the
// corrected/uncorrected ECC history rings.
type timestampedUint struct {
	at    time.Time
	value uint64
}

// timestampedReason is one throttle-event occurrence, used for the
// thermal-throttle frequency factor.
type timestampedReason struct {
	at     time.Time
	reason string
}

// gpuHistory is the per-GPU-UUID rolling history the predictor prunes to
// windowDuration on every tick.
type gpuHistory struct {
	eccCorrected   []timestampedUint
	eccUncorrected []timestampedUint
	throttleEvents []timestampedReason
}

// FailureRiskPredictor keeps per-GPU rolling ECC and throttle history and
// derives an additive 0-100 risk score and a capped failure probability
// from it on every tick.
type FailureRiskPredictor struct {
	Registry       *registry.Registry
	Status         *status.State
	WindowDuration time.Duration

	mu      sync.Mutex
	history map[string]*gpuHistory
}

// NewFailureRiskPredictor constructs a predictor with the given rolling
// history window (one hour by default).
func NewFailureRiskPredictor(windowDuration time.Duration, reg *registry.Registry, st *status.State) *FailureRiskPredictor {
	return &FailureRiskPredictor{
		Registry:       reg,
		Status:         st,
		WindowDuration: windowDuration,
		history:        make(map[string]*gpuHistory),
	}
}

// Observe implements scheduler.SnapshotConsumer: it updates per-GPU history
// from the snapshot, recomputes every GPU's risk assessment, and publishes
// the result into status and the gpu_failure_risk_score{uuid} gauge.
func (p *FailureRiskPredictor) Observe(snap status.Snapshot) {
	now := time.Now()
	assessments := make([]status.RiskAssessment, 0, len(snap.GPUs))

	p.mu.Lock()
	for _, gpu := range snap.GPUs {
		uuid := gpu.UUID
		if uuid == "" {
			uuid = gpu.GPU
		}

		h, ok := p.history[uuid]
		if !ok {
			h = &gpuHistory{}
			p.history[uuid] = h
		}
		h.prune(now, p.WindowDuration)
		h.update(now, gpu)

		assessment := h.assess(gpu)
		assessment.UUID = uuid
		assessment.GPU = gpu.GPU
		assessments = append(assessments, assessment)
	}
	p.mu.Unlock()

	if p.Status != nil {
		p.Status.SetRiskAssessments(assessments)
	}
	if p.Registry != nil {
		for _, a := range assessments {
			_ = p.Registry.GaugeSet(
				"gpu_failure_risk_score",
				"predicted 0-100 GPU failure risk score",
				map[string]string{"uuid": a.UUID},
				a.RiskScore,
			)
		}
	}
}

func (h *gpuHistory) prune(now time.Time, window time.Duration) {
	h.eccCorrected = pruneUint(h.eccCorrected, now, window)
	h.eccUncorrected = pruneUint(h.eccUncorrected, now, window)
	h.throttleEvents = pruneReason(h.throttleEvents, now, window)
}

func pruneUint(samples []timestampedUint, now time.Time, window time.Duration) []timestampedUint {
	i := 0
	for i < len(samples) && now.Sub(samples[i].at) > window {
		i++
	}
	return samples[i:]
}

func pruneReason(samples []timestampedReason, now time.Time, window time.Duration) []timestampedReason {
	i := 0
	for i < len(samples) && now.Sub(samples[i].at) > window {
		i++
	}
	return samples[i:]
}

func (h *gpuHistory) update(now time.Time, gpu status.GPUStatus) {
	if gpu.ECCCorrectedTotal != nil {
		h.eccCorrected = append(h.eccCorrected, timestampedUint{at: now, value: uint64(*gpu.ECCCorrectedTotal)})
	}
	if gpu.ECCUncorrectedTotal != nil {
		h.eccUncorrected = append(h.eccUncorrected, timestampedUint{at: now, value: uint64(*gpu.ECCUncorrectedTotal)})
	}
	if gpu.ThermalThrottle {
		h.throttleEvents = append(h.throttleEvents, timestampedReason{at: now, reason: "thermal"})
	}
	if gpu.PowerThrottle {
		h.throttleEvents = append(h.throttleEvents, timestampedReason{at: now, reason: "power"})
	}
}

// assess computes the additive risk score and capped failure probability
// for the GPU's current history using the fixed per-factor contribution
// constants above.
func (h *gpuHistory) assess(gpu status.GPUStatus) status.RiskAssessment {
	var score, pFail float64
	pFail = baselineFailureProbability
	var factors []string

	if gpu.ECCUncorrectedTotal != nil && *gpu.ECCUncorrectedTotal > 0 {
		score += scoreUncorrectedECC
		pFail += pFailUncorrectedECC
		factors = append(factors, fmt.Sprintf("Has %.0f uncorrected ECC errors (Critical)", *gpu.ECCUncorrectedTotal))
	}

	if len(h.eccCorrected) > 0 {
		first := h.eccCorrected[0].value
		last := h.eccCorrected[len(h.eccCorrected)-1].value
		var delta uint64
		if last > first {
			delta = last - first
		}
		switch {
		case delta > correctedECCHighDelta:
			score += scoreCorrectedECCHigh
			pFail += pFailCorrectedECCHigh
			factors = append(factors, fmt.Sprintf("High rate of corrected ECC errors (%d in window)", delta))
		case delta > correctedECCModerDelta:
			score += scoreCorrectedECCModer
			pFail += pFailCorrectedECCModer
			factors = append(factors, fmt.Sprintf("Moderate corrected ECC errors (%d in window)", delta))
		}
	}

	thermalSamples := 0
	for _, e := range h.throttleEvents {
		if e.reason == "thermal" {
			thermalSamples++
		}
	}
	if thermalSamples > thermalThrottleSamples {
		score += scoreThermalThrottle
		pFail += pFailThermalThrottle
		factors = append(factors, fmt.Sprintf("Persistent thermal throttling detected (%d samples)", thermalSamples))
	}

	if gpu.RetiredPages != nil && *gpu.RetiredPages > retiredPagesThreshold {
		score += scoreRetiredPages
		pFail += pFailRetiredPages
		factors = append(factors, fmt.Sprintf("Memory page retirement detected (%.0f pages)", *gpu.RetiredPages))
	}

	if score > maxRiskScore {
		score = maxRiskScore
	}
	if pFail > maxFailureProbability {
		pFail = maxFailureProbability
	}

	return status.RiskAssessment{
		RiskScore:          score,
		FailureProbability: pFail,
		Factors:            factors,
	}
}
