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

// Package status implements the agent's authoritative status state: the
// process-wide, multi-reader/multi-writer struct surface the CLI, the HTTP
// export surface, and the AIOps layer all read from.
//
// Scalar hot-path fields (healthy, node power, 1-minute load average, the
// last-scrape timestamp, degradation score, the K8s-events and
// network-degraded flags, token throughput) are stored in atomics so setters never block a
// suspension point; power and load are fixed-point encoded into a uint64
// (microwatts and milli-load respectively), avoiding the tearing a plain
// float64 store/load pair would risk on platforms without native 64-bit
// atomic float support. Everything else sits behind a single RWMutex,
// held only for the duration of one field update and never across a
// suspension point.
package status

import (
	"sync"
	"sync/atomic"
)

// errorRingCapacity bounds the FIFO ring of recent collector errors.
const errorRingCapacity = 10

// PackagePower is a named power rail reading (e.g. a CPU package).
type PackagePower struct {
	Package string
	Watts   float64
}

// TemperatureReading is a named thermal sensor reading.
type TemperatureReading struct {
	Sensor  string
	Celsius float64
}

// CollectorError is one entry in the bounded error ring.
type CollectorError struct {
	Collector string
	Message   string
	UnixMs    int64
}

// RootCause names a condition the RCA engine correlates a GPU utilization
// dip against.
type RootCause string

const (
	RootCauseNetworkLatency    RootCause = "NetworkLatency"
	RootCauseThermalThrottling RootCause = "ThermalThrottling"
	RootCauseKubernetesEvents  RootCause = "KubernetesEvents"
)

// RCAEvent is one root-cause correlation the AIOps RCA engine emitted for a
// GPU utilization dip observed on a given tick.
type RCAEvent struct {
	GPU         string
	Cause       RootCause
	Description string
	Confidence  float64
	UnixMs      int64
}

// RiskAssessment is the AIOps failure-risk predictor's latest per-GPU
// output: an additive 0-100 score, a 0.0-1.0 failure probability, and the
// named factors that contributed to both.
type RiskAssessment struct {
	UUID               string
	GPU                string
	RiskScore          float64
	FailureProbability float64
	Factors            []string
}

// NVLinkStatus is the cumulative per-link NVLink snapshot for one fabric
// link reported by a GPU, mirroring the GPU's own cumulative-counter
// fields (EnergyJoules, ECCUncorrectedTotal) rather than an instantaneous
// rate.
type NVLinkStatus struct {
	Link         string
	RxBytesTotal *float64
	TxBytesTotal *float64
	ErrorsTotal  *float64
}

// GPUStatus is the per-device snapshot the GPU collector publishes.
type GPUStatus struct {
	GPU                 string
	UUID                string
	TemperatureCelsius  *float64
	PowerWatts          *float64
	UtilPercent         *float64
	MemoryTotalBytes    *float64
	MemoryUsedBytes     *float64
	FanPercent          *float64
	ClockSMMHz          *float64
	ClockMemMHz         *float64
	ThermalThrottle     bool
	PowerThrottle       bool
	EnergyJoules        *float64
	ECCUncorrectedTotal *float64
	ECCCorrectedTotal   *float64
	RetiredPages        *float64
	MinPowerLimitWatts  *float64
	MaxPowerLimitWatts  *float64
	MIGEnabled          bool
	MIGPending          bool
	NVLinks             []NVLinkStatus
}

// hostMetrics holds the host-level fields collectors beyond the first CPU
// pass contribute; guarded by State.mu.
type hostMetrics struct {
	loadAvg5m        *float64
	loadAvg15m       *float64
	uptimeSeconds    *uint64
	cpuCores         *uint64
	cpuUtilPercent   *float64
	memTotalBytes    *uint64
	memUsedBytes     *uint64
	memFreeBytes     *uint64
	swapUsedBytes    *uint64
	diskRootTotal    *uint64
	diskRootUsed     *uint64
	diskRootIOTimeMs *uint64
	primaryNIC       *string
	netRxBytesPerSec *float64
	netTxBytesPerSec *float64
	netDropsPerSec   *float64
	numaNodes        []NUMANodeSummary
	numaDistances    map[string][]uint32
}

// State is the agent's process-wide status handle. The zero value is not
// usable; construct with New.
type State struct {
	healthy             atomic.Bool
	nodePowerMicrowatts atomic.Uint64
	loadAvg1mMilli      atomic.Uint64
	lastScrapeUnixMs    atomic.Uint64
	degradationScore    atomic.Int32
	k8sEventsDetected   atomic.Bool
	networkDegraded     atomic.Bool

	tokensPerSecondMilli atomic.Uint64

	mu              sync.RWMutex
	cpuPackagePower []PackagePower
	cpuTemperatures []TemperatureReading
	gpuStatus       []GPUStatus
	lastErrors      []CollectorError
	rcaEvents       []RCAEvent
	riskAssessments []RiskAssessment
	host            hostMetrics
}

// New returns a State initialized as healthy with all optional fields unset.
func New() *State {
	s := &State{}
	s.healthy.Store(true)
	return s
}

// Snapshot is an immutable deep copy of the current observed state.
type Snapshot struct {
	Healthy            bool
	LoadAvg1m          float64
	LoadAvg5m          *float64
	LoadAvg15m         *float64
	UptimeSeconds      *uint64
	LastScrapeUnixMs   int64
	LastErrors         []CollectorError
	NodePowerWatts     *float64
	CPUPackagePower    []PackagePower
	CPUTemperatures    []TemperatureReading
	GPUs               []GPUStatus
	CPUCores           *uint64
	CPUUtilPercent     *float64
	MemTotalBytes      *uint64
	MemUsedBytes       *uint64
	MemFreeBytes       *uint64
	SwapUsedBytes      *uint64
	DiskRootTotalBytes *uint64
	DiskRootUsedBytes  *uint64
	DiskRootIOTimeMs   *uint64
	PrimaryNIC         *string
	NetRxBytesPerSec   *float64
	NetTxBytesPerSec   *float64
	NetDropsPerSec     *float64
	NUMANodes          []NUMANodeSummary
	NUMADistances      map[string][]uint32
	DegradationScore   int
	K8sEventsDetected  bool
	NetworkDegraded    bool
	RCAEvents          []RCAEvent
	RiskAssessments    []RiskAssessment
	TokensPerSecond    float64
}

// Snapshot returns a coherent, deep-copied view of the current state. The
// returned value is never mutated by subsequent setter calls.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var nodePower *float64
	if raw := s.nodePowerMicrowatts.Load(); raw != 0 {
		v := float64(raw) / 1_000_000.0
		nodePower = &v
	}

	return Snapshot{
		Healthy:            s.healthy.Load(),
		LoadAvg1m:          float64(s.loadAvg1mMilli.Load()) / 1000.0,
		LoadAvg5m:          clonePtr(s.host.loadAvg5m),
		LoadAvg15m:         clonePtr(s.host.loadAvg15m),
		UptimeSeconds:      clonePtr(s.host.uptimeSeconds),
		LastScrapeUnixMs:   int64(s.lastScrapeUnixMs.Load()),
		LastErrors:         append([]CollectorError(nil), s.lastErrors...),
		NodePowerWatts:     nodePower,
		CPUPackagePower:    append([]PackagePower(nil), s.cpuPackagePower...),
		CPUTemperatures:    append([]TemperatureReading(nil), s.cpuTemperatures...),
		GPUs:               append([]GPUStatus(nil), s.gpuStatus...),
		CPUCores:           clonePtr(s.host.cpuCores),
		CPUUtilPercent:     clonePtr(s.host.cpuUtilPercent),
		MemTotalBytes:      clonePtr(s.host.memTotalBytes),
		MemUsedBytes:       clonePtr(s.host.memUsedBytes),
		MemFreeBytes:       clonePtr(s.host.memFreeBytes),
		SwapUsedBytes:      clonePtr(s.host.swapUsedBytes),
		DiskRootTotalBytes: clonePtr(s.host.diskRootTotal),
		DiskRootUsedBytes:  clonePtr(s.host.diskRootUsed),
		DiskRootIOTimeMs:   clonePtr(s.host.diskRootIOTimeMs),
		PrimaryNIC:         cloneStrPtr(s.host.primaryNIC),
		NetRxBytesPerSec:   clonePtr(s.host.netRxBytesPerSec),
		NetTxBytesPerSec:   clonePtr(s.host.netTxBytesPerSec),
		NetDropsPerSec:     clonePtr(s.host.netDropsPerSec),
		NUMANodes:          append([]NUMANodeSummary(nil), s.host.numaNodes...),
		NUMADistances:      cloneDistances(s.host.numaDistances),
		DegradationScore:   int(s.degradationScore.Load()),
		K8sEventsDetected:  s.k8sEventsDetected.Load(),
		NetworkDegraded:    s.networkDegraded.Load(),
		RCAEvents:          append([]RCAEvent(nil), s.rcaEvents...),
		RiskAssessments:    append([]RiskAssessment(nil), s.riskAssessments...),
		TokensPerSecond:    float64(s.tokensPerSecondMilli.Load()) / 1000.0,
	}
}

func cloneDistances(src map[string][]uint32) map[string][]uint32 {
	if src == nil {
		return nil
	}
	out := make(map[string][]uint32, len(src))
	for k, v := range src {
		out[k] = append([]uint32(nil), v...)
	}
	return out
}

// SetHealthy sets the overall health flag published in the snapshot.
func (s *State) SetHealthy(healthy bool) {
	s.healthy.Store(healthy)
}

// SetK8sEventsDetected records whether the Kubernetes events collector
// observed any Warning events since its last tick; consumed by the
// AIOps RCA engine as a priority-event signal.
func (s *State) SetK8sEventsDetected(detected bool) {
	s.k8sEventsDetected.Store(detected)
}

// SetNetworkDegraded records whether the primary NIC is currently
// dropping packets; the AIOps RCA engine treats this as a recent-history
// signal rather than an instantaneous one, looking back across the last
// 3 snapshots for its NetworkLatency root cause rather than just the
// latest.
func (s *State) SetNetworkDegraded(degraded bool) {
	s.networkDegraded.Store(degraded)
}

// SetTokensPerSecond records the application collector's derived token
// throughput; consumed by the policy engine's tokens_per_watt target.
func (s *State) SetTokensPerSecond(tokensPerSecond float64) {
	s.tokensPerSecondMilli.Store(uint64(tokensPerSecond * 1000.0))
}

// SetNodePower records the node's total live power draw in watts.
func (s *State) SetNodePower(watts float64) {
	s.nodePowerMicrowatts.Store(uint64(watts * 1_000_000.0))
}

// SetLastScrape records the wall-clock time of the most recent completed tick.
func (s *State) SetLastScrape(unixMs int64) {
	s.lastScrapeUnixMs.Store(uint64(unixMs))
}

// RecordError appends a collector error to the bounded FIFO ring, dropping
// the oldest entry once capacity is exceeded.
func (s *State) RecordError(collector, message string, unixMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastErrors = append(s.lastErrors, CollectorError{Collector: collector, Message: message, UnixMs: unixMs})
	if len(s.lastErrors) > errorRingCapacity {
		s.lastErrors = s.lastErrors[len(s.lastErrors)-errorRingCapacity:]
	}
}

// SetCPUPackagePower upserts the watts reading for a named CPU package rail.
func (s *State) SetCPUPackagePower(pkg string, watts float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cpuPackagePower {
		if s.cpuPackagePower[i].Package == pkg {
			s.cpuPackagePower[i].Watts = watts
			return
		}
	}
	s.cpuPackagePower = append(s.cpuPackagePower, PackagePower{Package: pkg, Watts: watts})
}

// SetCPUTemperatures replaces the full set of CPU thermal sensor readings.
func (s *State) SetCPUTemperatures(readings []TemperatureReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cpuTemperatures = append([]TemperatureReading(nil), readings...)
}

// SetGPUStatuses replaces the full set of per-device GPU statuses.
func (s *State) SetGPUStatuses(statuses []GPUStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gpuStatus = append([]GPUStatus(nil), statuses...)
}

// SetRCAEvents replaces the RCA engine's most recent correlation output.
func (s *State) SetRCAEvents(events []RCAEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rcaEvents = append([]RCAEvent(nil), events...)
}

// SetRiskAssessments replaces the failure-risk predictor's most recent
// per-GPU output.
func (s *State) SetRiskAssessments(assessments []RiskAssessment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riskAssessments = append([]RiskAssessment(nil), assessments...)
}

// CPUSummary groups the fields the CPU collector publishes in one tick.
type CPUSummary struct {
	Cores         *uint64
	UtilPercent   *float64
	LoadAvg1m     float64
	LoadAvg5m     *float64
	LoadAvg15m    *float64
	UptimeSeconds *uint64
}

// SetCPUSummary records the CPU collector's per-tick output.
func (s *State) SetCPUSummary(sum CPUSummary) {
	s.loadAvg1mMilli.Store(uint64(sum.LoadAvg1m * 1000.0))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.host.cpuCores = sum.Cores
	s.host.cpuUtilPercent = sum.UtilPercent
	s.host.loadAvg5m = sum.LoadAvg5m
	s.host.loadAvg15m = sum.LoadAvg15m
	s.host.uptimeSeconds = sum.UptimeSeconds
}

// MemorySummary groups the fields the memory collector publishes.
type MemorySummary struct {
	TotalBytes    *uint64
	UsedBytes     *uint64
	FreeBytes     *uint64
	SwapUsedBytes *uint64
}

// SetMemorySummary records the memory collector's per-tick output.
func (s *State) SetMemorySummary(sum MemorySummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host.memTotalBytes = sum.TotalBytes
	s.host.memUsedBytes = sum.UsedBytes
	s.host.memFreeBytes = sum.FreeBytes
	s.host.swapUsedBytes = sum.SwapUsedBytes
}

// DiskSummary groups the fields the disk collector publishes.
type DiskSummary struct {
	TotalBytes *uint64
	UsedBytes  *uint64
	IOTimeMs   *uint64
}

// SetDiskSummary records the disk collector's per-tick output.
func (s *State) SetDiskSummary(sum DiskSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host.diskRootTotal = sum.TotalBytes
	s.host.diskRootUsed = sum.UsedBytes
	s.host.diskRootIOTimeMs = sum.IOTimeMs
}

// NetworkSummary groups the fields the network collector publishes.
type NetworkSummary struct {
	PrimaryNIC    *string
	RxBytesPerSec *float64
	TxBytesPerSec *float64
	DropsPerSec   *float64
}

// SetNetworkSummary records the network collector's per-tick output.
func (s *State) SetNetworkSummary(sum NetworkSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host.primaryNIC = sum.PrimaryNIC
	s.host.netRxBytesPerSec = sum.RxBytesPerSec
	s.host.netTxBytesPerSec = sum.TxBytesPerSec
	s.host.netDropsPerSec = sum.DropsPerSec
}

// NUMANodeSummary groups the per-node fields the numa collector publishes.
type NUMANodeSummary struct {
	Node           int
	MemoryTotal    *float64
	MemoryFree     *float64
	MemoryUsed     *float64
	CPUPercent     *float64
	PageFaults     *float64
	CPUCoreIndices []int
}

// NUMASummary groups the numa collector's per-tick output: one summary per
// node plus the inter-node distance matrix, keyed by node id string.
type NUMASummary struct {
	Nodes     []NUMANodeSummary
	Distances map[string][]uint32
}

// SetNUMASummary records the numa collector's per-tick output.
func (s *State) SetNUMASummary(sum NUMASummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host.numaNodes = sum.Nodes
	s.host.numaDistances = sum.Distances
}

// UpdateDegradationScore recomputes and stores the 0-100 degradation score
// as a pure function of the current snapshot, combining recent-error
// volume, uncorrected ECC presence, thermal/power throttle flags, and the
// liveness flag. The
// result is deterministic and reproducible from the snapshot alone.
func (s *State) UpdateDegradationScore() int {
	snap := s.Snapshot()
	score := DegradationScore(snap)
	s.degradationScore.Store(int32(score))
	return score
}

// DegradationScore is the pure scoring function UpdateDegradationScore
// wraps: base 0, +8 per recent error (capped at 40), +15 per GPU reporting
// a nonzero uncorrected ECC total, +10 per GPU with any throttle reason
// set, +20 if the overall liveness flag is false, capped overall at 100.
func DegradationScore(snap Snapshot) int {
	score := 0

	errPenalty := len(snap.LastErrors) * 8
	if errPenalty > 40 {
		errPenalty = 40
	}
	score += errPenalty

	for _, g := range snap.GPUs {
		if g.ECCUncorrectedTotal != nil && *g.ECCUncorrectedTotal > 0 {
			score += 15
		}
		if g.ThermalThrottle || g.PowerThrottle {
			score += 10
		}
	}

	if !snap.Healthy {
		score += 20
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
