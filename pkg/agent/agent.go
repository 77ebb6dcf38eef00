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

// Package agent wires every component into the node agent's three
// long-lived tasks — collection, enforcement, and the HTTP export
// surface — plus the subsidiary tasks the configuration enables (the
// TSDB pruner, the orchestrator bridge), composed with
// golang.org/x/sync/errgroup.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/esnode-io/esnode-core/pkg/aiops"
	"github.com/esnode-io/esnode-core/pkg/collector"
	"github.com/esnode-io/esnode-core/pkg/collector/app"
	"github.com/esnode-io/esnode-core/pkg/collector/cpu"
	"github.com/esnode-io/esnode-core/pkg/collector/disk"
	"github.com/esnode-io/esnode-core/pkg/collector/ebpf"
	"github.com/esnode-io/esnode-core/pkg/collector/gpu"
	"github.com/esnode-io/esnode-core/pkg/collector/k8sevents"
	"github.com/esnode-io/esnode-core/pkg/collector/memory"
	"github.com/esnode-io/esnode-core/pkg/collector/network"
	"github.com/esnode-io/esnode-core/pkg/collector/numa"
	"github.com/esnode-io/esnode-core/pkg/collector/power"
	"github.com/esnode-io/esnode-core/pkg/collector/protocol"
	"github.com/esnode-io/esnode-core/pkg/collector/pue"
	"github.com/esnode-io/esnode-core/pkg/config"
	"github.com/esnode-io/esnode-core/pkg/defaults"
	"github.com/esnode-io/esnode-core/pkg/httpserver"
	k8sclient "github.com/esnode-io/esnode-core/pkg/k8s/client"
	"github.com/esnode-io/esnode-core/pkg/orchestrator"
	"github.com/esnode-io/esnode-core/pkg/policy"
	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/scheduler"
	"github.com/esnode-io/esnode-core/pkg/status"
	"github.com/esnode-io/esnode-core/pkg/tsdb"
)

// Agent owns every component built from a single Config and runs them
// until its context is canceled.
type Agent struct {
	Config    *config.Config
	Registry  *registry.Registry
	Status    *status.State
	Scheduler *scheduler.Scheduler
	Policy    *policy.Engine
	Profile   *policy.EfficiencyProfile
	HTTP      *httpserver.Server

	tsdbSink     *tsdb.Sink
	tsdbPruner   *tsdb.Pruner
	orchestrator *orchestrator.Client
	gpuCollector *gpu.Collector
}

// New builds an Agent from cfg. Collector construction failures for
// collectors the configuration does not enable are never fatal; a
// collector whose prerequisite hardware or API is unavailable logs a
// warning and is skipped — the agent's posture is to log and continue
// with reduced capability rather than fail startup over partial
// hardware availability.
func New(cfg *config.Config) (*Agent, error) {
	reg := registry.New()
	st := status.New()

	collectors, gpuCollector := buildCollectors(cfg)

	sched := scheduler.New(cfg.ScrapeInterval, reg, st, collectors)
	sched.CollectTimeout = defaults.CollectorTimeout

	a := &Agent{
		Config:       cfg,
		Registry:     reg,
		Status:       st,
		Scheduler:    sched,
		gpuCollector: gpuCollector,
	}

	if cfg.EnableGPUEvents {
		sched.AddConsumer(aiops.NewRCAEngine(defaults.RCAWindowDuration, cfg.ScrapeInterval, reg, st))
		sched.AddConsumer(aiops.NewFailureRiskPredictor(defaults.RiskWindowDuration, reg, st))
	}

	if cfg.Orchestrator.Enabled {
		a.orchestrator = orchestrator.NewClient(cfg.Orchestrator)
		sched.AddConsumer(a.orchestrator)
	}

	if cfg.EfficiencyProfilePath != "" {
		data, err := os.ReadFile(cfg.EfficiencyProfilePath)
		if err != nil {
			return nil, fmt.Errorf("read efficiency profile: %w", err)
		}
		profile, err := policy.ParseProfile(data)
		if err != nil {
			return nil, fmt.Errorf("parse efficiency profile: %w", err)
		}
		a.Profile = profile
		a.Policy = policy.NewEngine(cfg.DampeningInterval, reg, st, policy.NvidiaSMIPowerLimiter{})
	}

	if cfg.EnableLocalTSDB {
		sink, err := tsdb.New(cfg.LocalTSDBPath)
		if err != nil {
			slog.Warn("local tsdb disabled: failed to initialize sink", "error", err)
		} else {
			a.tsdbSink = sink
			a.tsdbPruner = tsdb.NewPruner(cfg.LocalTSDBPath, defaults.TSDBPrunerInterval, cfg.LocalTSDBRetention, cfg.LocalTSDBMaxDiskBytes)
		}
	}

	httpCfg := httpserver.NewConfig(cfg.ListenAddress)
	httpCfg.BridgeEnabled = cfg.Orchestrator.Enabled
	httpCfg.BridgeToken = cfg.Orchestrator.Token
	httpCfg.BridgeAllowPublic = cfg.Orchestrator.AllowPublic
	var devices httpserver.DeviceLister
	if a.orchestrator != nil {
		devices = a.orchestrator
	}
	a.HTTP = httpserver.New(httpCfg, reg, st, devices)

	return a, nil
}

// Run drives every enabled task until ctx is canceled or one of them
// returns a non-transient error, using an errgroup.WithContext(ctx)
// composition.
func (a *Agent) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Scheduler.Run(gctx)
	})

	g.Go(func() error {
		return a.HTTP.Start(gctx)
	})

	if a.Policy != nil {
		g.Go(func() error {
			return a.runEnforcementLoop(gctx)
		})
	}

	if a.tsdbSink != nil {
		g.Go(func() error {
			defer a.tsdbSink.Close()
			return a.runTSDBWriter(gctx)
		})
		g.Go(func() error {
			a.tsdbPruner.Run(gctx)
			return nil
		})
	}

	if a.gpuCollector != nil && a.gpuCollector.Events != nil {
		g.Go(func() error {
			return a.drainGPUEvents(gctx)
		})
	}

	return g.Wait()
}

// runEnforcementLoop drives the policy engine on its own fixed interval,
// the second of the agent's three long-lived tasks.
func (a *Agent) runEnforcementLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.Config.EnforcementInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap := a.Status.Snapshot()
			if a.Config.EnforcementMode == config.EnforcementModeEnforce {
				a.Policy.Enforce(ctx, a.Profile, snap)
				continue
			}
			// Monitor mode: plan without ever invoking the action
			// executor.
			result := policy.Plan(a.Profile, snap)
			for _, p := range result.Plans {
				if p.Status == policy.StatusViolated {
					slog.Info("policy violation (monitor mode)", "policy", p.PolicyName, "target", p.TargetResource)
				}
			}
		}
	}
}

// runTSDBWriter periodically flushes the registry's current samples to
// the local store, a bounded-size line-delimited file per day.
func (a *Agent) runTSDBWriter(ctx context.Context) error {
	ticker := time.NewTicker(defaults.TSDBWriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			samples, err := a.Registry.Samples()
			if err != nil {
				slog.Warn("tsdb sample collection failed", "error", err)
				continue
			}
			if err := a.tsdbSink.WriteSamples(samples, time.Now().UnixMilli()); err != nil {
				slog.Warn("tsdb write failed", "error", err)
			}
		}
	}
}

// drainGPUEvents forwards GPU device events (ECC, pstate and clock
// changes) from the bounded,
// drop-oldest channel the gpu collector fills into the status error
// ring. It runs as one of the agent's subsidiary optional tasks.
func (a *Agent) drainGPUEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-a.gpuCollector.Events:
			if !ok {
				return nil
			}
			a.Status.RecordError("gpu_event", fmt.Sprintf("gpu=%s kind=%s", evt.GPU, evt.Kind), time.Now().UnixMilli())
		}
	}
}

func buildCollectors(cfg *config.Config) (*collector.Set, *gpu.Collector) {
	set := collector.NewSet()
	var gpuCollector *gpu.Collector

	if cfg.EnableCPU {
		if c, err := cpu.New(); err != nil {
			slog.Warn("cpu collector disabled", "error", err)
		} else {
			set.Add(c)
		}
		// numa has no dedicated enable flag; it rides the cpu collector's
		// flag as another procfs-backed host collector.
		set.Add(numa.New())
	}
	if cfg.EnableMemory {
		if c, err := memory.New(); err != nil {
			slog.Warn("memory collector disabled", "error", err)
		} else {
			set.Add(c)
		}
	}
	if cfg.EnableDisk {
		if c, err := disk.New(); err != nil {
			slog.Warn("disk collector disabled", "error", err)
		} else {
			set.Add(c)
		}
	}
	if cfg.EnableNetwork {
		if c, err := network.New(); err != nil {
			slog.Warn("network collector disabled", "error", err)
		} else {
			set.Add(c)
		}
	}
	if cfg.EnableEBPF {
		set.Add(ebpf.New(defaults.EBPFSampleBufferCapacity))
	}
	if cfg.EnableGPU {
		eventDepth := 0
		if cfg.EnableGPUEvents {
			eventDepth = defaults.GPUEventChannelDepth
		}
		gpuCollector = gpu.New(eventDepth)
		gpuCollector.VisibleDevices = parseVisibleDevices(cfg.GPUVisibleDevices)
		gpuCollector.K8sMode = cfg.K8sMode
		if cfg.EnableGPUEvents {
			// Created up front rather than left to Collect's lazy init so
			// the drain task can start alongside the scheduler without
			// racing the first tick for channel creation.
			gpuCollector.Events = make(chan gpu.GPUEvent, eventDepth)
		}
		set.Add(gpuCollector)
	}
	if cfg.EnablePower {
		set.Add(power.New(cfg.NodePowerEnvelopeWatts))
	}
	if cfg.EnableRackThermals {
		set.Add(pue.New())
	}
	if cfg.EnableApp {
		set.Add(app.New(cfg.AppMetricsURL))
	}
	if len(cfg.Drivers) > 0 {
		drivers, err := buildDrivers(cfg.Drivers)
		if err != nil {
			slog.Warn("protocol collector disabled: invalid driver configuration", "error", err)
		} else {
			set.Add(protocol.New(drivers))
		}
	}
	if cfg.K8sMode && cfg.EnableGPUEvents {
		if clientSet, _, err := k8sclient.GetKubeClient(); err != nil {
			slog.Warn("k8s events collector disabled: no cluster credentials", "error", err)
		} else {
			set.Add(k8sevents.New(clientSet, ""))
		}
	}

	return set, gpuCollector
}

func parseVisibleDevices(csv string) map[string]bool {
	if csv == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out[part] = true
		}
	}
	return out
}
