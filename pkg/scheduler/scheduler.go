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

// Package scheduler implements the fixed-interval driver of every
// registered collector. Each tick it invokes every
// collector sequentially — bounded concurrency per tick is left to a
// future revision, but ordering is not an observable guarantee callers
// may rely on beyond "registration order, one at a time" — records its
// wall-clock duration, and on error increments the per-collector error
// counter, appends to the status error ring, and clears the tick's "all
// ok" flag. After the tick it recomputes the degradation score and, if
// configured, feeds the resulting snapshot to the AIOps and orchestrator
// hooks.
//
// The scheduler owns no other concurrency: it runs on a single goroutine
// driven by time.Ticker, the same one-task-one-responsibility shape the
// policy loop and HTTP server use, composed together by pkg/agent via
// golang.org/x/sync/errgroup.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/esnode-io/esnode-core/pkg/collector"
	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// SnapshotConsumer receives the post-tick status snapshot. The AIOps RCA
// engine and the orchestrator device-model bridge both implement this
// after a tick completes.
type SnapshotConsumer interface {
	Observe(snap status.Snapshot)
}

// Scheduler drives a collector.Set on a fixed interval.
type Scheduler struct {
	Interval   time.Duration
	Registry   *registry.Registry
	Status     *status.State
	Collectors *collector.Set
	Consumers  []SnapshotConsumer

	// CollectTimeout bounds each individual collector's Collect call;
	// zero means no per-collector timeout is imposed beyond the tick
	// itself.
	CollectTimeout time.Duration
}

// New constructs a Scheduler. interval and timeout of zero fall back to
// the package's scrape-interval and collector-timeout defaults via the
// caller; this constructor does not impose its own defaults so tests can
// use very short intervals.
func New(interval time.Duration, reg *registry.Registry, st *status.State, collectors *collector.Set) *Scheduler {
	return &Scheduler{
		Interval:   interval,
		Registry:   reg,
		Status:     st,
		Collectors: collectors,
	}
}

// AddConsumer registers a SnapshotConsumer to be notified after every
// tick once the degradation score has been recomputed.
func (s *Scheduler) AddConsumer(c SnapshotConsumer) {
	s.Consumers = append(s.Consumers, c)
}

// Run drives the scheduler until ctx is canceled. The first tick fires
// immediately rather than waiting a full interval, so a freshly started
// agent publishes metrics without delay.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Tick(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs exactly one pass over every registered collector. Exported
// so tests and a CLI one-shot mode can drive a single tick deterministically
// without standing up a ticker.
func (s *Scheduler) Tick(ctx context.Context) {
	allOK := true

	for _, c := range s.Collectors.All() {
		tickCtx := ctx
		var cancel context.CancelFunc
		if s.CollectTimeout > 0 {
			tickCtx, cancel = context.WithTimeout(ctx, s.CollectTimeout)
		}

		start := time.Now()
		err := c.Collect(tickCtx, s.Registry, s.Status)
		duration := time.Since(start)
		if cancel != nil {
			cancel()
		}

		s.Registry.GaugeSet(
			"agent_scrape_duration_seconds",
			"wall-clock duration of the last collect call for this collector",
			map[string]string{"collector": c.Name()},
			duration.Seconds(),
		)

		if err != nil {
			allOK = false
			slog.Error("collector failed", "collector", c.Name(), "error", err)
			_ = s.Registry.CounterInc(
				"agent_errors_total",
				"cumulative collector errors",
				map[string]string{"collector": c.Name()},
				1,
			)
			s.Status.RecordError(c.Name(), err.Error(), time.Now().UnixMilli())
		}
	}

	s.Status.SetHealthy(allOK)
	s.Status.SetLastScrape(time.Now().UnixMilli())
	s.Status.UpdateDegradationScore()

	snap := s.Status.Snapshot()
	for _, consumer := range s.Consumers {
		consumer.Observe(snap)
	}
}
