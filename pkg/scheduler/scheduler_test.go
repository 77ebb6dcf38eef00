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

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/esnode-io/esnode-core/pkg/collector"
	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

type countingCollector struct {
	name  string
	calls atomic.Int32
	err   error
}

func (c *countingCollector) Name() string { return c.name }
func (c *countingCollector) Collect(ctx context.Context, reg *registry.Registry, st *status.State) error {
	c.calls.Add(1)
	return c.err
}

type recordingConsumer struct {
	snapshots []status.Snapshot
}

func (r *recordingConsumer) Observe(snap status.Snapshot) {
	r.snapshots = append(r.snapshots, snap)
}

func TestTickInvokesEveryCollector(t *testing.T) {
	set := collector.NewSet()
	a := &countingCollector{name: "a"}
	b := &countingCollector{name: "b"}
	set.Add(a)
	set.Add(b)

	sched := New(time.Second, registry.New(), status.New(), set)
	sched.Tick(context.Background())

	if a.calls.Load() != 1 || b.calls.Load() != 1 {
		t.Fatalf("expected each collector invoked once, got a=%d b=%d", a.calls.Load(), b.calls.Load())
	}
}

func TestTickMarksUnhealthyOnCollectorError(t *testing.T) {
	set := collector.NewSet()
	set.Add(&countingCollector{name: "broken", err: errors.New("sensor unavailable")})

	st := status.New()
	sched := New(time.Second, registry.New(), st, set)
	sched.Tick(context.Background())

	if st.Snapshot().Healthy {
		t.Error("expected healthy=false after a collector error")
	}
	if len(st.Snapshot().LastErrors) != 1 {
		t.Errorf("expected one recorded error, got %d", len(st.Snapshot().LastErrors))
	}
}

func TestTickStaysHealthyWhenAllCollectorsSucceed(t *testing.T) {
	set := collector.NewSet()
	set.Add(&countingCollector{name: "ok"})

	st := status.New()
	sched := New(time.Second, registry.New(), st, set)
	sched.Tick(context.Background())

	if !st.Snapshot().Healthy {
		t.Error("expected healthy=true when no collector errors")
	}
}

func TestTickNotifiesConsumersWithPostTickSnapshot(t *testing.T) {
	set := collector.NewSet()
	set.Add(&countingCollector{name: "ok"})

	st := status.New()
	sched := New(time.Second, registry.New(), st, set)
	consumer := &recordingConsumer{}
	sched.AddConsumer(consumer)

	sched.Tick(context.Background())

	if len(consumer.snapshots) != 1 {
		t.Fatalf("expected one snapshot delivered, got %d", len(consumer.snapshots))
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	set := collector.NewSet()
	c := &countingCollector{name: "ok"}
	set.Add(c)

	sched := New(5*time.Millisecond, registry.New(), status.New(), set)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := sched.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if c.calls.Load() < 2 {
		t.Errorf("expected multiple ticks before cancellation, got %d", c.calls.Load())
	}
}

func TestTickNeverRunsSameCollectorConcurrently(t *testing.T) {
	set := collector.NewSet()
	slow := &slowCollector{delay: 5 * time.Millisecond}
	set.Add(slow)

	sched := New(2*time.Millisecond, registry.New(), status.New(), set)
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	_ = sched.Run(ctx)

	if slow.maxConcurrent.Load() > 1 {
		t.Errorf("expected collector never invoked concurrently with itself, saw %d", slow.maxConcurrent.Load())
	}
}

type slowCollector struct {
	delay         time.Duration
	inFlight      atomic.Int32
	maxConcurrent atomic.Int32
}

func (s *slowCollector) Name() string { return "slow" }
func (s *slowCollector) Collect(ctx context.Context, reg *registry.Registry, st *status.State) error {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		cur := s.maxConcurrent.Load()
		if n <= cur || s.maxConcurrent.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(s.delay)
	return nil
}
