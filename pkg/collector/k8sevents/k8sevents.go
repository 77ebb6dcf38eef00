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

// Package k8sevents is an optional supplemental collector: on each tick
// it lists Warning Events for the configured namespace (or cluster-wide)
// and records whether any were newly observed since the last tick into
// the agent's status state, where the AIOps RCA engine consumes it as a
// priority event signal.
package k8sevents

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// Collector watches Kubernetes Warning Events in a namespace.
type Collector struct {
	ClientSet kubernetes.Interface
	Namespace string

	seen map[string]struct{}
}

// New constructs a collector for the given namespace. An empty
// namespace means "all namespaces".
func New(clientSet kubernetes.Interface, namespace string) *Collector {
	return &Collector{
		ClientSet: clientSet,
		Namespace: namespace,
		seen:      make(map[string]struct{}),
	}
}

// Name implements collector.Collector.
func (c *Collector) Name() string { return "k8sevents" }

// Collect implements collector.Collector.
func (c *Collector) Collect(ctx context.Context, reg *registry.Registry, st *status.State) error {
	if c.ClientSet == nil {
		return nil
	}

	list, err := c.ClientSet.CoreV1().Events(c.Namespace).List(ctx, metav1.ListOptions{
		FieldSelector: "type=" + corev1.EventTypeWarning,
	})
	if err != nil {
		return fmt.Errorf("k8sevents: list warning events: %w", err)
	}

	detected := false
	for _, ev := range list.Items {
		key := string(ev.UID)
		if key == "" {
			key = fmt.Sprintf("%s/%s/%d", ev.Namespace, ev.Name, ev.Count)
		}
		if _, ok := c.seen[key]; ok {
			continue
		}
		c.seen[key] = struct{}{}
		detected = true
	}

	if len(c.seen) > warningSeenCapacity {
		c.seen = make(map[string]struct{})
	}

	st.SetK8sEventsDetected(detected)

	flag := 0.0
	if detected {
		flag = 1.0
	}
	reg.GaugeSet("k8s_events_detected", "whether a new Warning event was observed this tick", nil, flag)
	reg.GaugeSet("k8s_events_total", "count of Warning events observed in the last list", nil, float64(len(list.Items)))

	return nil
}

// warningSeenCapacity bounds the dedup set so a long-running agent
// doesn't accumulate memory unboundedly across many ticks.
const warningSeenCapacity = 10000
