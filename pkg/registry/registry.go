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

// Package registry implements the agent's metrics registry: a process-wide
// handle accumulating counter and gauge series and exporting a stable text
// snapshot, backed by github.com/prometheus/client_golang.
//
// Registry wraps a private *prometheus.Registry (never the global default
// registerer) so multiple agent instances in one process never collide, and
// layers two guarantees the raw client does not provide on its own: a
// family's label-name tuple is fixed at first use (SchemaMismatch on
// disagreement instead of a panic), and a rollback-safe absolute-counter
// helper for collectors sampling a source counter that can reset (driver
// reboot, counter wraparound).
package registry

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Kind distinguishes the two metric types the core supports. Histograms
// and summaries are not supported.
type Kind int

const (
	// KindCounter is a monotonically non-decreasing series.
	KindCounter Kind = iota
	// KindGauge is a series that can move in either direction.
	KindGauge
)

// SchemaMismatchError reports that a family was registered with one
// label-name tuple and later referenced with a different one.
type SchemaMismatchError struct {
	Family   string
	Expected []string
	Got      []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("registry: schema mismatch for family %q: expected labels %v, got %v",
		e.Family, e.Expected, e.Got)
}

type family struct {
	kind       Kind
	labelNames []string
	counterVec *prometheus.CounterVec
	gaugeVec   *prometheus.GaugeVec

	mu      sync.Mutex
	lastAbs map[string]float64 // label key -> last observed absolute value, for CounterAbsolute
}

// Registry is a thread-safe, process-wide handle over a private Prometheus
// registry. The zero value is not usable; construct with New.
type Registry struct {
	mu       sync.RWMutex
	prom     *prometheus.Registry
	families map[string]*family
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		prom:     prometheus.NewRegistry(),
		families: make(map[string]*family),
	}
}

// CounterInc increments a counter family by delta, which must be
// non-negative. The family's label-name tuple is fixed on first use;
// subsequent calls with a different tuple return a *SchemaMismatchError.
func (r *Registry) CounterInc(name, help string, labels map[string]string, delta float64) error {
	if delta < 0 {
		return fmt.Errorf("registry: counter %q delta must be non-negative, got %v", name, delta)
	}
	f, err := r.family(name, help, KindCounter, labels)
	if err != nil {
		return err
	}
	values := labelValues(f.labelNames, labels)
	f.counterVec.WithLabelValues(values...).Add(delta)
	return nil
}

// CounterAbsolute reports a rollback-safe delta derived from a raw,
// monotonic-when-healthy source counter. If raw has decreased since the
// last observation for this label set (e.g. the source device rebooted),
// the applied delta is 0 rather than negative, and the new raw value
// becomes the new baseline.
func (r *Registry) CounterAbsolute(name, help string, labels map[string]string, raw float64) error {
	f, err := r.family(name, help, KindCounter, labels)
	if err != nil {
		return err
	}
	key := labelKey(f.labelNames, labels)

	f.mu.Lock()
	last, seen := f.lastAbs[key]
	var delta float64
	switch {
	case !seen:
		delta = 0
	case raw < last:
		delta = 0
	default:
		delta = raw - last
	}
	f.lastAbs[key] = raw
	f.mu.Unlock()

	values := labelValues(f.labelNames, labels)
	f.counterVec.WithLabelValues(values...).Add(delta)
	return nil
}

// GaugeSet sets a gauge family to value. The family's label-name tuple is
// fixed on first use; subsequent calls with a different tuple return a
// *SchemaMismatchError.
func (r *Registry) GaugeSet(name, help string, labels map[string]string, value float64) error {
	f, err := r.family(name, help, KindGauge, labels)
	if err != nil {
		return err
	}
	values := labelValues(f.labelNames, labels)
	f.gaugeVec.WithLabelValues(values...).Set(value)
	return nil
}

// family returns the named family, creating it on first use, and verifies
// the label-name tuple matches.
func (r *Registry) family(name, help string, kind Kind, labels map[string]string) (*family, error) {
	names := labelNames(labels)

	r.mu.RLock()
	f, ok := r.families[name]
	r.mu.RUnlock()
	if ok {
		if f.kind != kind || !sameStrings(f.labelNames, names) {
			return nil, &SchemaMismatchError{Family: name, Expected: f.labelNames, Got: names}
		}
		return f, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check under the write lock in case of a race with another caller.
	if f, ok := r.families[name]; ok {
		if f.kind != kind || !sameStrings(f.labelNames, names) {
			return nil, &SchemaMismatchError{Family: name, Expected: f.labelNames, Got: names}
		}
		return f, nil
	}

	f = &family{kind: kind, labelNames: names, lastAbs: make(map[string]float64)}
	switch kind {
	case KindCounter:
		f.counterVec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, names)
		if err := r.prom.Register(f.counterVec); err != nil {
			return nil, fmt.Errorf("registry: register counter %q: %w", name, err)
		}
	case KindGauge:
		f.gaugeVec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, names)
		if err := r.prom.Register(f.gaugeVec); err != nil {
			return nil, fmt.Errorf("registry: register gauge %q: %w", name, err)
		}
	}
	r.families[name] = f
	return f, nil
}

// Encode renders a stable, timestamp-free text exposition: one line per
// series, label names in lexicographic order, numeric values in a fixed
// decimal format.
func (r *Registry) Encode() ([]byte, error) {
	mfs, err := r.prom.Gather()
	if err != nil {
		return nil, fmt.Errorf("registry: gather: %w", err)
	}

	sort.Slice(mfs, func(i, j int) bool { return mfs[i].GetName() < mfs[j].GetName() })

	var buf bytes.Buffer
	for _, mf := range mfs {
		name := mf.GetName()
		metrics := mf.GetMetric()
		sort.Slice(metrics, func(i, j int) bool {
			return labelsToString(metrics[i].GetLabel()) < labelsToString(metrics[j].GetLabel())
		})
		for _, m := range metrics {
			var value float64
			switch {
			case m.Counter != nil:
				value = m.GetCounter().GetValue()
			case m.Gauge != nil:
				value = m.GetGauge().GetValue()
			default:
				continue
			}
			buf.WriteString(name)
			if labels := labelsToString(m.GetLabel()); labels != "" {
				buf.WriteByte('{')
				buf.WriteString(labels)
				buf.WriteByte('}')
			}
			buf.WriteByte(' ')
			buf.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// Sample is one series observation: its fully-qualified name, its
// canonical label string (as rendered by Encode), and its current value.
type Sample struct {
	Series string
	Labels string
	Value  float64
}

// Samples returns every current counter/gauge observation, for
// consumers (pkg/tsdb) that persist raw samples rather than the text
// exposition format.
func (r *Registry) Samples() ([]Sample, error) {
	mfs, err := r.prom.Gather()
	if err != nil {
		return nil, fmt.Errorf("registry: gather: %w", err)
	}

	var samples []Sample
	for _, mf := range mfs {
		name := mf.GetName()
		for _, m := range mf.GetMetric() {
			var value float64
			switch {
			case m.Counter != nil:
				value = m.GetCounter().GetValue()
			case m.Gauge != nil:
				value = m.GetGauge().GetValue()
			default:
				continue
			}
			samples = append(samples, Sample{Series: name, Labels: labelsToString(m.GetLabel()), Value: value})
		}
	}
	return samples, nil
}

func labelsToString(pairs []*dto.LabelPair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", p.GetName(), p.GetValue()))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func labelValues(names []string, labels map[string]string) []string {
	values := make([]string, len(names))
	for i, n := range names {
		values[i] = labels[n]
	}
	return values
}

func labelKey(names []string, labels map[string]string) string {
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(labels[n])
		b.WriteByte(';')
	}
	return b.String()
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
