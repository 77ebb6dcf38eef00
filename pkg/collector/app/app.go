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

// Package app implements the application collector: fetches a
// text-formatted metrics document from an inference server's own exposition
// endpoint, parses a fixed set of token-count counters, and derives
// tokens-per-second and tokens-per-watt.
package app

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/serializer"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// tokenCounterNames are the counter families this collector recognizes in
// the fetched exposition text, summed together as "total tokens served".
var tokenCounterNames = []string{
	"vllm:generation_tokens_total",
	"vllm:prompt_tokens_total",
	"tgi_generated_tokens",
	"model_tokens_total",
}

// Collector periodically fetches an application metrics endpoint.
type Collector struct {
	URL    string
	reader *serializer.HttpReader

	lastSum  float64
	lastTime time.Time
	haveLast bool
}

// New returns a collector that fetches url on each tick.
func New(url string) *Collector {
	return &Collector{
		URL:    url,
		reader: serializer.NewHttpReader(),
	}
}

// Name implements collector.Collector.
func (c *Collector) Name() string { return "app" }

// Collect implements collector.Collector.
func (c *Collector) Collect(ctx context.Context, reg *registry.Registry, st *status.State) error {
	if c.URL == "" {
		return nil
	}

	data, err := c.reader.ReadWithContext(ctx, c.URL)
	if err != nil {
		return fmt.Errorf("app: fetch %s: %w", c.URL, err)
	}

	counters, err := parseTokenCounters(data)
	if err != nil {
		return fmt.Errorf("app: parse metrics: %w", err)
	}

	var sum float64
	for _, name := range tokenCounterNames {
		sum += counters[name]
		if v, ok := counters[name]; ok {
			_ = reg.GaugeSet("app_token_counter", "raw upstream token counter value", map[string]string{"name": name}, v)
		}
	}

	now := time.Now()
	var tokensPerSecond float64
	if c.haveLast && sum >= c.lastSum {
		dt := now.Sub(c.lastTime).Seconds()
		if dt > 0 {
			tokensPerSecond = (sum - c.lastSum) / dt
		}
	}
	_ = reg.GaugeSet("app_tokens_per_second", "derived token throughput", nil, tokensPerSecond)
	st.SetTokensPerSecond(tokensPerSecond)

	snap := st.Snapshot()
	if snap.NodePowerWatts != nil && *snap.NodePowerWatts > 0 {
		_ = reg.GaugeSet("app_tokens_per_watt", "derived token throughput normalized by node power", nil, tokensPerSecond/(*snap.NodePowerWatts))
	}

	c.lastSum = sum
	c.lastTime = now
	c.haveLast = true

	return nil
}

// parseTokenCounters extracts `name value` pairs for the recognized token
// counters from a Prometheus-style text exposition document, skipping
// comment/HELP/TYPE lines.
func parseTokenCounters(data []byte) (map[string]float64, error) {
	wanted := make(map[string]bool, len(tokenCounterNames))
	for _, n := range tokenCounterNames {
		wanted[n] = true
	}

	out := make(map[string]float64)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[0]
		if idx := strings.IndexByte(name, '{'); idx >= 0 {
			name = name[:idx]
		}
		if !wanted[name] {
			continue
		}
		v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			continue
		}
		out[name] += v
	}
	return out, scanner.Err()
}
