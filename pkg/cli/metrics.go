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

package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

// metricSetPrefixes maps a metrics view name to the metric-family name
// prefixes it keeps; "full" and "basic" are handled outside this map.
var metricSetPrefixes = map[string][]string{
	"gpu-only":   {"gpu_"},
	"power-only": {"power_", "node_power_", "pue_"},
}

// basicMetricNames is the curated subset `metrics basic` prints: the
// handful of series an operator glancing at a node would check first.
var basicMetricNames = []string{
	"agent_errors_total",
	"node_power_watts",
	"degradation_score",
	"gpu_temperature_celsius",
	"gpu_utilization_percent",
}

func metricsCmd() *cli.Command {
	return &cli.Command{
		Name:      "metrics",
		Usage:     "fetch the Prometheus exposition from a running daemon",
		ArgsUsage: "[basic|full|gpu-only|power-only]",
		Flags:     []cli.Flag{addressFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			view := cmd.Args().First()
			if view == "" {
				view = "full"
			}
			if view != "full" && view != "basic" && view != "gpu-only" && view != "power-only" {
				return usageError(fmt.Errorf("unknown metrics view %q", view))
			}

			body, err := fetchText(ctx, cmd.String("address"), "/metrics")
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}

			if view == "full" {
				os.Stdout.Write(body)
				return nil
			}
			return filterMetrics(body, view)
		},
	}
}

// filterMetrics writes the subset of a text-exposition body matching view
// to stdout, keeping each metric's HELP/TYPE comment lines alongside its
// samples.
func filterMetrics(body []byte, view string) error {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var matches func(name string) bool
	switch view {
	case "basic":
		matches = func(name string) bool {
			for _, n := range basicMetricNames {
				if name == n {
					return true
				}
			}
			return false
		}
	default:
		prefixes := metricSetPrefixes[view]
		matches = func(name string) bool {
			for _, p := range prefixes {
				if strings.HasPrefix(name, p) {
					return true
				}
			}
			return false
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		name := metricNameOf(line)
		if name == "" || matches(name) {
			fmt.Println(line)
		}
	}
	return scanner.Err()
}

// metricNameOf extracts the metric family name from a text-exposition
// line; HELP/TYPE comment lines return the family they describe, while
// other comment lines and blank lines return "" so callers treat them as
// always-kept context lines.
func metricNameOf(line string) string {
	if line == "" {
		return ""
	}
	if strings.HasPrefix(line, "#") {
		fields := strings.Fields(line)
		if len(fields) >= 3 && (fields[1] == "HELP" || fields[1] == "TYPE") {
			return fields[2]
		}
		return ""
	}
	end := strings.IndexAny(line, "{ ")
	if end == -1 {
		return line
	}
	return line[:end]
}
