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
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

func diagnosticsCmd() *cli.Command {
	return &cli.Command{
		Name:  "diagnostics",
		Usage: "print a combined health, status and error report for a running daemon",
		Flags: []cli.Flag{addressFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			addr := cmd.String("address")

			healthz, healthzErr := fetchText(ctx, addr, "/healthz")
			snap, snapErr := fetchSnapshot(ctx, addr)
			if snapErr != nil {
				return &ExitError{Code: 1, Err: snapErr}
			}

			fmt.Println("=== liveness ===")
			if healthzErr != nil {
				fmt.Printf("/healthz unreachable: %v\n", healthzErr)
			} else {
				fmt.Print(strings.TrimSpace(string(healthz)) + "\n")
			}

			fmt.Println("\n=== status ===")
			fmt.Printf("healthy:            %t\n", snap.Healthy)
			fmt.Printf("degradation_score:  %d\n", snap.DegradationScore)
			fmt.Printf("cpu_util_percent:   %s\n", floatOrDash(snap.CPUUtilPercent))
			fmt.Printf("net_rx_bytes_per_s: %s\n", floatOrDash(snap.NetRxBytesPerSec))
			fmt.Printf("net_tx_bytes_per_s: %s\n", floatOrDash(snap.NetTxBytesPerSec))

			fmt.Println("\n=== GPUs ===")
			if len(snap.GPUs) == 0 {
				fmt.Println("(none reported)")
			}
			for _, g := range snap.GPUs {
				fmt.Printf("%-8s temp=%s power=%s util=%s throttle(thermal=%t power=%t)\n",
					g.GPU, floatOrDash(g.TemperatureCelsius), floatOrDash(g.PowerWatts),
					floatOrDash(g.UtilPercent), g.ThermalThrottle, g.PowerThrottle)
			}

			fmt.Println("\n=== recent errors ===")
			if len(snap.LastErrors) == 0 {
				fmt.Println("(none)")
			}
			for _, e := range snap.LastErrors {
				fmt.Printf("%d %-12s %s\n", e.UnixMs, e.Collector, e.Message)
			}

			if len(snap.RCAEvents) > 0 {
				fmt.Println("\n=== RCA events ===")
				for _, e := range snap.RCAEvents {
					fmt.Printf("%d %-20s %s\n", e.UnixMs, e.Cause, e.Description)
				}
			}

			return nil
		},
	}
}

func floatOrDash(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *p)
}
