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

	"github.com/urfave/cli/v3"
)

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "print a health summary fetched from a running daemon",
		Flags: []cli.Flag{addressFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			snap, err := fetchSnapshot(ctx, cmd.String("address"))
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}

			health := "healthy"
			if !snap.Healthy {
				health = "unhealthy"
			}
			fmt.Printf("status:             %s\n", health)
			fmt.Printf("degradation_score:  %d\n", snap.DegradationScore)
			fmt.Printf("last_scrape_unixms: %d\n", snap.LastScrapeUnixMs)
			fmt.Printf("gpus:               %d\n", len(snap.GPUs))
			fmt.Printf("last_errors:        %d\n", len(snap.LastErrors))
			fmt.Printf("k8s_events:         %t\n", snap.K8sEventsDetected)
			fmt.Printf("network_degraded:   %t\n", snap.NetworkDegraded)
			if snap.NodePowerWatts != nil {
				fmt.Printf("node_power_watts:   %.1f\n", *snap.NodePowerWatts)
			}
			return nil
		},
	}
}
