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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/esnode-io/esnode-core/pkg/defaults"
	"github.com/esnode-io/esnode-core/pkg/policy"
	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

func applyCmd() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "evaluate and enforce an efficiency profile, acting on this host's hardware",
		ArgsUsage: "FILE",
		Flags:     []cli.Flag{addressFlag, yesFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return usageError(fmt.Errorf("expected a profile file path"))
			}
			profile, err := readProfile(path)
			if err != nil {
				return usageError(err)
			}

			snap, err := fetchSnapshot(ctx, cmd.String("address"))
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}

			plan := policy.Plan(profile, snap)
			printPlanResult(plan)
			if !anyViolated(plan) {
				fmt.Println("\nno violations; nothing to enforce")
				return nil
			}

			if !cmd.Bool("yes") && !confirm() {
				fmt.Println("aborted")
				return nil
			}

			// The Engine's dampener and published metrics are local to this
			// invocation; apply enforces directly against this host's
			// hardware (e.g. nvidia-smi), it does not push through the
			// running daemon's own registry.
			engine := policy.NewEngine(defaults.DampeningInterval, registry.New(), status.New(), policy.NvidiaSMIPowerLimiter{})
			outcomes := engine.Enforce(ctx, profile, snap)

			fmt.Println()
			for _, o := range outcomes {
				result := "failed"
				if o.Applied {
					result = "applied"
				}
				fmt.Printf("[%-8s] %-24s target=%-28s %s\n", result, o.Plan.PolicyName, o.Plan.TargetResource, o.Message)
				if o.Err != nil {
					fmt.Printf("           error: %v\n", o.Err)
				}
			}
			return nil
		},
	}
}

func anyViolated(result policy.Result) bool {
	for _, p := range result.Plans {
		if p.Status == policy.StatusViolated {
			return true
		}
	}
	return false
}

func confirm() bool {
	fmt.Print("apply the above actions? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
