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

	"github.com/esnode-io/esnode-core/pkg/policy"
)

func planCmd() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "evaluate an efficiency profile against a running daemon without applying anything",
		ArgsUsage: "FILE",
		Flags:     []cli.Flag{addressFlag},
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

			printPlanResult(policy.Plan(profile, snap))
			return nil
		},
	}
}

func printPlanResult(result policy.Result) {
	fmt.Printf("profile: %s\n\n", result.ProfileName)
	for _, p := range result.Plans {
		fmt.Printf("[%-9s] %-24s target=%-28s current=%-10s threshold=%-10s %s\n",
			p.Status, p.PolicyName, p.TargetResource, p.CurrentValue, p.Threshold, p.ComputedAction)
	}
	if len(result.Plans) == 0 {
		fmt.Println("(no candidate resources matched any policy target)")
	}
}
