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
	"os"

	"github.com/urfave/cli/v3"

	"github.com/esnode-io/esnode-core/pkg/policy"
)

func profilesCmd() *cli.Command {
	return &cli.Command{
		Name:      "profiles",
		Usage:     "parse and summarize an efficiency profile file",
		ArgsUsage: "FILE",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return usageError(fmt.Errorf("expected a profile file path"))
			}
			profile, err := readProfile(path)
			if err != nil {
				return usageError(err)
			}

			fmt.Printf("name:        %s\n", profile.Metadata.Name)
			if profile.Metadata.Description != "" {
				fmt.Printf("description: %s\n", profile.Metadata.Description)
			}
			fmt.Printf("version:     %s\n", profile.Metadata.Version)
			fmt.Printf("policies:    %d\n\n", len(profile.Policies))

			for _, r := range profile.Policies {
				fmt.Printf("- %-24s target=%-28s condition=%-10q severity=%-8s action=%s\n",
					r.Name, r.Target, r.Condition, r.Severity, r.Action.Type)
			}
			return nil
		},
	}
}

// readProfile loads and parses an EfficiencyProfile YAML document from
// path, shared by the profiles, plan and apply commands.
func readProfile(path string) (*policy.EfficiencyProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile %q: %w", path, err)
	}
	profile, err := policy.ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("parsing profile %q: %w", path, err)
	}
	return profile, nil
}
