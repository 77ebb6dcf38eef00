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

	"github.com/esnode-io/esnode-core/pkg/config"
)

func enableMetricSetCmd() *cli.Command  { return metricSetCmd("enable-metric-set", true) }
func disableMetricSetCmd() *cli.Command { return metricSetCmd("disable-metric-set", false) }

// metricSetCmd builds enable-metric-set/disable-metric-set: both toggle a
// named collector group (one of host, gpu, power, mcp, app, all) in the
// effective configuration view and print the result, same caveat as
// `config set` about persistence being out of scope.
func metricSetCmd(name string, enabled bool) *cli.Command {
	verb := "enable"
	if !enabled {
		verb = "disable"
	}
	return &cli.Command{
		Name:      name,
		Usage:     fmt.Sprintf("%s a named group of collectors", verb),
		ArgsUsage: "SET",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			arg := cmd.Args().First()
			if arg == "" {
				return usageError(fmt.Errorf("expected a metric set name (host, gpu, power, mcp, app, all)"))
			}

			cfg, err := loadConfig()
			if err != nil {
				return usageError(err)
			}
			set := config.MetricSet(arg)
			if err := cfg.SetMetricSet(set, enabled); err != nil {
				return usageError(err)
			}

			fmt.Printf("# configuration persistence is out of scope for this core; " +
				"mirror this in the environment to make it durable.\n")
			return printJSON(cfg)
		},
	}
}
