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
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/esnode-io/esnode-core/pkg/agent"
	"github.com/esnode-io/esnode-core/pkg/config"
)

// daemonFlags are shared between the explicit "daemon" subcommand and the
// root command, which runs the daemon when invoked with no subcommand name
// (urfave/cli falls back to the root Action in that case).
func daemonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "listen-address",
			Usage:   "HTTP export surface listen address",
			Sources: cli.EnvVars("ESNODE_LISTEN_ADDRESS"),
		},
		&cli.StringFlag{
			Name:    "profile",
			Usage:   "path to an efficiency profile to load at startup",
			Sources: cli.EnvVars("ESNODE_EFFICIENCY_PROFILE_PATH"),
		},
		&cli.StringFlag{
			Name:    "enforcement-mode",
			Usage:   "monitor or enforce",
			Sources: cli.EnvVars("ESNODE_ENFORCEMENT_MODE"),
		},
	}
}

func daemonCmd() *cli.Command {
	return &cli.Command{
		Name:   "daemon",
		Usage:  "run the telemetry agent in the foreground (default command)",
		Flags:  daemonFlags(),
		Action: runDaemon,
	}
}

func runDaemon(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return usageError(err)
	}
	if v := cmd.String("listen-address"); v != "" {
		cfg.ListenAddress = v
	}
	if v := cmd.String("profile"); v != "" {
		cfg.EfficiencyProfilePath = v
	}
	if v := cmd.String("enforcement-mode"); v != "" {
		switch v {
		case string(config.EnforcementModeMonitor):
			cfg.EnforcementMode = config.EnforcementModeMonitor
		case string(config.EnforcementModeEnforce):
			cfg.EnforcementMode = config.EnforcementModeEnforce
		default:
			return usageError(fmt.Errorf("unknown enforcement mode %q", v))
		}
	}

	// agent.New's only failure path is a missing/malformed efficiency
	// profile, a configuration error surfaced at CLI entry with a
	// non-zero exit, never a silent startup failure.
	a, err := agent.New(cfg)
	if err != nil {
		return usageError(err)
	}

	slog.Info("agent starting", "listen_address", cfg.ListenAddress, "scrape_interval", cfg.ScrapeInterval)
	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		return &ExitError{Code: 1, Err: err}
	}
	return nil
}
