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
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/esnode-io/esnode-core/pkg/config"
)

// loadConfig builds the effective configuration from documented defaults
// overlaid with ESNODE_ environment variables. File-based loading is out
// of scope for this core (see pkg/config's package doc); a deployment
// that needs TOML files runs its own loader ahead of this one and sets
// the equivalent environment variables.
func loadConfig() (*config.Config, error) {
	cfg := config.New()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	return cfg, nil
}

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "inspect the effective configuration",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print the effective configuration as JSON",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return usageError(err)
					}
					return printJSON(cfg)
				},
			},
			{
				Name:      "set",
				Usage:     "show the configuration that would result from setting KEY=VALUE",
				ArgsUsage: "KEY=VALUE",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					arg := cmd.Args().First()
					if arg == "" {
						return usageError(fmt.Errorf("expected KEY=VALUE argument"))
					}
					key, value, ok := strings.Cut(arg, "=")
					if !ok {
						return usageError(fmt.Errorf("malformed assignment %q, expected KEY=VALUE", arg))
					}

					cfg, err := loadConfig()
					if err != nil {
						return usageError(err)
					}
					if err := applyConfigKey(cfg, key, value); err != nil {
						return usageError(err)
					}
					fmt.Printf("# configuration persistence is out of scope for this core; "+
						"set %s in the environment as ESNODE_%s to make this change durable.\n",
						key, strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
					return printJSON(cfg)
				},
			},
		},
	}
}

// applyConfigKey mutates cfg for a single dashed/underscored key the same
// way config.ApplyEnv would for its ESNODE_ counterpart; it recognizes the
// booleans and intervals that are most commonly toggled from a shell.
func applyConfigKey(cfg *config.Config, key, value string) error {
	key = strings.ToLower(strings.ReplaceAll(key, "-", "_"))
	switch key {
	case "listen_address":
		cfg.ListenAddress = value
	case "log_level":
		cfg.LogLevel = value
	case "efficiency_profile_path":
		cfg.EfficiencyProfilePath = value
	case "gpu_visible_devices":
		cfg.GPUVisibleDevices = value
	case "enforcement_mode":
		switch config.EnforcementMode(value) {
		case config.EnforcementModeMonitor, config.EnforcementModeEnforce:
			cfg.EnforcementMode = config.EnforcementMode(value)
		default:
			return fmt.Errorf("unknown enforcement mode %q", value)
		}
	case "scrape_interval", "enforcement_interval", "dampening_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case "scrape_interval":
			cfg.ScrapeInterval = d
		case "enforcement_interval":
			cfg.EnforcementInterval = d
		case "dampening_interval":
			cfg.DampeningInterval = d
		}
	case "enable_cpu", "enable_memory", "enable_disk", "enable_network", "enable_ebpf",
		"enable_gpu", "enable_gpu_events", "enable_power", "enable_rack_thermals",
		"enable_mcp", "enable_app", "enable_local_tsdb", "k8s_mode":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		setBoolField(cfg, key, b)
	default:
		return fmt.Errorf("unknown configuration key %q", key)
	}
	return nil
}

func setBoolField(cfg *config.Config, key string, b bool) {
	switch key {
	case "enable_cpu":
		cfg.EnableCPU = b
	case "enable_memory":
		cfg.EnableMemory = b
	case "enable_disk":
		cfg.EnableDisk = b
	case "enable_network":
		cfg.EnableNetwork = b
	case "enable_ebpf":
		cfg.EnableEBPF = b
	case "enable_gpu":
		cfg.EnableGPU = b
	case "enable_gpu_events":
		cfg.EnableGPUEvents = b
	case "enable_power":
		cfg.EnablePower = b
	case "enable_rack_thermals":
		cfg.EnableRackThermals = b
	case "enable_mcp":
		cfg.EnableMCP = b
	case "enable_app":
		cfg.EnableApp = b
	case "enable_local_tsdb":
		cfg.EnableLocalTSDB = b
	case "k8s_mode":
		cfg.K8sMode = b
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
