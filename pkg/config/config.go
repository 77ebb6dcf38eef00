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

// Package config defines the agent's configuration surface.
//
// Config enumerates every field the agent reads at startup. Loading a
// Config from a TOML file with environment and command-line overrides is
// an external concern this package does not take on; it only defines the
// typed struct, its defaults, and the ESNODE_-prefixed environment
// variable each field is mirrored by, so that a collaborator loader can
// target a stable contract. ApplyEnv implements the narrow slice of that
// contract the core needs to run standalone (e.g. under a container
// without a file loader).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/esnode-io/esnode-core/pkg/defaults"
)

// EnforcementMode selects whether the policy engine applies actions or
// only reports what it would do.
type EnforcementMode string

const (
	// EnforcementModeMonitor computes plans but never calls the executor.
	EnforcementModeMonitor EnforcementMode = "monitor"
	// EnforcementModeEnforce applies planned actions through the executor.
	EnforcementModeEnforce EnforcementMode = "enforce"
)

// MetricSet names a group of collectors that can be toggled together via
// the enable-metric-set/disable-metric-set CLI commands.
type MetricSet string

// Metric sets recognized by the enable-metric-set/disable-metric-set commands.
const (
	MetricSetHost  MetricSet = "host"
	MetricSetGPU   MetricSet = "gpu"
	MetricSetPower MetricSet = "power"
	MetricSetMCP   MetricSet = "mcp"
	MetricSetApp   MetricSet = "app"
	MetricSetAll   MetricSet = "all"
)

// DriverConfig describes one field-bus driver instance.
type DriverConfig struct {
	Protocol string            `toml:"protocol" yaml:"protocol"` // "modbus", "dnp3", "snmp", "mqtt"
	ID       string            `toml:"id" yaml:"id"`
	Target   string            `toml:"target" yaml:"target"`
	Params   map[string]string `toml:"params" yaml:"params"`
}

// OrchestratorConfig controls the optional bridge to the external
// multi-node Orchestrator.
type OrchestratorConfig struct {
	Enabled     bool   `toml:"enabled" yaml:"enabled"`
	Token       string `toml:"token" yaml:"token"`
	AllowPublic bool   `toml:"allow_public" yaml:"allow_public"`

	// PushURL is the external Orchestrator's device-update endpoint.
	PushURL string `toml:"push_url" yaml:"push_url"`
	// PeakFLOPsTFLOPs is the static per-GPU peak-throughput estimate
	// (a configured value or best estimate) pushed in each device record.
	PeakFLOPsTFLOPs float64 `toml:"peak_flops_tflops" yaml:"peak_flops_tflops"`
	// IdleWattsEstimate is the static idle-power estimate pushed in each
	// device record when no better signal is available.
	IdleWattsEstimate float64 `toml:"idle_watts_estimate" yaml:"idle_watts_estimate"`
}

// Config is the full agent configuration surface.
type Config struct {
	// Identity / metadata
	Tags map[string]string

	// Scheduling
	ScrapeInterval time.Duration

	// Collectors - compute
	EnableCPU     bool
	EnableMemory  bool
	EnableDisk    bool
	EnableNetwork bool
	EnableEBPF    bool

	// Collectors - GPU
	EnableGPU         bool
	EnableGPUAMD      bool
	EnableGPUMIG      bool
	EnableGPUEvents   bool
	GPUVisibleDevices string
	MIGConfigDevices  string

	// Collectors - power/thermal
	EnablePower            bool
	NodePowerEnvelopeWatts float64
	EnableRackThermals     bool

	// Environment
	K8sMode   bool
	EnableMCP bool

	// App awareness
	EnableApp     bool
	AppMetricsURL string

	// Networking
	ListenAddress string

	// Local TSDB
	EnableLocalTSDB       bool
	LocalTSDBPath         string
	LocalTSDBRetention    time.Duration
	LocalTSDBMaxDiskBytes int64

	// Orchestrator bridge
	Orchestrator OrchestratorConfig

	// Policy / enforcement
	EfficiencyProfilePath string
	EnforcementMode       EnforcementMode
	EnforcementInterval   time.Duration
	DampeningInterval     time.Duration

	// Drivers
	Drivers []DriverConfig

	// Logging
	LogLevel string
}

// New returns a Config populated with the agent's documented defaults.
func New() *Config {
	return &Config{
		Tags:           map[string]string{"env": "dev"},
		ScrapeInterval: 100 * time.Millisecond,

		EnableCPU:     true,
		EnableMemory:  true,
		EnableDisk:    true,
		EnableNetwork: true,
		EnableEBPF:    false,

		EnableGPU:       true,
		EnableGPUAMD:    false,
		EnableGPUMIG:    false,
		EnableGPUEvents: true,

		EnablePower:        true,
		EnableRackThermals: false,

		K8sMode:   false,
		EnableMCP: false,

		EnableApp:     false,
		AppMetricsURL: "http://localhost:8000/metrics",

		ListenAddress: "0.0.0.0:9100",

		EnableLocalTSDB:       false,
		LocalTSDBPath:         "/tmp/esnode_tsdb",
		LocalTSDBRetention:    defaults.TSDBRetention,
		LocalTSDBMaxDiskBytes: 512 * 1024 * 1024,

		Orchestrator: OrchestratorConfig{
			Enabled:           false,
			PeakFLOPsTFLOPs:   1.0,
			IdleWattsEstimate: 40.0,
		},

		EnforcementMode:     EnforcementModeMonitor,
		EnforcementInterval: defaults.EnforcementInterval,
		DampeningInterval:   defaults.DampeningInterval,

		Drivers: nil,

		LogLevel: "info",
	}
}

// ApplyEnv overrides fields whose ESNODE_ environment variable is set.
// This is the narrow env-only slice of a full file+env+CLI precedence
// loader; it lets the core run standalone.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv("ESNODE_LISTEN_ADDRESS"); ok {
		c.ListenAddress = v
	}
	if v, ok := os.LookupEnv("ESNODE_SCRAPE_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ESNODE_SCRAPE_INTERVAL: %w", err)
		}
		c.ScrapeInterval = d
	}
	if v, ok := os.LookupEnv("ESNODE_ENFORCEMENT_MODE"); ok {
		switch EnforcementMode(strings.ToLower(v)) {
		case EnforcementModeMonitor, EnforcementModeEnforce:
			c.EnforcementMode = EnforcementMode(strings.ToLower(v))
		default:
			return fmt.Errorf("ESNODE_ENFORCEMENT_MODE: unknown mode %q", v)
		}
	}
	if v, ok := os.LookupEnv("ESNODE_ENFORCEMENT_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ESNODE_ENFORCEMENT_INTERVAL: %w", err)
		}
		c.EnforcementInterval = d
	}
	if v, ok := os.LookupEnv("ESNODE_DAMPENING_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ESNODE_DAMPENING_INTERVAL: %w", err)
		}
		c.DampeningInterval = d
	}
	if v, ok := os.LookupEnv("ESNODE_GPU_VISIBLE_DEVICES"); ok {
		c.GPUVisibleDevices = v
	}
	if v, ok := os.LookupEnv("ESNODE_EFFICIENCY_PROFILE_PATH"); ok {
		c.EfficiencyProfilePath = v
	}
	if v, ok := os.LookupEnv("ESNODE_LOCAL_TSDB_PATH"); ok {
		c.LocalTSDBPath = v
	}
	if v, ok := os.LookupEnv("ESNODE_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if err := applyBoolEnv("ESNODE_ENABLE_CPU", &c.EnableCPU); err != nil {
		return err
	}
	if err := applyBoolEnv("ESNODE_ENABLE_MEMORY", &c.EnableMemory); err != nil {
		return err
	}
	if err := applyBoolEnv("ESNODE_ENABLE_DISK", &c.EnableDisk); err != nil {
		return err
	}
	if err := applyBoolEnv("ESNODE_ENABLE_NETWORK", &c.EnableNetwork); err != nil {
		return err
	}
	if err := applyBoolEnv("ESNODE_ENABLE_EBPF", &c.EnableEBPF); err != nil {
		return err
	}
	if err := applyBoolEnv("ESNODE_ENABLE_GPU", &c.EnableGPU); err != nil {
		return err
	}
	if err := applyBoolEnv("ESNODE_ENABLE_POWER", &c.EnablePower); err != nil {
		return err
	}
	if err := applyBoolEnv("ESNODE_ENABLE_MCP", &c.EnableMCP); err != nil {
		return err
	}
	if err := applyBoolEnv("ESNODE_ENABLE_APP", &c.EnableApp); err != nil {
		return err
	}
	if err := applyBoolEnv("ESNODE_K8S_MODE", &c.K8sMode); err != nil {
		return err
	}
	if err := applyBoolEnv("ESNODE_ENABLE_LOCAL_TSDB", &c.EnableLocalTSDB); err != nil {
		return err
	}
	return nil
}

func applyBoolEnv(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// MetricSetEnabled reports whether every collector in the given set is
// currently enabled.
func (c *Config) MetricSetEnabled(set MetricSet) bool {
	switch set {
	case MetricSetHost:
		return c.EnableCPU && c.EnableMemory && c.EnableDisk && c.EnableNetwork
	case MetricSetGPU:
		return c.EnableGPU
	case MetricSetPower:
		return c.EnablePower
	case MetricSetMCP:
		return c.EnableMCP
	case MetricSetApp:
		return c.EnableApp
	case MetricSetAll:
		return c.MetricSetEnabled(MetricSetHost) && c.MetricSetEnabled(MetricSetGPU) &&
			c.MetricSetEnabled(MetricSetPower) && c.MetricSetEnabled(MetricSetMCP) &&
			c.MetricSetEnabled(MetricSetApp)
	default:
		return false
	}
}

// SetMetricSet enables or disables every collector in the given set.
func (c *Config) SetMetricSet(set MetricSet, enabled bool) error {
	switch set {
	case MetricSetHost:
		c.EnableCPU, c.EnableMemory, c.EnableDisk, c.EnableNetwork = enabled, enabled, enabled, enabled
	case MetricSetGPU:
		c.EnableGPU = enabled
	case MetricSetPower:
		c.EnablePower = enabled
	case MetricSetMCP:
		c.EnableMCP = enabled
	case MetricSetApp:
		c.EnableApp = enabled
	case MetricSetAll:
		for _, s := range []MetricSet{MetricSetHost, MetricSetGPU, MetricSetPower, MetricSetMCP, MetricSetApp} {
			if err := c.SetMetricSet(s, enabled); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown metric set %q", set)
	}
	return nil
}
