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

// Package httpserver implements the node agent's export surface: a text
// metrics endpoint, a JSON status endpoint, a liveness probe, and — when
// the orchestrator bridge is enabled — a gated device listing endpoint.
package httpserver

import (
	"time"

	"github.com/esnode-io/esnode-core/pkg/defaults"
	"golang.org/x/time/rate"
)

// Config holds the export surface's listen/limit/timeout knobs.
type Config struct {
	Name    string
	Version string

	Address string

	RateLimit      rate.Limit
	RateLimitBurst int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// BridgeEnabled exposes /bridge/devices, the orchestrator bridge
	// endpoint.
	BridgeEnabled bool
	// BridgeToken, if non-empty, must match the X-Bridge-Token header on
	// every bridge request. If empty, bridge requests are allowed only
	// from loopback unless BridgeAllowPublic is set.
	BridgeToken       string
	BridgeAllowPublic bool
}

// NewConfig returns a Config with the export surface's documented
// defaults, matching the listen address/timeouts the rest of the agent
// uses (pkg/config, pkg/defaults).
func NewConfig(listenAddress string) *Config {
	return &Config{
		Name:            "esnoded",
		Address:         listenAddress,
		RateLimit:       100,
		RateLimitBurst:  200,
		ReadTimeout:     defaults.ServerReadTimeout,
		WriteTimeout:    defaults.ServerWriteTimeout,
		IdleTimeout:     defaults.ServerIdleTimeout,
		ShutdownTimeout: defaults.ServerShutdownTimeout,
	}
}
