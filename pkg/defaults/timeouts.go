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

package defaults

import "time"

// Collector timeouts for data collection operations.
const (
	// CollectorTimeout is the default timeout for a single collector tick.
	// Collectors should respect parent context deadlines when shorter.
	CollectorTimeout = 10 * time.Second

	// CollectorK8sTimeout is the timeout for Kubernetes API calls made by
	// the k8sevents collector.
	CollectorK8sTimeout = 30 * time.Second

	// AppFetchTimeout bounds a single HTTP scrape of an application's
	// health or metrics endpoint.
	AppFetchTimeout = 5 * time.Second

	// GPUQueryTimeout bounds a single nvidia-smi invocation.
	GPUQueryTimeout = 5 * time.Second
)

// Scheduling intervals for the scrape, enforcement and dampening loops.
const (
	// ScrapeInterval is the default cadence at which the scheduler invokes
	// every registered collector.
	ScrapeInterval = 100 * time.Millisecond

	// EnforcementInterval is the default cadence of the independent policy
	// enforcement ticker.
	EnforcementInterval = 5 * time.Second

	// DampeningInterval is the default minimum time between two
	// enforcements of the same (policy, target) pair.
	DampeningInterval = 30 * time.Second
)

// Driver timeouts for field-bus operations.
const (
	// DriverConnectTimeout bounds a single Driver.Connect call.
	DriverConnectTimeout = 5 * time.Second

	// DriverReadTimeout bounds a single Driver.ReadAll call.
	DriverReadTimeout = 2 * time.Second
)

// AIOps window sizes.
const (
	// RCAWindowDuration is the default rolling window the AIOps RCA engine
	// keeps snapshots for.
	RCAWindowDuration = 10 * time.Second

	// RiskWindowDuration is the default rolling window the failure-risk
	// predictor keeps per-GPU ECC/throttle history for.
	RiskWindowDuration = time.Hour
)

// Server timeouts for HTTP server configuration.
const (
	// ServerReadTimeout is the maximum duration for reading request headers.
	ServerReadTimeout = 10 * time.Second

	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 30 * time.Second
)

// HTTP client timeouts for outbound requests (app scrape, orchestrator
// bridge pushes).
const (
	// HTTPClientTimeout is the default total timeout for HTTP requests.
	HTTPClientTimeout = 30 * time.Second

	// HTTPConnectTimeout is the timeout for establishing connections.
	HTTPConnectTimeout = 5 * time.Second

	// HTTPTLSHandshakeTimeout is the timeout for TLS handshake.
	HTTPTLSHandshakeTimeout = 5 * time.Second

	// HTTPResponseHeaderTimeout is the timeout for reading response headers.
	HTTPResponseHeaderTimeout = 10 * time.Second

	// HTTPIdleConnTimeout is the timeout for idle connections in the pool.
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPKeepAlive is the keep-alive duration for connections.
	HTTPKeepAlive = 30 * time.Second

	// HTTPExpectContinueTimeout is the timeout for Expect: 100-continue.
	HTTPExpectContinueTimeout = 1 * time.Second
)

// TSDB sink tuning.
const (
	// TSDBWriteInterval is the minimum time between two registry snapshots
	// appended to the local TSDB sink.
	TSDBWriteInterval = 30 * time.Second

	// TSDBPrunerInterval is the cadence of the age/size pruner.
	TSDBPrunerInterval = 60 * time.Second

	// TSDBRetention is the default age bound for TSDB records.
	TSDBRetention = 24 * time.Hour
)

// CLI timeouts for command-line operations.
const (
	// CLISnapshotTimeout is the default timeout for a status/diagnostics
	// snapshot request made by the CLI against a running daemon.
	CLISnapshotTimeout = 5 * time.Second
)

// GPUEventChannelDepth is the capacity of the bounded channel carrying the
// device events (ECC, pstate/clock changes) the GPU collector derives each
// tick to the agent's event drain; oldest events are dropped on overflow.
const GPUEventChannelDepth = 256

// EBPFSampleBufferCapacity is the capacity of the eBPF collector's rolling
// kernel-sample buffer; oldest samples are evicted on overflow.
const EBPFSampleBufferCapacity = 4096
