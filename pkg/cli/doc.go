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

// Package cli implements the esnoded command-line interface.
//
// # Commands
//
// daemon (default) - run the telemetry agent in the foreground:
//
//	esnoded daemon --listen-address 0.0.0.0:9100 --profile efficiency.yaml
//
// status - print a health summary fetched from a running daemon:
//
//	esnoded status --address http://127.0.0.1:9100
//
// metrics [basic|full|gpu-only|power-only] - fetch the Prometheus
// exposition from a running daemon, optionally filtered to a subset:
//
//	esnoded metrics gpu-only
//
// profiles - parse and summarize an efficiency profile file:
//
//	esnoded profiles efficiency.yaml
//
// diagnostics - print a combined health/status/errors report:
//
//	esnoded diagnostics
//
// config show|set KEY=VALUE - inspect the effective configuration derived
// from defaults and ESNODE_ environment variables:
//
//	esnoded config show
//	esnoded config set enable_gpu=false
//
// plan FILE - evaluate an efficiency profile against a running daemon's
// current snapshot without applying anything:
//
//	esnoded plan efficiency.yaml
//
// apply FILE [-y] - evaluate and enforce an efficiency profile against a
// running daemon's current snapshot, acting on this host's hardware:
//
//	esnoded apply efficiency.yaml -y
//
// enable-metric-set SET / disable-metric-set SET - toggle a named group
// of collectors (host, gpu, power, mcp, app, all) in the effective
// configuration view.
//
// # Environment variables
//
// Every CLI flag is mirrored by an ESNODE_-prefixed environment variable;
// see pkg/config for the full list consumed by the daemon itself. The CLI
// additionally honors ESNODE_ADDRESS for the daemon base URL used by the
// remote-query commands (status, metrics, diagnostics, plan, apply).
//
// # Exit codes
//
//	0  success
//	1  generic error (I/O failure, remote daemon unreachable)
//	2  usage/configuration error (bad flags, malformed profile, unknown key)
package cli
