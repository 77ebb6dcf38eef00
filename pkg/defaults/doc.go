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

// Package defaults provides centralized configuration constants for the agent.
//
// This package defines timeout values, scheduling intervals, window sizes, and
// other configuration defaults used across the codebase. Centralizing these
// values ensures consistency and makes tuning easier.
//
// # Timeout Categories
//
// Constants are organized by component:
//
//   - Collector timeouts: For system data collection operations
//   - Scheduling intervals: For the scrape, enforcement and dampening loops
//   - Driver timeouts: For field-bus connect and read calls
//   - AIOps windows: For the RCA engine and failure-risk predictor
//   - Server timeouts: For HTTP server configuration
//   - HTTP client timeouts: For outbound HTTP requests
//   - TSDB tuning and CLI timeouts
//
// # Usage
//
// Import and use constants directly:
//
//	import "github.com/esnode-io/esnode-core/pkg/defaults"
//
//	ctx, cancel := context.WithTimeout(ctx, defaults.CollectorTimeout)
//	defer cancel()
//
// # Timeout Guidelines
//
// When choosing timeout values:
//
//   - Collectors: 10s default, respects parent context deadline
//   - K8s operations: 30s for API calls
//   - Server shutdown: 30s for graceful shutdown
package defaults
