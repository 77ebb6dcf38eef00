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

package httpserver

import (
	"net/http"
	"strings"

	"github.com/esnode-io/esnode-core/pkg/errors"
	"github.com/esnode-io/esnode-core/pkg/serializer"
)

// handleMetrics serves GET /metrics: the text exposition of the metrics
// registry. Never produces a partial body — Encode renders fully in
// memory before any bytes are written.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeError(w, r, errors.ErrCodeMethodNotAllowed, "method not allowed", map[string]any{"allow": http.MethodGet})
		return
	}

	body, err := s.registry.Encode()
	if err != nil {
		s.writeServerError(w, "failed to render metrics")
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleStatus serves GET /status: a JSON encoding of the current status
// snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeError(w, r, errors.ErrCodeMethodNotAllowed, "method not allowed", map[string]any{"allow": http.MethodGet})
		return
	}

	serializer.RespondJSON(w, http.StatusOK, s.status.Snapshot())
}

// handleHealthz serves GET /healthz: liveness gated on the last scrape's
// ok flag. Unlike /metrics and
// /status it is never rate-limited or otherwise middleware-wrapped, so a
// degraded node can still be observed by its orchestrator.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeError(w, r, errors.ErrCodeMethodNotAllowed, "method not allowed", map[string]any{"allow": http.MethodGet})
		return
	}

	snap := s.status.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !snap.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unhealthy\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// handleBridgeDevices serves GET /bridge/devices: the current device
// records the orchestrator bridge built on the most recent tick. Gating
// is applied by bridgeAuth before this handler runs.
func (s *Server) handleBridgeDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeError(w, r, errors.ErrCodeMethodNotAllowed, "method not allowed", map[string]any{"allow": http.MethodGet})
		return
	}

	if s.devices == nil {
		serializer.RespondJSON(w, http.StatusOK, []any{})
		return
	}
	serializer.RespondJSON(w, http.StatusOK, s.devices.Devices())
}

// isLoopback reports whether r's remote address is 127.0.0.1, ::1 or
// localhost, ignoring any proxy-supplied forwarding headers — the bridge's
// loopback gate is a direct-connection check only.
func isLoopback(remoteAddr string) bool {
	host := remoteAddr
	if idx := strings.LastIndex(remoteAddr, ":"); idx >= 0 {
		host = remoteAddr[:idx]
	}
	host = strings.Trim(host, "[]")
	return host == "127.0.0.1" || host == "::1" || host == "localhost"
}
