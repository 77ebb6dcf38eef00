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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// DeviceLister supplies the device records the bridge endpoint reports;
// implemented by pkg/orchestrator. Kept as a narrow interface here so
// httpserver does not import orchestrator.
type DeviceLister interface {
	Devices() []any
}

// Server is the node agent's export surface: /metrics, /status, /healthz,
// and an optional gated /bridge/devices.
type Server struct {
	config   *Config
	registry *registry.Registry
	status   *status.State
	devices  DeviceLister

	httpServer  *http.Server
	rateLimiter *rate.Limiter

	mu    sync.RWMutex
	ready bool
}

// New constructs a Server that exports reg and st over cfg's listen
// address. devices may be nil if the orchestrator bridge is disabled.
func New(cfg *Config, reg *registry.Registry, st *status.State, devices DeviceLister) *Server {
	s := &Server{
		config:      cfg,
		registry:    reg,
		status:      st,
		devices:     devices,
		rateLimiter: rate.NewLimiter(cfg.RateLimit, cfg.RateLimitBurst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.withMiddleware(s.handleMetrics))
	mux.HandleFunc("/status", s.withMiddleware(s.handleStatus))
	mux.HandleFunc("/healthz", s.handleHealthz)
	if cfg.BridgeEnabled {
		mux.HandleFunc("/bridge/devices", s.withMiddleware(s.bridgeAuth(s.handleBridgeDevices)))
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    1 << 16,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) setReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// gracefully. It runs as one of the agent's independent long-lived
// tasks: the HTTP server task never blocks the collection or enforcement
// tasks.
func (s *Server) Start(ctx context.Context) error {
	s.setReady(true)
	slog.Debug("httpserver start", "addr", s.httpServer.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.setReady(false)
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) writeServerError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintln(w, message)
}
