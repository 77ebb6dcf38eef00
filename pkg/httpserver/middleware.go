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
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/esnode-io/esnode-core/pkg/errors"
)

// withMiddleware wraps a handler with the export surface's common
// request handling: request-id tagging outermost (so a recovered panic
// can be logged with its id), then panic recovery, rate limiting, and
// request logging.
func (s *Server) withMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	return s.requestIDMiddleware(
		s.panicRecoveryMiddleware(
			s.rateLimitMiddleware(
				s.loggingMiddleware(handler),
			),
		),
	)
}

func (s *Server) requestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow() {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, errors.ErrCodeRateLimitExceeded, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (s *Server) panicRecoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered",
					"error", fmt.Sprint(err),
					"requestID", r.Context().Value(contextKeyRequestID),
					"path", r.URL.Path,
				)
				s.writeServerError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	}
}

func (s *Server) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("request completed",
			"requestID", r.Context().Value(contextKeyRequestID),
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String(),
		)
	}
}

// bridgeAuth gates the orchestrator bridge endpoints: a configured token
// must match the X-Bridge-Token header; otherwise the
// request must originate from loopback unless BridgeAllowPublic opts
// the node out of that restriction.
func (s *Server) bridgeAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.BridgeToken != "" {
			if r.Header.Get("X-Bridge-Token") != s.config.BridgeToken {
				s.writeError(w, r, errors.ErrCodeUnauthorized, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if !s.config.BridgeAllowPublic && !isLoopback(r.RemoteAddr) {
			s.writeError(w, r, errors.ErrCodeUnauthorized, "forbidden", nil)
			return
		}
		next.ServeHTTP(w, r)
	}
}
