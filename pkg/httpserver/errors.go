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
	"time"

	"github.com/google/uuid"

	"github.com/esnode-io/esnode-core/pkg/errors"
	"github.com/esnode-io/esnode-core/pkg/serializer"
)

// ErrorResponse is the JSON body written for a classified request error.
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId"`
	Timestamp time.Time      `json:"timestamp"`
	Retryable bool           `json:"retryable"`
}

// writeError classifies code into an HTTP status and writes it as an
// ErrorResponse body, tagged with the request's id from context.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code errors.ErrorCode, message string, details map[string]any) {
	requestID, _ := r.Context().Value(contextKeyRequestID).(string)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	serializer.RespondJSON(w, httpStatusFromCode(code), ErrorResponse{
		Code:      string(code),
		Message:   message,
		Details:   details,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Retryable: retryableFromCode(code),
	})
}

// httpStatusFromCode maps a canonical error code to an HTTP status.
func httpStatusFromCode(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeUnauthorized:
		return http.StatusForbidden
	case errors.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case errors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case errors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func retryableFromCode(code errors.ErrorCode) bool {
	switch code {
	case errors.ErrCodeRateLimitExceeded, errors.ErrCodeUnavailable:
		return true
	default:
		return false
	}
}
