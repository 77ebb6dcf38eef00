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

package logging

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"empty defaults to info", "", slog.LevelInfo},
		{"unrecognized defaults to info", "verbose", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"debug upper", "DEBUG", slog.LevelDebug},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"padded", "  info  ", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewStructuredLogger(t *testing.T) {
	logger := NewStructuredLogger("esnoded", "v0.1.0", "debug")
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if !logger.Enabled(nil, slog.LevelDebug) {
		t.Errorf("expected debug level to be enabled")
	}
}

func TestNewStructuredLoggerDefaultsToInfo(t *testing.T) {
	logger := NewStructuredLogger("esnoded", "v0.1.0", "")
	if logger.Enabled(nil, slog.LevelDebug) {
		t.Errorf("expected debug level to be disabled by default")
	}
	if !logger.Enabled(nil, slog.LevelInfo) {
		t.Errorf("expected info level to be enabled by default")
	}
}

func TestNewLogLogger(t *testing.T) {
	l := NewLogLogger(slog.LevelWarn, false)
	if l == nil {
		t.Fatal("expected non-nil *log.Logger")
	}
}

func TestSetDefaultStructuredLoggerWithLevel(t *testing.T) {
	SetDefaultStructuredLoggerWithLevel("esnoded-test", "v0.0.0", "error")
	if slog.Default().Enabled(nil, slog.LevelWarn) {
		t.Errorf("expected warn level to be disabled after setting error level")
	}
	// restore a permissive default so later tests in other packages are unaffected
	SetDefaultStructuredLoggerWithLevel("esnoded-test", "v0.0.0", "info")
}
