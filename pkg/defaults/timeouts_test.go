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

import (
	"testing"
	"time"
)

func TestTimeoutConstants(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		minValue time.Duration
		maxValue time.Duration
	}{
		// Collector timeouts
		{"CollectorTimeout", CollectorTimeout, 5 * time.Second, 30 * time.Second},
		{"CollectorK8sTimeout", CollectorK8sTimeout, 10 * time.Second, 60 * time.Second},
		{"AppFetchTimeout", AppFetchTimeout, 1 * time.Second, 30 * time.Second},
		{"GPUQueryTimeout", GPUQueryTimeout, 1 * time.Second, 30 * time.Second},

		// Scheduling intervals
		{"ScrapeInterval", ScrapeInterval, 100 * time.Millisecond, 10 * time.Second},
		{"EnforcementInterval", EnforcementInterval, 1 * time.Second, 60 * time.Second},
		{"DampeningInterval", DampeningInterval, 5 * time.Second, 5 * time.Minute},

		// Driver timeouts
		{"DriverConnectTimeout", DriverConnectTimeout, 1 * time.Second, 30 * time.Second},
		{"DriverReadTimeout", DriverReadTimeout, 100 * time.Millisecond, 5 * time.Second},

		// AIOps windows
		{"RCAWindowDuration", RCAWindowDuration, 1 * time.Second, 5 * time.Minute},
		{"RiskWindowDuration", RiskWindowDuration, 1 * time.Minute, 24 * time.Hour},

		// Server timeouts
		{"ServerReadTimeout", ServerReadTimeout, 5 * time.Second, 30 * time.Second},
		{"ServerWriteTimeout", ServerWriteTimeout, 15 * time.Second, 60 * time.Second},
		{"ServerIdleTimeout", ServerIdleTimeout, 30 * time.Second, 300 * time.Second},
		{"ServerShutdownTimeout", ServerShutdownTimeout, 10 * time.Second, 60 * time.Second},

		// HTTP client timeouts
		{"HTTPClientTimeout", HTTPClientTimeout, 10 * time.Second, 60 * time.Second},
		{"HTTPConnectTimeout", HTTPConnectTimeout, 1 * time.Second, 15 * time.Second},

		// TSDB tuning
		{"TSDBWriteInterval", TSDBWriteInterval, 1 * time.Second, 5 * time.Minute},
		{"TSDBPrunerInterval", TSDBPrunerInterval, 1 * time.Second, 10 * time.Minute},
		{"TSDBRetention", TSDBRetention, 1 * time.Hour, 30 * 24 * time.Hour},

		// CLI timeouts
		{"CLISnapshotTimeout", CLISnapshotTimeout, 1 * time.Second, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.timeout < tt.minValue {
				t.Errorf("%s (%v) is below minimum expected value (%v)", tt.name, tt.timeout, tt.minValue)
			}
			if tt.timeout > tt.maxValue {
				t.Errorf("%s (%v) is above maximum expected value (%v)", tt.name, tt.timeout, tt.maxValue)
			}
		})
	}
}

func TestServerTimeoutRelationships(t *testing.T) {
	// Read timeout should be shorter than write timeout
	if ServerReadTimeout > ServerWriteTimeout {
		t.Errorf("ServerReadTimeout (%v) should not exceed ServerWriteTimeout (%v)",
			ServerReadTimeout, ServerWriteTimeout)
	}

	// Idle timeout should be longer than write timeout
	if ServerIdleTimeout < ServerWriteTimeout {
		t.Errorf("ServerIdleTimeout (%v) should be at least ServerWriteTimeout (%v)",
			ServerIdleTimeout, ServerWriteTimeout)
	}
}

func TestHTTPClientTimeoutRelationships(t *testing.T) {
	// Connect timeout should be less than total timeout
	if HTTPConnectTimeout >= HTTPClientTimeout {
		t.Errorf("HTTPConnectTimeout (%v) should be less than HTTPClientTimeout (%v)",
			HTTPConnectTimeout, HTTPClientTimeout)
	}

	// TLS handshake timeout should be less than total timeout
	if HTTPTLSHandshakeTimeout >= HTTPClientTimeout {
		t.Errorf("HTTPTLSHandshakeTimeout (%v) should be less than HTTPClientTimeout (%v)",
			HTTPTLSHandshakeTimeout, HTTPClientTimeout)
	}
}

func TestCollectorTimeoutLessThanK8s(t *testing.T) {
	// Individual collector timeout should be less than K8s collector timeout
	// since K8s operations may involve multiple API calls
	if CollectorTimeout > CollectorK8sTimeout {
		t.Errorf("CollectorTimeout (%v) should not exceed CollectorK8sTimeout (%v)",
			CollectorTimeout, CollectorK8sTimeout)
	}
}

func TestDampeningIntervalExceedsEnforcementInterval(t *testing.T) {
	// The dampener only has teeth if it outlasts the enforcement tick that
	// might otherwise re-fire the same action every cycle.
	if DampeningInterval < EnforcementInterval {
		t.Errorf("DampeningInterval (%v) should be at least EnforcementInterval (%v)",
			DampeningInterval, EnforcementInterval)
	}
}

func TestDriverReadTimeoutLessThanConnectTimeout(t *testing.T) {
	if DriverReadTimeout >= DriverConnectTimeout {
		t.Errorf("DriverReadTimeout (%v) should be less than DriverConnectTimeout (%v)",
			DriverReadTimeout, DriverConnectTimeout)
	}
}

func TestTSDBPrunerInterval(t *testing.T) {
	if TSDBPrunerInterval < TSDBWriteInterval {
		t.Errorf("TSDBPrunerInterval (%v) should be at least TSDBWriteInterval (%v)",
			TSDBPrunerInterval, TSDBWriteInterval)
	}
}
