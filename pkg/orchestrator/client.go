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

package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/esnode-io/esnode-core/pkg/config"
	"github.com/esnode-io/esnode-core/pkg/defaults"
	"github.com/esnode-io/esnode-core/pkg/errors"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// Client bridges the agent's status snapshots to the external multi-node
// Orchestrator: on every scheduler tick it builds the current device
// records and pushes them to cfg.PushURL. It also implements
// scheduler.SnapshotConsumer so the scheduler can drive it directly, and
// httpserver.DeviceLister so /bridge/devices can report the same records
// without re-deriving them.
type Client struct {
	cfg    config.OrchestratorConfig
	http   *http.Client
	mu     sync.RWMutex
	latest []Device
}

// NewClient constructs a Client for the given orchestrator bridge config.
func NewClient(cfg config.OrchestratorConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: defaults.HTTPClientTimeout},
	}
}

// Observe implements scheduler.SnapshotConsumer. It derives the current
// device records from snap, caches them for DeviceLister, and — if the
// bridge is enabled and a push URL is configured — pushes them to the
// external Orchestrator. Push failures are logged and otherwise ignored:
// transient and retried on the next tick.
func (c *Client) Observe(snap status.Snapshot) {
	devices := DevicesFromSnapshot(snap, c.cfg, time.Now().UnixMilli())
	ptrs := make([]*Device, len(devices))
	for i := range devices {
		ptrs[i] = &devices[i]
	}
	ApplyThermalManagement(ptrs)

	c.mu.Lock()
	c.latest = devices
	c.mu.Unlock()

	if !c.cfg.Enabled || c.cfg.PushURL == "" {
		return
	}
	if err := c.push(context.Background(), devices); err != nil {
		slog.Warn("orchestrator bridge push failed", "error", err)
	}
}

// Devices implements httpserver.DeviceLister, reporting the device records
// built by the most recent Observe call.
func (c *Client) Devices() []any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]any, len(c.latest))
	for i, d := range c.latest {
		out[i] = d
	}
	return out
}

func (c *Client) push(ctx context.Context, devices []Device) error {
	body, err := json.Marshal(devices)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "encode orchestrator device payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.PushURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfiguration, "build orchestrator push request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrCodeTransient, "push orchestrator devices", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.New(errors.ErrCodeTransient, "orchestrator push rejected: "+resp.Status)
	}
	return nil
}
