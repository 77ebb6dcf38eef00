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

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/esnode-io/esnode-core/pkg/defaults"
	"github.com/esnode-io/esnode-core/pkg/serializer"
	"github.com/esnode-io/esnode-core/pkg/status"
)

// fetchText performs a GET against addr+path on a running daemon and
// returns the raw body (used for the text-exposition /metrics endpoint).
// /status and /metrics are unauthenticated — only the bridge endpoints
// are token-gated — so no credentials are attached here.
func fetchText(ctx context.Context, addr, path string) ([]byte, error) {
	reader := serializer.NewHttpReader(serializer.WithTotalTimeout(defaults.CLISnapshotTimeout))
	url := strings.TrimSuffix(addr, "/") + path
	body, err := reader.ReadWithContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	return body, nil
}

// fetchSnapshot fetches the current status snapshot from a running
// daemon's /status endpoint.
func fetchSnapshot(ctx context.Context, addr string) (status.Snapshot, error) {
	body, err := fetchText(ctx, addr, "/status")
	if err != nil {
		return status.Snapshot{}, err
	}
	var snap status.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return status.Snapshot{}, fmt.Errorf("decoding status snapshot: %w", err)
	}
	return snap, nil
}
