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

package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esnode-io/esnode-core/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.EnableGPU = false
	cfg.EnableGPUEvents = false
	cfg.EnableApp = false
	return cfg
}

func TestNewBuildsAgentFromDefaults(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, a.Scheduler)
	require.NotNil(t, a.HTTP)
	assert.Nil(t, a.Policy, "no efficiency profile configured, so no policy engine")
	assert.Nil(t, a.tsdbSink, "local TSDB disabled by default")
}

func TestNewFailsOnUnreadableEfficiencyProfile(t *testing.T) {
	cfg := testConfig(t)
	cfg.EfficiencyProfilePath = filepath.Join(t.TempDir(), "does-not-exist.yaml")

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewLoadsEfficiencyProfileAndBuildsPolicyEngine(t *testing.T) {
	cfg := testConfig(t)
	profilePath := filepath.Join(t.TempDir(), "profile.yaml")
	profile := `
apiVersion: v1
kind: EfficiencyProfile
metadata:
  name: test-profile
policies:
  - name: idle-gpu-throttle
    target: gpu_utilization
    condition: "< 5"
    severity: warning
    action:
      type: alert
`
	require.NoError(t, os.WriteFile(profilePath, []byte(profile), 0o644))
	cfg.EfficiencyProfilePath = profilePath

	a, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, a.Policy)
	require.NotNil(t, a.Profile)
	assert.Equal(t, "test-profile", a.Profile.Metadata.Name)
}

func TestNewEnablesLocalTSDBSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableLocalTSDB = true
	cfg.LocalTSDBPath = t.TempDir()

	a, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, a.tsdbSink)
	require.NotNil(t, a.tsdbPruner)
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = a.Run(ctx)
	assert.Error(t, err) // scheduler returns ctx.Err() on cancellation
}

func TestBuildCollectorsRespectsEnableFlags(t *testing.T) {
	cfg := config.New()
	cfg.EnableCPU = false
	cfg.EnableMemory = false
	cfg.EnableDisk = false
	cfg.EnableNetwork = false
	cfg.EnableGPU = false
	cfg.EnablePower = false
	cfg.EnableApp = false
	cfg.EnableEBPF = false

	set, gpuCollector := buildCollectors(cfg)
	assert.Equal(t, 0, set.Len())
	assert.Nil(t, gpuCollector)
}

func TestBuildCollectorsEnablesGPUEventChannel(t *testing.T) {
	cfg := config.New()
	cfg.EnableGPU = true
	cfg.EnableGPUEvents = true
	cfg.EnableCPU, cfg.EnableMemory, cfg.EnableDisk, cfg.EnableNetwork = false, false, false, false
	cfg.EnablePower, cfg.EnableApp, cfg.EnableEBPF = false, false, false

	_, gpuCollector := buildCollectors(cfg)
	require.NotNil(t, gpuCollector)
	assert.NotNil(t, gpuCollector.Events)
}

func TestParseVisibleDevices(t *testing.T) {
	assert.Nil(t, parseVisibleDevices(""))
	assert.Equal(t, map[string]bool{"0": true, "1": true}, parseVisibleDevices("0, 1"))
}
