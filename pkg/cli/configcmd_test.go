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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esnode-io/esnode-core/pkg/config"
)

func TestApplyConfigKeyBoolean(t *testing.T) {
	cfg := config.New()
	require.NoError(t, applyConfigKey(cfg, "enable-gpu", "false"))
	assert.False(t, cfg.EnableGPU)
}

func TestApplyConfigKeyDuration(t *testing.T) {
	cfg := config.New()
	require.NoError(t, applyConfigKey(cfg, "scrape_interval", "2s"))
	assert.Equal(t, 2*time.Second, cfg.ScrapeInterval)
}

func TestApplyConfigKeyEnforcementMode(t *testing.T) {
	cfg := config.New()
	require.NoError(t, applyConfigKey(cfg, "enforcement_mode", "enforce"))
	assert.Equal(t, config.EnforcementModeEnforce, cfg.EnforcementMode)

	assert.Error(t, applyConfigKey(cfg, "enforcement_mode", "bogus"))
}

func TestApplyConfigKeyUnknown(t *testing.T) {
	cfg := config.New()
	assert.Error(t, applyConfigKey(cfg, "not_a_real_key", "1"))
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9100", cfg.ListenAddress)
}
