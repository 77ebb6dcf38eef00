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

package power

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListRAPLPackagesFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"intel-rapl:1", "intel-rapl:0", "other-thing"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	c := &Collector{RAPLRoot: root}
	packages, err := c.listRAPLPackages()
	if err != nil {
		t.Fatal(err)
	}
	if len(packages) != 2 {
		t.Fatalf("expected 2 RAPL packages, got %d", len(packages))
	}
	if filepath.Base(packages[0]) != "intel-rapl:0" {
		t.Errorf("expected sorted order, got %v", packages)
	}
}

func TestCollectDerivesWattsFromEnergyDelta(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "intel-rapl:0")
	writeFile(t, filepath.Join(pkgDir, "name"), "package-0\n")
	writeFile(t, filepath.Join(pkgDir, "energy_uj"), "1000000\n")

	c := New(0)
	c.RAPLRoot = root
	c.HwmonRoot = filepath.Join(root, "no-hwmon")
	reg := registry.New()
	st := status.New()

	if err := c.Collect(context.Background(), reg, st); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	snap := st.Snapshot()
	if len(snap.CPUPackagePower) != 1 || snap.CPUPackagePower[0].Watts != 0 {
		t.Fatalf("expected 0 watts on the first sample (no prior baseline), got %+v", snap.CPUPackagePower)
	}

	writeFile(t, filepath.Join(pkgDir, "energy_uj"), "2000000\n")
	if err := c.Collect(context.Background(), reg, st); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	snap = st.Snapshot()
	if len(snap.CPUPackagePower) != 1 {
		t.Fatalf("expected 1 package power reading, got %d", len(snap.CPUPackagePower))
	}
	if snap.CPUPackagePower[0].Watts <= 0 {
		t.Errorf("expected positive derived wattage on the second sample, got %v", snap.CPUPackagePower[0].Watts)
	}
}

func TestCollectNoRAPLIsNotAnError(t *testing.T) {
	c := New(0)
	c.RAPLRoot = filepath.Join(t.TempDir(), "absent")
	c.HwmonRoot = filepath.Join(t.TempDir(), "absent")
	reg := registry.New()
	st := status.New()

	if err := c.Collect(context.Background(), reg, st); err != nil {
		t.Errorf("expected nil error when RAPL/hwmon are absent, got %v", err)
	}
}

func TestReadHwmonNodePowerSumsChannelsAndSetsEnvelopeFlag(t *testing.T) {
	root := t.TempDir()
	hwmon0 := filepath.Join(root, "hwmon0")
	writeFile(t, filepath.Join(hwmon0, "power1_input"), "500000000\n") // 500W in microwatts
	writeFile(t, filepath.Join(hwmon0, "power2_input"), "100000000\n") // 100W

	c := New(550)
	c.RAPLRoot = filepath.Join(root, "no-rapl")
	c.HwmonRoot = root
	reg := registry.New()
	st := status.New()

	if err := c.Collect(context.Background(), reg, st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := st.Snapshot()
	if snap.NodePowerWatts == nil {
		t.Fatal("expected node power to be set")
	}
	if *snap.NodePowerWatts != 600 {
		t.Errorf("expected summed node power 600W, got %v", *snap.NodePowerWatts)
	}
}
