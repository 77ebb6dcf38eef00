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

package numa

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseCPUList(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{"", nil},
		{"0-3", []int{0, 1, 2, 3}},
		{"0,2,4", []int{0, 2, 4}},
		{"0-1,8,10-11", []int{0, 1, 8, 10, 11}},
	}
	for _, c := range cases {
		got, err := parseCPUList(c.in)
		if err != nil {
			t.Fatalf("parseCPUList(%q): %v", c.in, err)
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("parseCPUList(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseKeyedKBMeminfoStyle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meminfo")
	content := "Node 0 MemTotal:       16384000 kB\nNode 0 MemFree:         2048000 kB\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := parseKeyedKB(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got["MemTotal"] != 16384000 {
		t.Errorf("MemTotal = %v, want 16384000", got["MemTotal"])
	}
	if got["MemFree"] != 2048000 {
		t.Errorf("MemFree = %v, want 2048000", got["MemFree"])
	}
}

func TestParseKeyedKBNumastatStyle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "numastat")
	content := "numa_hit 12345\nnuma_miss 10\nnuma_foreign 3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := parseKeyedKB(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got["numa_foreign"] != 3 {
		t.Errorf("numa_foreign = %v, want 3", got["numa_foreign"])
	}
}

func TestListNodesSkipsNonNodeEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"node0", "node1", "node11", "has_cpu", "cpu0"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	c := &Collector{Root: dir}
	nodes, err := c.listNodes()
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 1, 11}
	if !reflect.DeepEqual(nodes, want) {
		t.Errorf("listNodes() = %v, want %v", nodes, want)
	}
}

func TestReadDistance(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "node0"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "node0", "distance"), []byte("10 21\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := &Collector{Root: dir}
	dist, err := c.readDistance(0)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint32{10, 21}
	if !reflect.DeepEqual(dist, want) {
		t.Errorf("readDistance(0) = %v, want %v", dist, want)
	}
}

func TestCollectNoTopologyIsNotAnError(t *testing.T) {
	c := &Collector{Root: filepath.Join(t.TempDir(), "does-not-exist")}
	if err := c.Collect(nil, nil, nil); err != nil {
		t.Errorf("expected nil error for absent NUMA topology, got %v", err)
	}
}
