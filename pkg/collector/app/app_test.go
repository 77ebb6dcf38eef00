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

package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

const sampleMetrics = `# HELP vllm:generation_tokens_total counter
# TYPE vllm:generation_tokens_total counter
vllm:generation_tokens_total 1000
vllm:prompt_tokens_total 500
tgi_generated_tokens{model="a"} 25
unrelated_metric 999
`

func TestParseTokenCounters(t *testing.T) {
	counters, err := parseTokenCounters([]byte(sampleMetrics))
	if err != nil {
		t.Fatal(err)
	}
	if counters["vllm:generation_tokens_total"] != 1000 {
		t.Errorf("expected 1000, got %v", counters["vllm:generation_tokens_total"])
	}
	if counters["vllm:prompt_tokens_total"] != 500 {
		t.Errorf("expected 500, got %v", counters["vllm:prompt_tokens_total"])
	}
	if counters["tgi_generated_tokens"] != 25 {
		t.Errorf("expected labeled series to still match by base name, got %v", counters["tgi_generated_tokens"])
	}
	if _, ok := counters["unrelated_metric"]; ok {
		t.Error("expected unrelated_metric to be ignored")
	}
}

func TestCollectNoURLIsANoop(t *testing.T) {
	c := New("")
	reg := registry.New()
	st := status.New()
	if err := c.Collect(context.Background(), reg, st); err != nil {
		t.Errorf("expected no error with empty URL, got %v", err)
	}
}

func TestCollectDerivesTokensPerSecond(t *testing.T) {
	counts := []string{
		"vllm:generation_tokens_total 1000\n",
		"vllm:generation_tokens_total 1100\n",
	}
	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(counts[call]))
		call++
	}))
	defer srv.Close()

	c := New(srv.URL)
	reg := registry.New()
	st := status.New()

	if err := c.Collect(context.Background(), reg, st); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if c.haveLast != true || c.lastSum != 1000 {
		t.Fatalf("expected lastSum=1000 after first tick, got %v", c.lastSum)
	}

	c.lastTime = time.Now().Add(-1 * time.Second)
	if err := c.Collect(context.Background(), reg, st); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if c.lastSum != 1100 {
		t.Errorf("expected lastSum=1100 after second tick, got %v", c.lastSum)
	}
}

func TestCollectFetchErrorPropagates(t *testing.T) {
	c := New("http://127.0.0.1:0/nonexistent")
	reg := registry.New()
	st := status.New()
	if err := c.Collect(context.Background(), reg, st); err == nil {
		t.Error("expected an error when the upstream endpoint is unreachable")
	}
}
