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

package gpu

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/esnode-io/esnode-core/pkg/status"
)

const sampleXML = `<?xml version="1.0" ?>
<nvidia_smi_log>
	<timestamp>Mon Apr 14 12:55:43 2025</timestamp>
	<driver_version>570.86.15</driver_version>
	<cuda_version>12.8</cuda_version>
	<attached_gpus>1</attached_gpus>
	<gpu id="00000000:01:00.0">
		<product_name>NVIDIA H100 80GB HBM3</product_name>
		<product_architecture>Hopper</product_architecture>
		<serial>1234567890123</serial>
		<uuid>GPU-abcdef01-2345-6789-abcd-ef0123456789</uuid>
		<performance_state>P0</performance_state>
		<fb_memory_usage>
			<total>81559 MiB</total>
			<used>10240 MiB</used>
			<free>71319 MiB</free>
		</fb_memory_usage>
		<utilization>
			<gpu_util>45 %</gpu_util>
			<memory_util>20 %</memory_util>
		</utilization>
		<temperature>
			<gpu_temp>62 C</gpu_temp>
		</temperature>
		<gpu_power_readings>
			<power_draw>350.50 W</power_draw>
			<power_limit>700.00 W</power_limit>
		</gpu_power_readings>
		<clocks>
			<graphics_clock>1410 MHz</graphics_clock>
			<sm_clock>1410 MHz</sm_clock>
			<mem_clock>2619 MHz</mem_clock>
		</clocks>
		<fan_speed>N/A</fan_speed>
		<clocks_event_reasons>
			<clocks_event_reason_sw_thermal_slowdown>Not Active</clocks_event_reason_sw_thermal_slowdown>
			<clocks_event_reason_hw_thermal_slowdown>Not Active</clocks_event_reason_hw_thermal_slowdown>
			<clocks_event_reason_sw_power_cap>Active</clocks_event_reason_sw_power_cap>
			<clocks_event_reason_hw_power_brake_slowdown>Not Active</clocks_event_reason_hw_power_brake_slowdown>
		</clocks_event_reasons>
		<ecc_errors>
			<volatile>
				<single_bit><device_count>2</device_count></single_bit>
				<double_bit><device_count>0</device_count></double_bit>
			</volatile>
			<aggregate>
				<single_bit><device_count>5</device_count></single_bit>
				<double_bit><device_count>0</device_count></double_bit>
			</aggregate>
		</ecc_errors>
		<pci>
			<tx_util>1024 KB/s</tx_util>
			<rx_util>2048 KB/s</rx_util>
			<replay_counter>3</replay_counter>
			<pcie_link_info>
				<pcie_gen>
					<max_link_gen>5</max_link_gen>
					<current_link_gen>5</current_link_gen>
				</pcie_gen>
				<link_widths>
					<max_link_width>16x</max_link_width>
					<current_link_width>16x</current_link_width>
				</link_widths>
			</pcie_link_info>
		</pci>
	</gpu>
</nvidia_smi_log>`

func TestParseSMIDevice(t *testing.T) {
	device, err := parseSMIDevice([]byte(sampleXML))
	if err != nil {
		t.Fatalf("parseSMIDevice failed: %v", err)
	}
	if device.DriverVersion != "570.86.15" {
		t.Errorf("expected driver version 570.86.15, got %s", device.DriverVersion)
	}
	if len(device.GPUs) != 1 {
		t.Fatalf("expected 1 GPU, got %d", len(device.GPUs))
	}
	gpu := device.GPUs[0]
	if gpu.ProductName != "NVIDIA H100 80GB HBM3" {
		t.Errorf("expected product name 'NVIDIA H100 80GB HBM3', got %s", gpu.ProductName)
	}
	if gpu.UUID == "" {
		t.Error("expected GPU UUID to be set")
	}
	if gpu.FbMemoryUsage.Total != "81559 MiB" {
		t.Errorf("expected fb_memory_usage.total '81559 MiB', got %s", gpu.FbMemoryUsage.Total)
	}
}

func TestParseSMIDeviceInvalidXML(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte("")},
		{"not xml", []byte("not xml at all")},
		{"malformed", []byte("<nvidia_smi_log><unclosed>")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseSMIDevice(tc.data); err == nil {
				t.Error("expected error for invalid XML")
			}
		})
	}
}

func TestParseSMIDeviceWrongRootElement(t *testing.T) {
	device, err := parseSMIDevice([]byte("<other_element><foo>bar</foo></other_element>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if device.DriverVersion != "" || len(device.GPUs) != 0 {
		t.Error("expected empty struct for non-matching root element")
	}
}

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in    string
		want  float64
		valid bool
	}{
		{"72.50 W", 72.50, true},
		{"82 C", 82, true},
		{"40960 MiB", 40960, true},
		{"[N/A]", 0, false},
		{"N/A", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := parseNumeric(c.in)
		if ok != c.valid || (ok && got != c.want) {
			t.Errorf("parseNumeric(%q) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.valid)
		}
	}
}

func TestIsOn(t *testing.T) {
	if !isOn("Active") {
		t.Error("expected Active to report on")
	}
	if isOn("Not Active") {
		t.Error("expected 'Not Active' to report off")
	}
}

func TestPCIeLaneBytesPerSecKnownGenerations(t *testing.T) {
	if pcieLaneBytesPerSec(5) <= pcieLaneBytesPerSec(4) {
		t.Error("expected gen5 bandwidth to exceed gen4")
	}
	if pcieLaneBytesPerSec(99) != pcieLaneBytesPerSec(3) {
		t.Error("expected unknown generation to fall back to the gen3 default")
	}
}

func TestClamp(t *testing.T) {
	if v := clamp(150, 0, 100); v != 100 {
		t.Errorf("expected clamp to cap at 100, got %v", v)
	}
	if v := clamp(-5, 0, 100); v != 0 {
		t.Errorf("expected clamp to floor at 0, got %v", v)
	}
}

func TestDeterministicIDIsStable(t *testing.T) {
	a := deterministicID("0", "SN123")
	b := deterministicID("0", "SN123")
	if a != b {
		t.Error("expected deterministicID to be stable across calls")
	}
	if deterministicID("1", "SN123") == a {
		t.Error("expected different index to produce a different id")
	}
}

func TestCollectGracefulWhenNvidiaSMIMissing(t *testing.T) {
	if _, err := exec.LookPath(nvidiaSMICommand); err == nil {
		t.Skip("nvidia-smi is available in this environment, skipping graceful degradation test")
	}

	c := New(8)
	st := status.New()
	err := c.Collect(context.Background(), nil, st)
	if err != nil {
		t.Fatalf("expected no error when nvidia-smi is missing, got %v", err)
	}
}

func TestEmitEventDropsWhenChannelFull(t *testing.T) {
	c := New(1)
	c.Events = make(chan GPUEvent, 1)
	c.Events <- GPUEvent{GPU: "x", Kind: "filler"}

	c.emitEvent("gpu0", "ecc_single_bit", 5, 1, time.Now())

	if len(c.Events) != 1 {
		t.Fatalf("expected channel to remain at capacity 1, got %d", len(c.Events))
	}
}

func TestEmitEventSkippedWhenNoIncrease(t *testing.T) {
	c := New(4)
	c.Events = make(chan GPUEvent, 4)

	c.emitEvent("gpu0", "ecc_single_bit", 3, 3, time.Now())

	if len(c.Events) != 0 {
		t.Error("expected no event when the counter did not increase")
	}
}
