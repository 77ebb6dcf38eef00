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

// Package gpu implements the GPU collector, the richest of the telemetry
// collectors: per-device identity, topology, live metrics, health, ECC,
// PCIe and NVLink counters, and a derived energy/bandwidth model.
//
// No NVML Go binding is available, so sampling shells out to nvidia-smi's
// full XML query (`nvidia-smi -q -x`) under a context-bounded
// exec.CommandContext and unmarshals the result. A missing nvidia-smi
// binary is treated as "zero GPUs present" rather than a collector
// failure, so the agent degrades gracefully on non-GPU hosts.
//
// MIG is reported only at the mode level (current/pending enabled flag);
// per-instance slicing-tree reporting is not implemented, see DESIGN.md.
package gpu

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

const nvidiaSMICommand = "nvidia-smi"

// GPUEvent is a single drained device event.
//
// XID errors are not emitted: nvidia-smi's XML query carries no XID field
// (XID codes are reported only through the kernel driver's dmesg/syslog
// output, which this collector does not read), so there is no source to
// derive them from.
type GPUEvent struct {
	GPU    string
	Kind   string // "ecc_single_bit", "ecc_double_bit", "pstate_change", "clock_change"
	UnixMs int64
}

// NVSMIDevice is the root element of `nvidia-smi -q -x` output.
type NVSMIDevice struct {
	XMLName       xml.Name   `xml:"nvidia_smi_log"`
	Timestamp     string     `xml:"timestamp"`
	DriverVersion string     `xml:"driver_version"`
	CudaVersion   string     `xml:"cuda_version"`
	AttachedGPUs  string     `xml:"attached_gpus"`
	GPUs          []NVSMIGPU `xml:"gpu"`
}

// NVSMIGPU is one <gpu> element.
type NVSMIGPU struct {
	ID                  string `xml:"id,attr"`
	ProductName         string `xml:"product_name"`
	ProductArchitecture string `xml:"product_architecture"`
	Serial              string `xml:"serial"`
	UUID                string `xml:"uuid"`
	DisplayMode         string `xml:"display_mode"`
	PersistenceMode     string `xml:"persistence_mode"`
	VbiosVersion        string `xml:"vbios_version"`
	PerformanceState    string `xml:"performance_state"`

	PCI struct {
		TxUtil        string `xml:"tx_util"`
		RxUtil        string `xml:"rx_util"`
		ReplayCounter string `xml:"replay_counter"`
		LinkInfo      struct {
			PCIeGen struct {
				MaxLinkGen     string `xml:"max_link_gen"`
				CurrentLinkGen string `xml:"current_link_gen"`
			} `xml:"pcie_gen"`
			LinkWidths struct {
				MaxLinkWidth     string `xml:"max_link_width"`
				CurrentLinkWidth string `xml:"current_link_width"`
			} `xml:"link_widths"`
		} `xml:"pcie_link_info"`
	} `xml:"pci"`

	FbMemoryUsage struct {
		Total string `xml:"total"`
		Used  string `xml:"used"`
		Free  string `xml:"free"`
	} `xml:"fb_memory_usage"`

	Utilization struct {
		GpuUtil    string `xml:"gpu_util"`
		MemoryUtil string `xml:"memory_util"`
	} `xml:"utilization"`

	Temperature struct {
		GpuTemp string `xml:"gpu_temp"`
	} `xml:"temperature"`

	PowerReadings struct {
		PowerDraw     string `xml:"power_draw"`
		PowerLimit    string `xml:"power_limit"`
		MinPowerLimit string `xml:"min_power_limit"`
		MaxPowerLimit string `xml:"max_power_limit"`
	} `xml:"gpu_power_readings"`

	Clocks struct {
		GraphicsClock string `xml:"graphics_clock"`
		SMClock       string `xml:"sm_clock"`
		MemClock      string `xml:"mem_clock"`
	} `xml:"clocks"`

	FanSpeed string `xml:"fan_speed"`

	ClocksEventReasons struct {
		SWThermalSlowdown string `xml:"clocks_event_reason_sw_thermal_slowdown"`
		HWThermalSlowdown string `xml:"clocks_event_reason_hw_thermal_slowdown"`
		SWPowerCap        string `xml:"clocks_event_reason_sw_power_cap"`
		HWPowerBrake      string `xml:"clocks_event_reason_hw_power_brake_slowdown"`
	} `xml:"clocks_event_reasons"`

	EccErrors struct {
		Volatile struct {
			SingleBit struct {
				DeviceCount string `xml:"device_count"`
			} `xml:"single_bit"`
			DoubleBit struct {
				DeviceCount string `xml:"device_count"`
			} `xml:"double_bit"`
		} `xml:"volatile"`
		Aggregate struct {
			SingleBit struct {
				DeviceCount string `xml:"device_count"`
			} `xml:"single_bit"`
			DoubleBit struct {
				DeviceCount string `xml:"device_count"`
			} `xml:"double_bit"`
		} `xml:"aggregate"`
	} `xml:"ecc_errors"`

	MigMode struct {
		CurrentMig string `xml:"current_mig"`
		PendingMig string `xml:"pending_mig"`
	} `xml:"mig_mode"`

	RetiredPages struct {
		PendingBlacklist string `xml:"pending_blacklist"`
	} `xml:"retired_pages"`

	NVLinkInfo struct {
		Links []NVSMINVLink `xml:"nvlink_link"`
	} `xml:"nvlink_info"`
}

// NVSMINVLink is one <nvlink_link> element under a GPU's <nvlink_info>,
// present only on devices whose driver exposes per-link NVLink counters.
type NVSMINVLink struct {
	ID                 string `xml:"link_id,attr"`
	RxBytes            string `xml:"rx_bytes"`
	TxBytes            string `xml:"tx_bytes"`
	ReplayErrorCount   string `xml:"replay_error_count"`
	RecoveryErrorCount string `xml:"recovery_error_count"`
	CRCErrorCount      string `xml:"crc_error_count"`
	DataCRCErrorCount  string `xml:"data_crc_error_count"`
}

// deviceState carries the per-device values needed to derive rates and
// accumulators across ticks.
type deviceState struct {
	lastWatts       float64
	energyJoules    float64
	lastTXKBps      float64
	lastRXKBps      float64
	lastReplay      float64
	lastECCSingle   float64
	lastECCDouble   float64
	lastPState      string
	lastGraphicsMHz float64
	lastEventUnixMs int64
	lastSampleTime  time.Time
}

// Collector samples GPU device state via nvidia-smi.
type Collector struct {
	// VisibleDevices restricts collection to the given set of UUIDs or
	// indices. Empty means all devices are visible.
	VisibleDevices map[string]bool
	// K8sMode adds a compatibility label to every published family using
	// ResourcePrefix, for clusters that key device accounting by a
	// Kubernetes extended-resource name.
	K8sMode        bool
	ResourcePrefix string

	// Events receives drained per-tick device events. Created lazily with
	// the configured bounded capacity on first use.
	Events   chan GPUEvent
	eventCap int

	mu     sync.Mutex
	states map[string]*deviceState
}

// New returns a collector with the given bounded event-channel depth.
func New(eventChannelDepth int) *Collector {
	return &Collector{
		states:   make(map[string]*deviceState),
		eventCap: eventChannelDepth,
	}
}

// Name implements collector.Collector.
func (c *Collector) Name() string { return "gpu" }

// Collect implements collector.Collector.
func (c *Collector) Collect(ctx context.Context, reg *registry.Registry, st *status.State) error {
	if c.Events == nil && c.eventCap > 0 {
		c.Events = make(chan GPUEvent, c.eventCap)
	}

	data, err := runNvidiaSMI(ctx)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			st.SetGPUStatuses(nil)
			return nil
		}
		return fmt.Errorf("gpu: nvidia-smi: %w", err)
	}

	device, err := parseSMIDevice(data)
	if err != nil {
		return fmt.Errorf("gpu: parse nvidia-smi output: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	statuses := make([]status.GPUStatus, 0, len(device.GPUs))

	for _, g := range device.GPUs {
		if !c.visible(g) {
			continue
		}

		id := g.UUID
		if id == "" {
			id = deterministicID(g.ID, g.Serial)
		}

		labels := map[string]string{"gpu": g.ID, "uuid": id}
		if c.K8sMode && c.ResourcePrefix != "" {
			labels["resource"] = c.ResourcePrefix + "/gpu"
		}

		temp, _ := parseNumeric(g.Temperature.GpuTemp)
		watts, _ := parseNumeric(g.PowerReadings.PowerDraw)
		powerLimit, _ := parseNumeric(g.PowerReadings.PowerLimit)
		minPowerLimit, _ := parseNumeric(g.PowerReadings.MinPowerLimit)
		maxPowerLimit, _ := parseNumeric(g.PowerReadings.MaxPowerLimit)
		util, _ := parseNumeric(g.Utilization.GpuUtil)
		memTotalMiB, _ := parseNumeric(g.FbMemoryUsage.Total)
		memUsedMiB, _ := parseNumeric(g.FbMemoryUsage.Used)
		fan, _ := parseNumeric(g.FanSpeed)
		smClock, _ := parseNumeric(g.Clocks.SMClock)
		memClock, _ := parseNumeric(g.Clocks.MemClock)
		graphicsClock, _ := parseNumeric(g.Clocks.GraphicsClock)
		txKBps, _ := parseNumeric(g.PCI.TxUtil)
		rxKBps, _ := parseNumeric(g.PCI.RxUtil)
		replay, _ := parseNumeric(g.PCI.ReplayCounter)
		eccSingleVol, _ := parseNumeric(g.EccErrors.Volatile.SingleBit.DeviceCount)
		eccDoubleVol, _ := parseNumeric(g.EccErrors.Volatile.DoubleBit.DeviceCount)
		eccSingleAgg, _ := parseNumeric(g.EccErrors.Aggregate.SingleBit.DeviceCount)
		eccDoubleAgg, _ := parseNumeric(g.EccErrors.Aggregate.DoubleBit.DeviceCount)
		maxGen, _ := strconv.Atoi(strings.TrimSpace(g.PCI.LinkInfo.PCIeGen.MaxLinkGen))
		maxWidth, _ := strconv.Atoi(strings.TrimSpace(g.PCI.LinkInfo.LinkWidths.MaxLinkWidth))
		retiredPages, _ := parseNumeric(g.RetiredPages.PendingBlacklist)
		migEnabled := isEnabled(g.MigMode.CurrentMig)
		migPending := isEnabled(g.MigMode.PendingMig)

		thermalThrottle := isOn(g.ClocksEventReasons.SWThermalSlowdown) || isOn(g.ClocksEventReasons.HWThermalSlowdown)
		powerThrottle := isOn(g.ClocksEventReasons.SWPowerCap) || isOn(g.ClocksEventReasons.HWPowerBrake)

		state, ok := c.states[id]
		if !ok {
			state = &deviceState{}
			c.states[id] = state
		}

		// Energy: Δe = prev_watts × dt, clamped >= 0.
		if !state.lastSampleTime.IsZero() {
			dt := now.Sub(state.lastSampleTime).Seconds()
			delta := state.lastWatts * dt
			if delta < 0 {
				delta = 0
			}
			state.energyJoules += delta
		}

		// PCIe bandwidth percent: ((tx+rx) kB/s * 1024) / (lane_bytes_per_sec * width), clamped [0,100].
		var bandwidthPercent float64
		if maxGen > 0 && maxWidth > 0 {
			laneBytesPerSec := pcieLaneBytesPerSec(maxGen)
			denom := laneBytesPerSec * float64(maxWidth)
			if denom > 0 {
				bandwidthPercent = ((txKBps + rxKBps) * 1024) / denom * 100
			}
		}
		bandwidthPercent = clamp(bandwidthPercent, 0, 100)

		eventEmitted := c.emitEvent(id, "ecc_single_bit", eccSingleVol, state.lastECCSingle, now)
		eventEmitted = c.emitEvent(id, "ecc_double_bit", eccDoubleVol, state.lastECCDouble, now) || eventEmitted
		if state.lastPState != "" && state.lastPState != g.PerformanceState {
			c.tryEmit(GPUEvent{GPU: id, Kind: "pstate_change", UnixMs: now.UnixMilli()})
			eventEmitted = true
		}
		if state.lastGraphicsMHz != 0 && state.lastGraphicsMHz != graphicsClock {
			c.tryEmit(GPUEvent{GPU: id, Kind: "clock_change", UnixMs: now.UnixMilli()})
			eventEmitted = true
		}
		if eventEmitted {
			state.lastEventUnixMs = now.UnixMilli()
		}
		if state.lastEventUnixMs != 0 {
			_ = reg.GaugeSet("gpu_last_event_unix_ms", "unix ms timestamp of the most recent drained device event", labels, float64(state.lastEventUnixMs))
		}

		publishGPUGauges(reg, labels, temp, watts, powerLimit, util, memTotalMiB, memUsedMiB, fan, smClock, memClock, graphicsClock, bandwidthPercent)
		_ = reg.CounterAbsolute("gpu_energy_joules_total", "cumulative energy consumed", labels, state.energyJoules)
		_ = reg.CounterAbsolute("gpu_ecc_corrected_total", "cumulative corrected ECC errors (volatile+aggregate)", labels, eccSingleVol+eccSingleAgg)
		_ = reg.CounterAbsolute("gpu_ecc_uncorrected_total", "cumulative uncorrected ECC errors (volatile+aggregate)", labels, eccDoubleVol+eccDoubleAgg)
		_ = reg.CounterAbsolute("gpu_pcie_replay_total", "cumulative PCIe replay events", labels, replay)
		_ = reg.GaugeSet("gpu_throttle_thermal", "1 if thermally throttled", labels, boolFloat(thermalThrottle))
		_ = reg.GaugeSet("gpu_throttle_power", "1 if power throttled", labels, boolFloat(powerThrottle))
		_ = reg.GaugeSet("gpu_retired_pages", "pending-blacklist retired memory pages", labels, retiredPages)
		_ = reg.GaugeSet("gpu_power_limit_min_watts", "minimum settable power limit", labels, minPowerLimit)
		_ = reg.GaugeSet("gpu_power_limit_max_watts", "maximum settable power limit", labels, maxPowerLimit)
		_ = reg.GaugeSet("gpu_mig_mode_enabled", "1 if MIG mode is currently enabled", labels, boolFloat(migEnabled))
		_ = reg.GaugeSet("gpu_mig_mode_pending", "1 if a MIG mode change is pending a GPU reset", labels, boolFloat(migPending))

		nvlinks := publishNVLinkCounters(reg, g.ID, id, g.NVLinkInfo.Links)

		uncorrected := eccDoubleVol + eccDoubleAgg
		corrected := eccSingleVol + eccSingleAgg
		energy := state.energyJoules

		statuses = append(statuses, status.GPUStatus{
			GPU:                 g.ID,
			UUID:                id,
			TemperatureCelsius:  floatPtr(temp),
			PowerWatts:          floatPtr(watts),
			UtilPercent:         floatPtr(util),
			MemoryTotalBytes:    floatPtr(memTotalMiB * 1024 * 1024),
			MemoryUsedBytes:     floatPtr(memUsedMiB * 1024 * 1024),
			FanPercent:          floatPtr(fan),
			ClockSMMHz:          floatPtr(smClock),
			ClockMemMHz:         floatPtr(memClock),
			ThermalThrottle:     thermalThrottle,
			PowerThrottle:       powerThrottle,
			EnergyJoules:        floatPtr(energy),
			ECCUncorrectedTotal: floatPtr(uncorrected),
			ECCCorrectedTotal:   floatPtr(corrected),
			RetiredPages:        floatPtr(retiredPages),
			MinPowerLimitWatts:  floatPtr(minPowerLimit),
			MaxPowerLimitWatts:  floatPtr(maxPowerLimit),
			MIGEnabled:          migEnabled,
			MIGPending:          migPending,
			NVLinks:             nvlinks,
		})

		state.lastWatts = watts
		state.lastTXKBps = txKBps
		state.lastRXKBps = rxKBps
		state.lastReplay = replay
		state.lastECCSingle = eccSingleVol
		state.lastECCDouble = eccDoubleVol
		state.lastPState = g.PerformanceState
		state.lastGraphicsMHz = graphicsClock
		state.lastSampleTime = now
	}

	st.SetGPUStatuses(statuses)
	return nil
}

func (c *Collector) visible(g NVSMIGPU) bool {
	if len(c.VisibleDevices) == 0 {
		return true
	}
	return c.VisibleDevices[g.UUID] || c.VisibleDevices[g.ID]
}

// emitEvent reports whether current > previous triggered an event, whether
// or not the bounded channel had room to accept it.
func (c *Collector) emitEvent(gpu, kind string, current, previous float64, now time.Time) bool {
	if current <= previous {
		return false
	}
	c.tryEmit(GPUEvent{GPU: gpu, Kind: kind, UnixMs: now.UnixMilli()})
	return true
}

func (c *Collector) tryEmit(e GPUEvent) {
	if c.Events == nil {
		return
	}
	select {
	case c.Events <- e:
		return
	default:
	}
	// Bounded channel is full; drop the oldest queued event to make room
	// rather than block the tick.
	select {
	case <-c.Events:
	default:
	}
	select {
	case c.Events <- e:
	default:
	}
}

func runNvidiaSMI(ctx context.Context) ([]byte, error) {
	if _, err := exec.LookPath(nvidiaSMICommand); err != nil {
		return nil, exec.ErrNotFound
	}
	cmd := exec.CommandContext(ctx, nvidiaSMICommand, "-q", "-x")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func parseSMIDevice(data []byte) (NVSMIDevice, error) {
	var device NVSMIDevice
	if len(bytes.TrimSpace(data)) == 0 {
		return device, fmt.Errorf("empty nvidia-smi output")
	}
	if err := xml.Unmarshal(data, &device); err != nil {
		return device, fmt.Errorf("unmarshal nvidia-smi xml: %w", err)
	}
	return device, nil
}

func publishGPUGauges(reg *registry.Registry, labels map[string]string, temp, watts, powerLimit, util, memTotalMiB, memUsedMiB, fan, smClock, memClock, graphicsClock, bandwidthPercent float64) {
	_ = reg.GaugeSet("gpu_temperature_celsius", "GPU die temperature", labels, temp)
	_ = reg.GaugeSet("gpu_power_watts", "instantaneous power draw", labels, watts)
	_ = reg.GaugeSet("gpu_power_limit_watts", "configured power limit", labels, powerLimit)
	_ = reg.GaugeSet("gpu_utilization_percent", "SM utilization", labels, util)
	_ = reg.GaugeSet("gpu_memory_total_bytes", "total framebuffer memory", labels, memTotalMiB*1024*1024)
	_ = reg.GaugeSet("gpu_memory_used_bytes", "used framebuffer memory", labels, memUsedMiB*1024*1024)
	_ = reg.GaugeSet("gpu_fan_percent", "fan speed", labels, fan)
	_ = reg.GaugeSet("gpu_clock_sm_mhz", "SM clock", labels, smClock)
	_ = reg.GaugeSet("gpu_clock_mem_mhz", "memory clock", labels, memClock)
	_ = reg.GaugeSet("gpu_clock_graphics_mhz", "graphics clock", labels, graphicsClock)
	_ = reg.GaugeSet("gpu_pcie_bandwidth_percent", "PCIe link utilization vs max", labels, bandwidthPercent)
}

// publishNVLinkCounters reports the cumulative rx/tx/error counters for
// each of a device's NVLink fabric links and returns the per-link
// snapshot for status. Error counters fold replay, recovery, and both CRC
// classes into a single per-link total, matching how a single NvLink
// error time series is kept per link rather than per failure mode.
func publishNVLinkCounters(reg *registry.Registry, gpuID, deviceID string, links []NVSMINVLink) []status.NVLinkStatus {
	if len(links) == 0 {
		return nil
	}

	out := make([]status.NVLinkStatus, 0, len(links))
	for _, link := range links {
		linkID := strings.TrimSpace(link.ID)
		linkLabels := map[string]string{"gpu": gpuID, "uuid": deviceID, "link": linkID}

		rx, _ := parseNumeric(link.RxBytes)
		tx, _ := parseNumeric(link.TxBytes)
		replay, _ := parseNumeric(link.ReplayErrorCount)
		recovery, _ := parseNumeric(link.RecoveryErrorCount)
		crc, _ := parseNumeric(link.CRCErrorCount)
		dataCRC, _ := parseNumeric(link.DataCRCErrorCount)
		errs := replay + recovery + crc + dataCRC

		_ = reg.CounterAbsolute("gpu_nvlink_rx_bytes_total", "cumulative NVLink receive bytes per link", linkLabels, rx)
		_ = reg.CounterAbsolute("gpu_nvlink_tx_bytes_total", "cumulative NVLink transmit bytes per link", linkLabels, tx)
		_ = reg.CounterAbsolute("gpu_nvlink_errors_total", "cumulative NVLink error count per link (replay+recovery+crc)", linkLabels, errs)

		out = append(out, status.NVLinkStatus{
			Link:         linkID,
			RxBytesTotal: floatPtr(rx),
			TxBytesTotal: floatPtr(tx),
			ErrorsTotal:  floatPtr(errs),
		})
	}
	return out
}

// parseNumeric extracts the leading numeric token from nvidia-smi's
// human-readable fields ("72.50 W", "82 C", "40960 MiB", "[N/A]").
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "N/A") {
		return 0, false
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isOn(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "active")
}

func isEnabled(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "enabled")
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func floatPtr(v float64) *float64 { return &v }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pcieLaneBytesPerSec returns the per-lane raw bandwidth of a PCIe
// generation in bytes/sec (encoding overhead included, as nvidia-smi's
// reported KB/s already nets out).
func pcieLaneBytesPerSec(gen int) float64 {
	switch gen {
	case 1:
		return 250e6
	case 2:
		return 500e6
	case 3:
		return 985e6
	case 4:
		return 1969e6
	case 5:
		return 3938e6
	default:
		return 985e6
	}
}

// deterministicID synthesizes a stable device id from index+serial when
// the vendor UUID is absent, using a namespaced UUIDv5 so the same device
// always maps to the same id across ticks and restarts.
func deterministicID(index, serial string) string {
	ns := uuid.NewSHA1(uuid.NameSpaceOID, []byte("esnode-core/gpu"))
	return uuid.NewSHA1(ns, []byte(index+"/"+serial)).String()
}
