package platform

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/syncstream/netpulse/internal/logging"
	"github.com/syncstream/netpulse/pkg/types"
)

const (
	gb = 1024 * 1024 * 1024

	// cpuSampleWindow is the short measurement interval used for the CPU
	// percentage reading inside the periodic tick.
	cpuSampleWindow = 100 * time.Millisecond
)

// SystemReader samples instantaneous system resource usage.
type SystemReader struct {
	diskPath string
}

func NewSystemReader() *SystemReader {
	return &SystemReader{diskPath: "/"}
}

// Read gathers a SystemSnapshot. Each field degrades independently: a
// failed reading is logged at warn and left at its zero value rather than
// failing the whole sample.
func (r *SystemReader) Read(ctx context.Context) types.SystemSnapshot {
	var snap types.SystemSnapshot

	if pcts, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false); err != nil {
		logging.Warn("system sample: cpu", logging.Field{Key: "error", Value: err})
	} else if len(pcts) > 0 {
		snap.CPUPercent = pcts[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		logging.Warn("system sample: memory", logging.Field{Key: "error", Value: err})
	} else {
		snap.MemPercent = vm.UsedPercent
		snap.MemAvailGB = float64(vm.Available) / gb
	}

	if usage, err := disk.UsageWithContext(ctx, r.diskPath); err != nil {
		logging.Warn("system sample: disk", logging.Field{Key: "error", Value: err})
	} else {
		snap.DiskPercent = usage.UsedPercent
	}

	if boot, err := host.BootTimeWithContext(ctx); err != nil {
		logging.Warn("system sample: boot time", logging.Field{Key: "error", Value: err})
	} else {
		snap.BootTime = time.Unix(int64(boot), 0)
	}

	return snap
}

// ResourceDetail is the expanded system view served on demand. It is not
// part of the periodic snapshot.
type ResourceDetail struct {
	CPU struct {
		Percent   float64 `json:"percent"`
		Cores     int     `json:"cores"`
		Frequency float64 `json:"frequency"`
	} `json:"cpu"`
	Memory struct {
		Percent     float64 `json:"percent"`
		AvailableGB float64 `json:"available"`
		TotalGB     float64 `json:"total"`
		UsedGB      float64 `json:"used"`
	} `json:"memory"`
	Disk struct {
		Percent float64 `json:"percent"`
		FreeGB  float64 `json:"free"`
		TotalGB float64 `json:"total"`
	} `json:"disk"`
	NetworkAdapters int `json:"network_adapters"`
	Processes       int `json:"processes"`
}

// ReadDetail gathers the expanded resource view. Fields degrade
// independently the same way Read does.
func (r *SystemReader) ReadDetail(ctx context.Context) ResourceDetail {
	var d ResourceDetail

	if pcts, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false); err == nil && len(pcts) > 0 {
		d.CPU.Percent = pcts[0]
	}
	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		d.CPU.Cores = cores
	}
	if info, err := cpu.InfoWithContext(ctx); err == nil && len(info) > 0 {
		d.CPU.Frequency = info[0].Mhz
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		logging.Warn("resource detail: memory", logging.Field{Key: "error", Value: err})
	} else {
		d.Memory.Percent = vm.UsedPercent
		d.Memory.AvailableGB = float64(vm.Available) / gb
		d.Memory.TotalGB = float64(vm.Total) / gb
		d.Memory.UsedGB = float64(vm.Used) / gb
	}

	if usage, err := disk.UsageWithContext(ctx, r.diskPath); err != nil {
		logging.Warn("resource detail: disk", logging.Field{Key: "error", Value: err})
	} else {
		d.Disk.Percent = usage.UsedPercent
		d.Disk.FreeGB = float64(usage.Free) / gb
		d.Disk.TotalGB = float64(usage.Total) / gb
	}

	if ifaces, err := psnet.InterfacesWithContext(ctx); err == nil {
		d.NetworkAdapters = len(ifaces)
	}
	if pids, err := process.PidsWithContext(ctx); err == nil {
		d.Processes = len(pids)
	}

	return d
}

// PerformanceProfile recommends serving limits from the machine's core count
// and total memory.
type PerformanceProfile struct {
	Profile  string `json:"profile"`
	Settings struct {
		MaxQuality     string `json:"max_quality"`
		MaxUsers       int    `json:"max_users"`
		BufferSize     string `json:"buffer_size"`
		EncodingPreset string `json:"encoding_preset"`
	} `json:"settings"`
	System struct {
		CPUCores int     `json:"cpu_cores"`
		RAMGB    float64 `json:"ram_gb"`
	} `json:"system"`
}

// Profile classifies the host into a performance tier.
func (r *SystemReader) Profile(ctx context.Context) PerformanceProfile {
	var p PerformanceProfile

	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		logging.Warn("profile: cpu count", logging.Field{Key: "error", Value: err})
	}
	var ramGB float64
	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		logging.Warn("profile: memory", logging.Field{Key: "error", Value: err})
	} else {
		ramGB = float64(vm.Total) / gb
	}

	p.System.CPUCores = cores
	p.System.RAMGB = float64(int(ramGB*10)) / 10

	switch {
	case cores >= 8 && ramGB >= 16:
		p.Profile = "high_performance"
		p.Settings.MaxQuality = "4k"
		p.Settings.MaxUsers = 50
		p.Settings.BufferSize = "10MB"
		p.Settings.EncodingPreset = "fast"
	case cores >= 4 && ramGB >= 8:
		p.Profile = "balanced"
		p.Settings.MaxQuality = "1080p"
		p.Settings.MaxUsers = 25
		p.Settings.BufferSize = "5MB"
		p.Settings.EncodingPreset = "medium"
	default:
		p.Profile = "power_saver"
		p.Settings.MaxQuality = "720p"
		p.Settings.MaxUsers = 10
		p.Settings.BufferSize = "2MB"
		p.Settings.EncodingPreset = "ultrafast"
	}

	return p
}
