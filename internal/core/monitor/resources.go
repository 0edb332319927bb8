package monitor

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
)

// ResourceStats represents system resource statistics
type ResourceStats struct {
	CPU       CPUStats     `json:"cpu"`
	Memory    MemoryStats  `json:"memory"`
	Disk      DiskStats    `json:"disk"`
	Host      HostStats    `json:"host"`
	Runtime   RuntimeStats `json:"runtime"`
	Timestamp time.Time    `json:"timestamp"`

	// Errors lists the collectors that failed for this sample
	Errors []string `json:"errors,omitempty"`
}

// CPUStats represents CPU statistics
type CPUStats struct {
	Cores        int     `json:"cores"`
	TotalPercent float64 `json:"total_percent"`
}

// MemoryStats represents memory statistics
type MemoryStats struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

// DiskStats represents usage of the monitored mountpoint
type DiskStats struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

// HostStats represents host system statistics
type HostStats struct {
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
	Platform string `json:"platform"`
	Uptime   uint64 `json:"uptime"`
}

// RuntimeStats represents Go runtime statistics
type RuntimeStats struct {
	Goroutines    int    `json:"goroutines"`
	MemAllocBytes uint64 `json:"mem_alloc_bytes"`
	MemSysBytes   uint64 `json:"mem_sys_bytes"`
	GCCycles      uint32 `json:"gc_cycles"`
}

// ResourceMonitor samples host resources through gopsutil
type ResourceMonitor struct {
	logger      *logrus.Logger
	diskPath    string
	cpuInterval time.Duration
}

// NewResourceMonitor creates a new resource monitor. diskPath defaults to "/".
func NewResourceMonitor(diskPath string, logger *logrus.Logger) *ResourceMonitor {
	if diskPath == "" {
		diskPath = "/"
	}
	return &ResourceMonitor{
		logger:      logger,
		diskPath:    diskPath,
		cpuInterval: time.Second,
	}
}

// GetResourceStats collects current system resource statistics. A failing
// collector leaves its section zeroed and is listed in Errors.
func (r *ResourceMonitor) GetResourceStats(ctx context.Context) (*ResourceStats, error) {
	stats := &ResourceStats{
		Timestamp: time.Now(),
	}

	cpuStats, err := r.getCPUStats(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to get CPU stats")
		stats.Errors = append(stats.Errors, "cpu")
	} else {
		stats.CPU = *cpuStats
	}

	memStats, err := r.getMemoryStats(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to get memory stats")
		stats.Errors = append(stats.Errors, "memory")
	} else {
		stats.Memory = *memStats
	}

	diskStats, err := r.getDiskStats(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to get disk stats")
		stats.Errors = append(stats.Errors, "disk")
	} else {
		stats.Disk = *diskStats
	}

	hostInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		r.logger.WithError(err).Debug("Failed to get host info")
	} else {
		stats.Host = HostStats{
			Hostname: hostInfo.Hostname,
			OS:       hostInfo.OS,
			Platform: hostInfo.Platform,
			Uptime:   hostInfo.Uptime,
		}
	}

	stats.Runtime = getRuntimeStats()

	if len(stats.Errors) == 3 {
		return stats, fmt.Errorf("all resource collectors failed")
	}
	return stats, nil
}

func (r *ResourceMonitor) getCPUStats(ctx context.Context) (*CPUStats, error) {
	totalCPU, err := cpu.PercentWithContext(ctx, r.cpuInterval, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get total CPU usage: %w", err)
	}
	if len(totalCPU) == 0 {
		return nil, fmt.Errorf("no CPU usage reported")
	}

	return &CPUStats{
		Cores:        runtime.NumCPU(),
		TotalPercent: totalCPU[0],
	}, nil
}

func (r *ResourceMonitor) getMemoryStats(ctx context.Context) (*MemoryStats, error) {
	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get virtual memory stats: %w", err)
	}

	return &MemoryStats{
		Total:       vmem.Total,
		Available:   vmem.Available,
		Used:        vmem.Used,
		UsedPercent: vmem.UsedPercent,
	}, nil
}

func (r *ResourceMonitor) getDiskStats(ctx context.Context) (*DiskStats, error) {
	usage, err := disk.UsageWithContext(ctx, r.diskPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk usage for %s: %w", r.diskPath, err)
	}

	return &DiskStats{
		Path:        r.diskPath,
		Total:       usage.Total,
		Free:        usage.Free,
		Used:        usage.Used,
		UsedPercent: usage.UsedPercent,
	}, nil
}

func getRuntimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeStats{
		Goroutines:    runtime.NumGoroutine(),
		MemAllocBytes: m.Alloc,
		MemSysBytes:   m.Sys,
		GCCycles:      m.NumGC,
	}
}

// GetUsagePercentages returns simplified usage percentages for alerting
func (r *ResourceMonitor) GetUsagePercentages(ctx context.Context) (cpu, memory, disk float64, err error) {
	stats, err := r.GetResourceStats(ctx)
	if err != nil {
		return 0, 0, 0, err
	}

	return stats.CPU.TotalPercent, stats.Memory.UsedPercent, stats.Disk.UsedPercent, nil
}

// ResourceThresholds are the warning limits for the system resource health check
type ResourceThresholds struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// UsageSource reports host usage percentages
type UsageSource interface {
	GetUsagePercentages(ctx context.Context) (cpu, memory, disk float64, err error)
}

// SystemResourceCheck builds the "system_resources" health check
func SystemResourceCheck(source UsageSource, thresholds ResourceThresholds) metrics.CheckFunc {
	return func(ctx context.Context) metrics.CheckResult {
		cpu, memory, disk, err := source.GetUsagePercentages(ctx)
		if err != nil {
			return metrics.NewCheckResult("system_resources", metrics.CheckDown, "Failed to get system resource usage").
				WithDetail("error", err.Error())
		}

		status, message := classifyResources(cpu, memory, disk, thresholds)
		return metrics.NewCheckResult("system_resources", status, message).
			WithDetail("cpu_usage", cpu).
			WithDetail("memory_usage", memory).
			WithDetail("disk_usage", disk)
	}
}

func classifyResources(cpu, memory, disk float64, t ResourceThresholds) (metrics.CheckStatus, string) {
	if cpu > 95 || memory > 98 || disk > 98 {
		return metrics.CheckUnhealthy, "System resources are critically low"
	}
	if cpu > t.CPUPercent || memory > t.MemoryPercent || disk > t.DiskPercent {
		return metrics.CheckDegraded, "System resources are under pressure"
	}
	return metrics.CheckUp, "System resources are within normal limits"
}
