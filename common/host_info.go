package common

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
)

type HostInfo struct {
	LogicalCPUs     int
	TotalMemory     uint64
	AvailableMemory uint64
	UsedPercent     float64
}

// CollectHostInfo samples CPU and memory figures of the machine running the
// optimizer.
func CollectHostInfo() (HostInfo, error) {
	cpus, err := cpu.Counts(true)
	if err != nil {
		return HostInfo{}, fmt.Errorf("failed to get CPU count: %w", err)
	}

	v, err := mem.VirtualMemory()
	if err != nil {
		return HostInfo{}, fmt.Errorf("failed to get memory info: %w", err)
	}

	return HostInfo{
		LogicalCPUs:     cpus,
		TotalMemory:     v.Total,
		AvailableMemory: v.Available,
		UsedPercent:     v.UsedPercent,
	}, nil
}

// DefaultWorkers is the pool size used when none is configured.
func DefaultWorkers() int {
	info, err := CollectHostInfo()
	if err != nil || info.LogicalCPUs <= 0 {
		log.Warnf("DefaultWorkers: host info unavailable (%v), using GOMAXPROCS", err)
		return runtime.GOMAXPROCS(0)
	}
	return info.LogicalCPUs
}
