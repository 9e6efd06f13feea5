// Package sysinfo reports host telemetry for the management API.
package sysinfo

import (
	"encoding/json"
	"net/http"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	log "github.com/sirupsen/logrus"
)

// SystemInfo is the payload of GET /api/user/system_info.
type SystemInfo struct {
	OS             string  `json:"os"`
	Uptime         uint64  `json:"uptime"`
	CPUUsage       float64 `json:"cpu_usage"`
	MemoryTotal    uint64  `json:"total_memory"`
	MemoryUsed     uint64  `json:"used_memory"`
	DiskTotal      uint64  `json:"total_disk"`
	DiskUsed       uint64  `json:"used_disk"`
	GoroutineCount int     `json:"goroutines"`
}

// Collect gathers the current host telemetry. Individual probe failures are
// logged and leave their fields zero instead of failing the whole report.
func Collect() *SystemInfo {
	info := &SystemInfo{
		OS:             runtime.GOOS,
		GoroutineCount: runtime.NumGoroutine(),
	}
	if uptime, err := host.Uptime(); err == nil {
		info.Uptime = uptime
	} else {
		log.Debugf("could not read host uptime: %v", err)
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info.CPUUsage = percents[0]
	} else if err != nil {
		log.Debugf("could not read cpu usage: %v", err)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryTotal = vm.Total
		info.MemoryUsed = vm.Used
	} else {
		log.Debugf("could not read memory usage: %v", err)
	}
	if du, err := disk.Usage("/"); err == nil {
		info.DiskTotal = du.Total
		info.DiskUsed = du.Used
	} else {
		log.Debugf("could not read disk usage: %v", err)
	}
	return info
}

// Handler serves the collected telemetry as JSON.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(Collect()); err != nil {
		log.Errorf("could not encode system info: %v", err)
	}
}
