package hostmetrics

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// DeviceInfo is the static host inventory returned by the get_device_info
// direct method.
type DeviceInfo struct {
	Timestamp       time.Time `json:"timestamp"`
	Hostname        string    `json:"hostname,omitempty"`
	Platform        string    `json:"platform,omitempty"`
	PlatformVersion string    `json:"platform_version,omitempty"`
	KernelVersion   string    `json:"kernel_version,omitempty"`
	KernelArch      string    `json:"kernel_arch,omitempty"`
	Arch            string    `json:"arch"`
	CPUModel        string    `json:"cpu_model,omitempty"`
	CPUCount        int       `json:"cpu_count,omitempty"`
	MemoryTotal     uint64    `json:"memory_total,omitempty"`
	UptimeSeconds   uint64    `json:"uptime_seconds,omitempty"`
	IsJetson        bool      `json:"is_jetson"`
	JetsonModel     string    `json:"jetson_model,omitempty"`
	JetPackVersion  string    `json:"jetpack_version,omitempty"`
	CUDAVersion     string    `json:"cuda_version,omitempty"`
}

// DeviceInfo gathers the host inventory. Individual probe failures leave
// their fields empty; the call itself does not fail.
func (c *Collector) DeviceInfo(ctx context.Context) DeviceInfo {
	info := DeviceInfo{
		Timestamp: c.now().UTC(),
		Arch:      runtime.GOARCH,
		IsJetson:  c.isJetson,
	}

	if hi, err := host.InfoWithContext(ctx); err == nil && hi != nil {
		info.Hostname = hi.Hostname
		info.Platform = hi.Platform
		info.PlatformVersion = hi.PlatformVersion
		info.KernelVersion = hi.KernelVersion
		info.KernelArch = hi.KernelArch
		info.UptimeSeconds = hi.Uptime
	}
	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
		info.CPUCount = len(cpus)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		info.MemoryTotal = vm.Total
	}

	if c.isJetson {
		info.JetsonModel = readModel(c.cfg.ModelPath)
		info.JetPackVersion = jetpackVersion(ctx)
		info.CUDAVersion = cudaVersion(ctx)
	}
	return info
}

// Reboot initiates a system reboot. The caller is expected to have sent
// its method response before invoking this.
func (c *Collector) Reboot(ctx context.Context) error {
	return exec.CommandContext(ctx, "sudo", "reboot").Run()
}

func readModel(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(raw), "\x00\n ")
}

// jetpackVersion extracts the package version from dpkg output.
func jetpackVersion(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "dpkg", "-l", "nvidia-jetpack").Output()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "nvidia-jetpack") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 3 {
			return fields[2]
		}
	}
	return ""
}

// cudaVersion parses "release X.Y" from nvcc --version.
func cudaVersion(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "nvcc", "--version").Output()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(strings.ToLower(line), "release") {
			continue
		}
		fields := strings.Fields(line)
		for i, f := range fields {
			if strings.EqualFold(f, "release") && i+1 < len(fields) {
				return strings.TrimSuffix(fields[i+1], ",")
			}
		}
	}
	return ""
}
