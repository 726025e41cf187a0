// Package hostmetrics reads CPU, memory, disk, thermal, and connectivity
// data from the local host and assembles telemetry samples. Every metric
// source can fail independently; a failed read leaves the corresponding
// sample field unset instead of failing the whole sample.
package hostmetrics

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/AshyBoy91/jetsonazure/internal/domain"
	"github.com/AshyBoy91/jetsonazure/internal/ports"
)

type Config struct {
	DeviceID   string
	DeviceType string

	// Metric toggles mirror the agent configuration; a disabled metric is
	// reported as missing, not as zero.
	CPUEnabled         bool
	MemoryEnabled      bool
	DiskEnabled        bool
	TemperatureEnabled bool

	DiskPath   string // mount point to sample, default "/"
	ThermalDir string // default /sys/class/thermal
	ModelPath  string // default /proc/device-tree/model

	// ConnectivityAddrs are dialed (tcp, short timeout) to probe
	// reachability: first the public internet, second the hub.
	InternetProbeAddr string
	HubProbeAddr      string
}

func (c *Config) applyDefaults() {
	if c.DiskPath == "" {
		c.DiskPath = "/"
	}
	if c.ThermalDir == "" {
		c.ThermalDir = "/sys/class/thermal"
	}
	if c.ModelPath == "" {
		c.ModelPath = "/proc/device-tree/model"
	}
	if c.InternetProbeAddr == "" {
		c.InternetProbeAddr = "8.8.8.8:53"
	}
}

// SensorProbe supplies temperatures from sensors outside the host's own
// thermal zones (e.g. an attached OPC UA sensor bank).
type SensorProbe interface {
	ReadTemperatures(ctx context.Context) (map[string]float64, error)
}

type Collector struct {
	cfg      Config
	probe    SensorProbe
	isJetson bool

	cpuPercent func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	virtualMem func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage  func(ctx context.Context, path string) (*disk.UsageStat, error)
	uptime     func(ctx context.Context) (uint64, error)
	loadAvg    func(ctx context.Context) (*load.AvgStat, error)
	dial       func(ctx context.Context, addr string) error
	now        func() time.Time
}

func NewCollector(cfg Config, probe SensorProbe) *Collector {
	cfg.applyDefaults()
	c := &Collector{
		cfg:        cfg,
		probe:      probe,
		cpuPercent: cpu.PercentWithContext,
		virtualMem: mem.VirtualMemoryWithContext,
		diskUsage:  disk.UsageWithContext,
		uptime:     host.UptimeWithContext,
		loadAvg:    load.AvgWithContext,
		dial:       dialProbe,
		now:        time.Now,
	}
	c.isJetson = detectJetson(cfg.ModelPath)
	return c
}

// Collect assembles one telemetry sample from the enabled metric sources.
func (c *Collector) Collect(ctx context.Context) (domain.Sample, error) {
	s := domain.Sample{
		Timestamp:  c.now().UTC(),
		DeviceID:   c.cfg.DeviceID,
		DeviceType: c.cfg.DeviceType,
		IsJetson:   c.isJetson,
	}

	if c.cfg.CPUEnabled {
		if pcts, err := c.cpuPercent(ctx, 100*time.Millisecond, false); err == nil && len(pcts) > 0 {
			s.CPUPercent = domain.Float(pcts[0])
		}
	}
	if c.cfg.MemoryEnabled {
		if vm, err := c.virtualMem(ctx); err == nil && vm != nil {
			s.MemoryPercent = domain.Float(vm.UsedPercent)
		}
	}
	if c.cfg.DiskEnabled {
		if du, err := c.diskUsage(ctx, c.cfg.DiskPath); err == nil && du != nil {
			s.DiskPercent = domain.Float(du.UsedPercent)
		}
	}
	if c.cfg.TemperatureEnabled {
		s.Temperatures = c.readTemperatures(ctx)
	}
	if up, err := c.uptime(ctx); err == nil {
		s.UptimeSeconds = float64(up)
	}
	if la, err := c.loadAvg(ctx); err == nil && la != nil {
		s.LoadAverage = []float64{la.Load1, la.Load5, la.Load15}
	}

	s.Network = domain.NetworkStatus{Connectivity: c.probeConnectivity(ctx)}
	return s, nil
}

func (c *Collector) readTemperatures(ctx context.Context) map[string]float64 {
	temps := readThermalZones(c.cfg.ThermalDir)
	if c.probe != nil {
		external, err := c.probe.ReadTemperatures(ctx)
		if err == nil {
			if temps == nil {
				temps = make(map[string]float64, len(external))
			}
			for name, v := range external {
				temps[name] = v
			}
		}
	}
	return temps
}

func (c *Collector) probeConnectivity(ctx context.Context) domain.Connectivity {
	conn := domain.Connectivity{LastCheck: c.now().UTC()}
	if err := c.dial(ctx, c.cfg.InternetProbeAddr); err == nil {
		conn.InternetAvailable = true
	}
	if c.cfg.HubProbeAddr != "" {
		if err := c.dial(ctx, c.cfg.HubProbeAddr); err == nil {
			conn.HubReachable = true
		}
	}
	return conn
}

// readThermalZones parses /sys/class/thermal/thermal_zone*/temp values,
// which the kernel reports in millidegrees Celsius.
func readThermalZones(dir string) map[string]float64 {
	zones, err := filepath.Glob(filepath.Join(dir, "thermal_zone*"))
	if err != nil || len(zones) == 0 {
		return nil
	}

	temps := make(map[string]float64)
	for _, zone := range zones {
		raw, err := os.ReadFile(filepath.Join(zone, "temp"))
		if err != nil {
			continue
		}
		milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			continue
		}
		temps[filepath.Base(zone)] = float64(milli) / 1000.0
	}
	if len(temps) == 0 {
		return nil
	}
	return temps
}

func detectJetson(modelPath string) bool {
	raw, err := os.ReadFile(modelPath)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(raw)), "jetson")
}

func dialProbe(ctx context.Context, addr string) error {
	d := net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

var _ ports.Collector = (*Collector)(nil)
