package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AshyBoy91/jetsonazure/internal/adapters/hostmetrics"
	"github.com/AshyBoy91/jetsonazure/internal/adapters/hub"
	"github.com/AshyBoy91/jetsonazure/internal/adapters/opcuasensors"
	"github.com/AshyBoy91/jetsonazure/internal/alerts"
	"github.com/AshyBoy91/jetsonazure/internal/analytics"
	"github.com/AshyBoy91/jetsonazure/internal/ports"
	"github.com/AshyBoy91/jetsonazure/internal/update"
)

type Config struct {
	Device    DeviceConfig         `yaml:"device"`
	Telemetry TelemetryConfig      `yaml:"telemetry"`
	Analytics AnalyticsConfig      `yaml:"analytics"`
	Alerts    AlertsConfig         `yaml:"alerts"`
	Hub       hub.Config           `yaml:"hub"`
	Sensors   *opcuasensors.Config `yaml:"sensors"`
	Policy    ports.Policy         `yaml:"policy"`
	WAL       WALConfig            `yaml:"wal"`
	Recorder  RecorderConfig       `yaml:"recorder"`
	Metrics   MetricsConfig        `yaml:"metrics"`
	Update    update.Config        `yaml:"update"`
	Logging   LoggingConfig        `yaml:"logging"`
}

type DeviceConfig struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
}

// TelemetryConfig controls collection. Toggles are pointers so that an
// absent key means enabled.
type TelemetryConfig struct {
	Interval           time.Duration `yaml:"interval"`
	EnableCPU          *bool         `yaml:"enable_cpu"`
	EnableMemory       *bool         `yaml:"enable_memory"`
	EnableDisk         *bool         `yaml:"enable_disk"`
	EnableTemperatures *bool         `yaml:"enable_temperatures"`
	DiskPath           string        `yaml:"disk_path"`
	InternetProbeAddr  string        `yaml:"internet_probe_addr"`
	HubProbeAddr       string        `yaml:"hub_probe_addr"`
}

type AnalyticsConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

type AlertsConfig struct {
	CPUPercent    float64 `yaml:"cpu_percent"`
	MemoryPercent float64 `yaml:"memory_percent"`
	Temperature   float64 `yaml:"temperature"`
	DiskPercent   float64 `yaml:"disk_percent"`
}

type WALConfig struct {
	Dir string `yaml:"dir"`
}

type RecorderConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvOverlays()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverlays lets deployment secrets and common knobs override the
// file without editing it.
func (c *Config) applyEnvOverlays() {
	if v := os.Getenv("DEVICE_ID"); v != "" {
		c.Device.ID = v
	}
	if v := os.Getenv("HUB_BROKER_URL"); v != "" {
		c.Hub.BrokerURL = v
	}
	if v := os.Getenv("HUB_PASSWORD"); v != "" {
		c.Hub.Password = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.Update.Token = v
	}
	if v := os.Getenv("TELEMETRY_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Telemetry.Interval = d
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Device.ID == "" {
		c.Device.ID = "jetson-nano-001"
	}
	if c.Device.Type == "" {
		c.Device.Type = "jetson-nano"
	}
	if c.Telemetry.Interval == 0 {
		c.Telemetry.Interval = 30 * time.Second
	}
	if c.Analytics.BufferSize == 0 {
		c.Analytics.BufferSize = analytics.DefaultBufferSize
	}
	if c.Alerts.CPUPercent == 0 {
		c.Alerts.CPUPercent = alerts.DefaultCPUPercent
	}
	if c.Alerts.MemoryPercent == 0 {
		c.Alerts.MemoryPercent = alerts.DefaultMemoryPercent
	}
	if c.Alerts.Temperature == 0 {
		c.Alerts.Temperature = alerts.DefaultTemperature
	}
	if c.Alerts.DiskPercent == 0 {
		c.Alerts.DiskPercent = alerts.DefaultDiskPercent
	}
	if c.Policy.MaxWALSizeBytes == 0 {
		c.Policy.MaxWALSizeBytes = 1 << 30
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 10_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 500
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 100 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "drop"
	}
	if c.Policy.OnWALFull == "" {
		c.Policy.OnWALFull = "drop"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/wal"
	}
	if c.Recorder.Table == "" {
		c.Recorder.Table = "telemetry"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	c.Hub.ApplyDefaults(c.Device.ID)
	c.Update.ApplyDefaults()
	if c.Sensors != nil {
		c.Sensors.ApplyDefaults()
	}
}

func (c *Config) validate() error {
	if err := c.Hub.Validate(); err != nil {
		return err
	}
	if c.Telemetry.Interval < time.Second {
		return fmt.Errorf("telemetry.interval must be at least 1s")
	}
	if c.Recorder.Enabled && c.Recorder.ConnString == "" {
		return fmt.Errorf("recorder.conn_string is required when the recorder is enabled")
	}
	if c.Update.AutoUpdate && c.Update.Repo == "" {
		return fmt.Errorf("update.repo is required when auto-update is enabled")
	}
	if c.Sensors != nil {
		if err := c.Sensors.Validate(); err != nil {
			return fmt.Errorf("sensors config: %w", err)
		}
	}
	return nil
}

// CollectorConfig maps the telemetry section onto the host collector.
func (c *Config) CollectorConfig() hostmetrics.Config {
	return hostmetrics.Config{
		DeviceID:           c.Device.ID,
		DeviceType:         c.Device.Type,
		CPUEnabled:         enabled(c.Telemetry.EnableCPU),
		MemoryEnabled:      enabled(c.Telemetry.EnableMemory),
		DiskEnabled:        enabled(c.Telemetry.EnableDisk),
		TemperatureEnabled: enabled(c.Telemetry.EnableTemperatures),
		DiskPath:           c.Telemetry.DiskPath,
		InternetProbeAddr:  c.Telemetry.InternetProbeAddr,
		HubProbeAddr:       c.Telemetry.HubProbeAddr,
	}
}

// Thresholds builds the initial alert thresholds from the config.
func (c *Config) Thresholds() *alerts.Thresholds {
	t := alerts.NewThresholds()
	t.Merge(map[string]float64{
		"cpu_percent":    c.Alerts.CPUPercent,
		"memory_percent": c.Alerts.MemoryPercent,
		"temperature":    c.Alerts.Temperature,
		"disk_percent":   c.Alerts.DiskPercent,
	})
	return t
}

func enabled(v *bool) bool {
	return v == nil || *v
}
