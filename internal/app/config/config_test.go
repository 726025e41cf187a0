package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
hub:
  broker_url: tcp://hub.example:1883
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Device.ID != "jetson-nano-001" {
		t.Fatalf("expected default device id, got %s", cfg.Device.ID)
	}
	if cfg.Telemetry.Interval != 30*time.Second {
		t.Fatalf("expected default interval 30s, got %s", cfg.Telemetry.Interval)
	}
	if cfg.Analytics.BufferSize != 100 {
		t.Fatalf("expected default buffer size 100, got %d", cfg.Analytics.BufferSize)
	}
	if cfg.Alerts.CPUPercent != 80 || cfg.Alerts.Temperature != 70 {
		t.Fatalf("alert defaults wrong: %+v", cfg.Alerts)
	}
	if cfg.Hub.TelemetryTopic != "devices/jetson-nano-001/telemetry" {
		t.Fatalf("hub topic not derived: %s", cfg.Hub.TelemetryTopic)
	}
	if cfg.WAL.Dir != "./data/wal" {
		t.Fatalf("expected default wal dir, got %s", cfg.WAL.Dir)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr, got %s", cfg.Metrics.Addr)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default log level, got %s", cfg.Logging.Level)
	}
}

func TestLoadRequiresBrokerURL(t *testing.T) {
	path := writeConfig(t, `
device:
  id: dev-1
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing broker url")
	}
}

func TestLoadRejectsShortInterval(t *testing.T) {
	path := writeConfig(t, `
hub:
  broker_url: tcp://hub.example:1883
telemetry:
  interval: 100ms
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for sub-second interval")
	}
}

func TestLoadRecorderRequiresConnString(t *testing.T) {
	path := writeConfig(t, `
hub:
  broker_url: tcp://hub.example:1883
recorder:
  enabled: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for enabled recorder without conn string")
	}
}

func TestLoadAutoUpdateRequiresRepo(t *testing.T) {
	path := writeConfig(t, `
hub:
  broker_url: tcp://hub.example:1883
update:
  auto_update: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for auto-update without repo")
	}
}

func TestEnvOverlays(t *testing.T) {
	t.Setenv("DEVICE_ID", "env-device")
	t.Setenv("HUB_BROKER_URL", "tcp://env-hub:1883")
	t.Setenv("TELEMETRY_INTERVAL", "45s")
	t.Setenv("GITHUB_TOKEN", "tok123")

	path := writeConfig(t, `
device:
  id: file-device
hub:
  broker_url: tcp://file-hub:1883
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Device.ID != "env-device" {
		t.Fatalf("env device id not applied: %s", cfg.Device.ID)
	}
	if cfg.Hub.BrokerURL != "tcp://env-hub:1883" {
		t.Fatalf("env broker not applied: %s", cfg.Hub.BrokerURL)
	}
	if cfg.Telemetry.Interval != 45*time.Second {
		t.Fatalf("env interval not applied: %s", cfg.Telemetry.Interval)
	}
	if cfg.Update.Token != "tok123" {
		t.Fatalf("env token not applied: %s", cfg.Update.Token)
	}
	if cfg.Hub.TelemetryTopic != "devices/env-device/telemetry" {
		t.Fatalf("topics should derive from the overlaid id: %s", cfg.Hub.TelemetryTopic)
	}
}

func TestCollectorConfigToggles(t *testing.T) {
	path := writeConfig(t, `
hub:
  broker_url: tcp://hub.example:1883
telemetry:
  enable_disk: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	cc := cfg.CollectorConfig()
	if !cc.CPUEnabled || !cc.MemoryEnabled || !cc.TemperatureEnabled {
		t.Fatalf("absent toggles should default to enabled: %+v", cc)
	}
	if cc.DiskEnabled {
		t.Fatal("explicit enable_disk: false ignored")
	}
	if cc.DeviceID != "jetson-nano-001" {
		t.Fatalf("device id not propagated: %s", cc.DeviceID)
	}
}

func TestLoadSensorsSection(t *testing.T) {
	path := writeConfig(t, `
hub:
  broker_url: tcp://hub.example:1883
sensors:
  endpoint: opc.tcp://plc:4840
  sensors:
    - node_id: "ns=2;s=Bench.Temp0"
      name: bench_temp
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Sensors == nil || cfg.Sensors.Endpoint != "opc.tcp://plc:4840" {
		t.Fatalf("sensors section not loaded: %+v", cfg.Sensors)
	}
	if cfg.Sensors.Sensors[0].Name != "bench_temp" {
		t.Fatalf("sensor name lost: %+v", cfg.Sensors.Sensors)
	}
}

func TestThresholdsFromConfig(t *testing.T) {
	path := writeConfig(t, `
hub:
  broker_url: tcp://hub.example:1883
alerts:
  cpu_percent: 50
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	th := cfg.Thresholds().Snapshot()
	if th["cpu_percent"] != 50 {
		t.Fatalf("configured threshold not applied: %v", th)
	}
	if th["memory_percent"] != 85 {
		t.Fatalf("default threshold missing: %v", th)
	}
}
