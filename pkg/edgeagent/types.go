package edgeagent

import (
	"github.com/AshyBoy91/jetsonazure/internal/adapters/hub"
	"github.com/AshyBoy91/jetsonazure/internal/adapters/opcuasensors"
	"github.com/AshyBoy91/jetsonazure/internal/alerts"
	"github.com/AshyBoy91/jetsonazure/internal/analytics"
	"github.com/AshyBoy91/jetsonazure/internal/app/config"
	"github.com/AshyBoy91/jetsonazure/internal/domain"
	"github.com/AshyBoy91/jetsonazure/internal/ports"
	"github.com/AshyBoy91/jetsonazure/internal/update"
)

// Config re-exports the root configuration struct so downstream projects
// can construct or modify it programmatically.
type Config = config.Config

type (
	// DeviceConfig identifies the device to the hub.
	DeviceConfig = config.DeviceConfig
	// TelemetryConfig controls collection interval and metric toggles.
	TelemetryConfig = config.TelemetryConfig
	// AnalyticsConfig sizes the rolling telemetry buffer.
	AnalyticsConfig = config.AnalyticsConfig
	// AlertsConfig holds the initial alert thresholds.
	AlertsConfig = config.AlertsConfig
	// HubConfig configures the MQTT transport and topic layout.
	HubConfig = hub.Config
	// SensorsConfig configures the optional OPC UA sensor probe.
	SensorsConfig = opcuasensors.Config
	// SensorConfig describes one monitored sensor node.
	SensorConfig = opcuasensors.SensorConfig
	// Policy controls WAL/queue thresholds.
	Policy = ports.Policy
	// WALConfig configures on-disk durability.
	WALConfig = config.WALConfig
	// RecorderConfig configures the optional Postgres retention sink.
	RecorderConfig = config.RecorderConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// UpdateConfig configures the release-feed self-update.
	UpdateConfig = update.Config
	// LoggingConfig sets the log level.
	LoggingConfig = config.LoggingConfig
)

// Sample is one telemetry snapshot. Custom collectors and publishers
// reference it directly.
type Sample = domain.Sample

// QueuedSample is an item buffered inside the delivery queue.
type QueuedSample = ports.QueuedSample

// Collector produces one sample per collection tick.
type Collector = ports.Collector

// Publisher forwards sample batches to the hub.
type Publisher = ports.Publisher

// SampleQueue is the bounded in-memory queue between the loops.
type SampleQueue = ports.SampleQueue

// WAL is the store-and-forward journal for undelivered samples.
type WAL = ports.WAL

// WALStats exposes journal metadata for observability.
type WALStats = ports.WALStats

// WALEntryID uniquely identifies a journal entry.
type WALEntryID = ports.WALEntryID

// Observability emits logs and metrics for the agent's loops.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Report is the comprehensive analytics report.
type Report = analytics.Report

// Insights is the quick-insights summary over the recent window.
type Insights = analytics.Insights

// Health is the device health score.
type Health = analytics.Health

// Anomaly is one detected CPU anomaly.
type Anomaly = analytics.Anomaly

// Stability is the stability analysis result.
type Stability = analytics.Stability

// Thresholds is the shared, mutable alert threshold set.
type Thresholds = alerts.Thresholds

// Alert is a single threshold violation.
type Alert = alerts.Alert

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// NewAggregator builds a standalone analytics aggregator, for callers
// that want the local analytics without the full agent.
func NewAggregator(capacity int) *analytics.Aggregator {
	return analytics.New(capacity)
}
