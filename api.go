// Package jetsonazure is the public facade of the edge telemetry agent.
// It re-exports the embeddable runtime from pkg/edgeagent so consumers
// can import the module root directly.
package jetsonazure

import (
	base "github.com/AshyBoy91/jetsonazure/pkg/edgeagent"
)

// Type aliases so consumers can import github.com/AshyBoy91/jetsonazure directly.
type (
	Agent           = base.Agent
	Option          = base.Option
	Config          = base.Config
	DeviceConfig    = base.DeviceConfig
	TelemetryConfig = base.TelemetryConfig
	AnalyticsConfig = base.AnalyticsConfig
	AlertsConfig    = base.AlertsConfig
	HubConfig       = base.HubConfig
	SensorsConfig   = base.SensorsConfig
	SensorConfig    = base.SensorConfig
	Policy          = base.Policy
	WALConfig       = base.WALConfig
	RecorderConfig  = base.RecorderConfig
	MetricsConfig   = base.MetricsConfig
	UpdateConfig    = base.UpdateConfig
	LoggingConfig   = base.LoggingConfig
	Sample          = base.Sample
	QueuedSample    = base.QueuedSample
	Collector       = base.Collector
	Publisher       = base.Publisher
	SampleQueue     = base.SampleQueue
	WAL             = base.WAL
	WALStats        = base.WALStats
	WALEntryID      = base.WALEntryID
	Observability   = base.Observability
	Field           = base.Field
	Report          = base.Report
	Insights        = base.Insights
	Health          = base.Health
	Anomaly         = base.Anomaly
	Stability       = base.Stability
	Thresholds      = base.Thresholds
	Alert           = base.Alert
)

// LoadConfig reads and validates an agent configuration file.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// New builds an agent from a configuration, applying any overrides.
func New(cfg *Config, opts ...Option) (*Agent, error) {
	return base.New(cfg, opts...)
}

// Dependency override options.
func WithCollector(col Collector) Option        { return base.WithCollector(col) }
func WithPublisher(p Publisher) Option          { return base.WithPublisher(p) }
func WithQueue(q SampleQueue) Option            { return base.WithQueue(q) }
func WithWAL(w WAL) Option                      { return base.WithWAL(w) }
func WithObservability(obs Observability) Option { return base.WithObservability(obs) }
