package methods

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AshyBoy91/jetsonazure/internal/alerts"
	"github.com/AshyBoy91/jetsonazure/internal/analytics"
	"github.com/AshyBoy91/jetsonazure/internal/domain"
	"github.com/AshyBoy91/jetsonazure/internal/update"
)

// Analytics is the read surface the method handlers need from the
// aggregator.
type Analytics interface {
	ComprehensiveReport() analytics.Report
	DetectAnomalies() []analytics.Anomaly
	StabilityAnalysis() analytics.Stability
	Recent(n int) []domain.Sample
	Len() int
}

// DeviceManager serves reboot and inventory requests.
type DeviceManager interface {
	Reboot(ctx context.Context) error
	DeviceInfo(ctx context.Context) (any, error)
}

// Updater serves firmware and release-check requests.
type Updater interface {
	CheckForUpdates(ctx context.Context) (update.CheckResult, error)
	HandleFirmwareUpdate(ctx context.Context, payload update.FirmwarePayload) (update.FirmwareResult, error)
	Status() update.Status
}

// Deps collects the services the built-in methods are backed by. Nil
// members leave the corresponding methods unregistered.
type Deps struct {
	Analytics  Analytics
	Device     DeviceManager
	Updater    Updater
	Thresholds *alerts.Thresholds

	// OnConfigChange runs after a method mutates agent configuration,
	// e.g. so the agent can report its new state to the hub.
	OnConfigChange func()
}

type analyticsResponse struct {
	analytics.Report
	Anomalies []analytics.Anomaly `json:"anomalies"`
	Stability analytics.Stability `json:"stability"`
}

type localDataResponse struct {
	RecentTelemetry []domain.Sample `json:"recent_telemetry"`
	BufferSize      int             `json:"buffer_size"`
}

type configureAlertsResponse struct {
	Result     string             `json:"result"`
	Thresholds map[string]float64 `json:"thresholds"`
}

// RegisterBuiltin wires the standard device method set into d.
func RegisterBuiltin(d *Dispatcher, deps Deps) {
	if deps.Device != nil {
		d.Register("reboot", func(ctx context.Context, _ json.RawMessage) (any, error) {
			if err := deps.Device.Reboot(ctx); err != nil {
				return nil, err
			}
			return map[string]string{"result": "Reboot initiated"}, nil
		})
		d.Register("get_device_info", func(ctx context.Context, _ json.RawMessage) (any, error) {
			return deps.Device.DeviceInfo(ctx)
		})
	}

	if deps.Analytics != nil {
		d.Register("get_edge_analytics", func(_ context.Context, _ json.RawMessage) (any, error) {
			rep := deps.Analytics.ComprehensiveReport()
			if rep.Failed() {
				return rep, nil
			}
			anomalies := deps.Analytics.DetectAnomalies()
			if anomalies == nil {
				anomalies = []analytics.Anomaly{}
			}
			return analyticsResponse{
				Report:    rep,
				Anomalies: anomalies,
				Stability: deps.Analytics.StabilityAnalysis(),
			}, nil
		})
		d.Register("get_local_data", func(_ context.Context, _ json.RawMessage) (any, error) {
			return localDataResponse{
				RecentTelemetry: deps.Analytics.Recent(10),
				BufferSize:      deps.Analytics.Len(),
			}, nil
		})
	}

	if deps.Thresholds != nil {
		d.Register("configure_alerts", func(_ context.Context, payload json.RawMessage) (any, error) {
			if len(payload) > 0 {
				var overrides map[string]float64
				if err := json.Unmarshal(payload, &overrides); err != nil {
					return nil, fmt.Errorf("decode thresholds: %w", err)
				}
				deps.Thresholds.Merge(overrides)
				if deps.OnConfigChange != nil {
					deps.OnConfigChange()
				}
			}
			return configureAlertsResponse{
				Result:     "Alert thresholds updated",
				Thresholds: deps.Thresholds.Snapshot(),
			}, nil
		})
	}

	if deps.Updater != nil {
		d.Register("update_firmware", func(ctx context.Context, payload json.RawMessage) (any, error) {
			var p update.FirmwarePayload
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &p); err != nil {
					return nil, fmt.Errorf("decode update payload: %w", err)
				}
			}
			return deps.Updater.HandleFirmwareUpdate(ctx, p)
		})
		d.Register("check_for_updates", func(ctx context.Context, _ json.RawMessage) (any, error) {
			return deps.Updater.CheckForUpdates(ctx)
		})
		d.Register("get_update_status", func(_ context.Context, _ json.RawMessage) (any, error) {
			return deps.Updater.Status(), nil
		})
	}
}
