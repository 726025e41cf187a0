package methods

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/AshyBoy91/jetsonazure/internal/alerts"
	"github.com/AshyBoy91/jetsonazure/internal/analytics"
	"github.com/AshyBoy91/jetsonazure/internal/domain"
	"github.com/AshyBoy91/jetsonazure/internal/update"
)

type fakeAnalytics struct {
	report    analytics.Report
	anomalies []analytics.Anomaly
	stability analytics.Stability
	samples   []domain.Sample
	size      int
}

func (f *fakeAnalytics) ComprehensiveReport() analytics.Report  { return f.report }
func (f *fakeAnalytics) DetectAnomalies() []analytics.Anomaly   { return f.anomalies }
func (f *fakeAnalytics) StabilityAnalysis() analytics.Stability { return f.stability }
func (f *fakeAnalytics) Recent(n int) []domain.Sample           { return f.samples }
func (f *fakeAnalytics) Len() int                               { return f.size }

type fakeDevice struct {
	rebootErr error
	rebooted  bool
}

func (f *fakeDevice) Reboot(ctx context.Context) error { f.rebooted = true; return f.rebootErr }
func (f *fakeDevice) DeviceInfo(ctx context.Context) (any, error) {
	return map[string]string{"hostname": "jetson-01"}, nil
}

type fakeUpdater struct {
	check    update.CheckResult
	checkErr error
	firmware update.FirmwareResult
}

func (f *fakeUpdater) CheckForUpdates(ctx context.Context) (update.CheckResult, error) {
	return f.check, f.checkErr
}

func (f *fakeUpdater) HandleFirmwareUpdate(ctx context.Context, p update.FirmwarePayload) (update.FirmwareResult, error) {
	return f.firmware, nil
}

func (f *fakeUpdater) Status() update.Status {
	return update.Status{CurrentVersion: "v1"}
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("response body is not JSON: %v (%s)", err, body)
	}
	return out
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := NewDispatcher(nil)
	status, body := d.Dispatch(context.Background(), "nope", nil)
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	if got := decodeBody(t, body)["result"]; got != "Unknown method: nope" {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestDispatchHandlerError(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("boom", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("disk on fire")
	})

	status, body := d.Dispatch(context.Background(), "boom", nil)
	if status != 500 {
		t.Fatalf("expected 500, got %d", status)
	}
	if got := decodeBody(t, body)["result"]; got != "Error: disk on fire" {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("panic", func(context.Context, json.RawMessage) (any, error) {
		panic("oops")
	})

	status, body := d.Dispatch(context.Background(), "panic", nil)
	if status != 500 {
		t.Fatalf("expected 500, got %d", status)
	}
	if got := decodeBody(t, body)["result"]; got != "Error: method panicked: oops" {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestDispatchSuccess(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("ping", func(context.Context, json.RawMessage) (any, error) {
		return map[string]string{"result": "pong"}, nil
	})

	status, body := d.Dispatch(context.Background(), "ping", []byte(`{}`))
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if got := decodeBody(t, body)["result"]; got != "pong" {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestBuiltinGetLocalData(t *testing.T) {
	fa := &fakeAnalytics{
		samples: []domain.Sample{{DeviceID: "dev", Timestamp: time.Unix(100, 0).UTC()}},
		size:    42,
	}
	d := NewDispatcher(nil)
	RegisterBuiltin(d, Deps{Analytics: fa})

	status, body := d.Dispatch(context.Background(), "get_local_data", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d (%s)", status, body)
	}
	out := decodeBody(t, body)
	if out["buffer_size"] != float64(42) {
		t.Fatalf("unexpected buffer_size %v", out["buffer_size"])
	}
	if recent, ok := out["recent_telemetry"].([]any); !ok || len(recent) != 1 {
		t.Fatalf("unexpected recent_telemetry %v", out["recent_telemetry"])
	}
}

func TestBuiltinConfigureAlertsMerges(t *testing.T) {
	th := alerts.NewThresholds()
	d := NewDispatcher(nil)
	RegisterBuiltin(d, Deps{Thresholds: th})

	status, body := d.Dispatch(context.Background(), "configure_alerts", []byte(`{"cpu_percent": 55}`))
	if status != 200 {
		t.Fatalf("expected 200, got %d (%s)", status, body)
	}
	if th.Snapshot()["cpu_percent"] != 55 {
		t.Fatal("threshold not merged")
	}
	out := decodeBody(t, body)
	if out["result"] != "Alert thresholds updated" {
		t.Fatalf("unexpected result %v", out["result"])
	}
}

func TestBuiltinConfigureAlertsBadPayload(t *testing.T) {
	d := NewDispatcher(nil)
	RegisterBuiltin(d, Deps{Thresholds: alerts.NewThresholds()})

	status, _ := d.Dispatch(context.Background(), "configure_alerts", []byte(`{"cpu_percent": "high"}`))
	if status != 500 {
		t.Fatalf("expected 500 for bad payload, got %d", status)
	}
}

func TestBuiltinReboot(t *testing.T) {
	dev := &fakeDevice{}
	d := NewDispatcher(nil)
	RegisterBuiltin(d, Deps{Device: dev})

	status, body := d.Dispatch(context.Background(), "reboot", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !dev.rebooted {
		t.Fatal("reboot not invoked")
	}
	if got := decodeBody(t, body)["result"]; got != "Reboot initiated" {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestBuiltinRebootFailure(t *testing.T) {
	dev := &fakeDevice{rebootErr: errors.New("permission denied")}
	d := NewDispatcher(nil)
	RegisterBuiltin(d, Deps{Device: dev})

	status, body := d.Dispatch(context.Background(), "reboot", nil)
	if status != 500 {
		t.Fatalf("expected 500, got %d", status)
	}
	if got := decodeBody(t, body)["result"]; got != "Error: permission denied" {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestBuiltinGetEdgeAnalytics(t *testing.T) {
	fa := &fakeAnalytics{
		report:    analytics.Report{DataPoints: 7},
		anomalies: []analytics.Anomaly{{Type: "cpu_anomaly", Value: 99}},
		stability: analytics.Stability{Status: "stable", StabilityScore: 92.5},
	}
	d := NewDispatcher(nil)
	RegisterBuiltin(d, Deps{Analytics: fa})

	status, body := d.Dispatch(context.Background(), "get_edge_analytics", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	out := decodeBody(t, body)
	if out["data_points"] != float64(7) {
		t.Fatalf("unexpected report body %v", out)
	}
	if anomalies, ok := out["anomalies"].([]any); !ok || len(anomalies) != 1 {
		t.Fatalf("expected one anomaly, got %v", out["anomalies"])
	}
	stability, ok := out["stability"].(map[string]any)
	if !ok || stability["status"] != "stable" {
		t.Fatalf("unexpected stability %v", out["stability"])
	}
}

func TestBuiltinGetEdgeAnalyticsEmptyBuffer(t *testing.T) {
	fa := &fakeAnalytics{report: analytics.Report{Err: "no telemetry data available"}}
	d := NewDispatcher(nil)
	RegisterBuiltin(d, Deps{Analytics: fa})

	status, body := d.Dispatch(context.Background(), "get_edge_analytics", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	out := decodeBody(t, body)
	if out["error"] != "no telemetry data available" {
		t.Fatalf("expected error field, got %v", out)
	}
	if _, present := out["anomalies"]; present {
		t.Fatalf("error result should not carry anomalies: %v", out)
	}
}

func TestBuiltinCheckForUpdates(t *testing.T) {
	up := &fakeUpdater{check: update.CheckResult{UpdateAvailable: true, LatestVersion: "v2"}}
	d := NewDispatcher(nil)
	RegisterBuiltin(d, Deps{Updater: up})

	status, body := d.Dispatch(context.Background(), "check_for_updates", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	out := decodeBody(t, body)
	if out["update_available"] != true || out["latest_version"] != "v2" {
		t.Fatalf("unexpected body %v", out)
	}
}

func TestRegisterBuiltinSkipsNilServices(t *testing.T) {
	d := NewDispatcher(nil)
	RegisterBuiltin(d, Deps{})
	if len(d.Names()) != 0 {
		t.Fatalf("expected no methods registered, got %v", d.Names())
	}
	status, _ := d.Dispatch(context.Background(), "reboot", nil)
	if status != 404 {
		t.Fatalf("expected 404 for unwired method, got %d", status)
	}
}
