package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestZapPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewZapProm(zap.NewNop(), reg)

	obs.IncCounter(MetricSamplesCollected, 5)
	if got := testutil.ToFloat64(obs.counters[MetricSamplesCollected]); got != 5 {
		t.Fatalf("expected collected counter 5, got %f", got)
	}

	obs.IncCounter(MetricQueueDropped, 2)
	if got := testutil.ToFloat64(obs.counters[MetricQueueDropped]); got != 2 {
		t.Fatalf("expected queue drop counter 2, got %f", got)
	}

	obs.SetGauge(MetricWALSizeBytes, 42)
	if got := testutil.ToFloat64(obs.gauges[MetricWALSizeBytes]); got != 42 {
		t.Fatalf("expected wal gauge 42, got %f", got)
	}

	obs.ObserveLatency(MetricPublishLatency, 0.5)
	hCollector := obs.histos[MetricPublishLatency].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	// Unknown names are ignored rather than panicking.
	obs.IncCounter("edge_unknown_total", 1)
	obs.SetGauge("edge_unknown", 1)
	obs.ObserveLatency("edge_unknown_seconds", 1)
}

func TestZapPromNilLoggerDefaultsToNop(t *testing.T) {
	obs := NewZapProm(nil, prometheus.NewRegistry())
	obs.LogInfo("collect_tick")
	obs.LogError("publish_failed", nil)
	obs.LogCritical("wal_append_failed", nil)
}
