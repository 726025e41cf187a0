package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/AshyBoy91/jetsonazure/internal/ports"
)

// Metric names exposed by the agent.
const (
	MetricSamplesCollected = "edge_samples_collected_total"
	MetricSamplesPublished = "edge_samples_published_total"
	MetricPublishFailures  = "edge_publish_failures_total"
	MetricQueueDropped     = "edge_queue_dropped_total"
	MetricAlerts           = "edge_alerts_total"
	MetricBufferLength     = "edge_buffer_length"
	MetricQueueLength      = "edge_queue_length"
	MetricWALSizeBytes     = "edge_wal_size_bytes"
	MetricPublishLatency   = "edge_publish_latency_seconds"
)

// ZapProm backs the Observability port with a zap logger for the log
// surface and Prometheus collectors for the metric surface.
type ZapProm struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewZapProm(log *zap.Logger, reg prometheus.Registerer) *ZapProm {
	if log == nil {
		log = zap.NewNop()
	}

	collected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricSamplesCollected,
		Help: "Telemetry samples collected from the host.",
	})
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricSamplesPublished,
		Help: "Samples successfully delivered to the hub.",
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricPublishFailures,
		Help: "Hub publish attempts that failed.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricQueueDropped,
		Help: "Samples lost to queue backpressure policy.",
	})
	alerts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricAlerts,
		Help: "Threshold alerts raised by the collect loop.",
	})
	bufLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricBufferLength,
		Help: "Samples currently held in the analytics rolling buffer.",
	})
	queueLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricQueueLength,
		Help: "Samples buffered in the delivery queue.",
	})
	walBytes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricWALSizeBytes,
		Help: "Size of the store-and-forward log on disk.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    MetricPublishLatency,
		Help:    "Latency of hub publish batches.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	if reg != nil {
		reg.MustRegister(collected, published, failures, dropped, alerts, bufLen, queueLen, walBytes, latency)
	}

	return &ZapProm{
		log: log,
		counters: map[string]prometheus.Counter{
			MetricSamplesCollected: collected,
			MetricSamplesPublished: published,
			MetricPublishFailures:  failures,
			MetricQueueDropped:     dropped,
			MetricAlerts:           alerts,
		},
		gauges: map[string]prometheus.Gauge{
			MetricBufferLength: bufLen,
			MetricQueueLength:  queueLen,
			MetricWALSizeBytes: walBytes,
		},
		histos: map[string]prometheus.Observer{
			MetricPublishLatency: latency,
		},
	}
}

func (z *ZapProm) LogInfo(msg string, fields ...ports.Field) {
	z.log.Info(msg, zapFields(fields)...)
}

func (z *ZapProm) LogError(msg string, err error, fields ...ports.Field) {
	z.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (z *ZapProm) LogCritical(msg string, err error, fields ...ports.Field) {
	z.log.Error(msg, append(zapFields(fields), zap.Error(err), zap.Bool("critical", true))...)
}

func (z *ZapProm) IncCounter(name string, v float64) {
	if c, ok := z.counters[name]; ok {
		c.Add(v)
	}
}

func (z *ZapProm) ObserveLatency(name string, seconds float64) {
	if h, ok := z.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (z *ZapProm) SetGauge(name string, v float64) {
	if g, ok := z.gauges[name]; ok {
		g.Set(v)
	}
}

func zapFields(fields []ports.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}

var _ ports.Observability = (*ZapProm)(nil)
