// Package edgeagent wires the collector, analytics buffer, WAL, queue,
// hub transport, and direct-method surface into a runnable agent, and
// exposes lifecycle hooks for embedding it inside another Go service.
package edgeagent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AshyBoy91/jetsonazure/internal/adapters/hostmetrics"
	"github.com/AshyBoy91/jetsonazure/internal/adapters/hub"
	"github.com/AshyBoy91/jetsonazure/internal/adapters/observability"
	"github.com/AshyBoy91/jetsonazure/internal/adapters/opcuasensors"
	"github.com/AshyBoy91/jetsonazure/internal/adapters/queue"
	"github.com/AshyBoy91/jetsonazure/internal/adapters/recorder"
	"github.com/AshyBoy91/jetsonazure/internal/adapters/wal"
	"github.com/AshyBoy91/jetsonazure/internal/alerts"
	"github.com/AshyBoy91/jetsonazure/internal/analytics"
	"github.com/AshyBoy91/jetsonazure/internal/app/config"
	"github.com/AshyBoy91/jetsonazure/internal/app/pipeline"
	"github.com/AshyBoy91/jetsonazure/internal/methods"
	"github.com/AshyBoy91/jetsonazure/internal/ports"
	"github.com/AshyBoy91/jetsonazure/internal/update"
)

// Option customizes the dependencies used by the Agent.
type Option func(*overrides)

type overrides struct {
	collector     ports.Collector
	publisher     ports.Publisher
	queue         ports.SampleQueue
	wal           ports.WAL
	recorder      pipeline.Recorder
	observability ports.Observability
	updater       methods.Updater
}

// WithCollector injects a custom telemetry source (simulators, other
// sensor stacks).
func WithCollector(col ports.Collector) Option {
	return func(o *overrides) { o.collector = col }
}

// WithPublisher replaces the MQTT hub client with a custom transport.
func WithPublisher(p ports.Publisher) Option {
	return func(o *overrides) { o.publisher = p }
}

// WithQueue injects a custom delivery queue implementation.
func WithQueue(q ports.SampleQueue) Option {
	return func(o *overrides) { o.queue = q }
}

// WithWAL lets callers bring their own journal or reuse an instance.
func WithWAL(w ports.WAL) Option {
	return func(o *overrides) { o.wal = w }
}

// WithRecorder injects a custom local retention sink.
func WithRecorder(r pipeline.Recorder) Option {
	return func(o *overrides) { o.recorder = r }
}

// WithObservability plugs in a custom logging/metrics backend.
func WithObservability(obs ports.Observability) Option {
	return func(o *overrides) { o.observability = obs }
}

// WithUpdateManager replaces the release-feed update manager.
func WithUpdateManager(u methods.Updater) Option {
	return func(o *overrides) { o.updater = u }
}

// Agent owns the collect and publish loops plus the method surface.
type Agent struct {
	cfg        *config.Config
	obs        ports.Observability
	agg        *analytics.Aggregator
	thresholds *alerts.Thresholds
	wal        ports.WAL
	queue      ports.SampleQueue
	collector  ports.Collector
	publisher  ports.Publisher
	recorder   pipeline.Recorder
	updater    methods.Updater
	dispatcher *methods.Dispatcher

	hubClient *hub.Client
	db        *sql.DB

	metricsSrv *http.Server
	cancel     context.CancelFunc
	doneCh     chan struct{}
}

// New bootstraps the default adapters: gopsutil host collector (with an
// optional OPC UA sensor probe), file WAL, in-memory queue, MQTT hub
// publisher, and zap/Prometheus observability. Options override any of
// them.
func New(cfg *config.Config, opts ...Option) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var ov overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&ov)
		}
	}

	obs := ov.observability
	if obs == nil {
		log, err := buildLogger(cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		obs = observability.NewZapProm(log, prometheus.DefaultRegisterer)
	}

	a := &Agent{
		cfg:        cfg,
		obs:        obs,
		agg:        analytics.New(cfg.Analytics.BufferSize),
		thresholds: cfg.Thresholds(),
	}

	var err error
	a.wal = ov.wal
	if a.wal == nil {
		a.wal, err = wal.NewFileWAL(cfg.WAL.Dir)
		if err != nil {
			return nil, err
		}
	}

	a.queue = ov.queue
	if a.queue == nil {
		a.queue = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	if err := pipeline.ReplayWAL(a.wal, a.queue, cfg.Policy, obs); err != nil {
		return nil, err
	}

	var device methods.DeviceManager
	a.collector = ov.collector
	if a.collector == nil {
		var probe hostmetrics.SensorProbe
		if cfg.Sensors != nil {
			probe, err = opcuasensors.NewProbe(*cfg.Sensors)
			if err != nil {
				return nil, fmt.Errorf("sensor probe: %w", err)
			}
		}
		col := hostmetrics.NewCollector(cfg.CollectorConfig(), probe)
		a.collector = col
		device = hostDevice{col}
	}

	a.updater = ov.updater
	if a.updater == nil && cfg.Update.Repo != "" {
		a.updater = update.NewManager(cfg.Update, obs)
	}

	a.dispatcher = methods.NewDispatcher(obs)
	methods.RegisterBuiltin(a.dispatcher, methods.Deps{
		Analytics:      a.agg,
		Device:         device,
		Updater:        a.updater,
		Thresholds:     a.thresholds,
		OnConfigChange: a.reportState,
	})

	a.publisher = ov.publisher
	if a.publisher == nil {
		a.hubClient, err = hub.NewClient(cfg.Hub, a.dispatcher, obs)
		if err != nil {
			return nil, err
		}
		a.publisher = a.hubClient
	}

	a.recorder = ov.recorder
	if a.recorder == nil && cfg.Recorder.Enabled {
		a.db, err = sql.Open("postgres", cfg.Recorder.ConnString)
		if err != nil {
			return nil, err
		}
		a.recorder = recorder.NewPostgresRecorder(a.db, cfg.Recorder.Table)
	}

	return a, nil
}

// Analytics exposes the aggregator for embedding callers.
func (a *Agent) Analytics() *analytics.Aggregator { return a.agg }

// Start launches the loops and the metrics endpoint. It returns
// immediately; call Run to block on a context instead.
func (a *Agent) Start() error {
	if a == nil {
		return fmt.Errorf("agent is nil")
	}

	if a.hubClient != nil {
		if err := a.hubClient.Connect(); err != nil {
			return err
		}
		a.reportState()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.doneCh = make(chan struct{})

	go func() {
		pipeline.RunCollectLoop(ctx, pipeline.CollectDeps{
			Collector:  a.collector,
			Aggregator: a.agg,
			Thresholds: a.thresholds,
			WAL:        a.wal,
			Queue:      a.queue,
			Policy:     a.cfg.Policy,
			Obs:        a.obs,
			Interval:   a.cfg.Telemetry.Interval,
		})
	}()

	go func() {
		pipeline.RunPublishLoop(ctx, pipeline.PublishDeps{
			Publisher: a.publisher,
			Recorder:  a.recorder,
			WAL:       a.wal,
			Queue:     a.queue,
			Policy:    a.cfg.Policy,
			Obs:       a.obs,
		})
		close(a.doneCh)
	}()

	if m, ok := a.updater.(*update.Manager); ok {
		go m.RunCheckLoop(ctx)
	}

	a.startMetrics()
	go a.recordResourceGauges(ctx, time.Second)
	return nil
}

// Run starts the agent and blocks until the provided context is
// cancelled, then attempts a graceful shutdown.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Shutdown stops the loops and releases the transport, database, and
// journal.
func (a *Agent) Shutdown(ctx context.Context) error {
	var errs []error

	if a.cancel != nil {
		a.cancel()
	}
	if a.doneCh != nil {
		select {
		case <-a.doneCh:
		case <-ctx.Done():
		}
	}

	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if a.hubClient != nil {
		a.hubClient.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if w, ok := a.wal.(*wal.FileWAL); ok {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// reportState publishes the agent's current configuration document to
// the hub state topic, best-effort.
func (a *Agent) reportState() {
	if a.hubClient == nil {
		return
	}
	state := map[string]any{
		"device_id":          a.cfg.Device.ID,
		"device_type":        a.cfg.Device.Type,
		"telemetry_interval": a.cfg.Telemetry.Interval.String(),
		"alert_thresholds":   a.thresholds.Snapshot(),
		"last_update":        time.Now().UTC().Format(time.RFC3339),
	}
	if a.updater != nil {
		state["update"] = a.updater.Status()
	}
	if err := a.hubClient.PublishState(state); err != nil {
		a.obs.LogError("state_report_failed", err)
	}
}

func (a *Agent) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	a.metricsSrv = &http.Server{
		Addr:    a.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.obs.LogError("metrics_server_exited", err)
		}
	}()
}

func (a *Agent) recordResourceGauges(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := a.wal.Stats()
			a.obs.SetGauge("edge_wal_size_bytes", float64(stats.SizeBytes))
			a.obs.SetGauge("edge_queue_length", float64(a.queue.Len()))
			a.obs.SetGauge("edge_buffer_length", float64(a.agg.Len()))
		}
	}
}

// hostDevice adapts the host collector to the method surface.
type hostDevice struct {
	col *hostmetrics.Collector
}

func (d hostDevice) Reboot(ctx context.Context) error { return d.col.Reboot(ctx) }

func (d hostDevice) DeviceInfo(ctx context.Context) (any, error) {
	return d.col.DeviceInfo(ctx), nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
