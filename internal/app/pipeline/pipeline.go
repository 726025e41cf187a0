// Package pipeline runs the two loops of the agent: collection into the
// analytics buffer and WAL, and batched publishing to the hub. Delivery
// is store-and-forward: a sample reaches the queue only after the WAL
// holds it, and the WAL releases it only after the hub accepts it.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/AshyBoy91/jetsonazure/internal/alerts"
	"github.com/AshyBoy91/jetsonazure/internal/analytics"
	"github.com/AshyBoy91/jetsonazure/internal/domain"
	"github.com/AshyBoy91/jetsonazure/internal/ports"
)

// Recorder is an optional local retention sink fed alongside the hub.
type Recorder interface {
	Record(samples []*domain.Sample) error
	Name() string
}

type CollectDeps struct {
	Collector  ports.Collector
	Aggregator *analytics.Aggregator
	Thresholds *alerts.Thresholds
	WAL        ports.WAL
	Queue      ports.SampleQueue
	Policy     ports.Policy
	Obs        ports.Observability
	Interval   time.Duration
}

type PublishDeps struct {
	Publisher ports.Publisher
	Recorder  Recorder
	WAL       ports.WAL
	Queue     ports.SampleQueue
	Policy    ports.Policy
	Obs       ports.Observability
}

// RunCollectLoop samples the host on the configured interval until ctx
// is cancelled. A failed tick is logged and skipped.
func RunCollectLoop(ctx context.Context, deps CollectDeps) {
	ticker := time.NewTicker(deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collectOnce(ctx, deps)
		}
	}
}

func collectOnce(ctx context.Context, deps CollectDeps) {
	s, err := deps.Collector.Collect(ctx)
	if err != nil {
		deps.Obs.LogError("collect_failed", err)
		return
	}

	deps.Aggregator.Ingest(s)
	s.EdgeProcessed = true
	s.BufferSize = deps.Aggregator.Len()

	deps.Obs.IncCounter("edge_samples_collected_total", 1)
	deps.Obs.SetGauge("edge_buffer_length", float64(s.BufferSize))

	for _, a := range deps.Thresholds.Evaluate(&s) {
		deps.Obs.IncCounter("edge_alerts_total", 1)
		deps.Obs.LogInfo("alert_raised",
			ports.Field{Key: "metric", Value: a.Metric},
			ports.Field{Key: "value", Value: a.Value},
			ports.Field{Key: "threshold", Value: a.Threshold})
	}

	if !waitForWALCapacity(deps.WAL, deps.Policy, deps.Obs) {
		deps.Obs.IncCounter("edge_queue_dropped_total", 1)
		return
	}

	id, err := deps.WAL.Append(&s)
	if err != nil {
		deps.Obs.LogCritical("wal_append_failed", err)
		return
	}
	deps.Obs.SetGauge("edge_wal_size_bytes", float64(deps.WAL.Stats().SizeBytes))

	if !enqueueWithPolicy(deps.Queue, id, &s, deps.Policy, deps.Obs) {
		deps.Obs.IncCounter("edge_queue_dropped_total", 1)
	}
	deps.Obs.SetGauge("edge_queue_length", float64(deps.Queue.Len()))
}

// RunPublishLoop drains the queue into the hub until ctx is cancelled.
// A failed publish keeps the batch in the WAL and backs off; the queue
// entries for the batch are gone, so recovery happens through replay on
// the next start or via ReplayWAL.
func RunPublishLoop(ctx context.Context, deps PublishDeps) {
	idle := deps.Policy.IdleSleep
	if idle <= 0 {
		idle = 100 * time.Millisecond
	}

	for {
		if ctx.Err() != nil {
			return
		}

		batch := deps.Queue.DequeueBatch(deps.Policy.MaxBatchSize)
		if len(batch) == 0 {
			sleepCtx(ctx, idle)
			continue
		}

		samples := make([]*domain.Sample, 0, len(batch))
		var maxID ports.WALEntryID
		for _, item := range batch {
			samples = append(samples, item.Sample)
			if item.ID > maxID {
				maxID = item.ID
			}
		}

		start := time.Now()
		if err := deps.Publisher.PublishBatch(samples); err != nil {
			deps.Obs.LogError("publish_failed", err,
				ports.Field{Key: "publisher", Value: deps.Publisher.Name()},
				ports.Field{Key: "batch", Value: len(samples)})
			deps.Obs.IncCounter("edge_publish_failures_total", 1)
			sleepCtx(ctx, idle)
			continue
		}
		deps.Obs.ObserveLatency("edge_publish_latency_seconds", time.Since(start).Seconds())
		deps.Obs.IncCounter("edge_samples_published_total", float64(len(samples)))

		if deps.Recorder != nil {
			if err := deps.Recorder.Record(samples); err != nil {
				// retention is best-effort
				deps.Obs.LogError("recorder_write_failed", err,
					ports.Field{Key: "recorder", Value: deps.Recorder.Name()})
			}
		}

		if err := deps.WAL.Commit(maxID); err != nil {
			deps.Obs.LogError("wal_commit_failed", err)
		}
		deps.Obs.SetGauge("edge_wal_size_bytes", float64(deps.WAL.Stats().SizeBytes))
		deps.Obs.SetGauge("edge_queue_length", float64(deps.Queue.Len()))
	}
}

// ReplayWAL loads uncommitted entries back into the queue, oldest first.
// Called once on startup before the loops run.
func ReplayWAL(wal ports.WAL, q ports.SampleQueue, pol ports.Policy, obs ports.Observability) error {
	stats := wal.Stats()
	if stats.LatestAppended == 0 || stats.OldestUncommitted > stats.LatestAppended {
		return nil
	}

	var replayed int
	err := wal.Iterate(stats.OldestUncommitted, func(id ports.WALEntryID, s *domain.Sample) error {
		if !enqueueWithPolicy(q, id, s, pol, obs) {
			return fmt.Errorf("queue rejected replayed entry %d", id)
		}
		replayed++
		return nil
	})
	if err != nil {
		return err
	}
	if replayed > 0 {
		obs.LogInfo("wal_replayed", ports.Field{Key: "entries", Value: replayed})
	}
	return nil
}

func waitForWALCapacity(wal ports.WAL, pol ports.Policy, obs ports.Observability) bool {
	if pol.MaxWALSizeBytes <= 0 {
		return true
	}
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 100 * time.Millisecond
	}

	for {
		stats := wal.Stats()
		if stats.SizeBytes < pol.MaxWALSizeBytes {
			return true
		}

		switch pol.OnWALFull {
		case "block":
			time.Sleep(sleep)
		case "drop":
			obs.LogError("wal_full_drop", fmt.Errorf("size=%d limit=%d", stats.SizeBytes, pol.MaxWALSizeBytes))
			return false
		default:
			obs.LogError("wal_policy_invalid", fmt.Errorf("policy=%s", pol.OnWALFull))
			return false
		}
	}
}

func enqueueWithPolicy(q ports.SampleQueue, id ports.WALEntryID, s *domain.Sample, pol ports.Policy, obs ports.Observability) bool {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 100 * time.Millisecond
	}

	for {
		if ok := q.Enqueue(id, s); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			time.Sleep(sleep)
		case "drop":
			obs.LogError("queue_full_drop", fmt.Errorf("queue at capacity %d", pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
