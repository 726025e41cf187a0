// Package analytics holds the local aggregation pipeline: a bounded rolling
// buffer of telemetry samples and the derived views computed over it.
// Every operation is total over its input; failure conditions surface as
// result values, never as panics to the caller.
package analytics

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/AshyBoy91/jetsonazure/internal/domain"
)

const (
	DefaultBufferSize = 100
	historySize       = 50

	insightWindow   = 10
	healthWindow    = 10
	stabilityWindow = 20

	// anomaly detection needs a minimally filled buffer to be meaningful
	anomalyMinSamples = 10
)

const (
	TrendIncreasing       = "increasing"
	TrendDecreasing       = "decreasing"
	TrendStable           = "stable"
	StatusInsufficientData = "insufficient_data"

	StatusExcellent      = "excellent"
	StatusGood           = "good"
	StatusNeedsAttention = "needs_attention"
	StatusUnknown        = "unknown"

	StatusStable   = "stable"
	StatusUnstable = "unstable"
)

// Insights is the real-time view over the most recent samples.
type Insights struct {
	AvgCPU         float64 `json:"avg_cpu"`
	AvgMemory      float64 `json:"avg_memory"`
	AvgDisk        float64 `json:"avg_disk"`
	MaxTemperature float64 `json:"max_temperature"`
	Trend          string  `json:"trend"`
}

// Health is the combined CPU/memory headroom score.
type Health struct {
	Score  float64 `json:"score"`
	Status string  `json:"status"`
}

// Anomaly flags a sample whose CPU% falls outside mean ± 2σ of the buffer.
type Anomaly struct {
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	Value         float64   `json:"value"`
	ExpectedRange string    `json:"expected_range"`
}

// Stability summarizes CPU variance over the recent window.
type Stability struct {
	StabilityScore float64 `json:"stability_score,omitempty"`
	Status         string  `json:"status"`
	CPUVariance    float64 `json:"cpu_variance,omitempty"`
}

type MetricSummary struct {
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Current float64 `json:"current"`
}

type SystemSummary struct {
	CPU    MetricSummary `json:"cpu"`
	Memory MetricSummary `json:"memory"`
}

// Report is the comprehensive analytics result. It is an explicit
// success-or-error value: when Err is non-empty the other fields are zero.
type Report struct {
	Timestamp  time.Time     `json:"timestamp,omitempty"`
	DataPoints int           `json:"data_points,omitempty"`
	System     SystemSummary `json:"system_summary,omitempty"`
	Health     Health        `json:"health_score,omitempty"`
	Err        string        `json:"error,omitempty"`
}

// Failed reports whether the result carries an error description.
func (r Report) Failed() bool { return r.Err != "" }

// Aggregator owns the rolling sample buffer exclusively. One producer
// appends via Ingest; query handlers may read concurrently. All access
// goes through the mutex so readers always observe a consistent snapshot.
type Aggregator struct {
	mu      sync.Mutex
	buf     *Ring[domain.Sample]
	history *Ring[Report]
	now     func() time.Time
}

func New(capacity int) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Aggregator{
		buf:     NewRing[domain.Sample](capacity),
		history: NewRing[Report](historySize),
		now:     time.Now,
	}
}

// Ingest appends the sample, evicting the oldest entry beyond capacity.
// Field ranges are not validated; missing metrics stay missing and the
// consumers apply their documented substitution rules.
func (a *Aggregator) Ingest(s domain.Sample) {
	a.mu.Lock()
	a.buf.Append(s)
	a.mu.Unlock()
}

func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Len()
}

// Recent returns up to n of the newest samples, oldest-first.
func (a *Aggregator) Recent(n int) []domain.Sample {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Last(n)
}

// History returns the retained comprehensive reports, oldest-first.
func (a *Aggregator) History() []Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Snapshot()
}

// QuickInsights computes averages over the last 10 samples. Unlike the
// other aggregates, the averages here skip missing metrics entirely
// instead of zero-filling them; this per-operation distinction is
// deliberate and load-bearing for downstream consumers.
func (a *Aggregator) QuickInsights() (ins Insights) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			ins = Insights{Trend: StatusInsufficientData}
		}
	}()

	win := a.buf.Last(insightWindow)
	return Insights{
		AvgCPU:         meanPresent(win, func(s domain.Sample) *float64 { return s.CPUPercent }),
		AvgMemory:      meanPresent(win, func(s domain.Sample) *float64 { return s.MemoryPercent }),
		AvgDisk:        meanPresent(win, func(s domain.Sample) *float64 { return s.DiskPercent }),
		MaxTemperature: maxTemperature(win),
		Trend:          cpuTrend(win),
	}
}

// HealthScore scores CPU and memory headroom over the last 10 samples.
func (a *Aggregator) HealthScore() Health {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.healthLocked()
}

func (a *Aggregator) healthLocked() Health {
	if a.buf.Len() == 0 {
		return Health{Score: 0, Status: StatusUnknown}
	}

	win := a.buf.Last(healthWindow)
	cpuScore := math.Max(0, 100-meanOf(win, domain.Sample.CPU))
	memScore := math.Max(0, 100-meanOf(win, domain.Sample.Memory))
	overall := round2((cpuScore + memScore) / 2)

	status := StatusNeedsAttention
	switch {
	case overall >= 80:
		status = StatusExcellent
	case overall >= 60:
		status = StatusGood
	}
	return Health{Score: overall, Status: status}
}

// DetectAnomalies flags samples whose CPU% deviates from the buffer mean
// by more than two sample standard deviations. Requires at least 10
// samples; a constant series (σ = 0) produces no flags.
func (a *Aggregator) DetectAnomalies() (out []Anomaly) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			out = nil
		}
	}()

	if a.buf.Len() < anomalyMinSamples {
		return nil
	}

	all := a.buf.Snapshot()
	values := make([]float64, len(all))
	for i, s := range all {
		values[i] = s.CPU()
	}

	m := mean(values)
	sd := sampleStdev(values)
	if sd <= 0 {
		return nil
	}

	expected := fmt.Sprintf("%.1f - %.1f", m-2*sd, m+2*sd)
	for i, v := range values {
		if math.Abs(v-m) > 2*sd {
			out = append(out, Anomaly{
				Type:          "cpu_anomaly",
				Timestamp:     all[i].Timestamp,
				Value:         v,
				ExpectedRange: expected,
			})
		}
	}
	return out
}

// StabilityAnalysis computes CPU variance over the last 20 samples.
func (a *Aggregator) StabilityAnalysis() (st Stability) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			st = Stability{Status: StatusInsufficientData}
		}
	}()

	win := a.buf.Last(stabilityWindow)
	if len(win) < 3 {
		return Stability{Status: StatusInsufficientData}
	}

	values := make([]float64, len(win))
	for i, s := range win {
		values[i] = s.CPU()
	}
	variance := sampleVariance(values)
	score := math.Max(0, 100-variance)

	status := StatusUnstable
	if score > 80 {
		status = StatusStable
	}
	return Stability{
		StabilityScore: round2(score),
		Status:         status,
		CPUVariance:    round2(variance),
	}
}

// ComprehensiveReport bundles the full system summary and health score.
// Successful reports are retained in the bounded history ring. The result
// is error-shaped on an empty buffer or an internal computation failure.
func (a *Aggregator) ComprehensiveReport() (rep Report) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			rep = Report{Err: fmt.Sprintf("analytics generation failed: %v", r)}
		}
	}()

	if a.buf.Len() == 0 {
		return Report{Err: "no telemetry data available"}
	}

	all := a.buf.Snapshot()
	rep = Report{
		Timestamp:  a.now().UTC(),
		DataPoints: len(all),
		System: SystemSummary{
			CPU:    summarize(all, domain.Sample.CPU),
			Memory: summarize(all, domain.Sample.Memory),
		},
		Health: a.healthLocked(),
	}
	a.history.Append(rep)
	return rep
}

func summarize(samples []domain.Sample, metric func(domain.Sample) float64) MetricSummary {
	if len(samples) == 0 {
		return MetricSummary{}
	}
	var sum, max float64
	for _, s := range samples {
		v := metric(s)
		sum += v
		if v > max {
			max = v
		}
	}
	return MetricSummary{
		Average: sum / float64(len(samples)),
		Max:     max,
		Current: metric(samples[len(samples)-1]),
	}
}

func meanOf(samples []domain.Sample, metric func(domain.Sample) float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += metric(s)
	}
	return sum / float64(len(samples))
}

// meanPresent averages only the samples where the metric was measured;
// missing values are excluded from numerator and denominator.
func meanPresent(samples []domain.Sample, metric func(domain.Sample) *float64) float64 {
	var sum float64
	var n int
	for _, s := range samples {
		if v := metric(s); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func maxTemperature(samples []domain.Sample) float64 {
	var max float64
	for _, s := range samples {
		for _, t := range s.Temperatures {
			if t > max {
				max = t
			}
		}
	}
	return max
}

// cpuTrend classifies the last three CPU values as strictly increasing,
// strictly decreasing, or stable.
func cpuTrend(win []domain.Sample) string {
	if len(win) < 3 {
		return StatusInsufficientData
	}
	last := win[len(win)-3:]
	a, b, c := last[0].CPU(), last[1].CPU(), last[2].CPU()
	switch {
	case a < b && b < c:
		return TrendIncreasing
	case a > b && b > c:
		return TrendDecreasing
	default:
		return TrendStable
	}
}
