// Package alerts holds the mutable alert thresholds shared between the
// collect loop (evaluation) and the configure_alerts method (updates).
package alerts

import (
	"fmt"
	"sync"

	"github.com/AshyBoy91/jetsonazure/internal/domain"
)

// Default thresholds applied until the hub overrides them.
const (
	DefaultCPUPercent    = 80.0
	DefaultMemoryPercent = 85.0
	DefaultTemperature   = 70.0
	DefaultDiskPercent   = 90.0
)

// Alert is a single threshold violation observed in one sample.
type Alert struct {
	Type      string  `json:"type"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
}

// Thresholds is safe for concurrent use.
type Thresholds struct {
	mu     sync.Mutex
	limits map[string]float64
}

func NewThresholds() *Thresholds {
	return &Thresholds{limits: map[string]float64{
		"cpu_percent":    DefaultCPUPercent,
		"memory_percent": DefaultMemoryPercent,
		"temperature":    DefaultTemperature,
		"disk_percent":   DefaultDiskPercent,
	}}
}

// Merge overlays the given limits onto the current set. Unknown keys are
// accepted; evaluation only consults the keys it knows about.
func (t *Thresholds) Merge(overrides map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range overrides {
		t.limits[k] = v
	}
}

// Snapshot returns a copy of the current limits.
func (t *Thresholds) Snapshot() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.limits))
	for k, v := range t.limits {
		out[k] = v
	}
	return out
}

// Evaluate checks one sample against the current limits. Missing metrics
// never alert.
func (t *Thresholds) Evaluate(s *domain.Sample) []Alert {
	limits := t.Snapshot()
	var out []Alert

	if s.CPUPercent != nil {
		if lim, ok := limits["cpu_percent"]; ok && *s.CPUPercent > lim {
			out = append(out, violation("cpu_percent", *s.CPUPercent, lim))
		}
	}
	if s.MemoryPercent != nil {
		if lim, ok := limits["memory_percent"]; ok && *s.MemoryPercent > lim {
			out = append(out, violation("memory_percent", *s.MemoryPercent, lim))
		}
	}
	if s.DiskPercent != nil {
		if lim, ok := limits["disk_percent"]; ok && *s.DiskPercent > lim {
			out = append(out, violation("disk_percent", *s.DiskPercent, lim))
		}
	}
	if lim, ok := limits["temperature"]; ok {
		for zone, temp := range s.Temperatures {
			if temp > lim {
				a := violation("temperature", temp, lim)
				a.Message = fmt.Sprintf("%s exceeded threshold: %.1f > %.1f", zone, temp, lim)
				out = append(out, a)
			}
		}
	}
	return out
}

func violation(metric string, value, limit float64) Alert {
	return Alert{
		Type:      "threshold_exceeded",
		Metric:    metric,
		Value:     value,
		Threshold: limit,
		Message:   fmt.Sprintf("%s exceeded threshold: %.1f > %.1f", metric, value, limit),
	}
}
