package alerts

import (
	"testing"

	"github.com/AshyBoy91/jetsonazure/internal/domain"
)

func TestEvaluateDefaults(t *testing.T) {
	th := NewThresholds()
	s := &domain.Sample{
		CPUPercent:    domain.Float(95),
		MemoryPercent: domain.Float(50),
		Temperatures:  map[string]float64{"thermal_zone0": 72.5, "thermal_zone1": 40},
	}

	got := th.Evaluate(s)
	if len(got) != 2 {
		t.Fatalf("expected 2 alerts, got %d: %+v", len(got), got)
	}
	for _, a := range got {
		if a.Type != "threshold_exceeded" {
			t.Errorf("unexpected alert type %q", a.Type)
		}
	}
}

func TestEvaluateMissingMetricsNeverAlert(t *testing.T) {
	th := NewThresholds()
	th.Merge(map[string]float64{"cpu_percent": 0, "memory_percent": 0, "disk_percent": 0})

	got := th.Evaluate(&domain.Sample{})
	if len(got) != 0 {
		t.Fatalf("expected no alerts for empty sample, got %+v", got)
	}
}

func TestMergeOverridesAndSnapshot(t *testing.T) {
	th := NewThresholds()
	th.Merge(map[string]float64{"cpu_percent": 50, "custom": 1})

	snap := th.Snapshot()
	if snap["cpu_percent"] != 50 {
		t.Fatalf("merge did not apply: %v", snap)
	}
	if snap["memory_percent"] != DefaultMemoryPercent {
		t.Fatalf("merge clobbered unrelated key: %v", snap)
	}

	// snapshot is a copy
	snap["cpu_percent"] = 999
	if th.Snapshot()["cpu_percent"] != 50 {
		t.Fatal("snapshot aliases internal map")
	}

	s := &domain.Sample{CPUPercent: domain.Float(60)}
	if got := th.Evaluate(s); len(got) != 1 {
		t.Fatalf("expected alert against merged limit, got %+v", got)
	}
}
