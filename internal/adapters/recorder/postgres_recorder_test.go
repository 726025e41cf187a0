package recorder

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/AshyBoy91/jetsonazure/internal/domain"
)

func TestPostgresRecorderRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rec := NewPostgresRecorder(db, "telemetry")
	ts := time.Now()

	samples := []*domain.Sample{
		{
			DeviceID:      "jetson-nano-001",
			Timestamp:     ts,
			CPUPercent:    domain.Float(42.5),
			MemoryPercent: domain.Float(61.0),
			Temperatures:  map[string]float64{"thermal_zone0": 41.5},
		},
	}

	expectedQuery := regexp.QuoteMeta("INSERT INTO telemetry (device_id, ts, cpu_percent, memory_percent, disk_percent, temperatures) VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (device_id, ts) DO NOTHING")
	mock.ExpectExec(expectedQuery).
		WithArgs("jetson-nano-001", ts, 42.5, 61.0, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := rec.Record(samples); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRecorderEmptyBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rec := NewPostgresRecorder(db, "telemetry")
	if err := rec.Record(nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRecorderDefaultTable(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	rec := NewPostgresRecorder(db, "")
	if rec.table != "telemetry" {
		t.Fatalf("expected default table telemetry, got %s", rec.table)
	}
	if rec.Name() != "postgres" {
		t.Fatalf("unexpected recorder name %s", rec.Name())
	}
}
