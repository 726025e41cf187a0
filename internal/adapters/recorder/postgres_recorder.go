// Package recorder keeps a local retention copy of forwarded telemetry in
// Postgres (or Timescale) so operators can query history even when the
// hub side is unavailable. Retention is best-effort; failures never block
// delivery to the hub.
package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AshyBoy91/jetsonazure/internal/domain"
)

type PostgresRecorder struct {
	db    *sql.DB
	table string
}

func NewPostgresRecorder(db *sql.DB, table string) *PostgresRecorder {
	if table == "" {
		table = "telemetry"
	}
	return &PostgresRecorder{db: db, table: table}
}

func (r *PostgresRecorder) Name() string { return "postgres" }

// Record inserts the batch in one statement. Replayed samples are
// deduplicated by (device_id, ts).
func (r *PostgresRecorder) Record(samples []*domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(r.table)
	b.WriteString(" (device_id, ts, cpu_percent, memory_percent, disk_percent, temperatures) VALUES ")

	args := make([]any, 0, len(samples)*6)
	for i, s := range samples {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5, len(args)+6))

		temps, err := json.Marshal(s.Temperatures)
		if err != nil {
			return fmt.Errorf("marshal temperatures: %w", err)
		}

		// nil pointers insert as NULL, keeping "not measured" distinct
		// from a measured zero in the retained history
		args = append(args,
			s.DeviceID,
			s.Timestamp,
			s.CPUPercent,
			s.MemoryPercent,
			s.DiskPercent,
			temps,
		)
	}

	b.WriteString(" ON CONFLICT (device_id, ts) DO NOTHING")

	_, err := r.db.Exec(b.String(), args...)
	return err
}
