package ports

import (
	"context"

	"github.com/AshyBoy91/jetsonazure/internal/domain"
)

// Collector produces one telemetry sample per collection tick.
type Collector interface {
	Collect(ctx context.Context) (domain.Sample, error)
}
