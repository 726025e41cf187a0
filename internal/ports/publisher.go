package ports

import "github.com/AshyBoy91/jetsonazure/internal/domain"

// Publisher forwards sample batches to the cloud message hub.
type Publisher interface {
	PublishBatch(samples []*domain.Sample) error
	Name() string
}
