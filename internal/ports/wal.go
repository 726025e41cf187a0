package ports

import "github.com/AshyBoy91/jetsonazure/internal/domain"

type WALEntryID uint64

// WAL is the store-and-forward journal for samples awaiting delivery to
// the hub. Entries stay replayable until committed.
type WAL interface {
	Append(s *domain.Sample) (WALEntryID, error)
	Iterate(from WALEntryID, fn func(id WALEntryID, s *domain.Sample) error) error
	Commit(upto WALEntryID) error
	Stats() WALStats
}

type WALStats struct {
	OldestUncommitted WALEntryID
	LatestAppended    WALEntryID
	SizeBytes         int64
}
