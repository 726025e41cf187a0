package queue

import (
	"sync"

	"github.com/AshyBoy91/jetsonazure/internal/domain"
	"github.com/AshyBoy91/jetsonazure/internal/ports"
)

// MemQueue is the bounded in-memory delivery queue between the collect
// loop and the hub publisher. FIFO; Enqueue reports false when full so the
// pipeline can apply its backpressure policy.
//
// Implemented as a fixed ring so steady-state operation allocates nothing.
type MemQueue struct {
	mu    sync.Mutex
	ring  []ports.QueuedSample
	head  int
	count int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{ring: make([]ports.QueuedSample, capacity)}
}

func (q *MemQueue) Enqueue(id ports.WALEntryID, s *domain.Sample) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.ring) {
		return false
	}
	tail := (q.head + q.count) % len(q.ring)
	q.ring[tail] = ports.QueuedSample{ID: id, Sample: s}
	q.count++
	return true
}

func (q *MemQueue) DequeueBatch(max int) []ports.QueuedSample {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	if max <= 0 || max > q.count {
		max = q.count
	}
	out := make([]ports.QueuedSample, max)
	for i := range out {
		out[i] = q.ring[q.head]
		q.ring[q.head] = ports.QueuedSample{}
		q.head = (q.head + 1) % len(q.ring)
	}
	q.count -= max
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

var _ ports.SampleQueue = (*MemQueue)(nil)
