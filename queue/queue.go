package queue

import (
	"sync"
	"sync/atomic"

	"signalflow/models"
)

// Queue is the process-wide FIFO between admission and the single
// drainer. The drainer polls; an empty Pop simply reports false and
// the caller sleeps briefly.
type Queue struct {
	mu        sync.Mutex
	items     []models.Candidate
	head      int
	processed int64
}

func New() *Queue {
	return &Queue{}
}

// Push appends a candidate. Never blocks.
func (q *Queue) Push(c models.Candidate) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
}

// Pop removes and returns the oldest candidate. Popped slots are
// zeroed and the backing array is compacted so drained candidates do
// not stay reachable.
func (q *Queue) Pop() (models.Candidate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.items) {
		return models.Candidate{}, false
	}
	c := q.items[q.head]
	q.items[q.head] = models.Candidate{}
	q.head++
	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= 64 && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return c, true
}

// Len reports the current depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// MarkProcessed bumps the lifetime processed counter exposed on the
// status endpoint.
func (q *Queue) MarkProcessed() {
	atomic.AddInt64(&q.processed, 1)
}

// Processed returns the lifetime processed counter.
func (q *Queue) Processed() int64 {
	return atomic.LoadInt64(&q.processed)
}
