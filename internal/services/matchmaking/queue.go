package matchmaking

import (
	"sync"

	"github.com/mcoot/quizmatch/internal/handle"
	"github.com/mcoot/quizmatch/internal/metrics"
	"github.com/mcoot/quizmatch/internal/model"
)

// Queue is the ordered waiting area for authenticated players
// Every operation is a single critical section under one lock
// Held members keep their place but are invisible to Take until released
type Queue struct {
	mu      sync.Mutex
	members []*handle.Handle
	held    map[*handle.Handle]bool
	metrics *metrics.Metrics
}

// NewQueue creates an empty Queue
func NewQueue(m *metrics.Metrics) *Queue {
	return &Queue{
		held:    make(map[*handle.Handle]bool),
		metrics: m,
	}
}

// Push appends h and returns its 1-based position
func (q *Queue) Push(h *handle.Handle) (int, error) {
	position, _, err := q.push(h, false)
	return position, err
}

// PushHeld appends h without making it matchable, returning its position and the queue size
func (q *Queue) PushHeld(h *handle.Handle) (int, int, error) {
	return q.push(h, true)
}

// Release makes a held member matchable, reporting whether it is still queued
func (q *Queue) Release(h *handle.Handle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.held, h)
	return q.indexOf(h) >= 0
}

func (q *Queue) push(h *handle.Handle, held bool) (int, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexOf(h) >= 0 {
		return 0, 0, model.ErrAlreadyQueued
	}
	q.members = append(q.members, h)
	if held {
		q.held[h] = true
	}
	q.updateGauge()
	return len(q.members), len(q.members), nil
}

// Remove deletes h, reporting whether it was queued
func (q *Queue) Remove(h *handle.Handle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(h)
	if i < 0 {
		return false
	}
	q.members = append(q.members[:i], q.members[i+1:]...)
	delete(q.held, h)
	q.updateGauge()
	return true
}

// Take removes and returns the group the policy selects, or nil
// The policy sees matchable members only, in queue order
func (q *Queue) Take(policy Policy, size int) []*handle.Handle {
	q.mu.Lock()
	defer q.mu.Unlock()

	candidates := make([]int, 0, len(q.members))
	ranks := make([]int, 0, len(q.members))
	for i, h := range q.members {
		if q.held[h] {
			continue
		}
		candidates = append(candidates, i)
		ranks = append(ranks, h.Rank())
	}

	indices := policy.Select(ranks, size)
	if len(indices) != size {
		return nil
	}

	group := make([]*handle.Handle, 0, size)
	selected := make(map[int]bool, size)
	for _, i := range indices {
		member := candidates[i]
		group = append(group, q.members[member])
		selected[member] = true
	}

	remaining := make([]*handle.Handle, 0, len(q.members)-size)
	for i, h := range q.members {
		if !selected[i] {
			remaining = append(remaining, h)
		}
	}
	q.members = remaining
	q.updateGauge()
	return group
}

// Len returns the number of queued players
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.members)
}

// Position returns the 1-based position of h, or 0 if it is not queued
func (q *Queue) Position(h *handle.Handle) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexOf(h) + 1
}

// Snapshot returns a copy of the queue in order
func (q *Queue) Snapshot() []*handle.Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*handle.Handle, len(q.members))
	copy(out, q.members)
	return out
}

func (q *Queue) indexOf(h *handle.Handle) int {
	for i, m := range q.members {
		if m == h {
			return i
		}
	}
	return -1
}

func (q *Queue) updateGauge() {
	q.metrics.QueueLength.Set(float64(len(q.members)))
}
