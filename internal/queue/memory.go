package queue

import (
	"context"
	"sync"

	"github.com/sudarshan/search-indexer/internal/task"
)

// Memory is an in-process, slice-backed TaskStore. It is the teacher's
// internal/mongodb.StreamDocuments channel-free cousin: no network, no
// persistence, just FIFO ordering guarded by a mutex — used by tests and
// the single-process CLI mode.
type Memory struct {
	mu    sync.Mutex
	tasks []task.Task
}

// NewMemory creates an empty in-memory task store.
func NewMemory() *Memory {
	return &Memory{}
}

// Enqueue appends tasks to the tail of the queue. It matches Redis's and
// Kafka's producer-side signature so callers like backfill can target any
// backend through one interface.
func (m *Memory) Enqueue(_ context.Context, tasks ...task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, tasks...)
	return nil
}

// Peek implements TaskStore.
func (m *Memory) Peek(_ context.Context, max int) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if max <= 0 || max > len(m.tasks) {
		max = len(m.tasks)
	}
	out := make([]task.Task, max)
	copy(out, m.tasks[:max])
	return out, nil
}

// Ack implements TaskStore. It expects ids to be a prefix of the queue's
// current head and trims exactly that many tasks.
func (m *Memory) Ack(_ context.Context, ids []task.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(ids)
	if n > len(m.tasks) {
		n = len(m.tasks)
	}
	m.tasks = m.tasks[n:]
	return nil
}

// Len reports how many tasks are currently enqueued.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
