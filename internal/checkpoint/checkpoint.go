// Package checkpoint persists the scheduler's high-water-mark task id
// between runs. It is adapted from the teacher indexer's embedding cache:
// same gob-file-pair-under-a-directory shape, repurposed from caching
// computed embeddings to recording how far the scheduler has gotten.
//
// The checkpoint is not a correctness mechanism: the task store remains
// authoritative about what is still enqueued, and the scheduler's Peek/Ack
// cycle never consults it. Losing the checkpoint file resets the reported
// last acked id and the backfill's starting task id to zero.
package checkpoint

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sudarshan/search-indexer/internal/task"
)

// State is the persisted checkpoint record.
type State struct {
	LastAckedID task.ID
	UpdatedAt   time.Time
}

// Store manages the checkpoint file for a scheduler instance.
type Store struct {
	dir string
	mu  sync.RWMutex
	st  State
}

// New creates a checkpoint store rooted at dir, creating the directory if
// necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) filePath() string {
	return filepath.Join(s.dir, "checkpoint.gob")
}

// Load reads the last persisted checkpoint from disk. A missing file is not
// an error: it means the scheduler has never checkpointed, so it starts
// from the beginning of whatever the task store currently holds.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("checkpoint: open: %w", err)
	}
	defer f.Close()

	var st State
	if err := gob.NewDecoder(f).Decode(&st); err != nil {
		return State{}, fmt.Errorf("checkpoint: decode: %w", err)
	}
	s.st = st
	return st, nil
}

// Advance records id as the new high-water mark and persists it, provided
// id is actually newer than the last recorded mark.
func (s *Store) Advance(id task.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id <= s.st.LastAckedID {
		return nil
	}
	s.st = State{LastAckedID: id, UpdatedAt: time.Now()}

	tmp := s.filePath() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("checkpoint: create: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(s.st); err != nil {
		f.Close()
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("checkpoint: close: %w", err)
	}
	if err := os.Rename(tmp, s.filePath()); err != nil {
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

// LastAckedID returns the most recently persisted high-water mark.
func (s *Store) LastAckedID() task.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.LastAckedID
}
