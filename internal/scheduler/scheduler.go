// Package scheduler runs the loop that drives the autobatcher: peek the
// queue, plan a batch, execute it, ack, advance the checkpoint, and repeat.
//
// Grounded on the teacher indexer's internal/indexer.Run pipeline: same
// run-until-context-cancelled shape with structured zap logging at each
// stage, generalized from a one-shot Mongo-to-OpenSearch reindex pass to
// a continuously polling scheduler loop over an arbitrary TaskStore.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sudarshan/search-indexer/internal/batch"
	"github.com/sudarshan/search-indexer/internal/checkpoint"
	"github.com/sudarshan/search-indexer/internal/executor"
	"github.com/sudarshan/search-indexer/internal/metrics"
	"github.com/sudarshan/search-indexer/internal/queue"
	"github.com/sudarshan/search-indexer/internal/task"
)

// Scheduler owns one queue/executor pair and drives batches across it
// until its context is cancelled.
type Scheduler struct {
	store      queue.TaskStore
	exec       executor.Executor
	checkpoint *checkpoint.Store
	metrics    *metrics.Metrics
	log        *zap.Logger

	prefixSize   int
	pollInterval time.Duration
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithPollInterval overrides the delay between polls that find an empty
// queue. The default is 500ms.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.pollInterval = d }
}

// New builds a Scheduler. prefixSize bounds how many tasks a single Peek
// may return, which in turn bounds how large one batch can grow.
func New(store queue.TaskStore, exec executor.Executor, cp *checkpoint.Store, m *metrics.Metrics, log *zap.Logger, prefixSize int, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:        store,
		exec:         exec,
		checkpoint:   cp,
		metrics:      m,
		log:          log,
		prefixSize:   prefixSize,
		pollInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run loops until ctx is cancelled, planning and executing one batch per
// non-empty poll. It returns the context's error on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		advanced, err := s.Tick(ctx)
		if err != nil {
			s.log.Error("scheduler tick failed", zap.Error(err))
		}
		if !advanced {
			select {
			case <-time.After(s.pollInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Tick runs exactly one peek-plan-execute-ack cycle. It reports whether a
// batch was found and executed, so Run can skip the poll delay when there
// is more work immediately available.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	tasks, err := s.store.Peek(ctx, s.prefixSize)
	if err != nil {
		return false, err
	}
	s.metrics.QueueDepth.Set(float64(len(tasks)))

	b := batch.Scan(tasks)
	if b == nil {
		return false, nil
	}

	ids := absorbedIDs(*b)
	start := time.Now()
	execErr := s.exec.Execute(ctx, *b)
	duration := time.Since(start)

	s.metrics.RecordBatch(b.Variant.String(), len(ids), duration, execErr)
	if execErr != nil {
		s.log.Error("batch execution failed",
			zap.String("variant", b.Variant.String()),
			zap.Int("task_count", len(ids)),
			zap.Error(execErr),
		)
		return true, execErr
	}

	if err := s.store.Ack(ctx, ids); err != nil {
		return true, err
	}

	if len(ids) > 0 {
		if err := s.checkpoint.Advance(maxID(ids)); err != nil {
			s.log.Warn("checkpoint advance failed", zap.Error(err))
		} else {
			s.metrics.CheckpointAdvances.Inc()
		}
	}

	s.log.Info("batch executed",
		zap.String("variant", b.Variant.String()),
		zap.Int("task_count", len(ids)),
		zap.Duration("duration", duration),
	)
	return true, nil
}

// absorbedIDs flattens every id field a Batch might carry, for acking and
// logging. Two-sequence variants are concatenated field by field (see
// mergeOrdered), not in the order Scan saw the tasks. Exactly one of these
// groupings is populated for any given Variant.
func absorbedIDs(b batch.Batch) []task.ID {
	switch b.Variant {
	case batch.IndexCreation, batch.IndexUpdate, batch.IndexRename, batch.IndexSwap:
		return []task.ID{b.ID}
	case batch.IndexDeletion, batch.DocumentClear:
		return b.IDs
	case batch.DocumentAddition:
		return b.AdditionIDs
	case batch.DocumentUpdate:
		return b.UpdateIDs
	case batch.DocumentDeletion:
		return b.DeletionIDs
	case batch.Settings:
		return b.SettingsIDs
	case batch.ClearAndSettings:
		return mergeOrdered(b.SettingsIDs, b.Other)
	case batch.SettingsAndDocumentAddition:
		return mergeOrdered(b.AdditionIDs, b.SettingsIDs)
	case batch.SettingsAndDocumentUpdate:
		return mergeOrdered(b.UpdateIDs, b.SettingsIDs)
	default:
		return nil
	}
}

// mergeOrdered is a stand-in for the interleaved order two-sequence
// batches were actually built in; the scheduler only needs the full set
// for acking, not the precise interleaving batch.Scan produced.
func mergeOrdered(a, b []task.ID) []task.ID {
	out := make([]task.ID, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// maxID returns the largest id in ids, used to advance the checkpoint:
// task ids increase monotonically with enqueue order, so the maximum of
// an absorbed set is always its most recently enqueued member regardless
// of the order the batch happened to merge them in.
func maxID(ids []task.ID) task.ID {
	max := ids[0]
	for _, id := range ids[1:] {
		if id > max {
			max = id
		}
	}
	return max
}
