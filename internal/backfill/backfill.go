// Package backfill seeds the task queue and metadata store from an
// external document source — the one-time migration step that gets an
// existing index's worth of documents into the scheduler's world before
// it starts draining the queue continuously.
//
// Adapted from the teacher indexer's internal/indexer.Run pipeline: same
// worker-pool-plus-atomic-live-stats shape, generalized from a fixed
// four-stage MongoDB→embed→OpenSearch→MongoDB pipeline to a two-stage
// fan-out over an arbitrary document source, since this domain no longer
// computes embeddings or indexes directly — it only needs to get tasks
// onto the queue, the scheduler does the rest.
package backfill

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sudarshan/search-indexer/internal/cli"
	"github.com/sudarshan/search-indexer/internal/mongodb"
	"github.com/sudarshan/search-indexer/internal/queue"
	"github.com/sudarshan/search-indexer/internal/task"
)

// Source is one document to seed: the index it belongs to, its id in
// that index, and the payload a DocumentAddition task will write.
type Source struct {
	Index   string                 `json:"index"`
	DocID   string                 `json:"doc_id"`
	Payload map[string]interface{} `json:"payload"`
}

// Enqueuer is the producer-side operation every TaskStore backend
// exposes. It is deliberately narrower than queue.TaskStore (no Peek/Ack)
// so the backfill can't accidentally drain what it just seeded.
type Enqueuer interface {
	Enqueue(ctx context.Context, tasks ...task.Task) error
}

// MetaWriter is the subset of *mongodb.Client the backfill writes to.
type MetaWriter interface {
	PutMeta(ctx context.Context, meta mongodb.TaskMeta) error
}

// Backfill drives concurrent workers that record metadata and enqueue a
// DocumentAddition task for each Source it receives.
type Backfill struct {
	meta    MetaWriter
	queue   Enqueuer
	cli     *cli.CLI
	workers int
	total   int64

	nextID atomic.Uint64
}

// New builds a Backfill with workers concurrent metadata-write workers.
// ids handed to seeded tasks start at startID, which the caller should
// set past any id already in use (e.g. one past the checkpoint's last
// acked id) so seeded tasks never collide with live traffic. total is the
// expected document count if the caller knows it ahead of time (e.g. from
// a source collection count); pass 0 when streaming from an unsized
// source such as stdin, and Run falls back to periodic status lines
// instead of a percentage/ETA bar.
func New(meta MetaWriter, q Enqueuer, c *cli.CLI, workers int, startID task.ID, total int64) *Backfill {
	b := &Backfill{meta: meta, queue: q, cli: c, workers: workers, total: total}
	b.nextID.Store(uint64(startID))
	return b
}

// Run drains docs, writing metadata and enqueuing a task for each, using
// workers concurrent workers. It reports live throughput via the CLI
// reporter the way the teacher's pipeline reported live stage counts.
func (b *Backfill) Run(ctx context.Context, docs <-chan Source) error {
	start := time.Now()
	var (
		succeeded int64
		failed    int64
		inFlight  int64
	)

	b.cli.StartPhase("backfill")

	statusCtx, cancelStatus := context.WithCancel(ctx)
	defer cancelStatus()
	if b.total > 0 {
		progress := cli.NewProgress(b.total)
		go func() {
			ticker := time.NewTicker(200 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-statusCtx.Done():
					progress.Set(atomic.LoadInt64(&succeeded) + atomic.LoadInt64(&failed))
					b.cli.Progress(progress)
					b.cli.ProgressDone()
					return
				case <-ticker.C:
					progress.Set(atomic.LoadInt64(&succeeded) + atomic.LoadInt64(&failed))
					b.cli.Progress(progress)
				}
			}
		}()
	} else {
		go func() {
			ticker := time.NewTicker(200 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-statusCtx.Done():
					return
				case <-ticker.C:
					b.cli.Info(fmt.Sprintf("seeded=%d failed=%d in_flight=%d",
						atomic.LoadInt64(&succeeded), atomic.LoadInt64(&failed), atomic.LoadInt64(&inFlight)))
				}
			}
		}()
	}

	var wg sync.WaitGroup
	workers := b.workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range docs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddInt64(&inFlight, 1)
				err := b.seedOne(ctx, doc)
				atomic.AddInt64(&inFlight, -1)

				if err != nil {
					atomic.AddInt64(&failed, 1)
					b.cli.Warning(fmt.Sprintf("backfill: %v", err))
					continue
				}
				atomic.AddInt64(&succeeded, 1)
			}
		}()
	}
	wg.Wait()
	cancelStatus()

	b.cli.EndPhase()
	b.cli.Summary("backfill", map[string]string{
		"seeded":   fmt.Sprintf("%d", succeeded),
		"failed":   fmt.Sprintf("%d", failed),
		"duration": time.Since(start).String(),
	})

	if failed > 0 {
		return fmt.Errorf("backfill: %d documents failed to seed", failed)
	}
	return nil
}

func (b *Backfill) seedOne(ctx context.Context, doc Source) error {
	id := task.ID(b.nextID.Add(1) - 1)

	if err := b.meta.PutMeta(ctx, mongodb.TaskMeta{
		TaskID:  id,
		Index:   doc.Index,
		DocID:   doc.DocID,
		Payload: doc.Payload,
	}); err != nil {
		return fmt.Errorf("put meta for %s/%s: %w", doc.Index, doc.DocID, err)
	}

	return b.queue.Enqueue(ctx, task.Task{ID: id, Kind: task.DocumentAddition})
}
