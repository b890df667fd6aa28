package backfill_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sudarshan/search-indexer/internal/backfill"
	"github.com/sudarshan/search-indexer/internal/cli"
	"github.com/sudarshan/search-indexer/internal/mongodb"
	"github.com/sudarshan/search-indexer/internal/task"
)

type fakeMetaWriter struct {
	mu    sync.Mutex
	calls []mongodb.TaskMeta
}

func (f *fakeMetaWriter) PutMeta(_ context.Context, meta mongodb.TaskMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, meta)
	return nil
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []task.Task
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, tasks ...task.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, tasks...)
	return nil
}

func TestRunSeedsMetadataAndTasksForEveryDoc(t *testing.T) {
	meta := &fakeMetaWriter{}
	enq := &fakeEnqueuer{}
	b := backfill.New(meta, enq, cli.New(true), 4, 0, 0)

	docs := make(chan backfill.Source, 3)
	docs <- backfill.Source{Index: "products", DocID: "p1", Payload: map[string]interface{}{"name": "a"}}
	docs <- backfill.Source{Index: "products", DocID: "p2", Payload: map[string]interface{}{"name": "b"}}
	docs <- backfill.Source{Index: "products", DocID: "p3", Payload: map[string]interface{}{"name": "c"}}
	close(docs)

	require.NoError(t, b.Run(context.Background(), docs))
	require.Len(t, meta.calls, 3)
	require.Len(t, enq.tasks, 3)
	for _, tk := range enq.tasks {
		require.Equal(t, task.DocumentAddition, tk.Kind)
	}
}

func TestRunStartsIDsAtStartID(t *testing.T) {
	meta := &fakeMetaWriter{}
	enq := &fakeEnqueuer{}
	b := backfill.New(meta, enq, cli.New(true), 1, 100, 0)

	docs := make(chan backfill.Source, 1)
	docs <- backfill.Source{Index: "products", DocID: "p1"}
	close(docs)

	require.NoError(t, b.Run(context.Background(), docs))
	require.Equal(t, task.ID(100), enq.tasks[0].ID)
}
