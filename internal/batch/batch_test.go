package batch_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/sudarshan/search-indexer/internal/batch"
	"github.com/sudarshan/search-indexer/internal/task"
)

// ids is a small helper to keep the table below readable.
func ids(vs ...uint64) []task.ID {
	if len(vs) == 0 {
		return nil
	}
	out := make([]task.ID, len(vs))
	for i, v := range vs {
		out[i] = task.ID(v)
	}
	return out
}

func kinds(ks ...task.Kind) []task.Kind { return ks }

func scan(t *testing.T, ks []task.Kind) *batch.Batch {
	t.Helper()
	tasks := make([]task.Task, len(ks))
	for i, k := range ks {
		tasks[i] = task.Task{ID: task.ID(i), Kind: k}
	}
	return batch.Scan(tasks)
}

func assertBatch(t *testing.T, got *batch.Batch, want batch.Batch) {
	t.Helper()
	require.NotNil(t, got, "expected a non-nil batch")
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("batch mismatch (-want +got):\n%s", diff)
	}
}

func TestScanEmpty(t *testing.T) {
	require.Nil(t, batch.Scan(nil))
}

func TestAutobatchSimpleOperationsTogether(t *testing.T) {
	assertBatch(t, scan(t, kinds(task.DocumentAddition)),
		batch.Batch{Variant: batch.DocumentAddition, AdditionIDs: ids(0)})
	assertBatch(t, scan(t, kinds(task.DocumentAddition, task.DocumentAddition, task.DocumentAddition)),
		batch.Batch{Variant: batch.DocumentAddition, AdditionIDs: ids(0, 1, 2)})

	assertBatch(t, scan(t, kinds(task.DocumentUpdate)),
		batch.Batch{Variant: batch.DocumentUpdate, UpdateIDs: ids(0)})
	assertBatch(t, scan(t, kinds(task.DocumentUpdate, task.DocumentUpdate, task.DocumentUpdate)),
		batch.Batch{Variant: batch.DocumentUpdate, UpdateIDs: ids(0, 1, 2)})

	assertBatch(t, scan(t, kinds(task.DocumentDeletion)),
		batch.Batch{Variant: batch.DocumentDeletion, DeletionIDs: ids(0)})
	assertBatch(t, scan(t, kinds(task.DocumentDeletion, task.DocumentDeletion, task.DocumentDeletion)),
		batch.Batch{Variant: batch.DocumentDeletion, DeletionIDs: ids(0, 1, 2)})

	assertBatch(t, scan(t, kinds(task.Settings)),
		batch.Batch{Variant: batch.Settings, SettingsIDs: ids(0)})
	assertBatch(t, scan(t, kinds(task.Settings, task.Settings, task.Settings)),
		batch.Batch{Variant: batch.Settings, SettingsIDs: ids(0, 1, 2)})
}

func TestSimpleDocumentOperationsDontAutobatchWithOther(t *testing.T) {
	cases := []struct {
		name string
		ks   []task.Kind
		want batch.Batch
	}{
		{"addition then update", kinds(task.DocumentAddition, task.DocumentUpdate), batch.Batch{Variant: batch.DocumentAddition, AdditionIDs: ids(0)}},
		{"addition then deletion", kinds(task.DocumentAddition, task.DocumentDeletion), batch.Batch{Variant: batch.DocumentAddition, AdditionIDs: ids(0)}},
		{"update then addition", kinds(task.DocumentUpdate, task.DocumentAddition), batch.Batch{Variant: batch.DocumentUpdate, UpdateIDs: ids(0)}},
		{"update then deletion", kinds(task.DocumentUpdate, task.DocumentDeletion), batch.Batch{Variant: batch.DocumentUpdate, UpdateIDs: ids(0)}},
		{"deletion then addition", kinds(task.DocumentDeletion, task.DocumentAddition), batch.Batch{Variant: batch.DocumentDeletion, DeletionIDs: ids(0)}},
		{"deletion then update", kinds(task.DocumentDeletion, task.DocumentUpdate), batch.Batch{Variant: batch.DocumentDeletion, DeletionIDs: ids(0)}},

		{"addition then index creation", kinds(task.DocumentAddition, task.IndexCreation), batch.Batch{Variant: batch.DocumentAddition, AdditionIDs: ids(0)}},
		{"update then index creation", kinds(task.DocumentUpdate, task.IndexCreation), batch.Batch{Variant: batch.DocumentUpdate, UpdateIDs: ids(0)}},
		{"deletion then index creation", kinds(task.DocumentDeletion, task.IndexCreation), batch.Batch{Variant: batch.DocumentDeletion, DeletionIDs: ids(0)}},

		{"addition then index update", kinds(task.DocumentAddition, task.IndexUpdate), batch.Batch{Variant: batch.DocumentAddition, AdditionIDs: ids(0)}},
		{"update then index update", kinds(task.DocumentUpdate, task.IndexUpdate), batch.Batch{Variant: batch.DocumentUpdate, UpdateIDs: ids(0)}},
		{"deletion then index update", kinds(task.DocumentDeletion, task.IndexUpdate), batch.Batch{Variant: batch.DocumentDeletion, DeletionIDs: ids(0)}},

		{"addition then index rename", kinds(task.DocumentAddition, task.IndexRename), batch.Batch{Variant: batch.DocumentAddition, AdditionIDs: ids(0)}},
		{"update then index rename", kinds(task.DocumentUpdate, task.IndexRename), batch.Batch{Variant: batch.DocumentUpdate, UpdateIDs: ids(0)}},
		{"deletion then index rename", kinds(task.DocumentDeletion, task.IndexRename), batch.Batch{Variant: batch.DocumentDeletion, DeletionIDs: ids(0)}},

		{"addition then index swap", kinds(task.DocumentAddition, task.IndexSwap), batch.Batch{Variant: batch.DocumentAddition, AdditionIDs: ids(0)}},
		{"update then index swap", kinds(task.DocumentUpdate, task.IndexSwap), batch.Batch{Variant: batch.DocumentUpdate, UpdateIDs: ids(0)}},
		{"deletion then index swap", kinds(task.DocumentDeletion, task.IndexSwap), batch.Batch{Variant: batch.DocumentDeletion, DeletionIDs: ids(0)}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assertBatch(t, scan(t, c.ks), c.want)
		})
	}
}

func TestDocumentAdditionBatchWithSettings(t *testing.T) {
	assertBatch(t, scan(t, kinds(task.DocumentAddition, task.Settings)),
		batch.Batch{Variant: batch.SettingsAndDocumentAddition, SettingsIDs: ids(1), AdditionIDs: ids(0)})
	assertBatch(t, scan(t, kinds(task.DocumentUpdate, task.Settings)),
		batch.Batch{Variant: batch.SettingsAndDocumentUpdate, SettingsIDs: ids(1), UpdateIDs: ids(0)})

	assertBatch(t, scan(t, kinds(task.DocumentAddition, task.DocumentAddition, task.Settings, task.Settings)),
		batch.Batch{Variant: batch.SettingsAndDocumentAddition, SettingsIDs: ids(2, 3), AdditionIDs: ids(0, 1)})

	assertBatch(t, scan(t, kinds(task.DocumentAddition, task.Settings, task.DocumentAddition, task.Settings)),
		batch.Batch{Variant: batch.SettingsAndDocumentAddition, SettingsIDs: ids(1, 3), AdditionIDs: ids(0, 2)})
	assertBatch(t, scan(t, kinds(task.DocumentUpdate, task.Settings, task.DocumentUpdate, task.Settings)),
		batch.Batch{Variant: batch.SettingsAndDocumentUpdate, SettingsIDs: ids(1, 3), UpdateIDs: ids(0, 2)})

	assertBatch(t, scan(t, kinds(task.DocumentAddition, task.Settings, task.DocumentUpdate)),
		batch.Batch{Variant: batch.SettingsAndDocumentAddition, SettingsIDs: ids(1), AdditionIDs: ids(0)})
	assertBatch(t, scan(t, kinds(task.DocumentUpdate, task.Settings, task.DocumentAddition)),
		batch.Batch{Variant: batch.SettingsAndDocumentUpdate, SettingsIDs: ids(1), UpdateIDs: ids(0)})
	assertBatch(t, scan(t, kinds(task.DocumentAddition, task.Settings, task.DocumentDeletion)),
		batch.Batch{Variant: batch.SettingsAndDocumentAddition, SettingsIDs: ids(1), AdditionIDs: ids(0)})
	assertBatch(t, scan(t, kinds(task.DocumentUpdate, task.Settings, task.DocumentDeletion)),
		batch.Batch{Variant: batch.SettingsAndDocumentUpdate, SettingsIDs: ids(1), UpdateIDs: ids(0)})

	for _, indexKind := range kinds(task.IndexCreation, task.IndexUpdate, task.IndexRename, task.IndexSwap) {
		assertBatch(t, scan(t, kinds(task.DocumentAddition, task.Settings, indexKind)),
			batch.Batch{Variant: batch.SettingsAndDocumentAddition, SettingsIDs: ids(1), AdditionIDs: ids(0)})
		assertBatch(t, scan(t, kinds(task.DocumentUpdate, task.Settings, indexKind)),
			batch.Batch{Variant: batch.SettingsAndDocumentUpdate, SettingsIDs: ids(1), UpdateIDs: ids(0)})
	}
}

func TestClearAndAdditions(t *testing.T) {
	assertBatch(t, scan(t, kinds(task.DocumentClear, task.DocumentAddition)),
		batch.Batch{Variant: batch.DocumentClear, IDs: ids(0)})
	assertBatch(t, scan(t, kinds(task.DocumentClear, task.DocumentUpdate)),
		batch.Batch{Variant: batch.DocumentClear, IDs: ids(0)})

	assertBatch(t, scan(t, kinds(task.DocumentAddition, task.DocumentAddition, task.DocumentClear)),
		batch.Batch{Variant: batch.DocumentClear, IDs: ids(0, 1, 2)})
	assertBatch(t, scan(t, kinds(task.DocumentUpdate, task.DocumentUpdate, task.DocumentClear)),
		batch.Batch{Variant: batch.DocumentClear, IDs: ids(0, 1, 2)})

	assertBatch(t, scan(t, kinds(task.DocumentAddition, task.DocumentAddition, task.DocumentClear, task.DocumentAddition)),
		batch.Batch{Variant: batch.DocumentClear, IDs: ids(0, 1, 2)})
	assertBatch(t, scan(t, kinds(task.DocumentUpdate, task.DocumentUpdate, task.DocumentClear, task.DocumentUpdate)),
		batch.Batch{Variant: batch.DocumentClear, IDs: ids(0, 1, 2)})

	assertBatch(t, scan(t, kinds(task.DocumentAddition, task.DocumentAddition, task.DocumentClear, task.DocumentClear, task.DocumentClear)),
		batch.Batch{Variant: batch.DocumentClear, IDs: ids(0, 1, 2, 3, 4)})
	assertBatch(t, scan(t, kinds(task.DocumentUpdate, task.DocumentUpdate, task.DocumentClear, task.DocumentClear, task.DocumentClear)),
		batch.Batch{Variant: batch.DocumentClear, IDs: ids(0, 1, 2, 3, 4)})
}

func TestClearAndAdditionsAndSettings(t *testing.T) {
	assertBatch(t, scan(t, kinds(task.DocumentClear, task.Settings)),
		batch.Batch{Variant: batch.DocumentClear, IDs: ids(0)})

	assertBatch(t, scan(t, kinds(task.Settings, task.DocumentClear, task.Settings)),
		batch.Batch{Variant: batch.ClearAndSettings, Other: ids(1), SettingsIDs: ids(0, 2)})
	assertBatch(t, scan(t, kinds(task.DocumentAddition, task.Settings, task.DocumentClear)),
		batch.Batch{Variant: batch.ClearAndSettings, Other: ids(0, 2), SettingsIDs: ids(1)})
	assertBatch(t, scan(t, kinds(task.DocumentUpdate, task.Settings, task.DocumentClear)),
		batch.Batch{Variant: batch.ClearAndSettings, Other: ids(0, 2), SettingsIDs: ids(1)})
}

func TestAnythingAndIndexDeletion(t *testing.T) {
	for _, k := range kinds(task.DocumentAddition, task.DocumentUpdate, task.DocumentDeletion, task.DocumentClear, task.Settings) {
		assertBatch(t, scan(t, kinds(task.IndexDeletion, k)),
			batch.Batch{Variant: batch.IndexDeletion, IDs: ids(0)})
	}

	assertBatch(t, scan(t, kinds(task.DocumentAddition, task.IndexDeletion)),
		batch.Batch{Variant: batch.IndexDeletion, IDs: ids(0, 1)})
	assertBatch(t, scan(t, kinds(task.DocumentUpdate, task.IndexDeletion)),
		batch.Batch{Variant: batch.IndexDeletion, IDs: ids(0, 1)})
	assertBatch(t, scan(t, kinds(task.DocumentDeletion, task.IndexDeletion)),
		batch.Batch{Variant: batch.IndexDeletion, IDs: ids(0, 1)})
	assertBatch(t, scan(t, kinds(task.DocumentClear, task.IndexDeletion)),
		batch.Batch{Variant: batch.IndexDeletion, IDs: ids(0, 1)})
	assertBatch(t, scan(t, kinds(task.Settings, task.IndexDeletion)),
		batch.Batch{Variant: batch.IndexDeletion, IDs: ids(0, 1)})

	assertBatch(t, scan(t, kinds(task.DocumentAddition, task.Settings, task.IndexDeletion)),
		batch.Batch{Variant: batch.IndexDeletion, IDs: ids(0, 2, 1)})
	assertBatch(t, scan(t, kinds(task.DocumentUpdate, task.Settings, task.IndexDeletion)),
		batch.Batch{Variant: batch.IndexDeletion, IDs: ids(0, 2, 1)})
	assertBatch(t, scan(t, kinds(task.DocumentAddition, task.Settings, task.DocumentClear, task.IndexDeletion)),
		batch.Batch{Variant: batch.IndexDeletion, IDs: ids(1, 3, 0, 2)})
	assertBatch(t, scan(t, kinds(task.DocumentUpdate, task.Settings, task.DocumentClear, task.IndexDeletion)),
		batch.Batch{Variant: batch.IndexDeletion, IDs: ids(1, 3, 0, 2)})
}

func TestSeedSingleTaskTerminal(t *testing.T) {
	for _, k := range kinds(task.IndexCreation, task.IndexUpdate, task.IndexRename, task.IndexSwap) {
		b, terminal := batch.Seed(7, k)
		require.True(t, terminal)
		require.Equal(t, task.ID(7), b.ID)
	}

	b, terminal := batch.Seed(9, task.IndexDeletion)
	require.True(t, terminal)
	require.Equal(t, ids(9), b.IDs)

	for _, k := range kinds(task.DocumentClear, task.DocumentAddition, task.DocumentUpdate, task.DocumentDeletion, task.Settings) {
		_, terminal := batch.Seed(0, k)
		require.False(t, terminal)
	}
}

func TestSeedPanicsOnForbiddenKind(t *testing.T) {
	for _, k := range kinds(task.DumpExport, task.Snapshot, task.CancelTask) {
		require.Panics(t, func() {
			batch.Seed(0, k)
		})
	}
}

func TestAccumulatePanicsOnForbiddenKind(t *testing.T) {
	current, _ := batch.Seed(0, task.DocumentAddition)
	for _, k := range kinds(task.DumpExport, task.Snapshot, task.CancelTask) {
		require.Panics(t, func() {
			batch.Accumulate(current, 1, k)
		})
	}
}

func TestAccumulatePanicsOnTerminalCurrent(t *testing.T) {
	for _, seedKind := range kinds(task.IndexCreation, task.IndexUpdate, task.IndexRename, task.IndexSwap, task.IndexDeletion) {
		current, terminal := batch.Seed(0, seedKind)
		require.True(t, terminal)
		require.Panics(t, func() {
			batch.Accumulate(current, 1, task.DocumentAddition)
		})
	}
}

func TestTerminationOnIndexScopedKinds(t *testing.T) {
	for _, k := range kinds(task.IndexCreation, task.IndexUpdate, task.IndexRename, task.IndexSwap, task.IndexDeletion) {
		got := scan(t, kinds(k, task.DocumentAddition, task.DocumentAddition))
		require.NotNil(t, got)
		require.True(t, got.Variant.Terminal())
		// exactly the first task id is consumed, unless it's IndexDeletion
		// which additionally only consumes its own seed task (index
		// deletion as the *first* task does not absorb anything after it).
		switch got.Variant {
		case batch.IndexDeletion:
			require.Equal(t, ids(0), got.IDs)
		default:
			require.Equal(t, task.ID(0), got.ID)
		}
	}
}

func TestPurity(t *testing.T) {
	ks := kinds(task.DocumentAddition, task.Settings, task.DocumentAddition, task.Settings, task.DocumentClear)
	first := scan(t, ks)
	second := scan(t, ks)
	require.Equal(t, first, second)
}

func TestNoDuplicateIDAcrossFields(t *testing.T) {
	ks := kinds(task.DocumentAddition, task.Settings, task.DocumentAddition, task.Settings, task.DocumentClear, task.Settings)
	got := scan(t, ks)
	require.NotNil(t, got)

	seen := map[task.ID]bool{}
	for _, field := range [][]task.ID{got.IDs, got.AdditionIDs, got.UpdateIDs, got.DeletionIDs, got.SettingsIDs, got.Other} {
		for _, id := range field {
			require.False(t, seen[id], "id %d appeared in more than one field", id)
			seen[id] = true
		}
	}
}
