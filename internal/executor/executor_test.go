package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sudarshan/search-indexer/internal/batch"
	"github.com/sudarshan/search-indexer/internal/executor"
	"github.com/sudarshan/search-indexer/internal/mongodb"
	"github.com/sudarshan/search-indexer/internal/opensearch"
	"github.com/sudarshan/search-indexer/internal/task"
)

type fakeIndex struct {
	cleared   []string
	indexed   map[string][]opensearch.Document
	deleted   map[string][]string
	created   map[string]map[string]interface{}
	updated   map[string]map[string]interface{}
	renamed   [][2]string
	swapped   [][3]string
	deletedIx []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		indexed: make(map[string][]opensearch.Document),
		deleted: make(map[string][]string),
		created: make(map[string]map[string]interface{}),
		updated: make(map[string]map[string]interface{}),
	}
}

func (f *fakeIndex) BulkIndex(_ context.Context, index string, docs []opensearch.Document) ([]string, error) {
	f.indexed[index] = append(f.indexed[index], docs...)
	return nil, nil
}

func (f *fakeIndex) BulkDelete(_ context.Context, index string, ids []string) ([]string, error) {
	f.deleted[index] = append(f.deleted[index], ids...)
	return nil, nil
}

func (f *fakeIndex) ClearDocuments(_ context.Context, index string) error {
	f.cleared = append(f.cleared, index)
	return nil
}

func (f *fakeIndex) CreateIndex(_ context.Context, index string, mapping map[string]interface{}) error {
	f.created[index] = mapping
	return nil
}

func (f *fakeIndex) UpdateSettings(_ context.Context, index string, settings map[string]interface{}) error {
	f.updated[index] = settings
	return nil
}

func (f *fakeIndex) RenameIndex(_ context.Context, oldName, newName string) error {
	f.renamed = append(f.renamed, [2]string{oldName, newName})
	return nil
}

func (f *fakeIndex) SwapAliases(_ context.Context, alias, oldIndex, newIndex string) error {
	f.swapped = append(f.swapped, [3]string{alias, oldIndex, newIndex})
	return nil
}

func (f *fakeIndex) DeleteIndex(_ context.Context, index string) error {
	f.deletedIx = append(f.deletedIx, index)
	return nil
}

type fakeMeta struct {
	byID map[task.ID]mongodb.TaskMeta
}

func (f *fakeMeta) FetchMeta(_ context.Context, ids []task.ID) (map[task.ID]mongodb.TaskMeta, error) {
	out := make(map[task.ID]mongodb.TaskMeta, len(ids))
	for _, id := range ids {
		if m, ok := f.byID[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func TestExecuteDocumentAdditionIndexesEachDocument(t *testing.T) {
	idx := newFakeIndex()
	meta := &fakeMeta{byID: map[task.ID]mongodb.TaskMeta{
		0: {TaskID: 0, Index: "products", DocID: "p1", Payload: map[string]interface{}{"name": "widget"}},
		1: {TaskID: 1, Index: "products", DocID: "p2", Payload: map[string]interface{}{"name": "gadget"}},
	}}
	e := executor.New(idx, meta)

	b := batch.Batch{Variant: batch.DocumentAddition, AdditionIDs: []task.ID{0, 1}}
	require.NoError(t, e.Execute(context.Background(), b))
	require.Len(t, idx.indexed["products"], 2)
}

func TestExecuteDocumentClearUsesFirstTaskIndex(t *testing.T) {
	idx := newFakeIndex()
	meta := &fakeMeta{byID: map[task.ID]mongodb.TaskMeta{
		0: {TaskID: 0, Index: "products"},
	}}
	e := executor.New(idx, meta)

	b := batch.Batch{Variant: batch.DocumentClear, IDs: []task.ID{0}}
	require.NoError(t, e.Execute(context.Background(), b))
	require.Equal(t, []string{"products"}, idx.cleared)
}

func TestExecuteClearAndSettingsRunsBothCalls(t *testing.T) {
	idx := newFakeIndex()
	meta := &fakeMeta{byID: map[task.ID]mongodb.TaskMeta{
		0: {TaskID: 0, Index: "products"},
		1: {TaskID: 1, Index: "products", Payload: map[string]interface{}{"ranking": []string{"words"}}},
	}}
	e := executor.New(idx, meta)

	b := batch.Batch{
		Variant:     batch.ClearAndSettings,
		Other:       []task.ID{0},
		SettingsIDs: []task.ID{1},
	}
	require.NoError(t, e.Execute(context.Background(), b))
	require.Equal(t, []string{"products"}, idx.cleared)
	require.Equal(t, map[string]interface{}{"ranking": []string{"words"}}, idx.updated["products"])
}

func TestExecuteIndexRenameReadsNewIndexFromPayload(t *testing.T) {
	idx := newFakeIndex()
	meta := &fakeMeta{byID: map[task.ID]mongodb.TaskMeta{
		5: {TaskID: 5, Index: "products-v1", Payload: map[string]interface{}{"new_index": "products-v2"}},
	}}
	e := executor.New(idx, meta)

	b := batch.Batch{Variant: batch.IndexRename, ID: 5}
	require.NoError(t, e.Execute(context.Background(), b))
	require.Equal(t, [][2]string{{"products-v1", "products-v2"}}, idx.renamed)
}

func TestExecuteIndexSwapReadsAliasFromPayload(t *testing.T) {
	idx := newFakeIndex()
	meta := &fakeMeta{byID: map[task.ID]mongodb.TaskMeta{
		7: {TaskID: 7, Index: "products-old", Payload: map[string]interface{}{
			"alias": "products", "new_index": "products-new",
		}},
	}}
	e := executor.New(idx, meta)

	b := batch.Batch{Variant: batch.IndexSwap, ID: 7}
	require.NoError(t, e.Execute(context.Background(), b))
	require.Equal(t, [][3]string{{"products", "products-old", "products-new"}}, idx.swapped)
}

func TestExecuteMissingMetadataIsAnError(t *testing.T) {
	idx := newFakeIndex()
	meta := &fakeMeta{byID: map[task.ID]mongodb.TaskMeta{}}
	e := executor.New(idx, meta)

	b := batch.Batch{Variant: batch.DocumentAddition, AdditionIDs: []task.ID{99}}
	require.Error(t, e.Execute(context.Background(), b))
}

func TestExecuteIndexDeletionDeletesEachDistinctIndexOnce(t *testing.T) {
	idx := newFakeIndex()
	meta := &fakeMeta{byID: map[task.ID]mongodb.TaskMeta{
		0: {TaskID: 0, Index: "products"},
		1: {TaskID: 1, Index: "products"},
	}}
	e := executor.New(idx, meta)

	b := batch.Batch{Variant: batch.IndexDeletion, IDs: []task.ID{0, 1}}
	require.NoError(t, e.Execute(context.Background(), b))
	require.Equal(t, []string{"products"}, idx.deletedIx)
}
