// Package executor turns a planned batch.Batch into the physical
// OpenSearch/Mongo calls it represents. The batch package only decides
// what can be merged; it carries no I/O. Executor is where that decision
// is actually carried out, the way the teacher indexer's internal/indexer
// pipeline turned a stream of Mongo documents into OpenSearch bulk calls
// — generalized here from a one-shot reindex pipeline to a dispatcher
// keyed on batch.Variant.
package executor

import (
	"context"
	"fmt"

	"github.com/sudarshan/search-indexer/internal/batch"
	"github.com/sudarshan/search-indexer/internal/mongodb"
	"github.com/sudarshan/search-indexer/internal/opensearch"
	"github.com/sudarshan/search-indexer/internal/task"
)

// Executor applies a planned Batch to the index.
type Executor interface {
	Execute(ctx context.Context, b batch.Batch) error
}

// indexClient is the subset of *opensearch.Client the executor drives;
// named so tests can substitute a fake without a live cluster.
type indexClient interface {
	BulkIndex(ctx context.Context, index string, docs []opensearch.Document) ([]string, error)
	BulkDelete(ctx context.Context, index string, ids []string) ([]string, error)
	ClearDocuments(ctx context.Context, index string) error
	CreateIndex(ctx context.Context, index string, mapping map[string]interface{}) error
	UpdateSettings(ctx context.Context, index string, settings map[string]interface{}) error
	RenameIndex(ctx context.Context, oldName, newName string) error
	SwapAliases(ctx context.Context, alias, oldIndex, newIndex string) error
	DeleteIndex(ctx context.Context, index string) error
}

// metaStore is the subset of *mongodb.Client the executor needs to join
// task ids against their recorded index/document/payload metadata.
type metaStore interface {
	FetchMeta(ctx context.Context, ids []task.ID) (map[task.ID]mongodb.TaskMeta, error)
}

// Exec is the default Executor, wired against a real OpenSearch client and
// Mongo metadata store.
type Exec struct {
	Index indexClient
	Meta  metaStore
}

// New builds an Executor from live collaborators.
func New(index indexClient, meta metaStore) *Exec {
	return &Exec{Index: index, Meta: meta}
}

// Execute dispatches b to the OpenSearch/Mongo calls its Variant names.
func (e *Exec) Execute(ctx context.Context, b batch.Batch) error {
	switch b.Variant {
	case batch.DocumentClear:
		return e.execClear(ctx, b.IDs)
	case batch.DocumentAddition:
		return e.execIndex(ctx, b.AdditionIDs)
	case batch.DocumentUpdate:
		return e.execIndex(ctx, b.UpdateIDs)
	case batch.DocumentDeletion:
		return e.execDelete(ctx, b.DeletionIDs)
	case batch.Settings:
		return e.execSettings(ctx, b.SettingsIDs)
	case batch.ClearAndSettings:
		if err := e.execClear(ctx, b.Other); err != nil {
			return err
		}
		return e.execSettings(ctx, b.SettingsIDs)
	case batch.SettingsAndDocumentAddition:
		if err := e.execSettings(ctx, b.SettingsIDs); err != nil {
			return err
		}
		return e.execIndex(ctx, b.AdditionIDs)
	case batch.SettingsAndDocumentUpdate:
		if err := e.execSettings(ctx, b.SettingsIDs); err != nil {
			return err
		}
		return e.execIndex(ctx, b.UpdateIDs)
	case batch.IndexCreation:
		return e.execIndexCreation(ctx, b.ID)
	case batch.IndexUpdate:
		return e.execIndexUpdate(ctx, b.ID)
	case batch.IndexRename:
		return e.execIndexRename(ctx, b.ID)
	case batch.IndexSwap:
		return e.execIndexSwap(ctx, b.ID)
	case batch.IndexDeletion:
		return e.execIndexDeletion(ctx, b.IDs)
	default:
		return fmt.Errorf("executor: no handler for variant %s", b.Variant)
	}
}

func (e *Exec) execClear(ctx context.Context, ids []task.ID) error {
	meta, err := e.oneMeta(ctx, ids)
	if err != nil {
		return err
	}
	return e.Index.ClearDocuments(ctx, meta.Index)
}

func (e *Exec) execIndex(ctx context.Context, ids []task.ID) error {
	metas, err := e.Meta.FetchMeta(ctx, ids)
	if err != nil {
		return fmt.Errorf("executor: fetch meta: %w", err)
	}

	byIndex := make(map[string][]opensearch.Document)
	for _, id := range ids {
		m, ok := metas[id]
		if !ok {
			return fmt.Errorf("executor: no metadata recorded for task %d", id)
		}
		byIndex[m.Index] = append(byIndex[m.Index], opensearch.Document{ID: m.DocID, Source: m.Payload})
	}

	for index, docs := range byIndex {
		failed, err := e.Index.BulkIndex(ctx, index, docs)
		if err != nil {
			return fmt.Errorf("executor: bulk index %s: %w", index, err)
		}
		if len(failed) > 0 {
			return fmt.Errorf("executor: %d documents failed to index in %s", len(failed), index)
		}
	}
	return nil
}

func (e *Exec) execDelete(ctx context.Context, ids []task.ID) error {
	metas, err := e.Meta.FetchMeta(ctx, ids)
	if err != nil {
		return fmt.Errorf("executor: fetch meta: %w", err)
	}

	byIndex := make(map[string][]string)
	for _, id := range ids {
		m, ok := metas[id]
		if !ok {
			return fmt.Errorf("executor: no metadata recorded for task %d", id)
		}
		byIndex[m.Index] = append(byIndex[m.Index], m.DocID)
	}

	for index, docIDs := range byIndex {
		failed, err := e.Index.BulkDelete(ctx, index, docIDs)
		if err != nil {
			return fmt.Errorf("executor: bulk delete %s: %w", index, err)
		}
		if len(failed) > 0 {
			return fmt.Errorf("executor: %d documents failed to delete in %s", len(failed), index)
		}
	}
	return nil
}

func (e *Exec) execSettings(ctx context.Context, ids []task.ID) error {
	meta, err := e.lastMeta(ctx, ids)
	if err != nil {
		return err
	}
	return e.Index.UpdateSettings(ctx, meta.Index, meta.Payload)
}

func (e *Exec) execIndexCreation(ctx context.Context, id task.ID) error {
	meta, err := e.singleMeta(ctx, id)
	if err != nil {
		return err
	}
	return e.Index.CreateIndex(ctx, meta.Index, meta.Payload)
}

func (e *Exec) execIndexUpdate(ctx context.Context, id task.ID) error {
	meta, err := e.singleMeta(ctx, id)
	if err != nil {
		return err
	}
	return e.Index.UpdateSettings(ctx, meta.Index, meta.Payload)
}

func (e *Exec) execIndexRename(ctx context.Context, id task.ID) error {
	meta, err := e.singleMeta(ctx, id)
	if err != nil {
		return err
	}
	newName, _ := meta.Payload["new_index"].(string)
	if newName == "" {
		return fmt.Errorf("executor: task %d missing new_index in payload", id)
	}
	return e.Index.RenameIndex(ctx, meta.Index, newName)
}

func (e *Exec) execIndexSwap(ctx context.Context, id task.ID) error {
	meta, err := e.singleMeta(ctx, id)
	if err != nil {
		return err
	}
	alias, _ := meta.Payload["alias"].(string)
	newIndex, _ := meta.Payload["new_index"].(string)
	if alias == "" || newIndex == "" {
		return fmt.Errorf("executor: task %d missing alias/new_index in payload", id)
	}
	return e.Index.SwapAliases(ctx, alias, meta.Index, newIndex)
}

func (e *Exec) execIndexDeletion(ctx context.Context, ids []task.ID) error {
	metas, err := e.Meta.FetchMeta(ctx, ids)
	if err != nil {
		return fmt.Errorf("executor: fetch meta: %w", err)
	}
	seen := make(map[string]bool)
	for _, id := range ids {
		m, ok := metas[id]
		if !ok {
			return fmt.Errorf("executor: no metadata recorded for task %d", id)
		}
		if seen[m.Index] {
			continue
		}
		seen[m.Index] = true
		if err := e.Index.DeleteIndex(ctx, m.Index); err != nil {
			return fmt.Errorf("executor: delete index %s: %w", m.Index, err)
		}
	}
	return nil
}

func (e *Exec) singleMeta(ctx context.Context, id task.ID) (mongodb.TaskMeta, error) {
	return e.oneMeta(ctx, []task.ID{id})
}

// oneMeta fetches metadata for ids and returns the first entry, assuming
// (as DocumentClear and the single-id index variants do) that every id in
// the batch targets the same index.
func (e *Exec) oneMeta(ctx context.Context, ids []task.ID) (mongodb.TaskMeta, error) {
	if len(ids) == 0 {
		return mongodb.TaskMeta{}, fmt.Errorf("executor: empty id list")
	}
	metas, err := e.Meta.FetchMeta(ctx, ids)
	if err != nil {
		return mongodb.TaskMeta{}, fmt.Errorf("executor: fetch meta: %w", err)
	}
	m, ok := metas[ids[0]]
	if !ok {
		return mongodb.TaskMeta{}, fmt.Errorf("executor: no metadata recorded for task %d", ids[0])
	}
	return m, nil
}

// lastMeta fetches metadata for ids and returns the entry for the most
// recently enqueued task, since a Settings batch folds many settings
// updates into one and the last one recorded wins.
func (e *Exec) lastMeta(ctx context.Context, ids []task.ID) (mongodb.TaskMeta, error) {
	if len(ids) == 0 {
		return mongodb.TaskMeta{}, fmt.Errorf("executor: empty id list")
	}
	metas, err := e.Meta.FetchMeta(ctx, ids)
	if err != nil {
		return mongodb.TaskMeta{}, fmt.Errorf("executor: fetch meta: %w", err)
	}
	m, ok := metas[ids[len(ids)-1]]
	if !ok {
		return mongodb.TaskMeta{}, fmt.Errorf("executor: no metadata recorded for task %d", ids[len(ids)-1])
	}
	return m, nil
}
