// Package task defines the unit of work the scheduler drains from the
// task store and hands to the autobatcher.
package task

import "fmt"

// ID is an opaque, monotonically assigned task identifier. Only equality
// and ordinal comparisons performed by the checkpoint cache are meaningful;
// callers must never use it as an index.
type ID uint64

// Kind is the closed set of task kinds the autobatcher understands.
type Kind int

const (
	// DocumentClear wipes all documents from an index.
	DocumentClear Kind = iota
	// DocumentAddition inserts or replaces documents.
	DocumentAddition
	// DocumentUpdate partially updates documents.
	DocumentUpdate
	// DocumentDeletion removes specific documents.
	DocumentDeletion
	// Settings applies an index settings mutation.
	Settings
	// IndexCreation creates a new index.
	IndexCreation
	// IndexUpdate mutates index-level configuration in place.
	IndexUpdate
	// IndexRename renames an index.
	IndexRename
	// IndexSwap atomically swaps two indices.
	IndexSwap
	// IndexDeletion deletes an index.
	IndexDeletion

	// DumpExport, Snapshot, and CancelTask are handled entirely outside
	// the indexing pipeline. They must never reach the autobatcher; a
	// task store that leaks one of them upstream is the bug, not this
	// package.
	DumpExport
	Snapshot
	CancelTask
)

func (k Kind) String() string {
	switch k {
	case DocumentClear:
		return "DocumentClear"
	case DocumentAddition:
		return "DocumentAddition"
	case DocumentUpdate:
		return "DocumentUpdate"
	case DocumentDeletion:
		return "DocumentDeletion"
	case Settings:
		return "Settings"
	case IndexCreation:
		return "IndexCreation"
	case IndexUpdate:
		return "IndexUpdate"
	case IndexRename:
		return "IndexRename"
	case IndexSwap:
		return "IndexSwap"
	case IndexDeletion:
		return "IndexDeletion"
	case DumpExport:
		return "DumpExport"
	case Snapshot:
		return "Snapshot"
	case CancelTask:
		return "CancelTask"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Forbidden reports whether kind must never reach the autobatcher.
func (k Kind) Forbidden() bool {
	switch k {
	case DumpExport, Snapshot, CancelTask:
		return true
	default:
		return false
	}
}

// Task is a single enqueued unit of work, as handed over by the task store.
type Task struct {
	ID   ID
	Kind Kind
}
