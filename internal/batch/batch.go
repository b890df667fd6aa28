// Package batch implements the autobatcher: a deterministic, pure state
// machine that inspects the head of a task queue and decides which
// contiguous prefix may be coalesced into a single physical index
// operation.
//
// The algorithm and its exact ordering guarantees are ported from
// Meilisearch's index-scheduler autobatcher; see DESIGN.md for the
// grounding source. Go has no tagged unions, so Variant plays the role of
// Rust's enum discriminant and Batch carries every variant's fields
// side-by-side, only the ones named by Variant are populated.
package batch

import (
	"fmt"

	"github.com/sudarshan/search-indexer/internal/task"
)

// Variant identifies which shape a Batch carries.
type Variant int

const (
	DocumentClear Variant = iota
	DocumentAddition
	DocumentUpdate
	DocumentDeletion
	Settings
	ClearAndSettings
	SettingsAndDocumentAddition
	SettingsAndDocumentUpdate
	IndexCreation
	IndexUpdate
	IndexRename
	IndexSwap
	IndexDeletion
)

func (v Variant) String() string {
	switch v {
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
	case ClearAndSettings:
		return "ClearAndSettings"
	case SettingsAndDocumentAddition:
		return "SettingsAndDocumentAddition"
	case SettingsAndDocumentUpdate:
		return "SettingsAndDocumentUpdate"
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
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Terminal reports whether v forbids any further accumulation. These are
// exactly the index-scoped variants.
func (v Variant) Terminal() bool {
	switch v {
	case IndexCreation, IndexUpdate, IndexRename, IndexSwap, IndexDeletion:
		return true
	default:
		return false
	}
}

// Batch is the planner's output: one merged physical operation plus the
// ordered task ids it absorbed.
//
// Single-id variants (IndexCreation, IndexUpdate, IndexRename, IndexSwap)
// use ID. DocumentClear and IndexDeletion use IDs; DocumentAddition,
// DocumentUpdate, DocumentDeletion and Settings use AdditionIDs, UpdateIDs,
// DeletionIDs and SettingsIDs respectively. Two-sequence variants use
// Other/SettingsIDs for ClearAndSettings, and SettingsIDs/AdditionIDs or
// SettingsIDs/UpdateIDs for the fused settings+document variants.
type Batch struct {
	Variant Variant

	// ID holds the single task id for IndexCreation/IndexUpdate/
	// IndexRename/IndexSwap. Unused by every other variant.
	ID task.ID

	IDs []task.ID

	AdditionIDs []task.ID
	UpdateIDs   []task.ID
	DeletionIDs []task.ID
	SettingsIDs []task.ID
	Other       []task.ID
}

func single(id task.ID) []task.ID { return []task.ID{id} }

func append1(ids []task.ID, id task.ID) []task.ID {
	out := make([]task.ID, len(ids), len(ids)+1)
	copy(out, ids)
	return append(out, id)
}

func concat(a []task.ID, id task.ID, b []task.ID) []task.ID {
	out := make([]task.ID, 0, len(a)+1+len(b))
	out = append(out, a...)
	out = append(out, id)
	out = append(out, b...)
	return out
}

func contractViolation(format string, args ...any) {
	panic(fmt.Sprintf("batch: contract violation: "+format, args...))
}

// Seed creates the initial batch from the first task in a prefix, and
// reports whether the scan must stop right there.
func Seed(id task.ID, kind task.Kind) (Batch, bool) {
	switch kind {
	case task.IndexCreation:
		return Batch{Variant: IndexCreation, ID: id}, true
	case task.IndexUpdate:
		return Batch{Variant: IndexUpdate, ID: id}, true
	case task.IndexRename:
		return Batch{Variant: IndexRename, ID: id}, true
	case task.IndexSwap:
		return Batch{Variant: IndexSwap, ID: id}, true
	case task.IndexDeletion:
		return Batch{Variant: IndexDeletion, IDs: single(id)}, true
	case task.DocumentClear:
		return Batch{Variant: DocumentClear, IDs: single(id)}, false
	case task.DocumentAddition:
		return Batch{Variant: DocumentAddition, AdditionIDs: single(id)}, false
	case task.DocumentUpdate:
		return Batch{Variant: DocumentUpdate, UpdateIDs: single(id)}, false
	case task.DocumentDeletion:
		return Batch{Variant: DocumentDeletion, DeletionIDs: single(id)}, false
	case task.Settings:
		return Batch{Variant: Settings, SettingsIDs: single(id)}, false
	default:
		contractViolation("seed called with forbidden kind %s", kind)
		panic("unreachable")
	}
}

// Decision is the result of one accumulation step: either Continue with an
// extended batch that may still grow, or Break with a final batch that
// must be emitted now. This mirrors the source's ControlFlow<Self, Self>;
// Go needs no generic parameter since both arms share the same payload
// type.
type Decision struct {
	Batch Batch
	Break bool
}

func cont(b Batch) Decision { return Decision{Batch: b} }
func brk(b Batch) Decision  { return Decision{Batch: b, Break: true} }

// Accumulate folds the next (id, kind) pair into current, returning whether
// scanning may continue. It panics on a contract violation: a forbidden
// kind, or an already-terminal current variant (the caller is responsible
// for never calling Accumulate once a terminal batch has been returned).
func Accumulate(current Batch, id task.ID, kind task.Kind) Decision {
	if kind.Forbidden() {
		contractViolation("accumulate called with forbidden kind %s on variant %s", kind, current.Variant)
	}
	if current.Variant.Terminal() {
		contractViolation("accumulate called on terminal variant %s with kind %s", current.Variant, kind)
	}

	// Rule IC: index-mutation sentinels never batch, regardless of the
	// current variant.
	switch kind {
	case task.IndexCreation, task.IndexRename, task.IndexUpdate, task.IndexSwap:
		return brk(current)
	}

	// Rule ID: index deletion absorbs into the current batch and always
	// terminates the scan. The concatenation order depends on whether the
	// current batch is single- or two-sequence.
	if kind == task.IndexDeletion {
		switch current.Variant {
		case DocumentClear:
			return brk(Batch{Variant: IndexDeletion, IDs: append1(current.IDs, id)})
		case DocumentAddition:
			return brk(Batch{Variant: IndexDeletion, IDs: append1(current.AdditionIDs, id)})
		case DocumentUpdate:
			return brk(Batch{Variant: IndexDeletion, IDs: append1(current.UpdateIDs, id)})
		case DocumentDeletion:
			return brk(Batch{Variant: IndexDeletion, IDs: append1(current.DeletionIDs, id)})
		case Settings:
			return brk(Batch{Variant: IndexDeletion, IDs: append1(current.SettingsIDs, id)})
		case ClearAndSettings:
			// "first" is the settings side: SettingsIDs.
			return brk(Batch{Variant: IndexDeletion, IDs: concat(current.SettingsIDs, id, current.Other)})
		case SettingsAndDocumentAddition:
			// "first" is the document side: AdditionIDs.
			return brk(Batch{Variant: IndexDeletion, IDs: concat(current.AdditionIDs, id, current.SettingsIDs)})
		case SettingsAndDocumentUpdate:
			return brk(Batch{Variant: IndexDeletion, IDs: concat(current.UpdateIDs, id, current.SettingsIDs)})
		default:
			contractViolation("index deletion cannot absorb variant %s", current.Variant)
		}
	}

	switch current.Variant {
	case DocumentClear:
		switch kind {
		case task.DocumentClear, task.DocumentDeletion:
			return cont(Batch{Variant: DocumentClear, IDs: append1(current.IDs, id)})
		case task.DocumentAddition, task.DocumentUpdate, task.Settings:
			return brk(current)
		}

	case DocumentAddition:
		switch kind {
		case task.DocumentClear:
			return cont(Batch{Variant: DocumentClear, IDs: append1(current.AdditionIDs, id)})
		case task.DocumentAddition:
			return cont(Batch{Variant: DocumentAddition, AdditionIDs: append1(current.AdditionIDs, id)})
		case task.DocumentDeletion, task.DocumentUpdate:
			return brk(current)
		case task.Settings:
			return cont(Batch{
				Variant:     SettingsAndDocumentAddition,
				SettingsIDs: single(id),
				AdditionIDs: current.AdditionIDs,
			})
		}

	case DocumentUpdate:
		switch kind {
		case task.DocumentClear:
			return cont(Batch{Variant: DocumentClear, IDs: append1(current.UpdateIDs, id)})
		case task.DocumentUpdate:
			return cont(Batch{Variant: DocumentUpdate, UpdateIDs: append1(current.UpdateIDs, id)})
		case task.DocumentDeletion, task.DocumentAddition:
			return brk(current)
		case task.Settings:
			return cont(Batch{
				Variant:     SettingsAndDocumentUpdate,
				SettingsIDs: single(id),
				UpdateIDs:   current.UpdateIDs,
			})
		}

	case DocumentDeletion:
		switch kind {
		case task.DocumentClear:
			return cont(Batch{Variant: DocumentClear, IDs: append1(current.DeletionIDs, id)})
		case task.DocumentDeletion:
			return cont(Batch{Variant: DocumentDeletion, DeletionIDs: append1(current.DeletionIDs, id)})
		case task.DocumentAddition, task.DocumentUpdate, task.Settings:
			return brk(current)
		}

	case Settings:
		switch kind {
		case task.Settings:
			return cont(Batch{Variant: Settings, SettingsIDs: append1(current.SettingsIDs, id)})
		case task.DocumentClear:
			return cont(Batch{
				Variant:     ClearAndSettings,
				SettingsIDs: current.SettingsIDs,
				Other:       single(id),
			})
		case task.DocumentAddition, task.DocumentUpdate, task.DocumentDeletion:
			return brk(current)
		}

	case ClearAndSettings:
		switch kind {
		case task.DocumentClear, task.DocumentDeletion:
			return cont(Batch{
				Variant:     ClearAndSettings,
				Other:       append1(current.Other, id),
				SettingsIDs: current.SettingsIDs,
			})
		case task.Settings:
			return cont(Batch{
				Variant:     ClearAndSettings,
				Other:       current.Other,
				SettingsIDs: append1(current.SettingsIDs, id),
			})
		case task.DocumentAddition, task.DocumentUpdate:
			return brk(current)
		}

	case SettingsAndDocumentAddition:
		switch kind {
		case task.DocumentClear:
			return cont(Batch{
				Variant:     ClearAndSettings,
				SettingsIDs: current.SettingsIDs,
				Other:       append1(current.AdditionIDs, id),
			})
		case task.DocumentAddition:
			return cont(Batch{
				Variant:     SettingsAndDocumentAddition,
				AdditionIDs: append1(current.AdditionIDs, id),
				SettingsIDs: current.SettingsIDs,
			})
		case task.Settings:
			return cont(Batch{
				Variant:     SettingsAndDocumentAddition,
				SettingsIDs: append1(current.SettingsIDs, id),
				AdditionIDs: current.AdditionIDs,
			})
		case task.DocumentDeletion, task.DocumentUpdate:
			return brk(current)
		}

	case SettingsAndDocumentUpdate:
		switch kind {
		case task.DocumentClear:
			return cont(Batch{
				Variant:     ClearAndSettings,
				SettingsIDs: current.SettingsIDs,
				Other:       append1(current.UpdateIDs, id),
			})
		case task.DocumentUpdate:
			return cont(Batch{
				Variant:     SettingsAndDocumentUpdate,
				UpdateIDs:   append1(current.UpdateIDs, id),
				SettingsIDs: current.SettingsIDs,
			})
		case task.Settings:
			return cont(Batch{
				Variant:     SettingsAndDocumentUpdate,
				SettingsIDs: append1(current.SettingsIDs, id),
				UpdateIDs:   current.UpdateIDs,
			})
		case task.DocumentDeletion, task.DocumentAddition:
			return brk(current)
		}
	}

	contractViolation("no transition defined for variant %s with kind %s", current.Variant, kind)
	panic("unreachable")
}

// Scan consumes tasks in order and returns the single Batch they collapse
// to, or nil if tasks is empty. It never mutates tasks and never re-orders
// it; a task that triggers a Break is not absorbed into the returned
// batch unless the accumulator rule that produced the Break says so (index
// deletion is the only rule that both breaks and absorbs).
func Scan(tasks []task.Task) *Batch {
	if len(tasks) == 0 {
		return nil
	}

	acc, terminal := Seed(tasks[0].ID, tasks[0].Kind)
	if terminal {
		return &acc
	}

	for _, t := range tasks[1:] {
		decision := Accumulate(acc, t.ID, t.Kind)
		acc = decision.Batch
		if decision.Break {
			return &acc
		}
	}

	return &acc
}
