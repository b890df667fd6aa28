// Package queue implements the TaskStore collaborator the spec names in
// §4.6/§6: a FIFO source of (id, kind) pairs for the scheduler loop to
// Peek and Ack. It never reorders tasks; ordering is the caller's whole
// correctness contract with the autobatcher.
package queue

import (
	"context"

	"github.com/sudarshan/search-indexer/internal/task"
)

// TaskStore is the narrow interface the scheduler needs from whatever is
// actually durably queuing tasks upstream. Durability, persistence, and the
// task-status lifecycle belong to the concrete implementation; this
// package only promises FIFO order.
type TaskStore interface {
	// Peek returns up to max tasks from the head of the queue, in FIFO
	// order, without removing them. Calling Peek again before Ack must
	// return the same prefix (plus anything newly enqueued after it).
	Peek(ctx context.Context, max int) ([]task.Task, error)

	// Ack removes ids from the head of the queue. ids must be exactly the
	// prefix previously returned by Peek (or a prefix of it); acking an id
	// that isn't at the current head is a programming error in the caller.
	Ack(ctx context.Context, ids []task.ID) error
}
