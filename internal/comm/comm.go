// Package comm defines the collective-communication seam the engines use
// instead of binding to any particular MPI implementation. spec.md treats
// process launching and MPI internals as a pure collaborator boundary; no
// Go MPI binding exists anywhere in the reference corpus, so this package
// gives the engines a small interface and ships two implementations: an
// in-process goroutine simulation for tests and single-host runs, and a
// minimal TCP-based one for genuinely distributed runs.
package comm

import "context"

// Comm is the collective-communication capability the engines depend on.
type Comm interface {
	Rank() int
	Size() int

	// Barrier blocks until every rank in the communicator has called it.
	Barrier(ctx context.Context) error

	// BroadcastBool sends v from root to every rank and returns the value
	// every rank (including root) observed.
	BroadcastBool(ctx context.Context, root int, v bool) (bool, error)

	// BroadcastUint64 is BroadcastBool's counterpart for the LCG seed and
	// similar 64-bit values that must agree across ranks.
	BroadcastUint64(ctx context.Context, root int, v uint64) (uint64, error)

	// AllReduceSumInt64 sums v across every rank and returns the total to
	// all of them, used for verification-error counts and pipeline byte
	// totals.
	AllReduceSumInt64(ctx context.Context, v int64) (int64, error)

	// Split returns a sub-communicator containing only the first n ranks
	// of the caller's communicator, and whether the caller is a member of
	// it. Non-member callers still get a valid (size-0-relative) handle
	// so they can participate in the Harness's final barrier.
	Split(n int) (Comm, bool)
}
