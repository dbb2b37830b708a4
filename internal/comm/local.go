package comm

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// world holds the rendezvous state shared by every rank of one
// communicator. Each collective call is a sense-reversing barrier: callers
// arrive, the last arrival flips the sense and wakes everyone, and the
// payload (broadcast value or reduce accumulator) is published before the
// flip so every waiter observes it on wake.
type world struct {
	size int

	mu    sync.Mutex
	cond  *sync.Cond
	sense bool
	count int

	// payload slots, valid only between "the last caller computed them"
	// and "every caller has read them and the barrier released".
	boolVal bool
	u64Val  uint64
	sumVal  int64

	// subMu guards lazy creation of Split sub-worlds, keyed by the
	// requested member count so every rank's independent Split(n) call
	// resolves to the same shared world instead of each rank minting its
	// own, unreachable one.
	subMu     sync.Mutex
	subWorlds map[int]*world
}

func newWorld(size int) *world {
	w := &world{size: size}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// rendezvous is the shared barrier primitive: every participant calls it
// with a publish function that runs exactly once, on whichever goroutine
// happens to be the last to arrive, before anyone is released.
func (w *world) rendezvous(publish func()) {
	w.mu.Lock()
	localSense := w.sense
	w.count++
	if w.count == w.size {
		if publish != nil {
			publish()
		}
		w.count = 0
		w.sense = !w.sense
		w.cond.Broadcast()
	} else {
		for w.sense == localSense {
			w.cond.Wait()
		}
	}
	w.mu.Unlock()
}

// LocalComm simulates a communicator within one process, one goroutine per
// rank, using golang.org/x/sync/errgroup at the call site that spawns the
// ranks (see RunLocal) and a sense-reversing barrier internally for each
// collective call.
type LocalComm struct {
	w    *world
	rank int
}

// NewLocalWorld creates size ranks of a fresh in-process communicator.
func NewLocalWorld(size int) []*LocalComm {
	w := newWorld(size)
	ranks := make([]*LocalComm, size)
	for i := range ranks {
		ranks[i] = &LocalComm{w: w, rank: i}
	}
	return ranks
}

func (c *LocalComm) Rank() int { return c.rank }
func (c *LocalComm) Size() int { return c.w.size }

func (c *LocalComm) Barrier(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.w.rendezvous(nil)
	return nil
}

func (c *LocalComm) BroadcastBool(ctx context.Context, root int, v bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.w.rendezvous(nil)
	if c.rank == root {
		c.w.boolVal = v
	}
	c.w.rendezvous(nil)
	return c.w.boolVal, nil
}

func (c *LocalComm) BroadcastUint64(ctx context.Context, root int, v uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.w.rendezvous(nil)
	if c.rank == root {
		c.w.u64Val = v
	}
	c.w.rendezvous(nil)
	return c.w.u64Val, nil
}

// AllReduceSumInt64 cheats slightly around the single-payload-slot
// rendezvous by having each caller add its own v under the world lock
// before the barrier proper; the last arrival resets the accumulator after
// every rank has read it.
func (c *LocalComm) AllReduceSumInt64(ctx context.Context, v int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.w.mu.Lock()
	c.w.sumVal += v
	c.w.mu.Unlock()

	// First barrier: wait until every rank's contribution is folded in.
	c.w.rendezvous(nil)

	c.w.mu.Lock()
	total := c.w.sumVal
	c.w.mu.Unlock()

	// Second barrier: wait until every rank has read the total before the
	// accumulator is reset for the next AllReduce call.
	c.w.rendezvous(func() {
		c.w.sumVal = 0
	})
	return total, nil
}

func (c *LocalComm) Split(n int) (Comm, bool) {
	if n < 0 {
		n = 0
	}
	if n > c.w.size {
		n = c.w.size
	}
	if c.rank >= n {
		return c, false
	}

	c.w.subMu.Lock()
	if c.w.subWorlds == nil {
		c.w.subWorlds = map[int]*world{}
	}
	sub, ok := c.w.subWorlds[n]
	if !ok {
		sub = newWorld(n)
		c.w.subWorlds[n] = sub
	}
	c.w.subMu.Unlock()

	return &LocalComm{w: sub, rank: c.rank}, true
}

// RunLocal spawns one goroutine per rank of a fresh in-process
// communicator of the given size, running fn on each with its own Comm
// handle, and waits for all of them via an errgroup.Group. The first
// non-nil error returned by any rank is propagated to the caller; the
// others still run to completion since a rank stuck on a barrier with a
// dead peer would otherwise hang forever.
func RunLocal(size int, fn func(c *LocalComm) error) error {
	ranks := NewLocalWorld(size)
	var g errgroup.Group
	for _, r := range ranks {
		r := r
		g.Go(func() error { return fn(r) })
	}
	return g.Wait()
}
