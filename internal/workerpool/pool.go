// Package workerpool gives a backend with no native async primitive the
// async half of the Backend Contract (xfer_submit/poll/cancel) by running a
// bounded pool of goroutines pulling from a shared pending queue.
package workerpool

import (
	"sync"

	"github.com/dfsbench/dfsbench/core"
)

// submission is one queued asynchronous transfer, carrying everything a
// worker needs to execute it synchronously against the backend.
type submission struct {
	token    core.Token
	exec     func() (int64, error)
	userData any
	callback core.XferCallback
}

// completedOp pairs a finished transfer's result with the callback that
// must receive it, so Poll never needs to look a callback up by token after
// the submission bookkeeping for it has already been cleared.
type completedOp struct {
	result   core.XferResult
	callback core.XferCallback
}

// Pool runs a fixed number of worker goroutines executing submitted
// transfers synchronously and depositing their results on a completed
// queue for Poll to drain. Grounded on the teacher's per-tag state-machine
// discipline in internal/queue/runner.go, generalized from ublk's fixed tag
// set to an open-ended token stream, and from a condvar-guarded queue to a
// channel-guarded one (idiomatic Go over a raw sync.Cond here).
type Pool struct {
	pending   chan submission
	mu        sync.Mutex
	completed []completedOp
	pendingTokens map[core.Token]bool
	cancelled map[core.Token]bool
	wg        sync.WaitGroup
	shutdown  chan struct{}
	once      sync.Once
}

// New starts a Pool with the given number of worker goroutines and a
// pending-queue capacity of queueDepth.
func New(workers, queueDepth int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	p := &Pool{
		pending:       make(chan submission, queueDepth),
		pendingTokens: map[core.Token]bool{},
		cancelled:     map[core.Token]bool{},
		shutdown:      make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.shutdown:
			return
		case s, ok := <-p.pending:
			if !ok {
				return
			}
			p.execute(s)
		}
	}
}

func (p *Pool) execute(s submission) {
	p.mu.Lock()
	cancelled := p.cancelled[s.token]
	delete(p.cancelled, s.token)
	delete(p.pendingTokens, s.token)
	p.mu.Unlock()

	var result core.XferResult
	if cancelled {
		result = core.XferResult{Token: s.token, Err: core.ErrCancelled, UserData: s.userData}
	} else {
		n, err := s.exec()
		result = core.XferResult{Token: s.token, BytesTransferred: n, Err: err, UserData: s.userData}
	}

	p.mu.Lock()
	p.completed = append(p.completed, completedOp{result: result, callback: s.callback})
	p.mu.Unlock()
}

// Submit enqueues an asynchronous transfer. exec runs the synchronous
// transfer on a worker goroutine; its result is surfaced the next time Poll
// is called.
func (p *Pool) Submit(exec func() (int64, error), userData any, callback core.XferCallback) core.Token {
	tok := core.NextToken()
	p.mu.Lock()
	p.pendingTokens[tok] = true
	p.mu.Unlock()
	p.pending <- submission{token: tok, exec: exec, userData: userData, callback: callback}
	return tok
}

// Poll drains up to max completed transfers, invoking each callback inline
// on the caller's goroutine. Never blocks.
func (p *Pool) Poll(max int) int {
	p.mu.Lock()
	n := len(p.completed)
	if n > max {
		n = max
	}
	batch := p.completed[:n]
	p.completed = p.completed[n:]
	p.mu.Unlock()

	for _, c := range batch {
		c.callback(c.result)
	}
	return len(batch)
}

// Cancel marks a still-pending submission cancelled, so that when a worker
// dequeues it, it synthesizes a Cancelled completion instead of running
// exec. It cannot stop a submission already executing. Returns NotFound if
// the token is unknown (never submitted, or already dequeued).
func (p *Pool) Cancel(token core.Token) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pendingTokens[token] {
		return core.NewError("cancel", core.CodeNotFound, "no such pending transfer")
	}
	p.cancelled[token] = true
	return nil
}

// Shutdown stops accepting new work, signals every worker to stop, and
// blocks until all have exited. No callback fires for work still queued at
// shutdown time.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		close(p.shutdown)
	})
	p.wg.Wait()
}
