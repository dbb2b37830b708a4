// Package pipeline implements the engine-side asynchronous I/O path of
// §4.3: a bounded ring of aligned buffers driven by a fill loop (submit
// while capacity and work remain) and a drain loop (poll for completions),
// with single-threaded completion accounting since submit and poll are
// always called from the same goroutine.
package pipeline

import (
	"github.com/dfsbench/dfsbench/core"
)

// StampFunc fills buf with the pattern expected at the given absolute file
// offset before a write transfer is submitted. It is a no-op for reads.
type StampFunc func(buf []byte, offset int64)

// VerifyFunc checks a completed read transfer's buffer against the pattern
// expected at the given absolute file offset, returning the number of
// mismatched words. It is never called for writes.
type VerifyFunc func(buf []byte, offset int64) int64

// StonewallFunc reports whether the fill loop should stop submitting new
// transfers, independent of how many remain.
type StonewallFunc func() bool

// Result is the outcome of one Pipeline.Run call.
type Result struct {
	Completed  int64
	TotalBytes int64
	Mismatches int64
	Err        error
}

// xferMeta rides along as XferSubmit's userData so onComplete can verify a
// completed read against the offset it was issued at, since the completion
// callback only receives the XferResult, not the original submit args.
type xferMeta struct {
	buf    []byte
	offset int64
}

// Pipeline drives up to queueDepth in-flight transfers of a fixed size
// against one handle.
type Pipeline struct {
	backend      core.Backend
	handle       *core.Handle
	dir          core.XferDir
	queueDepth   int
	transferSize int64
	buffers      []*core.AlignedBuffer
}

// New allocates queueDepth page-aligned buffers of transferSize bytes each.
func New(backend core.Backend, handle *core.Handle, dir core.XferDir, queueDepth int, transferSize int64) *Pipeline {
	if queueDepth < 1 {
		queueDepth = 1
	}
	buffers := make([]*core.AlignedBuffer, queueDepth)
	for i := range buffers {
		buffers[i] = core.NewAlignedBuffer(int(transferSize))
	}
	return &Pipeline{
		backend:      backend,
		handle:       handle,
		dir:          dir,
		queueDepth:   queueDepth,
		transferSize: transferSize,
		buffers:      buffers,
	}
}

// Release drops the pipeline's buffers. Call once the phase using this
// Pipeline is done.
func (p *Pipeline) Release() {
	for _, b := range p.buffers {
		b.Release()
	}
}

// Run submits totalXfers transfers, offset(i) giving the absolute byte
// offset of transfer i, stopping early if stonewall reports true. It
// returns once in_flight has drained to zero, per §4.3's termination rule.
func (p *Pipeline) Run(totalXfers int64, offset func(i int64) int64, stamp StampFunc, verify VerifyFunc, stonewall StonewallFunc) Result {
	var (
		submitted  int64
		completed  int64
		totalBytes int64
		mismatches int64
		inFlight   int
		firstErr   error
	)

	onComplete := func(r core.XferResult) {
		inFlight--
		completed++
		totalBytes += r.BytesTransferred
		if r.Err != nil && firstErr == nil {
			firstErr = core.Wrap("xfer_submit", r.Err)
			return
		}
		if p.dir == core.Read && verify != nil {
			meta := r.UserData.(xferMeta)
			mismatches += verify(meta.buf[:r.BytesTransferred], meta.offset)
		}
	}

	for {
		// Fill: submit while there's room, work left, and stonewall hasn't fired.
		for inFlight < p.queueDepth && submitted < totalXfers && firstErr == nil {
			if stonewall != nil && stonewall() {
				break
			}
			bufIdx := int(submitted % int64(p.queueDepth))
			buf := p.buffers[bufIdx].Bytes()
			off := offset(submitted)
			if p.dir == core.Write && stamp != nil {
				stamp(buf, off)
			}
			_, err := p.backend.XferSubmit(p.handle, p.dir, buf, off, xferMeta{buf: buf, offset: off}, onComplete)
			if err != nil {
				if firstErr == nil {
					firstErr = core.Wrap("xfer_submit", err)
				}
				break
			}
			submitted++
			inFlight++
		}

		if inFlight == 0 {
			break
		}

		if _, err := p.backend.Poll(p.queueDepth); err != nil {
			if firstErr == nil {
				firstErr = core.Wrap("poll", err)
			}
			break
		}
	}

	return Result{Completed: completed, TotalBytes: totalBytes, Mismatches: mismatches, Err: firstErr}
}
