package core

import "os"

// AlignedBuffer owns a page-aligned byte region sized for direct I/O.
// Go's allocator gives no alignment guarantee for make([]byte, n), so the
// backing slice is over-allocated and trimmed to the first page-aligned
// offset within it.
//
// Reference: ior-core/src/aligned_buf.rs (AlignedBuffer).
type AlignedBuffer struct {
	raw  []byte
	buf  []byte
}

var pageSize = os.Getpagesize()

// NewAlignedBuffer allocates a zero-filled buffer of exactly size bytes,
// aligned to the system page size.
func NewAlignedBuffer(size int) *AlignedBuffer {
	raw := make([]byte, size+pageSize)
	off := (-uintptrOf(raw)) & uintptr(pageSize-1)
	return &AlignedBuffer{raw: raw, buf: raw[off : off+uintptr(size)]}
}

// Bytes returns the aligned region.
func (a *AlignedBuffer) Bytes() []byte { return a.buf }

func (a *AlignedBuffer) Len() int { return len(a.buf) }

// Release drops the reference to the backing allocation without zeroing
// it. Go's GC
// reclaims the memory; Release exists so callers have an explicit,
// deterministic point to stop using the buffer, mirroring the teacher's
// RAII convention for buffers handed to async transfers.
func (a *AlignedBuffer) Release() {
	a.raw = nil
	a.buf = nil
}
