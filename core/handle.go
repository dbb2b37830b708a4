package core

import "sync/atomic"

// OpenFlag is a bit in the open-flag set a caller passes to create/open.
type OpenFlag uint32

const (
	ReadOnly OpenFlag = 1 << iota
	WriteOnly
	ReadWrite
	Append
	Create
	Truncate
	Exclusive
	Direct
	// SingleAttempt caps XferSync's short-transfer retry loop at one round,
	// per §6's --single-xfer-attempt: a short pread/pwrite is reported as
	// partial rather than retried.
	SingleAttempt
)

// Resolve applies the "last-set rule" to the access-mode bits: of
// ReadOnly/WriteOnly/ReadWrite, only the most recently OR'd-in one is
// effective. Flags are applied in ascending bit order, so when more than one
// access bit is set the highest-valued one (ReadWrite, then WriteOnly, then
// ReadOnly) wins.
func (f OpenFlag) Resolve() OpenFlag {
	access := f & (ReadOnly | WriteOnly | ReadWrite)
	switch {
	case access&ReadWrite != 0:
		return (f &^ (ReadOnly | WriteOnly)) | ReadWrite
	case access&WriteOnly != 0:
		return (f &^ (ReadOnly | ReadWrite)) | WriteOnly
	default:
		return f
	}
}

func (f OpenFlag) Has(bit OpenFlag) bool { return f&bit != 0 }

// Handle is an opaque, exclusively-owned reference to an open file/object on
// a backend. Backends stash their own concrete state behind it; the engines
// never inspect its contents, only pass it to other Backend operations and
// eventually to close.
type Handle struct {
	backendName string
	inner       any
}

// NewHandle wraps backend-specific state in an opaque Handle.
func NewHandle(backendName string, inner any) *Handle {
	return &Handle{backendName: backendName, inner: inner}
}

// Inner returns the backend-specific payload. Only the backend that created
// the handle should call this — it is exported so a backend's own methods
// (which live in a different package than core) can recover their state.
func (h *Handle) Inner() any { return h.inner }

func (h *Handle) BackendName() string { return h.backendName }

// XferDir is the direction of a data transfer.
type XferDir int

const (
	Read XferDir = iota
	Write
)

// Token identifies one outstanding asynchronous transfer. Token 0 is never
// issued; callers can use it as a "no transfer" sentinel.
type Token uint64

var tokenCounter uint64

// NextToken returns a process-wide monotonic token, skipping 0.
func NextToken() Token {
	return Token(atomic.AddUint64(&tokenCounter, 1))
}

// XferResult is handed to a completion callback when an async transfer
// finishes (successfully, with an error, or cancelled).
type XferResult struct {
	Token             Token
	BytesTransferred  int64
	Err               error
	UserData          any
}

// XferCallback is invoked inline on the thread that calls Poll.
type XferCallback func(XferResult)

// StatResult mirrors the POSIX stat(2) fields the engines need.
type StatResult struct {
	Size  int64
	Mode  uint32
	Nlink uint64
	UID   uint32
	GID   uint32
	Atime int64
	Mtime int64
	Ctime int64
}
