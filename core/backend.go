package core

// Backend is the capability set the engines consume. Every concrete storage
// driver (POSIX, in-memory, io_uring, an object store, ...) implements it.
// Optional metadata operations default to NotSupported via embedding
// UnimplementedBackend rather than forcing every driver to stub them out.
//
// Reference: ior-core/src/aiori.rs (trait Aiori).
type Backend interface {
	// Name is the lowercase backend identifier used as the Backend Options
	// Bundle prefix (e.g. "posix", "s3").
	Name() string

	// Configure applies a caller-supplied option bundle and performs
	// one-time initialization (connections, registries, ...).
	Configure(opts *OptionBundle) error

	Create(path string, flags OpenFlag) (*Handle, error)
	Open(path string, flags OpenFlag) (*Handle, error)
	Close(h *Handle) error
	Delete(path string) error
	Fsync(h *Handle) error
	GetFileSize(path string) (int64, error)
	Access(path string, mode int) (bool, error)

	// XferSync performs a synchronous transfer, looping on short
	// reads/writes up to a bounded number of retry rounds. It returns the
	// total number of bytes actually moved.
	XferSync(h *Handle, dir XferDir, buf []byte, offset int64) (int64, error)

	// XferSubmit enqueues an asynchronous transfer. buf must remain valid
	// until callback fires or Cancel(token) succeeds. callback runs inline
	// on the goroutine that calls Poll.
	XferSubmit(h *Handle, dir XferDir, buf []byte, offset int64, userData any, callback XferCallback) (Token, error)

	// Poll drains up to max completed transfers, invoking each callback
	// inline. It never blocks and returns the number of completions
	// dispatched.
	Poll(max int) (int, error)

	// Cancel dequeues a still-pending transfer and synthesizes a completion
	// with Err = ErrCancelled. Returns a NotFound error if the transfer
	// already completed.
	Cancel(token Token) error

	MetadataBackend
}

// MetadataBackend groups the optional, directory-tree-oriented operations.
// A backend that has nothing sensible to do for one of these should embed
// UnimplementedBackend and let it answer NotSupported.
type MetadataBackend interface {
	Mkdir(path string, mode uint32) error
	Rmdir(path string) error
	Stat(path string) (StatResult, error)
	Rename(oldPath, newPath string) error
	Mknod(path string) error
}

// UnimplementedBackend answers NotSupported for every MetadataBackend
// method. Concrete backends embed it and override only what they support.
type UnimplementedBackend struct{}

func (UnimplementedBackend) Mkdir(string, uint32) error       { return ErrNotSupported }
func (UnimplementedBackend) Rmdir(string) error                { return ErrNotSupported }
func (UnimplementedBackend) Stat(string) (StatResult, error)   { return StatResult{}, ErrNotSupported }
func (UnimplementedBackend) Rename(string, string) error       { return ErrNotSupported }
func (UnimplementedBackend) Mknod(string) error                { return ErrNotSupported }

// MaxSyncRetryRounds bounds XferSync's short-transfer retry loop (§4.1).
const MaxSyncRetryRounds = 10_000

// SyncViaSubmitPoll implements Backend.XferSync in terms of XferSubmit/Poll
// for backends whose native transfer primitive is already async (e.g. an
// io_uring-backed backend). Backends with a direct pread/pwrite equivalent
// should implement XferSync themselves and loop on short transfers instead.
func SyncViaSubmitPoll(b Backend, h *Handle, dir XferDir, buf []byte, offset int64) (int64, error) {
	type outcome struct {
		n   int64
		err error
	}
	done := make(chan outcome, 1)
	_, err := b.XferSubmit(h, dir, buf, offset, nil, func(r XferResult) {
		done <- outcome{n: r.BytesTransferred, err: r.Err}
	})
	if err != nil {
		return 0, err
	}
	for {
		if _, perr := b.Poll(1); perr != nil {
			return 0, perr
		}
		select {
		case o := <-done:
			return o.n, o.err
		default:
		}
	}
}
