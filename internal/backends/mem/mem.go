// Package mem implements core.Backend entirely in process memory, for
// running the engines without touching a real file system — useful for
// CI, for the --use-existing sanity tests, and as a speed-of-light
// baseline to compare a real backend's overhead against.
package mem

import (
	"sort"
	"strings"
	"sync"

	"github.com/dfsbench/dfsbench/core"
)

// shardSize is the byte span each entry of memFile.shards covers, the same
// way the teacher's block-device Memory backend shards a single device's
// byte range; here each named file gets its own shard set. The shard locks
// are allocated as a file grows, but readAt and writeAt do not take them:
// every transfer on a file serializes on memFile.mu.
const shardSize = 64 * 1024

type memFile struct {
	mu     sync.Mutex // guards data/shards together; growth invalidates shard count
	data   []byte
	shards []sync.RWMutex
}

func newMemFile() *memFile {
	return &memFile{}
}

func (f *memFile) ensureShards() {
	want := (len(f.data) + shardSize - 1) / shardSize
	if want == 0 {
		want = 1
	}
	if len(f.shards) < want {
		f.shards = make([]sync.RWMutex, want)
	}
}

func (f *memFile) shardRange(off, length int) (int, int) {
	start := off / shardSize
	end := (off + length - 1) / shardSize
	if end < start {
		end = start
	}
	return start, end
}

func (f *memFile) readAt(p []byte, off int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if off >= int64(len(f.data)) {
		return 0, nil
	}
	available := int64(len(f.data)) - off
	if int64(len(p)) > available {
		p = p[:available]
	}
	n := copy(p, f.data[off:off+int64(len(p))])
	return int64(n), nil
}

func (f *memFile) writeAt(p []byte, off int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
		f.ensureShards()
	}
	n := copy(f.data[off:end], p)
	return int64(n), nil
}

func (f *memFile) size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.data))
}

type completedXfer struct {
	result   core.XferResult
	callback core.XferCallback
}

// Backend is the in-memory core.Backend implementation. Transfers are
// already synchronous in RAM, so the async half of the contract just
// executes inline at Submit time and queues the result for Poll to
// dispatch, the same shortcut core.MockBackend takes.
type Backend struct {
	core.UnimplementedBackend

	mu        sync.Mutex
	files     map[string]*memFile
	dirs      map[string]bool
	completed []completedXfer
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{
		files: map[string]*memFile{},
		dirs:  map[string]bool{"/": true},
	}
}

func (b *Backend) Name() string { return "mem" }

func (b *Backend) Configure(*core.OptionBundle) error { return nil }

type handleState struct {
	path string
}

func (b *Backend) Create(path string, flags core.OpenFlag) (*core.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.files[path]
	if !ok || flags.Has(core.Truncate) {
		f = newMemFile()
		b.files[path] = f
	}
	return core.NewHandle(b.Name(), &handleState{path: path}), nil
}

func (b *Backend) Open(path string, flags core.OpenFlag) (*core.Handle, error) {
	b.mu.Lock()
	f, ok := b.files[path]
	b.mu.Unlock()
	if !ok {
		return nil, core.NewError("open", core.CodeNotFound, path)
	}
	_ = f
	return core.NewHandle(b.Name(), &handleState{path: path}), nil
}

func (b *Backend) Close(*core.Handle) error { return nil }

func (b *Backend) Delete(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[path]; !ok {
		return core.NewError("delete", core.CodeNotFound, path)
	}
	delete(b.files, path)
	return nil
}

func (b *Backend) Fsync(*core.Handle) error { return nil }

func (b *Backend) GetFileSize(path string) (int64, error) {
	b.mu.Lock()
	f, ok := b.files[path]
	b.mu.Unlock()
	if !ok {
		return 0, core.NewError("get_file_size", core.CodeNotFound, path)
	}
	return f.size(), nil
}

func (b *Backend) Access(path string, _ int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, isFile := b.files[path]
	_, isDir := b.dirs[path]
	return isFile || isDir, nil
}

func (b *Backend) Mkdir(path string, _ uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirs[path] = true
	return nil
}

func (b *Backend) Rmdir(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for p := range b.files {
		if strings.HasPrefix(p, path+"/") {
			return core.NewError("rmdir", core.CodeInvalidArgument, "directory not empty")
		}
	}
	if !b.dirs[path] {
		return core.NewError("rmdir", core.CodeNotFound, path)
	}
	delete(b.dirs, path)
	return nil
}

func (b *Backend) Stat(path string) (core.StatResult, error) {
	b.mu.Lock()
	f, isFile := b.files[path]
	_, isDir := b.dirs[path]
	b.mu.Unlock()
	if isFile {
		return core.StatResult{Size: f.size()}, nil
	}
	if isDir {
		return core.StatResult{Mode: 1 << 31}, nil
	}
	return core.StatResult{}, core.NewError("stat", core.CodeNotFound, path)
}

func (b *Backend) Rename(oldPath, newPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f, ok := b.files[oldPath]; ok {
		b.files[newPath] = f
		delete(b.files, oldPath)
		return nil
	}
	if b.dirs[oldPath] {
		b.dirs[newPath] = true
		delete(b.dirs, oldPath)
		return nil
	}
	return core.NewError("rename", core.CodeNotFound, oldPath)
}

func (b *Backend) Mknod(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[path]; !ok {
		b.files[path] = newMemFile()
	}
	return nil
}

func (b *Backend) fileFor(h *core.Handle) (*memFile, string, error) {
	hs := h.Inner().(*handleState)
	b.mu.Lock()
	f, ok := b.files[hs.path]
	b.mu.Unlock()
	if !ok {
		return nil, "", core.NewError("xfer", core.CodeNotFound, hs.path)
	}
	return f, hs.path, nil
}

func (b *Backend) XferSync(h *core.Handle, dir core.XferDir, buf []byte, offset int64) (int64, error) {
	f, _, err := b.fileFor(h)
	if err != nil {
		return 0, err
	}
	if dir == core.Write {
		return f.writeAt(buf, offset)
	}
	return f.readAt(buf, offset)
}

func (b *Backend) XferSubmit(h *core.Handle, dir core.XferDir, buf []byte, offset int64, userData any, callback core.XferCallback) (core.Token, error) {
	n, err := b.XferSync(h, dir, buf, offset)
	tok := core.NextToken()
	b.mu.Lock()
	b.completed = append(b.completed, completedXfer{
		result:   core.XferResult{Token: tok, BytesTransferred: n, Err: err, UserData: userData},
		callback: callback,
	})
	b.mu.Unlock()
	return tok, nil
}

func (b *Backend) Poll(max int) (int, error) {
	b.mu.Lock()
	n := len(b.completed)
	if n > max {
		n = max
	}
	batch := b.completed[:n]
	b.completed = b.completed[n:]
	b.mu.Unlock()
	for _, c := range batch {
		c.callback(c.result)
	}
	return len(batch), nil
}

// Cancel always reports NotFound for this backend: transfers complete
// synchronously at Submit time, so by the time Cancel could be called
// there is nothing left pending to cancel.
func (b *Backend) Cancel(core.Token) error {
	return core.NewError("cancel", core.CodeNotFound, "no such pending transfer")
}

// Entries lists every file and directory path currently tracked, sorted;
// it is not part of core.Backend.
func (b *Backend) Entries() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.files)+len(b.dirs))
	for p := range b.files {
		out = append(out, p)
	}
	for p := range b.dirs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
