// Package benchfs implements core.Backend over an embedded buntdb
// key-value store: every file's bytes live under its path as a single
// value, letting the benchmark exercise a KV-store-backed "file system"
// the way a real object-store-fronting gateway would, without needing a
// live network service.
package benchfs

import (
	"encoding/base64"
	"strings"
	"sync"

	"github.com/tidwall/buntdb"

	"github.com/dfsbench/dfsbench/core"
)

// Backend is the buntdb-backed core.Backend implementation.
type Backend struct {
	core.UnimplementedBackend

	mu  sync.Mutex
	db  *buntdb.DB
	dirs map[string]bool

	completed []completedXfer
}

type completedXfer struct {
	result   core.XferResult
	callback core.XferCallback
}

type handleState struct {
	path string
}

const dirMarker = "\x00dir\x00"

// New creates an unconfigured benchfs backend; Configure opens the
// underlying buntdb database before any operation runs.
func New() *Backend {
	return &Backend{dirs: map[string]bool{"/": true}}
}

func (b *Backend) Name() string { return "benchfs" }

// Configure opens the buntdb database at options.registry (mdtest's own
// --benchfs.registry=/tmp flag naming), or an ephemeral in-memory store
// when unset.
func (b *Backend) Configure(opts *core.OptionBundle) error {
	path := ":memory:"
	if opts != nil {
		if v, ok := opts.Get("registry"); ok && v != "" {
			path = v
		}
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return core.Wrap("configure", err)
	}
	b.db = db
	return nil
}

// Shutdown closes the underlying buntdb handle. Not part of core.Backend;
// callers invoke it explicitly once a run finishes.
func (b *Backend) Shutdown() error {
	return b.db.Close()
}

func (b *Backend) get(path string) (string, bool) {
	var val string
	var found bool
	b.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(path)
		if err == nil {
			val, found = v, true
		}
		return nil
	})
	return val, found
}

func (b *Backend) set(path, value string) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(path, value, nil)
		return err
	})
}

func (b *Backend) Create(path string, flags core.OpenFlag) (*core.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.get(path); !exists || flags.Has(core.Truncate) {
		if err := b.set(path, ""); err != nil {
			return nil, core.Wrap("create", err)
		}
	}
	return core.NewHandle(b.Name(), &handleState{path: path}), nil
}

func (b *Backend) Open(path string, _ core.OpenFlag) (*core.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.get(path); !exists {
		return nil, core.NewError("open", core.CodeNotFound, path)
	}
	return core.NewHandle(b.Name(), &handleState{path: path}), nil
}

func (b *Backend) Close(*core.Handle) error { return nil }

func (b *Backend) Delete(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(path)
		return err
	})
	if err == buntdb.ErrNotFound {
		return core.NewError("delete", core.CodeNotFound, path)
	}
	if err != nil {
		return core.Wrap("delete", err)
	}
	return nil
}

func (b *Backend) Fsync(*core.Handle) error { return nil }

func (b *Backend) decodedSize(path string) (int64, bool) {
	raw, ok := b.get(path)
	if !ok {
		return 0, false
	}
	if raw == "" {
		return 0, true
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return 0, true
	}
	return int64(len(data)), true
}

func (b *Backend) GetFileSize(path string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	size, ok := b.decodedSize(path)
	if !ok {
		return 0, core.NewError("get_file_size", core.CodeNotFound, path)
	}
	return size, nil
}

func (b *Backend) Access(path string, _ int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.get(path); ok {
		return true, nil
	}
	return b.dirs[path], nil
}

func (b *Backend) Mkdir(path string, _ uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirs[path] = true
	return b.set(path+dirMarker, "")
}

func (b *Backend) Rmdir(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	hasChildren := false
	b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(path+"/*", func(key, _ string) bool {
			if !strings.HasSuffix(key, dirMarker) {
				hasChildren = true
				return false
			}
			return true
		})
	})
	if hasChildren {
		return core.NewError("rmdir", core.CodeInvalidArgument, "directory not empty")
	}
	delete(b.dirs, path)
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(path + dirMarker)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

func (b *Backend) Stat(path string) (core.StatResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if size, ok := b.decodedSize(path); ok {
		return core.StatResult{Size: size}, nil
	}
	if b.dirs[path] {
		return core.StatResult{Mode: 1 << 31}, nil
	}
	return core.StatResult{}, core.NewError("stat", core.CodeNotFound, path)
}

func (b *Backend) Rename(oldPath, newPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	val, ok := b.get(oldPath)
	if !ok {
		if b.dirs[oldPath] {
			delete(b.dirs, oldPath)
			b.dirs[newPath] = true
			return nil
		}
		return core.NewError("rename", core.CodeNotFound, oldPath)
	}
	if err := b.set(newPath, val); err != nil {
		return core.Wrap("rename", err)
	}
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(oldPath)
		return err
	})
}

func (b *Backend) Mknod(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.get(path); !exists {
		return core.Wrap("mknod", b.set(path, ""))
	}
	return nil
}

func (b *Backend) XferSync(h *core.Handle, dir core.XferDir, buf []byte, offset int64) (int64, error) {
	hs := h.Inner().(*handleState)
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, _ := b.get(hs.path)
	var data []byte
	if raw != "" {
		data, _ = base64.StdEncoding.DecodeString(raw)
	}

	if dir == core.Write {
		end := offset + int64(len(buf))
		if end > int64(len(data)) {
			grown := make([]byte, end)
			copy(grown, data)
			data = grown
		}
		copy(data[offset:], buf)
		if err := b.set(hs.path, base64.StdEncoding.EncodeToString(data)); err != nil {
			return 0, core.Wrap("xfer_sync", err)
		}
		return int64(len(buf)), nil
	}

	if offset >= int64(len(data)) {
		return 0, nil
	}
	n := copy(buf, data[offset:])
	return int64(n), nil
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

func (b *Backend) Cancel(core.Token) error {
	return core.NewError("cancel", core.CodeNotFound, "no such pending transfer")
}
