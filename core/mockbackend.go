package core

import "sync"

// MockBackend is a minimal in-memory Backend used by engine-level tests. It
// keeps every "file" as a byte slice in a map guarded by one mutex; it is not
// meant to be fast, only deterministic and easy to reason about.
//
// Adapted from the teacher's testing.go mock device.
type MockBackend struct {
	UnimplementedBackend

	mu       sync.Mutex
	files    map[string][]byte
	dirs     map[string]bool
	pending  map[Token]pendingXfer
	FailOpen error // when non-nil, Open/Create return it instead of succeeding
}

type pendingXfer struct {
	result XferResult
	cb     XferCallback
}

type mockHandle struct {
	path string
}

func NewMockBackend() *MockBackend {
	return &MockBackend{
		files:   map[string][]byte{},
		dirs:    map[string]bool{"/": true},
		pending: map[Token]pendingXfer{},
	}
}

func (m *MockBackend) Name() string { return "mock" }

func (m *MockBackend) Configure(*OptionBundle) error { return nil }

func (m *MockBackend) Create(path string, flags OpenFlag) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOpen != nil {
		return nil, m.FailOpen
	}
	if _, exists := m.files[path]; !exists || flags.Has(Truncate) {
		m.files[path] = nil
	}
	return NewHandle(m.Name(), &mockHandle{path: path}), nil
}

func (m *MockBackend) Open(path string, flags OpenFlag) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOpen != nil {
		return nil, m.FailOpen
	}
	if _, ok := m.files[path]; !ok {
		return nil, NewError("open", CodeNotFound, path)
	}
	return NewHandle(m.Name(), &mockHandle{path: path}), nil
}

func (m *MockBackend) Close(*Handle) error { return nil }

func (m *MockBackend) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return NewError("delete", CodeNotFound, path)
	}
	delete(m.files, path)
	return nil
}

func (m *MockBackend) Fsync(*Handle) error { return nil }

func (m *MockBackend) GetFileSize(path string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return 0, NewError("get_file_size", CodeNotFound, path)
	}
	return int64(len(data)), nil
}

func (m *MockBackend) Access(path string, _ int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, isFile := m.files[path]
	_, isDir := m.dirs[path]
	return isFile || isDir, nil
}

func (m *MockBackend) Mkdir(path string, _ uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[path] = true
	return nil
}

func (m *MockBackend) Rmdir(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirs[path] {
		return NewError("rmdir", CodeNotFound, path)
	}
	delete(m.dirs, path)
	return nil
}

func (m *MockBackend) Stat(path string) (StatResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.files[path]; ok {
		return StatResult{Size: int64(len(data))}, nil
	}
	if m.dirs[path] {
		return StatResult{Mode: 1 << 31}, nil // high bit flags directory
	}
	return StatResult{}, NewError("stat", CodeNotFound, path)
}

func (m *MockBackend) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.files[oldPath]; ok {
		m.files[newPath] = data
		delete(m.files, oldPath)
		return nil
	}
	if m.dirs[oldPath] {
		m.dirs[newPath] = true
		delete(m.dirs, oldPath)
		return nil
	}
	return NewError("rename", CodeNotFound, oldPath)
}

func (m *MockBackend) Mknod(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = nil
	return nil
}

func (m *MockBackend) XferSync(h *Handle, dir XferDir, buf []byte, offset int64) (int64, error) {
	hh := h.Inner().(*mockHandle)
	m.mu.Lock()
	defer m.mu.Unlock()
	data := m.files[hh.path]
	if dir == Write {
		end := offset + int64(len(buf))
		if end > int64(len(data)) {
			grown := make([]byte, end)
			copy(grown, data)
			data = grown
		}
		copy(data[offset:], buf)
		m.files[hh.path] = data
		return int64(len(buf)), nil
	}
	if offset >= int64(len(data)) {
		return 0, nil
	}
	n := copy(buf, data[offset:])
	return int64(n), nil
}

func (m *MockBackend) XferSubmit(h *Handle, dir XferDir, buf []byte, offset int64, userData any, callback XferCallback) (Token, error) {
	n, err := m.XferSync(h, dir, buf, offset)
	tok := NextToken()
	m.mu.Lock()
	m.pending[tok] = pendingXfer{
		result: XferResult{Token: tok, BytesTransferred: n, Err: err, UserData: userData},
		cb:     callback,
	}
	m.mu.Unlock()
	return tok, nil
}

func (m *MockBackend) Poll(max int) (int, error) {
	m.mu.Lock()
	dispatched := make([]pendingXfer, 0, max)
	for tok, p := range m.pending {
		if len(dispatched) >= max {
			break
		}
		dispatched = append(dispatched, p)
		delete(m.pending, tok)
	}
	m.mu.Unlock()
	for _, p := range dispatched {
		p.cb(p.result)
	}
	return len(dispatched), nil
}

func (m *MockBackend) Cancel(token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[token]
	if !ok {
		return NewError("cancel", CodeNotFound, "no such pending transfer")
	}
	p.result = XferResult{Token: token, Err: ErrCancelled, UserData: p.result.UserData}
	m.pending[token] = p
	return nil
}
