package uring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfsbench/dfsbench/core"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New()
	opts, _ := core.ExtractOptions("uring", []string{"prog", "--uring.entries=32"})
	if err := b.Configure(opts); err != nil {
		t.Skipf("io_uring not available in this environment: %v", err)
	}
	t.Cleanup(func() { _ = b.Shutdown() })
	return b
}

func TestUringBackendWriteReadRoundtrip(t *testing.T) {
	b := newTestBackend(t)
	path := filepath.Join(t.TempDir(), "f")

	h, err := b.Create(path, core.Create|core.ReadWrite)
	require.NoError(t, err)
	defer b.Close(h)

	payload := []byte("io_uring roundtrip payload")
	done := make(chan core.XferResult, 1)
	_, err = b.XferSubmit(h, core.Write, payload, 0, nil, func(r core.XferResult) { done <- r })
	require.NoError(t, err)

	for {
		n, err := b.Poll(8)
		require.NoError(t, err)
		if n > 0 {
			break
		}
	}
	res := <-done
	require.NoError(t, res.Err)
	assert.EqualValues(t, len(payload), res.BytesTransferred)

	out := make([]byte, len(payload))
	n, err := b.XferSync(h, core.Read, out, 0)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)
	assert.Equal(t, payload, out)
}

func TestUringBackendDelegatesMetadataToPosix(t *testing.T) {
	b := newTestBackend(t)
	dir := filepath.Join(t.TempDir(), "d")
	require.NoError(t, b.Mkdir(dir, 0o755))

	ok, err := b.Access(dir, int(os.O_RDONLY))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, b.Rmdir(dir))
}

func TestUringBackendCancelUnknownTokenFails(t *testing.T) {
	b := newTestBackend(t)
	err := b.Cancel(core.Token(999999))
	assert.Error(t, err)
}
