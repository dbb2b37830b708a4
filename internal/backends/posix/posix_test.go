package posix

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfsbench/dfsbench/core"
)

func newConfigured(t *testing.T) *Backend {
	t.Helper()
	b := New()
	require.NoError(t, b.Configure(nil))
	return b
}

func TestPosixBackendCreateWriteReadRoundtrip(t *testing.T) {
	b := newConfigured(t)
	path := filepath.Join(t.TempDir(), "f")

	h, err := b.Create(path, core.Create|core.ReadWrite)
	require.NoError(t, err)

	payload := []byte("the quick brown fox")
	n, err := b.XferSync(h, core.Write, payload, 0)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)

	out := make([]byte, len(payload))
	n, err = b.XferSync(h, core.Read, out, 0)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)
	assert.Equal(t, payload, out)

	require.NoError(t, b.Close(h))
}

func TestPosixBackendStatAndDelete(t *testing.T) {
	b := newConfigured(t)
	path := filepath.Join(t.TempDir(), "f")

	h, err := b.Create(path, core.Create|core.ReadWrite)
	require.NoError(t, err)
	_, err = b.XferSync(h, core.Write, []byte("12345"), 0)
	require.NoError(t, err)
	require.NoError(t, b.Close(h))

	size, err := b.GetFileSize(path)
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	st, err := b.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 5, st.Size)

	require.NoError(t, b.Delete(path))
	_, err = b.GetFileSize(path)
	assert.True(t, core.Is(err, core.CodeNotFound))
}

func TestPosixBackendMkdirRenameRmdir(t *testing.T) {
	b := newConfigured(t)
	base := t.TempDir()
	dir := filepath.Join(base, "d")
	renamed := filepath.Join(base, "d2")

	require.NoError(t, b.Mkdir(dir, 0o755))
	require.NoError(t, b.Rename(dir, renamed))
	require.NoError(t, b.Rmdir(renamed))
}

func TestPosixBackendAsyncSubmitPoll(t *testing.T) {
	b := newConfigured(t)
	path := filepath.Join(t.TempDir(), "f")

	h, err := b.Create(path, core.Create|core.ReadWrite)
	require.NoError(t, err)

	done := make(chan core.XferResult, 1)
	_, err = b.XferSubmit(h, core.Write, []byte("async"), 0, nil, func(r core.XferResult) { done <- r })
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := b.Poll(10)
		require.NoError(t, err)
		return n == 1
	}, time.Second, 5*time.Millisecond)

	r := <-done
	assert.NoError(t, r.Err)
	assert.EqualValues(t, 5, r.BytesTransferred)
}
