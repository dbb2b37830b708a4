package benchfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfsbench/dfsbench/core"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New()
	require.NoError(t, b.Configure(nil))
	t.Cleanup(func() { _ = b.Shutdown() })
	return b
}

func TestBenchfsBackendWriteReadRoundtrip(t *testing.T) {
	b := newTestBackend(t)
	h, err := b.Create("/f", core.Create|core.ReadWrite)
	require.NoError(t, err)

	payload := []byte("the quick brown fox jumps over the lazy dog")
	n, err := b.XferSync(h, core.Write, payload, 0)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)

	out := make([]byte, len(payload))
	n, err = b.XferSync(h, core.Read, out, 0)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)
	assert.Equal(t, payload, out)
}

func TestBenchfsBackendWriteAtOffsetGrowsFile(t *testing.T) {
	b := newTestBackend(t)
	h, err := b.Create("/f", core.Create|core.ReadWrite)
	require.NoError(t, err)

	_, err = b.XferSync(h, core.Write, []byte("tail"), 100)
	require.NoError(t, err)

	size, err := b.GetFileSize("/f")
	require.NoError(t, err)
	assert.EqualValues(t, 104, size)
}

func TestBenchfsBackendDeleteAndStat(t *testing.T) {
	b := newTestBackend(t)
	_, err := b.Create("/a", core.Create|core.ReadWrite)
	require.NoError(t, err)

	size, err := b.GetFileSize("/a")
	require.NoError(t, err)
	assert.Zero(t, size)

	require.NoError(t, b.Delete("/a"))
	_, err = b.GetFileSize("/a")
	assert.True(t, core.Is(err, core.CodeNotFound))
}

func TestBenchfsBackendMkdirRenameRmdir(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.Mkdir("/d", 0o755))

	ok, err := b.Access("/d", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, b.Rename("/d", "/d2"))
	ok, err = b.Access("/d2", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, b.Rmdir("/d2"))
	ok, err = b.Access("/d2", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBenchfsBackendRmdirRejectsNonEmpty(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.Mkdir("/d", 0o755))
	_, err := b.Create("/d/f", core.Create|core.ReadWrite)
	require.NoError(t, err)

	err = b.Rmdir("/d")
	require.Error(t, err)
}

func TestBenchfsBackendAsyncSubmitPoll(t *testing.T) {
	b := newTestBackend(t)
	h, err := b.Create("/f", core.Create|core.ReadWrite)
	require.NoError(t, err)

	done := make(chan core.XferResult, 1)
	_, err = b.XferSubmit(h, core.Write, []byte("hi"), 0, nil, func(r core.XferResult) { done <- r })
	require.NoError(t, err)

	n, err := b.Poll(10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res := <-done
	assert.NoError(t, res.Err)
	assert.EqualValues(t, 2, res.BytesTransferred)
}

func TestBenchfsBackendStatDistinguishesFileAndDir(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.Mkdir("/d", 0o755))
	_, err := b.Create("/f", core.Create|core.ReadWrite)
	require.NoError(t, err)

	dirStat, err := b.Stat("/d")
	require.NoError(t, err)
	assert.NotZero(t, dirStat.Mode)

	fileStat, err := b.Stat("/f")
	require.NoError(t, err)
	assert.Zero(t, fileStat.Mode)
}
