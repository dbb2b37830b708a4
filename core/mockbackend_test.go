package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockBackendCreateWriteReadRoundtrip(t *testing.T) {
	b := NewMockBackend()
	h, err := b.Create("/a/f1", Create|ReadWrite)
	require.NoError(t, err)

	n, err := b.XferSync(h, Write, []byte("hello world"), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 11, n)

	out := make([]byte, 11)
	n, err = b.XferSync(h, Read, out, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 11, n)
	assert.Equal(t, "hello world", string(out))

	size, err := b.GetFileSize("/a/f1")
	require.NoError(t, err)
	assert.EqualValues(t, 11, size)
}

func TestMockBackendOpenMissingFails(t *testing.T) {
	b := NewMockBackend()
	_, err := b.Open("/missing", ReadOnly)
	require.Error(t, err)
	assert.True(t, Is(err, CodeNotFound))
}

func TestMockBackendMkdirStatRmdir(t *testing.T) {
	b := NewMockBackend()
	require.NoError(t, b.Mkdir("/dirs/a", 0o755))
	st, err := b.Stat("/dirs/a")
	require.NoError(t, err)
	assert.NotZero(t, st.Mode)
	require.NoError(t, b.Rmdir("/dirs/a"))
	_, err = b.Stat("/dirs/a")
	assert.True(t, Is(err, CodeNotFound))
}

func TestMockBackendAsyncSubmitPoll(t *testing.T) {
	b := NewMockBackend()
	h, err := b.Create("/a/f2", Create|ReadWrite)
	require.NoError(t, err)

	got := make(chan XferResult, 1)
	_, err = b.XferSubmit(h, Write, []byte("payload"), 0, "tag", func(r XferResult) { got <- r })
	require.NoError(t, err)

	n, err := b.Poll(10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	r := <-got
	assert.NoError(t, r.Err)
	assert.EqualValues(t, 7, r.BytesTransferred)
	assert.Equal(t, "tag", r.UserData)
}

func TestSyncViaSubmitPollDelegatesToAsyncPath(t *testing.T) {
	b := NewMockBackend()
	h, err := b.Create("/a/f3", Create|ReadWrite)
	require.NoError(t, err)

	n, err := SyncViaSubmitPoll(b, h, Write, []byte("abc"), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestMockBackendUnimplementedMknodIsOverridden(t *testing.T) {
	b := NewMockBackend()
	require.NoError(t, b.Mknod("/a/node"))
	ok, err := b.Access("/a/node", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}
