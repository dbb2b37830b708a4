package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfsbench/dfsbench/core"
)

func TestMemBackendWriteReadAcrossShardBoundary(t *testing.T) {
	b := New()
	h, err := b.Create("/f", core.Create|core.ReadWrite)
	require.NoError(t, err)

	payload := make([]byte, shardSize+128)
	for i := range payload {
		payload[i] = byte(i)
	}
	n, err := b.XferSync(h, core.Write, payload, 0)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)

	out := make([]byte, len(payload))
	n, err = b.XferSync(h, core.Read, out, 0)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)
	assert.Equal(t, payload, out)
}

func TestMemBackendDeleteAndStat(t *testing.T) {
	b := New()
	_, err := b.Create("/a", core.Create|core.ReadWrite)
	require.NoError(t, err)
	size, err := b.GetFileSize("/a")
	require.NoError(t, err)
	assert.Zero(t, size)
	require.NoError(t, b.Delete("/a"))
	_, err = b.GetFileSize("/a")
	assert.True(t, core.Is(err, core.CodeNotFound))
}

func TestMemBackendRmdirRejectsNonEmpty(t *testing.T) {
	b := New()
	require.NoError(t, b.Mkdir("/d", 0o755))
	_, err := b.Create("/d/f", core.Create|core.ReadWrite)
	require.NoError(t, err)
	err = b.Rmdir("/d")
	require.Error(t, err)
}

func TestMemBackendAsyncSubmitPoll(t *testing.T) {
	b := New()
	h, err := b.Create("/f2", core.Create|core.ReadWrite)
	require.NoError(t, err)
	done := make(chan core.XferResult, 1)
	_, err = b.XferSubmit(h, core.Write, []byte("hi"), 0, nil, func(r core.XferResult) { done <- r })
	require.NoError(t, err)
	n, err := b.Poll(10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	r := <-done
	assert.NoError(t, r.Err)
	assert.EqualValues(t, 2, r.BytesTransferred)
}
