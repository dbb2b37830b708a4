package core

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrnoClassification(t *testing.T) {
	cases := []struct {
		errno syscall.Errno
		want  Code
	}{
		{syscall.ENOENT, CodeNotFound},
		{syscall.EACCES, CodePermissionDenied},
		{syscall.EPERM, CodePermissionDenied},
		{syscall.EINVAL, CodeInvalidArgument},
		{syscall.ENOSYS, CodeNotSupported},
		{syscall.EIO, CodeIO},
	}
	for _, c := range cases {
		err := NewErrno("open", c.errno)
		assert.Equal(t, c.want, err.Code)
		assert.Equal(t, c.errno, err.Errno)
	}
}

func TestWrapPreservesErrno(t *testing.T) {
	inner := NewErrno("read", syscall.ENOENT)
	wrapped := Wrap("xfer_sync", inner)
	require.NotNil(t, wrapped)
	assert.Equal(t, CodeNotFound, wrapped.Code)
	assert.Equal(t, syscall.ENOENT, wrapped.Errno)
	assert.Equal(t, "xfer_sync", wrapped.Op)
}

func TestIsHelper(t *testing.T) {
	var err error = NewError("mkdir", CodeNotSupported, "no mkdir here")
	assert.True(t, Is(err, CodeNotSupported))
	assert.False(t, Is(err, CodeIO))
	assert.False(t, Is(nil, CodeIO))
}

func TestErrNotSupportedSentinel(t *testing.T) {
	assert.True(t, Is(ErrNotSupported, CodeNotSupported))
}
