package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackendConstructsEachRegisteredName(t *testing.T) {
	for _, name := range []string{"posix", "mem", "benchfs"} {
		b, err := NewBackend(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, b.Name())
	}
}

func TestNewBackendRejectsUnknownName(t *testing.T) {
	_, err := NewBackend("does-not-exist")
	assert.Error(t, err)
}

func TestShutdownBackendIgnoresBackendsWithoutShutdown(t *testing.T) {
	b, err := NewBackend("mem")
	require.NoError(t, err)
	require.NoError(t, b.Configure(nil))
	assert.NoError(t, ShutdownBackend(b))
}

func TestShutdownBackendInvokesOptionalInterface(t *testing.T) {
	b, err := NewBackend("benchfs")
	require.NoError(t, err)
	require.NoError(t, b.Configure(nil))
	assert.NoError(t, ShutdownBackend(b))
}
