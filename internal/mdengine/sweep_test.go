package mdengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfsbench/dfsbench/core"
)

func TestVerifyTreeRemovedSkipsNonPosixBackends(t *testing.T) {
	backend := core.NewMockBackend()
	p := baseParams()
	leftover, err := VerifyTreeRemoved(backend, p)
	require.NoError(t, err)
	assert.Nil(t, leftover)
}
