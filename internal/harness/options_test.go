package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBackendOptionsGroupsByDiscoveredPrefix(t *testing.T) {
	argv := []string{
		"mdtest-bench", "--api", "benchfs",
		"--benchfs.registry=/tmp/registry.db",
		"--uring.entries", "64",
		"--test-dir", "/data",
	}

	bundles, remaining := ExtractBackendOptions(argv)

	require.Contains(t, bundles, "benchfs")
	v, ok := bundles["benchfs"].Get("registry")
	require.True(t, ok)
	assert.Equal(t, "/tmp/registry.db", v)

	require.Contains(t, bundles, "uring")
	v, ok = bundles["uring"].Get("entries")
	require.True(t, ok)
	assert.Equal(t, "64", v)

	assert.Equal(t, []string{"mdtest-bench", "--api", "benchfs", "--test-dir", "/data"}, remaining)
}

func TestExtractBackendOptionsReturnsEmptyMapWhenNoDottedFlags(t *testing.T) {
	argv := []string{"ior-bench", "--api", "posix", "--block-size", "1m"}
	bundles, remaining := ExtractBackendOptions(argv)
	assert.Empty(t, bundles)
	assert.Equal(t, argv, remaining)
}
