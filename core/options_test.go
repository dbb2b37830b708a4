package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractOptionsEqualsForm(t *testing.T) {
	argv := []string{"prog", "--posix.direct=true", "--other", "x"}
	bundle, remaining := ExtractOptions("posix", argv)
	v, ok := bundle.Get("direct")
	require.True(t, ok)
	assert.Equal(t, "true", v)
	assert.Equal(t, []string{"prog", "--other", "x"}, remaining)
}

func TestExtractOptionsSpaceForm(t *testing.T) {
	argv := []string{"prog", "--s3.bucket", "mybucket", "--s3.region", "us-east-1"}
	bundle, remaining := ExtractOptions("s3", argv)
	assert.Equal(t, "mybucket", bundle.GetOr("bucket", ""))
	assert.Equal(t, "us-east-1", bundle.GetOr("region", ""))
	assert.Equal(t, []string{"prog"}, remaining)
}

func TestExtractOptionsBareFlag(t *testing.T) {
	argv := []string{"prog", "--benchfs.inmemory", "--api", "POSIX"}
	bundle, remaining := ExtractOptions("benchfs", argv)
	assert.True(t, bundle.Bool("inmemory"))
	assert.Equal(t, []string{"prog", "--api", "POSIX"}, remaining)
}

func TestExtractOptionsBareFlagFollowedByAnotherFlag(t *testing.T) {
	argv := []string{"prog", "--posix.odirect", "--posix.fsync"}
	bundle, _ := ExtractOptions("posix", argv)
	assert.Equal(t, 2, bundle.Len())
	assert.True(t, bundle.Bool("odirect"))
	assert.True(t, bundle.Bool("fsync"))
}

func TestExtractOptionsIgnoresOtherPrefixes(t *testing.T) {
	argv := []string{"prog", "--s3.bucket=x", "--posix.direct=true"}
	bundle, remaining := ExtractOptions("s3", argv)
	assert.Equal(t, 1, bundle.Len())
	assert.Equal(t, []string{"prog", "--posix.direct=true"}, remaining)
}

func TestBoolFalseValues(t *testing.T) {
	bundle, _ := ExtractOptions("x", []string{"prog", "--x.enabled=false", "--x.count=0"})
	assert.False(t, bundle.Bool("enabled"))
	assert.False(t, bundle.Bool("count"))
	assert.False(t, bundle.Bool("missing"))
}
