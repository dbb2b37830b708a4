package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSizeAppliesPowerOfOneKiloSuffixes(t *testing.T) {
	cases := map[string]int64{
		"1k":   1024,
		"1m":   1048576,
		"1g":   1073741824,
		"256k": 262144,
		"4":    4,
		"2T":   2 * (1 << 40),
	}
	for in, want := range cases {
		got, err := ParseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseSizeRejectsGarbage(t *testing.T) {
	_, err := ParseSize("abc")
	assert.Error(t, err)
	_, err = ParseSize("")
	assert.Error(t, err)
}
