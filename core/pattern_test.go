package core

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimestampPatternRoundtrip(t *testing.T) {
	buf := make([]byte, 8*16)
	GenerateTimestamp(buf, 3, 100)
	assert.Equal(t, 0, VerifyTimestamp(buf, 3, 100))
}

func TestTimestampPatternDetectsCorruption(t *testing.T) {
	buf := make([]byte, 8*16)
	GenerateTimestamp(buf, 3, 100)
	buf[0] ^= 0xFF
	assert.Equal(t, 1, VerifyTimestamp(buf, 3, 100))
}

func TestTimestampPatternDetectsStaleRank(t *testing.T) {
	buf := make([]byte, 8*16)
	GenerateTimestamp(buf, 3, 100)
	assert.Equal(t, 16, VerifyTimestamp(buf, 4, 100))
}

func TestOffsetPatternRoundtrip(t *testing.T) {
	buf := make([]byte, 8*offsetStampStride*3)
	GenerateOffset(buf, 2, 100, 4096)
	assert.Equal(t, 0, VerifyOffset(buf, 2, 100, 4096))
}

func TestOffsetPatternBaseIsTimestampBetweenStamps(t *testing.T) {
	buf := make([]byte, 8*offsetStampStride*2)
	GenerateOffset(buf, 1, 7, 0)
	// word at offsetStampStride+1 was never stamped; it should carry the
	// Timestamp base rather than being left zero.
	base := buf[(offsetStampStride+1)*8 : (offsetStampStride+1)*8+8]
	want := make([]byte, 8)
	word := (uint64(uint32(1)) << 32) | uint64(7+uint32(offsetStampStride+1))
	binary.LittleEndian.PutUint64(want, word)
	assert.Equal(t, want, base)
	assert.Equal(t, 0, VerifyOffset(buf, 1, 7, 0))
}

func TestOffsetPatternDetectsCorruptionInStampedWord(t *testing.T) {
	buf := make([]byte, 8*offsetStampStride*2)
	GenerateOffset(buf, 1, 3, 8192)
	buf[0] ^= 0xFF
	assert.Equal(t, 1, VerifyOffset(buf, 1, 3, 8192))
}

func TestOffsetPatternDetectsCorruptionBetweenStamps(t *testing.T) {
	buf := make([]byte, 8*offsetStampStride*2)
	GenerateOffset(buf, 1, 3, 8192)
	mid := (offsetStampStride + 5) * 8
	buf[mid] ^= 0xFF
	assert.Equal(t, 1, VerifyOffset(buf, 1, 3, 8192))
}

func TestGenerateDispatchNoneIsNoop(t *testing.T) {
	buf := make([]byte, 64)
	Generate(PatternNone, buf, 1, 1, 1)
	for _, b := range buf {
		assert.Zero(t, b)
	}
	assert.Equal(t, 0, Verify(PatternNone, buf, 1, 1, 1))
}
