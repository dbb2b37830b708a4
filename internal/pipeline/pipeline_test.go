package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfsbench/dfsbench/core"
)

func TestPipelineWriteThenReadConservation(t *testing.T) {
	b := core.NewMockBackend()
	h, err := b.Create("/f", core.Create|core.ReadWrite)
	require.NoError(t, err)

	const transferSize = 64
	const total = 10

	wp := New(b, h, core.Write, 4, transferSize)
	defer wp.Release()

	wr := wp.Run(total, func(i int64) int64 { return i * transferSize }, func(buf []byte, offset int64) {
		core.GenerateTimestamp(buf, 1, uint32(offset))
	}, nil, nil)

	require.NoError(t, wr.Err)
	assert.EqualValues(t, total, wr.Completed)
	assert.EqualValues(t, total*transferSize, wr.TotalBytes)

	rp := New(b, h, core.Read, 4, transferSize)
	defer rp.Release()

	var mismatches int64
	rr := rp.Run(total, func(i int64) int64 { return i * transferSize }, nil, func(buf []byte, offset int64) int64 {
		n := int64(core.VerifyTimestamp(buf, 1, uint32(offset)))
		mismatches += n
		return n
	}, nil)
	require.NoError(t, rr.Err)
	assert.EqualValues(t, total, rr.Completed)
	assert.EqualValues(t, total*transferSize, rr.TotalBytes)
	assert.EqualValues(t, 0, rr.Mismatches)
	assert.EqualValues(t, 0, mismatches)
}

func TestPipelineReadVerifyDetectsCorruption(t *testing.T) {
	b := core.NewMockBackend()
	h, err := b.Create("/f4", core.Create|core.ReadWrite)
	require.NoError(t, err)

	const transferSize = 64
	const total = 4

	wp := New(b, h, core.Write, 2, transferSize)
	wr := wp.Run(total, func(i int64) int64 { return i * transferSize }, func(buf []byte, offset int64) {
		core.GenerateTimestamp(buf, 3, 7)
	}, nil, nil)
	wp.Release()
	require.NoError(t, wr.Err)

	rp := New(b, h, core.Read, 2, transferSize)
	defer rp.Release()

	rr := rp.Run(total, func(i int64) int64 { return i * transferSize }, nil, func(buf []byte, offset int64) int64 {
		return int64(core.VerifyTimestamp(buf, 9, 7))
	}, nil)
	require.NoError(t, rr.Err)
	assert.Greater(t, rr.Mismatches, int64(0))
}

func TestPipelineStonewallStopsFillEarly(t *testing.T) {
	b := core.NewMockBackend()
	h, err := b.Create("/f2", core.Create|core.ReadWrite)
	require.NoError(t, err)

	p := New(b, h, core.Write, 2, 16)
	defer p.Release()

	fired := 0
	stonewall := func() bool {
		fired++
		return fired > 3
	}

	r := p.Run(100, func(i int64) int64 { return i * 16 }, nil, nil, stonewall)
	require.NoError(t, r.Err)
	assert.Less(t, r.Completed, int64(100))
}

func TestPipelineSubmittedEqualsCompletedWithoutError(t *testing.T) {
	b := core.NewMockBackend()
	h, err := b.Create("/f3", core.Create|core.ReadWrite)
	require.NoError(t, err)
	b.FailOpen = nil

	p := New(b, h, core.Write, 4, 32)
	defer p.Release()

	r := p.Run(8, func(i int64) int64 { return i * 32 }, nil, nil, nil)
	require.NoError(t, r.Err)
	assert.EqualValues(t, 8, r.Completed)
}
