package comm

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierReleasesAllRanks(t *testing.T) {
	var counter int64
	err := RunLocal(5, func(c *LocalComm) error {
		atomic.AddInt64(&counter, 1)
		return c.Barrier(context.Background())
	})
	require.NoError(t, err)
	assert.EqualValues(t, 5, counter)
}

func TestBroadcastBoolAgreesAcrossRanks(t *testing.T) {
	results := make([]bool, 4)
	err := RunLocal(4, func(c *LocalComm) error {
		v, err := c.BroadcastBool(context.Background(), 0, c.Rank() == 0)
		if err != nil {
			return err
		}
		results[c.Rank()] = v
		return nil
	})
	require.NoError(t, err)
	for _, v := range results {
		assert.True(t, v)
	}
}

func TestBroadcastUint64FromRoot(t *testing.T) {
	const want = uint64(0xC0FFEE)
	results := make([]uint64, 6)
	err := RunLocal(6, func(c *LocalComm) error {
		var mine uint64
		if c.Rank() == 2 {
			mine = want
		}
		v, err := c.BroadcastUint64(context.Background(), 2, mine)
		if err != nil {
			return err
		}
		results[c.Rank()] = v
		return nil
	})
	require.NoError(t, err)
	for _, v := range results {
		assert.Equal(t, want, v)
	}
}

func TestAllReduceSumInt64(t *testing.T) {
	const n = 8
	results := make([]int64, n)
	err := RunLocal(n, func(c *LocalComm) error {
		sum, err := c.AllReduceSumInt64(context.Background(), int64(c.Rank()+1))
		if err != nil {
			return err
		}
		results[c.Rank()] = sum
		return nil
	})
	require.NoError(t, err)
	want := int64(n * (n + 1) / 2)
	for _, v := range results {
		assert.Equal(t, want, v)
	}
}

func TestAllReduceSumInt64IsReusableAcrossCalls(t *testing.T) {
	const n = 4
	results := make([]int64, n)
	err := RunLocal(n, func(c *LocalComm) error {
		if _, err := c.AllReduceSumInt64(context.Background(), 1); err != nil {
			return err
		}
		second, err := c.AllReduceSumInt64(context.Background(), 10)
		if err != nil {
			return err
		}
		results[c.Rank()] = second
		return nil
	})
	require.NoError(t, err)
	for _, v := range results {
		assert.EqualValues(t, n*10, v)
	}
}

func TestSplitCarvesFirstNRanks(t *testing.T) {
	const world = 6
	const subN = 3
	var memberCount int64
	err := RunLocal(world, func(c *LocalComm) error {
		sub, ok := c.Split(subN)
		if !ok {
			return nil
		}
		atomic.AddInt64(&memberCount, 1)
		return sub.Barrier(context.Background())
	})
	require.NoError(t, err)
	assert.EqualValues(t, subN, memberCount)
}
