package dataengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfsbench/dfsbench/core"
	"github.com/dfsbench/dfsbench/internal/comm"
)

func baseParams() *core.DataParams {
	return &core.DataParams{
		TestDir:      "/t",
		TransferSize: 16,
		BlockSize:    64,
		SegmentCount: 1,
		Repetitions:  1,
		FilePerProc:  true,
		KeepFile:     true,
		Pattern:      core.PatternTimestamp,
		Seed:         7,
	}
}

func TestEngineFilePerProcWriteThenReadConserveBytes(t *testing.T) {
	err := comm.RunLocal(2, func(c *comm.LocalComm) error {
		p := baseParams()
		p.NumTasks = int32(c.Size())
		p.TaskRank = int32(c.Rank())

		backend := core.NewMockBackend()
		require.NoError(t, backend.Mkdir("/t", 0o755))

		e := New(backend, c, p)
		results, err := e.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.EqualValues(t, p.BlockSize, results[0].WriteBytes)
		assert.EqualValues(t, p.BlockSize, results[0].ReadBytes)
		assert.Zero(t, results[0].WriteCheckErrs)
		return nil
	})
	require.NoError(t, err)
}

func TestEngineWriteCheckDetectsNoCorruption(t *testing.T) {
	err := comm.RunLocal(1, func(c *comm.LocalComm) error {
		p := baseParams()
		p.NumTasks = 1
		p.WriteCheck = true

		backend := core.NewMockBackend()
		require.NoError(t, backend.Mkdir("/t", 0o755))

		e := New(backend, c, p)
		results, err := e.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Zero(t, results[0].WriteCheckErrs)
		return nil
	})
	require.NoError(t, err)
}

func TestEngineReadCheckSyncPathDetectsNoCorruption(t *testing.T) {
	err := comm.RunLocal(1, func(c *comm.LocalComm) error {
		p := baseParams()
		p.NumTasks = 1
		p.ReadCheck = true

		backend := core.NewMockBackend()
		require.NoError(t, backend.Mkdir("/t", 0o755))

		e := New(backend, c, p)
		results, err := e.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Zero(t, results[0].ReadCheckErrs)
		return nil
	})
	require.NoError(t, err)
}

func TestEngineReadCheckAsyncPathDetectsNoCorruption(t *testing.T) {
	err := comm.RunLocal(1, func(c *comm.LocalComm) error {
		p := baseParams()
		p.NumTasks = 1
		p.ReadCheck = true
		p.QueueDepth = 4

		backend := core.NewMockBackend()
		require.NoError(t, backend.Mkdir("/t", 0o755))

		e := New(backend, c, p)
		results, err := e.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Zero(t, results[0].ReadCheckErrs)
		return nil
	})
	require.NoError(t, err)
}

func TestEngineSharedFileSequentialOffsets(t *testing.T) {
	err := comm.RunLocal(4, func(c *comm.LocalComm) error {
		p := baseParams()
		p.FilePerProc = false
		p.NumTasks = int32(c.Size())
		p.TaskRank = int32(c.Rank())
		p.BlockSize = 16384
		p.TransferSize = 4096
		p.SegmentCount = 2

		backend := core.NewMockBackend()
		require.NoError(t, backend.Mkdir("/t", 0o755))

		e := New(backend, c, p)
		_, err := e.Run(context.Background())
		return err
	})
	require.NoError(t, err)
}

func TestPretendRankWrapsNegativeOffsetIntoRange(t *testing.T) {
	p := &core.DataParams{NumTasks: 4, TaskRank: 1}
	assert.EqualValues(t, 0, p.PretendRank(-1))
	assert.EqualValues(t, 2, p.PretendRank(1))
	assert.EqualValues(t, 1, p.PretendRank(0))
}

func TestOffsetPlanRandomFilePerProcIsPermutationOfSequential(t *testing.T) {
	p := &core.DataParams{TransferSize: 4, BlockSize: 40, SegmentCount: 1, FilePerProc: true, RandomOrder: true, NumTasks: 1}
	plan := newOffsetPlan(p, 0, 42)
	seen := map[int64]bool{}
	for i := int64(0); i < p.BlockCount(); i++ {
		seen[plan.offset(i)] = true
	}
	assert.Len(t, seen, int(p.BlockCount()))
}
