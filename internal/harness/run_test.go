package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfsbench/dfsbench/core"
)

func testConfig(backend string) *Config {
	return &Config{
		BackendName: backend,
		CommMode:    CommLocal,
	}
}

func TestRunDataLocalModeProducesOneSummaryPerAccessMode(t *testing.T) {
	params := &core.DataParams{
		API:          "mem",
		TestDir:      "/data/shared",
		TransferSize: 4096,
		BlockSize:    16384,
		SegmentCount: 1,
		NumTasks:     2,
		Repetitions:  1,
	}

	doc, err := RunData(Context(), testConfig("mem"), params, []string{"ior-bench"})
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Len(t, doc.Tests, 1)
	assert.NotEmpty(t, doc.Summary)
	assert.Len(t, doc.Summary, 2, "one summary row each for write and read")
}

func TestRunMetadataLocalModeAggregatesRanksIntoOneIteration(t *testing.T) {
	params := &core.MdtestParams{
		TestDir:      "/meta/tree",
		BranchFactor: 1,
		Depth:        1,
		ItemsPerDir:  2,
		NumTasks:     2,
		Files:        true,
		Barriers:     true,
	}

	doc, err := RunMetadata(Context(), testConfig("mem"), params, []string{"mdtest-bench"})
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Len(t, doc.Tests, 1)
	require.Len(t, doc.Tests[0].Iterations, 1, "one iteration by default")

	createPhase := doc.Tests[0].Iterations[0].Phases[1] // File creation, see aggregateMdResults
	assert.Equal(t, "File creation", createPhase.Phase)
	assert.Equal(t, int64(4), createPhase.Items, "2 dirs * 2 items-per-dir, split across ranks and summed")
}

func TestRunMetadataRepeatsPerIterationsUsingDistinctSubtrees(t *testing.T) {
	params := &core.MdtestParams{
		TestDir:      "/meta/tree",
		BranchFactor: 1,
		Depth:        1,
		ItemsPerDir:  1,
		NumTasks:     1,
		Files:        true,
		Barriers:     true,
		Iterations:   3,
	}

	doc, err := RunMetadata(Context(), testConfig("mem"), params, []string{"mdtest-bench"})
	require.NoError(t, err)
	require.Len(t, doc.Tests[0].Iterations, 3)
	for i, it := range doc.Tests[0].Iterations {
		assert.Equal(t, i, it.Iteration)
	}
}

func TestNewBackendUnknownNamePropagatesThroughRunData(t *testing.T) {
	params := &core.DataParams{API: "bogus", TestDir: "/data", NumTasks: 1, BlockSize: 1024, TransferSize: 1024, SegmentCount: 1}
	_, err := RunData(Context(), testConfig("bogus"), params, []string{"ior-bench"})
	assert.Error(t, err)
}
