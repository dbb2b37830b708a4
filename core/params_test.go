package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMdtestParamsDerivedCounts(t *testing.T) {
	p := &MdtestParams{BranchFactor: 2, Depth: 2, ItemsPerDir: 10}
	assert.Equal(t, int64(7), p.NumDirsInTree())
	assert.Equal(t, int64(4), p.NumLeafDirs())
	assert.Equal(t, int64(70), p.TotalItems())
}

func TestMdtestParamsLeafOnly(t *testing.T) {
	p := &MdtestParams{BranchFactor: 2, Depth: 2, ItemsPerDir: 10, LeafOnly: true}
	assert.Equal(t, int64(40), p.TotalItems())
}

func TestMdtestParamsDepthZeroIsJustRoot(t *testing.T) {
	p := &MdtestParams{BranchFactor: 3, Depth: 0, ItemsPerDir: 5}
	assert.Equal(t, int64(1), p.NumDirsInTree())
	assert.Equal(t, int64(1), p.NumLeafDirs())
	assert.Equal(t, int64(5), p.TotalItems())
}

func TestDataParamsFilePerProcFileSize(t *testing.T) {
	p := &DataParams{TransferSize: 4096, BlockSize: 4096 * 4, SegmentCount: 2, NumTasks: 8, FilePerProc: true}
	assert.Equal(t, int64(4), p.BlockCount())
	assert.Equal(t, int64(8), p.TransfersPerTask())
	assert.Equal(t, int64(4096*4*2), p.FileSize())
}

func TestDataParamsSharedFileSize(t *testing.T) {
	p := &DataParams{TransferSize: 4096, BlockSize: 4096 * 4, SegmentCount: 2, NumTasks: 8, FilePerProc: false}
	assert.Equal(t, int64(4096*4*2*8), p.FileSize())
}

func TestSequentialOffsetFilePerProc(t *testing.T) {
	p := &DataParams{TransferSize: 1024, BlockSize: 4096, NumTasks: 4, FilePerProc: true}
	assert.Equal(t, int64(2*1024+1*4096), p.SequentialOffset(2, 1, 0))
}

func TestSequentialOffsetSharedFile(t *testing.T) {
	p := &DataParams{TransferSize: 1024, BlockSize: 4096, NumTasks: 4, FilePerProc: false}
	got := p.SequentialOffset(2, 1, 3)
	want := int64(2*1024) + int64(1*4*4096) + int64(3*4096)
	assert.Equal(t, want, got)
}
