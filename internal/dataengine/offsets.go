package dataengine

import "github.com/dfsbench/dfsbench/core"

// offsetPlan computes the absolute byte offset of transfer index i (0-based,
// spanning every segment of one task's transfer set) per §4.2's four access
// patterns. blockCount is T's-worth of transfers per segment (B/T).
type offsetPlan struct {
	params     *core.DataParams
	rank       int32 // pretend rank, already resolved by the caller
	blockCount int64
	// perSegmentOrder[s] gives the shuffled within-segment block index to
	// use at position j, for random file-per-proc mode; nil for sequential.
	perSegmentOrder []int64
	// sharedOffsets, populated only for random shared-file mode, gives the
	// absolute offset directly for transfer index i.
	sharedOffsets []int64
}

// newOffsetPlan builds the plan appropriate to params.RandomOrder and
// params.FilePerProc. seed is the already cross-rank-agreed LCG seed (for
// shared-file random mode this must be the value every rank broadcast from
// rank 0; for file-per-proc random mode each rank uses seed XOR its own
// pretend rank, needing no broadcast).
func newOffsetPlan(params *core.DataParams, rank int32, seed uint64) *offsetPlan {
	blockCount := params.BlockCount()
	plan := &offsetPlan{params: params, rank: rank, blockCount: blockCount}

	if !params.RandomOrder {
		return plan
	}

	if params.FilePerProc {
		plan.perSegmentOrder = fisherYates(blockCount, seed^uint64(uint32(rank)))
		return plan
	}

	plan.sharedOffsets = randomSharedOffsets(params, rank, seed)
	return plan
}

// totalTransfers returns how many transfers this rank issues under this
// plan: the uniform TransfersPerTask() for every mode except random
// shared-file, where the LCG assignment can give ranks slightly uneven
// shares of the flat grid.
func (p *offsetPlan) totalTransfers() int64 {
	if p.sharedOffsets != nil {
		return int64(len(p.sharedOffsets))
	}
	return p.params.TransfersPerTask()
}

// offset returns the absolute byte offset for transfer i, where i ranges
// over [0, TransfersPerTask()).
func (p *offsetPlan) offset(i int64) int64 {
	if p.sharedOffsets != nil {
		return p.sharedOffsets[i]
	}
	s := i / p.blockCount
	j := i % p.blockCount
	if p.perSegmentOrder != nil {
		j = p.perSegmentOrder[j]
	}
	return p.params.SequentialOffset(j, s, p.rank)
}

// randomSharedOffsets implements §4.2's random shared-file geometry: the
// flat transfer grid (blockCount rows by numTasks columns, one segment at a
// time) is walked in row-major order, an LCG seeded identically on every
// rank assigns each flat position a writer rank, and each rank collects the
// positions assigned to it before shuffling its own collected list.
func randomSharedOffsets(params *core.DataParams, rank int32, seed uint64) []int64 {
	blockCount := params.BlockCount()
	segments := params.SegmentCount
	n := int64(params.NumTasks)

	gen := newLCG(seed)
	mine := make([]int64, 0, blockCount*segments)

	for s := int64(0); s < segments; s++ {
		for f := int64(0); f < blockCount*n; f++ {
			writer := gen.nextIndex(n)
			if int32(writer) == rank {
				mine = append(mine, params.SequentialOffset(f/n, s, int32(f%n)))
			}
		}
	}

	order := fisherYates(int64(len(mine)), seed^uint64(uint32(rank))^0x5bd1e995)
	shuffled := make([]int64, len(mine))
	for i, j := range order {
		shuffled[i] = mine[j]
	}
	return shuffled
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
