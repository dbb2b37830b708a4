package dataengine

// lcg is the linear congruential generator used for the random-access
// offset orderings of §4.2. Constants are fixed by the spec so every rank
// computes the same sequence from the same seed.
type lcg struct {
	state uint64
}

const (
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1442695040888963407
)

func newLCG(seed uint64) *lcg {
	return &lcg{state: seed}
}

// next advances the generator and returns the new state.
func (l *lcg) next() uint64 {
	l.state = l.state*lcgMultiplier + lcgIncrement
	return l.state
}

// nextIndex draws the next pseudo-random value in [0, mod) using the high 31
// bits of the advanced state, as the spec's extraction rule specifies.
func (l *lcg) nextIndex(mod int64) int64 {
	if mod <= 0 {
		return 0
	}
	top31 := l.next() >> 33
	return int64(top31) % mod
}

// randomRankOffset computes the seeded pseudo-random rank-reorder shift of
// §4.2/§9's --reorder-tasks-random variant: a one-step LCG advance from a
// state seeded by rank+seed+1, keeping the high bits of the result (the low
// bits of an LCG are the least random) and folding them into [0, numTasks)
// by remainder.
func randomRankOffset(rank int32, numTasks int32, seed int64) int32 {
	if numTasks <= 0 {
		return 0
	}
	state := uint64(rank) + uint64(seed) + 1
	state = state*lcgMultiplier + lcgIncrement
	return int32(state>>33) % numTasks
}

// fisherYates produces a permutation of [0, n) seeded deterministically by
// seed, using the same lcg for the random draws.
func fisherYates(n int64, seed uint64) []int64 {
	order := make([]int64, n)
	for i := range order {
		order[i] = int64(i)
	}
	if n < 2 {
		return order
	}
	gen := newLCG(seed)
	for i := n - 1; i > 0; i-- {
		j := gen.nextIndex(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}
