// Package mdengine implements the phased Metadata-Workload Engine of §4.6:
// directory tree create, item create/stat/rename/remove, tree remove.
package mdengine

import (
	"fmt"
	"strings"

	"github.com/OneOfOne/xxhash"

	"github.com/dfsbench/dfsbench/core"
)

// phaseKind indexes the rotation rule of §4.6's item naming: producing rank
// for item i at phase k is (creatorRank(i) + k*stride) mod N.
type phaseKind int32

const (
	phaseCreate phaseKind = iota
	phaseStat
	phaseRead
	phaseRemove
)

// treeTag derives a short suffix, hashed from TestDir, RandomSeed and
// TaskRank, that is appended to every mdtest_tree.N directory name when
// UniqueDirPerTask is set, so each task (and each run with a different
// seed) gets its own mdtest_tree paths under a shared test directory.
func treeTag(p *core.MdtestParams) string {
	if !p.UniqueDirPerTask {
		return ""
	}
	h := xxhash.New64()
	fmt.Fprintf(h, "%s|%d|%d", p.TestDir, p.RandomSeed, p.TaskRank)
	return fmt.Sprintf(".%x", h.Sum64()&0xffffffff)
}

// creatorRank returns the rank that created item i, assuming items are
// distributed round-robin by creation order across ranks.
func creatorRank(itemNum int64, numTasks int32) int32 {
	if numTasks <= 0 {
		return 0
	}
	return int32(itemNum % int64(numTasks))
}

// producingRank applies §4.6's rotation: (r + k*stride) mod N.
func producingRank(r int32, k phaseKind, stride, numTasks int32) int32 {
	if numTasks <= 0 {
		return r
	}
	shifted := (r+int32(k)*stride)%numTasks + numTasks
	return shifted % numTasks
}

// ownsItem reports whether this rank is the one that should act on item i
// during the given phase.
func ownsItem(p *core.MdtestParams, itemNum int64, k phaseKind) bool {
	creator := creatorRank(itemNum, p.NumTasks)
	return producingRank(creator, k, p.Stride(), p.NumTasks) == p.TaskRank
}

// dirForItem walks from a leaf directory index up to the root, per §4.6's
// path-construction rule, and returns the directory path (without the item
// file name) an item belongs in.
func dirForItem(p *core.MdtestParams, itemNum int64) string {
	if p.ItemsPerDir == 0 {
		return treeRoot(p)
	}
	adjusted := itemNum
	if p.LeafOnly {
		leafOffset := (p.NumDirsInTree() - pow(p.BranchFactor, p.Depth)) * p.ItemsPerDir
		adjusted += leafOffset
	}
	dir := adjusted / p.ItemsPerDir

	var segments []string
	for dir > 0 {
		segments = append([]string{fmt.Sprintf("mdtest_tree%s.%d", treeTag(p), dir)}, segments...)
		dir = (dir - 1) / p.BranchFactor
	}
	if len(segments) == 0 {
		return treeRoot(p)
	}
	return treeRoot(p) + "/" + strings.Join(segments, "/")
}

func treeRoot(p *core.MdtestParams) string {
	return strings.TrimSuffix(p.TestDir, "/")
}

// itemPath returns the full path of item i (a plain file, or a directory
// when p.Dirs is set instead of p.Files).
func itemPath(p *core.MdtestParams, itemNum int64) string {
	kind := "file"
	if p.Dirs {
		kind = "dir"
	}
	return fmt.Sprintf("%s/mdtest.%s.%d", dirForItem(p, itemNum), kind, itemNum)
}

func pow(base, exp int64) int64 {
	result := int64(1)
	for i := int64(0); i < exp; i++ {
		result *= base
	}
	return result
}
