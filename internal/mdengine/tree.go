package mdengine

import (
	"github.com/dfsbench/dfsbench/core"
)

// buildTree creates every directory of the branch_factor/depth tree,
// rooted at p.TestDir, in breadth-first order so a directory's parent
// always exists before the directory itself is created.
func buildTree(backend core.Backend, p *core.MdtestParams) error {
	root := treeRoot(p)
	if err := mkdirIfAbsent(backend, root); err != nil {
		return err
	}

	type node struct {
		dir int64
	}
	queue := []node{{dir: 0}}
	seen := map[int64]bool{0: true}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		path := dirPath(p, n.dir)
		if path != root {
			if err := mkdirIfAbsent(backend, path); err != nil {
				return err
			}
		}

		children := childDirs(p, n.dir)
		for _, c := range children {
			if seen[c] {
				continue
			}
			seen[c] = true
			queue = append(queue, node{dir: c})
		}
	}
	return nil
}

// mkdirIfAbsent skips creation when the path already exists, so re-entrant
// tree builds (a shared root across ranks, or a rerun over an existing
// test directory) never fail on a duplicate mkdir.
func mkdirIfAbsent(backend core.Backend, path string) error {
	exists, err := backend.Access(path, 0)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return backend.Mkdir(path, 0o755)
}

// dirPath returns the path of tree-directory index dir (0 is the root).
func dirPath(p *core.MdtestParams, dir int64) string {
	if dir == 0 {
		return treeRoot(p)
	}
	var segs []int64
	for d := dir; d > 0; d = (d - 1) / p.BranchFactor {
		segs = append(segs, d)
	}
	path := treeRoot(p)
	for i := len(segs) - 1; i >= 0; i-- {
		path += "/" + "mdtest_tree" + treeTag(p) + "." + itoa(segs[i])
	}
	return path
}

// childDirs returns the immediate children of tree-directory index dir,
// assuming the fixed branch_factor/depth numbering where dir's children are
// dir*branch_factor+1 .. dir*branch_factor+branch_factor.
func childDirs(p *core.MdtestParams, dir int64) []int64 {
	depthOf := func(d int64) int64 {
		depth := int64(0)
		for d > 0 {
			d = (d - 1) / p.BranchFactor
			depth++
		}
		return depth
	}
	if depthOf(dir) >= p.Depth {
		return nil
	}
	children := make([]int64, 0, p.BranchFactor)
	for i := int64(1); i <= p.BranchFactor; i++ {
		children = append(children, dir*p.BranchFactor+i)
	}
	return children
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// nonLeafDirs returns the tree-directory indices that have children (depth
// strictly less than p.Depth), in depth-first pre-order — the directories the
// rename-dirs phase (§9's supplemented `--rename-dirs` feature) touches.
func nonLeafDirs(p *core.MdtestParams) []int64 {
	var dirs []int64
	var walk func(dir int64)
	walk = func(dir int64) {
		children := childDirs(p, dir)
		if len(children) > 0 {
			dirs = append(dirs, dir)
		}
		for _, c := range children {
			walk(c)
		}
	}
	walk(0)
	return dirs
}

// removeTree removes every directory of the tree in reverse depth-first
// pre-order (every child before its parent), so rmdir never hits a
// non-empty directory.
func removeTree(backend core.Backend, p *core.MdtestParams) error {
	var all []int64
	var walk func(dir int64)
	walk = func(dir int64) {
		all = append(all, dir)
		for _, c := range childDirs(p, dir) {
			walk(c)
		}
	}
	walk(0)

	for i := len(all) - 1; i >= 0; i-- {
		dir := all[i]
		path := dirPath(p, dir)
		if err := backend.Rmdir(path); err != nil && !core.Is(err, core.CodeNotFound) {
			return err
		}
	}
	return nil
}
