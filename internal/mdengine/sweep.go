package mdengine

import (
	"os"

	"github.com/karrick/godirwalk"

	"github.com/dfsbench/dfsbench/core"
)

// VerifyTreeRemoved walks testDir on a real file system and reports any
// leftover entries under the tree root after removeTree has run — a
// sanity sweep for the posix backend, where a failed rmdir deep in the
// tree can silently leave orphaned files the structured remove phase
// never revisits. Backends that aren't real file systems skip this; it
// has nothing to walk.
func VerifyTreeRemoved(backend core.Backend, p *core.MdtestParams) ([]string, error) {
	if backend.Name() != "posix" {
		return nil, nil
	}
	root := treeRoot(p)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var leftover []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == root {
				return nil
			}
			leftover = append(leftover, path)
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, err
	}
	return leftover, nil
}
