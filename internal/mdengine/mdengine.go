package mdengine

import (
	"context"
	"time"

	"github.com/dfsbench/dfsbench/core"
	"github.com/dfsbench/dfsbench/internal/comm"
	"github.com/dfsbench/dfsbench/internal/logging"
)

// PhaseResult is one phase's rate/time outcome, per §4.6's "rate = items /
// elapsed" rule.
type PhaseResult struct {
	Items   int64
	Elapsed time.Duration
}

// Rate returns items per second, or 0 if elapsed is zero.
func (r PhaseResult) Rate() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Items) / r.Elapsed.Seconds()
}

// MdtestResult bundles every phase's result for one run.
type MdtestResult struct {
	TreeCreate PhaseResult
	Create     PhaseResult
	Stat       PhaseResult
	Read       PhaseResult
	RenameDirs PhaseResult
	Rename     PhaseResult
	Remove     PhaseResult
	TreeRemove PhaseResult
	Stonewalled bool
}

// Engine runs one Metadata-Workload Engine benchmark against a single
// backend.
type Engine struct {
	Backend core.Backend
	Comm    comm.Comm
	Params  *core.MdtestParams
	Log     *logging.Logger
}

func New(backend core.Backend, c comm.Comm, params *core.MdtestParams) *Engine {
	log := logging.Default().WithFields("rank", c.Rank(), "component", "mdengine")
	return &Engine{Backend: backend, Comm: c, Params: params, Log: log}
}

func (e *Engine) barrier(ctx context.Context) error {
	if !e.Params.Barriers {
		return nil
	}
	return e.Comm.Barrier(ctx)
}

// Run executes the full phase sequence of §4.6: tree create, item phases
// (create, stat, optional rename, remove — skipped according to the
// CreateOnly/StatOnly/ReadOnly/RemoveOnly flags), tree remove.
func (e *Engine) Run(ctx context.Context) (MdtestResult, error) {
	var result MdtestResult
	p := e.Params
	total := p.TotalItems()

	start := time.Now()
	if err := buildTree(e.Backend, p); err != nil {
		return result, err
	}
	if err := e.barrier(ctx); err != nil {
		return result, err
	}
	result.TreeCreate = PhaseResult{Items: p.NumDirsInTree(), Elapsed: time.Since(start)}

	runPhase := p.Files || p.Dirs
	onlyFlags := p.CreateOnly || p.StatOnly || p.ReadOnly || p.RemoveOnly

	if runPhase && (!onlyFlags || p.CreateOnly) {
		n, dur, stonewalled, err := e.createPhase(ctx, total)
		result.Create = PhaseResult{Items: n, Elapsed: dur}
		result.Stonewalled = stonewalled
		if err != nil {
			return result, err
		}
		if err := e.barrier(ctx); err != nil {
			return result, err
		}
	}

	if runPhase && (!onlyFlags || p.StatOnly) {
		n, dur, err := e.statPhase(total)
		result.Stat = PhaseResult{Items: n, Elapsed: dur}
		if err != nil {
			return result, err
		}
		if err := e.barrier(ctx); err != nil {
			return result, err
		}
	}

	if runPhase && (!onlyFlags || p.ReadOnly) && p.Files {
		n, dur, err := e.readPhase(total)
		result.Read = PhaseResult{Items: n, Elapsed: dur}
		if err != nil {
			return result, err
		}
		if err := e.barrier(ctx); err != nil {
			return result, err
		}
	}

	if p.Dirs && p.RenameDirs && !onlyFlags {
		n, dur, err := e.renameDirsPhase()
		result.RenameDirs = PhaseResult{Items: n, Elapsed: dur}
		if err != nil {
			return result, err
		}
		if err := e.barrier(ctx); err != nil {
			return result, err
		}
	}

	if runPhase && !onlyFlags {
		n, dur, err := e.renamePhase(total)
		result.Rename = PhaseResult{Items: n, Elapsed: dur}
		if err != nil {
			return result, err
		}
		if err := e.barrier(ctx); err != nil {
			return result, err
		}
	}

	if runPhase && (!onlyFlags || p.RemoveOnly) {
		n, dur, err := e.removePhase(total)
		result.Remove = PhaseResult{Items: n, Elapsed: dur}
		if err != nil {
			return result, err
		}
		if err := e.barrier(ctx); err != nil {
			return result, err
		}
	}

	// A -C/-T/-E-style partial run (create-only, stat-only, read-only)
	// leaves the tree in place for a later pass to act on; only a full run
	// or an explicit remove-only pass tears the tree down here.
	if onlyFlags && !p.RemoveOnly {
		return result, nil
	}

	treeStart := time.Now()
	if err := removeTree(e.Backend, p); err != nil {
		return result, err
	}
	result.TreeRemove = PhaseResult{Items: p.NumDirsInTree(), Elapsed: time.Since(treeStart)}

	return result, nil
}

func (e *Engine) createPhase(ctx context.Context, total int64) (int64, time.Duration, bool, error) {
	p := e.Params
	deadline := time.Now().Add(time.Duration(p.StonewallTimer) * time.Second)
	start := time.Now()
	var n int64
	stonewalled := false

	var writeBuf []byte
	if p.WriteBytes > 0 {
		writeBuf = make([]byte, p.WriteBytes)
	}

	for i := int64(0); i < total; i++ {
		if !ownsItem(p, i, phaseCreate) {
			continue
		}
		if p.StonewallTimer > 0 && time.Now().After(deadline) {
			stonewalled = true
			break
		}
		path := itemPath(p, i)
		if p.Dirs {
			if err := e.Backend.Mkdir(path, 0o755); err != nil {
				return n, time.Since(start), stonewalled, err
			}
		} else {
			if err := e.createFile(path, writeBuf); err != nil {
				return n, time.Since(start), stonewalled, err
			}
		}
		n++
	}
	return n, time.Since(start), stonewalled, nil
}

// createFile creates one file item, honoring §6's --make-node/--write-bytes/
// --sync-file flags: mknod is used only when make_node is set and there are
// no bytes to write, matching the original's fast-path check, since mknod
// can't carry a data payload.
func (e *Engine) createFile(path string, writeBuf []byte) error {
	p := e.Params
	if p.MakeNode && p.WriteBytes == 0 {
		return e.Backend.Mknod(path)
	}

	h, err := e.Backend.Create(path, core.Create|core.WriteOnly)
	if err != nil {
		return err
	}
	if p.WriteBytes > 0 {
		if _, err := e.Backend.XferSync(h, core.Write, writeBuf, 0); err != nil {
			e.Backend.Close(h)
			return err
		}
	}
	if p.SyncFile {
		if err := e.Backend.Fsync(h); err != nil {
			e.Backend.Close(h)
			return err
		}
	}
	return e.Backend.Close(h)
}

func (e *Engine) statPhase(total int64) (int64, time.Duration, error) {
	p := e.Params
	start := time.Now()
	var n int64
	for i := int64(0); i < total; i++ {
		if !ownsItem(p, i, phaseStat) {
			continue
		}
		if _, err := e.Backend.Stat(itemPath(p, i)); err != nil {
			return n, time.Since(start), err
		}
		n++
	}
	return n, time.Since(start), nil
}

// readPhase reads ReadBytes bytes from each owned file item; a zero
// ReadBytes disables the phase entirely (§6 --read-bytes), matching the
// original's "no reading for directories or zero-byte reads" rule — dirs
// never reach here since the caller only invokes readPhase when p.Files.
func (e *Engine) readPhase(total int64) (int64, time.Duration, error) {
	p := e.Params
	start := time.Now()
	if p.ReadBytes <= 0 {
		return 0, time.Since(start), nil
	}
	var n int64
	buf := make([]byte, p.ReadBytes)
	for i := int64(0); i < total; i++ {
		if !ownsItem(p, i, phaseRead) {
			continue
		}
		h, err := e.Backend.Open(itemPath(p, i), core.ReadOnly)
		if err != nil {
			return n, time.Since(start), err
		}
		if _, err := e.Backend.XferSync(h, core.Read, buf, 0); err != nil {
			e.Backend.Close(h)
			return n, time.Since(start), err
		}
		if err := e.Backend.Close(h); err != nil {
			return n, time.Since(start), err
		}
		n++
	}
	return n, time.Since(start), nil
}

func (e *Engine) renamePhase(total int64) (int64, time.Duration, error) {
	p := e.Params
	start := time.Now()
	var n int64
	for i := int64(0); i < total; i++ {
		if !ownsItem(p, i, phaseCreate) {
			continue
		}
		oldPath := itemPath(p, i)
		newPath := oldPath + ".renamed"
		if err := e.Backend.Rename(oldPath, newPath); err != nil {
			return n, time.Since(start), err
		}
		if err := e.Backend.Rename(newPath, oldPath); err != nil {
			return n, time.Since(start), err
		}
		n++
	}
	return n, time.Since(start), nil
}

// renameDirsPhase is the §9-supplemented --rename-dirs phase: it round-trip
// renames every non-leaf directory of the tree (so the tree stays valid for
// the remove phases that follow), split across ranks by directory index the
// same way item phases are split by item index.
func (e *Engine) renameDirsPhase() (int64, time.Duration, error) {
	p := e.Params
	start := time.Now()
	var n int64
	for _, dir := range nonLeafDirs(p) {
		if creatorRank(dir, p.NumTasks) != p.TaskRank {
			continue
		}
		path := dirPath(p, dir)
		renamed := path + ".renamed"
		if err := e.Backend.Rename(path, renamed); err != nil {
			return n, time.Since(start), err
		}
		if err := e.Backend.Rename(renamed, path); err != nil {
			return n, time.Since(start), err
		}
		n++
	}
	return n, time.Since(start), nil
}

func (e *Engine) removePhase(total int64) (int64, time.Duration, error) {
	p := e.Params
	start := time.Now()
	var n int64
	for i := int64(0); i < total; i++ {
		if !ownsItem(p, i, phaseRemove) {
			continue
		}
		path := itemPath(p, i)
		var err error
		if p.Dirs {
			err = e.Backend.Rmdir(path)
		} else {
			err = e.Backend.Delete(path)
		}
		if err != nil && !core.Is(err, core.CodeNotFound) {
			return n, time.Since(start), err
		}
		n++
	}
	return n, time.Since(start), nil
}
