package core

// DataParams is the parameter record driving one Data-Workload Engine run.
// Every field mirrors a CLI flag documented in §3/§6; derived quantities are
// computed on demand by the methods below rather than stored, so changing a
// single field never leaves a stale derived value behind.
type DataParams struct {
	API             string
	TestDir         string
	TransferSize    int64
	BlockSize       int64
	SegmentCount    int64
	NumTasks        int32
	TaskRank        int32
	FilePerProc     bool
	Collective      bool
	RandomOrder     bool
	Repetitions     int32
	StonewallTimer  int64 // seconds; 0 disables stonewalling
	FsyncPerWrite   bool
	FsyncAtClose    bool
	WriteCheck      bool
	ReadCheck       bool
	KeepFile        bool
	ReorderTasksRandomSeed int64
	Pattern         PatternMode
	Seed            uint32
	Direct          bool
	QueueDepth      int64 // >1 selects the async pipeline path (§4.3)
	MinTimeDuration int64 // seconds; 0 disables the min-time replay loop
	UseExistingTestFile bool
	InterTestDelay  int64 // seconds
	RankOffset      int32 // read-phase pretend-rank shift
	SingleXferAttempt bool // cap XferSync at one round instead of retrying short transfers
}

// BlockCount is the number of transfer-sized blocks in one segment.
func (p *DataParams) BlockCount() int64 {
	if p.TransferSize == 0 {
		return 0
	}
	return p.BlockSize / p.TransferSize
}

// TransfersPerTask is the total number of transfers one task issues across
// every segment of the file(s) it owns.
func (p *DataParams) TransfersPerTask() int64 {
	return p.BlockCount() * p.SegmentCount
}

// FileSize is the expected size of a single file once fully written:
// file-per-proc mode gives each task its own file sized blockSize*segments;
// shared-file mode gives one file sized blockSize*segments*numTasks.
func (p *DataParams) FileSize() int64 {
	base := p.BlockSize * p.SegmentCount
	if p.FilePerProc {
		return base
	}
	return base * int64(p.NumTasks)
}

// PretendRank applies the rank-offset shift of §4.2: p = ((rank+offset) mod N
// + N) mod N, wrapping negative shifts back into [0, N).
func (p *DataParams) PretendRank(rankOffset int32) int32 {
	n := p.NumTasks
	if n <= 0 {
		return p.TaskRank
	}
	shifted := (p.TaskRank+rankOffset)%n + n
	return shifted % n
}

// SequentialOffset computes the byte offset of transfer j within segment s
// for task rank p, per the sequential-access geometry of §3.2.
//
// file-per-proc: j*T + s*B
// shared-file:   j*T + s*N*B + p*B
func (p *DataParams) SequentialOffset(j, s int64, rank int32) int64 {
	t := p.TransferSize
	if p.FilePerProc {
		return j*t + s*p.BlockSize
	}
	return j*t + s*int64(p.NumTasks)*p.BlockSize + int64(rank)*p.BlockSize
}

// MdtestParams is the parameter record driving one Metadata-Workload Engine
// run, mirroring mdtest-bench/src/params.rs's derived-field computation.
type MdtestParams struct {
	TestDir         string
	BranchFactor    int64
	Depth           int64
	ItemsPerDir     int64
	LeafOnly        bool
	NumTasks        int32
	TaskRank        int32
	UniqueDirPerTask bool
	StonewallTimer  int64
	Files           bool
	Dirs            bool
	CreateOnly      bool
	StatOnly        bool
	ReadOnly        bool
	RemoveOnly      bool
	RandomSeed      int64
	// NStride sets the per-phase rank-rotation stride of §4.6's item
	// naming rule: producing rank = (r + k*NStride) mod N. Defaults to 1
	// when zero (every phase shifts ownership by one rank from the last).
	NStride int32
	Barriers bool
	// Iterations is the number of times to repeat the whole phase sequence
	// (§6 --iterations); defaults to 1 when zero.
	Iterations int32
	// WriteBytes, when nonzero, makes createPhase write this many bytes to
	// each created file instead of just creating it (§6 --write-bytes).
	WriteBytes int64
	// ReadBytes is how many bytes readPhase reads from each file; 0 skips
	// the read phase entirely (§6 --read-bytes), matching the original's
	// "no reading for directories or zero-byte reads" rule.
	ReadBytes int64
	// SyncFile fsyncs a created file before closing it (§6 --sync-file).
	SyncFile bool
	// MakeNode uses mknod instead of open+write for zero-byte file creation
	// (§6 --make-node); ignored once WriteBytes > 0, since mknod can't
	// carry a data payload.
	MakeNode bool
	// RenameDirs gates the additional directory-rename phase (§6
	// --rename-dirs, §9's supplemented feature), touching every non-leaf
	// directory of the tree between the item-stat and item-remove phases.
	RenameDirs bool
}

// Stride returns NStride, defaulting to 1.
func (p *MdtestParams) Stride() int32 {
	if p.NStride == 0 {
		return 1
	}
	return p.NStride
}

// NumDirsInTree is the number of directories in a branch_factor/depth tree,
// counting the root: sum_{i=0}^{depth} branch_factor^i.
func (p *MdtestParams) NumDirsInTree() int64 {
	if p.BranchFactor <= 1 {
		return p.Depth + 1
	}
	total := int64(0)
	power := int64(1)
	for i := int64(0); i <= p.Depth; i++ {
		total += power
		power *= p.BranchFactor
	}
	return total
}

// NumLeafDirs is branch_factor^depth, the directory count at the deepest
// level of the tree.
func (p *MdtestParams) NumLeafDirs() int64 {
	power := int64(1)
	for i := int64(0); i < p.Depth; i++ {
		power *= p.BranchFactor
	}
	return power
}

// TotalItems is the number of leaf items (files or directories created by
// the item-creation phases) across the whole tree: ItemsPerDir multiplied by
// every directory when LeafOnly is false, or just the leaf directories when
// it is true.
func (p *MdtestParams) TotalItems() int64 {
	if p.LeafOnly {
		return p.NumLeafDirs() * p.ItemsPerDir
	}
	return p.NumDirsInTree() * p.ItemsPerDir
}
