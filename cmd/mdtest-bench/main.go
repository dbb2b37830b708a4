// Command mdtest-bench drives the Metadata-Workload Engine (spec.md
// §3/§4.6/§6): build a directory tree, create/stat/read/rename/remove items
// within it across a set of tasks, and report per-phase operation rates.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dfsbench/dfsbench/core"
	"github.com/dfsbench/dfsbench/internal/harness"
	"github.com/dfsbench/dfsbench/internal/report"
)

type mdFlags struct {
	api           string
	testDir       string
	branchFactor  int64
	depth         int64
	itemsPerDir   int64
	leafOnly      bool
	numTasks      int32
	uniqueDirPerTask bool
	stonewallTimer int64
	filesOnly     bool
	dirsOnly      bool
	createOnly    bool
	statOnly      bool
	readOnly      bool
	removeOnly    bool
	noBarriers    bool
	iterations    int32
	nstride       int32
	randomSeed    int64
	printTime     bool
	verbose       bool
	writeBytes    int64
	readBytes     int64
	syncFile      bool
	makeNode      bool
	renameDirs    bool

	configPath  string
	logLevel    string
	metricsAddr string
	commMode    string
	commAddr    string
	rank        int
}

func main() {
	f := &mdFlags{}

	root := &cobra.Command{
		Use:           "mdtest-bench",
		Short:         "Measure metadata-operation rates against a pluggable storage backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetadata(f)
		},
	}

	fl := root.Flags()
	fl.StringVarP(&f.api, "api", "a", "posix", "backend name (posix, mem, benchfs, uring, s3)")
	fl.StringVarP(&f.testDir, "test-dir", "d", "", "root directory for the generated tree")
	fl.Int64VarP(&f.branchFactor, "branch-factor", "B", 1, "directories created under each parent")
	fl.Int64VarP(&f.depth, "depth", "b", 0, "tree depth below the root")
	fl.Int64Var(&f.itemsPerDir, "items-per-dir", 10, "items created per directory")
	fl.BoolVarP(&f.leafOnly, "leaf-only", "L", false, "only create items in leaf directories")
	fl.Int32Var(&f.numTasks, "num-tasks", 1, "number of tasks participating")
	fl.BoolVarP(&f.uniqueDirPerTask, "unique-dir-per-task", "u", false, "give every task its own subtree")
	fl.Int64VarP(&f.stonewallTimer, "stonewall-timer", "", 0, "seconds; deadline-driven early termination (0 disables)")
	fl.BoolVar(&f.filesOnly, "files-only", false, "operate on files, not directories")
	fl.BoolVar(&f.dirsOnly, "dirs-only", false, "operate on directories, not files")
	fl.BoolVarP(&f.createOnly, "create-only", "C", false, "run only the creation phase")
	fl.BoolVarP(&f.statOnly, "stat-only", "T", false, "run only the stat phase")
	fl.BoolVarP(&f.readOnly, "read-only", "E", false, "run only the read phase")
	fl.BoolVarP(&f.removeOnly, "remove-only", "r", false, "run only the removal phase")
	fl.BoolVar(&f.noBarriers, "no-barriers", false, "skip inter-phase barriers")
	fl.Int32VarP(&f.iterations, "iterations", "i", 1, "number of times to repeat the test")
	fl.Int32Var(&f.nstride, "nstride", 0, "per-phase rank-rotation stride (0 defaults to 1)")
	fl.Int64Var(&f.randomSeed, "random-seed", 0, "seed folded into the unique-dir-per-task tree tag")
	fl.BoolVarP(&f.printTime, "print-time", "t", false, "print timestamps alongside rates")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "verbose logging")
	fl.Int64VarP(&f.writeBytes, "write-bytes", "w", 0, "bytes written to each created file (0 creates empty files)")
	fl.Int64VarP(&f.readBytes, "read-bytes", "e", 0, "bytes read from each file in the read phase (0 disables it)")
	fl.BoolVarP(&f.syncFile, "sync-file", "y", false, "fsync each file before closing it in the create phase")
	fl.BoolVarP(&f.makeNode, "make-node", "k", false, "use mknod for zero-byte file creation")
	fl.BoolVar(&f.renameDirs, "rename-dirs", false, "additionally rename every non-leaf directory between stat and remove")

	fl.StringVar(&f.configPath, "config", "", "optional TOML overlay pinning flag/backend-option defaults")
	fl.StringVar(&f.logLevel, "log-level", "info", "debug|info|warn|error")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "host:port to serve Prometheus /metrics on (disabled if empty)")
	fl.StringVar(&f.commMode, "comm.mode", "local", "local (single-process simulation) or tcp (multi-host)")
	fl.StringVar(&f.commAddr, "comm.addr", "", "tcp mode: coordinator address")
	fl.IntVar(&f.rank, "comm.rank", 0, "tcp mode: this process's rank")

	argv := os.Args
	overlaid, err := harness.LoadOverlay(preScanConfigPath(argv), argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	bundles, remaining := harness.ExtractBackendOptions(overlaid)
	root.SetArgs(remaining[1:])

	backendOptions = bundles
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var backendOptions map[string]*core.OptionBundle

func preScanConfigPath(argv []string) string {
	for i, a := range argv {
		if a == "--config" && i+1 < len(argv) {
			return argv[i+1]
		}
		if len(a) > len("--config=") && a[:len("--config=")] == "--config=" {
			return a[len("--config="):]
		}
	}
	return ""
}

func runMetadata(f *mdFlags) error {
	params := &core.MdtestParams{
		TestDir:          f.testDir,
		BranchFactor:     f.branchFactor,
		Depth:            f.depth,
		ItemsPerDir:      f.itemsPerDir,
		LeafOnly:         f.leafOnly,
		NumTasks:         f.numTasks,
		UniqueDirPerTask: f.uniqueDirPerTask,
		StonewallTimer:   f.stonewallTimer,
		Files:            !f.dirsOnly,
		Dirs:             !f.filesOnly,
		CreateOnly:       f.createOnly,
		StatOnly:         f.statOnly,
		ReadOnly:         f.readOnly,
		RemoveOnly:       f.removeOnly,
		RandomSeed:       f.randomSeed,
		NStride:          f.nstride,
		Barriers:         !f.noBarriers,
		Iterations:       f.iterations,
		WriteBytes:       f.writeBytes,
		ReadBytes:        f.readBytes,
		SyncFile:         f.syncFile,
		MakeNode:         f.makeNode,
		RenameDirs:       f.renameDirs,
	}

	level := f.logLevel
	if f.verbose {
		level = "debug"
	}
	log := harness.NewLogger(level)
	rec := harness.ServeMetrics(f.metricsAddr)

	cfg := &harness.Config{
		BackendName: f.api,
		CommMode:    harness.CommMode(f.commMode),
		CommAddr:    f.commAddr,
		Rank:        f.rank,
		Size:        int(f.numTasks),
		Options:     backendOptions,
		Metrics:     rec,
		Log:         log,
	}

	doc, err := harness.RunMetadata(harness.Context(), cfg, params, os.Args)
	if err != nil && doc == nil {
		return err
	}
	if doc == nil {
		return nil
	}

	if f.printTime {
		fmt.Printf("began=%s finished=%s\n", doc.Began, doc.Finished)
	}

	data, mErr := report.Marshal(doc)
	if mErr != nil {
		return mErr
	}
	fmt.Println(string(data))
	return err
}
