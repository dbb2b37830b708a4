// Command ior-bench drives the Data-Workload Engine (spec.md §3/§4.2/§6):
// write/read a shared or file-per-process test file across a set of tasks
// under a chosen backend, and report achieved bandwidth/IOPS/latency.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dfsbench/dfsbench/core"
	"github.com/dfsbench/dfsbench/internal/harness"
	"github.com/dfsbench/dfsbench/internal/report"
)

type dataFlags struct {
	api                string
	testDir            string
	blockSize          string
	segmentCount       int64
	transferSize       string
	filePerProc        bool
	randomOffset       bool
	repetitions        int32
	interTestDelay     int64
	fsync              bool
	fsyncPerWrite      bool
	checkWrite         bool
	checkRead          bool
	keepFile           bool
	numTasks           int32
	reorderTasks       bool
	reorderTasksRandom int64
	intraTestBarriers  bool
	directIO           bool
	queueDepth         int64
	useExisting        bool
	singleXferAttempt  bool
	minTimeDuration    int64
	timestampSignature bool
	jsonOut            bool
	jsonFile           string
	verbose            bool

	configPath string
	logLevel   string
	metricsAddr string
	commMode    string
	commAddr    string
	rank        int
}

func main() {
	f := &dataFlags{}

	root := &cobra.Command{
		Use:           "ior-bench",
		Short:         "Measure data-transfer throughput against a pluggable storage backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runData(f)
		},
	}

	fl := root.Flags()
	fl.StringVarP(&f.api, "api", "a", "posix", "backend name (posix, mem, benchfs, uring, s3)")
	fl.StringVar(&f.testDir, "test-file", "", "target test file/directory path")
	fl.StringVarP(&f.blockSize, "block-size", "b", "1m", "bytes per rank per segment (size suffix k/m/g/t)")
	fl.Int64Var(&f.segmentCount, "segment-count", 1, "number of segments")
	fl.StringVarP(&f.transferSize, "transfer-size", "t", "256k", "bytes per I/O call (size suffix k/m/g/t)")
	fl.BoolVarP(&f.filePerProc, "file-per-proc", "F", false, "one file per task instead of one shared file")
	fl.BoolVarP(&f.randomOffset, "random-offset", "z", false, "issue transfers in random rather than sequential order")
	fl.Int32VarP(&f.repetitions, "repetitions", "i", 1, "number of times to repeat the test")
	fl.Int64Var(&f.interTestDelay, "inter-test-delay", 0, "seconds to sleep between repetitions")
	fl.BoolVarP(&f.fsync, "fsync", "e", false, "fsync before close")
	fl.BoolVar(&f.fsyncPerWrite, "fsync-per-write", false, "fsync after every write")
	fl.BoolVarP(&f.checkWrite, "check-write", "", false, "re-read and verify after writing")
	fl.BoolVar(&f.checkRead, "check-read", false, "verify pattern contents on read")
	fl.BoolVarP(&f.keepFile, "keep-file", "k", false, "don't remove the test file at the end")
	fl.Int32Var(&f.numTasks, "num-tasks", 1, "number of tasks participating")
	fl.BoolVar(&f.reorderTasks, "reorder-tasks", false, "shift read-phase pretend ranks by one node")
	fl.Int64Var(&f.reorderTasksRandom, "reorder-tasks-random", 0, "seed for a pseudo-random pretend-rank shift (0 disables)")
	fl.BoolVar(&f.intraTestBarriers, "intra-test-barriers", false, "also barrier after each phase's file open and after its transfer loop")
	fl.BoolVar(&f.directIO, "direct-io", false, "bypass the page cache (O_DIRECT where supported)")
	fl.Int64VarP(&f.queueDepth, "queue-depth", "d", 1, "in-flight transfers per rank (>1 selects the async pipeline)")
	fl.BoolVar(&f.useExisting, "use-existing", false, "reuse an existing test file instead of truncating it first")
	fl.BoolVar(&f.singleXferAttempt, "single-xfer-attempt", false, "report a short read/write as partial instead of retrying it")
	fl.Int64Var(&f.minTimeDuration, "max-time-duration", 0, "seconds; replay the access pattern until this deadline (0 disables)")
	fl.BoolVar(&f.timestampSignature, "timestamp-signature", false, "stamp transfers with a rank/counter pattern instead of an offset pattern")
	fl.BoolVarP(&f.jsonOut, "json", "J", false, "print the report as JSON instead of a text summary")
	fl.StringVar(&f.jsonFile, "json-file", "", "write the JSON report to this path in addition to stdout")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "verbose logging")

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

// backendOptions holds the per-prefix bundles peeled out of argv before
// cobra ever saw them; runData picks out the one matching --api.
var backendOptions map[string]*core.OptionBundle

// preScanConfigPath finds --config's value without going through cobra, so
// the overlay can be applied before the rest of argv is parsed at all.
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

func runData(f *dataFlags) error {
	blockSize, err := core.ParseSize(f.blockSize)
	if err != nil {
		return err
	}
	transferSize, err := core.ParseSize(f.transferSize)
	if err != nil {
		return err
	}

	pattern := core.PatternOffset
	if f.timestampSignature {
		pattern = core.PatternTimestamp
	}

	params := &core.DataParams{
		API:                 f.api,
		TestDir:             f.testDir,
		TransferSize:        transferSize,
		BlockSize:           blockSize,
		SegmentCount:        f.segmentCount,
		NumTasks:            f.numTasks,
		FilePerProc:         f.filePerProc,
		Collective:          f.intraTestBarriers,
		RandomOrder:         f.randomOffset,
		Repetitions:         f.repetitions,
		FsyncPerWrite:       f.fsyncPerWrite,
		FsyncAtClose:        f.fsync,
		WriteCheck:          f.checkWrite,
		ReadCheck:           f.checkRead,
		KeepFile:            f.keepFile,
		Pattern:             pattern,
		Direct:              f.directIO,
		QueueDepth:          f.queueDepth,
		MinTimeDuration:     f.minTimeDuration,
		UseExistingTestFile: f.useExisting,
		InterTestDelay:      f.interTestDelay,
		SingleXferAttempt:   f.singleXferAttempt,
	}
	if f.reorderTasks {
		params.RankOffset = 1
	}
	if f.reorderTasksRandom != 0 {
		params.ReorderTasksRandomSeed = f.reorderTasksRandom
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

	doc, err := harness.RunData(harness.Context(), cfg, params, os.Args)
	if err != nil && doc == nil {
		return err
	}
	if doc == nil {
		return nil // non-participating or non-rank-0 tcp process
	}

	data, mErr := report.Marshal(doc)
	if mErr != nil {
		return mErr
	}
	if f.jsonOut {
		fmt.Println(string(data))
	} else {
		for _, r := range doc.Summary {
			fmt.Printf("%-8s bw=%.2fMiB/s iops=%.2f meanTime=%.3fs\n", r.Access, r.BwMeanMIB, r.OPsMean, r.MeanTime)
		}
	}
	if f.jsonFile != "" {
		if wErr := os.WriteFile(f.jsonFile, data, 0o644); wErr != nil {
			return wErr
		}
	}
	return err
}
