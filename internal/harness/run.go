package harness

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dfsbench/dfsbench/core"
	"github.com/dfsbench/dfsbench/internal/comm"
	"github.com/dfsbench/dfsbench/internal/dataengine"
	"github.com/dfsbench/dfsbench/internal/logging"
	"github.com/dfsbench/dfsbench/internal/mdengine"
	"github.com/dfsbench/dfsbench/internal/metricsobs"
	"github.com/dfsbench/dfsbench/internal/report"
)

// CommMode selects how the harness builds its communicator, §4.9.
type CommMode string

const (
	// CommLocal simulates the whole job's ranks as goroutines inside this
	// one process, the default for single-host development and tests.
	CommLocal CommMode = "local"
	// CommTCP joins a genuinely multi-host job over plain TCP; this
	// process is exactly one rank. Launching the N processes themselves
	// is the MPI collaborator's job per spec.md §1's Non-goals — this
	// harness only provides the seam a launcher dials into.
	CommTCP CommMode = "tcp"
)

// Config carries the ambient, non-workload flags every invocation needs:
// which backend, how to build the communicator, where to send metrics and
// logs, and what options the selected backend itself should see.
type Config struct {
	BackendName string
	CommMode    CommMode
	CommAddr    string // coordinator address for CommTCP
	Rank        int    // this process's rank, meaningful only for CommTCP
	Size        int    // total world size

	Options map[string]*core.OptionBundle // by backend prefix, see ExtractBackendOptions
	Metrics *metricsobs.Recorder          // recorder observePhase feeds; RunData and RunMetadata do not call observePhase
	Log     *logging.Logger
}

// commandLine joins argv for the report's command_line field the way the
// harness was actually invoked, after config/backend-option peeling.
func commandLine(argv []string) string {
	line := ""
	for i, a := range argv {
		if i > 0 {
			line += " "
		}
		line += a
	}
	return line
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

func (c *Config) logger() *logging.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logging.Default()
}

// configureBackend builds and configures one backend instance using
// whichever option bundle matches c.BackendName, defaulting to an empty
// bundle when the run supplied none.
func (c *Config) configureBackend() (core.Backend, error) {
	b, err := NewBackend(c.BackendName)
	if err != nil {
		return nil, err
	}
	opts := c.Options[c.BackendName]
	if err := b.Configure(opts); err != nil {
		return nil, core.Wrap("configure", err)
	}
	return b, nil
}

// observePhase feeds one phase's aggregate outcome into the metrics
// recorder, if one was supplied.
func (c *Config) observePhase(phase string, bytes int64, dur time.Duration, err error) {
	if c.Metrics != nil {
		c.Metrics.Observe(phase, bytes, dur, err)
	}
}

// RunData runs the Data-Workload Engine per §4.2/§4.7 and returns the
// rank-0 JSON report. Non-rank-0 callers in CommTCP mode return a nil
// document after participating in the run's final barrier.
func RunData(ctx context.Context, cfg *Config, params *core.DataParams, argv []string) (*report.DataDocument, error) {
	log := cfg.logger()
	began := time.Now()

	runRank := func(ctx context.Context, c comm.Comm, p *core.DataParams) ([]dataengine.IterResult, core.Backend, error) {
		p.TaskRank = int32(c.Rank())
		p.NumTasks = int32(c.Size())
		backend, err := cfg.configureBackend()
		if err != nil {
			return nil, nil, err
		}
		eng := dataengine.New(backend, c, p)
		results, err := eng.Run(ctx)
		return results, backend, err
	}

	var doc *report.DataDocument

	switch cfg.CommMode {
	case CommTCP:
		c, err := dialOrListenTCP(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sub, participates := c.Split(int(params.NumTasks))
		if !participates {
			return nil, sub.Barrier(ctx)
		}
		results, backend, err := runRank(ctx, sub, params)
		if err != nil {
			log.Error("data engine run failed", "rank", sub.Rank(), "err", err)
		}
		defer ShutdownBackend(backend)
		if sub.Rank() == 0 {
			doc = buildDataDocument(began, commandLine(argv), params, results)
		}
		if bErr := sub.Barrier(ctx); bErr != nil {
			return doc, bErr
		}
		return doc, err

	default: // CommLocal
		all := make([][]dataengine.IterResult, params.NumTasks)
		backends := make([]core.Backend, params.NumTasks)
		err := comm.RunLocal(int(params.NumTasks), func(c *comm.LocalComm) error {
			localParams := *params
			results, backend, err := runRank(ctx, c, &localParams)
			all[c.Rank()] = results
			backends[c.Rank()] = backend
			if err != nil {
				log.Error("data engine run failed", "rank", c.Rank(), "err", err)
			}
			return err
		})
		for _, b := range backends {
			if b != nil {
				ShutdownBackend(b)
			}
		}
		var merged []dataengine.IterResult
		for _, r := range all {
			merged = append(merged, r...)
		}
		doc = buildDataDocument(began, commandLine(argv), params, merged)
		return doc, err
	}
}

func buildDataDocument(began time.Time, cmdline string, params *core.DataParams, results []dataengine.IterResult) *report.DataDocument {
	var writeResults, readResults []report.DataResult
	for _, r := range results {
		if r.WriteDuration > 0 || r.WriteBytes > 0 {
			writeResults = append(writeResults, report.NewDataResult("write", params.NumTasks, r.Iteration,
				r.WriteBytes, params.BlockSize, params.TransferSize, 0, r.WriteDuration, 0))
		}
		if r.ReadDuration > 0 || r.ReadBytes > 0 {
			readResults = append(readResults, report.NewDataResult("read", params.NumTasks, r.Iteration,
				r.ReadBytes, params.BlockSize, params.TransferSize, 0, r.ReadDuration, 0))
		}
	}
	all := append(append([]report.DataResult{}, writeResults...), readResults...)

	doc := &report.DataDocument{
		Version:     "1.0",
		Began:       began.Format(time.RFC3339),
		CommandLine: cmdline,
		Machine:     hostname(),
		Tests: []report.DataTest{{
			TestID:     report.NewRunID(),
			StartTime:  began.Format(time.RFC3339),
			Parameters: dataParamsToMap(params),
			Options:    map[string]string{},
			Results:    all,
		}},
		Summary:  report.SummarizeDataResults(all),
		Finished: time.Now().Format(time.RFC3339),
	}
	return doc
}

func dataParamsToMap(p *core.DataParams) map[string]any {
	return map[string]any{
		"api":          p.API,
		"testDir":      p.TestDir,
		"transferSize": p.TransferSize,
		"blockSize":    p.BlockSize,
		"segmentCount": p.SegmentCount,
		"numTasks":     p.NumTasks,
		"filePerProc":  p.FilePerProc,
		"repetitions":  p.Repetitions,
	}
}

// RunMetadata runs the Metadata-Workload Engine per §4.6/§4.7 for
// max(1, params.Iterations) repetitions, each against its own
// "<test-dir>/iter.<n>" subtree so repeats don't collide with each other,
// and returns the rank-0 JSON report aggregating every rank's phase counts
// (sum of items, max of elapsed time) into one MdIteration per repeat.
func RunMetadata(ctx context.Context, cfg *Config, params *core.MdtestParams, argv []string) (*report.MdDocument, error) {
	began := time.Now()
	reps := params.Iterations
	if reps <= 0 {
		reps = 1
	}

	var iterations []report.MdIteration
	var lastErr error
	for i := int32(0); i < reps; i++ {
		iterParams := *params
		iterParams.TestDir = fmt.Sprintf("%s/iter.%d", params.TestDir, i)
		iteration, err := runMdIteration(ctx, cfg, &iterParams, int(i))
		if err != nil {
			lastErr = err
		}
		if iteration != nil {
			iterations = append(iterations, *iteration)
		}
	}

	if iterations == nil {
		return nil, lastErr // non-participating or non-rank-0 tcp process
	}
	return buildMdDocument(began, commandLine(argv), params, iterations), lastErr
}

// runMdIteration runs one repetition across every participating rank and
// aggregates their per-rank MdtestResults into a single MdIteration. It
// returns nil (no error) for a tcp-mode process that isn't rank 0, since
// only rank 0 produces a report.
func runMdIteration(ctx context.Context, cfg *Config, params *core.MdtestParams, iter int) (*report.MdIteration, error) {
	log := cfg.logger()

	runRank := func(ctx context.Context, c comm.Comm, p *core.MdtestParams) (mdengine.MdtestResult, core.Backend, error) {
		p.TaskRank = int32(c.Rank())
		p.NumTasks = int32(c.Size())
		backend, err := cfg.configureBackend()
		if err != nil {
			return mdengine.MdtestResult{}, nil, err
		}
		eng := mdengine.New(backend, c, p)
		result, err := eng.Run(ctx)
		return result, backend, err
	}

	switch cfg.CommMode {
	case CommTCP:
		c, err := dialOrListenTCP(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sub, participates := c.Split(int(params.NumTasks))
		if !participates {
			return nil, sub.Barrier(ctx)
		}
		result, backend, err := runRank(ctx, sub, params)
		if err != nil {
			log.Error("metadata engine run failed", "rank", sub.Rank(), "err", err)
		}
		defer ShutdownBackend(backend)
		var out *report.MdIteration
		if sub.Rank() == 0 {
			agg := aggregateMdResults([]mdengine.MdtestResult{result}, iter)
			out = &agg
		}
		if bErr := sub.Barrier(ctx); bErr != nil {
			return out, bErr
		}
		return out, err

	default: // CommLocal
		all := make([]mdengine.MdtestResult, params.NumTasks)
		backends := make([]core.Backend, params.NumTasks)
		err := comm.RunLocal(int(params.NumTasks), func(c *comm.LocalComm) error {
			localParams := *params
			result, backend, err := runRank(ctx, c, &localParams)
			all[c.Rank()] = result
			backends[c.Rank()] = backend
			if err != nil {
				log.Error("metadata engine run failed", "rank", c.Rank(), "err", err)
			}
			return err
		})
		for _, b := range backends {
			if b != nil {
				ShutdownBackend(b)
			}
		}
		agg := aggregateMdResults(all, iter)
		return &agg, err
	}
}

// aggregateMdResults folds every rank's per-phase counts into one
// MdIteration: items sum (the work was split across ranks), elapsed takes
// the max (the phase isn't done until the slowest rank finishes).
func aggregateMdResults(results []mdengine.MdtestResult, iter int) report.MdIteration {
	sum := func(get func(mdengine.MdtestResult) mdengine.PhaseResult) (items int64, elapsed time.Duration) {
		for _, r := range results {
			p := get(r)
			items += p.Items
			if p.Elapsed > elapsed {
				elapsed = p.Elapsed
			}
		}
		return items, elapsed
	}

	phaseEntry := func(name string, get func(mdengine.MdtestResult) mdengine.PhaseResult) report.MdPhaseEntry {
		items, elapsed := sum(get)
		return report.NewMdPhaseEntry(name, items, elapsed)
	}

	phases := []report.MdPhaseEntry{
		phaseEntry(report.PhaseTreeCreate, func(r mdengine.MdtestResult) mdengine.PhaseResult { return r.TreeCreate }),
		phaseEntry(report.PhaseFileCreate, func(r mdengine.MdtestResult) mdengine.PhaseResult { return r.Create }),
		phaseEntry(report.PhaseFileStat, func(r mdengine.MdtestResult) mdengine.PhaseResult { return r.Stat }),
		phaseEntry(report.PhaseFileRead, func(r mdengine.MdtestResult) mdengine.PhaseResult { return r.Read }),
		phaseEntry(report.PhaseDirRename, func(r mdengine.MdtestResult) mdengine.PhaseResult { return r.Rename }),
		phaseEntry(report.PhaseFileRemoval, func(r mdengine.MdtestResult) mdengine.PhaseResult { return r.Remove }),
		phaseEntry(report.PhaseTreeRemoval, func(r mdengine.MdtestResult) mdengine.PhaseResult { return r.TreeRemove }),
	}
	return report.MdIteration{Iteration: iter, Phases: phases}
}

func buildMdDocument(began time.Time, cmdline string, params *core.MdtestParams, iterations []report.MdIteration) *report.MdDocument {
	doc := &report.MdDocument{
		Version:     "1.0",
		Began:       began.Format(time.RFC3339),
		CommandLine: cmdline,
		Machine:     hostname(),
		Tests: []report.MdTest{{
			NumTasks:   params.NumTasks,
			Parameters: mdParamsToMap(params),
			Iterations: iterations,
		}},
		Summary:  report.SummarizeMdPhaseRates(iterations),
		Finished: time.Now().Format(time.RFC3339),
	}
	return doc
}

func mdParamsToMap(p *core.MdtestParams) map[string]any {
	return map[string]any{
		"testDir":      p.TestDir,
		"branchFactor": p.BranchFactor,
		"depth":        p.Depth,
		"itemsPerDir":  p.ItemsPerDir,
		"numTasks":     p.NumTasks,
		"leafOnly":     p.LeafOnly,
	}
}

// dialOrListenTCP builds this process's TCPComm: rank 0 listens as
// coordinator, every other rank dials in as a worker.
func dialOrListenTCP(ctx context.Context, cfg *Config) (comm.Comm, error) {
	if cfg.CommAddr == "" {
		return nil, fmt.Errorf("comm.addr is required in tcp mode")
	}
	if cfg.Rank == 0 {
		return comm.ListenTCPCoordinator(ctx, cfg.CommAddr, cfg.Size)
	}
	return comm.DialTCPWorker(ctx, cfg.CommAddr, cfg.Rank, cfg.Size)
}
