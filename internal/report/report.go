// Package report builds and encodes the JSON documents described in
// spec.md §6 for both the Data-Workload Engine and the Metadata-Workload
// Engine. Encoding goes through json-iterator/go's standard-library-compatible
// configuration rather than encoding/json, the way the aistore proxy code
// it is grounded on does for its own hot-path marshaling.
package report

import (
	"math"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/google/uuid"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewRunID mints a collision-free identifier for one harness invocation,
// stamped into a data report's TestID field.
func NewRunID() string {
	return uuid.NewString()
}

// DataResult is one access-mode row of spec.md §6's data-engine Results[].
type DataResult struct {
	Access    string  `json:"access"`
	BwMiB     float64 `json:"bwMiB"`
	BlockKiB  float64 `json:"blockKiB"`
	XferKiB   float64 `json:"xferKiB"`
	IOPS      float64 `json:"iops"`
	Latency   float64 `json:"latency"`
	OpenTime  float64 `json:"openTime"`
	WrRdTime  float64 `json:"wrRdTime"`
	CloseTime float64 `json:"closeTime"`
	TotalTime float64 `json:"totalTime"`
	NumTasks  int32   `json:"numTasks"`
	Iter      int     `json:"iter"`
}

// NewDataResult computes the derived bandwidth/IOPS/latency fields from raw
// byte counts and phase durations, the way the harness does once an
// iteration of the Data-Workload Engine completes.
func NewDataResult(access string, numTasks int32, iter int, bytes, blockSize, xferSize int64, openTime, rdwrTime, closeTime time.Duration) DataResult {
	total := openTime + rdwrTime + closeTime
	r := DataResult{
		Access:    access,
		BlockKiB:  float64(blockSize) / 1024,
		XferKiB:   float64(xferSize) / 1024,
		NumTasks:  numTasks,
		Iter:      iter,
		OpenTime:  openTime.Seconds(),
		WrRdTime:  rdwrTime.Seconds(),
		CloseTime: closeTime.Seconds(),
		TotalTime: total.Seconds(),
	}
	if rdwrTime > 0 {
		seconds := rdwrTime.Seconds()
		r.BwMiB = float64(bytes) / (1024 * 1024) / seconds
		if xferSize > 0 {
			ops := float64(bytes) / float64(xferSize)
			r.IOPS = ops / seconds
			if ops > 0 {
				r.Latency = seconds / ops
			}
		}
	}
	return r
}

// DataSummary is one row of spec.md §6's data-engine summary[].
type DataSummary struct {
	Access    string  `json:"access"`
	BwMaxMIB  float64 `json:"bwMaxMIB"`
	BwMinMIB  float64 `json:"bwMinMIB"`
	BwMeanMIB float64 `json:"bwMeanMIB"`
	BwStdMIB  float64 `json:"bwStdMIB"`
	OPsMax    float64 `json:"OPsMax"`
	OPsMin    float64 `json:"OPsMin"`
	OPsMean   float64 `json:"OPsMean"`
	OPsStdDev float64 `json:"OPsStdDev"`
	MeanTime  float64 `json:"MeanTime"`
}

func meanStddev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	stddev = math.Sqrt(sqDiff / float64(len(values)))
	return mean, stddev
}

func minMax(values []float64) (min, max float64) {
	if len(values) == 0 {
		return 0, 0
	}
	min, max = values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// SummarizeDataResults groups results by access mode and computes
// spec.md §6's max/min/mean/stddev rollups for each.
func SummarizeDataResults(results []DataResult) []DataSummary {
	byAccess := map[string][]DataResult{}
	var order []string
	for _, r := range results {
		if _, ok := byAccess[r.Access]; !ok {
			order = append(order, r.Access)
		}
		byAccess[r.Access] = append(byAccess[r.Access], r)
	}

	summaries := make([]DataSummary, 0, len(order))
	for _, access := range order {
		rows := byAccess[access]
		bw := make([]float64, len(rows))
		ops := make([]float64, len(rows))
		times := make([]float64, len(rows))
		for i, row := range rows {
			bw[i] = row.BwMiB
			ops[i] = row.IOPS
			times[i] = row.TotalTime
		}
		bwMean, bwStd := meanStddev(bw)
		bwMin, bwMax := minMax(bw)
		opsMean, opsStd := meanStddev(ops)
		opsMin, opsMax := minMax(ops)
		meanTime, _ := meanStddev(times)
		summaries = append(summaries, DataSummary{
			Access:    access,
			BwMaxMIB:  bwMax,
			BwMinMIB:  bwMin,
			BwMeanMIB: bwMean,
			BwStdMIB:  bwStd,
			OPsMax:    opsMax,
			OPsMin:    opsMin,
			OPsMean:   opsMean,
			OPsStdDev: opsStd,
			MeanTime:  meanTime,
		})
	}
	return summaries
}

// DataTest is one entry of spec.md §6's data-engine tests[].
type DataTest struct {
	TestID     string            `json:"TestID"`
	StartTime  string            `json:"StartTime"`
	Parameters map[string]any    `json:"Parameters"`
	Options    map[string]string `json:"Options"`
	Results    []DataResult      `json:"Results"`
}

// DataDocument is the full spec.md §6 data-engine JSON report.
type DataDocument struct {
	Version     string        `json:"version"`
	Began       string        `json:"began"`
	CommandLine string        `json:"command_line"`
	Machine     string        `json:"machine"`
	Tests       []DataTest    `json:"tests"`
	Summary     []DataSummary `json:"summary"`
	Finished    string        `json:"finished"`
}

// Marshal encodes doc the same way for both document kinds: indented, the
// way a report meant for a human to read after the run finishes should be.
func Marshal(doc any) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Metadata-Workload Engine phase names, spec.md §6.
const (
	PhaseDirCreation = "Directory creation"
	PhaseDirStat     = "Directory stat"
	PhaseDirRead     = "Directory read"
	PhaseDirRename   = "Directory rename"
	PhaseDirRemoval  = "Directory removal"
	PhaseFileCreate  = "File creation"
	PhaseFileStat    = "File stat"
	PhaseFileRead    = "File read"
	PhaseFileRemoval = "File removal"
	PhaseTreeCreate  = "Tree creation"
	PhaseTreeRemoval = "Tree removal"
)

// MdPhaseEntry is one entry of an iteration's phases[] in the
// metadata-engine report.
type MdPhaseEntry struct {
	Phase string  `json:"phase"`
	Rate  float64 `json:"rate"`
	Time  float64 `json:"time"`
	Items int64   `json:"items"`
}

// NewMdPhaseEntry computes items/elapsed as the phase's rate.
func NewMdPhaseEntry(phase string, items int64, elapsed time.Duration) MdPhaseEntry {
	e := MdPhaseEntry{Phase: phase, Items: items, Time: elapsed.Seconds()}
	if elapsed > 0 {
		e.Rate = float64(items) / elapsed.Seconds()
	}
	return e
}

// MdIteration is one iterations[] entry.
type MdIteration struct {
	Iteration int            `json:"iteration"`
	Phases    []MdPhaseEntry `json:"phases"`
}

// MdTest is one tests[] entry.
type MdTest struct {
	NumTasks   int32          `json:"num_tasks"`
	Parameters map[string]any `json:"parameters"`
	Iterations []MdIteration  `json:"iterations"`
}

// MdSummary is one summary[] entry.
type MdSummary struct {
	Phase  string  `json:"phase"`
	Max    float64 `json:"max"`
	Min    float64 `json:"min"`
	Mean   float64 `json:"mean"`
	Stddev float64 `json:"stddev"`
}

// SummarizeMdPhaseRates groups rates across iterations by phase name and
// computes the max/min/mean/stddev rollups of spec.md §6.
func SummarizeMdPhaseRates(iterations []MdIteration) []MdSummary {
	byPhase := map[string][]float64{}
	var order []string
	for _, it := range iterations {
		for _, ph := range it.Phases {
			if _, ok := byPhase[ph.Phase]; !ok {
				order = append(order, ph.Phase)
			}
			byPhase[ph.Phase] = append(byPhase[ph.Phase], ph.Rate)
		}
	}
	summaries := make([]MdSummary, 0, len(order))
	for _, phase := range order {
		rates := byPhase[phase]
		mean, stddev := meanStddev(rates)
		min, max := minMax(rates)
		summaries = append(summaries, MdSummary{Phase: phase, Max: max, Min: min, Mean: mean, Stddev: stddev})
	}
	return summaries
}

// MdDocument is the full spec.md §6 metadata-engine JSON report.
type MdDocument struct {
	Version     string      `json:"version"`
	Began       string      `json:"began"`
	CommandLine string      `json:"command_line"`
	Machine     string      `json:"machine"`
	Tests       []MdTest    `json:"tests"`
	Summary     []MdSummary `json:"summary"`
	Finished    string      `json:"finished"`
}
