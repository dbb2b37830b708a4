// Package harness wires a selected backend, a communicator, and a Parameter
// Record together to run one Data- or Metadata-Workload Engine invocation,
// the way §4.7 describes: extract options, build the Parameter Record,
// select and configure a backend, carve a sub-communicator, invoke the
// engine, reduce results to rank 0.
package harness

import (
	"fmt"
	"strings"

	"github.com/dfsbench/dfsbench/core"
	"github.com/dfsbench/dfsbench/internal/backends/benchfs"
	"github.com/dfsbench/dfsbench/internal/backends/mem"
	"github.com/dfsbench/dfsbench/internal/backends/posix"
	"github.com/dfsbench/dfsbench/internal/backends/s3"
	"github.com/dfsbench/dfsbench/internal/backends/uring"
)

// registry is the static substitute for spec.md §6's "dynamic C-ABI vtable
// registration" facility: a Go-native backend is its own vtable, so naming
// one by string is all dispatch needs. See DESIGN.md for the full rationale.
var registry = map[string]func() core.Backend{
	"posix":   func() core.Backend { return posix.New() },
	"mem":     func() core.Backend { return mem.New() },
	"benchfs": func() core.Backend { return benchfs.New() },
	"uring":   func() core.Backend { return uring.New() },
	"s3":      func() core.Backend { return s3.New() },
}

// NewBackend looks up name in the registry and returns a fresh, unconfigured
// instance. Callers must still call Configure before issuing operations.
func NewBackend(name string) (core.Backend, error) {
	factory, ok := registry[name]
	if !ok {
		names := make([]string, 0, len(registry))
		for n := range registry {
			names = append(names, n)
		}
		return nil, core.NewError("select_backend", core.CodeInvalidArgument,
			fmt.Sprintf("unknown backend %q, known: %s", name, strings.Join(names, ", ")))
	}
	return factory(), nil
}

// shutdowner is implemented by backends that own process-wide resources
// beyond what core.Backend's per-handle Close covers (an open database, a
// submission ring). Not every backend needs one.
type shutdowner interface {
	Shutdown() error
}

// ShutdownBackend releases any process-wide resources b holds, a no-op for
// backends that don't implement shutdowner.
func ShutdownBackend(b core.Backend) error {
	if s, ok := b.(shutdowner); ok {
		return s.Shutdown()
	}
	return nil
}
