package harness

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dfsbench/dfsbench/internal/config"
	"github.com/dfsbench/dfsbench/internal/logging"
	"github.com/dfsbench/dfsbench/internal/metricsobs"
)

// LoadOverlay reads an optional --config file and applies its defaults to
// argv, ahead of any other parsing, the way §3.1 describes a site overlay
// taking effect before a command's own flag defaults.
func LoadOverlay(path string, argv []string) ([]string, error) {
	overlay, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return overlay.Apply(argv), nil
}

// NewLogger builds the process logger at the requested level, defaulting to
// info on an unparseable level name.
func NewLogger(level string) *logging.Logger {
	cfg := logging.DefaultConfig()
	if lvl, err := logging.ParseLevel(level); err == nil {
		cfg.Level = lvl
	}
	return logging.NewLogger(cfg)
}

// ServeMetrics registers a Recorder against prometheus.DefaultRegisterer
// and, if addr is non-empty, starts a background HTTP server exposing
// /metrics for the life of the process. Passing "" disables the listener
// but still returns a usable Recorder (§4.7); RunData and RunMetadata do
// not call Observe on it.
func ServeMetrics(addr string) *metricsobs.Recorder {
	rec := metricsobs.NewRecorder(prometheus.DefaultRegisterer)
	if addr == "" {
		return rec
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsobs.Handler(prometheus.DefaultGatherer))
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = server.ListenAndServe()
	}()
	return rec
}

// Context is a thin convenience wrapper so cmd/ doesn't need its own
// context import just to pass context.Background() around.
func Context() context.Context { return context.Background() }
