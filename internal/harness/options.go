package harness

import (
	"regexp"

	"github.com/dfsbench/dfsbench/core"
)

// prefixPattern finds candidate "--<prefix>.<key>" tokens so every
// backend-option prefix present in argv can be peeled out before the CLI's
// own flag parser runs, exactly as spec.md §6 describes: "Backend-specific
// options travel through --<prefix>.<key>[=value]; they are peeled from the
// arg vector before the main parser runs." No standard flag in spec.md §6's
// lists contains a dot, so any dotted flag name is unambiguously a backend
// option.
var prefixPattern = regexp.MustCompile(`^--([a-zA-Z0-9_-]+)\.`)

// ExtractBackendOptions peels every --<prefix>.<key>[=value] token for every
// prefix present in argv, grouping them by prefix, and returns the argv with
// all of them removed. Only the bundle matching the selected backend's Name
// is meaningful to that backend; bundles for other prefixes are discarded by
// the caller, matching how a real run only configures the one backend it
// selected.
func ExtractBackendOptions(argv []string) (map[string]*core.OptionBundle, []string) {
	prefixes := map[string]bool{}
	for _, a := range argv {
		if m := prefixPattern.FindStringSubmatch(a); m != nil {
			prefixes[m[1]] = true
		}
	}

	bundles := map[string]*core.OptionBundle{}
	remaining := argv
	for prefix := range prefixes {
		bundle, rest := core.ExtractOptions(prefix, remaining)
		bundles[prefix] = bundle
		remaining = rest
	}
	return bundles, remaining
}
