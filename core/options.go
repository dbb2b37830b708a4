package core

import "strings"

// OptionBundle holds the backend-specific options extracted from argv for a
// single prefix, e.g. everything passed as --posix.* or --s3.*.
type OptionBundle struct {
	prefix string
	values map[string]string
}

func newOptionBundle(prefix string) *OptionBundle {
	return &OptionBundle{prefix: prefix, values: map[string]string{}}
}

// Get returns the raw string value for key and whether it was set.
func (b *OptionBundle) Get(key string) (string, bool) {
	v, ok := b.values[key]
	return v, ok
}

// GetOr returns the value for key, or def if it was never set.
func (b *OptionBundle) GetOr(key, def string) string {
	if v, ok := b.values[key]; ok {
		return v
	}
	return def
}

// Bool reports whether key is present and not explicitly "false"/"0".
func (b *OptionBundle) Bool(key string) bool {
	v, ok := b.values[key]
	if !ok {
		return false
	}
	return v != "false" && v != "0"
}

// Len reports how many options this bundle holds.
func (b *OptionBundle) Len() int { return len(b.values) }

// ExtractOptions peels every --<prefix>.<key>[=<value>] (and its
// space-separated and bare-flag variants) for the given prefix out of argv,
// returning the populated bundle and the remaining argv with those tokens
// removed. argv[0] (the program name) is passed through untouched.
//
// Recognized forms, in precedence order:
//
//	--prefix.key=value   value taken verbatim after '='
//	--prefix.key value   next token consumed as value, unless it itself
//	                      looks like a flag (starts with "--")
//	--prefix.key         bare flag, stored as "true"
func ExtractOptions(prefix string, argv []string) (*OptionBundle, []string) {
	bundle := newOptionBundle(prefix)
	full := "--" + prefix + "."
	remaining := make([]string, 0, len(argv))

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if !strings.HasPrefix(arg, full) {
			remaining = append(remaining, arg)
			continue
		}
		rest := arg[len(full):]
		if eq := strings.IndexByte(rest, '='); eq >= 0 {
			bundle.values[rest[:eq]] = rest[eq+1:]
			continue
		}
		if i+1 < len(argv) && !strings.HasPrefix(argv[i+1], "--") {
			bundle.values[rest] = argv[i+1]
			i++
			continue
		}
		bundle.values[rest] = "true"
	}
	return bundle, remaining
}
