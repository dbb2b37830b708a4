// Package config loads an optional TOML overlay (--config <file>.toml) that
// pins CLI flag and backend-option defaults for a site, applied before the
// command's own flag defaults take over. Grounded on dsmmcken-dh-cli's
// TOML-backed config package.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Overlay is the decoded shape of a --config file.
type Overlay struct {
	Backend  string                       `toml:"backend,omitempty"`
	Defaults map[string]string            `toml:"defaults,omitempty"`
	Options  map[string]map[string]string `toml:"options,omitempty"`
}

// Load reads and decodes path. A missing file is not an error; it returns a
// zero-value Overlay so an unset --config flag is a no-op.
func Load(path string) (*Overlay, error) {
	o := &Overlay{}
	if path == "" {
		return o, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return o, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, o); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return o, nil
}

// hasFlag reports whether argv already sets --name, in any of
// core.ExtractOptions' recognized forms (--name=v, --name v, bare --name).
func hasFlag(argv []string, name string) bool {
	prefix := "--" + name
	for _, a := range argv {
		if a == prefix || strings.HasPrefix(a, prefix+"=") || strings.HasPrefix(a, prefix+".") {
			return true
		}
	}
	return false
}

// Apply prepends every overlay-supplied default and backend option as a
// --name=value token, skipping any name argv already sets explicitly, so
// flags the caller actually passed always win. argv[0] (the program name)
// is left in place at index 0.
func (o *Overlay) Apply(argv []string) []string {
	if o == nil || len(argv) == 0 {
		return argv
	}
	var inject []string

	for name, value := range o.Defaults {
		if !hasFlag(argv, name) {
			inject = append(inject, fmt.Sprintf("--%s=%s", name, value))
		}
	}
	for prefix, kvs := range o.Options {
		for key, value := range kvs {
			name := prefix + "." + key
			if !hasFlag(argv, name) {
				inject = append(inject, fmt.Sprintf("--%s=%s", name, value))
			}
		}
	}
	if len(inject) == 0 {
		return argv
	}

	out := make([]string, 0, len(argv)+len(inject))
	out = append(out, argv[0])
	out = append(out, inject...)
	out = append(out, argv[1:]...)
	return out
}
