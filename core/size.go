package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSize parses a size flag value per spec.md §6/§8: a decimal integer
// optionally followed by a case-insensitive k/m/g/t suffix, each a power of
// 1024 (not 1000).
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, NewError("parse_size", CodeInvalidArgument, "empty size")
	}

	mult := int64(1)
	last := s[len(s)-1]
	switch last {
	case 'k', 'K':
		mult = 1 << 10
	case 'm', 'M':
		mult = 1 << 20
	case 'g', 'G':
		mult = 1 << 30
	case 't', 'T':
		mult = 1 << 40
	}
	numPart := s
	if mult != 1 {
		numPart = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(numPart), 10, 64)
	if err != nil {
		return 0, NewError("parse_size", CodeInvalidArgument, fmt.Sprintf("invalid size %q", s))
	}
	return n * mult, nil
}
