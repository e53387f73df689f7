// Package values converts loosely typed configuration values. TOML decodes
// integers as int64, environment overrides arrive as strings and tests set
// plain Go values; every ConfigStore reads them through these helpers.
package values

import (
	"strconv"
	"strings"
)

// String returns v if it is a string, else "".
func String(v any) string {
	s, _ := v.(string)
	return s
}

// Int converts v to an int. Unparseable values yield 0.
func Int(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

// Float converts v to a float64. Unparseable values yield 0.
func Float(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Bool converts v to a bool. Strings use strconv.ParseBool.
func Bool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	default:
		return false
	}
}
