package postprocess

import "strings"

// trimOutput caps a captured stderr/stdout buffer to a sane size for error
// messages, keeping the tail where tool failures usually explain themselves.
func trimOutput(b []byte) string {
	s := strings.TrimSpace(string(b))
	const max = 2000
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
