package mux

import "strings"

func trimOutput(b []byte) string {
	s := strings.TrimSpace(string(b))
	const max = 2000
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
