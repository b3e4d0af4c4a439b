package trackselect

import "strconv"

// ParseBandwidth converts bandwidth strings like "128k", "2M", "5000000" to
// bits per second. Grounded on mohaanymo/veld's selector.go parseBandwidth.
func ParseBandwidth(s string) int64 {
	if s == "" {
		return 0
	}
	multiplier := int64(1)
	switch s[len(s)-1] {
	case 'k', 'K':
		multiplier = 1000
		s = s[:len(s)-1]
	case 'm', 'M':
		multiplier = 1000000
		s = s[:len(s)-1]
	case 'g', 'G':
		multiplier = 1000000000
		s = s[:len(s)-1]
	}
	val, _ := strconv.ParseInt(s, 10, 64)
	return val * multiplier
}
