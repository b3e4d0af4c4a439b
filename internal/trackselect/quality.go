package trackselect

import (
	"fmt"
	"strings"

	"github.com/reelvault/reelvault/internal/model"
)

// ParseQualityHeight converts a quality token ("1080p", "4k", "sd", ...)
// into a target height in pixels. Grounded on mohaanymo/veld's
// selector.go parseResolution.
func ParseQualityHeight(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "4k", "2160p", "uhd":
		return 2160
	case "1440p", "2k", "qhd":
		return 1440
	case "1080p", "fhd":
		return 1080
	case "720p", "hd":
		return 720
	case "480p", "sd":
		return 480
	case "360p":
		return 360
	case "240p":
		return 240
	case "144p":
		return 144
	default:
		var height int
		fmt.Sscanf(s, "%dp", &height)
		return height
	}
}

// resolveHeight returns a video track's effective height for quality
// matching, falling back to a 16:9-derived estimate from width when the
// manifest omitted an explicit height.
func resolveHeight(t *model.VideoTrack) int {
	if t.Height > 0 {
		return t.Height
	}
	if t.Width > 0 {
		return t.Width * 9 / 16
	}
	return 0
}

// matchesQuality reports whether t belongs to the requested quality tier,
// applying the documented 1248x520 carve-out: one provider labels its "SD"
// tier with that non-standard resolution instead of the expected 480p.
func matchesQuality(t *model.VideoTrack, targetHeight int) bool {
	if targetHeight == 0 {
		return true
	}
	if targetHeight == 480 && t.Width == 1248 && t.Height == 520 {
		return true
	}
	return resolveHeight(t) <= targetHeight
}
