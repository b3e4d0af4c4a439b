package postprocess

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/asticode/go-astisub"
)

// ConvertToSRT parses a subtitle payload in its source format and
// serializes it straight to SRT, with no cue-text reflow.
//
// Upstream carries two conversion paths: one that splits long TTML/WebVTT
// cues into balanced two-line pairs, and a second that's a bare
// parse-then-write. Only the second is ever called in practice — the first
// is dead code behind a disabled call site. This follows the live
// behavior: subtitles.ReadFrom<Format> then WriteToSRT, unmodified.
func ConvertToSRT(data []byte, codec string) ([]byte, error) {
	subs, err := parseCaptions(data, codec)
	if err != nil {
		return nil, fmt.Errorf("convert to srt: %w", err)
	}

	var out bytes.Buffer
	if err := subs.WriteToSRT(&out); err != nil {
		return nil, fmt.Errorf("convert to srt: write: %w", err)
	}
	return out.Bytes(), nil
}

func parseCaptions(data []byte, codec string) (*astisub.Subtitles, error) {
	r := bytes.NewReader(data)
	c := strings.ToLower(codec)

	switch {
	case c == "srt":
		return astisub.ReadFromSRT(r)
	case c == "ass" || c == "ssa":
		return astisub.ReadFromSSA(r)
	case c == "stl":
		return astisub.ReadFromSTL(r)
	case c == "vtt" || c == "webvtt" || c == "wvtt" || strings.HasPrefix(c, "webvtt"):
		return astisub.ReadFromWebVTT(r)
	case c == "dfxp" || c == "ttml" || c == "tt" || strings.HasPrefix(c, "ttml"):
		return astisub.ReadFromTTML(r)
	default:
		return nil, fmt.Errorf("unknown subtitle format: %q", codec)
	}
}
