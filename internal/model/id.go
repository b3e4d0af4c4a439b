package model

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// StableTrackID derives a track id that is stable across repeated parses of
// the same manifest: two runs on the same manifest produce the same id,
// per §4.1. It digests the quantities that identify a rendition
// independent of its position in the manifest (codec, language, bitrate,
// and the manifest's own local identifier for the rendition), rather than
// using that local identifier alone, since providers reuse small integer
// ids (e.g. DASH Representation @id="0") across otherwise-unrelated
// renditions.
func StableTrackID(codec, language string, bandwidth int64, localID string) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%s|%d|%s", codec, language, bandwidth, localID)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
