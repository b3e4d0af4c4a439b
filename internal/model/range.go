package model

import "strings"

// DetectRange infers a video track's dynamic range signalling from its
// codec string and, where the manifest surfaces it, the transfer
// characteristics supplemental property, per §4.1's range-detection rule.
// dv and hdr10 are mutually exclusive with each other and with hlg; dv
// takes precedence since a dvhe/dvh1 codec string implies Dolby Vision
// regardless of any accompanying HDR10 signalling.
func DetectRange(codec string, transferCharacteristics string) Range {
	lc := strings.ToLower(codec)
	switch {
	case strings.HasPrefix(lc, "dvhe"), strings.HasPrefix(lc, "dvh1"), strings.HasPrefix(lc, "dva1"), strings.HasPrefix(lc, "dvav"):
		return RangeDV
	case strings.Contains(transferCharacteristics, "14"):
		// MPEG-CICP transfer characteristic 14 = ARIB STD-B67 (HLG).
		return RangeHLG
	case (strings.HasPrefix(lc, "hvc1") || strings.HasPrefix(lc, "hev1")) && strings.Contains(lc, ".2."):
		// HEVC Main10 profile (general_profile_idc 2) signals HDR10 when
		// accompanied by an HDR10 mastering-metadata box; absent finer box
		// inspection, Main10 is treated as the HDR10 candidate per spec.
		return RangeHDR10
	default:
		return RangeSDR
	}
}
