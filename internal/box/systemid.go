package box

import "strings"

// Known DRM system ids, as they appear both in a DASH ContentProtection
// @schemeIdUri ("urn:uuid:...") and as mp4ff's PsshBox.SystemID.String().
const (
	SystemIDWidevine  = "edef8ba9-79d6-4ace-a3c8-27dcd51d21ed"
	SystemIDPlayReady = "9a04f079-9840-4286-ab92-e65be0885f95"
)

// SchemeURNToSystemID strips a DASH "urn:uuid:" scheme prefix and lowercases
// the remainder, returning "" if schemeIdURI carries no recognizable uuid.
func SchemeURNToSystemID(schemeIdURI string) string {
	const prefix = "urn:uuid:"
	lc := strings.ToLower(schemeIdURI)
	if !strings.HasPrefix(lc, prefix) {
		return ""
	}
	return strings.TrimPrefix(lc, prefix)
}

// IsWidevineScheme reports whether schemeIdURI identifies the Widevine
// content protection system.
func IsWidevineScheme(schemeIdURI string) bool {
	return SchemeURNToSystemID(schemeIdURI) == SystemIDWidevine
}

// IsPlayReadyScheme reports whether schemeIdURI identifies the PlayReady
// content protection system.
func IsPlayReadyScheme(schemeIdURI string) bool {
	return SchemeURNToSystemID(schemeIdURI) == SystemIDPlayReady
}
