package drm

import "errors"

// ErrNoCdm is returned when AcquireKey is asked for a System no Cdm was
// registered for.
var ErrNoCdm = errors.New("drm: no cdm registered for system")

// ErrPSSHUnavailable is a track-fatal error per §4.4's failure modes: the
// PSSH could not be obtained from the manifest, an init-segment byte-range
// fetch, or a PlayReady-to-Widevine translation.
var ErrPSSHUnavailable = errors.New("drm: pssh unavailable")

// ErrLicenseFailed is returned once the license request has already been
// retried once (after an adapter session refresh) and failed again.
var ErrLicenseFailed = errors.New("drm: license request failed after retry")

// ErrNoMatchingKey is returned when the CDM returned zero keys, or none of
// the returned keys' kid matched the track's kid.
var ErrNoMatchingKey = errors.New("drm: no content key matched track kid")
