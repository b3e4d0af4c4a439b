// Package drm implements the Cdm/DrmSession abstraction of §4.4: the core
// orchestrates license exchange and key extraction, but never implements
// cryptography itself — that is delegated to a caller-supplied Cdm.
//
// Grounded on SatyamHitman-go-ofscraper's internal/drm package (Manager/
// Mode/Config shape, CDRM remote-service pattern) generalized from its
// single hard-coded Widevine-only flow into the spec's two-variant Cdm
// interface and explicit session protocol.
package drm

import "context"

// System discriminates the two supported DRM systems.
type System int

const (
	SystemWidevine System = iota
	SystemPlayReady
)

func (s System) String() string {
	if s == SystemPlayReady {
		return "playready"
	}
	return "widevine"
}

// amazonHDCPTestKID is a published watermark key id some services return
// alongside real content keys; it is not a usable content key and must be
// filtered out of GetKeys results before key matching.
const amazonHDCPTestKID = "b770d5b4bb6b594daf985845aae9aa5f"

// Session is an opaque handle a Cdm implementation uses to correlate
// open/challenge/parse/keys/close calls belonging to one license exchange.
type Session any

// ContentKey mirrors model.ContentKey; kept as a distinct type here so this
// package has no import-time dependency on internal/model, letting a Cdm
// implementation be vendored standalone.
type ContentKey struct {
	KID string
	Key string
}

// Cdm is the capability interface a caller provides for one DRM system.
// The core never constructs a Cdm's cryptographic material; it only drives
// the protocol described in §4.4.
type Cdm interface {
	System() System

	// Open starts a new license session and returns its handle.
	Open(ctx context.Context) (Session, error)

	// SetServiceCertificate installs a privacy certificate ahead of
	// challenge generation. Widevine-only; PlayReady Cdm implementations
	// may no-op.
	SetServiceCertificate(ctx context.Context, session Session, cert []byte) error

	// GetLicenseChallenge builds the challenge to send to the service's
	// license endpoint from the track's init data (a Widevine PSSH box or
	// a PlayReady WRM header string, encoded as bytes).
	GetLicenseChallenge(ctx context.Context, session Session, initData []byte) ([]byte, error)

	// ParseLicense feeds the service's license response back to the CDM.
	ParseLicense(ctx context.Context, session Session, response []byte) error

	// GetKeys returns every content key the CDM extracted from the parsed
	// license, including any watermark/test keys — filtering those out is
	// the session protocol's job, not the Cdm's.
	GetKeys(ctx context.Context, session Session) ([]ContentKey, error)

	// Close releases the session.
	Close(ctx context.Context, session Session) error
}

// FilterWatermarkKeys removes published non-content watermark keys (the
// Amazon HDCP test key being the one named explicitly) from a CDM's raw
// key list.
func FilterWatermarkKeys(keys []ContentKey) []ContentKey {
	out := keys[:0:0]
	for _, k := range keys {
		if k.KID == amazonHDCPTestKID {
			continue
		}
		out = append(out, k)
	}
	return out
}
