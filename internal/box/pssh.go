// Package box provides MP4/CENC box-level helpers used to extract and
// translate DRM init data: PSSH payload construction, PlayReady WRMHEADER
// KID extraction, and tenc/init-segment inspection.
//
// Grounded on Diniboy1123/manifesto's internal/utils.go (WRMHEADER decode,
// mp4ff PsshBox construction) and mohaanymo/veld's internal/decryptor
// (init-segment / tenc box walking).
package box

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"regexp"
	"unicode/utf16"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/reelvault/reelvault/internal/model"
)

// playReadyKIDRegexp matches the <KID>...</KID> element of a PlayReady
// WRMHEADER, capturing the base64-encoded raw key id.
var playReadyKIDRegexp = regexp.MustCompile(`<KID>([a-zA-Z0-9+/=]+)</KID>`)

// ExtractPlayReadyKID decodes a UTF-16LE WRMHEADER blob (the payload of a
// PlayReady PSSH box, or the raw ProtectionHeader custom data from a
// Smooth Streaming manifest) and returns the raw 16-byte key id before
// UUID normalization.
func ExtractPlayReadyKID(wrmHeader []byte) ([]byte, error) {
	if len(wrmHeader) < 10 {
		return nil, fmt.Errorf("wrmheader too short: %d bytes", len(wrmHeader))
	}
	shorts := make([]uint16, (len(wrmHeader)-10)/2)
	for i := range shorts {
		shorts[i] = uint16(wrmHeader[10+2*i]) | uint16(wrmHeader[11+2*i])<<8
	}
	decoded := utf16.Decode(shorts)

	match := playReadyKIDRegexp.FindStringSubmatch(string(decoded))
	if len(match) < 2 {
		return nil, fmt.Errorf("no <KID> element found in WRMHEADER")
	}
	raw, err := base64.StdEncoding.DecodeString(match[1])
	if err != nil {
		return nil, fmt.Errorf("decoding base64 kid: %w", err)
	}
	if len(raw) != 16 {
		return nil, fmt.Errorf("decoded kid is %d bytes, want 16", len(raw))
	}
	return raw, nil
}

// TrimTrailingNulls removes trailing null bytes some providers pad
// ProtectionHeader data with.
func TrimTrailingNulls(data []byte) []byte {
	return bytes.TrimRight(data, "\x00")
}

// BuildPSSH wraps data in an mp4ff PsshBox for the given system id
// ("widevine" or "playready" per mp4ff's mp4.UUIDWidevine/mp4.UUIDPlayReady
// constants) and returns the encoded box bytes.
func BuildPSSH(systemID string, data []byte) ([]byte, error) {
	uuid, err := mp4.NewUUIDFromString(systemID)
	if err != nil {
		return nil, fmt.Errorf("parsing system id: %w", err)
	}
	psshBox := &mp4.PsshBox{
		Version:  0,
		Flags:    0,
		SystemID: uuid,
		Data:     data,
	}
	var buf bytes.Buffer
	if err := psshBox.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encoding pssh box: %w", err)
	}
	return buf.Bytes(), nil
}

// TranslatePlayReadyToWidevinePSSH implements the §4.4 PSSH translation
// path: given a raw PlayReady PSSH payload (the WRMHEADER blob, not the
// enclosing box), it extracts the KID and wraps it in a synthetic Widevine
// PSSH box carrying that KID so a Widevine CDM can be challenged even when
// only PlayReady init data was published. This is a KID carrier, not a
// cryptographic equivalence: the resulting PSSH has no Widevine-specific
// content protection data beyond the key id.
func TranslatePlayReadyToWidevinePSSH(wrmHeader []byte) ([]byte, string, error) {
	raw, err := ExtractPlayReadyKID(TrimTrailingNulls(wrmHeader))
	if err != nil {
		return nil, "", err
	}
	kid, err := model.NormalizeKIDBytes(raw)
	if err != nil {
		return nil, "", err
	}
	psshData, err := BuildPSSH(mp4.UUIDWidevine, raw)
	if err != nil {
		return nil, "", err
	}
	return psshData, kid, nil
}

// ParsePSSHSystemID decodes a PSSH box and returns its system id as a
// lowercase hyphenated UUID string, used by round-trip tests to confirm a
// translated PSSH really carries the Widevine system id.
func ParsePSSHSystemID(psshBox []byte) (string, error) {
	box, err := mp4.DecodeBox(0, bytes.NewReader(psshBox))
	if err != nil {
		return "", fmt.Errorf("decoding pssh box: %w", err)
	}
	pssh, ok := box.(*mp4.PsshBox)
	if !ok {
		return "", fmt.Errorf("box is not a pssh box: %T", box)
	}
	return pssh.SystemID.String(), nil
}
