package model

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ContentKey is a decryption key paired with the content key id that
// unlocks it. Both fields are lowercase hex; KID is 32 hex chars (16 bytes)
// in little-endian UUID byte order once normalized.
type ContentKey struct {
	KID string
	Key string
}

// NormalizeKIDBytes rewrites a raw 16-byte PlayReady key id into the
// canonical little-endian UUID byte order and returns its 32-char lowercase
// hex encoding. It is grounded on the UUID byte-swap performed in
// Diniboy1123/manifesto's ExtractPRKeyIdFromPssh: bytes 0-3, 4-5, and 6-7
// of a UUID-formatted KID are byte-reversed relative to the raw key bytes.
// This swap is applied exactly once, at extraction time; once a KID has
// been turned into a 32-hex string it is canonicalized going forward with
// NormalizeKID, which never swaps again.
func NormalizeKIDBytes(raw []byte) (string, error) {
	if len(raw) != 16 {
		return "", fmt.Errorf("kid must be 16 bytes, got %d", len(raw))
	}
	swapped := []byte{
		raw[3], raw[2], raw[1], raw[0],
		raw[5], raw[4],
		raw[7], raw[6],
		raw[8], raw[9], raw[10], raw[11], raw[12], raw[13], raw[14], raw[15],
	}
	return hex.EncodeToString(swapped), nil
}

// NormalizeKID canonicalizes an already-hex-or-hyphenated KID string: it
// strips hyphens/braces and lowercases, without touching byte order. Unlike
// NormalizeKIDBytes this performs no byte swap, so it is idempotent:
// normalizing an already-normalized KID is a no-op.
func NormalizeKID(s string) (string, error) {
	s = strings.ToLower(s)
	s = strings.NewReplacer("-", "", "{", "", "}", "").Replace(s)
	if !ValidKID(s) {
		return "", fmt.Errorf("not a valid 32-hex-char kid: %q", s)
	}
	return s, nil
}

// ValidKID reports whether s is a normalized 32-char lowercase hex KID.
func ValidKID(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}
