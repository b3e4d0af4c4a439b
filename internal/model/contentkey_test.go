package model

import (
	"encoding/base64"
	"testing"
)

func TestNormalizeKIDBytes(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	got, err := NormalizeKIDBytes(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "0403020106050807090a0b0c0d0e0f10"
	if got != want {
		t.Errorf("NormalizeKIDBytes() = %q, want %q", got, want)
	}
	if !ValidKID(got) {
		t.Errorf("NormalizeKIDBytes() produced invalid kid %q", got)
	}
}

func TestNormalizeKIDBytesWrongLength(t *testing.T) {
	if _, err := NormalizeKIDBytes([]byte{0x01, 0x02}); err == nil {
		t.Error("expected error for short kid, got nil")
	}
}

func TestNormalizeKIDIdempotent(t *testing.T) {
	raw := make([]byte, 16)
	for i := range raw {
		raw[i] = byte(i * 7)
	}
	once, err := NormalizeKIDBytes(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	twice, err := NormalizeKID(once)
	if err != nil {
		t.Fatalf("unexpected error normalizing already-normal kid: %v", err)
	}
	if twice != once {
		t.Errorf("NormalizeKID is not idempotent: %q != %q", twice, once)
	}

	thrice, err := NormalizeKID(twice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if thrice != twice {
		t.Errorf("repeated NormalizeKID changed value: %q != %q", thrice, twice)
	}
}

func TestNormalizeKIDStripsFormatting(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"hyphenated", "ABCDEF01-2345-6789-ABCD-EF0123456789", "abcdef0123456789abcdef0123456789"},
		{"braced", "{abcdef0123456789abcdef0123456789}", "abcdef0123456789abcdef0123456789"},
		{"already lowercase hex", "abcdef0123456789abcdef0123456789", "abcdef0123456789abcdef0123456789"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeKID(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("NormalizeKID(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizeKIDBase64RoundTrip(t *testing.T) {
	// A PlayReady WRMHEADER KID is base64 of 16 raw bytes.
	raw := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
	b64 := base64.StdEncoding.EncodeToString(raw)

	decoded, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kid, err := NormalizeKIDBytes(decoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kid) != 32 {
		t.Fatalf("expected 32 lowercase hex chars, got %q (len %d)", kid, len(kid))
	}
	for _, r := range kid {
		if r >= 'A' && r <= 'Z' {
			t.Fatalf("kid %q is not lowercase", kid)
		}
	}
}
