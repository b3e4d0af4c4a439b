package box

import (
	"bytes"
	"fmt"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/reelvault/reelvault/internal/model"
)

// TencInfo carries the per-track encryption parameters from an init
// segment's tenc box.
type TencInfo struct {
	DefaultIsProtected byte
	DefaultPerSampleIV byte
	DefaultKID         []byte
	DefaultConstantIV  []byte
}

// ExtractTenc walks an already-decoded init segment's sample table looking
// for an encrypted sample entry's sinf/schi/tenc box. Grounded on
// mohaanymo/veld's internal/decryptor.extractTencInfo.
func ExtractTenc(init *mp4.InitSegment) (*TencInfo, error) {
	if init == nil || init.Moov == nil {
		return nil, fmt.Errorf("init segment has no moov box")
	}
	for _, trak := range init.Moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
			continue
		}
		stsd := trak.Mdia.Minf.Stbl.Stsd
		if stsd == nil {
			continue
		}
		for _, child := range stsd.Children {
			var sinf *mp4.SinfBox
			switch entry := child.(type) {
			case *mp4.VisualSampleEntryBox:
				sinf = entry.Sinf
			case *mp4.AudioSampleEntryBox:
				sinf = entry.Sinf
			}
			if sinf == nil || sinf.Schi == nil || sinf.Schi.Tenc == nil {
				continue
			}
			tenc := sinf.Schi.Tenc
			return &TencInfo{
				DefaultIsProtected: tenc.DefaultIsProtected,
				DefaultPerSampleIV: tenc.DefaultPerSampleIVSize,
				DefaultKID:         tenc.DefaultKID,
				DefaultConstantIV:  tenc.DefaultConstantIV,
			}, nil
		}
	}
	return nil, fmt.Errorf("no tenc box found in init segment")
}

// ExtractKIDFromInitSegment decodes a byte-range-fetched init segment and
// returns its normalized KID. Nothing in the pipeline calls it: the
// orchestrator reads the KID only from what the manifest parse put on the
// TrackHeader.
func ExtractKIDFromInitSegment(data []byte) (string, error) {
	init, err := mp4.DecodeFile(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding init segment: %w", err)
	}
	if init.Init == nil {
		return "", fmt.Errorf("no init segment found")
	}
	tenc, err := ExtractTenc(init.Init)
	if err != nil {
		return "", err
	}
	if len(tenc.DefaultKID) != 16 {
		return "", fmt.Errorf("tenc default_KID is %d bytes, want 16", len(tenc.DefaultKID))
	}
	return model.NormalizeKID(encodeHex(tenc.DefaultKID))
}

func encodeHex(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexdigits[v>>4]
		out[i*2+1] = hexdigits[v&0x0f]
	}
	return string(out)
}

// ExtractPSSHBoxes scans an init segment's moov for pssh boxes (stored at
// the moov level, one per DRM system) and returns their raw encoded bytes
// keyed by lowercase hyphenated system id.
func ExtractPSSHBoxes(init *mp4.InitSegment) (map[string][]byte, error) {
	if init == nil || init.Moov == nil {
		return nil, fmt.Errorf("init segment has no moov box")
	}
	out := make(map[string][]byte)
	for _, p := range init.Moov.Psshs {
		var buf bytes.Buffer
		if err := p.Encode(&buf); err != nil {
			return nil, fmt.Errorf("encoding pssh box: %w", err)
		}
		out[p.SystemID.String()] = buf.Bytes()
	}
	return out, nil
}
