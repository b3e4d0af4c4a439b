// Package model defines the canonical Title/Track/TrackSet data model shared
// by every pipeline stage.
package model

import "fmt"

// Descriptor records what kind of manifest a track came from.
type Descriptor int

const (
	DescriptorURL Descriptor = iota
	DescriptorM3U
	DescriptorMPD
	DescriptorISM
)

func (d Descriptor) String() string {
	switch d {
	case DescriptorM3U:
		return "M3U"
	case DescriptorMPD:
		return "MPD"
	case DescriptorISM:
		return "ISM"
	default:
		return "URL"
	}
}

// Kind discriminates the track sum type. Replaces the source's deep
// inheritance hierarchy among track classes (see DESIGN.md redesign notes).
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Range is a video track's dynamic range signalling. The zero value is SDR;
// the three non-SDR values are mutually exclusive per the spec.
type Range int

const (
	RangeSDR Range = iota
	RangeHDR10
	RangeDV
	RangeHLG
)

func (r Range) String() string {
	switch r {
	case RangeHDR10:
		return "HDR10"
	case RangeDV:
		return "DV"
	case RangeHLG:
		return "HLG"
	default:
		return "SDR"
	}
}

// location tracks a track's on-disk lifecycle: unset -> downloaded ->
// (decrypted | repackaged | swapped) -> deleted-or-moved.
type location struct {
	path      string
	decrypted bool
}

// ByteRange is an HTTP byte-range request, used by DASH SegmentList/BaseURL
// addressing and by ISM's single-file QualityLevel addressing.
type ByteRange struct {
	Start int64
	End   int64 // inclusive, 0 means "to end of file"
}

// Segment is one fetchable unit of a track's media timeline.
type Segment struct {
	Index    int
	URL      string
	Duration float64 // seconds
	Range    *ByteRange

	// DiscontinuityStart marks that this segment opens a new
	// EXT-X-DISCONTINUITY span in an HLS media playlist (§4.3's "longest
	// continuous discontinuity span" rule). Always false outside HLS.
	DiscontinuityStart bool
}

// FragmentPlan is the segment-addressing half of a track: everything the
// downloader needs to fetch media independent of which manifest format
// produced it.
type FragmentPlan struct {
	InitSegment *Segment
	Segments    []Segment
}

// TrackHeader carries the fields common to every track kind: the "Track
// (abstract)" of the data model. It is embedded by each concrete track kind;
// the Track interface exposes it uniformly via Header().
type TrackHeader struct {
	ID         string
	Source     string
	URLs       []string
	Codec      string
	Language   string
	Descriptor Descriptor

	NeedsProxy  bool
	NeedsRepack bool
	Encrypted   bool

	PsshWV []byte
	PsshPR []byte
	KID    string
	Key    string

	IsOriginalLang bool

	Fragments FragmentPlan

	loc location
}

// Location returns the track's current on-disk path, or "" if not yet
// downloaded.
func (h *TrackHeader) Location() string { return h.loc.path }

// SetLocation records that the track has been downloaded to path.
func (h *TrackHeader) SetLocation(path string) { h.loc.path = path }

// Swap replaces the encrypted artifact with the decrypted one and clears
// Encrypted, per the DecryptStage contract (§4.6).
func (h *TrackHeader) Swap(decryptedPath string) {
	h.loc.path = decryptedPath
	h.loc.decrypted = true
	h.Encrypted = false
}

// Delete clears the location, marking the artifact as removed or moved away.
func (h *TrackHeader) Delete() { h.loc = location{} }

// HasPSSH reports whether either DRM system's PSSH payload is available.
func (h *TrackHeader) HasPSSH() bool { return len(h.PsshWV) > 0 || len(h.PsshPR) > 0 }

// Track is the sum type Track = VideoTrack | AudioTrack | TextTrack.
// MenuTrack (chapters) is intentionally not part of this interface: it
// carries none of TrackHeader's fields per the spec's data model (§3).
type Track interface {
	Header() *TrackHeader
	Kind() Kind
}

// DASHExtra tags the opaque extra bag for tracks sourced from an MPD
// Representation, replacing the source's untyped extra-bag pattern.
type DASHExtra struct {
	RepresentationID string
	AdaptationSetID  string
}

// HLSExtra tags the opaque extra bag for tracks sourced from an HLS
// playlist entry.
type HLSExtra struct {
	GroupID string
	Name    string
	Default bool
}

// ISMExtra tags the opaque extra bag for tracks sourced from a Smooth
// Streaming QualityLevel.
type ISMExtra struct {
	StreamIndexType string
	FourCC          string
	CodecPrivate    string
}

// VideoTrack is a selectable video rendition.
type VideoTrack struct {
	TrackHeader
	Bitrate int64
	Width   int
	Height  int
	FPS     float64
	Range   Range

	NeedsCCExtractor      bool
	NeedsCCExtractorFirst bool

	Extra any
}

func (t *VideoTrack) Header() *TrackHeader { return &t.TrackHeader }
func (t *VideoTrack) Kind() Kind            { return KindVideo }

// AudioTrack is a selectable audio rendition.
type AudioTrack struct {
	TrackHeader
	Bitrate     int64
	Channels    string // normalized "N.M"
	Descriptive bool
	Atmos       bool

	Extra any
}

func (t *AudioTrack) Header() *TrackHeader { return &t.TrackHeader }
func (t *AudioTrack) Kind() Kind            { return KindAudio }

// TextTrack is a selectable subtitle/caption rendition. At most one of
// {CC, SDH, Forced} may be true.
type TextTrack struct {
	TrackHeader
	CC     bool
	SDH    bool
	Forced bool

	Extra any
}

func (t *TextTrack) Header() *TrackHeader { return &t.TrackHeader }
func (t *TextTrack) Kind() Kind            { return KindText }

// Validate enforces the at-most-one-of{CC,SDH,Forced} invariant.
func (t *TextTrack) Validate() error {
	set := 0
	for _, b := range []bool{t.CC, t.SDH, t.Forced} {
		if b {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("text track %s: at most one of cc/sdh/forced may be set", t.ID)
	}
	return nil
}

// MenuTrack is a chapter marker. It deliberately does not embed TrackHeader.
type MenuTrack struct {
	Number   int
	Title    string
	Timecode string // HH:MM:SS.mmm
}

func (m MenuTrack) Validate() error {
	if m.Number < 1 {
		return fmt.Errorf("chapter number must be >= 1, got %d", m.Number)
	}
	return nil
}
