package parser

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reelvault/reelvault/internal/box"
	"github.com/reelvault/reelvault/internal/model"
	xsd "github.com/unki2aut/go-xsd-types"
)

// DASHParser parses DASH (MPD) manifests, per §4.1.
type DASHParser struct {
	client *http.Client
}

// NewDASHParser creates a DASH parser.
func NewDASHParser() *DASHParser {
	return &DASHParser{client: defaultHTTPClient()}
}

// CanParse reports whether urlStr looks like an MPD manifest.
func (p *DASHParser) CanParse(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	return strings.Contains(lower, ".mpd") || strings.Contains(lower, "format=mpd")
}

// Parse fetches and converts an MPD into a TrackSet.
func (p *DASHParser) Parse(ctx context.Context, urlStr, source string, headers map[string]string) (*model.TrackSet, error) {
	content, err := httpFetch(ctx, p.client, urlStr, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch mpd: %w", err)
	}

	baseURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("parse manifest url: %w", err)
	}

	var mpd MPD
	if err := xml.Unmarshal([]byte(content), &mpd); err != nil {
		return nil, fmt.Errorf("parse mpd xml: %w", err)
	}

	return convertMPD(&mpd, baseURL, source)
}

// MPD XML structures.

type MPD struct {
	XMLName                   xml.Name      `xml:"MPD"`
	MediaPresentationDuration *xsd.Duration `xml:"mediaPresentationDuration,attr"`
	Periods                   []Period      `xml:"Period"`
	BaseURL                   string        `xml:"BaseURL"`
}

type Period struct {
	ID             string          `xml:"id,attr"`
	AdaptationSets []AdaptationSet `xml:"AdaptationSet"`
	BaseURL        string          `xml:"BaseURL"`
}

type AdaptationSet struct {
	ID                 string              `xml:"id,attr"`
	MimeType           string              `xml:"mimeType,attr"`
	ContentType        string              `xml:"contentType,attr"`
	Lang               string              `xml:"lang,attr"`
	Codecs             string              `xml:"codecs,attr"`
	Width              int                 `xml:"width,attr"`
	Height             int                 `xml:"height,attr"`
	Representations    []Representation    `xml:"Representation"`
	ContentProtections []ContentProtection `xml:"ContentProtection"`
	SegmentTemplate    *SegmentTemplate    `xml:"SegmentTemplate"`
	BaseURL            string              `xml:"BaseURL"`
}

type Representation struct {
	ID                 string              `xml:"id,attr"`
	Bandwidth          int64               `xml:"bandwidth,attr"`
	Width              int                 `xml:"width,attr"`
	Height             int                 `xml:"height,attr"`
	FrameRate          string              `xml:"frameRate,attr"`
	Codecs             string              `xml:"codecs,attr"`
	MimeType           string              `xml:"mimeType,attr"`
	AudioChannels      *AudioChannelConfig `xml:"AudioChannelConfiguration"`
	ContentProtections []ContentProtection `xml:"ContentProtection"`
	SegmentTemplate    *SegmentTemplate    `xml:"SegmentTemplate"`
	SegmentList        *SegmentList        `xml:"SegmentList"`
	BaseURL            string              `xml:"BaseURL"`
}

type AudioChannelConfig struct {
	Value string `xml:"value,attr"`
}

type SegmentTemplate struct {
	Media          string    `xml:"media,attr"`
	Initialization string    `xml:"initialization,attr"`
	Timescale      int       `xml:"timescale,attr"`
	Duration       int       `xml:"duration,attr"`
	StartNumber    int       `xml:"startNumber,attr"`
	Timeline       *Timeline `xml:"SegmentTimeline"`
}

type Timeline struct {
	S []SegmentTime `xml:"S"`
}

type SegmentTime struct {
	T int `xml:"t,attr"`
	D int `xml:"d,attr"`
	R int `xml:"r,attr"`
}

type SegmentList struct {
	Initialization *URLType  `xml:"Initialization"`
	Segments       []URLType `xml:"SegmentURL"`
}

type URLType struct {
	SourceURL string `xml:"sourceURL,attr"`
	Media     string `xml:"media,attr"`
	Range     string `xml:"range,attr"`
}

type ContentProtection struct {
	SchemeIdUri string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr"`
	DefaultKID  string `xml:"default_KID,attr"`
	PSSH        string `xml:"pssh"`
}

// convertMPD walks Period -> AdaptationSet -> Representation and emits one
// track per Representation, honoring ContentProtection per §4.1.
func convertMPD(mpd *MPD, baseURL *url.URL, source string) (*model.TrackSet, error) {
	ts := model.NewTrackSet()
	ts.Duration = xsdDuration(mpd.MediaPresentationDuration)

	for _, period := range mpd.Periods {
		periodBase := resolveBase(baseURL, mpd.BaseURL, period.BaseURL)

		for _, as := range period.AdaptationSets {
			asBase := resolveBase(periodBase, as.BaseURL, "")
			kind := detectKind(as.MimeType, as.ContentType)

			defaultKID, psshWV, psshPR, encrypted := protectionFromSet(as.ContentProtections)

			for _, rep := range as.Representations {
				repBase := resolveBase(asBase, rep.BaseURL, "")

				repKID, repWV, repPR, repEncrypted := protectionFromSet(rep.ContentProtections)
				kid := firstNonEmpty(repKID, defaultKID)
				if len(repWV) == 0 {
					repWV = psshWV
				}
				if len(repPR) == 0 {
					repPR = psshPR
				}
				isEncrypted := encrypted || repEncrypted

				codec := firstNonEmpty(rep.Codecs, as.Codecs)
				id := model.StableTrackID(codec, as.Lang, rep.Bandwidth, rep.ID)

				header := model.TrackHeader{
					ID:         id,
					Source:     source,
					Codec:      codec,
					Language:   as.Lang,
					Descriptor: model.DescriptorMPD,
					Encrypted:  isEncrypted,
					PsshWV:     repWV,
					PsshPR:     repPR,
					KID:        kid,
				}

				tmpl := rep.SegmentTemplate
				if tmpl == nil {
					tmpl = as.SegmentTemplate
				}
				switch {
				case tmpl != nil:
					header.Fragments = buildFragmentsFromTemplate(tmpl, rep.ID, repBase)
				case rep.SegmentList != nil:
					header.Fragments = buildFragmentsFromList(rep.SegmentList, repBase)
				case rep.BaseURL != "":
					header.Fragments = model.FragmentPlan{
						Segments: []model.Segment{{Index: 0, URL: repBase.String()}},
					}
				}

				extra := model.DASHExtra{RepresentationID: rep.ID, AdaptationSetID: as.ID}

				var addErr error
				switch kind {
				case model.KindVideo:
					addErr = ts.AddVideo(&model.VideoTrack{
						TrackHeader: header,
						Bitrate:     rep.Bandwidth,
						Width:       firstNonZero(rep.Width, as.Width),
						Height:      firstNonZero(rep.Height, as.Height),
						Range:       model.DetectRange(codec, ""),
						Extra:       extra,
					}, true)
				case model.KindAudio:
					addErr = ts.AddAudio(&model.AudioTrack{
						TrackHeader: header,
						Bitrate:     rep.Bandwidth,
						Channels:    channelConfig(rep.AudioChannels),
						Extra:       extra,
					}, true)
				default:
					addErr = ts.AddSubtitle(&model.TextTrack{
						TrackHeader: header,
						Extra:       extra,
					}, true)
				}
				if addErr != nil {
					return nil, addErr
				}
			}
		}
	}

	return ts, nil
}

// protectionFromSet extracts default_KID and Widevine/PlayReady PSSH
// payloads from a ContentProtection list, per §4.1's "Honour
// ContentProtection" rule.
func protectionFromSet(cps []ContentProtection) (kid string, psshWV, psshPR []byte, encrypted bool) {
	for _, cp := range cps {
		encrypted = true
		if cp.DefaultKID != "" {
			if normalized, err := model.NormalizeKID(strings.ReplaceAll(cp.DefaultKID, "-", "")); err == nil {
				kid = normalized
			}
		}
		if cp.PSSH == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cp.PSSH))
		if err != nil {
			continue
		}
		switch {
		case box.IsWidevineScheme(cp.SchemeIdUri):
			psshWV = data
		case box.IsPlayReadyScheme(cp.SchemeIdUri):
			psshPR = data
		}
	}
	return kid, psshWV, psshPR, encrypted
}

func channelConfig(cfg *AudioChannelConfig) string {
	if cfg == nil || cfg.Value == "" {
		return ""
	}
	// Most providers use the MPEG dash channel configuration scheme where
	// the value is a plain channel count; normalize "6" to "5.1" for the
	// common surround case and otherwise pass through as "N.0".
	if cfg.Value == "6" {
		return "5.1"
	}
	if cfg.Value == "8" {
		return "7.1"
	}
	return cfg.Value + ".0"
}

func buildFragmentsFromTemplate(tmpl *SegmentTemplate, repID string, base *url.URL) model.FragmentPlan {
	var plan model.FragmentPlan

	if tmpl.Initialization != "" {
		initURL := expandTemplate(tmpl.Initialization, repID, 0, 0)
		plan.InitSegment = &model.Segment{Index: -1, URL: resolveURL(base, initURL)}
	}

	timescale := tmpl.Timescale
	if timescale == 0 {
		timescale = 1
	}

	switch {
	case tmpl.Timeline != nil && len(tmpl.Timeline.S) > 0:
		segNum := tmpl.StartNumber
		if segNum == 0 {
			segNum = 1
		}
		currentTime := 0
		for _, s := range tmpl.Timeline.S {
			if s.T > 0 {
				currentTime = s.T
			}
			repeatCount := s.R + 1
			if s.R < 0 {
				repeatCount = 1
			}
			for i := 0; i < repeatCount; i++ {
				mediaURL := expandTemplate(tmpl.Media, repID, segNum, currentTime)
				plan.Segments = append(plan.Segments, model.Segment{
					Index:    segNum - 1,
					URL:      resolveURL(base, mediaURL),
					Duration: float64(s.D) / float64(timescale),
				})
				segNum++
				currentTime += s.D
			}
		}
	case tmpl.Duration > 0:
		// Providers that omit an explicit timeline in favor of a fixed
		// segment duration rarely also publish a segment count in the
		// template itself; treat 100 as a conservative discovery window
		// the downloader can extend if the playlist keeps resolving.
		const numSegments = 100
		for i := 0; i < numSegments; i++ {
			segNum := tmpl.StartNumber + i
			mediaURL := expandTemplate(tmpl.Media, repID, segNum, 0)
			plan.Segments = append(plan.Segments, model.Segment{
				Index:    i,
				URL:      resolveURL(base, mediaURL),
				Duration: float64(tmpl.Duration) / float64(timescale),
			})
		}
	}

	return plan
}

func buildFragmentsFromList(list *SegmentList, base *url.URL) model.FragmentPlan {
	var plan model.FragmentPlan

	if list.Initialization != nil && list.Initialization.SourceURL != "" {
		plan.InitSegment = &model.Segment{Index: -1, URL: resolveURL(base, list.Initialization.SourceURL)}
		if list.Initialization.Range != "" {
			plan.InitSegment.Range = parseByteRange(list.Initialization.Range)
		}
	}

	for i, seg := range list.Segments {
		s := model.Segment{Index: i, URL: resolveURL(base, seg.Media)}
		if seg.Range != "" {
			s.Range = parseByteRange(seg.Range)
		}
		plan.Segments = append(plan.Segments, s)
	}

	return plan
}

// xsdDuration converts an ISO 8601 mediaPresentationDuration attribute,
// already decoded by go-xsd-types, into a time.Duration. nil (attribute
// absent, as on live manifests) yields zero.
func xsdDuration(d *xsd.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return time.Duration(d.Seconds) * time.Second
}

func detectKind(mimeType, contentType string) model.Kind {
	check := strings.ToLower(mimeType + contentType)
	switch {
	case strings.Contains(check, "audio"):
		return model.KindAudio
	case strings.Contains(check, "text"), strings.Contains(check, "subtitle"):
		return model.KindText
	default:
		return model.KindVideo
	}
}

func resolveBase(parent *url.URL, paths ...string) *url.URL {
	result := parent
	for _, p := range paths {
		if p == "" {
			continue
		}
		if rel, err := url.Parse(p); err == nil {
			result = result.ResolveReference(rel)
		}
	}
	return result
}
