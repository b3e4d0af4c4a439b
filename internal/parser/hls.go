package parser

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/reelvault/reelvault/internal/model"
)

// Known EXT-X-KEY KEYFORMAT values used to infer the DRM system, per
// §4.1's "infer PlayReady vs Widevine from KEYFORMAT" rule.
const (
	keyFormatWidevine  = "com.widevine"
	keyFormatPlayReady = "com.microsoft.playready"
)

// HLSParser parses HLS (m3u8) manifests, per §4.1.
type HLSParser struct {
	client *http.Client
}

// NewHLSParser creates an HLS parser.
func NewHLSParser() *HLSParser {
	return &HLSParser{client: defaultHTTPClient()}
}

// CanParse reports whether urlStr looks like an HLS manifest.
func (p *HLSParser) CanParse(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	return strings.Contains(lower, ".m3u8") || strings.Contains(lower, "format=m3u8")
}

// Parse fetches urlStr and parses it as a master or media playlist.
func (p *HLSParser) Parse(ctx context.Context, urlStr, source string, headers map[string]string) (*model.TrackSet, error) {
	content, err := httpFetch(ctx, p.client, urlStr, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch m3u8: %w", err)
	}
	baseURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("parse manifest url: %w", err)
	}

	if strings.Contains(content, "#EXT-X-STREAM-INF") {
		return p.parseMaster(ctx, content, baseURL, source, headers)
	}

	ts := model.NewTrackSet()
	track := parseMediaPlaylistTrack(content, baseURL, source)
	if err := ts.AddVideo(track, true); err != nil {
		return nil, err
	}
	return ts, nil
}

// parseMaster parses a master playlist: one video track per
// #EXT-X-STREAM-INF, one audio/subtitle track per matching #EXT-X-MEDIA.
func (p *HLSParser) parseMaster(ctx context.Context, content string, baseURL *url.URL, source string, headers map[string]string) (*model.TrackSet, error) {
	ts := model.NewTrackSet()

	sessionWV, sessionPR := parseSessionKeys(content, baseURL)

	lines := strings.Split(content, "\n")
	var pendingAttrs map[string]string

	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			pendingAttrs = parseHLSAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))

		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := parseHLSAttributes(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			uri, hasURI := attrs["URI"]
			if !hasURI {
				// Renditions without a URI are multiplexed into a video
				// variant and don't become standalone tracks.
				continue
			}
			mediaURL := resolveURL(baseURL, strings.Trim(uri, "\""))
			track, kind := mediaTrackFromAttrs(attrs, mediaURL, source)
			track.PsshWV, track.PsshPR = sessionWV, sessionPR
			if err := addMediaTrack(ts, kind, track, attrs); err != nil {
				return nil, err
			}

		case !strings.HasPrefix(line, "#") && line != "" && pendingAttrs != nil:
			mediaURL := resolveURL(baseURL, line)
			video := streamTrackFromAttrs(pendingAttrs, mediaURL, source)
			video.PsshWV, video.PsshPR = sessionWV, sessionPR
			if sub, err := p.Parse(ctx, mediaURL, source, headers); err == nil && len(sub.Videos) > 0 {
				video.Fragments = sub.Videos[0].Fragments
				if sub.Videos[0].Encrypted {
					video.Encrypted = true
					video.KID = firstNonEmpty(video.KID, sub.Videos[0].KID)
				}
			}
			if err := ts.AddVideo(video, true); err != nil {
				return nil, err
			}
			pendingAttrs = nil
		}
	}

	return ts, nil
}

func addMediaTrack(ts *model.TrackSet, kind model.Kind, header model.TrackHeader, attrs map[string]string) error {
	extra := model.HLSExtra{
		GroupID: strings.Trim(attrs["GROUP-ID"], "\""),
		Name:    strings.Trim(attrs["NAME"], "\""),
		Default: strings.EqualFold(attrs["DEFAULT"], "YES"),
	}
	switch kind {
	case model.KindAudio:
		return ts.AddAudio(&model.AudioTrack{TrackHeader: header, Extra: extra}, true)
	default:
		return ts.AddSubtitle(&model.TextTrack{
			TrackHeader: header,
			CC:          strings.EqualFold(attrs["TYPE"], "CLOSED-CAPTIONS"),
			Forced:      strings.EqualFold(attrs["FORCED"], "YES"),
			Extra:       extra,
		}, true)
	}
}

func mediaTrackFromAttrs(attrs map[string]string, mediaURL, source string) (model.TrackHeader, model.Kind) {
	kind := model.KindVideo
	if typ, ok := attrs["TYPE"]; ok {
		switch strings.ToUpper(typ) {
		case "AUDIO":
			kind = model.KindAudio
		case "SUBTITLES", "CLOSED-CAPTIONS":
			kind = model.KindText
		}
	}
	language := strings.Trim(attrs["LANGUAGE"], "\"")
	name := strings.Trim(attrs["NAME"], "\"")
	groupID := strings.Trim(attrs["GROUP-ID"], "\"")

	id := model.StableTrackID(kind.String(), language, 0, groupID+"|"+name)
	return model.TrackHeader{
		ID:             id,
		Source:         source,
		URLs:           []string{mediaURL},
		Language:       language,
		Descriptor:     model.DescriptorM3U,
		IsOriginalLang: strings.EqualFold(attrs["DEFAULT"], "YES"),
	}, kind
}

func streamTrackFromAttrs(attrs map[string]string, mediaURL, source string) *model.VideoTrack {
	var bandwidth int64
	if bw, ok := attrs["BANDWIDTH"]; ok {
		bandwidth, _ = strconv.ParseInt(bw, 10, 64)
	}
	var width, height int
	if res, ok := attrs["RESOLUTION"]; ok {
		if parts := strings.SplitN(res, "x", 2); len(parts) == 2 {
			width, _ = strconv.Atoi(parts[0])
			height, _ = strconv.Atoi(parts[1])
		}
	}
	codec := strings.Trim(attrs["CODECS"], "\"")

	id := model.StableTrackID(codec, "", bandwidth, fmt.Sprintf("%dx%d", width, height))
	return &model.VideoTrack{
		TrackHeader: model.TrackHeader{
			ID:         id,
			Source:     source,
			URLs:       []string{mediaURL},
			Codec:      codec,
			Descriptor: model.DescriptorM3U,
		},
		Bitrate: bandwidth,
		Width:   width,
		Height:  height,
		Range:   model.DetectRange(codec, ""),
	}
}

// parseSessionKeys scans #EXT-X-SESSION-KEY tags for Widevine/PlayReady
// init data shared across every rendition in the playlist.
func parseSessionKeys(content string, baseURL *url.URL) (psshWV, psshPR []byte) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#EXT-X-SESSION-KEY:") {
			continue
		}
		attrs := parseHLSAttributes(strings.TrimPrefix(line, "#EXT-X-SESSION-KEY:"))
		data := decodeKeyURI(attrs["URI"], baseURL)
		if data == nil {
			continue
		}
		format := strings.ToLower(strings.Trim(attrs["KEYFORMAT"], "\""))
		switch {
		case strings.Contains(format, keyFormatWidevine):
			psshWV = data
		case strings.Contains(format, keyFormatPlayReady):
			psshPR = data
		}
	}
	return psshWV, psshPR
}

// decodeKeyURI decodes a "data:text/plain;base64,..." EXT-X-KEY URI, the
// common form for inline PSSH payloads; returns nil for remote key URIs,
// which the DrmSession fetches separately.
func decodeKeyURI(uri string, baseURL *url.URL) []byte {
	uri = strings.Trim(uri, "\"")
	const dataPrefix = "data:text/plain;base64,"
	if !strings.HasPrefix(uri, dataPrefix) {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, dataPrefix))
	if err != nil {
		return nil
	}
	return data
}

// parseMediaPlaylistTrack parses a media playlist's segments, init map, and
// per-rendition EXT-X-KEY into a single video track carrying the raw
// segment list; the caller (master-playlist parse, or a standalone media
// playlist fetch) attaches language/codec metadata as appropriate.
func parseMediaPlaylistTrack(content string, baseURL *url.URL, source string) *model.VideoTrack {
	track := &model.VideoTrack{
		TrackHeader: model.TrackHeader{
			ID:         model.StableTrackID("", "", 0, baseURL.String()),
			Source:     source,
			Descriptor: model.DescriptorM3U,
		},
	}

	segments, initSeg := ParseMediaPlaylist(content, baseURL.String())
	track.Fragments = model.FragmentPlan{InitSegment: initSeg, Segments: segments}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "#EXT-X-KEY:") {
			continue
		}
		attrs := parseHLSAttributes(strings.TrimPrefix(line, "#EXT-X-KEY:"))
		uri, ok := attrs["URI"]
		if !ok {
			continue
		}
		track.Encrypted = true
		data := decodeKeyURI(uri, baseURL)
		format := strings.ToLower(strings.Trim(attrs["KEYFORMAT"], "\""))
		switch {
		case strings.Contains(format, keyFormatWidevine):
			track.PsshWV = data
		case strings.Contains(format, keyFormatPlayReady):
			track.PsshPR = data
		default:
			// No KEYFORMAT (or an unrecognized one) means legacy
			// AES-128 keyed HLS: the key URI resolves directly to a
			// 16-byte key, outside the PSSH/KID model, which the
			// DrmSession's HLS-legacy path fetches by URL.
			track.URLs = append(track.URLs, resolveURL(baseURL, uri))
		}
	}

	return track
}

// parseHLSAttributes parses an HLS attribute-list string into a map.
func parseHLSAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	re := regexp.MustCompile(`([A-Z0-9-]+)=("[^"]*"|[^,]*)`)
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		if len(m) >= 3 {
			attrs[m[1]] = m[2]
		}
	}
	return attrs
}

// ParseMediaPlaylist parses an HLS media playlist into its segment list and
// init segment. Exported for lazy per-track playlist resolution by the
// downloader.
func ParseMediaPlaylist(content, baseURLStr string) ([]model.Segment, *model.Segment) {
	baseURL, _ := url.Parse(baseURLStr)
	var segments []model.Segment
	var initSegment *model.Segment

	var segmentDuration float64
	segmentIndex := 0
	atDiscontinuity := false

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "#EXT-X-DISCONTINUITY":
			atDiscontinuity = true

		case strings.HasPrefix(line, "#EXTINF:"):
			durStr := strings.TrimPrefix(line, "#EXTINF:")
			durStr = strings.Split(durStr, ",")[0]
			if dur, err := strconv.ParseFloat(durStr, 64); err == nil {
				segmentDuration = dur
			}

		case strings.HasPrefix(line, "#EXT-X-MAP:"):
			attrs := parseHLSAttributes(strings.TrimPrefix(line, "#EXT-X-MAP:"))
			if uri, ok := attrs["URI"]; ok {
				initSegment = &model.Segment{Index: -1, URL: resolveURL(baseURL, strings.Trim(uri, "\""))}
				if br, ok := attrs["BYTERANGE"]; ok {
					initSegment.Range = parseByteRange(br)
				}
			}

		case !strings.HasPrefix(line, "#") && line != "":
			segments = append(segments, model.Segment{
				Index:              segmentIndex,
				URL:                resolveURL(baseURL, line),
				Duration:           segmentDuration,
				DiscontinuityStart: atDiscontinuity,
			})
			segmentIndex++
			atDiscontinuity = false
		}
	}

	return segments, initSegment
}
