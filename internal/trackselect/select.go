package trackselect

import (
	"strings"

	"github.com/reelvault/reelvault/internal/model"
)

// VideoSelectOptions configures select_videos.
type VideoSelectOptions struct {
	ByQuality  string // e.g. "1080p", "4k"; "" = no quality cap
	ByVBitrate string // "" = no filter, "min" = lowest bitrate, else a bitrate cap ("5M")
	ByRange    *model.Range
	ByCodec    string // substring match against the codec family
	OneOnly    bool
}

// SelectVideos implements select_videos: filter by target height (with a
// 16:9 fallback via width, plus the documented 1248x520 SD carve-out), then
// by bitrate, then by range, then by codec family. Raises ErrNoMatchingTrack
// once a filter stage empties the survivor set.
func SelectVideos(tracks []*model.VideoTrack, opts VideoSelectOptions) ([]*model.VideoTrack, error) {
	pool := append([]*model.VideoTrack(nil), tracks...)

	if opts.ByQuality != "" {
		target := ParseQualityHeight(opts.ByQuality)
		pool = filterSlice(pool, func(t *model.VideoTrack) bool { return matchesQuality(t, target) })
		if len(pool) == 0 {
			return nil, ErrNoMatchingTrack
		}
	}

	if opts.ByVBitrate != "" {
		pool = filterByVideoBitrate(pool, opts.ByVBitrate)
		if len(pool) == 0 {
			return nil, ErrNoMatchingTrack
		}
	}

	if opts.ByRange != nil {
		target := *opts.ByRange
		pool = filterSlice(pool, func(t *model.VideoTrack) bool { return t.Range == target })
		if len(pool) == 0 {
			return nil, ErrNoMatchingTrack
		}
	}

	if opts.ByCodec != "" {
		pool = filterSlice(pool, func(t *model.VideoTrack) bool {
			return strings.Contains(strings.ToLower(t.Codec), strings.ToLower(opts.ByCodec))
		})
		if len(pool) == 0 {
			return nil, ErrNoMatchingTrack
		}
	}

	if opts.OneOnly && len(pool) > 1 {
		pool = pool[:1]
	}

	return pool, nil
}

// filterByVideoBitrate implements the "min selects the lowest rather than a
// cap" rule: a plain value caps the survivor set to its highest
// not-exceeding member; "min" keeps only the globally lowest bitrate.
func filterByVideoBitrate(pool []*model.VideoTrack, byVBitrate string) []*model.VideoTrack {
	if strings.EqualFold(byVBitrate, "min") {
		var min *model.VideoTrack
		for _, t := range pool {
			if min == nil || t.Bitrate < min.Bitrate {
				min = t
			}
		}
		if min == nil {
			return nil
		}
		return []*model.VideoTrack{min}
	}

	cap := ParseBandwidth(byVBitrate)
	if cap <= 0 {
		return pool
	}
	var best *model.VideoTrack
	for _, t := range pool {
		if t.Bitrate > cap {
			continue
		}
		if best == nil || t.Bitrate > best.Bitrate {
			best = t
		}
	}
	if best == nil {
		return nil
	}
	return []*model.VideoTrack{best}
}

// SelectVideosMulti implements select_videos_multi: like SelectVideos but
// keeps the best survivor per requested range, deduped by
// (width, height, codec).
func SelectVideosMulti(tracks []*model.VideoTrack, ranges []model.Range) ([]*model.VideoTrack, error) {
	type dimKey struct {
		w, h int
		c    string
	}
	seen := make(map[dimKey]bool)
	var out []*model.VideoTrack

	for _, r := range ranges {
		r := r
		survivors, err := SelectVideos(tracks, VideoSelectOptions{ByRange: &r, OneOnly: true})
		if err != nil {
			continue
		}
		for _, t := range survivors {
			key := dimKey{t.Width, t.Height, t.Codec}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoMatchingTrack
	}
	return out, nil
}

// AudioSelectOptions configures select_audios.
type AudioSelectOptions struct {
	ByLanguage            []string
	ByBitrate             string
	ByChannels            []string // e.g. ["2.0", "5.1"]
	ByCodec               []string
	WithDescriptive       bool
	MaxAudioCompatibility bool
	WithAtmos             bool
}

// SelectAudios implements select_audios per §4.2.
func SelectAudios(tracks []*model.AudioTrack, opts AudioSelectOptions) ([]*model.AudioTrack, error) {
	pool := append([]*model.AudioTrack(nil), tracks...)

	if !opts.WithDescriptive {
		pool = filterSlice(pool, func(t *model.AudioTrack) bool { return !t.Descriptive })
	}

	if opts.WithAtmos {
		atmos := filterSlice(pool, func(t *model.AudioTrack) bool { return t.Atmos })
		if len(atmos) > 0 {
			pool = atmos
		}
		// else: fall back to non-Atmos, keep pool as-is.
	}

	if len(opts.ByCodec) > 0 {
		pool = filterSlice(pool, func(t *model.AudioTrack) bool { return matchesAny(t.Codec, opts.ByCodec) })
	}
	if len(opts.ByChannels) > 0 {
		pool = filterSlice(pool, func(t *model.AudioTrack) bool { return matchesAny(t.Channels, opts.ByChannels) })
	}
	if len(pool) == 0 {
		return nil, ErrNoMatchingTrack
	}

	switch {
	case opts.MaxAudioCompatibility:
		pool = bestPerCodecChannelCell(pool)
	case opts.ByBitrate != "":
		pool = filterByAudioBitrate(pool, opts.ByBitrate)
	}
	if len(pool) == 0 {
		return nil, ErrNoMatchingTrack
	}

	onePerLang := len(opts.ByCodec) <= 1 && len(opts.ByChannels) <= 1
	if len(opts.ByLanguage) > 0 {
		selected, err := SelectByLanguage(opts.ByLanguage, audiosToTracks(pool), onePerLang)
		if err != nil {
			return nil, err
		}
		pool = tracksToAudios(selected)
	}

	if len(pool) == 0 {
		return nil, ErrNoMatchingTrack
	}
	return pool, nil
}

func filterByAudioBitrate(pool []*model.AudioTrack, byBitrate string) []*model.AudioTrack {
	if strings.EqualFold(byBitrate, "min") {
		var min *model.AudioTrack
		for _, t := range pool {
			if min == nil || t.Bitrate < min.Bitrate {
				min = t
			}
		}
		if min == nil {
			return nil
		}
		return []*model.AudioTrack{min}
	}
	cap := ParseBandwidth(byBitrate)
	if cap <= 0 {
		return pool
	}
	var best *model.AudioTrack
	for _, t := range pool {
		if t.Bitrate > cap {
			continue
		}
		if best == nil || t.Bitrate > best.Bitrate {
			best = t
		}
	}
	if best == nil {
		return nil
	}
	return []*model.AudioTrack{best}
}

// bestPerCodecChannelCell implements max_audio_compatibility: the
// Cartesian product's best-bitrate member per (codec, channels) cell.
func bestPerCodecChannelCell(pool []*model.AudioTrack) []*model.AudioTrack {
	type cell struct{ codec, channels string }
	best := make(map[cell]*model.AudioTrack)
	var order []cell
	for _, t := range pool {
		c := cell{strings.ToLower(t.Codec), t.Channels}
		if existing, ok := best[c]; !ok || t.Bitrate > existing.Bitrate {
			if !ok {
				order = append(order, c)
			}
			best[c] = t
		}
	}
	out := make([]*model.AudioTrack, 0, len(order))
	for _, c := range order {
		out = append(out, best[c])
	}
	return out
}

// SubtitleSelectOptions configures select_subtitles.
type SubtitleSelectOptions struct {
	ByLanguage []string
	WithCC     bool
	WithSDH    bool
	WithForced bool
	// ForcedAudioLanguages scopes "forced" matching to accompany only these
	// selected audio languages; empty means no scoping restriction.
	ForcedAudioLanguages []string
}

// SelectSubtitles implements select_subtitles per §4.2.
func SelectSubtitles(tracks []*model.TextTrack, opts SubtitleSelectOptions) ([]*model.TextTrack, error) {
	var pool []*model.TextTrack
	for _, t := range tracks {
		switch {
		case t.Forced:
			if !opts.WithForced {
				continue
			}
			if len(opts.ForcedAudioLanguages) > 0 && !matchesAny(t.Language, opts.ForcedAudioLanguages) {
				continue
			}
		case t.SDH:
			if !opts.WithSDH {
				continue
			}
		case t.CC:
			if !opts.WithCC {
				continue
			}
		}
		pool = append(pool, t)
	}
	if len(pool) == 0 {
		return nil, ErrNoMatchingTrack
	}

	if len(opts.ByLanguage) > 0 {
		selected, err := SelectByLanguage(opts.ByLanguage, textsToTracks(pool), true)
		if err != nil {
			return nil, err
		}
		pool = tracksToTexts(selected)
	}

	if len(pool) == 0 {
		return nil, ErrNoMatchingTrack
	}
	return pool, nil
}

// SelectByLanguage implements select_by_language, the shared filter behind
// select_videos/select_audios/select_subtitles' by_language parameters. The
// sentinel "orig" means the track whose IsOriginalLang is true; "all"
// disables filtering entirely.
func SelectByLanguage(langs []string, tracks []model.Track, onePerLang bool) ([]model.Track, error) {
	if len(langs) == 0 {
		return tracks, nil
	}

	var result []model.Track
	seen := make(map[string]bool)

	for _, lang := range langs {
		switch lang {
		case "all":
			return tracks, nil

		case "orig":
			distinct := make(map[string]bool)
			var original model.Track
			for _, t := range tracks {
				distinct[PrimaryLanguage(t.Header().Language)] = true
				if t.Header().IsOriginalLang {
					original = t
				}
			}
			if original != nil {
				result = append(result, original)
				continue
			}
			if len(distinct) > 1 {
				return nil, ErrNoOriginalLanguage
			}
			// Single language present and unmarked: trivially the
			// original, since there is nothing else it could be.
			result = append(result, tracks...)

		default:
			for _, t := range tracks {
				if !LanguagesMatch(t.Header().Language, lang) {
					continue
				}
				key := PrimaryLanguage(t.Header().Language)
				if onePerLang && seen[key] {
					continue
				}
				result = append(result, t)
				seen[key] = true
			}
		}
	}

	if len(result) == 0 {
		return nil, ErrNoMatchingTrack
	}
	return result, nil
}

func filterSlice[T any](items []T, keep func(T) bool) []T {
	out := items[:0:0]
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func matchesAny(value string, candidates []string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, c := range candidates {
		if value == strings.ToLower(strings.TrimSpace(c)) {
			return true
		}
	}
	return false
}

func audiosToTracks(a []*model.AudioTrack) []model.Track {
	out := make([]model.Track, len(a))
	for i, t := range a {
		out[i] = t
	}
	return out
}

func tracksToAudios(tr []model.Track) []*model.AudioTrack {
	out := make([]*model.AudioTrack, 0, len(tr))
	for _, t := range tr {
		if a, ok := t.(*model.AudioTrack); ok {
			out = append(out, a)
		}
	}
	return out
}

func textsToTracks(t []*model.TextTrack) []model.Track {
	out := make([]model.Track, len(t))
	for i, tt := range t {
		out[i] = tt
	}
	return out
}

func tracksToTexts(tr []model.Track) []*model.TextTrack {
	out := make([]*model.TextTrack, 0, len(tr))
	for _, t := range tr {
		if tt, ok := t.(*model.TextTrack); ok {
			out = append(out, tt)
		}
	}
	return out
}
