package trackselect

import (
	"sort"
	"strconv"
	"strings"

	"github.com/reelvault/reelvault/internal/model"
)

// stablePartition moves every item matched by match to the front,
// preserving the relative order within each partition.
func stablePartition[T any](items []T, match func(T) bool) []T {
	out := make([]T, 0, len(items))
	var rest []T
	for _, it := range items {
		if match(it) {
			out = append(out, it)
		} else {
			rest = append(rest, it)
		}
	}
	return append(out, rest...)
}

// applyLanguagePartition implements §4.2's shared language-partitioning
// tail end of sort_videos/sort_audios/sort_subtitles: "for each language in
// by_language applied in reverse, stable-partition so close-matching
// languages come first". The sentinel "all" partitions the track marked
// original-language to the front instead of matching by language code.
func applyLanguagePartition[T any](items []T, byLanguage []string, langOf func(T) string, isOriginal func(T) bool) []T {
	for i := len(byLanguage) - 1; i >= 0; i-- {
		lang := byLanguage[i]
		if lang == "all" {
			items = stablePartition(items, isOriginal)
			continue
		}
		items = stablePartition(items, func(t T) bool { return LanguagesMatch(langOf(t), lang) })
	}
	return items
}

// SortVideos implements sort_videos: descending bitrate, then
// language-partitioned per by_language.
func SortVideos(tracks []*model.VideoTrack, byLanguage []string) []*model.VideoTrack {
	out := make([]*model.VideoTrack, len(tracks))
	copy(out, tracks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Bitrate > out[j].Bitrate })
	return applyLanguagePartition(out, byLanguage,
		func(t *model.VideoTrack) string { return t.Language },
		func(t *model.VideoTrack) bool { return t.IsOriginalLang })
}

// channelCount parses a normalized "N.M" channel string into a comparable
// numeric value (e.g. "5.1" -> 5.1).
func channelCount(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// SortAudios implements sort_audios: descending bitrate; descending channel
// count; non-descriptive before descriptive; then language partitioning.
// Criteria are applied lowest-priority-first with sort.SliceStable so each
// later pass refines, not destroys, the prior order for ties.
func SortAudios(tracks []*model.AudioTrack, byLanguage []string) []*model.AudioTrack {
	out := make([]*model.AudioTrack, len(tracks))
	copy(out, tracks)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Bitrate > out[j].Bitrate })
	sort.SliceStable(out, func(i, j int) bool { return channelCount(out[i].Channels) > channelCount(out[j].Channels) })
	sort.SliceStable(out, func(i, j int) bool { return !out[i].Descriptive && out[j].Descriptive })

	return applyLanguagePartition(out, byLanguage,
		func(t *model.AudioTrack) string { return t.Language },
		func(t *model.AudioTrack) bool { return t.IsOriginalLang })
}

// subtitleLangKey builds the ascending sort key: language plus a suffix
// that orders plain < cc < sdh, matching "ascending language with CC/SDH
// suffix".
func subtitleLangKey(t *model.TextTrack) string {
	suffix := ""
	switch {
	case t.SDH:
		suffix = "-sdh"
	case t.CC:
		suffix = "-cc"
	}
	return strings.ToLower(t.Language) + suffix
}

// SortSubtitles implements sort_subtitles: ascending language with CC/SDH
// suffix; forced tracks float to top; language partitioning last.
func SortSubtitles(tracks []*model.TextTrack, byLanguage []string) []*model.TextTrack {
	out := make([]*model.TextTrack, len(tracks))
	copy(out, tracks)

	sort.SliceStable(out, func(i, j int) bool { return subtitleLangKey(out[i]) < subtitleLangKey(out[j]) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Forced && !out[j].Forced })

	return applyLanguagePartition(out, byLanguage,
		func(t *model.TextTrack) string { return t.Language },
		func(t *model.TextTrack) bool { return t.IsOriginalLang })
}
