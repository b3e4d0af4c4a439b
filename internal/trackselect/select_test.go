package trackselect

import (
	"errors"
	"testing"

	"github.com/reelvault/reelvault/internal/model"
)

func videoTrack(id, lang string, bitrate int64, width, height int, rng model.Range) *model.VideoTrack {
	t := &model.VideoTrack{Bitrate: bitrate, Width: width, Height: height, Range: rng}
	t.ID = id
	t.Language = lang
	t.Codec = "avc1.640028"
	return t
}

func TestSelectVideosByQuality(t *testing.T) {
	tracks := []*model.VideoTrack{
		videoTrack("v1", "en", 8_000_000, 3840, 2160, model.RangeSDR),
		videoTrack("v2", "en", 5_000_000, 1920, 1080, model.RangeSDR),
		videoTrack("v3", "en", 1_000_000, 1280, 720, model.RangeSDR),
	}

	got, err := SelectVideos(tracks, VideoSelectOptions{ByQuality: "1080p", OneOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "v2" {
		t.Fatalf("expected v2 (highest <=1080p), got %+v", got)
	}
}

func TestSelectVideosSDCarveOut(t *testing.T) {
	tracks := []*model.VideoTrack{
		videoTrack("v1", "en", 1_000_000, 1248, 520, model.RangeSDR),
	}
	got, err := SelectVideos(tracks, VideoSelectOptions{ByQuality: "480p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the 1248x520 SD carve-out to match, got %+v", got)
	}
}

func TestSelectVideosByVBitrateMin(t *testing.T) {
	tracks := []*model.VideoTrack{
		videoTrack("v1", "en", 8_000_000, 3840, 2160, model.RangeSDR),
		videoTrack("v2", "en", 1_000_000, 1280, 720, model.RangeSDR),
	}
	got, err := SelectVideos(tracks, VideoSelectOptions{ByVBitrate: "min"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "v2" {
		t.Fatalf("expected lowest-bitrate v2, got %+v", got)
	}
}

func TestSelectVideosNoMatch(t *testing.T) {
	tracks := []*model.VideoTrack{videoTrack("v1", "en", 1_000_000, 1280, 720, model.RangeSDR)}
	_, err := SelectVideos(tracks, VideoSelectOptions{ByCodec: "hvc1"})
	if !errors.Is(err, ErrNoMatchingTrack) {
		t.Fatalf("expected ErrNoMatchingTrack, got %v", err)
	}
}

func TestSelectVideosMultiDedup(t *testing.T) {
	tracks := []*model.VideoTrack{
		videoTrack("v1", "en", 8_000_000, 3840, 2160, model.RangeHDR10),
		videoTrack("v2", "en", 5_000_000, 1920, 1080, model.RangeSDR),
	}
	got, err := SelectVideosMulti(tracks, []model.Range{model.RangeSDR, model.RangeHDR10, model.RangeDV})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 survivors (one per available range), got %d: %+v", len(got), got)
	}
}

func audioTrack(id, lang, codec, channels string, bitrate int64, descriptive, atmos bool) *model.AudioTrack {
	t := &model.AudioTrack{Bitrate: bitrate, Channels: channels, Descriptive: descriptive, Atmos: atmos}
	t.ID = id
	t.Language = lang
	t.Codec = codec
	return t
}

func TestSelectAudiosExcludesDescriptiveByDefault(t *testing.T) {
	tracks := []*model.AudioTrack{
		audioTrack("a1", "en", "ec-3", "2.0", 128000, false, false),
		audioTrack("a2", "en", "ec-3", "2.0", 128000, true, false),
	}
	got, err := SelectAudios(tracks, AudioSelectOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("expected only non-descriptive a1, got %+v", got)
	}
}

func TestSelectAudiosMaxCompatibility(t *testing.T) {
	tracks := []*model.AudioTrack{
		audioTrack("a1", "en", "ec-3", "5.1", 256000, false, false),
		audioTrack("a2", "en", "ec-3", "5.1", 640000, false, false),
		audioTrack("a3", "en", "aac", "2.0", 128000, false, false),
	}
	got, err := SelectAudios(tracks, AudioSelectOptions{MaxAudioCompatibility: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected one per codec/channel cell (2 cells), got %d: %+v", len(got), got)
	}
	for _, tr := range got {
		if tr.Codec == "ec-3" && tr.ID != "a2" {
			t.Fatalf("expected higher-bitrate ec-3 survivor a2, got %s", tr.ID)
		}
	}
}

func textTrack(id, lang string, cc, sdh, forced bool) *model.TextTrack {
	t := &model.TextTrack{CC: cc, SDH: sdh, Forced: forced}
	t.ID = id
	t.Language = lang
	return t
}

func TestSelectSubtitlesBaselineAlwaysIncluded(t *testing.T) {
	tracks := []*model.TextTrack{
		textTrack("s1", "en", false, false, false),
		textTrack("s2", "en", true, false, false),
		textTrack("s3", "en", false, true, false),
	}
	got, err := SelectSubtitles(tracks, SubtitleSelectOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("expected only plain s1 without opt-in flags, got %+v", got)
	}
}

func TestSelectSubtitlesForcedScopedToAudioLanguage(t *testing.T) {
	tracks := []*model.TextTrack{
		textTrack("s1", "en", false, false, true),
		textTrack("s2", "fr", false, false, true),
	}
	got, err := SelectSubtitles(tracks, SubtitleSelectOptions{WithForced: true, ForcedAudioLanguages: []string{"en"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("expected only en-scoped forced s1, got %+v", got)
	}
}

func TestSelectByLanguageOrigRaisesWithoutMarkedOriginal(t *testing.T) {
	tracks := []model.Track{
		audioTrack("a1", "en", "aac", "2.0", 128000, false, false),
		audioTrack("a2", "fr", "aac", "2.0", 128000, false, false),
	}
	_, err := SelectByLanguage([]string{"orig"}, tracks, true)
	if !errors.Is(err, ErrNoOriginalLanguage) {
		t.Fatalf("expected ErrNoOriginalLanguage, got %v", err)
	}
}

func TestSelectByLanguageOrigSingleLanguageTrivial(t *testing.T) {
	tracks := []model.Track{
		audioTrack("a1", "en", "aac", "2.0", 128000, false, false),
	}
	got, err := SelectByLanguage([]string{"orig"}, tracks, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Header().ID != "a1" {
		t.Fatalf("expected trivial single-language match, got %+v", got)
	}
}

func TestSelectByLanguageAllPassesThrough(t *testing.T) {
	tracks := []model.Track{
		audioTrack("a1", "en", "aac", "2.0", 128000, false, false),
		audioTrack("a2", "fr", "aac", "2.0", 128000, false, false),
	}
	got, err := SelectByLanguage([]string{"all"}, tracks, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected passthrough of both tracks, got %+v", got)
	}
}
