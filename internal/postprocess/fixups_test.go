package postprocess

import (
	"context"
	"testing"

	"github.com/reelvault/reelvault/internal/model"
)

func TestFixISMAtmosSkipsWhenNotFlagged(t *testing.T) {
	a := &model.AudioTrack{TrackHeader: model.TrackHeader{ID: "a1"}}
	s := New(nil)
	if err := s.FixISMAtmos(context.Background(), a, "/tmp/out.eac3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractCaptionsSkipsWhenNotFlagged(t *testing.T) {
	v := &model.VideoTrack{TrackHeader: model.TrackHeader{ID: "v1"}}
	s := New(nil)
	text, err := s.ExtractCaptions(context.Background(), v, "/tmp/out.srt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != nil {
		t.Fatal("expected nil text track when caption extraction is not needed")
	}
}

func TestNeedsAtmosFix(t *testing.T) {
	cases := []struct {
		name string
		a    *model.AudioTrack
		want bool
	}{
		{"ism+atmos", &model.AudioTrack{TrackHeader: model.TrackHeader{Descriptor: model.DescriptorISM}, Atmos: true}, true},
		{"ism-not-atmos", &model.AudioTrack{TrackHeader: model.TrackHeader{Descriptor: model.DescriptorISM}, Atmos: false}, false},
		{"atmos-not-ism", &model.AudioTrack{TrackHeader: model.TrackHeader{Descriptor: model.DescriptorMPD}, Atmos: true}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := NeedsAtmosFix(c.a); got != c.want {
				t.Errorf("NeedsAtmosFix() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestNeedsRepackage(t *testing.T) {
	cases := []struct {
		name           string
		h              *model.TrackHeader
		kind           model.Kind
		usedMp4decrypt bool
		want           bool
	}{
		{"explicit flag", &model.TrackHeader{NeedsRepack: true}, model.KindText, false, true},
		{"mp4decrypt+video", &model.TrackHeader{}, model.KindVideo, true, true},
		{"mp4decrypt+audio", &model.TrackHeader{}, model.KindAudio, true, true},
		{"mp4decrypt+text", &model.TrackHeader{}, model.KindText, true, false},
		{"no flag no mp4decrypt", &model.TrackHeader{}, model.KindVideo, false, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := NeedsRepackage(c.h, c.kind, c.usedMp4decrypt); got != c.want {
				t.Errorf("NeedsRepackage() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestNeedsCaptionExtraction(t *testing.T) {
	if NeedsCaptionExtraction(&model.VideoTrack{}) {
		t.Error("expected false when neither ccextractor flag is set")
	}
	if !NeedsCaptionExtraction(&model.VideoTrack{NeedsCCExtractor: true}) {
		t.Error("expected true when NeedsCCExtractor is set")
	}
	if !NeedsCaptionExtraction(&model.VideoTrack{NeedsCCExtractorFirst: true}) {
		t.Error("expected true when NeedsCCExtractorFirst is set")
	}
}
