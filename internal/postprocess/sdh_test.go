package postprocess

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reelvault/reelvault/internal/model"
)

const sdhSRT = `1
00:00:01,000 --> 00:00:02,000
JOHN: [door slams] Get out!

2
00:00:03,000 --> 00:00:04,000
(phone ringing)
`

func TestStripSDHRemovesAnnotationsAndFlipsFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subs.srt")
	if err := os.WriteFile(path, []byte(sdhSRT), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	track := &model.TextTrack{
		TrackHeader: model.TrackHeader{ID: "sub1", Codec: "srt"},
		SDH:         true,
	}
	track.SetLocation(path)

	s := New(nil)
	if err := s.StripSDH(track); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if track.SDH {
		t.Error("expected sdh=false after successful strip")
	}
	if !track.CC {
		t.Error("expected cc=true after successful strip")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	got := string(data)
	if strings.Contains(got, "JOHN:") || strings.Contains(got, "door slams") || strings.Contains(got, "phone ringing") {
		t.Fatalf("expected sdh annotations stripped, got: %s", got)
	}
	if !strings.Contains(got, "Get out!") {
		t.Fatalf("expected surviving dialogue text, got: %s", got)
	}
}

func TestStripSDHNoopWhenNotFlagged(t *testing.T) {
	track := &model.TextTrack{TrackHeader: model.TrackHeader{ID: "sub1"}, SDH: false}
	s := New(nil)
	if err := s.StripSDH(track); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if track.CC {
		t.Error("expected cc to remain false when sdh strip was skipped")
	}
}
