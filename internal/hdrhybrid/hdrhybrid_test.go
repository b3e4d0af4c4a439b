package hdrhybrid

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reelvault/reelvault/internal/model"
)

func TestComposeRejectsWrongRanges(t *testing.T) {
	c := New(nil)
	hdr10 := &model.VideoTrack{TrackHeader: model.TrackHeader{ID: "v1"}, Range: model.RangeSDR}
	dv := &model.VideoTrack{TrackHeader: model.TrackHeader{ID: "v2"}, Range: model.RangeDV}

	err := c.Compose(context.Background(), hdr10, dv, t.TempDir())
	if err == nil {
		t.Fatal("expected error when first track isn't HDR10")
	}
}

func TestComposeRejectsNonDVSecondTrack(t *testing.T) {
	c := New(nil)
	hdr10 := &model.VideoTrack{TrackHeader: model.TrackHeader{ID: "v1"}, Range: model.RangeHDR10}
	notDV := &model.VideoTrack{TrackHeader: model.TrackHeader{ID: "v2"}, Range: model.RangeHLG}

	err := c.Compose(context.Background(), hdr10, notDV, t.TempDir())
	if err == nil {
		t.Fatal("expected error when second track isn't DV")
	}
}

func TestWaitForFileSucceedsOnceSizeReached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hybrid.hevc")
	if err := os.WriteFile(path, make([]byte, minHybridSize), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := waitForFile(path, minHybridSize, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForFileFailsWhenTooSmall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hybrid.hevc")
	if err := os.WriteFile(path, make([]byte, 16), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := waitForFile(path, minHybridSize, 300*time.Millisecond); err == nil {
		t.Fatal("expected error for undersized output after wait budget elapses")
	}
}

func TestWaitForFileFailsWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "never-written.hevc")
	if err := waitForFile(path, minHybridSize, 300*time.Millisecond); err == nil {
		t.Fatal("expected error for missing output after wait budget elapses")
	}
}
