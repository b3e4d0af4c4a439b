package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/reelvault/reelvault/internal/download"
	"github.com/reelvault/reelvault/internal/drm"
	"github.com/reelvault/reelvault/internal/model"
	"github.com/reelvault/reelvault/internal/obs"
	"github.com/reelvault/reelvault/internal/toolrunner"
)

type fakeAdapter struct {
	tracks *model.TrackSet
}

func (a *fakeAdapter) Titles(ctx context.Context) ([]*model.Title, error) { return nil, nil }
func (a *fakeAdapter) Tracks(ctx context.Context, title *model.Title) (*model.TrackSet, error) {
	return a.tracks, nil
}
func (a *fakeAdapter) Chapters(ctx context.Context, title *model.Title) ([]model.MenuTrack, error) {
	return nil, nil
}
func (a *fakeAdapter) Certificate(ctx context.Context, req drm.LicenseRequest) ([]byte, error) {
	return nil, nil
}
func (a *fakeAdapter) License(ctx context.Context, req drm.LicenseRequest) (drm.LicenseResponse, error) {
	return drm.LicenseResponse{}, nil
}

func TestRunTitleDownloadsAndRenamesWithoutMux(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("DATA"))
	}))
	defer srv.Close()

	video := &model.VideoTrack{
		TrackHeader: model.TrackHeader{
			ID:     "v1",
			Codec:  "h264",
			Source: "test",
			Fragments: model.FragmentPlan{
				Segments: []model.Segment{{Index: 0, URL: srv.URL + "/seg"}},
			},
		},
		Bitrate: 1000,
	}
	audio := &model.AudioTrack{
		TrackHeader: model.TrackHeader{
			ID:     "a1",
			Codec:  "aac",
			Source: "test",
			Fragments: model.FragmentPlan{
				Segments: []model.Segment{{Index: 0, URL: srv.URL + "/seg"}},
			},
		},
	}

	ts := model.NewTrackSet()
	if err := ts.AddVideo(video, false); err != nil {
		t.Fatal(err)
	}
	if err := ts.AddAudio(audio, false); err != nil {
		t.Fatal(err)
	}

	a := &fakeAdapter{tracks: ts}
	workDir := t.TempDir()

	o := New("test-service", a, nil, nil, download.New(srv.Client(), 4), toolrunner.New(""), workDir, false, obs.New("error", false, nil))

	title := &model.Title{ID: "title1", Kind: model.TitleMovie, Name: "Some Movie"}
	if err := o.RunTitle(context.Background(), title, SelectionOptions{}); err != nil {
		t.Fatalf("RunTitle failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(workDir, "downloads"))
	if err != nil {
		t.Fatalf("read downloads dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 renamed track files, got %d", len(entries))
	}
}

func TestRunTitleOnlyIDsBypassesFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("DATA"))
	}))
	defer srv.Close()

	seg := func() model.FragmentPlan {
		return model.FragmentPlan{Segments: []model.Segment{{Index: 0, URL: srv.URL + "/seg"}}}
	}
	lowRes := &model.VideoTrack{TrackHeader: model.TrackHeader{ID: "v-low", Codec: "h264", Source: "test", Fragments: seg()}, Bitrate: 500}
	highRes := &model.VideoTrack{TrackHeader: model.TrackHeader{ID: "v-high", Codec: "h264", Source: "test", Fragments: seg()}, Bitrate: 5000}

	ts := model.NewTrackSet()
	if err := ts.AddVideo(lowRes, false); err != nil {
		t.Fatal(err)
	}
	if err := ts.AddVideo(highRes, false); err != nil {
		t.Fatal(err)
	}

	a := &fakeAdapter{tracks: ts}
	workDir := t.TempDir()
	o := New("test-service", a, nil, nil, download.New(srv.Client(), 4), toolrunner.New(""), workDir, false, obs.New("error", false, nil))

	title := &model.Title{ID: "title1", Kind: model.TitleMovie, Name: "Some Movie"}
	opts := SelectionOptions{OnlyIDs: map[string]bool{"v-low": true}}
	if err := o.RunTitle(context.Background(), title, opts); err != nil {
		t.Fatalf("RunTitle failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(workDir, "downloads"))
	if err != nil {
		t.Fatalf("read downloads dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 downloaded track, got %d", len(entries))
	}
}

func TestOrderTracksForDownloadPutsLargestVideoLast(t *testing.T) {
	ts := model.NewTrackSet()
	small := &model.VideoTrack{TrackHeader: model.TrackHeader{ID: "v-small"}, Bitrate: 500}
	large := &model.VideoTrack{TrackHeader: model.TrackHeader{ID: "v-large"}, Bitrate: 5000}
	audio := &model.AudioTrack{TrackHeader: model.TrackHeader{ID: "a1"}}

	ts.AddVideo(large, false)
	ts.AddVideo(small, false)
	ts.AddAudio(audio, false)

	ordered := orderTracksForDownload(ts)
	last := ordered[len(ordered)-1]
	if last.Header().ID != "v-large" {
		t.Fatalf("expected largest video last, got %s", last.Header().ID)
	}
	if ordered[0].Kind() != model.KindAudio {
		t.Fatalf("expected audio tracks first, got kind %v", ordered[0].Kind())
	}
}

func TestHasHDRHybridPair(t *testing.T) {
	ts := model.NewTrackSet()
	hdr10 := &model.VideoTrack{TrackHeader: model.TrackHeader{ID: "hdr"}, Range: model.RangeHDR10}
	dv := &model.VideoTrack{TrackHeader: model.TrackHeader{ID: "dv"}, Range: model.RangeDV}
	ts.AddVideo(hdr10, false)
	ts.AddVideo(dv, false)

	if !hasHDRHybridPair(ts) {
		t.Fatal("expected hdr10+dv pair to be detected")
	}
}
