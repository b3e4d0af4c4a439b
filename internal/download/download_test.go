package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/reelvault/reelvault/internal/model"
)

func TestKeepLongestDiscontinuitySpanKeepsLongerSpan(t *testing.T) {
	segments := []model.Segment{
		{Index: 0, Duration: 1}, // bumper span
		{Index: 1, Duration: 1, DiscontinuityStart: true},
		{Index: 2, Duration: 5},
		{Index: 3, Duration: 5},
		{Index: 4, Duration: 5},
	}
	kept := KeepLongestDiscontinuitySpan(segments)
	if len(kept) != 3 {
		t.Fatalf("expected 3 segments in the longest span, got %d", len(kept))
	}
	for i, s := range kept {
		if s.Index != i {
			t.Fatalf("expected reindexed segment %d, got %d", i, s.Index)
		}
	}
}

func TestKeepLongestDiscontinuitySpanNoSplitIsNoop(t *testing.T) {
	segments := []model.Segment{{Index: 0, Duration: 2}, {Index: 1, Duration: 2}}
	kept := KeepLongestDiscontinuitySpan(segments)
	if len(kept) != 2 {
		t.Fatalf("expected unchanged 2 segments, got %d", len(kept))
	}
}

func TestCheckResumableSkipsEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out")
	os.WriteFile(path, []byte("hi"), 0o644) // 2 bytes, below threshold

	if _, ok := checkResumable(path); ok {
		t.Fatal("expected tiny output to not be treated as resumable")
	}
}

func TestCheckResumableAcceptsNonEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out")
	os.WriteFile(path, []byte("this is a real file"), 0o644)

	if _, ok := checkResumable(path); !ok {
		t.Fatal("expected non-trivial output to be treated as resumable")
	}
}

func TestDownloadFetchesSegmentsAndConcatenates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/seg0":
			w.Write([]byte("AAAA"))
		case "/seg1":
			w.Write([]byte("BBBB"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	h := &model.TrackHeader{
		ID:         "v1",
		Descriptor: model.DescriptorMPD,
		Fragments: model.FragmentPlan{
			Segments: []model.Segment{
				{Index: 0, URL: srv.URL + "/seg0"},
				{Index: 1, URL: srv.URL + "/seg1"},
			},
		},
	}

	d := New(srv.Client(), 4)
	destDir := t.TempDir()
	if err := d.Download(context.Background(), h, model.KindVideo, destDir, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(h.Location())
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "AAAABBBB" {
		t.Fatalf("expected concatenated segments in order, got %q", data)
	}
}

func TestDownloadReportsProgressPerSegment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("AAAA"))
	}))
	defer srv.Close()

	h := &model.TrackHeader{
		ID: "v1",
		Fragments: model.FragmentPlan{
			Segments: []model.Segment{
				{Index: 0, URL: srv.URL + "/seg0"},
				{Index: 1, URL: srv.URL + "/seg1"},
			},
		},
	}

	d := New(srv.Client(), 4)
	if err := d.Download(context.Background(), h, model.KindVideo, t.TempDir(), nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var updates []ProgressUpdate
	for len(updates) < 2 {
		updates = append(updates, <-d.Progress())
	}
	for _, u := range updates {
		if u.TrackID != "v1" || !u.Completed || u.BytesLoaded != 4 {
			t.Fatalf("unexpected progress update: %+v", u)
		}
	}
}

func TestDownloadForcesNoProxyWhenNotNeeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ZZZZ"))
	}))
	defer srv.Close()

	h := &model.TrackHeader{
		ID:         "v1",
		NeedsProxy: false,
		Fragments: model.FragmentPlan{
			Segments: []model.Segment{{Index: 0, URL: srv.URL + "/seg0"}},
		},
	}

	d := New(srv.Client(), 4)
	bogusProxy := &Proxy{URL: &url.URL{Scheme: "http", Host: "127.0.0.1:1"}}
	if err := d.Download(context.Background(), h, model.KindVideo, t.TempDir(), nil, bogusProxy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
