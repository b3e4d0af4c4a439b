// Package reelvault is a small convenience facade over this module's
// pipeline packages for the common case: one unauthenticated manifest URL,
// no DRM, best-quality video and audio.
//
// Basic usage:
//
//	d, err := reelvault.New(
//		reelvault.WithURL("https://example.com/video.m3u8"),
//		reelvault.WithWorkDir("./out"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := d.Parse(ctx); err != nil {
//		log.Fatal(err)
//	}
//	if err := d.SelectBest(); err != nil {
//		log.Fatal(err)
//	}
//	if err := d.Download(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// Or use the convenience function:
//
//	err := reelvault.DownloadURL(ctx, "https://example.com/video.m3u8", "./out")
//
// Anything beyond this case — DRM-protected content, multiple titles, a
// configured vault federation, fine-grained track filters — calls
// internal/orchestrator directly instead of going through this facade.
package reelvault

import (
	"context"
	"fmt"
	"net/http"

	"github.com/reelvault/reelvault/internal/adapter"
	"github.com/reelvault/reelvault/internal/download"
	"github.com/reelvault/reelvault/internal/model"
	"github.com/reelvault/reelvault/internal/orchestrator"
	"github.com/reelvault/reelvault/internal/toolrunner"
	"github.com/reelvault/reelvault/internal/trackselect"
)

// Downloader is the facade's main API for downloading a single manifest URL.
type Downloader struct {
	adapter *adapter.URLAdapter
	dl      *download.Downloader
	orch    *orchestrator.Orchestrator

	title     *model.Title
	tracks    *model.TrackSet
	selection orchestrator.SelectionOptions
}

type settings struct {
	url        string
	source     string
	headers    map[string]string
	workDir    string
	workers    int
	muxEnabled bool
}

// Option configures the Downloader.
type Option func(*settings)

// New creates a new Downloader with the given options. WithURL is required.
func New(opts ...Option) (*Downloader, error) {
	s := &settings{source: "url", workDir: ".", workers: 8, muxEnabled: true, headers: map[string]string{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.url == "" {
		return nil, fmt.Errorf("reelvault: WithURL is required")
	}

	a := adapter.NewURLAdapter(s.url, s.source, s.headers)
	dl := download.New(http.DefaultClient, s.workers)
	runner := toolrunner.New("")
	orch := orchestrator.New(s.source, a, nil, nil, dl, runner, s.workDir, s.muxEnabled, nil)

	return &Downloader{adapter: a, dl: dl, orch: orch}, nil
}

// WithURL sets the manifest URL (required).
func WithURL(url string) Option {
	return func(s *settings) { s.url = url }
}

// WithSource names the track/title source label surfaced in logs and the
// synthetic Title this facade builds (default "url").
func WithSource(source string) Option {
	return func(s *settings) { s.source = source }
}

// WithWorkDir sets the working directory Downloader writes temp/ and
// downloads/ under (default ".").
func WithWorkDir(dir string) Option {
	return func(s *settings) { s.workDir = dir }
}

// WithHeaders sets custom HTTP headers used to fetch the manifest and its
// segments.
func WithHeaders(headers map[string]string) Option {
	return func(s *settings) {
		for k, v := range headers {
			s.headers[k] = v
		}
	}
}

// WithWorkers sets the per-track segment-fetch concurrency (default 8).
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithMuxEnabled toggles the final Matroska mux; when false, per-track
// files are renamed into the output directory instead (default true).
func WithMuxEnabled(enabled bool) Option {
	return func(s *settings) { s.muxEnabled = enabled }
}

// Parse fetches and parses the manifest at the configured URL. Must be
// called before Tracks(), SelectBest(), or Download().
func (d *Downloader) Parse(ctx context.Context) error {
	titles, err := d.adapter.Titles(ctx)
	if err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	d.title = titles[0]

	tracks, err := d.adapter.Tracks(ctx, d.title)
	if err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	d.tracks = tracks
	return nil
}

// Tracks returns every track found by Parse, across all kinds.
func (d *Downloader) Tracks() []model.Track {
	if d.tracks == nil {
		return nil
	}
	return d.tracks.All()
}

// SelectBest selects the single highest-bitrate video and audio track, plus
// every subtitle. Equivalent to the source's "best" track selector string.
//
// RunTitle re-fetches tracks from the adapter itself rather than trusting
// whatever Parse cached on d.tracks, so "best" is expressed as an explicit
// by-ID keep-list (SelectionOptions.OnlyIDs) rather than by narrowing
// d.tracks in place.
func (d *Downloader) SelectBest() error {
	if d.tracks == nil {
		return fmt.Errorf("manifest not parsed, call Parse() first")
	}

	ids := map[string]bool{}
	sortedVideos := trackselect.SortVideos(d.tracks.Videos, nil)
	if len(sortedVideos) > 0 {
		ids[sortedVideos[0].ID] = true
	}
	sortedAudios := trackselect.SortAudios(d.tracks.Audios, nil)
	if len(sortedAudios) > 0 {
		ids[sortedAudios[0].ID] = true
	}
	for _, s := range d.tracks.Subtitles {
		ids[s.ID] = true
	}

	d.selection = orchestrator.SelectionOptions{OnlyIDs: ids}
	return nil
}

// Download runs the full pipeline (select, download, decrypt-if-needed,
// post-process, mux) for the parsed title. Blocks until complete or ctx is
// canceled.
func (d *Downloader) Download(ctx context.Context) error {
	if d.title == nil {
		return fmt.Errorf("manifest not parsed, call Parse() first")
	}
	return d.orch.RunTitle(ctx, d.title, d.selection)
}

// Progress returns the channel every segment fetch reports its outcome on.
func (d *Downloader) Progress() <-chan download.ProgressUpdate {
	return d.dl.Progress()
}

// Close releases resources held by the Downloader's progress channel.
func (d *Downloader) Close() error {
	d.dl.Close()
	return nil
}

// DownloadURL is a convenience function for simple downloads: parse,
// select the best video/audio, and download to workDir.
func DownloadURL(ctx context.Context, url, workDir string, opts ...Option) error {
	allOpts := append([]Option{WithURL(url), WithWorkDir(workDir)}, opts...)

	d, err := New(allOpts...)
	if err != nil {
		return err
	}

	if err := d.Parse(ctx); err != nil {
		return err
	}
	if err := d.SelectBest(); err != nil {
		return err
	}
	return d.Download(ctx)
}
