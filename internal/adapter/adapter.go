// Package adapter defines the ServiceAdapter contract (§6) the Orchestrator
// drives, and a baseline adapter for plain, unauthenticated manifest URLs —
// the direct descendant of mohaanymo/veld's veld.go Downloader, which only
// ever dealt with a single URL and no service session at all.
package adapter

import (
	"context"
	"fmt"

	"github.com/reelvault/reelvault/internal/drm"
	"github.com/reelvault/reelvault/internal/model"
	"github.com/reelvault/reelvault/internal/parser"
)

// ServiceAdapter is the external interface every streaming-service
// integration implements. The core treats an adapter's HTTP session,
// cookies, and credentials as opaque (§6): it only ever calls these five
// methods. ServiceAdapter's License method has the same signature as
// drm.Adapter's, so any ServiceAdapter can be passed directly to
// drm.NewDrmSession without an adapter shim.
type ServiceAdapter interface {
	// Titles lists every title the adapter currently exposes (a single
	// movie, or every episode of a season, depending on what the caller
	// asked the adapter to resolve).
	Titles(ctx context.Context) ([]*model.Title, error)

	// Tracks returns the full TrackSet for one title.
	Tracks(ctx context.Context, title *model.Title) (*model.TrackSet, error)

	// Chapters returns chapter markers for one title, or nil if the
	// service/title has none.
	Chapters(ctx context.Context, title *model.Title) ([]model.MenuTrack, error)

	// Certificate returns a Widevine service certificate to use in place of
	// the CDM's common privacy cert, or nil if the adapter has none.
	Certificate(ctx context.Context, req drm.LicenseRequest) ([]byte, error)

	// License exchanges a CDM challenge for a license response.
	License(ctx context.Context, req drm.LicenseRequest) (drm.LicenseResponse, error)
}

// URLAdapter is the degenerate ServiceAdapter for a single, unauthenticated
// manifest URL with no DRM: it wraps internal/parser's Registry directly,
// the same flow mohaanymo/veld's public Downloader.Parse used before this
// was split out as a capability interface.
type URLAdapter struct {
	URL     string
	Source  string
	Headers map[string]string

	registry *parser.Registry
}

// NewURLAdapter builds a URLAdapter for a single manifest URL.
func NewURLAdapter(url, source string, headers map[string]string) *URLAdapter {
	return &URLAdapter{URL: url, Source: source, Headers: headers, registry: parser.NewRegistry()}
}

// Titles returns a single synthetic movie title identified by the URL.
func (a *URLAdapter) Titles(ctx context.Context) ([]*model.Title, error) {
	return []*model.Title{{ID: a.URL, Kind: model.TitleMovie, Name: a.Source}}, nil
}

// Tracks parses the manifest at a.URL into a TrackSet.
func (a *URLAdapter) Tracks(ctx context.Context, title *model.Title) (*model.TrackSet, error) {
	return a.registry.Parse(ctx, a.URL, a.Source, a.Headers)
}

// Chapters always returns nil: a bare manifest URL carries no chapter
// metadata of its own.
func (a *URLAdapter) Chapters(ctx context.Context, title *model.Title) ([]model.MenuTrack, error) {
	return nil, nil
}

// Certificate always returns nil: URLAdapter never DRM-protects content.
func (a *URLAdapter) Certificate(ctx context.Context, req drm.LicenseRequest) ([]byte, error) {
	return nil, nil
}

// License always fails: a URLAdapter has no license server to call.
func (a *URLAdapter) License(ctx context.Context, req drm.LicenseRequest) (drm.LicenseResponse, error) {
	return drm.LicenseResponse{}, fmt.Errorf("url adapter: no license service configured for track %s", req.TrackID)
}
