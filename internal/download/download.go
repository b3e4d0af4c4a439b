// Package download implements the Downloader (§4.3): resolving a track's
// segment addressing into a single file on disk, with bounded-concurrency
// segment fetching, resume-on-rerun detection, and the HLS
// discontinuity-span and proxy-retry provider quirks.
//
// Grounded on mohaanymo/veld's internal/engine/worker_pool.go for the
// bounded-worker-pool/retry/backoff shape, generalized here from an
// in-memory-only pipeline into one that streams each segment to its own
// temp file and concatenates in manifest order, and internal/httpclient
// (also the teacher's, kept largely as-is) for the transport.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/reelvault/reelvault/internal/httpclient"
	"github.com/reelvault/reelvault/internal/model"
	"github.com/reelvault/reelvault/internal/parser"
)

// minValidSize is the §4.3 resume/failure threshold: outputs at or below
// this size are treated as empty (a UTF-8 BOM is 3 bytes).
const minValidSize = 3

// ProgressUpdate reports one segment fetch's outcome, for a TUI or any
// other progress observer. Grounded on internal/engine/interfaces.go's
// ProgressUpdate/internal/engine/worker_pool.go's sendProgress, kept to
// the same field shape.
type ProgressUpdate struct {
	SegmentIndex int
	TrackID      string
	BytesLoaded  int64
	Completed    bool
	Error        error
}

// Downloader fetches one track's media onto disk.
type Downloader struct {
	client     *http.Client
	workers    int
	maxRetries int
	progressCh chan ProgressUpdate
}

// New builds a Downloader using client for HTTP fetches and workers as the
// per-track bounded segment-fetch concurrency (§5: "default small, e.g.
// 8-16").
func New(client *http.Client, workers int) *Downloader {
	if workers <= 0 {
		workers = 8
	}
	return &Downloader{client: client, workers: workers, maxRetries: 5, progressCh: make(chan ProgressUpdate, 100)}
}

// Progress returns the channel every segment fetch across every track
// reports its outcome on. The channel spans the Downloader's whole
// lifetime (it is shared across tracks, unlike a per-call return value),
// mirroring internal/engine's one-channel-per-run Engine.Progress.
func (d *Downloader) Progress() <-chan ProgressUpdate {
	return d.progressCh
}

// Close shuts down the progress channel once no further Download calls
// will be made.
func (d *Downloader) Close() {
	close(d.progressCh)
}

// Proxy is the subset of proxy configuration the Downloader needs: a
// transport-level URL, and whether the endpoint is JA3-sensitive and needs
// the browser-fingerprinted transport instead of a plain proxied one
// (§4.3's "needs_proxy with a JA3-sensitive endpoint" geofence case).
type Proxy struct {
	URL         *url.URL
	Fingerprint bool
}

// Download resolves h's fragments into a single file under destDir, and
// records the result at h.Location() via SetLocation. kind distinguishes
// HLS-specific handling (lazy playlist resolution, discontinuity-span
// trimming) from DASH/ISM/URL tracks, whose FragmentPlan already carries a
// complete, ready-to-fetch segment list from the parser.
func (d *Downloader) Download(ctx context.Context, h *model.TrackHeader, kind model.Kind, destDir string, headers map[string]string, proxy *Proxy) error {
	if !h.NeedsProxy {
		proxy = nil
	}

	destPath := filepath.Join(destDir, h.ID+".download")

	if resumed, ok := checkResumable(destPath); ok {
		h.SetLocation(resumed)
		return nil
	}

	fragments := h.Fragments
	if h.Descriptor == model.DescriptorM3U && len(fragments.Segments) == 0 && len(h.URLs) > 0 {
		resolved, err := d.resolveHLSPlaylist(ctx, h.URLs[0], headers, proxy)
		if err != nil {
			return fmt.Errorf("download %s: resolve hls playlist: %w", h.ID, err)
		}
		fragments = resolved
	}

	if kind == model.KindVideo || kind == model.KindAudio {
		if h.Descriptor == model.DescriptorM3U {
			fragments.Segments = KeepLongestDiscontinuitySpan(fragments.Segments)
		}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("download %s: create dest dir: %w", h.ID, err)
	}

	if err := d.fetchAndConcat(ctx, h.ID, fragments, destPath, headers, proxy); err != nil {
		return fmt.Errorf("download %s: %w", h.ID, err)
	}

	h.SetLocation(destPath)
	return nil
}

// checkResumable implements §4.3's resume rule: an existing output larger
// than minValidSize is treated as already downloaded.
func checkResumable(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() <= minValidSize {
		return "", false
	}
	return path, true
}

// resolveHLSPlaylist fetches an HLS media playlist and parses its segment
// list, retrying once without a proxy if the server denies the proxied
// request — a documented provider quirk (§4.3).
func (d *Downloader) resolveHLSPlaylist(ctx context.Context, playlistURL string, headers map[string]string, proxy *Proxy) (model.FragmentPlan, error) {
	content, err := d.fetchText(ctx, playlistURL, headers, proxy)
	if err != nil && proxy != nil && isDenied(err) {
		content, err = d.fetchText(ctx, playlistURL, headers, nil)
	}
	if err != nil {
		return model.FragmentPlan{}, err
	}

	segments, initSeg := parser.ParseMediaPlaylist(content, playlistURL)
	return model.FragmentPlan{InitSegment: initSeg, Segments: segments}, nil
}

func isDenied(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "403") || strings.Contains(err.Error(), "Denied"))
}

func (d *Downloader) fetchText(ctx context.Context, u string, headers map[string]string, proxy *Proxy) (string, error) {
	data, err := d.fetch(ctx, u, nil, headers, proxy)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// KeepLongestDiscontinuitySpan implements §4.3's HLS bumper-elimination
// rule: partition segments at each DiscontinuityStart marker and keep only
// the longest span by total duration, reindexed from 0.
func KeepLongestDiscontinuitySpan(segments []model.Segment) []model.Segment {
	if len(segments) == 0 {
		return segments
	}

	var spans [][]model.Segment
	current := []model.Segment{segments[0]}
	for _, seg := range segments[1:] {
		if seg.DiscontinuityStart {
			spans = append(spans, current)
			current = nil
		}
		current = append(current, seg)
	}
	spans = append(spans, current)

	best := spans[0]
	bestDuration := spanDuration(best)
	for _, span := range spans[1:] {
		if d := spanDuration(span); d > bestDuration {
			best, bestDuration = span, d
		}
	}

	out := make([]model.Segment, len(best))
	for i, seg := range best {
		seg.Index = i
		out[i] = seg
	}
	return out
}

func spanDuration(segs []model.Segment) float64 {
	var total float64
	for _, s := range segs {
		total += s.Duration
	}
	return total
}

// fetchAndConcat downloads every segment of fragments with bounded
// concurrency, then concatenates the init segment (if any) followed by
// segments in manifest order into a single file at destPath.
func (d *Downloader) fetchAndConcat(ctx context.Context, trackID string, fragments model.FragmentPlan, destPath string, headers map[string]string, proxy *Proxy) error {
	tempDir, err := os.MkdirTemp(filepath.Dir(destPath), ".segments-*")
	if err != nil {
		return fmt.Errorf("create segment temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	results := make([]string, len(fragments.Segments))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		firstI error
	)

	sem := make(chan struct{}, d.workers)
	for i, seg := range fragments.Segments {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, seg model.Segment) {
			defer wg.Done()
			defer func() { <-sem }()

			path := filepath.Join(tempDir, fmt.Sprintf("%05d.seg", i))
			n, err := d.fetchSegmentWithRetry(ctx, seg, path, headers, proxy)
			d.sendProgress(ctx, trackID, seg, n, err)
			if err != nil {
				mu.Lock()
				if firstI == nil {
					firstI = fmt.Errorf("segment %d: %w", i, err)
				}
				mu.Unlock()
				return
			}
			results[i] = path
		}(i, seg)
	}
	wg.Wait()

	if firstI != nil {
		return firstI
	}

	var initPath string
	if fragments.InitSegment != nil && fragments.InitSegment.URL != "" {
		initPath = filepath.Join(tempDir, "init.seg")
		if _, err := d.fetchSegmentWithRetry(ctx, *fragments.InitSegment, initPath, headers, proxy); err != nil {
			return fmt.Errorf("init segment: %w", err)
		}
	}

	return concatSegmentFiles(initPath, results, destPath)
}

func (d *Downloader) fetchSegmentWithRetry(ctx context.Context, seg model.Segment, outputPath string, headers map[string]string, proxy *Proxy) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}

		data, err := d.fetch(ctx, seg.URL, seg.Range, headers, proxy)
		if err == nil {
			if err := os.WriteFile(outputPath, data, 0o644); err != nil {
				return 0, err
			}
			return int64(len(data)), nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("after %d attempts: %w", d.maxRetries, lastErr)
}

// sendProgress reports one segment's outcome, dropping the update instead
// of blocking if the channel is full or ctx is already done — a progress
// observer must never be able to stall a download.
func (d *Downloader) sendProgress(ctx context.Context, trackID string, seg model.Segment, bytes int64, err error) {
	select {
	case d.progressCh <- ProgressUpdate{SegmentIndex: seg.Index, TrackID: trackID, BytesLoaded: bytes, Completed: err == nil, Error: err}:
	case <-ctx.Done():
	default:
	}
}

func (d *Downloader) fetch(ctx context.Context, u string, byteRange *model.ByteRange, headers map[string]string, proxy *Proxy) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if byteRange != nil {
		if byteRange.End == 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", byteRange.Start))
		} else {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", byteRange.Start, byteRange.End))
		}
	}

	client := d.client
	switch {
	case proxy != nil && proxy.Fingerprint:
		client = httpclient.NewFingerprintedClient()
	case proxy != nil && proxy.URL != nil:
		client = &http.Client{
			Timeout: client.Timeout,
			Transport: &proxyTransport{
				base:  client.Transport,
				proxy: proxy.URL,
			},
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("HTTP 403: Denied")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// proxyTransport forces requests through proxy.URL on top of whatever base
// RoundTripper the client was already configured with.
type proxyTransport struct {
	base  http.RoundTripper
	proxy *url.URL
}

func (t *proxyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if transport, ok := base.(*http.Transport); ok {
		clone := transport.Clone()
		clone.Proxy = http.ProxyURL(t.proxy)
		return clone.RoundTrip(req)
	}
	return base.RoundTrip(req)
}

// concatSegmentFiles writes the init segment (if any) then every segment
// file in manifest order into destPath.
func concatSegmentFiles(initPath string, segmentPaths []string, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	var written int64
	if initPath != "" {
		n, err := appendFile(out, initPath)
		if err != nil {
			return fmt.Errorf("write init segment: %w", err)
		}
		written += n
	}

	for _, p := range segmentPaths {
		if p == "" {
			return fmt.Errorf("missing downloaded segment")
		}
		n, err := appendFile(out, p)
		if err != nil {
			return err
		}
		written += n
	}
	if written <= minValidSize {
		return fmt.Errorf("downloaded output is empty")
	}
	return nil
}

func appendFile(dst *os.File, srcPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	return io.Copy(dst, src)
}
