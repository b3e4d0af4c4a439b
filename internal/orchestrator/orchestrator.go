// Package orchestrator drives one Title through the full pipeline (§4.10):
// selection, per-track download/decrypt/post-process, optional HDR-hybrid
// compositing, and muxing.
//
// Grounded on the root-level manager.go's Task/TaskState/Manager pattern —
// the TaskState enum survives as State, and the "fatal errors fail the
// task, the manager moves on" shape is kept, with each failed track logged
// through Logger.Error instead of a per-task error/progress callback; the
// task queue and concurrent-task worker pool are dropped
// since §5 mandates titles are processed sequentially in the baseline
// design (a caller wanting title-level concurrency runs multiple
// Orchestrators, one per title, itself).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/reelvault/reelvault/internal/adapter"
	"github.com/reelvault/reelvault/internal/box"
	"github.com/reelvault/reelvault/internal/decrypt"
	"github.com/reelvault/reelvault/internal/download"
	"github.com/reelvault/reelvault/internal/drm"
	"github.com/reelvault/reelvault/internal/hdrhybrid"
	"github.com/reelvault/reelvault/internal/model"
	"github.com/reelvault/reelvault/internal/mux"
	"github.com/reelvault/reelvault/internal/obs"
	"github.com/reelvault/reelvault/internal/pipelineerr"
	"github.com/reelvault/reelvault/internal/postprocess"
	"github.com/reelvault/reelvault/internal/toolrunner"
	"github.com/reelvault/reelvault/internal/trackselect"
)

// State mirrors the source's TaskState for a title moving through the
// pipeline.
type State int

const (
	StatePending State = iota
	StateSelecting
	StateDownloading
	StateMuxing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSelecting:
		return "selecting"
	case StateDownloading:
		return "downloading"
	case StateMuxing:
		return "muxing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// SelectionOptions bundles the trackselect options for one title; the
// caller (CLI or TUI) is responsible for turning user flags into this
// shape.
type SelectionOptions struct {
	Video    trackselect.VideoSelectOptions
	Audio    trackselect.AudioSelectOptions
	Subtitle trackselect.SubtitleSelectOptions
	HDRHybrid bool // request DV+HDR10 compositing when both ranges are present

	// OnlyIDs, when non-nil, bypasses the filter/sort criteria above
	// entirely and keeps exactly the named track IDs. Set by callers (the
	// interactive TUI picker) that already resolved a human choice to a
	// concrete track set rather than a filter expression.
	OnlyIDs map[string]bool

	// AudioOnly drops every video track after selection, muxing to .mka
	// (§6). SubsOnly drops both video and audio, muxing to .mks. The two
	// are mutually exclusive; SubsOnly wins if both are set.
	AudioOnly bool
	SubsOnly  bool
}

// Orchestrator wires every pipeline stage together for one service. A
// single Orchestrator processes titles sequentially per §5's baseline
// scheduling model; a caller wanting parallel titles runs one Orchestrator
// per goroutine, each with its own Downloader/DrmSession but sharing the
// same vault.Federation (the federation is the only component required to
// serialize cross-title writes).
type Orchestrator struct {
	Service    string
	Adapter    adapter.ServiceAdapter
	Vault      drm.Vault
	Cdms       []drm.Cdm
	Downloader *download.Downloader
	Runner     *toolrunner.Runner
	WorkDir    string
	MuxEnabled bool

	Logger *obs.Logger
}

// New builds an Orchestrator from its component dependencies.
func New(service string, a adapter.ServiceAdapter, vault drm.Vault, cdms []drm.Cdm, dl *download.Downloader, runner *toolrunner.Runner, workDir string, muxEnabled bool, logger *obs.Logger) *Orchestrator {
	if logger == nil {
		logger = obs.New("info", false, nil)
	}
	return &Orchestrator{
		Service: service, Adapter: a, Vault: vault, Cdms: cdms,
		Downloader: dl, Runner: runner, WorkDir: workDir, MuxEnabled: muxEnabled,
		Logger: logger.WithComponent("orchestrator"),
	}
}

// RunTitle drives one title through the whole pipeline. A fatal title-level
// error is returned so the caller can decide whether to continue with
// other titles (§7: "Title-level errors abort the title and the
// orchestrator proceeds to the next").
func (o *Orchestrator) RunTitle(ctx context.Context, title *model.Title, opts SelectionOptions) error {
	log := o.Logger.WithTitle(title.ID)
	log.Info("title started")

	titleDir := filepath.Join(o.WorkDir, "temp", title.ID)
	if err := os.MkdirAll(titleDir, 0o755); err != nil {
		return fmt.Errorf("title %s: create work dir: %w", title.ID, err)
	}

	tracks, err := o.Adapter.Tracks(ctx, title)
	if err != nil {
		return pipelineerr.New(pipelineerr.ManifestError, err).WithTitle(title.ID)
	}
	chapters, err := o.Adapter.Chapters(ctx, title)
	if err != nil {
		log.With("error", err).Warn("get chapters failed, continuing without chapters")
	} else {
		tracks.Chapters = chapters
	}

	selected, err := o.selectTracks(tracks, opts)
	if err != nil {
		kind := pipelineerr.NoMatchingTrack
		if errors.Is(err, trackselect.ErrNoOriginalLanguage) {
			kind = pipelineerr.NoOriginalLanguage
		}
		return pipelineerr.New(kind, err).WithTitle(title.ID)
	}

	session := drm.NewDrmSession(o.Service, o.Adapter, o.Vault, o.Cdms...)
	decryptStage := decrypt.New(o.Runner)
	postStage := postprocess.New(o.Runner)

	var anySucceeded bool
	for _, ordered := range orderTracksForDownload(selected) {
		trackLog := log.WithTrack(ordered.Header().ID)
		if err := o.runTrack(ctx, title, ordered, selected, session, decryptStage, postStage, titleDir); err != nil {
			trackLog.With("error", err).Error("track failed")
			continue
		}
		anySucceeded = true
	}

	if !anySucceeded {
		return pipelineerr.New(pipelineerr.DownloadEmpty, errors.New("every selected track failed")).WithTitle(title.ID)
	}

	if opts.HDRHybrid && hasHDRHybridPair(selected) {
		if err := o.composeHDRHybrid(ctx, selected, titleDir); err != nil {
			log.With("error", err).Error("hdr-hybrid compositing failed")
		}
	}

	if err := o.muxTitle(ctx, selected, title); err != nil {
		return pipelineerr.New(pipelineerr.MuxFailed, err).WithTitle(title.ID)
	}

	log.Info("title completed")
	return nil
}

func (o *Orchestrator) selectTracks(tracks *model.TrackSet, opts SelectionOptions) (*model.TrackSet, error) {
	if opts.OnlyIDs != nil {
		out := model.NewTrackSet()
		for _, v := range tracks.Videos {
			if opts.OnlyIDs[v.ID] {
				if err := out.AddVideo(v, true); err != nil {
					return nil, err
				}
			}
		}
		for _, a := range tracks.Audios {
			if opts.OnlyIDs[a.ID] {
				if err := out.AddAudio(a, true); err != nil {
					return nil, err
				}
			}
		}
		for _, s := range tracks.Subtitles {
			if opts.OnlyIDs[s.ID] {
				if err := out.AddSubtitle(s, true); err != nil {
					return nil, err
				}
			}
		}
		applyKindFilter(out, opts)
		if len(out.All()) == 0 {
			return nil, trackselect.ErrNoMatchingTrack
		}
		out.Chapters = tracks.Chapters
		return out, nil
	}

	videos, err := trackselect.SelectVideos(tracks.Videos, opts.Video)
	if err != nil {
		return nil, fmt.Errorf("select videos: %w", err)
	}
	audios, err := trackselect.SelectAudios(tracks.Audios, opts.Audio)
	if err != nil {
		return nil, fmt.Errorf("select audios: %w", err)
	}
	subs, err := trackselect.SelectSubtitles(tracks.Subtitles, opts.Subtitle)
	if err != nil {
		return nil, fmt.Errorf("select subtitles: %w", err)
	}

	out := model.NewTrackSet()
	for _, v := range videos {
		if err := out.AddVideo(v, true); err != nil {
			return nil, err
		}
	}
	for _, a := range audios {
		if err := out.AddAudio(a, true); err != nil {
			return nil, err
		}
	}
	for _, s := range subs {
		if err := out.AddSubtitle(s, true); err != nil {
			return nil, err
		}
	}
	applyKindFilter(out, opts)
	out.Chapters = tracks.Chapters
	return out, nil
}

// applyKindFilter implements §6's --audio-only/--subs-only output
// contracts by dropping track kinds after selection rather than changing
// how tracks are chosen.
func applyKindFilter(out *model.TrackSet, opts SelectionOptions) {
	if opts.SubsOnly {
		out.Videos = nil
		out.Audios = nil
		return
	}
	if opts.AudioOnly {
		out.Videos = nil
	}
}

// orderTracksForDownload returns every selected track, audio and subtitle
// tracks first, then videos sorted ascending by bitrate so the largest
// (and most short-lived-token-sensitive) video is fetched last — §9's
// rationale for "largest video last".
func orderTracksForDownload(ts *model.TrackSet) []model.Track {
	out := make([]model.Track, 0, len(ts.Audios)+len(ts.Subtitles)+len(ts.Videos))
	for _, a := range ts.Audios {
		out = append(out, a)
	}
	for _, s := range ts.Subtitles {
		out = append(out, s)
	}
	videos := append([]*model.VideoTrack(nil), ts.Videos...)
	for i := 0; i < len(videos); i++ {
		for j := i + 1; j < len(videos); j++ {
			if videos[j].Bitrate < videos[i].Bitrate {
				videos[i], videos[j] = videos[j], videos[i]
			}
		}
	}
	for _, v := range videos {
		out = append(out, v)
	}
	return out
}

func (o *Orchestrator) runTrack(ctx context.Context, title *model.Title, t model.Track, selected *model.TrackSet, session *drm.DrmSession, decryptStage *decrypt.Stage, postStage *postprocess.Stage, workDir string) error {
	h := t.Header()

	if err := o.Downloader.Download(ctx, h, t.Kind(), workDir, nil, nil); err != nil {
		return pipelineerr.New(pipelineerr.DownloadEmpty, err).WithTrack(h.ID)
	}

	if h.Encrypted {
		if err := o.decryptTrack(ctx, title, h, session, decryptStage, workDir); err != nil {
			return err
		}
	}

	return o.postProcessTrack(ctx, t, selected, postStage, workDir)
}

func (o *Orchestrator) decryptTrack(ctx context.Context, title *model.Title, h *model.TrackHeader, session *drm.DrmSession, stage *decrypt.Stage, workDir string) error {
	system := drm.SystemWidevine
	initData := h.PsshWV
	kid := h.KID
	switch {
	case len(initData) > 0:
		// Widevine PSSH published directly, nothing to translate.
	case len(h.PsshPR) == 0:
		return pipelineerr.New(pipelineerr.PsshUnobtainable, fmt.Errorf("no pssh available for track %s", h.ID)).WithTrack(h.ID)
	case session.Supports(drm.SystemWidevine) && !session.Supports(drm.SystemPlayReady):
		// Only a Widevine CDM is configured but the manifest only published
		// a PlayReady WRMHEADER: translate it into a synthetic Widevine
		// PSSH carrying the same key id (§4.4).
		translated, translatedKID, err := box.TranslatePlayReadyToWidevinePSSH(h.PsshPR)
		if err != nil {
			return pipelineerr.New(pipelineerr.PsshUnobtainable, fmt.Errorf("translate playready pssh: %w", err)).WithTrack(h.ID)
		}
		initData = translated
		if kid == "" {
			kid = translatedKID
		}
	default:
		system = drm.SystemPlayReady
		initData = h.PsshPR
	}

	key, err := session.AcquireKey(ctx, drm.KeyRequest{
		System:   system,
		InitData: initData,
		KID:      kid,
		TitleID:  title.ID,
		TrackID:  h.ID,
	})
	if err != nil {
		kind := pipelineerr.NoContentKey
		switch {
		case errors.Is(err, drm.ErrPSSHUnavailable):
			kind = pipelineerr.PsshUnobtainable
		case errors.Is(err, drm.ErrLicenseFailed):
			kind = pipelineerr.LicenseRefused
		case errors.Is(err, drm.ErrNoMatchingKey):
			kind = pipelineerr.NoContentKey
		}
		return pipelineerr.New(kind, err).WithTrack(h.ID)
	}

	out := filepath.Join(workDir, h.ID+".decrypted")
	contentKey := model.ContentKey{KID: key.KID, Key: key.Key}
	if err := stage.Decrypt(ctx, h, []model.ContentKey{contentKey}, false, out); err != nil {
		return pipelineerr.New(pipelineerr.ToolFailed, err).WithTrack(h.ID)
	}
	return nil
}

func (o *Orchestrator) postProcessTrack(ctx context.Context, t model.Track, selected *model.TrackSet, stage *postprocess.Stage, workDir string) error {
	h := t.Header()
	switch v := t.(type) {
	case *model.AudioTrack:
		if postprocess.NeedsAtmosFix(v) {
			out := filepath.Join(workDir, h.ID+".eac3")
			if err := stage.FixISMAtmos(ctx, v, out); err != nil {
				return err
			}
		}
		if postprocess.NeedsRepackage(h, model.KindAudio, h.Descriptor == model.DescriptorURL) {
			out := filepath.Join(workDir, h.ID+".repack.mka")
			if err := stage.Repackage(ctx, h, out); err != nil {
				return err
			}
		}
	case *model.VideoTrack:
		if postprocess.NeedsCaptionExtraction(v) {
			srt := filepath.Join(workDir, h.ID+".cc.srt")
			cc, err := stage.ExtractCaptions(ctx, v, srt)
			if err != nil {
				return err
			}
			if cc != nil {
				if err := selected.AddSubtitle(cc, true); err != nil {
					return err
				}
			}
		}
		if postprocess.NeedsRepackage(h, model.KindVideo, false) {
			out := filepath.Join(workDir, h.ID+".repack.mkv")
			if err := stage.Repackage(ctx, h, out); err != nil {
				return err
			}
		}
	case *model.TextTrack:
		if v.SDH {
			if err := stage.StripSDH(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func hdrHybridPair(ts *model.TrackSet) (hdr10, dv *model.VideoTrack) {
	for _, v := range ts.Videos {
		switch v.Range {
		case model.RangeHDR10:
			hdr10 = v
		case model.RangeDV:
			dv = v
		}
	}
	return hdr10, dv
}

func hasHDRHybridPair(ts *model.TrackSet) bool {
	hdr10, dv := hdrHybridPair(ts)
	return hdr10 != nil && dv != nil
}

func (o *Orchestrator) composeHDRHybrid(ctx context.Context, ts *model.TrackSet, workDir string) error {
	hdr10, dv := hdrHybridPair(ts)
	if hdr10 == nil || dv == nil {
		return nil
	}
	compositor := hdrhybrid.New(o.Runner)
	if err := compositor.Compose(ctx, hdr10, dv, workDir); err != nil {
		return err
	}
	kept := ts.Videos[:0]
	for _, v := range ts.Videos {
		if v != dv {
			kept = append(kept, v)
		}
	}
	ts.Videos = kept
	return nil
}

func (o *Orchestrator) muxTitle(ctx context.Context, ts *model.TrackSet, title *model.Title) error {
	muxer := mux.New(o.Runner, o.MuxEnabled)
	outDir := filepath.Join(o.WorkDir, "downloads")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	outPath := filepath.Join(outDir, titleFilename(title)+muxExtension(ts))
	return muxer.Mux(ctx, ts, outPath, "")
}

// muxExtension derives the container suffix from which track kinds
// survived selection (§6): video present still muxes to .mkv even
// alongside audio/subs, audio-only (--audio-only) muxes to .mka, and
// subtitles with neither video nor audio mux to .mks.
func muxExtension(ts *model.TrackSet) string {
	switch {
	case len(ts.Videos) > 0:
		return ".mkv"
	case len(ts.Audios) > 0:
		return ".mka"
	case len(ts.Subtitles) > 0:
		return ".mks"
	default:
		return ".mkv"
	}
}

func titleFilename(title *model.Title) string {
	if title.Kind == model.TitleTV {
		return fmt.Sprintf("%s.S%02dE%02d", title.Name, title.Season, title.Episode)
	}
	return title.Name
}
