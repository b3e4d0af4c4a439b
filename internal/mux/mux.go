// Package mux implements the Muxer (§4.9): mkvmerge invocation with one
// `( file )` clause per surviving track, language/name/forced/default
// flags, and chapter attachment, with a rename-only fallback when muxing is
// disabled.
//
// Grounded on mohaanymo/veld's internal/engine/muxer.go for the
// subtitle-handling and temp-file cleanup shape, generalized from its
// ffmpeg stream-mapping invocation into mkvmerge's `(` file `)` clause
// syntax per §4.9, and routed through internal/toolrunner for its
// warning-vs-fatal exit code distinction (mkvmerge uniquely treats exit 1
// as a warning, not a failure).
package mux

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/reelvault/reelvault/internal/model"
	"github.com/reelvault/reelvault/internal/toolrunner"
	"github.com/reelvault/reelvault/internal/trackselect"
)

// Muxer runs mkvmerge over a title's selected tracks.
type Muxer struct {
	runner  *toolrunner.Runner
	enabled bool
}

// New builds a Muxer. When enabled is false, Mux falls back to renaming
// each track's artifact into outputDir with a deterministic name instead of
// invoking mkvmerge.
func New(runner *toolrunner.Runner, enabled bool) *Muxer {
	return &Muxer{runner: runner, enabled: enabled}
}

// Mux combines ts's surviving (non-chapter) tracks into outputPath, a
// Matroska file (.mkv, .mka or .mks). chaptersFile, if non-empty, is passed to mkvmerge via
// --chapters in OGM format. On success every per-track intermediate file
// is deleted.
func (m *Muxer) Mux(ctx context.Context, ts *model.TrackSet, outputPath, chaptersFile string) error {
	tracks := survivingTracks(ts)
	if len(tracks) == 0 {
		return fmt.Errorf("mux: no tracks survived selection")
	}

	if !m.enabled {
		return m.renameOnly(ts, filepath.Dir(outputPath))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("mux: create output dir: %w", err)
	}

	firstAudioLang := ""
	if len(ts.Audios) > 0 {
		firstAudioLang = ts.Audios[0].Language
	}

	args := []string{"-o", outputPath}
	if chaptersFile != "" {
		args = append(args, "--chapters", chaptersFile)
	}

	for _, v := range ts.Videos {
		args = append(args, "(", v.Location(), ")")
	}
	for _, a := range ts.Audios {
		args = append(args,
			"--language", fmt.Sprintf("0:%s", a.Language),
			"--track-name", fmt.Sprintf("0:%s", audioTrackName(a)),
			"(", a.Location(), ")",
		)
	}
	for _, s := range ts.Subtitles {
		isDefault := s.Forced && firstAudioLang != "" && trackselect.LanguagesMatch(s.Language, firstAudioLang)
		args = append(args,
			"--language", fmt.Sprintf("0:%s", s.Language),
			"--forced-track", boolFlag(s.Forced),
			"--default-track", boolFlag(isDefault),
			"(", s.Location(), ")",
		)
	}

	result, err := m.runner.Run(ctx, "mkvmerge", args...)
	if err != nil {
		return fmt.Errorf("mkvmerge: %w", err)
	}
	switch result.Outcome {
	case toolrunner.OutcomeFatal:
		return fmt.Errorf("mkvmerge failed (exit %d): %s", result.ExitCode, trimOutput(result.Stderr))
	case toolrunner.OutcomeRecoverable:
		// exit 1: warnings only, output was still produced.
	}

	removeIntermediates(tracks)
	return nil
}

// renameOnly moves each track's artifact into outputDir under a
// deterministic filename, used when muxing is disabled per §4.9.
func (m *Muxer) renameOnly(ts *model.TrackSet, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("mux: create output dir: %w", err)
	}
	for _, v := range ts.Videos {
		if err := renameTrack(&v.TrackHeader, outputDir, deterministicName(v.ID, v.Codec, v.Language)); err != nil {
			return err
		}
	}
	for _, a := range ts.Audios {
		if err := renameTrack(&a.TrackHeader, outputDir, deterministicName(a.ID, a.Codec, a.Language)); err != nil {
			return err
		}
	}
	for _, s := range ts.Subtitles {
		if err := renameTrack(&s.TrackHeader, outputDir, deterministicName(s.ID, s.Codec, s.Language)); err != nil {
			return err
		}
	}
	return nil
}

func renameTrack(h *model.TrackHeader, outputDir, name string) error {
	src := h.Location()
	if src == "" {
		return fmt.Errorf("mux: track %s has no downloaded artifact", h.ID)
	}
	dst := filepath.Join(outputDir, name+filepath.Ext(src))
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("mux: rename %s: %w", h.ID, err)
	}
	h.SetLocation(dst)
	return nil
}

func deterministicName(id, codec, language string) string {
	return fmt.Sprintf("%s.%s.%s", id, language, codec)
}

func audioTrackName(a *model.AudioTrack) string {
	if a.Atmos {
		return fmt.Sprintf("%s (Atmos)", a.Language)
	}
	if a.Descriptive {
		return fmt.Sprintf("%s (Descriptive)", a.Language)
	}
	return a.Language
}

func boolFlag(b bool) string {
	if b {
		return "0:1"
	}
	return "0:0"
}

func survivingTracks(ts *model.TrackSet) []*model.TrackHeader {
	var out []*model.TrackHeader
	for _, v := range ts.Videos {
		out = append(out, &v.TrackHeader)
	}
	for _, a := range ts.Audios {
		out = append(out, &a.TrackHeader)
	}
	for _, s := range ts.Subtitles {
		out = append(out, &s.TrackHeader)
	}
	return out
}

func removeIntermediates(tracks []*model.TrackHeader) {
	for _, h := range tracks {
		if path := h.Location(); path != "" {
			_ = os.Remove(path)
		}
	}
}
