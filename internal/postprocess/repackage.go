package postprocess

import (
	"context"
	"fmt"

	"github.com/reelvault/reelvault/internal/model"
	"github.com/reelvault/reelvault/internal/toolrunner"
)

// NeedsRepackage reports whether a track requires the stream-copy
// repackage into Matroska: either it was explicitly flagged (some ISM/HLS
// sources produce containers mkvmerge chokes on), or it's a video/audio
// track whose decrypt path was mp4decrypt, which rewrites boxes in a way
// that occasionally leaves a malformed moov.
func NeedsRepackage(h *model.TrackHeader, kind model.Kind, usedMp4decrypt bool) bool {
	if h.NeedsRepack {
		return true
	}
	return usedMp4decrypt && (kind == model.KindVideo || kind == model.KindAudio)
}

// Repackage stream-copies a track's artifact into a Matroska container with
// scrubbed metadata, leaving every sample byte-identical.
func (s *Stage) Repackage(ctx context.Context, h *model.TrackHeader, outputPath string) error {
	input := h.Location()
	if input == "" {
		return fmt.Errorf("repackage %s: track has no downloaded artifact", h.ID)
	}

	result, err := s.runner.Run(ctx, "ffmpeg",
		"-y", "-i", input,
		"-c", "copy",
		"-map_metadata", "-1",
		"-map_chapters", "-1",
		"-f", "matroska",
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg repackage: %w", err)
	}
	if result.Outcome != toolrunner.OutcomeSuccess {
		return fmt.Errorf("ffmpeg repackage failed (exit %d): %s", result.ExitCode, trimOutput(result.Stderr))
	}

	h.SetLocation(outputPath)
	return nil
}
