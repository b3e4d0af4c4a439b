package postprocess

import (
	"context"
	"fmt"

	"github.com/reelvault/reelvault/internal/model"
	"github.com/reelvault/reelvault/internal/toolrunner"
)

// NeedsAtmosFix reports whether an audio track requires the ISM Atmos
// remux: EAC-3-JOC streams pulled from Smooth Streaming are missing an
// init segment ffmpeg needs to recognize the JOC extension correctly.
func NeedsAtmosFix(a *model.AudioTrack) bool {
	return a.Descriptor == model.DescriptorISM && a.Atmos
}

// FixISMAtmos re-muxes an Atmos-flagged ISM audio track with an ffmpeg
// stream copy into a standalone .eac3 container, which repairs the missing
// init without touching the underlying EAC-3-JOC bitstream.
func (s *Stage) FixISMAtmos(ctx context.Context, a *model.AudioTrack, outputPath string) error {
	if !NeedsAtmosFix(a) {
		return nil
	}
	input := a.Location()
	if input == "" {
		return fmt.Errorf("fix ism atmos %s: track has no downloaded artifact", a.ID)
	}

	result, err := s.runner.Run(ctx, "ffmpeg",
		"-y", "-i", input,
		"-c", "copy",
		"-f", "eac3",
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg atmos fix: %w", err)
	}
	if result.Outcome != toolrunner.OutcomeSuccess {
		return fmt.Errorf("ffmpeg atmos fix failed (exit %d): %s", result.ExitCode, trimOutput(result.Stderr))
	}

	a.SetLocation(outputPath)
	return nil
}
