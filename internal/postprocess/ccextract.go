package postprocess

import (
	"context"
	"fmt"
	"os"

	"github.com/reelvault/reelvault/internal/model"
	"github.com/reelvault/reelvault/internal/toolrunner"
)

// NeedsCaptionExtraction reports whether a video track carries embedded
// EIA-608 captions that ccextractor should pull out as a standalone track.
func NeedsCaptionExtraction(v *model.VideoTrack) bool {
	return v.NeedsCCExtractor || v.NeedsCCExtractorFirst
}

// ExtractCaptions runs ccextractor against a video track's artifact and, if
// it produced a non-empty SRT, returns a new TextTrack (cc=true) wrapping
// it. A nil result with a nil error means ccextractor found nothing to
// extract, which is not itself a failure (ccextractor's own exit code 10
// already covers "no captions found" as success per §6's table).
func (s *Stage) ExtractCaptions(ctx context.Context, v *model.VideoTrack, srtPath string) (*model.TextTrack, error) {
	if !NeedsCaptionExtraction(v) {
		return nil, nil
	}
	input := v.Location()
	if input == "" {
		return nil, fmt.Errorf("extract captions %s: track has no downloaded artifact", v.ID)
	}

	result, err := s.runner.Run(ctx, "ccextractor", "-o", srtPath, "-srt", input)
	if err != nil {
		return nil, fmt.Errorf("ccextractor: %w", err)
	}
	if result.Outcome != toolrunner.OutcomeSuccess {
		return nil, fmt.Errorf("ccextractor failed (exit %d): %s", result.ExitCode, trimOutput(result.Stderr))
	}

	info, err := os.Stat(srtPath)
	if err != nil || info.Size() == 0 {
		return nil, nil
	}

	text := &model.TextTrack{
		TrackHeader: model.TrackHeader{
			ID:         v.ID + "-cc",
			Source:     v.Source,
			Codec:      "srt",
			Language:   v.Language,
			Descriptor: v.Descriptor,
		},
		CC: true,
	}
	text.SetLocation(srtPath)
	return text, nil
}
