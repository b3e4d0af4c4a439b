// Package hdrhybrid implements the HDR-Hybrid compositor (§4.8): when a
// title is selected with both an HDR10 and a Dolby Vision rendition, the two
// elementary HEVC streams are combined into one hybrid HEVC carrying both
// grades, and the DV-only track is discarded.
//
// Grounded on mohaanymo/veld's internal/engine/muxer.go for the external
// exec idiom; dovi_tool itself has no precedent in the teacher or wider
// pack, so its two subcommands are wired through internal/toolrunner using
// the same exit-code-is-fatal-unless-zero default as every other named
// tool in §6's table.
package hdrhybrid

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/reelvault/reelvault/internal/model"
	"github.com/reelvault/reelvault/internal/toolrunner"
)

// minHybridSize is the §8 invariant: an output file under this size after
// the wait window has elapsed is treated as a failed composite, not a slow
// one.
const minHybridSize = 10 * 1024 // 10 KiB

// maxWait is how long Compose waits for the hybrid file to reach
// minHybridSize before giving up, per §4.8 step 5.
const maxWait = 10 * time.Second

// Compositor runs the extract-RPU/inject-RPU pipeline.
type Compositor struct {
	runner *toolrunner.Runner
}

// New builds a Compositor using runner for ffmpeg/dovi_tool invocation.
func New(runner *toolrunner.Runner) *Compositor {
	return &Compositor{runner: runner}
}

// Compose takes a title's HDR10 and DV video tracks, produces a hybrid HEVC
// carrying both grades at hdr10.Location(), and clears dv's location since
// it is discarded. dv must be model.RangeDV and hdr10 must be
// model.RangeHDR10, per the track-set invariant that selection keeps
// exactly these two ranges when DV+HDR was requested.
func (c *Compositor) Compose(ctx context.Context, hdr10, dv *model.VideoTrack, workDir string) error {
	if hdr10.Range != model.RangeHDR10 {
		return fmt.Errorf("hdr-hybrid: expected hdr10 track, got range %s", hdr10.Range)
	}
	if dv.Range != model.RangeDV {
		return fmt.Errorf("hdr-hybrid: expected dv track, got range %s", dv.Range)
	}

	hdr10ES, err := c.extractHEVC(ctx, hdr10, filepath.Join(workDir, hdr10.ID+".hevc"))
	if err != nil {
		return fmt.Errorf("hdr-hybrid: extract hdr10 elementary stream: %w", err)
	}
	dvES, err := c.extractHEVC(ctx, dv, filepath.Join(workDir, dv.ID+".hevc"))
	if err != nil {
		return fmt.Errorf("hdr-hybrid: extract dv elementary stream: %w", err)
	}

	rpuPath := filepath.Join(workDir, "RPU.bin")
	if err := c.extractRPU(ctx, dvES, rpuPath); err != nil {
		return fmt.Errorf("hdr-hybrid: extract rpu: %w", err)
	}

	hybridPath := filepath.Join(workDir, hdr10.ID+"-hybrid.hevc")
	if err := c.injectRPU(ctx, hdr10ES, rpuPath, hybridPath); err != nil {
		return fmt.Errorf("hdr-hybrid: inject rpu: %w", err)
	}

	if err := waitForFile(hybridPath, minHybridSize, maxWait); err != nil {
		return fmt.Errorf("hdr-hybrid: %w", err)
	}

	hdr10.SetLocation(hybridPath)
	dv.Delete()
	return nil
}

// extractHEVC demuxes a track's artifact into a raw Annex B HEVC elementary
// stream via ffmpeg, skipping the copy if the artifact is already bare HEVC.
func (c *Compositor) extractHEVC(ctx context.Context, v *model.VideoTrack, outputPath string) (string, error) {
	input := v.Location()
	if input == "" {
		return "", fmt.Errorf("track %s has no downloaded artifact", v.ID)
	}
	if filepath.Ext(input) == ".hevc" || filepath.Ext(input) == ".h265" {
		return input, nil
	}

	result, err := c.runner.Run(ctx, "ffmpeg",
		"-y", "-i", input,
		"-c:v", "copy",
		"-bsf:v", "hevc_mp4toannexb",
		"-f", "hevc",
		outputPath,
	)
	if err != nil {
		return "", err
	}
	if result.Outcome != toolrunner.OutcomeSuccess {
		return "", fmt.Errorf("ffmpeg extract (exit %d): %s", result.ExitCode, trimOutput(result.Stderr))
	}
	return outputPath, nil
}

func (c *Compositor) extractRPU(ctx context.Context, dvElementaryStream, rpuPath string) error {
	result, err := c.runner.Run(ctx, "dovi_tool", "extract-rpu", dvElementaryStream, "-o", rpuPath)
	if err != nil {
		return err
	}
	if result.Outcome != toolrunner.OutcomeSuccess {
		return fmt.Errorf("dovi_tool extract-rpu (exit %d): %s", result.ExitCode, trimOutput(result.Stderr))
	}
	return nil
}

func (c *Compositor) injectRPU(ctx context.Context, hdr10ElementaryStream, rpuPath, outputPath string) error {
	result, err := c.runner.Run(ctx, "dovi_tool",
		"inject-rpu", "-i", hdr10ElementaryStream, "--rpu-in", rpuPath, "-o", outputPath,
	)
	if err != nil {
		return err
	}
	if result.Outcome != toolrunner.OutcomeSuccess {
		return fmt.Errorf("dovi_tool inject-rpu (exit %d): %s", result.ExitCode, trimOutput(result.Stderr))
	}
	return nil
}

// waitForFile polls until path exists with at least minSize bytes, or
// returns an error once budget has elapsed without that condition holding.
func waitForFile(path string, minSize int64, budget time.Duration) error {
	deadline := time.Now().Add(budget)
	const pollInterval = 200 * time.Millisecond

	for {
		if info, err := os.Stat(path); err == nil && info.Size() >= minSize {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("hybrid output %s did not reach %d bytes within %s", path, minSize, budget)
		}
		time.Sleep(pollInterval)
	}
}
