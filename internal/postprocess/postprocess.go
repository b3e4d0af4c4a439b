// Package postprocess implements PostProcessStage (§4.7): four independent,
// order-matters fixups applied to downloaded-and-decrypted tracks before
// muxing — ISM Atmos remux, stream-copy repackage into Matroska, EIA-608
// caption extraction via ccextractor, and SDH stripping.
//
// Grounded on mohaanymo/veld's internal/engine/muxer.go for the
// exec.CommandContext/ffmpeg invocation idiom, generalized here through
// internal/toolrunner rather than a second hand-rolled exec wrapper.
package postprocess

import "github.com/reelvault/reelvault/internal/toolrunner"

// Stage runs PostProcessStage's fixups for one title's tracks.
type Stage struct {
	runner *toolrunner.Runner
}

// New builds a postprocess Stage using runner for external tool invocation.
func New(runner *toolrunner.Runner) *Stage {
	return &Stage{runner: runner}
}
