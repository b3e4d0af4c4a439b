// Package decrypt implements DecryptStage (§4.6): picking mp4decrypt or
// shaka-packager as the decryption tool for a track and invoking it via
// toolrunner, then swapping the track's on-disk location to the decrypted
// artifact.
//
// Grounded on mohaanymo/veld's internal/engine/muxer.go for the
// exec-invocation idiom (stderr capture, temp-file handling) and
// mohaanymo/veld's internal/decryptor package for the KID:KEY parsing
// convention, reused here as the shape of a content key string rather than
// as in-process AES-CTR cryptography — §4.6 drives decryption entirely
// through external tools.
package decrypt

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/reelvault/reelvault/internal/model"
	"github.com/reelvault/reelvault/internal/toolrunner"
)

// amazonMultiLabelFallbackKID is the all-zero kid one provider's
// shaka-packager invocations require as a second --enable_raw_key_decryption
// label alongside the real content key, per §4.6's documented fallback.
const amazonMultiLabelFallbackKID = "00000000000000000000000000000000"

// Stage runs DecryptStage for tracks with a resolved content key.
type Stage struct {
	runner *toolrunner.Runner
}

// New builds a decrypt Stage using runner for external tool invocation.
func New(runner *toolrunner.Runner) *Stage {
	return &Stage{runner: runner}
}

// multiKey reports whether a track requires the packager path: ISM-sourced
// tracks, or tracks whose source is flagged multi-key, per §4.6.
func multiKey(h *model.TrackHeader, sourceIsMultiKey bool) bool {
	return h.Descriptor == model.DescriptorISM || sourceIsMultiKey
}

// Decrypt runs the appropriate external decryptor against the track's
// encrypted artifact at h.Location(), writing the plaintext file at
// outputPath, and swaps the track's location on success.
//
// keys is the set of content keys the track needs: exactly one for the
// mp4decrypt path, one or more for the shaka-packager multi-key path.
func (s *Stage) Decrypt(ctx context.Context, h *model.TrackHeader, keys []model.ContentKey, sourceIsMultiKey bool, outputPath string) error {
	if len(keys) == 0 {
		return fmt.Errorf("decrypt %s: no content keys supplied", h.ID)
	}

	inputPath := h.Location()
	if inputPath == "" {
		return fmt.Errorf("decrypt %s: track has no downloaded artifact", h.ID)
	}

	var err error
	if multiKey(h, sourceIsMultiKey) {
		err = s.decryptWithPackager(ctx, inputPath, outputPath, keys)
	} else {
		err = s.decryptWithMp4decrypt(ctx, inputPath, outputPath, keys[0])
	}
	if err != nil {
		cleanupOnFailure(outputPath)
		return err
	}

	h.Swap(outputPath)
	return nil
}

func (s *Stage) decryptWithMp4decrypt(ctx context.Context, input, output string, key model.ContentKey) error {
	args := []string{
		"--key", fmt.Sprintf("%s:%s", key.KID, key.Key),
		input, output,
	}
	result, err := s.runner.Run(ctx, "mp4decrypt", args...)
	if err != nil {
		return fmt.Errorf("mp4decrypt: %w", err)
	}
	if result.Outcome != toolrunner.OutcomeSuccess {
		return fmt.Errorf("mp4decrypt failed (exit %d): %s", result.ExitCode, trimOutput(result.Stderr))
	}
	return nil
}

// decryptWithPackager builds one label=i:key_id=...:key=... argument per
// content key. When exactly one key is supplied and its kid is not already
// the all-zero kid, a second label pairing the all-zero kid with that same
// key is appended, for providers that expect it at a fixed slot.
func (s *Stage) decryptWithPackager(ctx context.Context, input, output string, keys []model.ContentKey) error {
	labels := make([]string, 0, len(keys)+1)
	for i, k := range keys {
		labels = append(labels, fmt.Sprintf("label=%d:key_id=%s:key=%s", i+1, k.KID, k.Key))
	}
	if len(keys) == 1 && keys[0].KID != amazonMultiLabelFallbackKID {
		labels = append(labels, fmt.Sprintf("label=%d:key_id=%s:key=%s", len(labels)+1, amazonMultiLabelFallbackKID, keys[0].Key))
	}

	args := []string{
		fmt.Sprintf("in=%s,stream=0,out=%s", input, output),
		"--enable_raw_key_decryption",
		"--keys", strings.Join(labels, ","),
	}
	result, err := s.runner.Run(ctx, "shaka-packager", args...)
	if err != nil {
		return fmt.Errorf("shaka-packager: %w", err)
	}
	if result.Outcome != toolrunner.OutcomeSuccess {
		return fmt.Errorf("shaka-packager failed (exit %d): %s", result.ExitCode, trimOutput(result.Stderr))
	}
	return nil
}

func trimOutput(b []byte) string {
	s := strings.TrimSpace(string(b))
	const max = 2000
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

// cleanupOnFailure removes a partially-written output file so a retried
// decrypt doesn't mistake it for a complete artifact.
func cleanupOnFailure(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
