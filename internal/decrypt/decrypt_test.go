package decrypt

import (
	"testing"

	"github.com/reelvault/reelvault/internal/model"
)

func TestMultiKeyISMDescriptor(t *testing.T) {
	h := &model.TrackHeader{Descriptor: model.DescriptorISM}
	if !multiKey(h, false) {
		t.Error("expected ISM-sourced track to require the packager path")
	}
}

func TestMultiKeySourceFlagged(t *testing.T) {
	h := &model.TrackHeader{Descriptor: model.DescriptorMPD}
	if !multiKey(h, true) {
		t.Error("expected multi-key-flagged source to require the packager path")
	}
}

func TestMultiKeyFalseForPlainSingleKeyDASH(t *testing.T) {
	h := &model.TrackHeader{Descriptor: model.DescriptorMPD}
	if multiKey(h, false) {
		t.Error("expected plain single-key DASH track to use the mp4decrypt path")
	}
}

func TestTrimOutputLimitsLength(t *testing.T) {
	big := make([]byte, 5000)
	for i := range big {
		big[i] = 'x'
	}
	got := trimOutput(big)
	if len(got) != 2000 {
		t.Fatalf("expected trimmed output capped at 2000 bytes, got %d", len(got))
	}
}
