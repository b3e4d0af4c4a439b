package pipelineerr

import (
	"errors"
	"testing"
)

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := New(ToolFailed, cause).WithTrack("v1")

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
	var pe *PipelineError
	if !errors.As(err, &pe) {
		t.Fatal("expected errors.As to recover the PipelineError")
	}
	if pe.Kind() != ToolFailed {
		t.Fatalf("expected kind ToolFailed, got %s", pe.Kind())
	}
}

func TestDefaultScopes(t *testing.T) {
	if New(Cancelled, errors.New("x")).Scope() != ScopeProcess {
		t.Error("expected Cancelled to be process-scoped")
	}
	if New(NoMatchingTrack, errors.New("x")).Scope() != ScopeTrack {
		t.Error("expected NoMatchingTrack to be track-scoped")
	}
	if New(ManifestError, errors.New("x")).Scope() != ScopeTitle {
		t.Error("expected ManifestError to be title-scoped")
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(false, false) != 2 {
		t.Error("expected exit code 2 when nothing was attempted")
	}
	if ExitCode(true, true) != 1 {
		t.Error("expected exit code 1 when a title failed")
	}
	if ExitCode(true, false) != 0 {
		t.Error("expected exit code 0 on full success")
	}
}
