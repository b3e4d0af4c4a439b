package toolrunner

import (
	"context"
	"testing"
)

func TestRunMissingToolReturnsErrToolMissing(t *testing.T) {
	r := New("")
	_, err := r.Run(context.Background(), "definitely-not-a-real-binary-xyz")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if _, ok := err.(*ErrToolMissing); !ok {
		t.Fatalf("expected *ErrToolMissing, got %T: %v", err, err)
	}
}

func TestRunSuccessClassifiesZeroExit(t *testing.T) {
	r := New("")
	result, err := r.Run(context.Background(), "true")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("expected OutcomeSuccess, got %v", result.Outcome)
	}
}

func TestRunFatalClassifiesNonZeroExitForDefaultTool(t *testing.T) {
	r := New("")
	result, err := r.Run(context.Background(), "false")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeFatal {
		t.Fatalf("expected OutcomeFatal for default classifier on nonzero exit, got %v", result.Outcome)
	}
}

func TestMkvmergeClassifierRecoverableAtOne(t *testing.T) {
	c := classifiers["mkvmerge"]
	if c(0) != OutcomeSuccess {
		t.Error("expected mkvmerge exit 0 to be success")
	}
	if c(1) != OutcomeRecoverable {
		t.Error("expected mkvmerge exit 1 to be recoverable")
	}
	if c(2) != OutcomeFatal {
		t.Error("expected mkvmerge exit 2 to be fatal")
	}
}

func TestCcextractorClassifierSuccessAtTen(t *testing.T) {
	c := classifiers["ccextractor"]
	if c(0) != OutcomeSuccess {
		t.Error("expected ccextractor exit 0 to be success")
	}
	if c(10) != OutcomeSuccess {
		t.Error("expected ccextractor exit 10 to be success")
	}
	if c(1) != OutcomeFatal {
		t.Error("expected ccextractor exit 1 to be fatal")
	}
}

func TestResolveCachesPath(t *testing.T) {
	r := New("")
	path1, err := r.Resolve("true")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path2, err := r.Resolve("true")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path1 != path2 {
		t.Fatalf("expected cached path to match: %q != %q", path1, path2)
	}
}
