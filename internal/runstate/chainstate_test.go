package runstate

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecord_LoadChainState(t *testing.T) {
	runDir := t.TempDir()

	Record(zap.NewNop(), runDir, ChainState{
		RunID:           "r1",
		Topology:        "standard",
		CompletedPhases: []string{"parse-brief", "plan"},
		FailedPhase:     "implement",
		FailureReason:   "missing required files: PLAN.md",
	})

	cs, err := LoadChainState(runDir)
	if err != nil {
		t.Fatalf("LoadChainState: %v", err)
	}
	if cs.FailedPhase != "implement" {
		t.Errorf("failed phase = %q", cs.FailedPhase)
	}
	if cs.FailureReason != "missing required files: PLAN.md" {
		t.Errorf("reason = %q", cs.FailureReason)
	}
	if len(cs.CompletedPhases) != 2 {
		t.Errorf("completed = %v", cs.CompletedPhases)
	}
	if cs.RecordedAt.IsZero() {
		t.Error("recorded_at not stamped")
	}
}

func TestRecord_WriteFailureIsLoggedNotFatal(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(core)

	// A run dir that does not exist makes the write fail.
	missing := filepath.Join(t.TempDir(), "no", "such", "dir")
	Record(log, missing, ChainState{RunID: "r1", FailedPhase: "plan"})

	if logs.Len() == 0 {
		t.Fatal("write failure was not logged")
	}
	entry := logs.All()[0]
	if entry.Message != "could not record chain state" {
		t.Errorf("message = %q", entry.Message)
	}
}
