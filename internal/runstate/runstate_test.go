package runstate

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestNewRunID(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	id := NewRunID(now)

	if !strings.HasPrefix(id, "20250314-092653-") {
		t.Errorf("id = %q, want timestamp prefix", id)
	}
	if ok, _ := regexp.MatchString(`^\d{8}-\d{6}-[0-9a-f]{8}$`, id); !ok {
		t.Errorf("id = %q does not match expected shape", id)
	}
	if NewRunID(now) == id {
		t.Error("two IDs for the same instant collided")
	}
}

func TestEnsureDir(t *testing.T) {
	runDir := Dir(t.TempDir(), "20250314-092653-abcd1234")
	if err := EnsureDir(runDir); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	for _, sub := range []string{"logs", "prompts"} {
		if _, err := os.Stat(filepath.Join(runDir, sub)); err != nil {
			t.Errorf("missing %s: %v", sub, err)
		}
	}
}

func TestRun_SaveLoad(t *testing.T) {
	runDir := t.TempDir()
	r := &Run{
		RunID:     "r1",
		Topology:  "standard",
		Status:    StatusRunning,
		Completed: []string{"parse-brief", "plan"},
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := r.Save(runDir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := LoadRun(runDir)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if got.RunID != "r1" || got.Topology != "standard" || got.Status != StatusRunning {
		t.Errorf("LoadRun = %+v", got)
	}
	if len(got.Completed) != 2 || got.Completed[1] != "plan" {
		t.Errorf("completed = %v", got.Completed)
	}
}

func TestRun_SaveReplacesAtomically(t *testing.T) {
	runDir := t.TempDir()
	r := &Run{RunID: "r1", Status: StatusRunning}
	if err := r.Save(runDir); err != nil {
		t.Fatal(err)
	}
	r.Status = StatusCompleted
	if err := r.Save(runDir); err != nil {
		t.Fatal(err)
	}

	got, err := LoadRun(runDir)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("status = %q", got.Status)
	}
	if _, err := os.Stat(filepath.Join(runDir, "run.json.tmp")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestListRuns(t *testing.T) {
	root := t.TempDir()

	ids, err := ListRuns(root)
	if err != nil {
		t.Fatalf("ListRuns on empty project: %v", err)
	}
	if ids != nil {
		t.Errorf("ids = %v, want nil", ids)
	}

	for _, id := range []string{"20250101-000000-aaaa0000", "20250301-000000-bbbb1111", "20250201-000000-cccc2222"} {
		if err := EnsureDir(Dir(root, id)); err != nil {
			t.Fatal(err)
		}
	}

	ids, err = ListRuns(root)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	want := []string{"20250301-000000-bbbb1111", "20250201-000000-cccc2222", "20250101-000000-aaaa0000"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want newest first %v", ids, want)
		}
	}
}

func TestPaths(t *testing.T) {
	if got := LogPath("/run", "plan"); got != filepath.Join("/run", "logs", "plan.log") {
		t.Errorf("LogPath = %q", got)
	}
	if got := PromptPath("/run", "plan", 2); got != filepath.Join("/run", "prompts", "plan-2.md") {
		t.Errorf("PromptPath = %q", got)
	}
}
