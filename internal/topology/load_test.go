package topology

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleDocument = `name: sample
description: two-phase pipeline

phases:
  - name: plan
    kind: standard
    role: plan
    post:
      files:
        - PLAN.md

  - name: check
    kind: corrective-loop
    role: checker
    retry:
      max: 3
      fix-role: fix
      fatal: true
`

// writeTopology lays out a topology directory under baseDir.
func writeTopology(t *testing.T, baseDir, name, doc string, roles []string) {
	t.Helper()
	dir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DocumentName), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, r := range roles {
		if err := os.WriteFile(filepath.Join(dir, r+".md"), []byte("instructions for "+r), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLoad(t *testing.T) {
	base := t.TempDir()
	writeTopology(t, base, "sample", sampleDocument, []string{"plan", "checker", "fix"})

	lt, err := Load(base, "sample")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lt.Topology.Name != "sample" {
		t.Errorf("name = %q", lt.Topology.Name)
	}
	if len(lt.Topology.Phases) != 2 {
		t.Fatalf("got %d phases", len(lt.Topology.Phases))
	}
	if got := lt.Roles["checker"]; got != "instructions for checker" {
		t.Errorf("checker content = %q", got)
	}
	if len(lt.Roles) != 3 {
		t.Errorf("loaded %d roles, want 3", len(lt.Roles))
	}
	if lt.Dir != filepath.Join(base, "sample") {
		t.Errorf("dir = %q", lt.Dir)
	}
}

func TestLoad_InvalidName(t *testing.T) {
	if _, err := Load(t.TempDir(), "../escape"); err == nil || !strings.Contains(err.Error(), "'..'") {
		t.Fatalf("got %v", err)
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(t.TempDir(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Errorf("error %q does not name the topology", err)
	}
}

func TestLoad_DeploysDefault(t *testing.T) {
	base := t.TempDir()

	lt, err := Load(base, DefaultName)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lt.Topology.Name != DefaultName {
		t.Errorf("name = %q", lt.Topology.Name)
	}
	for _, role := range []string{"parse-brief", "plan", "implement", "quality-check", "fix", "final-review", "summarize"} {
		if _, ok := lt.Roles[role]; !ok {
			t.Errorf("default topology missing role %q", role)
		}
	}
	if _, err := os.Stat(filepath.Join(base, DefaultName, DocumentName)); err != nil {
		t.Errorf("default document not deployed: %v", err)
	}
}

func TestDeployDefault_NeverOverwrites(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, DefaultName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	custom := "my customized plan role"
	if err := os.WriteFile(filepath.Join(dir, "plan.md"), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := DeployDefault(base); err != nil {
		t.Fatalf("DeployDefault: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "plan.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != custom {
		t.Error("DeployDefault overwrote an existing file")
	}
	if _, err := os.Stat(filepath.Join(dir, DocumentName)); err != nil {
		t.Errorf("DeployDefault did not fill in missing files: %v", err)
	}
}

func TestLoad_MissingRoleFile(t *testing.T) {
	base := t.TempDir()
	writeTopology(t, base, "sample", sampleDocument, []string{"plan", "checker"}) // fix missing

	_, err := Load(base, "sample")
	if err == nil {
		t.Fatal("expected error for missing role file")
	}
	if !strings.Contains(err.Error(), `role "fix"`) || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error %q does not name the missing role", err)
	}
}

func TestLoad_MalformedDocument(t *testing.T) {
	base := t.TempDir()
	writeTopology(t, base, "bad", "phases: [\n", nil)

	if _, err := Load(base, "bad"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	doc := "name: x\nphasez:\n  - name: a\n"
	if _, err := Parse([]byte(doc)); err == nil || !strings.Contains(err.Error(), "phasez") {
		t.Fatalf("got %v", err)
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	if _, err := Parse(nil); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("got %v", err)
	}
}

func TestParse_SerializeRoundTrip(t *testing.T) {
	first, err := Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	data, err := Serialize(first)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	second, err := Parse(data)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("round trip changed the topology:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestParse_DefaultDocument(t *testing.T) {
	top, err := Parse([]byte(defaultDocument))
	if err != nil {
		t.Fatalf("bundled default does not parse: %v", err)
	}
	if top.Name != DefaultName {
		t.Errorf("default name = %q", top.Name)
	}
	if got := len(top.Phases); got != 6 {
		t.Errorf("default has %d phases, want 6", got)
	}
	idx := top.PhaseIndex("final-review")
	if idx < 0 {
		t.Fatal("default missing final-review phase")
	}
	fr := top.Phases[idx]
	if fr.Retry == nil || fr.Retry.Max != 2 || !fr.Retry.Fatal {
		t.Errorf("final-review retry = %+v, want max=2 fatal", fr.Retry)
	}
	if qc := top.Phases[top.PhaseIndex("quality-check")]; qc.Retry == nil || qc.Retry.Max != 3 || qc.Retry.Fatal {
		t.Errorf("quality-check retry = %+v, want max=3 non-fatal", qc.Retry)
	}
}
