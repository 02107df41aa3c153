package gate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCheck_NilSpec(t *testing.T) {
	if msg := Check(t.TempDir(), nil); msg != "" {
		t.Errorf("Check(nil) = %q, want pass", msg)
	}
}

func TestCheck_FilesPresent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "PLAN.md"))
	writeFile(t, filepath.Join(dir, "notes", "design.md"))

	spec := &Spec{Files: []string{"PLAN.md", filepath.Join("notes", "design.md")}}
	if msg := Check(dir, spec); msg != "" {
		t.Errorf("Check = %q, want pass", msg)
	}
}

func TestCheck_FilesMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "PLAN.md"))

	spec := &Spec{Files: []string{"PLAN.md", "SUMMARY.md"}}
	msg := Check(dir, spec)
	if msg == "" {
		t.Fatal("Check passed with a missing file")
	}
	if !strings.Contains(msg, "SUMMARY.md") {
		t.Errorf("message %q does not name the missing file", msg)
	}
	if strings.Contains(msg, "PLAN.md") {
		t.Errorf("message %q names a file that exists", msg)
	}
}

func TestCheck_PatternFound(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "widget_test.go"))

	spec := &Spec{Patterns: []string{"_test"}}
	if msg := Check(dir, spec); msg != "" {
		t.Errorf("Check = %q, want pass", msg)
	}
}

func TestCheck_PatternMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"))

	spec := &Spec{Patterns: []string{"_test", "spec"}}
	msg := Check(dir, spec)
	if msg == "" {
		t.Fatal("Check passed with no matching file")
	}
	if !strings.Contains(msg, "_test") || !strings.Contains(msg, "spec") {
		t.Errorf("message %q does not name the patterns", msg)
	}
}

func TestCheck_PatternDepthBound(t *testing.T) {
	dir := t.TempDir()
	deep := filepath.Join(dir, "a", "b", "c", "d", "e", "f")
	writeFile(t, filepath.Join(deep, "report.md"))

	spec := &Spec{Patterns: []string{"report"}}
	if msg := Check(dir, spec); msg == "" {
		t.Error("Check found a file beyond the depth bound")
	}

	writeFile(t, filepath.Join(dir, "a", "report.md"))
	if msg := Check(dir, spec); msg != "" {
		t.Errorf("Check = %q, want pass for shallow match", msg)
	}
}

func TestCheck_PatternSkipsKnownDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "node_modules", "report.md"))

	spec := &Spec{Patterns: []string{"report"}}
	if msg := Check(dir, spec); msg == "" {
		t.Error("Check matched inside a skipped directory")
	}
}

// Check itself tolerates a spec carrying both kinds (it requires both to be
// satisfied); Validate rejects such specs before a topology ever runs.
func TestCheck_FilesAndPatternsBothChecked(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "PLAN.md"))

	spec := &Spec{Files: []string{"PLAN.md"}, Patterns: []string{"summary"}}
	if msg := Check(dir, spec); msg == "" {
		t.Error("Check passed although the pattern requirement is unmet")
	}
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"files only", Spec{Files: []string{"a.md"}}, false},
		{"patterns only", Spec{Patterns: []string{"test"}}, false},
		{"empty", Spec{}, true},
		{"both kinds", Spec{Files: []string{"a.md"}, Patterns: []string{"test"}}, true},
		{"blank file", Spec{Files: []string{" "}}, true},
		{"absolute file", Spec{Files: []string{"/etc/passwd"}}, true},
		{"traversal", Spec{Files: []string{"../secret"}}, true},
		{"blank pattern", Spec{Patterns: []string{""}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
