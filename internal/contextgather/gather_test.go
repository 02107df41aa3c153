package contextgather

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// write creates rel under dir, making parent directories as needed.
func write(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func gather(t *testing.T, dir string) *ProjectContext {
	t.Helper()
	pc, err := Gather(dir)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	return pc
}

func TestGather_DirTree(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "src/main.go", "package main")
	write(t, dir, "README.md", "# Test")

	pc := gather(t, dir)

	for _, want := range []string{"src/", "  main.go", "README.md"} {
		if !strings.Contains(pc.DirTree, want) {
			t.Errorf("DirTree missing %q:\n%s", want, pc.DirTree)
		}
	}
}

func TestGather_TreeStopsAtDepth(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a/b/c.txt", "x")

	pc := gather(t, dir)

	if !strings.Contains(pc.DirTree, "  b/") {
		t.Errorf("second level absent from tree:\n%s", pc.DirTree)
	}
	if strings.Contains(pc.DirTree, "c.txt") {
		t.Errorf("third level should be pruned:\n%s", pc.DirTree)
	}
}

func TestGather_SkipsNoiseDirs(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{".git", "node_modules", ".loom", "src"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	pc := gather(t, dir)

	for _, d := range []string{".git", "node_modules", ".loom"} {
		if strings.Contains(pc.DirTree, d) {
			t.Errorf("noise dir %s leaked into tree:\n%s", d, pc.DirTree)
		}
	}
	if !strings.Contains(pc.DirTree, "src/") {
		t.Errorf("src/ absent from tree:\n%s", pc.DirTree)
	}
}

func TestGather_ProbeFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "README.md", "# Hello")
	write(t, dir, "go.mod", "module test")
	write(t, dir, "unrelated.txt", "ignored")

	pc := gather(t, dir)

	want := map[string]string{"README.md": "# Hello", "go.mod": "module test"}
	for name, content := range want {
		if pc.Files[name] != content {
			t.Errorf("Files[%q] = %q, want %q", name, pc.Files[name], content)
		}
	}
	if _, ok := pc.Files["unrelated.txt"]; ok {
		t.Error("unrelated.txt is not a probe target and should be absent")
	}
}

func TestGather_MissingFilesOmitted(t *testing.T) {
	pc := gather(t, t.TempDir())
	if len(pc.Files) != 0 {
		t.Errorf("empty project yielded %d probed files: %v", len(pc.Files), sortedPaths(pc.Files))
	}
}

func TestGather_WorkflowFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, ".github/workflows/ci.yml", "name: CI")
	write(t, dir, ".github/workflows/release.yaml", "name: Release")
	write(t, dir, ".github/workflows/notes.txt", "not a workflow")

	pc := gather(t, dir)

	if got := pc.Files[filepath.Join(".github", "workflows", "ci.yml")]; got != "name: CI" {
		t.Errorf("ci.yml content = %q", got)
	}
	if got := pc.Files[filepath.Join(".github", "workflows", "release.yaml")]; got != "name: Release" {
		t.Errorf("release.yaml content = %q", got)
	}
	if _, ok := pc.Files[filepath.Join(".github", "workflows", "notes.txt")]; ok {
		t.Error("non-YAML workflow entries should be skipped")
	}
}

func TestGather_LargeFileTruncated(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "README.md", strings.Repeat("x", maxFileSize+100))

	pc := gather(t, dir)

	content := pc.Files["README.md"]
	if !strings.HasSuffix(content, "... (truncated)") {
		t.Error("oversized file kept without truncation marker")
	}
	if len(content) > maxFileSize+50 {
		t.Errorf("truncated content still %d bytes", len(content))
	}
}

func TestGather_NonGitDir(t *testing.T) {
	pc := gather(t, t.TempDir())
	if pc.GitLog != "" {
		t.Errorf("GitLog outside a git checkout = %q, want empty", pc.GitLog)
	}
}

func TestRender_IncludesSections(t *testing.T) {
	pc := &ProjectContext{
		DirTree: "src/\n  main.go\nREADME.md\n",
		Files:   map[string]string{"README.md": "# Hello"},
		GitLog:  "abc123 Initial commit",
	}

	rendered := pc.Render()

	for _, want := range []string{
		"## Directory Layout",
		"## Notable Files",
		"## Recent Commits",
		"### README.md",
		"# Hello",
		"abc123 Initial commit",
	} {
		if !strings.Contains(rendered, want) {
			t.Errorf("rendered output missing %q", want)
		}
	}
}

func TestRender_OmitsEmptySections(t *testing.T) {
	pc := &ProjectContext{DirTree: "src/\n", Files: map[string]string{}}

	rendered := pc.Render()

	if strings.Contains(rendered, "## Notable Files") {
		t.Error("files section rendered despite no probed files")
	}
	if strings.Contains(rendered, "## Recent Commits") {
		t.Error("commits section rendered despite empty git log")
	}
}

func TestRender_FilesSortedByPath(t *testing.T) {
	pc := &ProjectContext{
		DirTree: "x\n",
		Files:   map[string]string{"b.md": "2", "a.md": "1"},
	}

	rendered := pc.Render()

	if strings.Index(rendered, "### a.md") > strings.Index(rendered, "### b.md") {
		t.Error("file sections out of path order")
	}
}
