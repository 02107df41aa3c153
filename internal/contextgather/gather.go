// Package contextgather collects a compact description of a project
// directory for use in generation prompts. It never writes anything.
package contextgather

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// maxFileSize caps how much of any single probed file is kept.
const maxFileSize = 32 * 1024

// treeDepth is how many directory levels the listing descends.
const treeDepth = 2

// skipDirs are excluded from the tree listing. The engine's own dot
// directory is excluded so re-running guided init never feeds loom its
// previous output.
var skipDirs = map[string]bool{
	".git":         true,
	".loom":        true,
	".idea":        true,
	".venv":        true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"target":       true,
	"__pycache__":  true,
}

// probeFiles are read verbatim when present at the project root. They are
// the files that tell an agent what kind of project this is and how it is
// built.
var probeFiles = []string{
	// project identity
	"README.md", "readme.md", "README",
	// build systems and manifests
	"Makefile", "makefile",
	"go.mod",
	"package.json",
	"pyproject.toml", "setup.py", "requirements.txt",
	"Cargo.toml",
	"pom.xml",
	// agent instruction files
	"CLAUDE.md", "AGENTS.md", ".cursorrules",
}

// probeDirs are directories whose YAML entries are read, covering CI
// workflow definitions.
var probeDirs = []string{
	filepath.Join(".github", "workflows"),
}

// ProjectContext holds everything gathered about a project.
type ProjectContext struct {
	DirTree string            // directory listing, treeDepth levels deep
	Files   map[string]string // relative path -> contents
	GitLog  string            // recent commit subjects, empty outside git
}

// Gather collects project context from projectRoot.
func Gather(projectRoot string) (*ProjectContext, error) {
	var tree strings.Builder
	listTree(&tree, projectRoot, 0)

	return &ProjectContext{
		DirTree: tree.String(),
		Files:   probe(projectRoot),
		GitLog:  gitLog(projectRoot),
	}, nil
}

// Render formats the gathered context as markdown prompt sections. Empty
// sections are omitted.
func (pc *ProjectContext) Render() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "## Directory Layout\n\n```\n%s```\n", pc.DirTree)

	if len(pc.Files) > 0 {
		buf.WriteString("\n## Notable Files\n")
		for _, p := range sortedPaths(pc.Files) {
			fmt.Fprintf(&buf, "\n### %s\n\n```\n%s\n```\n", p, pc.Files[p])
		}
	}

	if pc.GitLog != "" {
		fmt.Fprintf(&buf, "\n## Recent Commits\n\n```\n%s\n```\n", pc.GitLog)
	}

	return buf.String()
}

func sortedPaths(files map[string]string) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func listTree(buf *strings.Builder, dir string, depth int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if depth == 0 {
			buf.WriteString("(unable to read directory)\n")
		}
		return
	}
	indent := strings.Repeat("  ", depth)
	for _, e := range entries {
		if skipDirs[e.Name()] {
			continue
		}
		if e.IsDir() {
			buf.WriteString(indent + e.Name() + "/\n")
			if depth+1 < treeDepth {
				listTree(buf, filepath.Join(dir, e.Name()), depth+1)
			}
		} else {
			buf.WriteString(indent + e.Name() + "\n")
		}
	}
}

// probe reads every probeFiles entry and every YAML file under probeDirs,
// keyed by path relative to root. Missing or unreadable entries are skipped.
func probe(root string) map[string]string {
	files := make(map[string]string)

	for _, name := range probeFiles {
		if data, err := os.ReadFile(filepath.Join(root, name)); err == nil {
			files[name] = clip(string(data))
		}
	}

	for _, dir := range probeDirs {
		entries, err := os.ReadDir(filepath.Join(root, dir))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !isYAML(e.Name()) {
				continue
			}
			rel := filepath.Join(dir, e.Name())
			if data, err := os.ReadFile(filepath.Join(root, rel)); err == nil {
				files[rel] = clip(string(data))
			}
		}
	}
	return files
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yml" || ext == ".yaml"
}

func clip(content string) string {
	if len(content) > maxFileSize {
		return content[:maxFileSize] + "\n... (truncated)"
	}
	return content
}

// gitLog returns recent commit subjects, or "" when root is not a git
// checkout or git is absent.
func gitLog(root string) string {
	cmd := exec.Command("git", "log", "--oneline", "-10")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
