// Package gate checks that required artifacts exist around phase execution.
// A gate never modifies the project; it only reports what is missing.
package gate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Spec describes one validation gate: either Files, paths (relative to the
// project directory) that must all exist, or Patterns, name fragments of
// which at least one must match some file under the project directory. A
// gate has exactly one kind; Validate rejects specs setting both.
type Spec struct {
	Files    []string `yaml:"files,omitempty"`
	Patterns []string `yaml:"patterns,omitempty"`
}

// maxScanDepth bounds the recursive pattern search. Deeply nested trees are
// almost always build output, not pipeline artifacts.
const maxScanDepth = 5

// skippedDirectories lists directories excluded from the pattern search.
var skippedDirectories = map[string]bool{
	".git":         true,
	".loom":        true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"build":        true,
	"dist":         true,
	"target":       true,
}

// Validate checks the spec for errors.
func (s *Spec) Validate() error {
	if len(s.Files) == 0 && len(s.Patterns) == 0 {
		return fmt.Errorf("gate: one of 'files' or 'patterns' is required")
	}
	if len(s.Files) > 0 && len(s.Patterns) > 0 {
		return fmt.Errorf("gate: 'files' and 'patterns' are mutually exclusive; split them into separate gates")
	}
	for _, f := range s.Files {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("gate: 'files' entries must be non-empty")
		}
		if filepath.IsAbs(f) {
			return fmt.Errorf("gate: file %q must be relative to the project directory", f)
		}
		if strings.Contains(f, "..") {
			return fmt.Errorf("gate: file %q must not contain '..'", f)
		}
	}
	for _, p := range s.Patterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("gate: 'patterns' entries must be non-empty")
		}
	}
	return nil
}

// Check reports whether projectDir satisfies the spec. It returns "" when
// satisfied, otherwise a message naming exactly what is missing.
func Check(projectDir string, spec *Spec) string {
	if spec == nil {
		return ""
	}

	var missing []string
	for _, f := range spec.Files {
		if _, err := os.Stat(filepath.Join(projectDir, f)); err != nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("missing required files: %s", strings.Join(missing, ", "))
	}

	if len(spec.Patterns) > 0 && !anyFileMatches(projectDir, spec.Patterns) {
		return fmt.Sprintf("no file matching %s found under %s", orList(spec.Patterns), projectDir)
	}

	return ""
}

// anyFileMatches scans projectDir up to maxScanDepth for a file whose name
// contains any of the patterns.
func anyFileMatches(projectDir string, patterns []string) bool {
	found := false
	_ = filepath.WalkDir(projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries do not fail the scan
		}
		if found {
			return fs.SkipAll
		}

		rel, relErr := filepath.Rel(projectDir, path)
		if relErr != nil {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))
		if depth > maxScanDepth {
			return fs.SkipDir
		}

		if d.IsDir() && skippedDirectories[d.Name()] {
			return fs.SkipDir
		}

		if !d.IsDir() {
			for _, p := range patterns {
				if strings.Contains(d.Name(), p) {
					found = true
					return fs.SkipAll
				}
			}
		}
		return nil
	})
	return found
}

func orList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = fmt.Sprintf("%q", it)
	}
	return strings.Join(quoted, " or ")
}
