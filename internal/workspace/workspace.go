// Package workspace materializes role-instruction files into a working
// directory with reference-counted cleanup. Concurrent runs may share one
// directory; the files are removed only when the last claim is released.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// counts tracks outstanding claims per directory. It is the only cross-run
// shared mutable state in the engine; all mutation happens under mu, and the
// count itself is never exposed.
var (
	mu     sync.Mutex
	counts = make(map[string]int)
)

// Guard is one claim on the materialized role files in a directory.
// Release it on every exit path; releasing twice is a no-op.
type Guard struct {
	dir      string
	released bool
}

// RoleDir returns the directory role files are materialized into for dir.
func RoleDir(dir string) string {
	return filepath.Join(dir, ".loom", "roles")
}

// Materialize writes each role's instruction content under dir and returns
// a claim on the resulting files. roles maps role name to instruction text.
// If another claim already holds the directory, existing files are kept and
// only missing ones are written.
func Materialize(dir string, roles map[string]string) (*Guard, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolving %s: %w", dir, err)
	}
	roleDir := RoleDir(abs)

	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(roleDir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: creating %s: %w", roleDir, err)
	}

	firstClaim := counts[abs] == 0
	for name, content := range roles {
		path := filepath.Join(roleDir, name+".md")
		if !firstClaim {
			if _, err := os.Stat(path); err == nil {
				continue
			}
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			if firstClaim {
				os.RemoveAll(roleDir)
			}
			return nil, fmt.Errorf("workspace: writing role %q: %w", name, err)
		}
	}

	counts[abs]++
	return &Guard{dir: abs}, nil
}

// MaterializeSingle writes one role file and returns a claim. Lightweight
// single-role flows (the intake session) use it instead of loading a full
// topology.
func MaterializeSingle(dir, role, content string) (*Guard, error) {
	return Materialize(dir, map[string]string{role: content})
}

// Release drops the claim. The role files are removed only when the last
// outstanding claim for the directory is released.
func (g *Guard) Release() error {
	mu.Lock()
	defer mu.Unlock()

	if g.released {
		return nil
	}
	g.released = true

	if n := counts[g.dir]; n > 1 {
		counts[g.dir] = n - 1
		return nil
	}
	delete(counts, g.dir)

	if err := os.RemoveAll(RoleDir(g.dir)); err != nil {
		return fmt.Errorf("workspace: removing role files: %w", err)
	}
	return nil
}

// Dir returns the claimed directory.
func (g *Guard) Dir() string {
	return g.dir
}
