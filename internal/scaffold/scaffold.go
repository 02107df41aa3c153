// Package scaffold creates the .loom/ directory for a project: engine
// settings, an initial topology, and the intake role. Plain Init writes the
// bundled defaults; InitGuided asks the capability for a topology tailored
// to the project and falls back to Init when generation fails.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spetrey/loom/internal/session"
	"github.com/spetrey/loom/internal/topology"
	"github.com/spetrey/loom/internal/ux"
)

const settingsTemplate = `# loom engine settings. Every key is optional; the values below are the
# defaults. LOOM_-prefixed environment variables override this file.

capability:
  command: claude        # agent CLI binary on PATH
  fast_model: sonnet     # model behind tier "fast"
  complex_model: opus    # model behind tier "complex"
  timeout_minutes: 30    # per-invocation bound, 0 disables

logging:
  level: info            # debug, info, warn, error

session:
  cancel_words: [cancel, stop, abort]

facts:
  path: .loom/facts.db
`

const gitignoreTemplate = `runs/
sessions/
facts.db
`

// Init scaffolds .loom/ with the bundled standard topology. It refuses to
// touch a directory that already has one.
func Init(targetDir string) error {
	if err := refuseExisting(targetDir); err != nil {
		return err
	}

	written, err := writeBase(targetDir)
	if err != nil {
		return err
	}
	if err := topology.DeployDefault(topology.BaseDir(targetDir)); err != nil {
		return err
	}
	written = append(written, filepath.Join(".loom", "topologies", topology.DefaultName)+"/")

	printSuccess("bundled defaults", written)
	printPipeline(targetDir, topology.DefaultName)
	printNextSteps(topology.DefaultName)
	return nil
}

func refuseExisting(targetDir string) error {
	if _, err := os.Stat(filepath.Join(targetDir, ".loom")); err == nil {
		return fmt.Errorf(".loom directory already exists in %s", targetDir)
	}
	return nil
}

// writeBase writes the topology-independent files: settings, the intake
// role, and a .gitignore keeping run artifacts out of version control.
func writeBase(targetDir string) ([]string, error) {
	loomDir := filepath.Join(targetDir, ".loom")
	if err := os.MkdirAll(loomDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating .loom: %w", err)
	}

	base := map[string]string{
		"settings.yaml": settingsTemplate,
		"intake.md":     session.DefaultRole,
		".gitignore":    gitignoreTemplate,
	}
	var written []string
	for name, content := range base {
		if err := os.WriteFile(filepath.Join(loomDir, name), []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("writing .loom/%s: %w", name, err)
		}
		written = append(written, filepath.Join(".loom", name))
	}
	sort.Strings(written)
	return written, nil
}

func printSuccess(source string, files []string) {
	fmt.Printf("\n%s%s✓ Initialized .loom/ directory%s %s(%s)%s\n\n", ux.Bold, ux.Green, ux.Reset, ux.Dim, source, ux.Reset)
	fmt.Printf("  Created:\n")
	for _, f := range files {
		fmt.Printf("    %s%s%s\n", ux.Cyan, f, ux.Reset)
	}
}

func printPipeline(targetDir, name string) {
	lt, err := topology.Load(topology.BaseDir(targetDir), name)
	if err != nil {
		return
	}
	fmt.Printf("\n  Pipeline %s%s%s: %s%s%s\n", ux.Bold, name, ux.Reset, ux.Bold, renderPhaseSummary(lt.Topology.Phases), ux.Reset)
}

func renderPhaseSummary(phases []topology.Phase) string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = p.Name
	}
	return strings.Join(names, " → ")
}

func printNextSteps(name string) {
	fmt.Printf("\n  Next steps:\n")
	fmt.Printf("    1. Review %s.loom/topologies/%s/%s and adjust roles and gates\n", ux.Cyan, name, ux.Reset)
	fmt.Printf("    2. Preview with %sloom run %s \"<brief>\" --dry-run%s\n", ux.Cyan, name, ux.Reset)
	fmt.Printf("    3. Read %sloom docs quickstart%s for the full walkthrough\n\n", ux.Cyan, ux.Reset)
}
