// Package topology loads and validates pipeline definitions. A topology is a
// named, ordered list of phases, each bound to a role whose instruction file
// lives next to the topology document.
package topology

import (
	"sort"

	"github.com/spetrey/loom/internal/gate"
)

// Kind selects how the orchestrator executes a phase. The set is closed;
// the dispatch site matches exhaustively.
type Kind string

const (
	// KindStandard invokes the role once; any error aborts the run.
	KindStandard Kind = "standard"
	// KindParseBrief invokes the role and parses a structured brief from
	// its output, establishing the project directory.
	KindParseBrief Kind = "parse-brief"
	// KindCorrectiveLoop runs a bounded verify, fix, re-verify cycle.
	KindCorrectiveLoop Kind = "corrective-loop"
	// KindParseSummary invokes the role and extracts the final summary.
	KindParseSummary Kind = "parse-summary"
)

// Retry bounds a corrective-loop phase. Max counts verify attempts; the fix
// role runs between failed attempts, so it runs at most Max-1 times.
type Retry struct {
	Max     int    `yaml:"max"`
	FixRole string `yaml:"fix-role"`
	// Fatal marks exhaustion as terminal for the whole run rather than a
	// tolerated phase failure.
	Fatal bool `yaml:"fatal"`
}

// Phase is one step of a pipeline.
type Phase struct {
	Name        string     `yaml:"name"`
	Kind        Kind       `yaml:"kind"`
	Description string     `yaml:"description,omitempty"`
	Role        string     `yaml:"role"`
	Tier        string     `yaml:"tier"`
	MaxTurns    int        `yaml:"max-turns"`
	Retry       *Retry     `yaml:"retry,omitempty"`
	Pre         *gate.Spec `yaml:"pre,omitempty"`
	Post        *gate.Spec `yaml:"post,omitempty"`
}

// Topology is a pipeline definition. Immutable once loaded.
type Topology struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Phases      []Phase `yaml:"phases"`
}

// LoadedTopology pairs a validated Topology with the instruction text of
// every role it references. Read-only after construction.
type LoadedTopology struct {
	Topology *Topology
	// Roles maps role name to instruction file content.
	Roles map[string]string
	// Dir is the directory the topology was loaded from.
	Dir string
}

// PhaseIndex returns the index of the named phase, or -1 if not found.
func (t *Topology) PhaseIndex(name string) int {
	for i, p := range t.Phases {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// RoleSet returns the sorted set of distinct role references across all
// phases, including corrective fix roles.
func (t *Topology) RoleSet() []string {
	set := make(map[string]bool)
	for _, p := range t.Phases {
		if p.Role != "" {
			set[p.Role] = true
		}
		if p.Retry != nil && p.Retry.FixRole != "" {
			set[p.Retry.FixRole] = true
		}
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
