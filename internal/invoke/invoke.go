// Package invoke delegates work to the external text-generation capability.
// The engine treats the capability as a fallible, possibly slow black box;
// its correctness never depends on what the capability decides.
package invoke

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Tier selects how capable a model a phase needs. Topologies name tiers,
// never concrete models; settings map tiers to model identifiers.
type Tier string

const (
	TierFast    Tier = "fast"
	TierComplex Tier = "complex"
)

// Request describes one capability invocation.
type Request struct {
	// Role names the role being invoked, for logs and errors.
	Role string
	// Prompt is the opaque payload handed to the capability.
	Prompt string
	Tier   Tier
	// MaxTurns bounds the capability's internal agent loop. 0 uses the
	// capability default.
	MaxTurns int
	// WorkDir is the child process working directory.
	WorkDir string
	// LogPath, when set, receives the appended combined output.
	LogPath string
	// ExtraEnv entries (KEY=value) are added to the child environment.
	ExtraEnv []string
}

// Invoker is the capability delegate. Tests substitute a fake returning
// canned output to exercise every controller branch without real generation.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// ExitError reports a capability process that exited non-zero.
type ExitError struct {
	Role   string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("invoke: role %q exited with code %d", e.Role, e.Code)
}

// outputTailLines bounds how much captured output an ExitError carries.
const outputTailLines = 20

func tail(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > outputTailLines {
		lines = lines[len(lines)-outputTailLines:]
	}
	return strings.Join(lines, "\n")
}

// ExpandVars substitutes $NAME and ${NAME} references in template. Entries
// in vars win; names not present there resolve from the process environment,
// so role files may reference both run context ($BRIEF, $PROJECT_DIR,
// $FAILURE_REASON) and ambient variables like $HOME.
func ExpandVars(template string, vars map[string]string) string {
	lookup := func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		return os.Getenv(name)
	}
	return os.Expand(template, lookup)
}
