// Package runstate owns the on-disk layout of one pipeline run and the
// diagnostic records written into it. Everything here is scoped to a single
// run directory; nothing is shared across runs.
package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// NewRunID returns a unique, time-sortable run identifier.
func NewRunID(now time.Time) string {
	return now.UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

// BaseDir returns the directory all runs live under for a project.
func BaseDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".loom", "runs")
}

// Dir returns the run directory for a run ID.
func Dir(projectRoot, runID string) string {
	return filepath.Join(BaseDir(projectRoot), runID)
}

// EnsureDir creates the run directory structure.
func EnsureDir(runDir string) error {
	dirs := []string{
		runDir,
		filepath.Join(runDir, "logs"),
		filepath.Join(runDir, "prompts"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating run dir %s: %w", d, err)
		}
	}
	return nil
}

// LogPath returns the log file for a phase. Corrective attempts append to
// the same file.
func LogPath(runDir, phase string) string {
	return filepath.Join(runDir, "logs", phase+".log")
}

// PromptPath returns the path a rendered prompt is saved to for inspection.
// attempt starts at 1 and distinguishes corrective re-invocations.
func PromptPath(runDir, phase string, attempt int) string {
	return filepath.Join(runDir, "prompts", fmt.Sprintf("%s-%d.md", phase, attempt))
}

// Run is the per-run status record, updated as phases complete.
type Run struct {
	RunID      string    `json:"run_id"`
	Topology   string    `json:"topology"`
	Status     string    `json:"status"`
	Brief      string    `json:"brief,omitempty"`
	ProjectDir string    `json:"project_dir,omitempty"`
	Completed  []string  `json:"completed_phases"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at,omitempty"`
}

func runPath(runDir string) string {
	return filepath.Join(runDir, "run.json")
}

// LoadRun reads the status record from a run directory.
func LoadRun(runDir string) (*Run, error) {
	data, err := os.ReadFile(runPath(runDir))
	if err != nil {
		return nil, err
	}
	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", runPath(runDir), err)
	}
	return &r, nil
}

// Save writes the status record atomically.
func (r *Run) Save(runDir string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(runPath(runDir), data, 0o644)
}

// ListRuns returns all run IDs under projectRoot, newest first. Run IDs are
// time-prefixed, so reverse-lexical order is reverse-chronological.
func ListRuns(projectRoot string) ([]string, error) {
	entries, err := os.ReadDir(BaseDir(projectRoot))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}
