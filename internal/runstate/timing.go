package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TimingEntry records wall-clock bounds for one phase execution.
type TimingEntry struct {
	Phase    string    `json:"phase"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end,omitempty"`
	Duration string    `json:"duration,omitempty"`
}

// Timing accumulates per-phase timings for one run.
type Timing struct {
	mu      sync.Mutex
	Entries []TimingEntry `json:"entries"`
}

func timingPath(runDir string) string {
	return filepath.Join(runDir, "timing.json")
}

// LoadTiming reads timing data from a run directory. A missing file yields
// an empty Timing.
func LoadTiming(runDir string) (*Timing, error) {
	data, err := os.ReadFile(timingPath(runDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Timing{}, nil
		}
		return nil, err
	}
	var t Timing
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Start appends a new open entry for the phase.
func (t *Timing) Start(phase string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Entries = append(t.Entries, TimingEntry{Phase: phase, Start: time.Now()})
}

// End closes the most recent open entry for the phase.
func (t *Timing) End(phase string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.Entries) - 1; i >= 0; i-- {
		if t.Entries[i].Phase == phase && t.Entries[i].End.IsZero() {
			t.Entries[i].End = time.Now()
			t.Entries[i].Duration = formatDuration(t.Entries[i].End.Sub(t.Entries[i].Start))
			break
		}
	}
}

// Flush writes the in-memory timing data to the run directory.
func (t *Timing) Flush(runDir string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(timingPath(runDir), data, 0o644)
}

// Summary renders one line per closed entry, for reports and diagnosis.
func (t *Timing) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	for _, e := range t.Entries {
		if e.Duration == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", e.Phase, e.Duration)
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
}
