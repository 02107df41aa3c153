package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spetrey/loom/internal/marker"
	"github.com/spetrey/loom/internal/topology"
)

// Brief is the structured project brief parsed from role output.
type Brief struct {
	// Project is a name-safe slug; it becomes the project directory name.
	Project string
	Goal    string
	Notes   string
}

// ParseBrief extracts PROJECT:, GOAL:, and NOTES: lines from role output.
// When a line repeats, the last occurrence wins: roles often restate their
// final answer after reasoning text.
func ParseBrief(text string) (*Brief, error) {
	var b Brief
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "PROJECT:"); ok {
			b.Project = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(line, "GOAL:"); ok {
			b.Goal = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(line, "NOTES:"); ok {
			b.Notes = strings.TrimSpace(v)
		}
	}
	if b.Project == "" {
		return nil, errors.New("brief output missing PROJECT line")
	}
	if err := topology.ValidateName(b.Project); err != nil {
		return nil, fmt.Errorf("brief project name: %w", err)
	}
	if b.Goal == "" {
		return nil, errors.New("brief output missing GOAL line")
	}
	if strings.EqualFold(b.Notes, "none") {
		b.Notes = ""
	}
	return &b, nil
}

// ErrNoVerdict reports verifier output that carried no VERDICT line.
var ErrNoVerdict = errors.New("verifier output contained no verdict")

// Verdict is the outcome of one verification attempt.
type Verdict struct {
	Pass   bool
	Reason string
}

// ParseVerdict scans role output for its final VERDICT: PASS or VERDICT:
// FAIL line. REASON: lines after that verdict are joined into the failure
// reason. Lines with an unrecognized verdict value are ignored.
func ParseVerdict(text string) (Verdict, error) {
	lines := strings.Split(text, "\n")

	verdictIdx := -1
	pass := false
	for i, line := range lines {
		v, ok := strings.CutPrefix(strings.TrimSpace(line), "VERDICT:")
		if !ok {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "PASS":
			verdictIdx, pass = i, true
		case "FAIL":
			verdictIdx, pass = i, false
		}
	}
	if verdictIdx < 0 {
		return Verdict{}, ErrNoVerdict
	}
	if pass {
		return Verdict{Pass: true}, nil
	}

	var reasons []string
	for _, line := range lines[verdictIdx+1:] {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "REASON:"); ok {
			reasons = append(reasons, strings.TrimSpace(v))
		}
	}
	reason := strings.Join(reasons, "; ")
	if reason == "" {
		reason = "no reason given"
	}
	return Verdict{Pass: false, Reason: reason}, nil
}

// ExtractSummary returns the report text following the last SUMMARY: line,
// with directive lines stripped. Output without the marker is returned whole,
// also stripped.
func ExtractSummary(text string) string {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "SUMMARY:") {
			start = i
		}
	}
	if start >= 0 {
		first := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[start]), "SUMMARY:"))
		rest := append([]string{first}, lines[start+1:]...)
		text = strings.Join(rest, "\n")
	}
	return strings.TrimSpace(marker.Strip(text))
}
