// Package doctor assembles failure context from a run's artifacts and asks
// the capability for a diagnosis. It only reads; nothing here mutates run
// state.
package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spetrey/loom/internal/facts"
	"github.com/spetrey/loom/internal/invoke"
	"github.com/spetrey/loom/internal/runstate"
	"github.com/spetrey/loom/internal/topology"
	"github.com/spetrey/loom/internal/ux"
)

const maxLogLines = 200

const diagTemplate = `You are diagnosing a failed pipeline run. Analyze the context below and provide a concise diagnosis.

## Failed Phase
%s

## Chain State
%s

## Phase Log Output (last %d lines)
%s
%s%s
Instructions:
1. Identify what went wrong from the log output.
2. Classify this as a PIPELINE problem (topology definition, phase ordering, missing required files) or a TASK problem (the work the role was doing).
3. Suggest specific fixes.
4. Recommend what to do next:
   - fix the underlying issue, then start a fresh run with: loom run %s "<brief>"
   - inspect the full phase table with: loom status %s

Be direct and concise. Focus on actionable advice.`

// AuditReader is the slice of the fact store the doctor consumes.
type AuditReader interface {
	AuditTrail(ctx context.Context, runID string, limit int) ([]facts.AuditEvent, error)
}

// Run diagnoses the named run and prints the capability's analysis. audit
// may be nil when no fact store is available.
func Run(ctx context.Context, inv invoke.Invoker, audit AuditReader, projectRoot, runID string) error {
	runDir := runstate.Dir(projectRoot, runID)
	run, err := runstate.LoadRun(runDir)
	if err != nil {
		return fmt.Errorf("doctor: no run record for %q: %w", runID, err)
	}
	if run.Status != runstate.StatusFailed {
		fmt.Println("No failed run to diagnose.")
		return nil
	}

	cs, csErr := runstate.LoadChainState(runDir)
	failedPhase := ""
	if csErr == nil {
		failedPhase = cs.FailedPhase
	}

	prompt := buildPrompt(
		gatherPhaseConfig(projectRoot, run.Topology, failedPhase),
		gatherChainState(cs, csErr),
		gatherLog(runDir, failedPhase),
		gatherPrompt(runDir, failedPhase),
		gatherTiming(runDir),
		gatherAudit(ctx, audit, runID),
		run.Topology, runID,
	)

	fmt.Printf("\n%s%s== Doctor: diagnosing run %s ==%s\n\n", ux.Bold, ux.Cyan, runID, ux.Reset)

	out, err := inv.Invoke(ctx, invoke.Request{
		Role:    "doctor",
		Prompt:  prompt,
		Tier:    invoke.TierFast,
		WorkDir: projectRoot,
	})
	if err != nil {
		return fmt.Errorf("doctor: %w", err)
	}
	fmt.Println(strings.TrimSpace(out))
	fmt.Println()
	return nil
}

func buildPrompt(phaseConfig, chainState, log, rolePrompt, timing, audit, topologyName, runID string) string {
	var promptSection, contextSection string
	if rolePrompt != "" {
		promptSection = fmt.Sprintf("\n## Rendered Role Prompt\n%s\n", rolePrompt)
	}

	var extras []string
	if timing != "" {
		extras = append(extras, "Timing: "+timing)
	}
	if audit != "" {
		extras = append(extras, "Audit trail:\n"+audit)
	}
	if len(extras) > 0 {
		contextSection = fmt.Sprintf("\n## Execution Context\n%s\n", strings.Join(extras, "\n"))
	}

	return fmt.Sprintf(diagTemplate, phaseConfig, chainState, maxLogLines, log,
		promptSection, contextSection, topologyName, runID)
}

func gatherPhaseConfig(projectRoot, topologyName, phaseName string) string {
	if phaseName == "" {
		return "(failed phase unknown)"
	}
	loaded, err := topology.Load(topology.BaseDir(projectRoot), topologyName)
	if err != nil {
		return fmt.Sprintf("Name: %s\n(topology %q could not be loaded: %v)", phaseName, topologyName, err)
	}
	idx := loaded.Topology.PhaseIndex(phaseName)
	if idx < 0 {
		return fmt.Sprintf("Name: %s\n(not present in current topology %q)", phaseName, topologyName)
	}
	phase := loaded.Topology.Phases[idx]

	parts := []string{
		fmt.Sprintf("Name: %s (phase %d/%d)", phase.Name, idx+1, len(loaded.Topology.Phases)),
		fmt.Sprintf("Kind: %s", phase.Kind),
	}
	if phase.Description != "" {
		parts = append(parts, "Description: "+phase.Description)
	}
	parts = append(parts,
		"Role: "+phase.Role,
		"Tier: "+phase.Tier,
		fmt.Sprintf("Max turns: %d", phase.MaxTurns))
	if phase.Retry != nil {
		parts = append(parts, fmt.Sprintf("Retry: max %d, fix-role %s, fatal %v",
			phase.Retry.Max, phase.Retry.FixRole, phase.Retry.Fatal))
	}
	if phase.Pre != nil {
		parts = append(parts, fmt.Sprintf("Pre-validation: files %v, patterns %v", phase.Pre.Files, phase.Pre.Patterns))
	}
	if phase.Post != nil {
		parts = append(parts, fmt.Sprintf("Post-validation: files %v, patterns %v", phase.Post.Files, phase.Post.Patterns))
	}
	return strings.Join(parts, "\n")
}

func gatherChainState(cs *runstate.ChainState, err error) string {
	if err != nil {
		return "(no chain state snapshot found)"
	}
	return fmt.Sprintf("Completed phases: %s\nFailed phase: %s\nReason: %s",
		strings.Join(cs.CompletedPhases, ", "), cs.FailedPhase, cs.FailureReason)
}

func gatherLog(runDir, phaseName string) string {
	if phaseName == "" {
		return "(no log file found)"
	}
	data, err := os.ReadFile(runstate.LogPath(runDir, phaseName))
	if err != nil {
		return "(no log file found)"
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
		return fmt.Sprintf("... (truncated to last %d lines)\n%s", maxLogLines, strings.Join(lines, "\n"))
	}
	return string(data)
}

// gatherPrompt returns the most recent rendered prompt for the failed phase.
// Corrective phases save one per attempt; the highest attempt is the one
// that was in flight when the run died.
func gatherPrompt(runDir, phaseName string) string {
	if phaseName == "" {
		return ""
	}
	matches, err := filepath.Glob(filepath.Join(runDir, "prompts", phaseName+"-*.md"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	data, err := os.ReadFile(matches[len(matches)-1])
	if err != nil {
		return ""
	}
	return string(data)
}

func gatherTiming(runDir string) string {
	timing, err := runstate.LoadTiming(runDir)
	if err != nil {
		return ""
	}
	return timing.Summary()
}

func gatherAudit(ctx context.Context, audit AuditReader, runID string) string {
	if audit == nil {
		return ""
	}
	events, err := audit.AuditTrail(ctx, runID, 50)
	if err != nil || len(events) == 0 {
		return ""
	}
	var parts []string
	for _, e := range events {
		payload, _ := json.Marshal(e.Payload)
		parts = append(parts, fmt.Sprintf("  %s %s %s", e.Timestamp, e.Event, payload))
	}
	return strings.Join(parts, "\n")
}
