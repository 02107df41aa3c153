// Package orchestrator executes one pipeline run: phases strictly in order,
// each dispatched by kind, with validation gates before and after and a
// chain-state snapshot on failure. There is no DAG and no parallel phase
// execution; sequencing is a design constraint, not an oversight.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/spetrey/loom/internal/facts"
	"github.com/spetrey/loom/internal/gate"
	"github.com/spetrey/loom/internal/invoke"
	"github.com/spetrey/loom/internal/marker"
	"github.com/spetrey/loom/internal/runstate"
	"github.com/spetrey/loom/internal/topology"
	"github.com/spetrey/loom/internal/ux"
	"github.com/spetrey/loom/internal/workspace"
)

// State is the mutable accumulator threaded through one run. It is owned by
// a single Orchestrator and never aliased across concurrent runs.
type State struct {
	RunID     string
	BriefText string
	// Brief is populated by the first parse-brief phase.
	Brief *Brief
	// ProjectDir is created from the parsed brief's project slug.
	ProjectDir string
	// Completed lists phases that finished successfully, in order.
	Completed []string
	// Summary is populated by a parse-summary phase.
	Summary string
	// Directives accumulates downstream directives found in role output.
	Directives []marker.Directive
}

// Orchestrator drives one pipeline run.
type Orchestrator struct {
	Topology    *topology.LoadedTopology
	Invoker     invoke.Invoker
	ProjectRoot string
	RunID       string
	RunDir      string
	Log         *zap.Logger
	Audit       facts.AuditWriter

	timing *runstate.Timing
	run    *runstate.Run
}

// Run executes every phase of the topology with the given brief text.
// The returned State is valid even on error; its Completed list feeds the
// chain-state snapshot already written by then.
func (o *Orchestrator) Run(ctx context.Context, briefText string) (*State, error) {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Audit == nil {
		o.Audit = facts.NopAudit{}
	}
	st := &State{RunID: o.RunID, BriefText: briefText}

	if err := runstate.EnsureDir(o.RunDir); err != nil {
		return st, err
	}
	o.timing = &runstate.Timing{}
	o.run = &runstate.Run{
		RunID:     o.RunID,
		Topology:  o.Topology.Topology.Name,
		Status:    runstate.StatusRunning,
		Brief:     briefText,
		StartedAt: time.Now().UTC(),
	}
	o.saveRun()

	guard, err := workspace.Materialize(o.ProjectRoot, o.Topology.Roles)
	if err != nil {
		return st, o.failAndRecord(st, "workspace-setup", err)
	}
	defer guard.Release()

	o.auditEvent("run_started", map[string]any{"topology": o.Topology.Topology.Name})

	phases := o.Topology.Topology.Phases
	total := len(phases)
	for i, phase := range phases {
		if err := ctx.Err(); err != nil {
			return st, o.failAndRecord(st, phase.Name, err)
		}

		ux.PhaseHeader(i, total, phase)
		o.timing.Start(phase.Name)
		start := time.Now()

		if phase.Pre != nil {
			if msg := gate.Check(o.projectDir(st), phase.Pre); msg != "" {
				o.timing.End(phase.Name)
				err := fmt.Errorf("phase %q: pre-validation failed: %s", phase.Name, msg)
				ux.PhaseFail(i, phase.Name, err.Error())
				return st, o.failAndRecord(st, phase.Name, err)
			}
		}

		// Dispatch by kind. The switch is exhaustive over the closed set;
		// Validate rejects anything else before a run starts.
		completed := true
		var phaseErr error
		switch phase.Kind {
		case topology.KindStandard:
			_, phaseErr = o.invokeRole(ctx, phase, phase.Role, 1, st, nil)
		case topology.KindParseBrief:
			phaseErr = o.runParseBrief(ctx, phase, st)
		case topology.KindCorrectiveLoop:
			completed, phaseErr = o.runCorrective(ctx, phase, st)
		case topology.KindParseSummary:
			phaseErr = o.runParseSummary(ctx, phase, st)
		default:
			phaseErr = fmt.Errorf("phase %q: unhandled kind %q", phase.Name, phase.Kind)
		}
		if phaseErr != nil {
			o.timing.End(phase.Name)
			ux.PhaseFail(i, phase.Name, phaseErr.Error())
			return st, o.failAndRecord(st, phase.Name, phaseErr)
		}

		// A tolerated corrective failure produced no artifacts worth
		// confirming; its post gate is skipped along with completion credit.
		if completed && phase.Post != nil {
			if msg := gate.Check(o.projectDir(st), phase.Post); msg != "" {
				o.timing.End(phase.Name)
				err := fmt.Errorf("phase %q: post-validation failed: %s", phase.Name, msg)
				ux.PhaseFail(i, phase.Name, err.Error())
				return st, o.failAndRecord(st, phase.Name, err)
			}
		}

		o.timing.End(phase.Name)
		o.flushTiming()
		if completed {
			st.Completed = append(st.Completed, phase.Name)
			o.run.Completed = st.Completed
			o.auditEvent("phase_completed", map[string]any{"phase": phase.Name})
			ux.PhaseComplete(i, time.Since(start))
		}
		o.saveRun()
	}

	o.run.Status = runstate.StatusCompleted
	o.run.EndedAt = time.Now().UTC()
	o.run.ProjectDir = st.ProjectDir
	o.saveRun()
	o.auditEvent("run_completed", map[string]any{"phases": len(st.Completed)})
	ux.Success(total)
	return st, nil
}

// runParseBrief invokes the role, parses the structured brief from its
// output, and creates the project directory named by the parsed slug.
func (o *Orchestrator) runParseBrief(ctx context.Context, phase topology.Phase, st *State) error {
	out, err := o.invokeRole(ctx, phase, phase.Role, 1, st, nil)
	if err != nil {
		return err
	}
	b, err := ParseBrief(out)
	if err != nil {
		return fmt.Errorf("phase %q: %w", phase.Name, err)
	}
	dir := filepath.Join(o.ProjectRoot, b.Project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("phase %q: creating project dir: %w", phase.Name, err)
	}
	st.Brief = b
	st.ProjectDir = dir
	o.run.ProjectDir = dir
	return nil
}

func (o *Orchestrator) runParseSummary(ctx context.Context, phase topology.Phase, st *State) error {
	out, err := o.invokeRole(ctx, phase, phase.Role, 1, st, nil)
	if err != nil {
		return err
	}
	st.Summary = ExtractSummary(out)
	return nil
}

// invokeRole renders the role instruction with run context, saves the
// rendered prompt for inspection, and delegates to the capability.
// Directives found in the output are collected for the downstream processor.
func (o *Orchestrator) invokeRole(ctx context.Context, phase topology.Phase, role string, attempt int, st *State, extraVars map[string]string) (string, error) {
	text, ok := o.Topology.Roles[role]
	if !ok {
		return "", fmt.Errorf("phase %q: role %q has no loaded instructions", phase.Name, role)
	}
	vars := o.vars(st)
	for k, v := range extraVars {
		vars[k] = v
	}
	prompt := invoke.ExpandVars(text, vars)

	promptName := phase.Name
	if role != phase.Role {
		promptName = phase.Name + "-" + role
	}
	if err := os.WriteFile(runstate.PromptPath(o.RunDir, promptName, attempt), []byte(prompt), 0o644); err != nil {
		return "", err
	}

	out, err := o.Invoker.Invoke(ctx, invoke.Request{
		Role:     role,
		Prompt:   prompt,
		Tier:     invoke.Tier(phase.Tier),
		MaxTurns: phase.MaxTurns,
		WorkDir:  o.projectDir(st),
		LogPath:  runstate.LogPath(o.RunDir, phase.Name),
		ExtraEnv: []string{
			"LOOM_RUN_ID=" + o.RunID,
			"LOOM_PROJECT_DIR=" + st.ProjectDir,
			"LOOM_PHASE=" + phase.Name,
		},
	})
	if err != nil {
		return "", err
	}
	st.Directives = append(st.Directives, marker.Scan(out)...)
	return out, nil
}

func (o *Orchestrator) vars(st *State) map[string]string {
	m := map[string]string{
		"BRIEF":        st.BriefText,
		"RUN_ID":       st.RunID,
		"PROJECT_DIR":  st.ProjectDir,
		"PROJECT_ROOT": o.ProjectRoot,
	}
	if st.Brief != nil {
		m["PROJECT"] = st.Brief.Project
		m["GOAL"] = st.Brief.Goal
		m["NOTES"] = st.Brief.Notes
	}
	return m
}

// projectDir is where capability children run and gates check: the project
// directory once a brief establishes it, the project root before that.
func (o *Orchestrator) projectDir(st *State) string {
	if st.ProjectDir != "" {
		return st.ProjectDir
	}
	return o.ProjectRoot
}

// failAndRecord snapshots chain state, marks the run failed, and hands the
// original error back unchanged.
func (o *Orchestrator) failAndRecord(st *State, phaseName string, err error) error {
	runstate.Record(o.Log, o.RunDir, runstate.ChainState{
		RunID:           o.RunID,
		Topology:        o.Topology.Topology.Name,
		CompletedPhases: st.Completed,
		FailedPhase:     phaseName,
		FailureReason:   err.Error(),
	})
	o.run.Status = runstate.StatusFailed
	o.run.EndedAt = time.Now().UTC()
	o.run.Completed = st.Completed
	o.saveRun()
	o.flushTiming()
	o.auditEvent("run_failed", map[string]any{"phase": phaseName, "reason": err.Error()})
	ux.DoctorHint(o.RunID)
	return err
}

func (o *Orchestrator) saveRun() {
	if err := o.run.Save(o.RunDir); err != nil {
		o.Log.Warn("could not save run record", zap.Error(err))
	}
}

func (o *Orchestrator) flushTiming() {
	if err := o.timing.Flush(o.RunDir); err != nil {
		o.Log.Warn("could not flush timing", zap.Error(err))
	}
}

// auditEvent appends an audit record. Audit writes use a background context
// so a canceled run still leaves its trail, and failures are log-only.
func (o *Orchestrator) auditEvent(event string, payload map[string]any) {
	if err := o.Audit.Append(context.Background(), o.RunID, event, payload); err != nil {
		o.Log.Warn("could not append audit event", zap.String("event", event), zap.Error(err))
	}
}

// DryRunPrint prints the phase plan without executing anything.
func (o *Orchestrator) DryRunPrint() {
	phases := o.Topology.Topology.Phases
	fmt.Printf("\n%sDry run — %d phases:%s\n\n", ux.Bold, len(phases), ux.Reset)
	for i, p := range phases {
		fmt.Printf("  %s%d.%s %s%s%s (%s)", ux.Cyan, i+1, ux.Reset, ux.Bold, p.Name, ux.Reset, p.Kind)
		if p.Description != "" {
			fmt.Printf(" — %s", p.Description)
		}
		fmt.Println()
		fmt.Printf("     role: %s, tier: %s, max-turns: %d\n", p.Role, p.Tier, p.MaxTurns)
		if p.Retry != nil {
			fmt.Printf("     retry: max %d, fix-role %s, fatal %v\n", p.Retry.Max, p.Retry.FixRole, p.Retry.Fatal)
		}
		if p.Pre != nil {
			fmt.Printf("     pre: files %v, patterns %v\n", p.Pre.Files, p.Pre.Patterns)
		}
		if p.Post != nil {
			fmt.Printf("     post: files %v, patterns %v\n", p.Post.Files, p.Post.Patterns)
		}
	}
	fmt.Println()
}
