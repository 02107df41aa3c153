package ux

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/spetrey/loom/internal/runstate"
	"github.com/spetrey/loom/internal/topology"
)

// SessionRow is one line of the active-sessions table.
type SessionRow struct {
	Identity string
	Kind     string
	Round    int
	Age      string
}

// RenderSessions prints the active intake sessions as a table.
func RenderSessions(out io.Writer, rows []SessionRow) {
	if len(rows) == 0 {
		fmt.Fprintf(out, "%sNo active sessions.%s\n", Dim, Reset)
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"Identity", "Kind", "Round", "Age"})
	for _, r := range rows {
		tw.AppendRow(table.Row{r.Identity, r.Kind, r.Round, r.Age})
	}
	tw.Render()
}

// RenderRuns prints recent runs as a table, newest first.
func RenderRuns(out io.Writer, runs []*runstate.Run) {
	if len(runs) == 0 {
		fmt.Fprintf(out, "%sNo runs yet.%s\n", Dim, Reset)
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"Run", "Topology", "Status", "Phases done"})
	for _, r := range runs {
		tw.AppendRow(table.Row{r.RunID, r.Topology, coloredStatus(r.Status), len(r.Completed)})
	}
	tw.Render()
}

// RenderRunStatus prints the full status display for one run. failedPhase
// names the phase the run died in, or is empty.
func RenderRunStatus(out io.Writer, top *topology.Topology, run *runstate.Run, timing *runstate.Timing, failedPhase string) {
	fmt.Fprintf(out, "%sRun:%s      %s\n", Bold, Reset, run.RunID)
	fmt.Fprintf(out, "%sTopology:%s %s\n", Bold, Reset, run.Topology)
	fmt.Fprintf(out, "%sStatus:%s   %s\n", Bold, Reset, coloredStatus(run.Status))
	if run.ProjectDir != "" {
		fmt.Fprintf(out, "%sProject:%s  %s\n", Bold, Reset, run.ProjectDir)
	}

	done := make(map[string]bool, len(run.Completed))
	for _, name := range run.Completed {
		done[name] = true
	}

	fmt.Fprintf(out, "\n%sPhases:%s\n", Bold, Reset)
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"#", "Phase", "Kind", "State", "Duration"})
	for i, p := range top.Phases {
		state := fmt.Sprintf("%spending%s", Dim, Reset)
		switch {
		case done[p.Name]:
			state = fmt.Sprintf("%sdone%s", Green, Reset)
		case p.Name == failedPhase:
			state = fmt.Sprintf("%sfailed%s", Red, Reset)
		case run.Status == runstate.StatusFailed:
			state = fmt.Sprintf("%snot reached%s", Dim, Reset)
		}
		tw.AppendRow(table.Row{i + 1, p.Name, p.Kind, state, findDuration(timing, p.Name)})
	}
	tw.Render()
}

func coloredStatus(status string) string {
	switch status {
	case runstate.StatusCompleted:
		return fmt.Sprintf("%s%s%s", Green, status, Reset)
	case runstate.StatusFailed:
		return fmt.Sprintf("%s%s%s", Red, status, Reset)
	default:
		return fmt.Sprintf("%s%s%s", Yellow, status, Reset)
	}
}

func findDuration(timing *runstate.Timing, phaseName string) string {
	if timing == nil {
		return ""
	}
	for i := len(timing.Entries) - 1; i >= 0; i-- {
		if timing.Entries[i].Phase == phaseName && timing.Entries[i].Duration != "" {
			return timing.Entries[i].Duration
		}
	}
	return ""
}
