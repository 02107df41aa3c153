package ux

import (
	"fmt"
	"time"

	"github.com/spetrey/loom/internal/topology"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// stamp prints one timestamped line, tinting the message with color.
func stamp(color, format string, args ...any) {
	fmt.Printf("%s[%s]%s  %s%s%s\n",
		Dim, timestamp(), Reset, color, fmt.Sprintf(format, args...), Reset)
}

const banner = "══════════════════════════════════════"

// PhaseHeader announces the phase about to run.
func PhaseHeader(index, total int, phase topology.Phase) {
	fmt.Println()
	stamp(Cyan, banner)
	desc := ""
	if phase.Description != "" {
		desc = " — " + phase.Description
	}
	stamp(Bold, "Phase %d/%d: %s (%s)%s", index+1, total, phase.Name, phase.Kind, desc)
	stamp(Cyan, banner)
}

// PhaseComplete prints a phase completion message.
func PhaseComplete(index int, duration time.Duration) {
	stamp(Green, "✓ Phase %d complete (%s)", index+1, compact(duration))
}

// PhaseFail prints a phase failure message.
func PhaseFail(index int, phaseName, errMsg string) {
	stamp(Red, "✗ Phase %d (%s) failed: %s", index+1, phaseName, errMsg)
}

// VerifyRetry prints a corrective-loop retry message.
func VerifyRetry(phaseName string, attempt, max int, reason string) {
	stamp(Yellow, "↺ %s failed verification (attempt %d/%d): %s — invoking fix role",
		phaseName, attempt, max, reason)
}

// VerifyExhausted prints a corrective-loop exhaustion message.
func VerifyExhausted(phaseName string, max int, fatal bool) {
	if fatal {
		stamp(Red, "✗ %s still failing after %d attempts — run aborted", phaseName, max)
		return
	}
	stamp(Yellow, "⚠ %s still failing after %d attempts — continuing", phaseName, max)
}

// DoctorHint prints a diagnosis hint after a failed run.
func DoctorHint(runID string) {
	fmt.Printf("\n%sDiagnose:%s loom doctor %s\n", Yellow, Reset, runID)
}

// Success prints a final success message.
func Success(total int) {
	fmt.Println()
	stamp(Bold+Green, "══ All %d phases complete ══", total)
	fmt.Println()
}

// Directives prints the collected downstream directives after a run.
func Directives(lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Printf("\n%sDirectives for downstream processing:%s\n", Bold, Reset)
	for _, l := range lines {
		fmt.Printf("  %s⚡%s %s\n", Cyan, Reset, l)
	}
}

func compact(d time.Duration) string {
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m == 0 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}
