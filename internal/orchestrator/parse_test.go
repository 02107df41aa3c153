package orchestrator

import (
	"errors"
	"strings"
	"testing"
)

func TestParseBrief(t *testing.T) {
	out := `Looking at the request, here is my read.

PROJECT: todo-api
GOAL: Build a REST API for managing todo items
NOTES: Use sqlite for storage
`
	b, err := ParseBrief(out)
	if err != nil {
		t.Fatalf("ParseBrief: %v", err)
	}
	if b.Project != "todo-api" {
		t.Errorf("Project = %q, want %q", b.Project, "todo-api")
	}
	if b.Goal != "Build a REST API for managing todo items" {
		t.Errorf("Goal = %q", b.Goal)
	}
	if b.Notes != "Use sqlite for storage" {
		t.Errorf("Notes = %q", b.Notes)
	}
}

func TestParseBriefLastOccurrenceWins(t *testing.T) {
	out := `PROJECT: draft-name
GOAL: first guess
Let me reconsider.
PROJECT: final-name
GOAL: the real goal
NOTES: none
`
	b, err := ParseBrief(out)
	if err != nil {
		t.Fatalf("ParseBrief: %v", err)
	}
	if b.Project != "final-name" {
		t.Errorf("Project = %q, want last occurrence", b.Project)
	}
	if b.Goal != "the real goal" {
		t.Errorf("Goal = %q, want last occurrence", b.Goal)
	}
}

func TestParseBriefNotesNoneMeansEmpty(t *testing.T) {
	for _, notes := range []string{"none", "None", "NONE"} {
		b, err := ParseBrief("PROJECT: p\nGOAL: g\nNOTES: " + notes)
		if err != nil {
			t.Fatalf("ParseBrief with NOTES %q: %v", notes, err)
		}
		if b.Notes != "" {
			t.Errorf("Notes = %q for %q, want empty", b.Notes, notes)
		}
	}
}

func TestParseBriefMissingProject(t *testing.T) {
	_, err := ParseBrief("GOAL: something\nNOTES: none")
	if err == nil || !strings.Contains(err.Error(), "missing PROJECT") {
		t.Fatalf("got %v, want missing PROJECT error", err)
	}
}

func TestParseBriefMissingGoal(t *testing.T) {
	_, err := ParseBrief("PROJECT: p\nNOTES: none")
	if err == nil || !strings.Contains(err.Error(), "missing GOAL") {
		t.Fatalf("got %v, want missing GOAL error", err)
	}
}

func TestParseBriefRejectsUnsafeProjectName(t *testing.T) {
	_, err := ParseBrief("PROJECT: ../escape\nGOAL: g")
	if err == nil || !strings.Contains(err.Error(), "brief project name") {
		t.Fatalf("got %v, want project name validation error", err)
	}

	_, err = ParseBrief("PROJECT: has spaces\nGOAL: g")
	if err == nil {
		t.Fatal("expected error for project name with spaces")
	}
}

func TestParseVerdictPass(t *testing.T) {
	v, err := ParseVerdict("Checked everything.\nVERDICT: PASS\n")
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if !v.Pass {
		t.Error("Pass = false, want true")
	}
}

func TestParseVerdictFailWithReason(t *testing.T) {
	out := `VERDICT: FAIL
REASON: tests do not compile
REASON: missing error handling in storage layer
`
	v, err := ParseVerdict(out)
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.Pass {
		t.Error("Pass = true, want false")
	}
	want := "tests do not compile; missing error handling in storage layer"
	if v.Reason != want {
		t.Errorf("Reason = %q, want %q", v.Reason, want)
	}
}

func TestParseVerdictLastWins(t *testing.T) {
	out := `VERDICT: FAIL
REASON: stale complaint
After the fix, re-checking.
VERDICT: PASS
`
	v, err := ParseVerdict(out)
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if !v.Pass {
		t.Error("Pass = false, want the final verdict to win")
	}
}

func TestParseVerdictReasonOnlyAfterFinalVerdict(t *testing.T) {
	out := `VERDICT: PASS
VERDICT: FAIL
REASON: the real reason
`
	v, err := ParseVerdict(out)
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.Pass {
		t.Error("Pass = true, want false")
	}
	if v.Reason != "the real reason" {
		t.Errorf("Reason = %q", v.Reason)
	}
}

func TestParseVerdictFailNoReason(t *testing.T) {
	v, err := ParseVerdict("VERDICT: FAIL\n")
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.Reason != "no reason given" {
		t.Errorf("Reason = %q, want fallback", v.Reason)
	}
}

func TestParseVerdictIgnoresUnknownValues(t *testing.T) {
	_, err := ParseVerdict("VERDICT: MAYBE\nVERDICT: almost\n")
	if !errors.Is(err, ErrNoVerdict) {
		t.Fatalf("got %v, want ErrNoVerdict", err)
	}
}

func TestParseVerdictMissing(t *testing.T) {
	_, err := ParseVerdict("I looked around and found nothing conclusive.")
	if !errors.Is(err, ErrNoVerdict) {
		t.Fatalf("got %v, want ErrNoVerdict", err)
	}
}

func TestExtractSummary(t *testing.T) {
	out := `Working through the final report now.

SUMMARY: Built the todo API.
Endpoints for create, list, and delete are in place.
>> schedule nightly-rebuild
All tests pass.
`
	got := ExtractSummary(out)
	want := "Built the todo API.\nEndpoints for create, list, and delete are in place.\nAll tests pass."
	if got != want {
		t.Errorf("ExtractSummary = %q, want %q", got, want)
	}
}

func TestExtractSummaryLastMarkerWins(t *testing.T) {
	out := "SUMMARY: draft\nSUMMARY: final version\n"
	if got := ExtractSummary(out); got != "final version" {
		t.Errorf("ExtractSummary = %q, want %q", got, "final version")
	}
}

func TestExtractSummaryWithoutMarker(t *testing.T) {
	out := "Just some closing words.\n>> activate helper\n"
	if got := ExtractSummary(out); got != "Just some closing words." {
		t.Errorf("ExtractSummary = %q", got)
	}
}
