package topology

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultName is the built-in topology deployed on first use.
const DefaultName = "standard"

const defaultDocument = `name: standard
description: General-purpose build pipeline with bounded corrective review

phases:
  - name: parse-brief
    kind: parse-brief
    role: parse-brief
    tier: fast

  - name: plan
    kind: standard
    role: plan
    tier: complex
    post:
      files:
        - PLAN.md

  - name: implement
    kind: standard
    role: implement
    tier: complex
    pre:
      files:
        - PLAN.md

  - name: quality-check
    kind: corrective-loop
    role: quality-check
    tier: complex
    retry:
      max: 3
      fix-role: fix

  - name: final-review
    kind: corrective-loop
    role: final-review
    tier: complex
    retry:
      max: 2
      fix-role: fix
      fatal: true

  - name: summarize
    kind: parse-summary
    role: summarize
    tier: fast
`

const defaultParseBriefRole = `You are an intake parser. Below is a raw project brief.

## Instructions

Read the brief and emit exactly these lines, nothing else:

PROJECT: <short-slug-for-the-project, letters/digits/hyphens only>
GOAL: <one sentence stating what must be built>
NOTES: <any constraints or context worth carrying forward, or "none">

## Brief

$BRIEF
`

const defaultPlanRole = `You are a planning agent for the project described below.

## Instructions

1. Read the goal and notes carefully.
2. Write a clear implementation plan to $PROJECT_DIR/PLAN.md.

The plan should include:
- Summary of the work
- Files to create or modify
- Key implementation details
- Testing approach

## Project

$BRIEF
`

const defaultImplementRole = `You are an implementation agent.

## Instructions

1. Read the plan at $PROJECT_DIR/PLAN.md.
2. Implement the work described in the plan inside $PROJECT_DIR.
3. Follow existing conventions where the project has them.
4. Run any relevant checks to verify your changes.
`

const defaultQualityCheckRole = `You are a quality reviewer.

## Instructions

1. Inspect the work in $PROJECT_DIR against $PROJECT_DIR/PLAN.md.
2. Check for incomplete items, broken references, and obvious defects.
3. End your reply with exactly one verdict block:

VERDICT: PASS
or
VERDICT: FAIL
REASON: <one line per finding>
`

const defaultFixRole = `You are a fix agent. A verification step failed.

## Failure

$FAILURE_REASON

## Instructions

1. Apply the smallest change in $PROJECT_DIR that resolves the failure.
2. Do not rework anything the failure does not name.
`

const defaultFinalReviewRole = `You are the final reviewer before delivery.

## Instructions

1. Review everything in $PROJECT_DIR as a release candidate.
2. Confirm the goal in $PROJECT_DIR/PLAN.md is met end to end.
3. End your reply with exactly one verdict block:

VERDICT: PASS
or
VERDICT: FAIL
REASON: <one line per blocking finding>
`

const defaultSummarizeRole = `You are a reporting agent.

## Instructions

1. Read $PROJECT_DIR/PLAN.md and skim the delivered work.
2. Write a short human-readable report of what was built and where.
3. Begin the report with a line starting "SUMMARY:".
4. If follow-up actions should be scheduled or a project activated,
   emit directive lines:

>>schedule <when> <what>
>>activate <project>
`

// defaultFiles maps file name to content for the bundled default topology.
var defaultFiles = map[string]string{
	DocumentName:       defaultDocument,
	"parse-brief.md":   defaultParseBriefRole,
	"plan.md":          defaultPlanRole,
	"implement.md":     defaultImplementRole,
	"quality-check.md": defaultQualityCheckRole,
	"fix.md":           defaultFixRole,
	"final-review.md":  defaultFinalReviewRole,
	"summarize.md":     defaultSummarizeRole,
}

// DeployDefault writes the bundled default topology under baseDir. Existing
// files are never overwritten; this is a first-run bootstrap only.
func DeployDefault(baseDir string) error {
	dir := filepath.Join(baseDir, DefaultName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("topology: creating %s: %w", dir, err)
	}
	for name, content := range defaultFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("topology: writing %s: %w", path, err)
		}
	}
	return nil
}
