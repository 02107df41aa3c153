package scaffold

import "github.com/spetrey/loom/internal/docs"

// buildGuidedPrompt assembles the generation prompt for guided init. The
// projectContext argument is contextgather's rendered output.
func buildGuidedPrompt(projectContext string) string {
	return guidedPrefix + docs.SchemaReference() + guidedMiddle + projectContext + guidedSuffix
}

const guidedPrefix = `You are generating a loom topology for a software project. loom is a pipeline engine that drives an agent CLI through an ordered list of validated phases.

Your job: analyze the project context below and generate a topology document plus role instruction files tailored to this project.

## Topology Schema Reference

`

const guidedMiddle = `

## Example

A Go service would get a topology like this (note the file= annotations):

` + "```" + `yaml file=.loom/topologies/standard/topology.yaml
name: standard
description: Build pipeline with corrective review

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
` + "```" + `

` + "```" + `markdown file=.loom/topologies/standard/quality-check.md
You are a quality reviewer.

1. Inspect the work in $PROJECT_DIR against $PROJECT_DIR/PLAN.md.
2. Run the project's test suite (go test ./... -count=1) and linters.
3. End your reply with exactly one verdict block:

VERDICT: PASS
or
VERDICT: FAIL
REASON: <one line per finding>
` + "```" + `

## Project Context

`

const guidedSuffix = `

## Instructions

Based on the project context above, generate a complete topology. Produce:

1. A ` + "`.loom/topologies/<name>/topology.yaml`" + ` tailored to this project. Pick a short name from the project itself. Keep the default shape and adapt it:
   - **parse-brief** (kind: parse-brief, tier: fast) — turns the raw brief into PROJECT/GOAL/NOTES lines.
   - **plan** (kind: standard, tier: complex) — produces $PROJECT_DIR/PLAN.md; gate it with ` + "`post: {files: [PLAN.md]}`" + `.
   - **implement** (kind: standard, tier: complex) — gate it with ` + "`pre: {files: [PLAN.md]}`" + `.
   - **quality-check** (kind: corrective-loop, retry max 3, fix-role fix) — the verify role must run the project's real test and lint commands. Detect them from the project files (` + "`go test ./...`" + ` for Go, ` + "`npm test`" + ` for Node, ` + "`pytest`" + ` for Python, ` + "`make test`" + ` if a Makefile exists).
   - **final-review** (kind: corrective-loop, retry max 2, fix-role fix, fatal: true).
   - **summarize** (kind: parse-summary, tier: fast).

2. One ` + "`<role>.md`" + ` file per role the topology references, in the same directory. Every role must follow the engine's protocols:
   - Reference ` + "`$BRIEF`" + `, ` + "`$PROJECT_DIR`" + `, and ` + "`$PROJECT_ROOT`" + ` where appropriate.
   - The parse-brief role must instruct emitting exactly PROJECT:, GOAL:, and NOTES: lines.
   - Corrective verify roles must end with a VERDICT: PASS or VERDICT: FAIL block, with REASON: lines on failure.
   - The fix role must reference ` + "`$FAILURE_REASON`" + ` and change only what the failure names.
   - The summarize role must begin its report with a SUMMARY: line.
   - Reference the project's actual structure, conventions, and build tooling from the context above.

## Output Format

Produce ONLY fenced code blocks with ` + "`file=`" + ` annotations. No explanation or text outside the code blocks:

` + "```" + `yaml file=.loom/topologies/<name>/topology.yaml
<topology document>
` + "```" + `

` + "```" + `markdown file=.loom/topologies/<name>/plan.md
<role instructions>
` + "```" + `

All file paths MUST start with ` + "`.loom/topologies/`" + `.
`

const retryFeedback = `

IMPORTANT: Your previous attempt failed with this error: %v

Try again. Output ONLY fenced code blocks with file= annotations. One block MUST be a topology.yaml under .loom/topologies/<name>/, and every role it references MUST have a matching <role>.md block in the same directory.`
