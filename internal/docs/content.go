package docs

var topics = []Topic{
	{
		Name:    "quickstart",
		Title:   "Quick Start",
		Summary: "Getting started with loom",
		Content: topicQuickstart,
	},
	{
		Name:    "topology",
		Title:   "Topology Reference",
		Summary: "topology.yaml schema, fields, and defaults",
		Content: topicTopology,
	},
	{
		Name:    "phases",
		Title:   "Phase Kinds",
		Summary: "Standard, parse-brief, corrective-loop, and parse-summary",
		Content: topicPhases,
	},
	{
		Name:    "corrective",
		Title:   "Corrective Loops",
		Summary: "Verify/fix cycles, retry budgets, and fatal exhaustion",
		Content: topicCorrective,
	},
	{
		Name:    "sessions",
		Title:   "Intake Sessions",
		Summary: "Multi-round clarification, TTL, rounds, and cancellation",
		Content: topicSessions,
	},
	{
		Name:    "runs",
		Title:   "Run Artifacts",
		Summary: "Structure of .loom/runs/ and what gets saved",
		Content: topicRuns,
	},
}

const topicQuickstart = `Quick Start
===========

1. Initialize a project:

    cd your-project
    loom init

   This creates .loom/settings.yaml and deploys the bundled "standard"
   topology into .loom/topologies/standard/.

2. Run a pipeline with a brief:

    loom run standard "build a todo CLI in Go backed by sqlite"

   Or keep the brief in a file:

    loom run standard --brief-file brief.md

3. Too vague to write a brief? Let intake interview you:

    loom intake alice "I want something for tracking tasks"

   Answer its questions in follow-up messages. After at most three
   rounds you get a finalized brief to feed into loom run.

4. Check progress and history:

    loom status
    loom status <run-id>

5. When a run fails, ask for a diagnosis:

    loom doctor <run-id>

CLI Commands
------------

  loom run <topology> [brief]     Execute a pipeline
  loom run ... --brief-file FILE  Read the brief from a file
  loom run ... --project-dir DIR  Operate on DIR instead of the cwd project
  loom run ... --dry-run          Print the phase plan without executing
  loom intake <identity> <msg>    Send one intake message
  loom sessions                   List active intake sessions
  loom status [run-id]            Show run history or one run's phases
  loom doctor [run-id]            Diagnose a failed run (default: latest)
  loom init                       Scaffold the .loom/ directory
  loom docs [topic]               Show documentation
`

const topicTopology = `Topology Reference
==================

A topology is a named, ordered pipeline definition. It lives in its own
directory:

  .loom/topologies/<name>/topology.yaml
  .loom/topologies/<name>/<role>.md        (one per referenced role)

Names may use letters, digits, hyphen, and underscore, up to 64
characters. Anything else — path separators, "..", spaces — is rejected
before the filesystem is touched.

Unknown fields in topology.yaml are errors, and an invalid document
never produces a partial topology.

Top-level fields
----------------

  name             string    Required. Must match the directory name rules.
  description      string    Optional.
  phases           list      Required, at least one phase.

Phase fields
------------

  name             string    Required. Unique within the topology.
  kind             string    "standard" (default), "parse-brief",
                             "corrective-loop", or "parse-summary".
  description      string    Human-readable description.
  role             string    Required. Instruction file <role>.md must
                             exist next to topology.yaml.
  tier             string    "fast" or "complex". Defaults: fast for
                             parse kinds, complex otherwise.
  max-turns        int       Capability turn budget. Defaults: 10 for
                             parse kinds, 30 otherwise.
  retry            object    Required for corrective-loop phases:
                             max (verify attempts, default 2),
                             fix-role (required), fatal (default false).
  pre              object    Validation gate before the role runs:
                             files (exact paths), patterns (globs).
  post             object    Same shape, checked after the phase.

Role instruction files receive run context through $-variables:
$BRIEF, $PROJECT_DIR, $PROJECT_ROOT, $RUN_ID, and after the brief is
parsed also $PROJECT, $GOAL, $NOTES. Fix roles additionally get
$FAILURE_REASON.

The bundled default
-------------------

Running "loom run standard" with no .loom/topologies/standard/ deploys
the bundled six-phase topology (parse-brief, plan, implement,
quality-check, final-review, summarize) first. Existing files are never
overwritten by the deploy.
`

const topicPhases = `Phase Kinds
===========

Phases execute strictly in order. A phase only starts after the
previous one, including its validations, has fully resolved. There is
no parallelism and no DAG.

standard
--------

Invokes the phase's role once. Any error — non-zero capability exit,
missing role, failed gate — aborts the run.

parse-brief
-----------

Invokes the role, then parses its output for the finalized brief:

  PROJECT: <directory-safe-name>
  GOAL: <what to build>
  NOTES: <constraints, or "none">

When a line repeats, the last occurrence wins. PROJECT must satisfy
the same name rules as topologies; the project directory is created
under the project root and becomes the working directory for every
later phase. Missing PROJECT or GOAL aborts the run.

corrective-loop
---------------

Runs a bounded verify/fix cycle. See: loom docs corrective

parse-summary
-------------

Invokes the role and extracts the text after its last "SUMMARY:" line
as the human-readable run summary. Directive lines (">> ...") are
stripped and surfaced separately for the downstream processor.
`

const topicCorrective = `Corrective Loops
================

A corrective-loop phase alternates a verify role and a fix role:

  verify -> FAIL -> fix -> verify -> FAIL -> fix -> verify -> ...

The verify role runs at most retry.max times. The fix role only runs
between failed verifications, so it runs at most max-1 times.

The verify role reports through its output:

  VERDICT: PASS
or
  VERDICT: FAIL
  REASON: <what is wrong>

The last VERDICT line wins; REASON lines after it are joined into the
failure reason handed to the fix role as $FAILURE_REASON. Output with
no verdict at all counts as a failure with that stated reason.

Exhaustion
----------

When every verify attempt failed, the outcome depends on retry.fatal:

  fatal: false   The run continues. The phase earns no completion
                 credit and its post gate is skipped, but later phases
                 still execute. The bundled quality-check works this
                 way (max 3).

  fatal: true    The run aborts with a chain-state snapshot. The
                 bundled final-review works this way (max 2).

Verify attempts are not related to the capability invoker's transient
retry budget (3 attempts with a fixed delay); those cover process
failures such as a crashed CLI, not failed verdicts.
`

const topicSessions = `Intake Sessions
===============

loom intake turns a vague request into a finalized brief through a
short interview, at most three rounds.

  loom intake alice "I want something for tracking tasks"

If the intake role judges the request specific enough, it answers with
a finalized brief immediately and no session is created. Otherwise it
asks 2-5 clarifying questions and a session opens for that identity.

Each session is two records that live and die together:

  - a presence marker fact (in .loom/facts.db) carrying the creation
    time and round counter
  - a transcript file under .loom/sessions/

Rules
-----

  - TTL is 30 minutes from creation, not from last activity. The next
    message after expiry gets a distinct "expired" notice and the
    stale records are removed; nothing of the old conversation is
    reused.
  - Round 3 is always final. If the role still asks questions, its
    output is taken as the finalized brief anyway.
  - One active session per identity. A competing session kind is
    rejected with a conflict notice, never queued or merged.
  - Sending exactly "cancel", "stop", or "abort" (configurable via
    session.cancel_words in settings.yaml) tears the session down.

"loom sessions" lists active sessions with identity, kind, round, and
age. Finalized briefs are stored as facts for the confirmation step
and survive engine restarts.
`

const topicRuns = `Run Artifacts
=============

Every run gets a directory under the project root:

  .loom/runs/<run-id>/
    run.json           status record: topology, brief, completed
                       phases, timestamps
    logs/<phase>.log   combined capability output, appended across
                       corrective attempts
    prompts/<phase>-<attempt>.md
                       every rendered prompt, exactly as sent
    timing.json        per-phase start times and durations
    chain-state.yaml   written once on failure: completed phases,
                       failed phase, reason

Run IDs are time-prefixed (20060102-150405-xxxxxxxx), so lexical order
is chronological. "loom status" lists them newest first.

chain-state.yaml is for humans and "loom doctor"; the engine never
reads it back. Losing it (disk full, permissions) is logged and does
not change the failure being reported.

The fact database (.loom/facts.db) also keeps an append-only audit
table of engine events — run_started, phase_completed,
verification_failed, run_failed, and the session lifecycle — which
"loom doctor" folds into its diagnosis prompt.
`
