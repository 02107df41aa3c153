// Package session implements the multi-round intake conversation that turns
// a vague request into a finalized brief. A live session is persisted as two
// records: a presence-marker fact carrying creation time and round counter,
// and a transcript file holding the conversation. The two are created
// together and deleted together on every terminal transition.
//
// Callers serialize messages per identity; the manager holds no cross-call
// state of its own.
package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spetrey/loom/internal/facts"
	"github.com/spetrey/loom/internal/invoke"
	"github.com/spetrey/loom/internal/marker"
	"github.com/spetrey/loom/internal/workspace"
)

// Kind distinguishes what an intake session is for.
type Kind string

const (
	// KindDiscovery interviews toward a project brief.
	KindDiscovery Kind = "discovery"
	// KindSetup interviews toward environment configuration.
	KindSetup Kind = "setup"
)

// lookupOrder fixes which kind wins when markers for both somehow exist for
// one identity: discovery is checked first.
var lookupOrder = [...]Kind{KindDiscovery, KindSetup}

const (
	// TTL is measured from session creation, not from last activity.
	// A session is expired once elapsed >= TTL.
	TTL = 1800 * time.Second
	// MaxRounds bounds question rounds. The round MaxRounds invocation
	// always yields a brief, by force if the role still asks questions.
	MaxRounds = 3
)

// DefaultCancelWords tear down a session when a message matches one exactly.
var DefaultCancelWords = []string{"cancel", "stop", "abort"}

func presenceKey(k Kind) string { return "session." + string(k) }
func briefKey(k Kind) string    { return "brief." + string(k) }

// encodeMarker packs creation time, identity, and round into the presence
// fact value.
func encodeMarker(createdAt time.Time, identity string, round int) string {
	return fmt.Sprintf("%d|%s|%d", createdAt.Unix(), identity, round)
}

func parseMarker(v string) (createdAt time.Time, identity string, round int, err error) {
	parts := strings.Split(v, "|")
	if len(parts) != 3 {
		return time.Time{}, "", 0, fmt.Errorf("session: malformed marker %q", v)
	}
	unix, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", 0, fmt.Errorf("session: malformed marker timestamp %q", parts[0])
	}
	round, err = strconv.Atoi(parts[2])
	// A persisted round is always below MaxRounds: the final round never
	// survives long enough to be stored.
	if err != nil || round < 1 || round >= MaxRounds {
		return time.Time{}, "", 0, fmt.Errorf("session: marker round %q out of range", parts[2])
	}
	return time.Unix(unix, 0), parts[1], round, nil
}

// OutcomeKind classifies what Handle produced.
type OutcomeKind string

const (
	// OutcomeBrief carries a finalized brief ready for confirmation.
	OutcomeBrief OutcomeKind = "brief"
	// OutcomeQuestions means the session needs more answers.
	OutcomeQuestions OutcomeKind = "questions"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeExpired   OutcomeKind = "expired"
	// OutcomeConflict rejects a message because a session of a different
	// kind is already active for the identity.
	OutcomeConflict OutcomeKind = "conflict"
)

// Outcome is what one intake message produced.
type Outcome struct {
	Kind OutcomeKind
	// Text is role output for Brief and Questions outcomes, with directive
	// lines stripped, or a short notice for the terminal outcomes.
	Text  string
	Round int
	// Forced marks a brief auto-completed at the round limit.
	Forced bool
}

// Manager drives intake sessions of one kind against one fact store.
type Manager struct {
	Facts   facts.Store
	Invoker invoke.Invoker
	Kind    Kind
	// Dir is the directory transcript files live in.
	Dir string
	// Role and RoleText name the intake role and hold its instruction
	// template ($REQUEST, $TRANSCRIPT, $ROUND, $FINAL_NOTE, $IDENTITY).
	Role     string
	RoleText string
	// WorkDir is the capability working directory.
	WorkDir string
	// CancelWords override DefaultCancelWords when non-empty.
	CancelWords []string
	// Now is the clock; tests inject a fixed one.
	Now   func() time.Time
	Log   *zap.Logger
	Audit facts.AuditWriter
}

type activeSession struct {
	Kind      Kind
	CreatedAt time.Time
	Round     int
}

// Handle processes one message from an identity and advances (or creates,
// or tears down) that identity's session.
func (m *Manager) Handle(ctx context.Context, identity, message string) (*Outcome, error) {
	if m.Log == nil {
		m.Log = zap.NewNop()
	}
	if m.Audit == nil {
		m.Audit = facts.NopAudit{}
	}
	if strings.TrimSpace(identity) == "" {
		return nil, errors.New("session: identity is empty")
	}

	active, err := m.findActive(ctx, identity)
	if err != nil {
		return nil, err
	}

	if active != nil && m.now().Sub(active.CreatedAt) >= TTL {
		m.teardown(ctx, identity, active.Kind)
		m.auditEvent(ctx, identity, "session_expired", map[string]any{
			"kind": string(active.Kind), "round": active.Round,
		})
		if active.Kind == m.Kind {
			return &Outcome{
				Kind: OutcomeExpired,
				Text: "the previous session expired; send the request again to start over",
			}, nil
		}
		// The stale session belonged to another flow; with it gone this
		// message is handled normally.
		active = nil
	}

	if active == nil {
		return m.enter(ctx, identity, message)
	}
	if active.Kind != m.Kind {
		m.auditEvent(ctx, identity, "session_conflict", map[string]any{
			"active": string(active.Kind), "requested": string(m.Kind),
		})
		return &Outcome{
			Kind: OutcomeConflict,
			Text: fmt.Sprintf("a %s session is already in progress; finish or cancel it first", active.Kind),
		}, nil
	}

	if m.isCancel(message) {
		m.teardown(ctx, identity, m.Kind)
		m.auditEvent(ctx, identity, "session_cancelled", map[string]any{"round": active.Round})
		return &Outcome{Kind: OutcomeCancelled, Text: "session cancelled"}, nil
	}

	return m.resume(ctx, identity, message, active)
}

// findActive looks up a presence marker in fixed priority order. Markers
// that fail to parse are removed along with their transcript so the next
// message starts clean.
func (m *Manager) findActive(ctx context.Context, identity string) (*activeSession, error) {
	for _, kind := range lookupOrder {
		v, err := m.Facts.Get(ctx, presenceKey(kind), identity)
		if errors.Is(err, facts.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("session: reading presence marker: %w", err)
		}
		createdAt, _, round, err := parseMarker(v)
		if err != nil {
			m.Log.Warn("removing malformed session marker",
				zap.String("identity", identity), zap.String("kind", string(kind)), zap.Error(err))
			m.teardown(ctx, identity, kind)
			continue
		}
		return &activeSession{Kind: kind, CreatedAt: createdAt, Round: round}, nil
	}
	return nil, nil
}

// enter classifies a fresh request. A specific request yields a brief with
// no session artifacts ever created; a vague one opens round 1.
func (m *Manager) enter(ctx context.Context, identity, message string) (*Outcome, error) {
	out, err := m.invokeIntake(ctx, identity, message, "", 1, false)
	if err != nil {
		return nil, err
	}
	if !hasQuestions(out) {
		return m.propose(ctx, identity, out, 1, false)
	}

	tr := &Transcript{Round: 1}
	tr.Append("USER", message)
	tr.Append("ASSISTANT", out)
	if err := tr.Save(m.transcriptPath(identity)); err != nil {
		return nil, fmt.Errorf("session: saving transcript: %w", err)
	}
	if err := m.Facts.Set(ctx, presenceKey(m.Kind), identity, encodeMarker(m.now(), identity, 1)); err != nil {
		return nil, fmt.Errorf("session: storing presence marker: %w", err)
	}
	m.auditEvent(ctx, identity, "session_started", map[string]any{"kind": string(m.Kind)})
	return &Outcome{Kind: OutcomeQuestions, Text: clean(out), Round: 1}, nil
}

// resume advances an active session by one round.
func (m *Manager) resume(ctx context.Context, identity, message string, active *activeSession) (*Outcome, error) {
	path := m.transcriptPath(identity)
	tr, err := loadTranscript(path)
	if err != nil {
		// A marker without a readable transcript is half a session; remove
		// what is left and treat the message as a fresh request.
		m.Log.Warn("session transcript unreadable, starting over",
			zap.String("identity", identity), zap.Error(err))
		m.teardown(ctx, identity, m.Kind)
		return m.enter(ctx, identity, message)
	}

	round := active.Round + 1
	final := round == MaxRounds
	out, err := m.invokeIntake(ctx, identity, message, tr.Body, round, final)
	if err != nil {
		return nil, err
	}

	questions := hasQuestions(out)
	if questions && !final {
		tr.Round = round
		tr.Append("USER", message)
		tr.Append("ASSISTANT", out)
		if err := tr.Save(path); err != nil {
			return nil, fmt.Errorf("session: saving transcript: %w", err)
		}
		if err := m.Facts.Set(ctx, presenceKey(m.Kind), identity, encodeMarker(active.CreatedAt, identity, round)); err != nil {
			return nil, fmt.Errorf("session: updating presence marker: %w", err)
		}
		m.auditEvent(ctx, identity, "session_round", map[string]any{"round": round})
		return &Outcome{Kind: OutcomeQuestions, Text: clean(out), Round: round}, nil
	}

	// Question-shaped output on the final round is taken as the brief
	// anyway; there is never a fourth round.
	return m.propose(ctx, identity, out, round, questions && final)
}

// propose stores the finalized brief for the confirmation gate and tears
// down whatever session records exist.
func (m *Manager) propose(ctx context.Context, identity, out string, round int, forced bool) (*Outcome, error) {
	brief := clean(out)
	if err := m.Facts.Set(ctx, briefKey(m.Kind), identity, brief); err != nil {
		return nil, fmt.Errorf("session: storing brief: %w", err)
	}
	m.teardown(ctx, identity, m.Kind)
	m.auditEvent(ctx, identity, "intake_completed", map[string]any{"rounds": round, "forced": forced})
	return &Outcome{Kind: OutcomeBrief, Text: brief, Round: round, Forced: forced}, nil
}

// teardown removes the presence marker and transcript together. Failures
// are logged only; a half-removed session is healed on the next message.
func (m *Manager) teardown(ctx context.Context, identity string, kind Kind) {
	if err := m.Facts.Delete(ctx, presenceKey(kind), identity); err != nil {
		m.Log.Warn("could not delete presence marker",
			zap.String("identity", identity), zap.Error(err))
	}
	path := transcriptPath(m.Dir, kind, identity)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.Log.Warn("could not delete transcript", zap.String("path", path), zap.Error(err))
	}
}

func (m *Manager) invokeIntake(ctx context.Context, identity, message, transcript string, round int, final bool) (string, error) {
	// The role file is claimed for the duration of one round so the
	// capability can re-read its instructions mid-conversation.
	guard, err := workspace.MaterializeSingle(m.WorkDir, m.Role, m.RoleText)
	if err != nil {
		return "", fmt.Errorf("session: materializing intake role: %w", err)
	}
	defer guard.Release()

	finality := ""
	if final {
		finality = "This is the final round. Do not ask more questions; produce the finalized brief now."
	}
	prompt := invoke.ExpandVars(m.RoleText, map[string]string{
		"IDENTITY":   identity,
		"REQUEST":    message,
		"TRANSCRIPT": transcript,
		"ROUND":      strconv.Itoa(round),
		"FINAL_NOTE": finality,
	})
	return m.Invoker.Invoke(ctx, invoke.Request{
		Role:     m.Role,
		Prompt:   prompt,
		Tier:     invoke.TierFast,
		MaxTurns: 10,
		WorkDir:  m.WorkDir,
		ExtraEnv: []string{
			"LOOM_IDENTITY=" + identity,
			"LOOM_SESSION_KIND=" + string(m.Kind),
		},
	})
}

func (m *Manager) transcriptPath(identity string) string {
	return transcriptPath(m.Dir, m.Kind, identity)
}

func (m *Manager) isCancel(message string) bool {
	msg := strings.ToLower(strings.TrimSpace(message))
	words := m.CancelWords
	if len(words) == 0 {
		words = DefaultCancelWords
	}
	for _, w := range words {
		if msg == strings.ToLower(w) {
			return true
		}
	}
	return false
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) auditEvent(ctx context.Context, identity, event string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["identity"] = identity
	if err := m.Audit.Append(ctx, "", event, payload); err != nil {
		m.Log.Warn("could not append audit event", zap.String("event", event), zap.Error(err))
	}
}

// hasQuestions reports whether role output is question-shaped.
func hasQuestions(out string) bool {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "QUESTIONS:") {
			return true
		}
	}
	return false
}

func clean(out string) string {
	return strings.TrimSpace(marker.Strip(out))
}

// Info describes one active session for display.
type Info struct {
	Identity  string
	Kind      Kind
	Round     int
	CreatedAt time.Time
}

// Active lists non-expired sessions of every kind. Malformed markers are
// skipped here; they are healed the next time their identity sends a
// message.
func Active(ctx context.Context, store facts.Store, now time.Time) ([]Info, error) {
	var out []Info
	for _, kind := range lookupOrder {
		pairs, err := store.List(ctx, presenceKey(kind))
		if err != nil {
			return nil, fmt.Errorf("session: listing markers: %w", err)
		}
		for identity, v := range pairs {
			createdAt, _, round, err := parseMarker(v)
			if err != nil {
				continue
			}
			if now.Sub(createdAt) >= TTL {
				continue
			}
			out = append(out, Info{Identity: identity, Kind: kind, Round: round, CreatedAt: createdAt})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Identity != out[j].Identity {
			return out[i].Identity < out[j].Identity
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// DefaultRole is the bundled intake instruction used when a topology does
// not ship its own.
const DefaultRole = `You are the intake interviewer for an automated build pipeline.

A user identified as $IDENTITY sent a request. Decide whether it is specific
enough to build from. This is round $ROUND of at most 3. $FINAL_NOTE

Conversation so far (empty on the first round):
$TRANSCRIPT

Latest message:
$REQUEST

If the request is specific enough, reply with a finalized brief:
PROJECT: <short-name-using-letters-digits-dashes-only>
GOAL: <one paragraph describing exactly what to build>
NOTES: <constraints worth keeping, or "none">

If it is too vague, reply with:
QUESTIONS:
1. <first clarifying question>
2. <second clarifying question>
Ask between two and five questions, each answerable in one sentence.
`
