// Package marker extracts line-prefixed directives from role output.
// Directives are executed by a downstream processor, never by the engine;
// the engine only collects them and strips them from stored text.
package marker

import "strings"

// Kind is the directive verb.
type Kind string

const (
	// KindSchedule asks the downstream processor to schedule an action.
	KindSchedule Kind = "schedule"
	// KindActivate asks the downstream processor to activate a project.
	KindActivate Kind = "activate"
)

// Directive is one extracted directive with its raw argument text.
type Directive struct {
	Kind Kind
	Arg  string
}

const prefix = ">>"

// Scan extracts directives from text. It recognizes lines like:
//
//	>>schedule tomorrow 09:00 standup-notes
//	>>activate widget-rollout
//
// Lines carrying the prefix but an unknown verb or an empty argument are
// skipped silently. Directives are returned in order of appearance.
func Scan(text string) []Directive {
	var out []Directive
	for _, line := range strings.Split(text, "\n") {
		d, ok := parseLine(line)
		if !ok {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Strip returns text with all directive lines removed. Malformed directive
// lines are removed too so they never leak into stored summaries.
func Strip(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func parseLine(line string) (Directive, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, prefix) {
		return Directive{}, false
	}
	rest := strings.TrimPrefix(trimmed, prefix)
	verb, arg, _ := strings.Cut(rest, " ")
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return Directive{}, false
	}
	switch Kind(verb) {
	case KindSchedule, KindActivate:
		return Directive{Kind: Kind(verb), Arg: arg}, true
	}
	return Directive{}, false
}
