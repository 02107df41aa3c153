package topology

import (
	"fmt"
	"regexp"
	"strings"
)

var validTiers = map[string]bool{
	"":        true,
	"fast":    true,
	"complex": true,
}

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// maxNameLen bounds topology and role names. Names become path components,
// so the limit also keeps paths portable.
const maxNameLen = 64

// ValidateName checks that name is safe to use as a directory component.
// This is the sole defense against path traversal: names may eventually be
// externally influenced, so every rejection here is load-bearing.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("topology: name must not be empty")
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("topology: name %q exceeds %d characters", name, maxNameLen)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("topology: name %q must not contain '..'", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("topology: name %q must not contain path separators", name)
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("topology: name %q may only contain letters, digits, hyphens, and underscores", name)
	}
	return nil
}

// Validate checks the topology for errors and sets defaults.
func Validate(t *Topology) error {
	if t.Name == "" {
		return fmt.Errorf("topology: 'name' is required")
	}
	if err := ValidateName(t.Name); err != nil {
		return err
	}
	if len(t.Phases) == 0 {
		return fmt.Errorf("topology: at least one phase is required")
	}

	seen := make(map[string]bool)
	for i := range t.Phases {
		p := &t.Phases[i]

		if p.Name == "" {
			return fmt.Errorf("topology: phase %d: 'name' is required", i+1)
		}
		if seen[p.Name] {
			return fmt.Errorf("topology: duplicate phase name %q", p.Name)
		}
		seen[p.Name] = true

		if p.Role == "" {
			return fmt.Errorf("topology: phase %q: 'role' is required", p.Name)
		}
		if err := ValidateName(p.Role); err != nil {
			return fmt.Errorf("topology: phase %q: invalid role reference: %w", p.Name, err)
		}

		if p.Kind == "" {
			p.Kind = KindStandard
		}
		switch p.Kind {
		case KindStandard, KindParseBrief, KindParseSummary:
			if p.Retry != nil {
				return fmt.Errorf("topology: phase %q: 'retry' is only valid on corrective-loop phases", p.Name)
			}
		case KindCorrectiveLoop:
			if p.Retry == nil {
				return fmt.Errorf("topology: corrective-loop phase %q: 'retry' is required", p.Name)
			}
			if p.Retry.FixRole == "" {
				return fmt.Errorf("topology: corrective-loop phase %q: 'retry.fix-role' is required", p.Name)
			}
			if err := ValidateName(p.Retry.FixRole); err != nil {
				return fmt.Errorf("topology: phase %q: invalid fix-role reference: %w", p.Name, err)
			}
			if p.Retry.Max <= 0 {
				p.Retry.Max = 2
			}
		default:
			return fmt.Errorf("topology: phase %q: unknown kind %q (must be standard, parse-brief, corrective-loop, or parse-summary)", p.Name, p.Kind)
		}

		if !validTiers[p.Tier] {
			return fmt.Errorf("topology: phase %q: unknown tier %q (must be fast or complex)", p.Name, p.Tier)
		}
		if p.Tier == "" {
			switch p.Kind {
			case KindParseBrief, KindParseSummary:
				p.Tier = "fast"
			default:
				p.Tier = "complex"
			}
		}

		if p.MaxTurns < 0 {
			return fmt.Errorf("topology: phase %q: max-turns must be >= 0", p.Name)
		}
		if p.MaxTurns == 0 {
			switch p.Kind {
			case KindParseBrief, KindParseSummary:
				p.MaxTurns = 10
			default:
				p.MaxTurns = 30
			}
		}

		if p.Pre != nil {
			if err := p.Pre.Validate(); err != nil {
				return fmt.Errorf("topology: phase %q: pre: %w", p.Name, err)
			}
		}
		if p.Post != nil {
			if err := p.Post.Validate(); err != nil {
				return fmt.Errorf("topology: phase %q: post: %w", p.Name, err)
			}
		}
	}

	return nil
}
