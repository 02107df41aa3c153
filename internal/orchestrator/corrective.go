package orchestrator

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spetrey/loom/internal/topology"
	"github.com/spetrey/loom/internal/ux"
)

// runCorrective executes the bounded verify, fix, re-verify cycle for one
// phase. The verify role runs at most Retry.Max times; the fix role runs only
// between failed verifications, so at most Max-1 times. The bool reports
// whether verification ultimately passed. A non-nil error aborts the run;
// exhaustion on a non-fatal phase returns (false, nil) and the run continues
// without crediting the phase.
func (o *Orchestrator) runCorrective(ctx context.Context, phase topology.Phase, st *State) (bool, error) {
	retry := phase.Retry
	var lastReason string
	for attempt := 1; attempt <= retry.Max; attempt++ {
		out, err := o.invokeRole(ctx, phase, phase.Role, attempt, st, map[string]string{
			"ATTEMPT": strconv.Itoa(attempt),
		})
		if err != nil {
			return false, err
		}

		v, err := ParseVerdict(out)
		if err != nil {
			// A verifier that emits no verdict cannot be trusted to have
			// passed anything. Treat it as a failure with that reason.
			o.Log.Warn("verifier output contained no verdict",
				zap.String("phase", phase.Name), zap.Int("attempt", attempt))
			v = Verdict{Pass: false, Reason: ErrNoVerdict.Error()}
		}
		if v.Pass {
			o.auditEvent("verification_passed", map[string]any{
				"phase": phase.Name, "attempt": attempt,
			})
			return true, nil
		}

		lastReason = v.Reason
		o.auditEvent("verification_failed", map[string]any{
			"phase": phase.Name, "attempt": attempt, "reason": v.Reason,
		})
		if attempt == retry.Max {
			break
		}

		ux.VerifyRetry(phase.Name, attempt, retry.Max, v.Reason)
		if _, err := o.invokeRole(ctx, phase, retry.FixRole, attempt, st, map[string]string{
			"FAILURE_REASON": v.Reason,
		}); err != nil {
			return false, err
		}
	}

	ux.VerifyExhausted(phase.Name, retry.Max, retry.Fatal)
	o.auditEvent("verification_exhausted", map[string]any{
		"phase": phase.Name, "max": retry.Max, "fatal": retry.Fatal, "reason": lastReason,
	})
	if retry.Fatal {
		return false, fmt.Errorf("phase %q: verification still failing after %d attempts: %s",
			phase.Name, retry.Max, lastReason)
	}
	o.Log.Warn("verification exhausted, continuing",
		zap.String("phase", phase.Name), zap.Int("max", retry.Max), zap.String("reason", lastReason))
	return false, nil
}
