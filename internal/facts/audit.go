package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AuditWriter records engine events for later inspection. Audit writes are
// advisory; callers may treat failures as non-fatal.
type AuditWriter interface {
	Append(ctx context.Context, runID, event string, payload map[string]any) error
}

// AuditEvent is one recorded engine event.
type AuditEvent struct {
	Timestamp string
	RunID     string
	Event     string
	Payload   map[string]any
}

// Append writes an audit event into the fact database.
func (s *SQLiteStore) Append(ctx context.Context, runID, event string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("facts: marshal audit payload: %w", err)
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit (ts, run_id, event, payload_json) VALUES (?, ?, ?, ?)`,
		ts, nullable(runID), event, string(data),
	)
	if err != nil {
		return fmt.Errorf("facts: append audit event: %w", err)
	}
	return nil
}

// AuditTrail returns up to limit audit events for runID, oldest first.
// An empty runID returns events across all runs.
func (s *SQLiteStore) AuditTrail(ctx context.Context, runID string, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ts, COALESCE(run_id, ''), event, payload_json FROM audit`
	args := []any{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("facts: audit trail: %w", err)
	}
	defer rows.Close()

	var out []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		var payload string
		if err := rows.Scan(&ev.Timestamp, &ev.RunID, &ev.Event, &payload); err != nil {
			return nil, fmt.Errorf("facts: audit trail: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			ev.Payload = map[string]any{"raw": payload}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("facts: audit trail: %w", err)
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// NopAudit discards all events. Dry runs and tests use it.
type NopAudit struct{}

func (NopAudit) Append(context.Context, string, string, map[string]any) error { return nil }
