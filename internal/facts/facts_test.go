package facts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "facts.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SetGetDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "intake.presence", "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "intake.presence", "alice", "1700000000|alice|1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "intake.presence", "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "1700000000|alice|1" {
		t.Errorf("Get = %q", got)
	}

	// Set replaces.
	if err := s.Set(ctx, "intake.presence", "alice", "1700000100|alice|2"); err != nil {
		t.Fatalf("Set replace: %v", err)
	}
	got, err = s.Get(ctx, "intake.presence", "alice")
	if err != nil {
		t.Fatalf("Get after replace: %v", err)
	}
	if got != "1700000100|alice|2" {
		t.Errorf("Get after replace = %q", got)
	}

	if err := s.Delete(ctx, "intake.presence", "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "intake.presence", "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete: err = %v, want ErrNotFound", err)
	}

	// Deleting again is not an error.
	if err := s.Delete(ctx, "intake.presence", "alice"); err != nil {
		t.Fatalf("Delete idempotent: %v", err)
	}
}

func TestSQLiteStore_IdentityScoping(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "intake.presence", "alice", "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "intake.presence", "bob", "b"); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "intake.presence", "bob")
	if err != nil || got != "b" {
		t.Fatalf("Get bob = %q, %v", got, err)
	}

	if err := s.Delete(ctx, "intake.presence", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "intake.presence", "bob"); err != nil {
		t.Fatalf("bob's fact should survive alice's delete: %v", err)
	}
}

func TestSQLiteStore_List(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"alice", "bob"} {
		if err := s.Set(ctx, "intake.presence", id, "v-"+id); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Set(ctx, "intake.brief", "alice", "unrelated"); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(ctx, "intake.presence")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got["alice"] != "v-alice" || got["bob"] != "v-bob" {
		t.Errorf("List = %v", got)
	}
}

func TestSQLiteStore_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Set(ctx, "intake.brief", "alice", "build a widget"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.Get(ctx, "intake.brief", "alice")
	if err != nil || got != "build a widget" {
		t.Fatalf("Get after reopen = %q, %v", got, err)
	}
}

func TestSQLiteStore_Audit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "run-1", "phase_completed", map[string]any{"phase": "plan"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, "run-1", "phase_completed", map[string]any{"phase": "implement"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, "run-2", "run_started", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	events, err := s.AuditTrail(ctx, "run-1", 10)
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Payload["phase"] != "plan" || events[1].Payload["phase"] != "implement" {
		t.Errorf("events out of order: %v", events)
	}

	all, err := s.AuditTrail(ctx, "", 10)
	if err != nil {
		t.Fatalf("AuditTrail all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d events across runs, want 3", len(all))
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if _, err := m.Get(ctx, "k", "id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get empty: %v", err)
	}
	if err := m.Set(ctx, "k", "id", "v"); err != nil {
		t.Fatal(err)
	}
	got, err := m.Get(ctx, "k", "id")
	if err != nil || got != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := m.Delete(ctx, "k", "id"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "k", "id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
}
