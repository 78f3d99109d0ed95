package store

import (
	"encoding/json"
	"testing"
)

func TestStore_MachineCRUD(t *testing.T) {
	s := New()
	now := int64(1000)

	m, err := s.CreateMachine("u1", "laptop", "sw_tok1", now)
	if err != nil {
		t.Fatalf("CreateMachine: %v", err)
	}
	if m.Name != "laptop" || m.UserID != "u1" {
		t.Fatalf("unexpected machine: %+v", m)
	}

	got, ok := s.GetMachine("u1", m.ID)
	if !ok || got.ID != m.ID {
		t.Fatalf("expected machine by id")
	}

	renamed, err := s.RenameMachine("u1", m.ID, "desktop", now+1)
	if err != nil {
		t.Fatalf("RenameMachine: %v", err)
	}
	if renamed.Name != "desktop" || renamed.UpdatedAt != now+1 {
		t.Fatalf("unexpected rename result: %+v", renamed)
	}

	if !s.DeleteMachine("u1", m.ID) {
		t.Fatalf("expected delete true")
	}
	if _, ok := s.GetMachine("u1", m.ID); ok {
		t.Fatalf("expected machine gone")
	}
	if _, ok := s.GetMachineByToken("sw_tok1"); ok {
		t.Fatalf("expected token unregistered")
	}
}

func TestStore_CreateMachine_Validation(t *testing.T) {
	s := New()
	if _, err := s.CreateMachine("u1", "", "sw_t", 1000); err != ErrNameRequired {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if _, err := s.CreateMachine("", "name", "sw_t", 1000); err == nil {
		t.Fatalf("expected error for missing userID")
	}
}

func TestStore_OwnershipHidesMachines(t *testing.T) {
	s := New()
	m, err := s.CreateMachine("u1", "laptop", "sw_tok1", 1000)
	if err != nil {
		t.Fatalf("CreateMachine: %v", err)
	}

	if _, ok := s.GetMachine("u2", m.ID); ok {
		t.Fatalf("expected no access for other user")
	}
	if _, err := s.RenameMachine("u2", m.ID, "x", 1001); err != ErrMachineNotFound {
		t.Fatalf("expected ErrMachineNotFound, got %v", err)
	}
	if s.DeleteMachine("u2", m.ID) {
		t.Fatalf("expected delete false for other user")
	}
	if len(s.ListMachines("u2")) != 0 {
		t.Fatalf("expected empty list for other user")
	}
}

func TestStore_GetMachineByToken(t *testing.T) {
	s := New()
	m, err := s.CreateMachine("u1", "laptop", "sw_tok1", 1000)
	if err != nil {
		t.Fatalf("CreateMachine: %v", err)
	}

	got, ok := s.GetMachineByToken("sw_tok1")
	if !ok || got.ID != m.ID {
		t.Fatalf("expected machine by token")
	}
	if _, ok := s.GetMachineByToken("sw_other"); ok {
		t.Fatalf("expected no machine for unknown token")
	}
	if _, ok := s.GetMachineByToken(""); ok {
		t.Fatalf("expected no machine for empty token")
	}
}

func TestStore_ListMachines_NewestFirst(t *testing.T) {
	s := New()
	if _, err := s.CreateMachine("u1", "old", "sw_a", 1000); err != nil {
		t.Fatalf("CreateMachine: %v", err)
	}
	if _, err := s.CreateMachine("u1", "new", "sw_b", 2000); err != nil {
		t.Fatalf("CreateMachine: %v", err)
	}

	list := s.ListMachines("u1")
	if len(list) != 2 {
		t.Fatalf("expected 2 machines, got %d", len(list))
	}
	if list[0].Name != "new" || list[1].Name != "old" {
		t.Fatalf("expected newest first, got %q then %q", list[0].Name, list[1].Name)
	}
}

func TestStore_TouchMachine(t *testing.T) {
	s := New()
	m, err := s.CreateMachine("u1", "laptop", "sw_tok1", 1000)
	if err != nil {
		t.Fatalf("CreateMachine: %v", err)
	}

	if err := s.TouchMachine(m.ID, 2000); err != nil {
		t.Fatalf("TouchMachine: %v", err)
	}
	got, _ := s.GetMachine("u1", m.ID)
	if got.LastSeen != 2000 {
		t.Fatalf("expected lastSeen 2000, got %d", got.LastSeen)
	}

	if err := s.TouchMachine("missing", 2000); err != ErrMachineNotFound {
		t.Fatalf("expected ErrMachineNotFound, got %v", err)
	}
}

func TestStore_Snapshots(t *testing.T) {
	s := New()
	m, err := s.CreateMachine("u1", "laptop", "sw_tok1", 1000)
	if err != nil {
		t.Fatalf("CreateMachine: %v", err)
	}

	if _, ok := s.LatestSnapshot(m.ID); ok {
		t.Fatalf("expected no snapshot yet")
	}

	if _, err := s.AppendSnapshot(m.ID, json.RawMessage(`{"n":1}`), 2000); err != nil {
		t.Fatalf("AppendSnapshot: %v", err)
	}
	rec, err := s.AppendSnapshot(m.ID, json.RawMessage(`{"n":2}`), 3000)
	if err != nil {
		t.Fatalf("AppendSnapshot: %v", err)
	}

	latest, ok := s.LatestSnapshot(m.ID)
	if !ok {
		t.Fatalf("expected latest snapshot")
	}
	if latest.ID != rec.ID || string(latest.Data) != `{"n":2}` {
		t.Fatalf("expected newest record, got %+v", latest)
	}

	if _, err := s.AppendSnapshot("missing", json.RawMessage(`{}`), 2000); err != ErrMachineNotFound {
		t.Fatalf("expected ErrMachineNotFound, got %v", err)
	}
}

func TestStore_SnapshotHistoryBounded(t *testing.T) {
	s := New()
	m, err := s.CreateMachine("u1", "laptop", "sw_tok1", 1000)
	if err != nil {
		t.Fatalf("CreateMachine: %v", err)
	}

	for i := 0; i < snapshotHistoryLimit+10; i++ {
		if _, err := s.AppendSnapshot(m.ID, json.RawMessage(`{}`), int64(i)); err != nil {
			t.Fatalf("AppendSnapshot: %v", err)
		}
	}

	s.mu.RLock()
	n := len(s.snapshotsByID[m.ID])
	s.mu.RUnlock()
	if n != snapshotHistoryLimit {
		t.Fatalf("expected history capped at %d, got %d", snapshotHistoryLimit, n)
	}

	latest, _ := s.LatestSnapshot(m.ID)
	if latest.CreatedAt != int64(snapshotHistoryLimit+9) {
		t.Fatalf("expected newest record kept, got createdAt %d", latest.CreatedAt)
	}
}
