package session

import (
	"testing"

	"github.com/intenza/hfeval/internal/catalog"
	"github.com/intenza/hfeval/internal/model"
)

func TestStore(t *testing.T) {
	store := NewStore(catalog.Default())

	s := store.Create()
	if s.ID == "" {
		t.Fatal("Expected non-empty session ID")
	}
	if store.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", store.Count())
	}

	got, err := store.Get(s.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != s {
		t.Error("Expected the same session instance")
	}

	if _, err := store.Get("missing-id"); !model.IsErrorType(err, model.ErrCodeNotFound) {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}

	store.Delete(s.ID)
	if store.Count() != 0 {
		t.Errorf("Expected 0 sessions after delete, got %d", store.Count())
	}
}

func TestStore_IndependentSessions(t *testing.T) {
	store := NewStore(catalog.Default())

	a := store.Create()
	b := store.Create()

	if err := a.SubmitTesterName("Alice"); err != nil {
		t.Fatalf("SubmitTesterName failed: %v", err)
	}

	if b.State() != StateAwaitingTesterName {
		t.Error("Sessions should not share state")
	}
}
