package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"parley/internal/models"
)

func TestStorage(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "storage_test")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewBboltStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	t.Run("Session", func(t *testing.T) {
		if _, err := store.GetSession(); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound for empty session, got %v", err)
		}

		session := DBSession{
			Token:     "tok-1",
			UserID:    "u1",
			FirstName: "Alice",
			LastName:  "Lee",
			Email:     "alice@example.com",
			ExpiresAt: 1234567890,
		}
		if err := store.SaveSession(session); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}

		got, err := store.GetSession()
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if got != session {
			t.Errorf("expected %+v, got %+v", session, got)
		}
	})

	t.Run("Conversations", func(t *testing.T) {
		conversations := []DBConversation{
			{
				ID: "c1",
				Participants: []DBParticipant{
					{ID: "u1", FirstName: "Alice", LastName: "Lee"},
					{ID: "u2", FirstName: "Bob"},
				},
				LastMessage: &DBMessage{ID: "m1", Sender: "u2", Content: "hi", Timestamp: 100},
				UpdatedAt:   100,
			},
			{
				ID:        "g1",
				IsGroup:   true,
				GroupName: "team",
				UpdatedAt: 200,
			},
		}
		if err := store.SaveConversations(conversations); err != nil {
			t.Fatalf("SaveConversations failed: %v", err)
		}

		got, err := store.ListConversations()
		if err != nil {
			t.Fatalf("ListConversations failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 conversations, got %d", len(got))
		}
		byID := map[string]DBConversation{}
		for _, c := range got {
			byID[c.ID] = c
		}
		if byID["c1"].LastMessage == nil || byID["c1"].LastMessage.Content != "hi" {
			t.Errorf("lastMessage lost: %+v", byID["c1"])
		}
		if !byID["g1"].IsGroup || byID["g1"].GroupName != "team" {
			t.Errorf("group metadata lost: %+v", byID["g1"])
		}

		// Save replaces wholesale.
		if err := store.SaveConversations(conversations[:1]); err != nil {
			t.Fatalf("SaveConversations failed: %v", err)
		}
		got, err = store.ListConversations()
		if err != nil {
			t.Fatalf("ListConversations failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "c1" {
			t.Errorf("snapshot not replaced: %+v", got)
		}
	})

	t.Run("ClearSession", func(t *testing.T) {
		if err := store.ClearSession(); err != nil {
			t.Fatalf("ClearSession failed: %v", err)
		}
		if _, err := store.GetSession(); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("session survived ClearSession: %v", err)
		}
		got, err := store.ListConversations()
		if err != nil {
			t.Fatalf("ListConversations failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("cached roster survived ClearSession: %+v", got)
		}
	})
}
