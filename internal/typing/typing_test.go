package typing

import (
	"context"
	"testing"
	"time"

	"parley/internal/models"
)

type captureSink struct {
	events []models.ClientEvent
}

func (c *captureSink) Send(ev models.ClientEvent) {
	c.events = append(c.events, ev)
}

func newTestSignal(t *testing.T, ttl time.Duration) (*Signal, *captureSink) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sink := &captureSink{}
	return NewSignal(ctx, sink, ttl), sink
}

func TestSignal_LocalEmitsPerCall(t *testing.T) {
	s, sink := newTestSignal(t, time.Minute)

	s.Local("c1")
	s.Local("c1")
	if len(sink.events) != 2 {
		t.Fatalf("expected 2 typing intents, got %d", len(sink.events))
	}
	for _, ev := range sink.events {
		if ev.Type != models.ClientEventTypeTyping || !ev.IsTyping || ev.ConversationID != "c1" {
			t.Errorf("unexpected intent: %+v", ev)
		}
	}

	s.ClearLocal("c1")
	last := sink.events[len(sink.events)-1]
	if last.IsTyping {
		t.Error("ClearLocal should emit isTyping=false")
	}
}

func TestSignal_RemotePerPair(t *testing.T) {
	s, _ := newTestSignal(t, time.Minute)

	s.Remote("c1", "u1", true)
	s.Remote("c1", "u2", true)
	s.Remote("c2", "u1", false)

	if !s.IsTyping("c1", "u1") || !s.IsTyping("c1", "u2") {
		t.Error("per-pair typing state lost")
	}
	if s.IsTyping("c2", "u1") {
		t.Error("typing state leaked across conversations")
	}

	s.Remote("c1", "u1", false)
	if s.IsTyping("c1", "u1") {
		t.Error("stop transition not applied")
	}
	if !s.IsTyping("c1", "u2") {
		t.Error("stop for u1 cleared u2")
	}
}

func TestSignal_RemoteExpires(t *testing.T) {
	s, _ := newTestSignal(t, 30*time.Millisecond)

	s.Remote("c1", "u1", true)
	if !s.IsTyping("c1", "u1") {
		t.Fatal("typing state not set")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.IsTyping("c1", "u1") {
		if time.Now().After(deadline) {
			t.Fatal("typing state never expired")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSignal_Reset(t *testing.T) {
	s, _ := newTestSignal(t, time.Minute)

	s.Remote("c1", "u1", true)
	s.Remote("c2", "u2", true)
	s.Reset()

	if s.IsTyping("c1", "u1") || s.IsTyping("c2", "u2") {
		t.Error("remote typing state survives Reset")
	}

	// Reset is a teardown, not a shutdown: new state still registers.
	s.Remote("c1", "u1", true)
	if !s.IsTyping("c1", "u1") {
		t.Error("typing state not accepted after Reset")
	}
}

func TestSignal_PeerTyping(t *testing.T) {
	s, _ := newTestSignal(t, time.Minute)

	conv := &models.Conversation{
		ID: "c1",
		Participants: []models.Participant{
			{ID: "me"},
			{ID: "them"},
		},
	}

	if s.PeerTyping(conv, "me") {
		t.Error("indicator shown with no typing state")
	}

	s.Remote("c1", "them", true)
	if !s.PeerTyping(conv, "me") {
		t.Error("indicator not shown for the other participant")
	}

	// Our own typing must not light the indicator.
	s.Remote("c1", "them", false)
	s.Remote("c1", "me", true)
	if s.PeerTyping(conv, "me") {
		t.Error("indicator shown for self")
	}

	group := &models.Conversation{ID: "g1", IsGroup: true}
	if s.PeerTyping(group, "me") {
		t.Error("direct-chat indicator shown for a group")
	}
}
