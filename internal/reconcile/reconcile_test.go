package reconcile

import (
	"fmt"
	"testing"
	"time"

	"parley/internal/models"
)

func confirmed(id, sender, content, chatID string) models.Message {
	return models.Message{
		ID:             id,
		Sender:         sender,
		Content:        content,
		ConversationID: chatID,
		Timestamp:      time.Now(),
		State:          models.MessageConfirmed,
	}
}

func TestList_LoadHistoryReplacesWholesale(t *testing.T) {
	l := NewList()
	l.LoadHistory("c1", []models.Message{confirmed("m1", "u1", "old", "c1")})
	l.LoadHistory("c1", []models.Message{
		confirmed("m2", "u1", "first", "c1"),
		confirmed("m3", "u2", "second", "c1"),
	})

	msgs := l.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "m2" || msgs[1].ID != "m3" {
		t.Errorf("history not replaced: %+v", msgs)
	}
}

func TestList_SendOptimistic(t *testing.T) {
	l := NewList()
	l.LoadHistory("c1", nil)

	msg, ok := l.SendOptimistic("hello", "me", "c1", time.Now())
	if !ok {
		t.Fatal("first send should create a pending entry")
	}
	if msg.State != models.MessagePending {
		t.Errorf("expected pending state, got %v", msg.State)
	}
	if msg.LocalID == "" {
		t.Error("pending entry has no correlation id")
	}

	// Identical unresolved send: no second pending entry.
	_, ok = l.SendOptimistic("hello", "me", "c1", time.Now())
	if ok {
		t.Error("identical pending send created a second entry")
	}
	if len(l.Messages()) != 1 {
		t.Errorf("expected 1 message, got %d", len(l.Messages()))
	}

	// Different content is a separate pending entry.
	if _, ok := l.SendOptimistic("bye", "me", "c1", time.Now()); !ok {
		t.Error("distinct content should create a pending entry")
	}
}

func TestList_EchoReplacesInPlace(t *testing.T) {
	l := NewList()
	l.LoadHistory("c1", []models.Message{confirmed("m1", "u2", "hi", "c1")})

	pending, _ := l.SendOptimistic("hello", "me", "c1", time.Now())
	l.LoadHistory("c1", append(l.Messages(), confirmed("m2", "u2", "again", "c1")))

	echo := confirmed("m3", "me", "hello", "c1")
	echo.LocalID = pending.LocalID
	if !l.ApplyEcho(echo) {
		t.Fatal("echo not applied")
	}

	msgs := l.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	// Position 1 was the pending entry; it must be confirmed in place.
	if msgs[1].ID != "m3" || msgs[1].State != models.MessageConfirmed {
		t.Errorf("pending entry not replaced in place: %+v", msgs[1])
	}
	if msgs[2].ID != "m2" {
		t.Errorf("list order disturbed: %+v", msgs)
	}
}

func TestList_EchoFIFOTieBreak(t *testing.T) {
	l := NewList()
	l.LoadHistory("c1", []models.Message{
		{Sender: "me", Content: "same", ConversationID: "c1", State: models.MessagePending, LocalID: "a"},
		{Sender: "me", Content: "same", ConversationID: "c1", State: models.MessagePending, LocalID: "b"},
	})

	// Echo without a correlation id: the earliest pending match wins.
	l.ApplyEcho(confirmed("m1", "me", "same", "c1"))

	msgs := l.Messages()
	if msgs[0].State != models.MessageConfirmed || msgs[0].ID != "m1" {
		t.Errorf("first pending entry not confirmed: %+v", msgs[0])
	}
	if msgs[1].State != models.MessagePending {
		t.Errorf("second pending entry should remain pending: %+v", msgs[1])
	}
}

func TestList_EchoByCorrelationID(t *testing.T) {
	l := NewList()
	l.LoadHistory("c1", []models.Message{
		{Sender: "me", Content: "same", ConversationID: "c1", State: models.MessagePending, LocalID: "a"},
		{Sender: "me", Content: "same", ConversationID: "c1", State: models.MessagePending, LocalID: "b"},
	})

	echo := confirmed("m9", "me", "same", "c1")
	echo.LocalID = "b"
	l.ApplyEcho(echo)

	msgs := l.Messages()
	if msgs[0].State != models.MessagePending {
		t.Errorf("entry a should remain pending: %+v", msgs[0])
	}
	if msgs[1].ID != "m9" || msgs[1].State != models.MessageConfirmed {
		t.Errorf("entry b not confirmed by correlation id: %+v", msgs[1])
	}
}

func TestList_EchoWithoutPendingAppends(t *testing.T) {
	l := NewList()
	// History reloaded mid-flight: no pending entry survives.
	l.LoadHistory("c1", []models.Message{confirmed("m1", "u2", "hi", "c1")})

	l.ApplyEcho(confirmed("m2", "me", "hello", "c1"))
	if len(l.Messages()) != 2 {
		t.Fatalf("echo without pending match should append, got %d messages", len(l.Messages()))
	}

	// Same echo again: id duplicate, dropped.
	l.ApplyEcho(confirmed("m2", "me", "hello", "c1"))
	if len(l.Messages()) != 2 {
		t.Errorf("duplicate echo appended, got %d messages", len(l.Messages()))
	}
}

func TestList_InboundMatchingPendingDropped(t *testing.T) {
	l := NewList()
	l.LoadHistory("c1", nil)
	l.SendOptimistic("hello", "me", "c1", time.Now())

	// A room broadcast of our own in-flight send: dropped, the echo
	// resolves the pending entry later.
	if l.ApplyInbound(confirmed("m1", "me", "hello", "c1")) {
		t.Error("broadcast of own pending send applied")
	}

	msgs := l.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].State != models.MessagePending {
		t.Errorf("pending entry consumed by inbound broadcast: %+v", msgs[0])
	}

	// Identical content from another sender is unrelated and appends.
	if !l.ApplyInbound(confirmed("m2", "u2", "hello", "c1")) {
		t.Error("broadcast from another sender dropped")
	}
	if len(l.Messages()) != 2 {
		t.Errorf("expected 2 messages, got %d", len(l.Messages()))
	}
}

func TestList_BroadcastBeforeEcho(t *testing.T) {
	l := NewList()
	l.LoadHistory("c1", nil)
	pending, _ := l.SendOptimistic("hello", "me", "c1", time.Now())

	// The server fans the send out to the room before the echo reaches
	// us. Whatever the arrival order, id m1 must show exactly once.
	l.ApplyInbound(confirmed("m1", "me", "hello", "c1"))

	echo := confirmed("m1", "me", "hello", "c1")
	echo.LocalID = pending.LocalID
	l.ApplyEcho(echo)

	msgs := l.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].ID != "m1" || msgs[0].State != models.MessageConfirmed {
		t.Errorf("send not confirmed: %+v", msgs[0])
	}
}

func TestList_EchoDropsPendingWhenIDAlreadyConfirmed(t *testing.T) {
	l := NewList()
	l.LoadHistory("c1", nil)
	pending, _ := l.SendOptimistic("hello :)", "me", "c1", time.Now())

	// The broadcast carries server-transformed content, so it does not
	// match the pending entry and appends.
	l.ApplyInbound(confirmed("m1", "me", "hello \U0001F642", "c1"))

	// The echo still correlates to the pending entry; confirming it in
	// place would show id m1 twice, so the pending entry goes instead.
	echo := confirmed("m1", "me", "hello \U0001F642", "c1")
	echo.LocalID = pending.LocalID
	if !l.ApplyEcho(echo) {
		t.Fatal("echo not applied")
	}

	msgs := l.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].ID != "m1" {
		t.Errorf("confirmed entry lost: %+v", msgs[0])
	}
}

func TestList_NoDuplicateConfirmedIDs(t *testing.T) {
	l := NewList()
	l.LoadHistory("c1", nil)

	for i := 0; i < 3; i++ {
		l.ApplyInbound(confirmed("m1", "u2", "hi", "c1"))
		l.ApplyEcho(confirmed("m1", "u2", "hi", "c1"))
	}

	seen := map[string]int{}
	for _, m := range l.Messages() {
		if m.State == models.MessageConfirmed {
			seen[m.ID]++
		}
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("confirmed id %s appears %d times", id, n)
		}
	}
	if len(l.Messages()) != 1 {
		t.Errorf("expected 1 message, got %d", len(l.Messages()))
	}
}

func TestList_IgnoresOtherConversations(t *testing.T) {
	l := NewList()
	l.LoadHistory("c1", nil)

	if l.ApplyInbound(confirmed("m1", "u2", "hi", "c2")) {
		t.Error("inbound for another conversation applied")
	}
	if l.ApplyEcho(confirmed("m2", "me", "hi", "c2")) {
		t.Error("echo for another conversation applied")
	}
	if len(l.Messages()) != 0 {
		t.Errorf("expected empty list, got %d", len(l.Messages()))
	}
}

func TestList_ChronologicalAppend(t *testing.T) {
	l := NewList()
	l.LoadHistory("c1", nil)

	for i := 0; i < 5; i++ {
		l.ApplyInbound(confirmed(fmt.Sprintf("m%d", i), "u2", fmt.Sprintf("msg %d", i), "c1"))
	}
	msgs := l.Messages()
	for i := range msgs {
		if msgs[i].Content != fmt.Sprintf("msg %d", i) {
			t.Fatalf("delivery order not preserved: %+v", msgs)
		}
	}
}

func TestList_Clear(t *testing.T) {
	l := NewList()
	l.LoadHistory("c1", []models.Message{confirmed("m1", "u2", "hi", "c1")})
	l.Clear()

	if l.ConversationID() != "" {
		t.Error("conversation id survives Clear")
	}
	if len(l.Messages()) != 0 {
		t.Error("messages survive Clear")
	}
}
