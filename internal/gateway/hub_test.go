package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func newTestClient(userID string) *Client {
	return &Client{
		id:     "test-" + userID,
		userID: userID,
		send:   make(chan []byte, 8),
		rooms:  make(map[string]struct{}),
	}
}

// waitFor polls until cond holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

// recvFrame pulls one frame off the client's send queue.
func recvFrame(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		if !ok {
			t.Fatalf("send channel closed")
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame received")
	}
	return Frame{}
}

func expectNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func TestHub_RegisterJoinAndFanOut(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a := newTestClient("alice")
	b := newTestClient("bob")
	h.register <- a
	h.register <- b
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	h.Join(a, "conv-1")
	h.Join(b, "conv-1")
	h.Join(a, "conv-1") // joining twice is a no-op
	if h.RoomSize("conv-1") != 2 {
		t.Fatalf("expected room size 2, got %d", h.RoomSize("conv-1"))
	}
	if !h.InRoom(a, "conv-1") || !h.InRoom(b, "conv-1") {
		t.Fatalf("both clients should be room members")
	}

	h.EmitToRoom("conv-1", EventMessagesRead, MessagesReadEvent{ConversationID: "conv-1", ReaderID: "alice", Count: 3})
	for _, c := range []*Client{a, b} {
		f := recvFrame(t, c)
		if f.Event != EventMessagesRead {
			t.Fatalf("expected %s frame, got %s", EventMessagesRead, f.Event)
		}
		var p MessagesReadEvent
		if err := json.Unmarshal(f.Data, &p); err != nil || p.Count != 3 || p.ReaderID != "alice" {
			t.Fatalf("unexpected payload: %s (%v)", f.Data, err)
		}
	}

	h.EmitToRoomExcept("conv-1", a, EventTyping, TypingPayload{ConversationID: "conv-1", UserID: "alice"})
	if f := recvFrame(t, b); f.Event != EventTyping {
		t.Fatalf("expected typing frame for b, got %s", f.Event)
	}
	expectNoFrame(t, a)
}

func TestHub_JoinBeforeRegisterIsIgnored(t *testing.T) {
	h := NewHub()
	c := newTestClient("ghost")

	h.Join(c, "conv-1")
	if h.RoomSize("conv-1") != 0 {
		t.Fatalf("unregistered client must not join rooms")
	}
}

func TestHub_SetTyping_ReportsTransitionsOnly(t *testing.T) {
	h := NewHub()
	c := newTestClient("alice")

	if !h.SetTyping(c, "conv-1", true) {
		t.Fatalf("first typing=true is a transition")
	}
	if h.SetTyping(c, "conv-1", true) {
		t.Fatalf("repeated typing=true is not a transition")
	}
	if !h.SetTyping(c, "conv-1", false) {
		t.Fatalf("typing=false after true is a transition")
	}
	if h.SetTyping(c, "conv-1", false) {
		t.Fatalf("repeated typing=false is not a transition")
	}
}

func TestHub_Unregister_EmitsStopTypingToRoom(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a := newTestClient("alice")
	b := newTestClient("bob")
	h.register <- a
	h.register <- b
	waitFor(t, func() bool { return h.ClientCount() == 2 })
	h.Join(a, "conv-1")
	h.Join(b, "conv-1")
	h.SetTyping(a, "conv-1", true)

	h.unregister <- a
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	f := recvFrame(t, b)
	if f.Event != EventStopTyping {
		t.Fatalf("expected stop_typing on disconnect, got %s", f.Event)
	}
	var p TypingPayload
	if err := json.Unmarshal(f.Data, &p); err != nil || p.UserID != "alice" {
		t.Fatalf("unexpected payload: %s (%v)", f.Data, err)
	}

	// The departed client's send channel is closed.
	if _, ok := <-a.send; ok {
		t.Fatalf("expected closed send channel for unregistered client")
	}
	if h.RoomSize("conv-1") != 1 {
		t.Fatalf("expected 1 remaining member, got %d", h.RoomSize("conv-1"))
	}
}

func TestHub_Run_ShutdownClosesClients(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := newTestClient("alice")
	h.register <- c
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if _, ok := <-c.send; ok {
		t.Fatalf("expected closed send channel after shutdown")
	}
}

func TestClient_SendAfterShutdownDoesNotPanic(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := newTestClient("alice")
	h.register <- c
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	// A dispatcher goroutine may still be answering a command when shutdown
	// closes the send channel; late frames must be dropped, not panic.
	c.sendError(ErrCodeStorage, EventSendMessage, "late")
	c.sendEvent(EventTyping, TypingPayload{ConversationID: "conv-1"})
	if c.queue([]byte(`{}`)) {
		t.Fatalf("queue must reject frames after shutdown")
	}
}

func TestHub_Emit_DropsWhenBufferFull(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := newTestClient("slow")
	c.send = make(chan []byte, 1)
	h.register <- c
	waitFor(t, func() bool { return h.ClientCount() == 1 })
	h.Join(c, "conv-1")

	// Second emit must not block the hub even though nobody drains.
	h.EmitToRoom("conv-1", EventTyping, TypingPayload{ConversationID: "conv-1"})
	doneEmit := make(chan struct{})
	go func() {
		h.EmitToRoom("conv-1", EventTyping, TypingPayload{ConversationID: "conv-1"})
		close(doneEmit)
	}()
	select {
	case <-doneEmit:
	case <-time.After(2 * time.Second):
		t.Fatalf("emit blocked on a full send buffer")
	}
}
