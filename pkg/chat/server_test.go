package chat

import (
	"context"
	"encoding/json"
	"testing"
)

// echoHandler answers every user message with one assistant message and
// routes actions through a Router.
type echoHandler struct {
	router *Router
}

func (h *echoHandler) Respond(ctx context.Context, thread *ThreadMetadata, item *ThreadItem, emit Emit) error {
	emit(ItemDone(NewAssistantMessage(thread.ID, "echo: "+item.Text)))
	return nil
}

func (h *echoHandler) Action(ctx context.Context, thread *ThreadMetadata, action Action, sender *ThreadItem, emit Emit) error {
	return h.router.Dispatch(ctx, thread, action, sender, emit)
}

func TestProcessCreateThread(t *testing.T) {
	srv := NewServer(NewMemoryStore(), &echoHandler{router: NewRouter(nil)})
	events, err := srv.Process(context.Background(), []byte(`{"op":"threads.create"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != EventThreadCreated || events[0].Thread == nil {
		t.Fatalf("events=%+v", events)
	}
	if _, err := srv.Store().LoadThread(context.Background(), events[0].Thread.ID); err != nil {
		t.Fatalf("created thread not stored: %v", err)
	}
}

func TestProcessUserMessagePersistsBothSides(t *testing.T) {
	ctx := context.Background()
	srv := NewServer(NewMemoryStore(), &echoHandler{router: NewRouter(nil)})

	payload, _ := json.Marshal(request{Op: "threads.add_user_message", ThreadID: "t1", Text: "hello"})
	events, err := srv.Process(ctx, payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Item.Text != "echo: hello" {
		t.Fatalf("events=%+v", events)
	}

	page, err := srv.Store().LoadThreadItems(ctx, "t1", "", 0, OrderAsc)
	if err != nil {
		t.Fatal(err)
	}
	// User item added by Process, assistant item persisted through emit.
	if len(page.Data) != 2 {
		t.Fatalf("items=%d want 2", len(page.Data))
	}
	if page.Data[0].Type != ItemUserMessage || page.Data[1].Type != ItemAssistantMessage {
		t.Fatalf("unexpected item types: %v %v", page.Data[0].Type, page.Data[1].Type)
	}
}

func TestProcessListAndDeleteThreads(t *testing.T) {
	ctx := context.Background()
	srv := NewServer(NewMemoryStore(), &echoHandler{router: NewRouter(nil)})

	for range 2 {
		if _, err := srv.Process(ctx, []byte(`{"op":"threads.create"}`)); err != nil {
			t.Fatal(err)
		}
	}

	events, err := srv.Process(ctx, []byte(`{"op":"threads.list"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("threads=%d want 2", len(events))
	}

	payload, _ := json.Marshal(request{Op: "threads.delete", ThreadID: events[0].Thread.ID})
	if _, err := srv.Process(ctx, payload); err != nil {
		t.Fatal(err)
	}
	events, err = srv.Process(ctx, []byte(`{"op":"threads.list"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("threads=%d want 1 after delete", len(events))
	}
}

func TestProcessUnknownActionYieldsNoEvents(t *testing.T) {
	srv := NewServer(NewMemoryStore(), &echoHandler{router: NewRouter(nil)})
	payload, _ := json.Marshal(request{
		Op:       "threads.custom_action",
		ThreadID: "t1",
		Action:   &Action{Type: "nonexistent.action", Payload: []byte(`{}`)},
	})
	events, err := srv.Process(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("want zero events, got %d", len(events))
	}
}

func TestProcessRejectsBadEnvelope(t *testing.T) {
	srv := NewServer(NewMemoryStore(), &echoHandler{router: NewRouter(nil)})
	if _, err := srv.Process(context.Background(), []byte(`not json`)); err == nil {
		t.Fatal("want error for invalid JSON")
	}
	if _, err := srv.Process(context.Background(), []byte(`{"op":"bogus"}`)); err == nil {
		t.Fatal("want error for unknown op")
	}
}
