package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/wilhg/parlor/pkg/errmodel"
)

func testThread() *ThreadMetadata {
	return &ThreadMetadata{ID: "t1", CreatedAt: time.Now().UTC()}
}

func collect(events *[]StreamEvent) Emit {
	return func(ev StreamEvent) { *events = append(*events, ev) }
}

func TestDispatchUnknownTypeIsSilentlyIgnored(t *testing.T) {
	r := NewRouter(nil)
	var events []StreamEvent
	err := r.Dispatch(context.Background(), testThread(), Action{Type: "nonexistent.action", Payload: []byte(`{}`)}, nil, collect(&events))
	if err != nil {
		t.Fatalf("unknown action must not error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("unknown action must emit nothing, got %d events", len(events))
	}
}

func TestDispatchValidationFailureShortCircuits(t *testing.T) {
	r := NewRouter(nil)
	called := false
	schema := []byte(`{"type":"object","properties":{"name":{"type":"string","minLength":1}},"required":["name"]}`)
	if err := r.Register("cats.select_name", schema, func(ctx context.Context, thread *ThreadMetadata, payload json.RawMessage, sender *ThreadItem, emit Emit) error {
		called = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	var events []StreamEvent
	err := r.Dispatch(context.Background(), testThread(), Action{Type: "cats.select_name", Payload: []byte(`{"wrong":true}`)}, nil, collect(&events))
	if err != nil {
		t.Fatalf("validation failure must not surface: %v", err)
	}
	if called {
		t.Fatal("handler ran on invalid payload")
	}
	if len(events) != 0 {
		t.Fatalf("invalid payload must emit nothing, got %d", len(events))
	}
}

func TestDispatchRunsHandlerOnValidPayload(t *testing.T) {
	r := NewRouter(nil)
	schema := []byte(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`)
	var gotName string
	if err := r.Register("cats.select_name", schema, func(ctx context.Context, thread *ThreadMetadata, payload json.RawMessage, sender *ThreadItem, emit Emit) error {
		var p struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		gotName = p.Name
		emit(ItemDone(NewAssistantMessage(thread.ID, "ok")))
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	var events []StreamEvent
	err := r.Dispatch(context.Background(), testThread(), Action{Type: "cats.select_name", Payload: []byte(`{"name":"Mochi"}`)}, nil, collect(&events))
	if err != nil {
		t.Fatal(err)
	}
	if gotName != "Mochi" || len(events) != 1 {
		t.Fatalf("name=%q events=%d", gotName, len(events))
	}
}

func TestDispatchUserErrorBecomesMessage(t *testing.T) {
	r := NewRouter(nil)
	if err := r.Register("seats.change", nil, func(ctx context.Context, thread *ThreadMetadata, payload json.RawMessage, sender *ThreadItem, emit Emit) error {
		return errmodel.Validation("invalid_seat", "Seat must be a row number followed by a letter, for example 12C.", nil)
	}); err != nil {
		t.Fatal(err)
	}

	var events []StreamEvent
	err := r.Dispatch(context.Background(), testThread(), Action{Type: "seats.change", Payload: []byte(`{}`)}, nil, collect(&events))
	if err != nil {
		t.Fatalf("user errors must not surface: %v", err)
	}
	if len(events) != 1 || events[0].Item == nil || events[0].Item.Type != ItemAssistantMessage {
		t.Fatalf("want one assistant message, got %+v", events)
	}
}
