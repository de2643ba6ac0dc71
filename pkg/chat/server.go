package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/parlor/pkg/errmodel"
)

// Handler is what each example backend implements: respond to a new user
// message and handle UI-originated actions. Both receive an emit callback for
// outbound stream events.
type Handler interface {
	Respond(ctx context.Context, thread *ThreadMetadata, item *ThreadItem, emit Emit) error
	Action(ctx context.Context, thread *ThreadMetadata, action Action, sender *ThreadItem, emit Emit) error
}

// Server drives one example backend: it decodes the opaque protocol payload,
// resolves the thread, invokes the Handler, and persists every item that flows
// through the event stream.
type Server struct {
	store   Store
	handler Handler
}

// NewServer wires a handler to a thread store.
func NewServer(store Store, handler Handler) *Server {
	return &Server{store: store, handler: handler}
}

// Store exposes the thread store for example servers that need direct access.
func (s *Server) Store() Store { return s.store }

// request is the decoded inbound protocol payload.
type request struct {
	Op       string  `json:"op"`
	ThreadID string  `json:"threadId,omitempty"`
	Text     string  `json:"text,omitempty"`
	Tags     []Tag   `json:"tags,omitempty"`
	ItemID   string  `json:"itemId,omitempty"`
	Action   *Action `json:"action,omitempty"`
	Limit    int     `json:"limit,omitempty"`
	After    string  `json:"after,omitempty"`
	Order    string  `json:"order,omitempty"`
}

// Process handles one inbound POST payload and returns the outbound events in
// emission order.
func (s *Server) Process(ctx context.Context, payload []byte) ([]StreamEvent, error) {
	tr := otel.Tracer("chat/server")

	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errmodel.Validation("bad_json", "request payload is not valid JSON", nil)
	}

	ctx, span := tr.Start(ctx, "Server.Process", trace.WithAttributes(
		attribute.String("chat.op", req.Op),
		attribute.String("thread.id", req.ThreadID),
	))
	defer span.End()

	var events []StreamEvent
	emit := s.persistingEmit(ctx, &events)

	switch req.Op {
	case "threads.create":
		thread := ThreadMetadata{ID: NewID("thread"), CreatedAt: time.Now().UTC()}
		if err := s.store.SaveThread(ctx, thread); err != nil {
			return nil, err
		}
		events = append(events, StreamEvent{Type: EventThreadCreated, Thread: &thread})
		return events, nil

	case "threads.list":
		page, err := s.store.LoadThreads(ctx, req.Limit, req.After, req.Order)
		if err != nil {
			return nil, err
		}
		for i := range page.Data {
			events = append(events, StreamEvent{Type: EventThreadCreated, Thread: &page.Data[i]})
		}
		return events, nil

	case "threads.delete":
		if req.ThreadID == "" {
			return nil, errmodel.Validation("missing_thread", "threadId is required", nil)
		}
		if err := s.store.DeleteThread(ctx, req.ThreadID); err != nil {
			return nil, err
		}
		return events, nil

	case "threads.add_user_message":
		thread, err := s.ensureThread(ctx, req.ThreadID)
		if err != nil {
			return nil, err
		}
		item := NewUserMessage(thread.ID, req.Text, req.Tags)
		if err := s.store.AddThreadItem(ctx, thread.ID, item); err != nil {
			return nil, err
		}
		if err := s.handler.Respond(ctx, &thread, &item, emit); err != nil {
			span.RecordError(err)
			return nil, err
		}
		// Respond may retitle the thread through the metadata pointer.
		if err := s.store.SaveThread(ctx, thread); err != nil {
			return nil, err
		}
		return events, nil

	case "threads.custom_action":
		if req.Action == nil {
			return nil, errmodel.Validation("missing_action", "action is required", nil)
		}
		thread, err := s.ensureThread(ctx, req.ThreadID)
		if err != nil {
			return nil, err
		}
		var sender *ThreadItem
		if req.ItemID != "" {
			if item, err := s.store.LoadItem(ctx, thread.ID, req.ItemID); err == nil {
				sender = &item
			}
		}
		if err := s.handler.Action(ctx, &thread, *req.Action, sender, emit); err != nil {
			span.RecordError(err)
			return nil, err
		}
		if err := s.store.SaveThread(ctx, thread); err != nil {
			return nil, err
		}
		return events, nil

	case "items.list":
		thread, err := s.ensureThread(ctx, req.ThreadID)
		if err != nil {
			return nil, err
		}
		page, err := s.store.LoadThreadItems(ctx, thread.ID, req.After, req.Limit, req.Order)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Data {
			events = append(events, ItemDone(item))
		}
		return events, nil

	default:
		return nil, errmodel.Validation("unknown_op", fmt.Sprintf("unknown op %q", req.Op), nil)
	}
}

// ensureThread loads the thread or lazily creates it, matching the keyed-store
// creation-on-first-access behavior.
func (s *Server) ensureThread(ctx context.Context, threadID string) (ThreadMetadata, error) {
	if threadID == "" {
		return ThreadMetadata{}, errmodel.Validation("missing_thread", "threadId is required", nil)
	}
	thread, err := s.store.LoadThread(ctx, threadID)
	if err == nil {
		return thread, nil
	}
	if !errmodel.IsCategory(err, errmodel.CategoryNotFound) {
		return ThreadMetadata{}, err
	}
	thread = ThreadMetadata{ID: threadID, CreatedAt: time.Now().UTC()}
	if err := s.store.SaveThread(ctx, thread); err != nil {
		return ThreadMetadata{}, err
	}
	return thread, nil
}

// persistingEmit collects events and writes item events through to the store,
// so a streamed item is durable without the handler saving it explicitly.
func (s *Server) persistingEmit(ctx context.Context, events *[]StreamEvent) Emit {
	return func(ev StreamEvent) {
		if ev.Item != nil {
			switch ev.Type {
			case EventThreadItemDone:
				_ = s.store.AddThreadItem(ctx, ev.Item.ThreadID, *ev.Item)
			case EventThreadItemReplaced:
				_ = s.store.SaveItem(ctx, ev.Item.ThreadID, *ev.Item)
			}
		}
		*events = append(*events, ev)
	}
}

// ServeHTTP exposes Process as the single POST endpoint, streaming events back
// as server-sent events.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errmodel.WriteHTTP(w, r, errmodel.Validation("method_not_allowed", "POST required", nil))
		return
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("bad_body", "failed to read request body", nil))
		return
	}
	events, err := s.Process(r.Context(), payload)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	WriteSSE(w, events)
}

// WriteSSE encodes events as a text/event-stream response.
func WriteSSE(w http.ResponseWriter, events []StreamEvent) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)
	for _, ev := range events {
		b, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, b)
		if flusher != nil {
			flusher.Flush()
		}
	}
}
