// Package chat models the thread/event surface of the hosted chat-UI protocol:
// thread metadata, thread items, and the tagged stream events a backend emits
// after each state mutation. The hosted client renders these; this package only
// defines the shapes and the thread stores that hold them.
package chat

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ThreadMetadata identifies one conversation thread.
type ThreadMetadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ItemType discriminates thread items.
type ItemType string

const (
	ItemUserMessage      ItemType = "user_message"
	ItemAssistantMessage ItemType = "assistant_message"
	ItemWidget           ItemType = "widget"
	ItemHiddenContext    ItemType = "hidden_context"
)

// Tag is an inline reference attached to a user message (for example a tagged
// metro station). Data carries client-provided detail keyed by the example.
type Tag struct {
	ID   string            `json:"id"`
	Text string            `json:"text"`
	Data map[string]string `json:"data,omitempty"`
}

// ThreadItem is one entry in a thread's transcript.
//
// Text holds the content for message and hidden-context items; Widget holds
// the structured payload for widget items. Hidden-context items are sent to
// the model as input but never rendered by the client.
type ThreadItem struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"threadId"`
	Type      ItemType        `json:"type"`
	CreatedAt time.Time       `json:"createdAt"`
	Text      string          `json:"text,omitempty"`
	Tags      []Tag           `json:"tags,omitempty"`
	Widget    json.RawMessage `json:"widget,omitempty"`
	CopyText  string          `json:"copyText,omitempty"`
}

// Clone returns an independent copy safe to hand to callers.
func (it ThreadItem) Clone() ThreadItem {
	out := it
	out.Tags = append([]Tag(nil), it.Tags...)
	for i, tg := range out.Tags {
		if tg.Data != nil {
			d := make(map[string]string, len(tg.Data))
			for k, v := range tg.Data {
				d[k] = v
			}
			out.Tags[i].Data = d
		}
	}
	out.Widget = append(json.RawMessage(nil), it.Widget...)
	return out
}

// Stream event type tags.
const (
	EventThreadCreated      = "thread.created"
	EventThreadItemDone     = "thread.item.done"
	EventThreadItemReplaced = "thread.item.replaced"
	EventClientEffect       = "client_effect"
	EventProgressUpdate     = "progress_update"
)

// ClientEffect instructs the UI to update local state without rendering a new
// message.
type ClientEffect struct {
	Name string         `json:"name"`
	Data map[string]any `json:"data,omitempty"`
}

// StreamEvent is one tagged item of the outbound event stream.
type StreamEvent struct {
	Type   string          `json:"type"`
	Thread *ThreadMetadata `json:"thread,omitempty"`
	Item   *ThreadItem     `json:"item,omitempty"`
	Effect *ClientEffect   `json:"effect,omitempty"`
	Text   string          `json:"text,omitempty"`
}

// Emit receives outbound stream events from handlers.
type Emit func(StreamEvent)

// ItemDone wraps a completed thread item.
func ItemDone(item ThreadItem) StreamEvent {
	return StreamEvent{Type: EventThreadItemDone, Item: &item}
}

// ItemReplaced signals an in-place update of an existing item (widget refresh).
func ItemReplaced(item ThreadItem) StreamEvent {
	return StreamEvent{Type: EventThreadItemReplaced, Item: &item}
}

// Effect wraps a client-side effect.
func Effect(name string, data map[string]any) StreamEvent {
	return StreamEvent{Type: EventClientEffect, Effect: &ClientEffect{Name: name, Data: data}}
}

// Progress wraps a transient progress note.
func Progress(text string) StreamEvent {
	return StreamEvent{Type: EventProgressUpdate, Text: text}
}

// NewID returns a short prefixed identifier, e.g. "msg_1f0a9c2b".
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// NewUserMessage builds a user message item for a thread.
func NewUserMessage(threadID, text string, tags []Tag) ThreadItem {
	return ThreadItem{
		ID:        NewID("msg"),
		ThreadID:  threadID,
		Type:      ItemUserMessage,
		CreatedAt: time.Now().UTC(),
		Text:      text,
		Tags:      tags,
	}
}

// NewAssistantMessage builds an assistant message item for a thread.
func NewAssistantMessage(threadID, text string) ThreadItem {
	return ThreadItem{
		ID:        NewID("msg"),
		ThreadID:  threadID,
		Type:      ItemAssistantMessage,
		CreatedAt: time.Now().UTC(),
		Text:      text,
	}
}

// NewWidgetItem builds a widget item carrying a structured payload.
func NewWidgetItem(threadID string, widget json.RawMessage, copyText string) ThreadItem {
	return ThreadItem{
		ID:        NewID("wid"),
		ThreadID:  threadID,
		Type:      ItemWidget,
		CreatedAt: time.Now().UTC(),
		Widget:    widget,
		CopyText:  copyText,
	}
}

// NewHiddenContext builds a hidden context item; the content reaches the model
// on later turns but is never rendered.
func NewHiddenContext(threadID, content string) ThreadItem {
	return ThreadItem{
		ID:        NewID("msg"),
		ThreadID:  threadID,
		Type:      ItemHiddenContext,
		CreatedAt: time.Now().UTC(),
		Text:      content,
	}
}
