package agent

import (
	"encoding/json"
	"log/slog"

	"github.com/wilhg/parlor/pkg/chat"
	"github.com/wilhg/parlor/pkg/errmodel"
)

// Context carries the per-turn surface tools act through: the thread being
// answered, the chat store, and the event stream back to the client. Emitted
// done/replaced items are persisted by the server's emit wrapper, so tools
// stream rather than write to the store directly.
type Context struct {
	Thread *chat.ThreadMetadata
	Store  chat.Store
	Log    *slog.Logger

	emit chat.Emit
}

func NewContext(thread *chat.ThreadMetadata, store chat.Store, emit chat.Emit, log *slog.Logger) *Context {
	if log == nil {
		log = slog.Default()
	}
	return &Context{Thread: thread, Store: store, Log: log, emit: emit}
}

// Stream sends one event to the client.
func (tc *Context) Stream(ev chat.StreamEvent) {
	if tc.emit != nil {
		tc.emit(ev)
	}
}

// StreamText streams a completed assistant message on the current thread.
func (tc *Context) StreamText(text string) chat.ThreadItem {
	item := chat.NewAssistantMessage(tc.Thread.ID, text)
	tc.Stream(chat.ItemDone(item))
	return item
}

// StreamWidget marshals widget, streams it as a completed widget item, and
// returns the item so a tool can later replace it in place.
func (tc *Context) StreamWidget(widget any, copyText string) (chat.ThreadItem, error) {
	b, err := json.Marshal(widget)
	if err != nil {
		return chat.ThreadItem{}, errmodel.System("widget_encode", "failed to encode widget", nil, err)
	}
	item := chat.NewWidgetItem(tc.Thread.ID, b, copyText)
	tc.Stream(chat.ItemDone(item))
	return item, nil
}

// ReplaceWidget re-renders an existing widget item with new content.
func (tc *Context) ReplaceWidget(item chat.ThreadItem, widget any) error {
	b, err := json.Marshal(widget)
	if err != nil {
		return errmodel.System("widget_encode", "failed to encode widget", nil, err)
	}
	item.Widget = b
	tc.Stream(chat.ItemReplaced(item))
	return nil
}

// StreamEffect sends a named client effect with its payload.
func (tc *Context) StreamEffect(name string, data map[string]any) {
	tc.Stream(chat.Effect(name, data))
}

// StreamProgress sends a transient progress note.
func (tc *Context) StreamProgress(text string) {
	tc.Stream(chat.Progress(text))
}

// AddHiddenContext records model-only context on the thread. The item is
// persisted and fed into later turns but never rendered to the user.
func (tc *Context) AddHiddenContext(text string) chat.ThreadItem {
	item := chat.NewHiddenContext(tc.Thread.ID, text)
	tc.Stream(chat.ItemDone(item))
	return item
}

// GenerateID mints a prefixed identifier, e.g. GenerateID("fact").
func (tc *Context) GenerateID(kind string) string {
	return chat.NewID(kind)
}
