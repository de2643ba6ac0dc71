// Package convert turns stored thread items into model input. Each example
// supplies a Converter; the interface is fixed and statically typed, one
// method per thread-item variant, so there is no reflective dispatch on
// converter capabilities.
package convert

import (
	"fmt"
	"strings"

	"github.com/wilhg/parlor/pkg/adapters/llm"
	"github.com/wilhg/parlor/pkg/chat"
)

// Converter maps one thread-item variant to model input. Widget returns
// ok=false to omit the item from model input entirely.
type Converter interface {
	UserMessage(item chat.ThreadItem) (llm.Message, error)
	AssistantMessage(item chat.ThreadItem) (llm.Message, error)
	HiddenContext(item chat.ThreadItem) (llm.Message, error)
	Widget(item chat.ThreadItem) (llm.Message, bool, error)
	// Tag renders an inline user-message tag as text the model can read.
	Tag(tag chat.Tag) (string, error)
}

// Base provides the default conversions. Examples embed it and override the
// variants they care about (the metro map overrides Tag for station details).
type Base struct{}

func (Base) UserMessage(item chat.ThreadItem) (llm.Message, error) {
	return llm.Message{Role: "user", Content: item.Text}, nil
}

func (Base) AssistantMessage(item chat.ThreadItem) (llm.Message, error) {
	return llm.Message{Role: "assistant", Content: item.Text}, nil
}

// HiddenContext enters the model input as user text; the client never sees it.
func (Base) HiddenContext(item chat.ThreadItem) (llm.Message, error) {
	return llm.Message{Role: "user", Content: item.Text}, nil
}

func (Base) Widget(chat.ThreadItem) (llm.Message, bool, error) {
	return llm.Message{}, false, nil
}

func (Base) Tag(tag chat.Tag) (string, error) {
	return fmt.Sprintf("[tagged: %s]", tag.Text), nil
}

// ToInput converts items (oldest first) into model messages using conv.
// User-message tags are rendered through conv.Tag and appended to the text.
func ToInput(conv Converter, items []chat.ThreadItem) ([]llm.Message, error) {
	out := make([]llm.Message, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case chat.ItemUserMessage:
			msg, err := conv.UserMessage(item)
			if err != nil {
				return nil, err
			}
			if len(item.Tags) > 0 {
				var sb strings.Builder
				sb.WriteString(msg.Content)
				for _, tag := range item.Tags {
					rendered, err := conv.Tag(tag)
					if err != nil {
						return nil, err
					}
					sb.WriteString("\n")
					sb.WriteString(rendered)
				}
				msg.Content = sb.String()
			}
			out = append(out, msg)
		case chat.ItemAssistantMessage:
			msg, err := conv.AssistantMessage(item)
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		case chat.ItemHiddenContext:
			msg, err := conv.HiddenContext(item)
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		case chat.ItemWidget:
			msg, ok, err := conv.Widget(item)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, msg)
			}
		}
	}
	return out, nil
}
