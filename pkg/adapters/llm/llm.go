// Package llm defines the minimal interfaces the example backends need from a
// hosted model provider: plain text generation and a tool-calling turn loop.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message represents a chat message with a role and content.
type Message struct {
	Role    string
	Content string
}

// GenerateResult contains the model's text output and token usage if available.
type GenerateResult struct {
	Text         string
	PromptTokens int
	OutputTokens int
	TotalTokens  int
	Model        string
}

// LLM defines a minimal chat/text generation interface.
type LLM interface {
	// Name returns provider name (e.g., "openai").
	Name() string
	// Generate creates a completion from a list of messages.
	Generate(ctx context.Context, messages []Message, opts map[string]any) (GenerateResult, error)
}

// ToolDef declares one callable tool for a turn. Parameters is a JSON Schema
// as a generic document.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolOutput is the result of one tool invocation. Stop is the
// stop-after-this-tool signal: when set, the turn ends without a further model
// call, so a widget or client effect is not followed by redundant narration.
type ToolOutput struct {
	Content string
	Stop    bool
}

// ToolInvoker executes a named tool with raw JSON arguments. A returned error
// aborts the turn; user-facing failures should be folded into Content instead.
type ToolInvoker func(ctx context.Context, name string, args json.RawMessage) (ToolOutput, error)

// ToolRunner drives a model turn with tools: the provider calls invoke for
// each tool call the model makes, feeds results back, and returns the final
// assistant text (empty if a Stop tool ended the turn). SDK-specific message
// echoing stays inside the adapter.
type ToolRunner interface {
	RunTools(ctx context.Context, messages []Message, tools []ToolDef, invoke ToolInvoker, opts map[string]any) (GenerateResult, error)
}

// Factory constructs an LLM from provider-specific config.
type Factory func(ctx context.Context, cfg map[string]any) (LLM, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers an LLM factory under a provider name.
func Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("llm: empty provider name")
	}
	if f == nil {
		return fmt.Errorf("llm: nil factory for %q", name)
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("llm: provider %q already registered", name)
	}
	factories[name] = f
	return nil
}

// Resolve gets a registered factory by name.
func Resolve(name string) (Factory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Range iterates all registered factories.
func Range(fn func(name string, f Factory)) {
	regMu.RLock()
	defer regMu.RUnlock()
	for n, f := range factories {
		fn(n, f)
	}
}
