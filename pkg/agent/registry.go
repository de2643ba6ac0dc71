package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/wilhg/parlor/pkg/adapters/llm"
	"github.com/wilhg/parlor/pkg/errmodel"
)

// Registry keeps one backend's tools by name. Each backend constructs its own
// registry and hands it to its runner; nothing is process-global.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

// Register adds a tool, compiling its input schema up front so a malformed
// schema fails at startup rather than mid-turn.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is nil")
	}
	d := t.Describe()
	if d.Name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if err := CompileSchema(d.InputSchema); err != nil {
		return fmt.Errorf("tool %q schema: %w", d.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool %q already registered", d.Name)
	}
	r.tools[d.Name] = t
	r.order = append(r.order, d.Name)
	return nil
}

// MustRegister registers all tools or panics. Backends build their static
// tool sets at startup, where a registration failure is fatal anyway.
func (r *Registry) MustRegister(ts ...Tool) *Registry {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Resolve returns a tool by name.
func (r *Registry) Resolve(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Descriptor returns a registered tool's descriptor by name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	t, ok := r.Resolve(name)
	if !ok {
		return Descriptor{}, false
	}
	return t.Describe(), true
}

// Defs returns the tool definitions in registration order, in the shape the
// model adapters expect.
func (r *Registry) Defs() []llm.ToolDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		d := r.tools[name].Describe()
		var params map[string]any
		if len(d.InputSchema) > 0 {
			// Compiled at Register time, so this cannot fail.
			_ = json.Unmarshal(d.InputSchema, &params)
		}
		if params == nil {
			params = map[string]any{"type": "object"}
		}
		defs = append(defs, llm.ToolDef{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		})
	}
	return defs
}

// Invoke resolves a tool, validates the raw JSON arguments against its input
// schema, and runs it. Unknown tools and invalid arguments come back as
// validation errors so the caller can surface them to the model.
func (r *Registry) Invoke(ctx context.Context, tc *Context, name string, raw json.RawMessage) (map[string]any, error) {
	t, ok := r.Resolve(name)
	if !ok {
		return nil, errmodel.Validation("unknown_tool", "tool not found", map[string]any{"tool": name})
	}
	var args map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errmodel.Validation("invalid_input", "tool arguments are not valid JSON", map[string]any{"tool": name})
		}
	}
	if err := ValidateSchema(t.Describe().InputSchema, args); err != nil {
		return nil, errmodel.Validation("invalid_input", "tool input validation failed", map[string]any{"tool": name, "error": err.Error()})
	}
	return t.Invoke(ctx, tc, args)
}
