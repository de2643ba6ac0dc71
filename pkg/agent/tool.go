// Package agent defines the tool contract and the respond loop that drives a
// model turn against a conversation thread.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Descriptor declares the static interface of a tool.
// InputSchema is a JSON Schema (draft 2020-12) in UTF-8 bytes.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema []byte `json:"input_schema"`
	// Stop marks a tool that ends the turn. Widgets and client effects speak
	// for themselves, so no trailing narration is generated after one runs.
	Stop bool `json:"stop,omitempty"`
}

// Tool defines a callable unit with schema-validated inputs. Invoke receives
// the per-turn Context so it can stream widgets, effects, and hidden context
// back onto the thread.
type Tool interface {
	Describe() Descriptor
	Invoke(ctx context.Context, tc *Context, args map[string]any) (map[string]any, error)
}

// Func adapts a plain function into a Tool.
type Func struct {
	Desc Descriptor
	Fn   func(ctx context.Context, tc *Context, args map[string]any) (map[string]any, error)
}

func (f Func) Describe() Descriptor { return f.Desc }

func (f Func) Invoke(ctx context.Context, tc *Context, args map[string]any) (map[string]any, error) {
	return f.Fn(ctx, tc, args)
}

// Schema derives a JSON Schema from an args struct type. It panics on
// failure: schemas are built from static types at startup, so an error here
// is a programming mistake, not a runtime condition.
func Schema[T any]() []byte {
	sch, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("agent: derive schema for %T: %v", *new(T), err))
	}
	b, err := json.Marshal(sch)
	if err != nil {
		panic(fmt.Sprintf("agent: marshal schema for %T: %v", *new(T), err))
	}
	return b
}
