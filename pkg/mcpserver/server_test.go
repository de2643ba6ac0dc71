package mcpserver

import (
	"context"
	"strings"
	"testing"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/parlor/pkg/agent"
	"github.com/wilhg/parlor/pkg/chat"
	"github.com/wilhg/parlor/pkg/errmodel"
)

func greetRegistry() *agent.Registry {
	return agent.NewRegistry().MustRegister(agent.Func{
		Desc: agent.Descriptor{
			Name:        "greet",
			Description: "Greets someone by name",
			InputSchema: []byte(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"],"additionalProperties":false}`),
		},
		Fn: func(_ context.Context, _ *agent.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"greeting": "hello " + args["name"].(string)}, nil
		},
	}, agent.Func{
		Desc: agent.Descriptor{
			Name:        "always_fails",
			Description: "Rejects every request",
			InputSchema: []byte(`{"type":"object"}`),
		},
		Fn: func(context.Context, *agent.Context, map[string]any) (map[string]any, error) {
			return nil, errmodel.Validation("nope", "this never works", nil)
		},
	})
}

func TestToolRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv, err := New(ctx, "parlor-test", "v0.0.1", greetRegistry(), chat.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}

	ct, st := mcp.NewInMemoryTransports()
	session, err := srv.Connect(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tools.Tools) != 2 {
		t.Fatalf("tools=%+v", tools.Tools)
	}

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "greet",
		Arguments: map[string]any{"name": "sam"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}
	text := res.Content[0].(*mcp.TextContent).Text
	if !strings.Contains(text, "hello sam") {
		t.Fatalf("content=%q", text)
	}
}

func TestToolFailureIsResultNotProtocolError(t *testing.T) {
	ctx := context.Background()
	srv, err := New(ctx, "parlor-test", "v0.0.1", greetRegistry(), chat.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}

	ct, st := mcp.NewInMemoryTransports()
	session, err := srv.Connect(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cs.Close()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "always_fails",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("tool failure should surface as a tool error result")
	}
	text := res.Content[0].(*mcp.TextContent).Text
	if !strings.Contains(text, "this never works") {
		t.Fatalf("content=%q", text)
	}
}
