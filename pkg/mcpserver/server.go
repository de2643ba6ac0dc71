// Package mcpserver exports a tool registry over the Model Context Protocol,
// so the same tools a chat backend exposes to its model can be driven from
// any MCP client.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/parlor/pkg/agent"
	"github.com/wilhg/parlor/pkg/chat"
)

// Server wraps an MCP server around an agent.Registry. Tool invocations run
// against a dedicated scratch thread: streamed widgets and messages land
// there instead of a user-visible conversation.
type Server struct {
	srv    *mcp.Server
	store  chat.Store
	thread chat.ThreadMetadata
	log    *slog.Logger
}

type Option func(*Server)

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New builds an MCP server exposing every tool in reg.
func New(ctx context.Context, name, version string, reg *agent.Registry, store chat.Store, opts ...Option) (*Server, error) {
	s := &Server{
		srv:   mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		store: store,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.thread = chat.ThreadMetadata{ID: chat.NewID("th")}
	if err := store.SaveThread(ctx, s.thread); err != nil {
		return nil, err
	}

	for _, def := range reg.Defs() {
		desc, _ := reg.Descriptor(def.Name)
		sch := new(jsonschema.Schema)
		if len(desc.InputSchema) > 0 {
			if err := json.Unmarshal(desc.InputSchema, sch); err != nil {
				return nil, fmt.Errorf("tool %q schema: %w", def.Name, err)
			}
		}
		s.srv.AddTool(&mcp.Tool{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: sch,
		}, s.handler(reg, desc.Name))
	}
	return s, nil
}

func (s *Server) handler(reg *agent.Registry, name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tc := agent.NewContext(&s.thread, s.store, s.emit, s.log)
		out, err := reg.Invoke(ctx, tc, name, req.Params.Arguments)
		if err != nil {
			// Tool failures are results, not protocol errors.
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			}, nil
		}
		text := "{}"
		if out != nil {
			b, err := json.Marshal(out)
			if err != nil {
				return nil, err
			}
			text = string(b)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, nil
	}
}

// emit persists streamed items onto the scratch thread so stateful tools keep
// working; there is no client to forward to.
func (s *Server) emit(ev chat.StreamEvent) {
	switch ev.Type {
	case chat.EventThreadItemDone:
		if err := s.store.AddThreadItem(context.Background(), s.thread.ID, *ev.Item); err != nil {
			s.log.Warn("mcp scratch item not persisted", "error", err)
		}
	case chat.EventThreadItemReplaced:
		if err := s.store.SaveItem(context.Background(), s.thread.ID, *ev.Item); err != nil {
			s.log.Warn("mcp scratch item not persisted", "error", err)
		}
	default:
		s.log.Debug("mcp dropping stream event", "type", ev.Type)
	}
}

// Run serves MCP over stdio until the context is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single pre-established transport (tests use in-memory
// transports).
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.srv.Connect(ctx, t, nil)
}
