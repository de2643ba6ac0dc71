package chat

import (
	"context"
	"encoding/json"
	"log/slog"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/wilhg/parlor/pkg/errmodel"
)

// Action is a tagged payload originating from the UI layer.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ActionHandler processes one action type. sender is the widget item that
// triggered the action, when the client supplied one.
type ActionHandler func(ctx context.Context, thread *ThreadMetadata, payload json.RawMessage, sender *ThreadItem, emit Emit) error

type route struct {
	schema  *jsonschema.Schema
	handler ActionHandler
}

// Router maps an action type string to its handler. Dispatch is deliberately
// permissive: unknown action types and invalid payloads are dropped without
// surfacing an error to the transport.
type Router struct {
	log    *slog.Logger
	routes map[string]route
}

// NewRouter creates an empty router.
func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{log: log, routes: make(map[string]route)}
}

// Register binds an action type to a handler. schema, when non-empty, is a
// JSON Schema the payload must satisfy before the handler runs; an invalid
// schema is a programmer error and fails registration.
func (r *Router) Register(actionType string, schema []byte, h ActionHandler) error {
	if actionType == "" {
		return errmodel.Validation("empty_action_type", "action type is required", nil)
	}
	var compiled *jsonschema.Schema
	if len(schema) > 0 {
		c := jsonschema.NewCompiler()
		var doc any
		if err := json.Unmarshal(schema, &doc); err != nil {
			return err
		}
		if err := c.AddResource("mem://action.json", doc); err != nil {
			return err
		}
		sch, err := c.Compile("mem://action.json")
		if err != nil {
			return err
		}
		compiled = sch
	}
	r.routes[actionType] = route{schema: compiled, handler: h}
	return nil
}

// Dispatch routes an action to its handler.
//
// Unknown types produce zero events and no error. Payloads failing schema
// validation are logged and short-circuit the handler. A handler returning a
// validation or not-found error has it converted into a user-visible assistant
// message; other errors propagate.
func (r *Router) Dispatch(ctx context.Context, thread *ThreadMetadata, action Action, sender *ThreadItem, emit Emit) error {
	rt, ok := r.routes[action.Type]
	if !ok {
		r.log.Debug("ignoring unknown action type", "type", action.Type)
		return nil
	}
	if rt.schema != nil {
		var v any
		if err := json.Unmarshal(action.Payload, &v); err != nil {
			r.log.Warn("action payload is not valid JSON", "type", action.Type, "error", err)
			return nil
		}
		if err := rt.schema.Validate(v); err != nil {
			r.log.Warn("action payload failed validation", "type", action.Type, "error", err)
			return nil
		}
	}
	if err := rt.handler(ctx, thread, action.Payload, sender, emit); err != nil {
		if errmodel.IsUserError(err) {
			emit(ItemDone(NewAssistantMessage(thread.ID, errmodel.From(err).Message)))
			return nil
		}
		return err
	}
	return nil
}
