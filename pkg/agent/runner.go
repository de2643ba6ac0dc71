package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/parlor/pkg/adapters/llm"
	"github.com/wilhg/parlor/pkg/chat"
	"github.com/wilhg/parlor/pkg/convert"
	"github.com/wilhg/parlor/pkg/errmodel"
)

const defaultHistoryItems = 20

// Runner drives one model turn per user message: it rebuilds the model input
// from recent thread items, lets the model call tools from the registry, and
// streams the final assistant text.
type Runner struct {
	Registry     *Registry
	Model        llm.ToolRunner
	Converter    convert.Converter
	Instructions string

	// Prelude, when set, contributes messages placed before the converted
	// thread history on every turn (a customer profile, reference data).
	Prelude func(ctx context.Context, tc *Context) ([]llm.Message, error)

	// MaxItems caps how many recent thread items are loaded (default 20).
	MaxItems int
	// MaxTokens bounds the converted input; 0 disables the budget.
	MaxTokens int
	Estimator convert.TokenEstimator

	Log *slog.Logger
}

// Respond handles one turn for the thread in tc. Tool failures of the user
// categories (validation, not found) are folded into the tool result so the
// model can explain them; anything else aborts the turn.
func (r *Runner) Respond(ctx context.Context, tc *Context) error {
	tr := otel.Tracer("agent/runner")
	ctx, span := tr.Start(ctx, "Runner.Respond", trace.WithAttributes(
		attribute.String("thread.id", tc.Thread.ID),
	))
	defer span.End()

	msgs, err := r.buildInput(ctx, tc)
	if err != nil {
		span.RecordError(err)
		return err
	}

	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	stopped := false
	invoke := func(ctx context.Context, name string, raw json.RawMessage) (llm.ToolOutput, error) {
		out, err := r.Registry.Invoke(ctx, tc, name, raw)
		if err != nil {
			if errmodel.IsUserError(err) {
				log.Debug("tool returned user error", "tool", name, "error", err)
				msg, _ := json.Marshal(map[string]any{"error": errmodel.From(err).Message})
				return llm.ToolOutput{Content: string(msg)}, nil
			}
			span.RecordError(err)
			return llm.ToolOutput{}, err
		}
		desc, _ := r.Registry.Descriptor(name)
		if desc.Stop {
			stopped = true
		}
		content := []byte("{}")
		if out != nil {
			content, err = json.Marshal(out)
			if err != nil {
				return llm.ToolOutput{}, errmodel.System("tool_encode", "failed to encode tool output", map[string]any{"tool": name}, err)
			}
		}
		return llm.ToolOutput{Content: string(content), Stop: desc.Stop}, nil
	}

	res, err := r.Model.RunTools(ctx, msgs, r.Registry.Defs(), invoke, nil)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Int("tokens.total", res.TotalTokens))

	if text := strings.TrimSpace(res.Text); text != "" && !stopped {
		tc.StreamText(text)
	}
	return nil
}

func (r *Runner) buildInput(ctx context.Context, tc *Context) ([]llm.Message, error) {
	limit := r.MaxItems
	if limit <= 0 {
		limit = defaultHistoryItems
	}
	page, err := tc.Store.LoadThreadItems(ctx, tc.Thread.ID, "", limit, chat.OrderDesc)
	if err != nil {
		return nil, err
	}
	items := page.Data
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	items = convert.Budget(items, r.MaxTokens, r.Estimator)

	conv := r.Converter
	if conv == nil {
		conv = convert.Base{}
	}
	msgs, err := convert.ToInput(conv, items)
	if err != nil {
		return nil, err
	}
	if r.Prelude != nil {
		pre, err := r.Prelude(ctx, tc)
		if err != nil {
			return nil, err
		}
		msgs = append(pre, msgs...)
	}
	if r.Instructions != "" {
		msgs = append([]llm.Message{{Role: "system", Content: r.Instructions}}, msgs...)
	}
	return msgs, nil
}
