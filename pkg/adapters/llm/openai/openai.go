package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	oa "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/wilhg/parlor/pkg/adapters/llm"
	"github.com/wilhg/parlor/pkg/errmodel"
)

const (
	defaultModel = "gpt-4.1-mini"
	maxToolTurns = 8
)

type clientWrapper struct {
	client oa.Client
	model  string
}

func (c *clientWrapper) Name() string { return "openai" }

func (c *clientWrapper) Generate(ctx context.Context, messages []llm.Message, opts map[string]any) (llm.GenerateResult, error) {
	model := c.model
	if v, ok := opts["model"].(string); ok && v != "" {
		model = v
	}

	resp, err := c.client.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: toParams(messages),
	})
	if err != nil {
		return llm.GenerateResult{}, errmodel.Model("generate_failed", "model request failed", err)
	}
	var out string
	if len(resp.Choices) > 0 {
		out = resp.Choices[0].Message.Content
	}
	usage := resp.Usage
	return llm.GenerateResult{
		Text:         out,
		PromptTokens: int(usage.PromptTokens),
		OutputTokens: int(usage.CompletionTokens),
		TotalTokens:  int(usage.TotalTokens),
		Model:        model,
	}, nil
}

// RunTools drives a tool-calling turn: the model may request tool calls, the
// invoker executes them, and results are echoed back until the model produces
// plain text or a Stop tool ends the turn.
func (c *clientWrapper) RunTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDef, invoke llm.ToolInvoker, opts map[string]any) (llm.GenerateResult, error) {
	model := c.model
	if v, ok := opts["model"].(string); ok && v != "" {
		model = v
	}

	params := oa.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: toParams(messages),
		Tools:    toTools(tools),
	}

	result := llm.GenerateResult{Model: model}
	for turn := 0; turn < maxToolTurns; turn++ {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return llm.GenerateResult{}, errmodel.Model("generate_failed", "model request failed", err)
		}
		result.PromptTokens += int(resp.Usage.PromptTokens)
		result.OutputTokens += int(resp.Usage.CompletionTokens)
		result.TotalTokens += int(resp.Usage.TotalTokens)
		if len(resp.Choices) == 0 {
			return result, nil
		}
		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			result.Text = msg.Content
			return result, nil
		}

		params.Messages = append(params.Messages, msg.ToParam())
		stopped := false
		for _, tc := range msg.ToolCalls {
			out, err := invoke(ctx, tc.Function.Name, json.RawMessage(tc.Function.Arguments))
			if err != nil {
				return llm.GenerateResult{}, err
			}
			content := out.Content
			if content == "" {
				content = "ok"
			}
			params.Messages = append(params.Messages, oa.ToolMessage(content, tc.ID))
			if out.Stop {
				stopped = true
			}
		}
		if stopped {
			// Stop-after-tool: no trailing narration.
			return result, nil
		}
	}
	return llm.GenerateResult{}, errmodel.Model("tool_loop_exceeded", "model did not finish within the tool-call budget", nil)
}

func toParams(messages []llm.Message) []oa.ChatCompletionMessageParamUnion {
	mm := make([]oa.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "user":
			mm = append(mm, oa.UserMessage(m.Content))
		case "system":
			mm = append(mm, oa.SystemMessage(m.Content))
		case "assistant":
			mm = append(mm, oa.AssistantMessage(m.Content))
		default:
			mm = append(mm, oa.UserMessage(m.Content))
		}
	}
	return mm
}

func toTools(tools []llm.ToolDef) []oa.ChatCompletionToolUnionParam {
	out := make([]oa.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, oa.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: oa.String(t.Description),
			Parameters:  shared.FunctionParameters(t.Parameters),
		}))
	}
	return out
}

// Factory registers the OpenAI LLM provider: cfg keys: api_key, model
func Factory(ctx context.Context, cfg map[string]any) (llm.LLM, error) { // nolint: revive
	_ = ctx
	apiKey := os.Getenv("OPENAI_API_KEY")
	if v, ok := cfg["api_key"].(string); ok && v != "" {
		apiKey = v
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: missing API key; set OPENAI_API_KEY or cfg.api_key")
	}
	model := defaultModel
	if v, ok := cfg["model"].(string); ok && v != "" {
		model = v
	}

	c := oa.NewClient(option.WithAPIKey(apiKey))
	return &clientWrapper{client: c, model: model}, nil
}

func init() {
	_ = llm.Register("openai", Factory)
}
