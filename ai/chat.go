package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rustyeddy/simtrader/internal/trace"
)

const (
	XAIURL        = "https://api.x.ai/v1/chat/completions"
	XAIModel      = "grok-3-latest"
	DeepSeekURL   = "https://api.deepseek.com/beta/chat/completions"
	DeepSeekModel = "deepseek-chat"
)

// Chat speaks the OpenAI compatible chat completions protocol with function
// calling. xAI forces the outlook function; DeepSeek uses strict mode with
// automatic tool choice.
type Chat struct {
	name   string
	key    string
	force  bool
	strict bool
	opts   options
}

func NewXAI(key string, opts ...Option) *Chat {
	return &Chat{name: "xai", key: key, force: true, opts: buildOptions(XAIURL, XAIModel, opts)}
}

func NewDeepSeek(key string, opts ...Option) *Chat {
	return &Chat{name: "deepseek", key: key, strict: true, opts: buildOptions(DeepSeekURL, DeepSeekModel, opts)}
}

func (c *Chat) Name() string { return c.name }

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Chat) Outlook(ctx context.Context, prompt, symbol string) (out Outlook, err error) {
	ctx, span := trace.StartSpan(ctx, "ai."+c.name,
		attribute.String("ai.model", c.opts.model),
		attribute.String("ai.symbol", symbol))
	defer func() { trace.End(span, err) }()

	tool := ToolName(symbol)
	fn := map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        tool,
			"description": toolDescription(symbol),
			"parameters":  outlookSchema(true),
		},
	}
	if c.strict {
		fn["strict"] = true
	}

	body := map[string]any{
		"model":       c.opts.model,
		"temperature": Temperature,
		"max_tokens":  MaxTokens,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"tools":       []map[string]any{fn},
	}
	if c.force {
		body["tool_choice"] = map[string]any{"type": "function", "function": map[string]string{"name": tool}}
	} else {
		body["tool_choice"] = "auto"
	}
	headers := map[string]string{"Authorization": "Bearer " + c.key}

	var resp chatResponse
	if err := postJSON(ctx, c.opts.httpClient, c.name, c.opts.endpoint, headers, body, &resp); err != nil {
		return Outlook{}, err
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return Outlook{}, fmt.Errorf("%w: missing tool_calls in %s response", ErrResponse, c.name)
	}
	call := resp.Choices[0].Message.ToolCalls[0].Function
	if call.Name != tool {
		return Outlook{}, fmt.Errorf("%w: unexpected function %q, expected %q", ErrResponse, call.Name, tool)
	}
	return parseOutlook([]byte(call.Arguments))
}

func marshalArgs(v map[string]any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponse, err)
	}
	return raw, nil
}
