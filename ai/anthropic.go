package ai

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rustyeddy/simtrader/internal/trace"
)

const (
	AnthropicURL     = "https://api.anthropic.com/v1/messages"
	AnthropicModel   = "claude-sonnet-4-20250514"
	anthropicVersion = "2023-06-01"
)

// Anthropic calls the Messages API with a forced tool choice.
type Anthropic struct {
	key  string
	opts options
}

func NewAnthropic(key string, opts ...Option) *Anthropic {
	return &Anthropic{key: key, opts: buildOptions(AnthropicURL, AnthropicModel, opts)}
}

func (a *Anthropic) Name() string { return "anthropic" }

type anthropicResponse struct {
	Content []struct {
		Type  string         `json:"type"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	} `json:"content"`
}

func (a *Anthropic) Outlook(ctx context.Context, prompt, symbol string) (out Outlook, err error) {
	ctx, span := trace.StartSpan(ctx, "ai.anthropic",
		attribute.String("ai.model", a.opts.model),
		attribute.String("ai.symbol", symbol))
	defer func() { trace.End(span, err) }()

	tool := ToolName(symbol)
	body := map[string]any{
		"model":       a.opts.model,
		"max_tokens":  MaxTokens,
		"temperature": Temperature,
		"tools": []map[string]any{{
			"name":         tool,
			"description":  toolDescription(symbol),
			"input_schema": outlookSchema(false),
		}},
		"tool_choice": map[string]any{"type": "tool", "name": tool},
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
	}
	headers := map[string]string{
		"x-api-key":         a.key,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := postJSON(ctx, a.opts.httpClient, "anthropic", a.opts.endpoint, headers, body, &resp); err != nil {
		return Outlook{}, err
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" {
			continue
		}
		if block.Name != tool {
			return Outlook{}, fmt.Errorf("%w: unexpected tool %q, expected %q", ErrResponse, block.Name, tool)
		}
		raw, err := marshalArgs(block.Input)
		if err != nil {
			return Outlook{}, err
		}
		return parseOutlook(raw)
	}
	return Outlook{}, fmt.Errorf("%w: no tool_use block in anthropic response", ErrResponse)
}
