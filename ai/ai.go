// Package ai asks a hosted language model for a 24 hour market outlook on a
// crypto asset. Every provider is forced to answer through a single tool call
// so the reply can be validated as a structured Outlook.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/market"
)

const (
	Temperature = 0.2
	MaxTokens   = 800
	Timeout     = 30 * time.Second

	maxErrorBody = 256
)

var (
	// ErrResponse is returned when a reply does not match the outlook schema.
	ErrResponse = errors.New("invalid AI response")
	// ErrProvider is returned for unknown providers and missing keys.
	ErrProvider = errors.New("AI provider misconfigured")
)

// Outlook is the validated model answer.
type Outlook struct {
	Interpretation market.Signal `json:"interpretation"`
	Reasons        string        `json:"reasons"`
}

// Advisor produces an outlook for a prompt. symbol is the asset display name
// used to name the tool.
type Advisor interface {
	Name() string
	Outlook(ctx context.Context, prompt, symbol string) (Outlook, error)
}

// Option customizes an adapter.
type Option func(*options)

type options struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

func WithEndpoint(url string) Option { return func(o *options) { o.endpoint = url } }

func WithModel(model string) Option { return func(o *options) { o.model = model } }

func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

func buildOptions(endpoint, model string, opts []Option) options {
	o := options{
		endpoint:   endpoint,
		model:      model,
		httpClient: &http.Client{Timeout: Timeout},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewAdvisor returns the adapter for provider using the key from secrets.
// grok is an alias of xai.
func NewAdvisor(provider string, secrets config.Secrets, opts ...Option) (Advisor, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "anthropic":
		if secrets.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", ErrProvider)
		}
		return NewAnthropic(secrets.AnthropicAPIKey, opts...), nil
	case "xai", "grok":
		if secrets.XAIAPIKey == "" {
			return nil, fmt.Errorf("%w: XAI_API_KEY is not set", ErrProvider)
		}
		return NewXAI(secrets.XAIAPIKey, opts...), nil
	case "deepseek":
		if secrets.DeepSeekAPIKey == "" {
			return nil, fmt.Errorf("%w: DEEPSEEK_API_KEY is not set", ErrProvider)
		}
		return NewDeepSeek(secrets.DeepSeekAPIKey, opts...), nil
	}
	return nil, fmt.Errorf("%w: unknown provider %q (valid: %s)", ErrProvider, provider, strings.Join(config.AIProviders, ", "))
}

// BuildPrompt renders the analyst prompt. marketContext may be empty when
// no market data could be fetched.
func BuildPrompt(displayName, marketContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional cryptocurrency analyst. Analyze %s and provide your outlook for the next 24 hours.\n\n", displayName)
	b.WriteString("Consider:\n")
	b.WriteString("- Technical analysis and chart patterns\n")
	b.WriteString("- Market sentiment and momentum\n")
	b.WriteString("- Recent price action and trends\n")
	b.WriteString("- Support and resistance levels\n\n")
	if marketContext != "" {
		b.WriteString(marketContext)
		b.WriteString("\n\n")
	}
	b.WriteString("Provide your analysis as either:\n")
	b.WriteString("- Bullish: You expect the price to increase\n")
	b.WriteString("- Bearish: You expect the price to decrease\n")
	b.WriteString("- Neutral: No clear directional bias\n\n")
	b.WriteString("Be decisive and provide clear reasoning for your outlook.")
	return b.String()
}

// ToolName derives the tool name from an asset name: "Bitcoin Cash" becomes
// bitcoin_cash_outlook.
func ToolName(symbol string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(symbol)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String() + "_outlook"
}

func toolDescription(symbol string) string {
	return fmt.Sprintf("Return a structured %s outlook for the next 24 hours.", symbol)
}

func outlookSchema(strict bool) map[string]any {
	s := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"interpretation": map[string]any{
				"type":        "string",
				"enum":        []string{string(market.Bullish), string(market.Bearish), string(market.Neutral)},
				"description": "Market outlook direction",
			},
			"reasons": map[string]any{
				"type":        "string",
				"description": "Concise rationale citing the strongest factors.",
			},
		},
		"required": []string{"interpretation", "reasons"},
	}
	if strict {
		s["additionalProperties"] = false
	}
	return s
}

// parseOutlook validates tool arguments.
func parseOutlook(raw []byte) (Outlook, error) {
	var args struct {
		Interpretation string `json:"interpretation"`
		Reasons        string `json:"reasons"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return Outlook{}, fmt.Errorf("%w: arguments are not valid JSON: %v", ErrResponse, err)
	}
	sig, err := market.ParseSignal(args.Interpretation)
	if err != nil {
		return Outlook{}, fmt.Errorf("%w: %v", ErrResponse, err)
	}
	if strings.TrimSpace(args.Reasons) == "" {
		return Outlook{}, fmt.Errorf("%w: reasons must not be empty", ErrResponse)
	}
	return Outlook{Interpretation: sig, Reasons: args.Reasons}, nil
}

// postJSON sends body to endpoint and decodes a 2xx reply into out. Errors
// carry the provider name, status and a truncated body, never the headers.
func postJSON(ctx context.Context, c *http.Client, provider, endpoint string, headers map[string]string, body, out any) error {
	bb, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bb))
	if err != nil {
		return fmt.Errorf("create %s request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s http %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrResponse, provider, err)
	}
	return nil
}
