package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/market"
)

const secretKey = "sk-test-secret-123"

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Bitcoin", "Current BTC Market Data:\n- Price: $1.00")
	assert.True(t, strings.HasPrefix(p, "You are a professional cryptocurrency analyst. Analyze Bitcoin"))
	assert.Contains(t, p, "Current BTC Market Data:")
	assert.True(t, strings.HasSuffix(p, "Be decisive and provide clear reasoning for your outlook."))

	bare := BuildPrompt("Ethereum", "")
	assert.NotContains(t, bare, "Market Data")
	assert.Contains(t, bare, "- Neutral: No clear directional bias")
}

func TestToolName(t *testing.T) {
	assert.Equal(t, "bitcoin_outlook", ToolName("Bitcoin"))
	assert.Equal(t, "bitcoin_cash_outlook", ToolName("Bitcoin Cash"))
}

func TestNewAdvisor(t *testing.T) {
	keys := config.Secrets{AnthropicAPIKey: "a", XAIAPIKey: "x", DeepSeekAPIKey: "d"}

	tests := []struct {
		provider string
		want     string
	}{
		{"anthropic", "anthropic"},
		{"xai", "xai"},
		{"Grok", "xai"},
		{"deepseek", "deepseek"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			a, err := NewAdvisor(tt.provider, keys)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Name())
		})
	}

	_, err := NewAdvisor("anthropic", config.Secrets{})
	assert.ErrorIs(t, err, ErrProvider)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")

	_, err = NewAdvisor("openai", keys)
	assert.ErrorIs(t, err, ErrProvider)
}

func TestAnthropicOutlook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, secretKey, r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		choice, _ := body["tool_choice"].(map[string]any)
		assert.Equal(t, "bitcoin_outlook", choice["name"])

		_, _ = w.Write([]byte(`{"content":[
			{"type":"text","text":"thinking"},
			{"type":"tool_use","name":"bitcoin_outlook","input":{"interpretation":"Bullish","reasons":"momentum"}}]}`))
	}))
	defer server.Close()

	a := NewAnthropic(secretKey, WithEndpoint(server.URL))
	out, err := a.Outlook(context.Background(), "prompt", "Bitcoin")
	require.NoError(t, err)
	assert.Equal(t, market.Bullish, out.Interpretation)
	assert.Equal(t, "momentum", out.Reasons)
}

func TestAnthropicRejectsInvalidReply(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no tool use", `{"content":[{"type":"text","text":"hi"}]}`},
		{"wrong tool", `{"content":[{"type":"tool_use","name":"eth_outlook","input":{"interpretation":"Bullish","reasons":"x"}}]}`},
		{"bad signal", `{"content":[{"type":"tool_use","name":"bitcoin_outlook","input":{"interpretation":"Moon","reasons":"x"}}]}`},
		{"empty reasons", `{"content":[{"type":"tool_use","name":"bitcoin_outlook","input":{"interpretation":"Neutral","reasons":" "}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewAnthropic(secretKey, WithEndpoint(server.URL)).Outlook(context.Background(), "p", "Bitcoin")
			assert.ErrorIs(t, err, ErrResponse)
		})
	}
}

func TestChatOutlook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+secretKey, r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "auto", body["tool_choice"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"tool_calls":[{"function":{
			"name":"ethereum_outlook",
			"arguments":"{\"interpretation\":\"Bearish\",\"reasons\":\"weak volume\"}"}}]}}]}`))
	}))
	defer server.Close()

	out, err := NewDeepSeek(secretKey, WithEndpoint(server.URL)).Outlook(context.Background(), "p", "Ethereum")
	require.NoError(t, err)
	assert.Equal(t, market.Bearish, out.Interpretation)
	assert.Equal(t, "weak volume", out.Reasons)
}

func TestXAIForcesFunction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		choice, ok := body["tool_choice"].(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, "function", choice["type"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"tool_calls":[]}}]}`))
	}))
	defer server.Close()

	_, err := NewXAI(secretKey, WithEndpoint(server.URL)).Outlook(context.Background(), "p", "Solana")
	assert.ErrorIs(t, err, ErrResponse)
}

func TestErrorsNeverLeakKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}` + strings.Repeat("x", 1024)))
	}))
	defer server.Close()

	advisors := []Advisor{
		NewAnthropic(secretKey, WithEndpoint(server.URL)),
		NewXAI(secretKey, WithEndpoint(server.URL)),
		NewDeepSeek(secretKey, WithEndpoint(server.URL)),
	}
	for _, a := range advisors {
		t.Run(a.Name(), func(t *testing.T) {
			_, err := a.Outlook(context.Background(), "p", "Bitcoin")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "401")
			assert.NotContains(t, err.Error(), secretKey)
			assert.Less(t, len(err.Error()), 400)
		})
	}
}
