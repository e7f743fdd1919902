package risk

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParseSizing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		mode    SizingMode
		value   string
		wantErr bool
	}{
		{"250", Fixed, "250", false},
		{"5%", Percent, "5", false},
		{" 2.5 % ", Percent, "2.5", false},
		{"abc", Fixed, "", true},
		{"%", Percent, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			s, err := ParseSizing(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mode, s.Mode)
			assert.True(t, s.Value.Equal(d(tt.value)))
		})
	}
}

func TestSizingQuantity(t *testing.T) {
	t.Parallel()

	qty, err := FixedAmount(5000).Quantity(d("10000"), d("50000"))
	require.NoError(t, err)
	assert.True(t, qty.Equal(d("0.1")), "got %s", qty)

	qty, err = PercentOfCapital(10).Quantity(d("10000"), d("50000"))
	require.NoError(t, err)
	assert.True(t, qty.Equal(d("0.02")), "got %s", qty)

	_, err = FixedAmount(5).Quantity(d("10000"), d("0"))
	assert.Error(t, err)

	_, err = PercentOfCapital(10).Quantity(d("0"), d("50000"))
	assert.ErrorIs(t, err, ErrNoQuantity)
}

func TestSizingValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, FixedAmount(5).Validate())
	assert.Error(t, FixedAmount(0).Validate())
	assert.Error(t, PercentOfCapital(150).Validate())
}

func TestSizingJSON(t *testing.T) {
	t.Parallel()

	var v struct {
		A Sizing `json:"a"`
		B Sizing `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 250, "b": "5%"}`), &v))
	assert.Equal(t, Fixed, v.A.Mode)
	assert.Equal(t, Percent, v.B.Mode)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 250, "b": "5%"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a": true}`), &v))
}

func TestSizingYAML(t *testing.T) {
	t.Parallel()

	var v struct {
		A Sizing `yaml:"a"`
		B Sizing `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 100\nb: \"3%\"\n"), &v))
	assert.True(t, v.A.Value.Equal(d("100")))
	assert.Equal(t, Percent, v.B.Mode)
}

func TestEvaluateOpen(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	policy := Policy{FeeRate: d("0.001"), MaxDailyTrades: 2}

	tests := []struct {
		name    string
		capital string
		opens   int
		qty     string
		allowed bool
		code    string
	}{
		{"ok", "10000", 0, "0.1", true, ""},
		{"daily cap", "10000", 2, "0.1", false, "DAILY_TRADE_LIMIT"},
		{"fee eats capital", "5", 0, "0.1", false, "INSUFFICIENT_CAPITAL"},
		{"zero quantity", "10000", 0, "0", false, "NO_QUANTITY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := EvaluateOpen(policy,
				OpenIntent{Now: now, Symbol: "BTC", Quantity: d(tt.qty), Price: d("50000")},
				AccountSnapshot{Capital: d(tt.capital), OpensToday: tt.opens})
			assert.Equal(t, tt.allowed, dec.Allowed)
			if tt.allowed {
				assert.NoError(t, dec.Err())
				return
			}
			assert.True(t, dec.Has(tt.code))
			assert.ErrorIs(t, dec.Err(), ErrRejected)
		})
	}
}

func TestStartOfDay(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("X", 5*3600)
	got := StartOfDay(time.Date(2025, 1, 2, 3, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), got)
}
