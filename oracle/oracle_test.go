package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/market"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCoinbaseQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/BTC-USD/stats", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"open":"100","high":"110","low":"90","last":"105","volume":"2"}`))
	}))
	defer server.Close()

	q, err := NewCoinbase(server.URL, time.Second).Quote(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC", q.Symbol)
	assert.Equal(t, "coinbase", q.Source)
	assert.True(t, q.Price.Equal(d("105")))
	assert.True(t, q.Change24h.Equal(d("5")))
	assert.True(t, q.ChangePct24h.Equal(d("5")))
	assert.True(t, q.Volume24h.Equal(d("210")))
}

func TestBinanceQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"lastPrice":"2000.5","priceChange":"-10","priceChangePercent":"-0.5",
			"highPrice":"2050","lowPrice":"1980","quoteVolume":"123456.7"}`))
	}))
	defer server.Close()

	q, err := NewBinance(server.URL, time.Second).Quote(context.Background(), "ETH-USD")
	require.NoError(t, err)
	assert.Equal(t, "ETH", q.Symbol)
	assert.True(t, q.Price.Equal(d("2000.5")))
	assert.True(t, q.ChangePct24h.Equal(d("-0.5")))
	assert.True(t, q.Volume24h.Equal(d("123456.7")))
}

func TestCoinGeckoQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/coins/solana", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("tickers"))
		_, _ = w.Write([]byte(`{"market_data":{
			"current_price":{"usd":150.25},
			"price_change_24h":3.5,
			"price_change_percentage_24h":2.38,
			"high_24h":{"usd":155},
			"low_24h":{"usd":140},
			"total_volume":{"usd":1000000}}}`))
	}))
	defer server.Close()

	q, err := NewCoinGecko(server.URL, time.Second).Quote(context.Background(), "SOLUSDT")
	require.NoError(t, err)
	assert.Equal(t, "SOL", q.Symbol)
	assert.True(t, q.Price.Equal(d("150.25")))
	assert.True(t, q.High24h.Equal(d("155")))
}

func TestQuoteHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"NotFound"}`))
	}))
	defer server.Close()

	_, err := NewCoinbase(server.URL, time.Second).Quote(context.Background(), "NOPE")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.False(t, se.Temporary())
}

type fakeSource struct {
	name  string
	quote market.Quote
	err   error
	calls atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	f.calls.Add(1)
	return f.quote, f.err
}

func TestChainFallback(t *testing.T) {
	first := &fakeSource{name: "a", err: errors.New("boom")}
	second := &fakeSource{name: "b", quote: market.Quote{Symbol: "BTC", Price: d("100"), Source: "b"}}
	third := &fakeSource{name: "c"}

	chain := NewChain(zerolog.Nop(), first, second, third)
	assert.Equal(t, "a,b,c", chain.Name())

	q, err := chain.Quote(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "b", q.Source)
	assert.EqualValues(t, 0, third.calls.Load())

	_, err = NewChain(zerolog.Nop(), first).Quote(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRetrying(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"open":"1","high":"1","low":"1","last":"1","volume":"1"}`))
	}))
	defer server.Close()

	r := &Retrying{Source: NewCoinbase(server.URL, time.Second), Retries: 3, InitialInterval: time.Millisecond}
	q, err := r.Quote(context.Background(), "BTC")
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(d("1")))
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, "coinbase", r.Name())
}

func TestRetryingStopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	r := &Retrying{Source: NewBinance(server.URL, time.Second), Retries: 5, InitialInterval: time.Millisecond}
	_, err := r.Quote(context.Background(), "BTC")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestNewFromConfig(t *testing.T) {
	src, err := New(config.OracleConfig{Source: "auto"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "coinbase,coingecko,binance", src.Name())

	src, err = New(config.OracleConfig{Source: "binance", Retries: 2}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Retrying{}, src)

	_, err = New(config.OracleConfig{Source: "kraken"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestFormatContext(t *testing.T) {
	q := market.Quote{
		Symbol:       "BTC",
		Price:        d("50000"),
		Change24h:    d("1000"),
		ChangePct24h: d("2.04"),
		High24h:      d("51000"),
		Low24h:       d("49000"),
		Volume24h:    d("1234567.8"),
	}

	want := "Current BTC Market Data:\n" +
		"- Price: $50,000.00\n" +
		"- 24h Change: +2.04% ($+1,000.00)\n" +
		"- 24h High: $51,000.00\n" +
		"- 24h Low: $49,000.00\n" +
		"- 24h Volume: $1,234,568\n" +
		"- Price is trending up over the last 24 hours\n" +
		"- Current price is 50% of the way between 24h low and high"
	assert.Equal(t, want, FormatContext(q))
}
