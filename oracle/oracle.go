// Package oracle fetches 24 hour market snapshots from public crypto price
// APIs. Every source returns a market.Quote priced in USD.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rustyeddy/simtrader/internal/trace"
	"github.com/rustyeddy/simtrader/market"
)

const (
	CoinbaseURL  = "https://api.exchange.coinbase.com"
	BinanceURL   = "https://api.binance.com"
	CoinGeckoURL = "https://api.coingecko.com"

	// DefaultTimeout bounds every HTTP call made by a source.
	DefaultTimeout = 10 * time.Second
)

// ErrUnavailable is returned when no source produced a quote.
var ErrUnavailable = errors.New("market data unavailable")

// Source is a named quote provider.
type Source interface {
	market.QuoteSource
	Name() string
}

// StatusError is a non-200 reply from a price API.
type StatusError struct {
	Source string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.Code, e.Body)
}

// Temporary reports whether retrying the request could succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// NormalizeSymbol reduces a trading pair (BTCUSDT, BTC-USD) to its base asset.
func NormalizeSymbol(symbol string) string {
	return market.BaseAsset(symbol)
}

// client is the HTTP plumbing shared by the sources.
type client struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

func newClient(name, baseURL string, timeout time.Duration) client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c client) Name() string { return c.name }

func (c client) getJSON(ctx context.Context, path string, params url.Values, out any) (err error) {
	ctx, span := trace.StartSpan(ctx, "oracle."+c.name,
		attribute.String("oracle.path", path))
	defer func() { trace.End(span, err) }()

	apiURL := c.baseURL + path
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "simtrader")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Source: c.name, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.name, err)
	}
	return nil
}
