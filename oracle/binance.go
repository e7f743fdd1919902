package oracle

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/simtrader/market"
)

// Binance reads the public 24 hour ticker against USDT.
type Binance struct {
	client
}

func NewBinance(baseURL string, timeout time.Duration) *Binance {
	if baseURL == "" {
		baseURL = BinanceURL
	}
	return &Binance{client: newClient("binance", baseURL, timeout)}
}

type binanceTicker struct {
	LastPrice          decimal.Decimal `json:"lastPrice"`
	PriceChange        decimal.Decimal `json:"priceChange"`
	PriceChangePercent decimal.Decimal `json:"priceChangePercent"`
	HighPrice          decimal.Decimal `json:"highPrice"`
	LowPrice           decimal.Decimal `json:"lowPrice"`
	QuoteVolume        decimal.Decimal `json:"quoteVolume"`
}

func (b *Binance) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	base := NormalizeSymbol(symbol)

	params := url.Values{}
	params.Set("symbol", base+"USDT")

	var t binanceTicker
	if err := b.getJSON(ctx, "/api/v3/ticker/24hr", params, &t); err != nil {
		return market.Quote{}, err
	}
	if !t.LastPrice.IsPositive() {
		return market.Quote{}, fmt.Errorf("binance: no price for %s", base)
	}

	return market.Quote{
		Symbol:       base,
		Price:        t.LastPrice,
		Change24h:    t.PriceChange,
		ChangePct24h: t.PriceChangePercent,
		High24h:      t.HighPrice,
		Low24h:       t.LowPrice,
		Volume24h:    t.QuoteVolume,
		Source:       b.name,
		Time:         time.Now().UTC(),
	}, nil
}
