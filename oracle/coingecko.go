package oracle

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/simtrader/market"
)

// CoinGecko reads the coin detail endpoint. No API key is required.
type CoinGecko struct {
	client
}

func NewCoinGecko(baseURL string, timeout time.Duration) *CoinGecko {
	if baseURL == "" {
		baseURL = CoinGeckoURL
	}
	return &CoinGecko{client: newClient("coingecko", baseURL, timeout)}
}

type usdValue struct {
	USD decimal.Decimal `json:"usd"`
}

type coinGeckoCoin struct {
	MarketData struct {
		CurrentPrice             usdValue        `json:"current_price"`
		PriceChange24h           decimal.Decimal `json:"price_change_24h"`
		PriceChangePercentage24h decimal.Decimal `json:"price_change_percentage_24h"`
		High24h                  usdValue        `json:"high_24h"`
		Low24h                   usdValue        `json:"low_24h"`
		TotalVolume              usdValue        `json:"total_volume"`
	} `json:"market_data"`
}

func (g *CoinGecko) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	base := NormalizeSymbol(symbol)

	params := url.Values{}
	for _, k := range []string{"localization", "tickers", "community_data", "developer_data", "sparkline"} {
		params.Set(k, "false")
	}

	var coin coinGeckoCoin
	if err := g.getJSON(ctx, "/api/v3/coins/"+market.CoinGeckoID(base), params, &coin); err != nil {
		return market.Quote{}, err
	}
	md := coin.MarketData
	if !md.CurrentPrice.USD.IsPositive() {
		return market.Quote{}, fmt.Errorf("coingecko: no price for %s", base)
	}

	return market.Quote{
		Symbol:       base,
		Price:        md.CurrentPrice.USD,
		Change24h:    md.PriceChange24h,
		ChangePct24h: md.PriceChangePercentage24h,
		High24h:      md.High24h.USD,
		Low24h:       md.Low24h.USD,
		Volume24h:    md.TotalVolume.USD,
		Source:       g.name,
		Time:         time.Now().UTC(),
	}, nil
}
