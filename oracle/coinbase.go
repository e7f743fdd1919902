package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/simtrader/market"
)

// Coinbase reads the public product stats endpoint.
type Coinbase struct {
	client
}

func NewCoinbase(baseURL string, timeout time.Duration) *Coinbase {
	if baseURL == "" {
		baseURL = CoinbaseURL
	}
	return &Coinbase{client: newClient("coinbase", baseURL, timeout)}
}

type coinbaseStats struct {
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Last   decimal.Decimal `json:"last"`
	Volume decimal.Decimal `json:"volume"`
}

func (c *Coinbase) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	base := NormalizeSymbol(symbol)

	var stats coinbaseStats
	if err := c.getJSON(ctx, fmt.Sprintf("/products/%s-USD/stats", base), nil, &stats); err != nil {
		return market.Quote{}, err
	}
	if !stats.Last.IsPositive() {
		return market.Quote{}, fmt.Errorf("coinbase: no price for %s", base)
	}

	q := market.Quote{
		Symbol:  base,
		Price:   stats.Last,
		High24h: stats.High,
		Low24h:  stats.Low,
		// Coinbase reports volume in the base asset.
		Volume24h: stats.Volume.Mul(stats.Last),
		Source:    c.name,
		Time:      time.Now().UTC(),
	}
	if stats.Open.IsPositive() {
		q.Change24h = stats.Last.Sub(stats.Open)
		q.ChangePct24h = q.Change24h.Div(stats.Open).Mul(decimal.NewFromInt(100))
	}
	return q, nil
}
