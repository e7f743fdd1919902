package oracle

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/simtrader/market"
)

var hundred = decimal.NewFromInt(100)

// FormatContext renders a quote as the market data block of an AI prompt.
func FormatContext(q market.Quote) string {
	direction := "down"
	if q.ChangePct24h.IsPositive() {
		direction = "up"
	}

	rangePct := decimal.NewFromInt(50)
	if span := q.High24h.Sub(q.Low24h); !span.IsZero() {
		rangePct = q.Price.Sub(q.Low24h).Div(span).Mul(hundred)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current %s Market Data:\n", q.Symbol)
	fmt.Fprintf(&b, "- Price: $%s\n", market.Money(q.Price, 2, false))
	fmt.Fprintf(&b, "- 24h Change: %s%% ($%s)\n", signed(q.ChangePct24h.StringFixed(2), q.ChangePct24h), market.Money(q.Change24h, 2, true))
	fmt.Fprintf(&b, "- 24h High: $%s\n", market.Money(q.High24h, 2, false))
	fmt.Fprintf(&b, "- 24h Low: $%s\n", market.Money(q.Low24h, 2, false))
	fmt.Fprintf(&b, "- 24h Volume: $%s\n", market.Money(q.Volume24h, 0, false))
	fmt.Fprintf(&b, "- Price is trending %s over the last 24 hours\n", direction)
	fmt.Fprintf(&b, "- Current price is %s%% of the way between 24h low and high", rangePct.StringFixed(0))
	return b.String()
}

func signed(s string, d decimal.Decimal) string {
	if d.IsNegative() || strings.HasPrefix(s, "-") {
		return s
	}
	return "+" + s
}
