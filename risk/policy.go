package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy holds the per-simulation limits applied before opening a position.
// Closes are never gated.
type Policy struct {
	FeeRate        decimal.Decimal
	MaxDailyTrades int // opens per UTC day, 0 disables the limit
}

type OpenIntent struct {
	Now      time.Time
	Symbol   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

type AccountSnapshot struct {
	Capital     decimal.Decimal
	OpensToday  int
	OpenSymbols int
}
