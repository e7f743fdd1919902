package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryFee is the fee charged when opening qty at price.
func EntryFee(qty, price, feeRate decimal.Decimal) decimal.Decimal {
	return qty.Mul(price).Mul(feeRate)
}

// StartOfDay truncates t to midnight UTC, the boundary for the daily trade cap.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
