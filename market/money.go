package market

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money formats d with thousands separators and a fixed number of places.
// When sign is set positive values carry a leading "+".
func Money(d decimal.Decimal, places int32, sign bool) string {
	digits := d.Abs().StringFixed(places)
	intPart, frac, _ := strings.Cut(digits, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if frac != "" {
		out += "." + frac
	}

	if d.Round(places).IsNegative() {
		return "-" + out
	}
	if sign {
		return "+" + out
	}
	return out
}
