package risk

import (
	"errors"
	"fmt"
	"strings"
)

var ErrRejected = errors.New("open rejected by risk policy")

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Err returns nil when allowed, otherwise an error wrapping ErrRejected that
// lists every violation.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	msgs := make([]string, 0, len(d.Violations))
	for _, v := range d.Violations {
		msgs = append(msgs, v.Msg)
	}
	return fmt.Errorf("%w: %s", ErrRejected, strings.Join(msgs, "; "))
}

// Has reports whether a violation with code was recorded.
func (d Decision) Has(code string) bool {
	for _, v := range d.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// EvaluateOpen applies the policy to an open. Capital must stay positive after
// the entry fee and the daily open count must be under the cap.
func EvaluateOpen(p Policy, intent OpenIntent, acct AccountSnapshot) Decision {
	d := Decision{Allowed: true}

	if !intent.Quantity.IsPositive() || !intent.Price.IsPositive() {
		d.add("NO_QUANTITY", "quantity and price must be positive")
		return d
	}

	fee := EntryFee(intent.Quantity, intent.Price, p.FeeRate)
	if !acct.Capital.Sub(fee).IsPositive() {
		d.add("INSUFFICIENT_CAPITAL",
			fmt.Sprintf("capital %s cannot cover entry fee %s", acct.Capital.StringFixed(2), fee.StringFixed(2)))
	}

	if p.MaxDailyTrades > 0 && acct.OpensToday >= p.MaxDailyTrades {
		d.add("DAILY_TRADE_LIMIT",
			fmt.Sprintf("opens today %d >= max %d", acct.OpensToday, p.MaxDailyTrades))
	}

	return d
}
