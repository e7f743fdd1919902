package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/simtrader/pkg/id"
)

// FormatEntryOrg renders a journal entry as an Org-mode block. Structured facts
// go in a PROPERTIES drawer; closes get a Review placeholder.
func FormatEntryOrg(e Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** %s %s (%s #%d)\n", e.Action, e.Symbol, id.Short(e.Account), e.Seq)
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ACCOUNT: %s\n", e.Account)
	fmt.Fprintf(&b, ":SEQ: %d\n", e.Seq)
	fmt.Fprintf(&b, ":TIME: %s\n", e.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":ACTION: %s\n", e.Action)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", e.Symbol)
	fmt.Fprintf(&b, ":QUANTITY: %s\n", e.Quantity.String())
	fmt.Fprintf(&b, ":PRICE: %s\n", e.Price.StringFixed(2))
	fmt.Fprintf(&b, ":FEES: %s\n", e.Fees.StringFixed(4))
	if e.Action.IsClose() {
		fmt.Fprintf(&b, ":PNL: %s\n", e.PnL.StringFixed(2))
	}
	fmt.Fprintf(&b, ":CAPITAL_AFTER: %s\n", e.CapitalAfter.StringFixed(2))
	fmt.Fprintf(&b, ":INTERPRETATION: %s\n", e.Interpretation)
	b.WriteString(":END:\n")
	if e.Action.IsClose() {
		b.WriteString("\n*** Review\n- \n")
	}
	return b.String()
}

// FormatEntriesOrg renders entries separated by blank lines.
func FormatEntriesOrg(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatEntryOrg(e))
	}
	return b.String()
}
