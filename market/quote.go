package market

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNoQuote = errors.New("quote not found")

// Quote is a 24 hour market snapshot for one asset, priced in USD.
type Quote struct {
	Symbol       string
	Price        decimal.Decimal
	Change24h    decimal.Decimal
	ChangePct24h decimal.Decimal
	High24h      decimal.Decimal
	Low24h       decimal.Decimal
	Volume24h    decimal.Decimal
	Source       string
	Time         time.Time
}

// QuoteSource returns the latest quote for a symbol.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// QuoteStore keeps the last quote seen per symbol.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]Quote)}
}

func (qs *QuoteStore) Set(q Quote) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes[BaseAsset(q.Symbol)] = q
}

func (qs *QuoteStore) Get(symbol string) (Quote, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	q, ok := qs.quotes[BaseAsset(symbol)]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}
