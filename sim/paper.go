package sim

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/simtrader/broker"
	"github.com/rustyeddy/simtrader/market"
)

// Paper is a broker.Exchange that fills every order against an Engine at
// the latest quote from its price source.
type Paper struct {
	engine *Engine
	source market.QuoteSource
	quotes *market.QuoteStore
}

var _ broker.Exchange = (*Paper)(nil)

func NewPaper(e *Engine, source market.QuoteSource) *Paper {
	return &Paper{engine: e, source: source, quotes: market.NewQuoteStore()}
}

func (p *Paper) Engine() *Engine { return p.engine }

func (p *Paper) Capabilities() broker.Capabilities {
	return broker.Capabilities{SupportsShorting: true, SupportsLeverage: false, Paper: true}
}

func (p *Paper) Balance(ctx context.Context) (broker.Account, error) {
	return broker.Account{
		ID:          p.engine.Account().ID,
		Capital:     p.engine.Capital(),
		Locked:      p.engine.LockedCapital(),
		FeesPaid:    p.engine.FeesPaid(),
		RealizedPnL: p.engine.RealizedPnL(),
	}, nil
}

// Observe records a quote obtained elsewhere so later fills can use it
// without another fetch.
func (p *Paper) Observe(q market.Quote) {
	p.quotes.Set(q)
}

// Price fetches a fresh quote, falling back to the last observed one.
func (p *Paper) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if p.source != nil {
		q, err := p.source.Quote(ctx, symbol)
		if err == nil && q.Price.IsPositive() {
			p.quotes.Set(q)
			return q.Price, nil
		}
		if cached, cerr := p.quotes.Get(symbol); cerr == nil {
			return cached.Price, nil
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("price %s: %w", symbol, err)
		}
	}
	q, err := p.quotes.Get(symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %s: %w", symbol, err)
	}
	return q.Price, nil
}

func (p *Paper) Position(ctx context.Context, symbol string) (broker.Position, bool, error) {
	pos, ok := p.engine.Position(symbol)
	return pos, ok, nil
}

func (p *Paper) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.Fill, error) {
	price, err := p.fillPrice(ctx, req.Symbol, req.Price)
	if err != nil {
		return broker.Fill{}, err
	}
	return p.engine.Open(ctx, req.Symbol, req.Side, req.Quantity, price, req.Interpretation)
}

func (p *Paper) ClosePosition(ctx context.Context, req broker.CloseRequest) (broker.Fill, error) {
	price, err := p.fillPrice(ctx, req.Symbol, req.Price)
	if err != nil {
		return broker.Fill{}, err
	}
	return p.engine.Close(ctx, req.Symbol, price, req.Interpretation)
}

func (p *Paper) fillPrice(ctx context.Context, symbol string, limit decimal.Decimal) (decimal.Decimal, error) {
	if limit.IsPositive() {
		return limit, nil
	}
	return p.Price(ctx, symbol)
}
