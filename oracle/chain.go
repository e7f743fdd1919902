package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/market"
)

// Chain asks each source in order and returns the first quote.
type Chain struct {
	sources []Source
	log     zerolog.Logger
}

func NewChain(log zerolog.Logger, sources ...Source) *Chain {
	return &Chain{sources: sources, log: log}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

func (c *Chain) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	var errs []error
	for _, s := range c.sources {
		q, err := s.Quote(ctx, symbol)
		if err == nil {
			c.log.Debug().Str("source", s.Name()).Str("symbol", q.Symbol).Msg("market data fetched")
			return q, nil
		}
		if ctx.Err() != nil {
			return market.Quote{}, ctx.Err()
		}
		c.log.Warn().Err(err).Str("source", s.Name()).Str("symbol", symbol).Msg("market data source failed")
		errs = append(errs, err)
	}
	return market.Quote{}, fmt.Errorf("%w for %s: %w", ErrUnavailable, NormalizeSymbol(symbol), errors.Join(errs...))
}

// New builds the source selected by cfg. "auto" chains Coinbase, CoinGecko
// and Binance; any other name uses that API alone. Each source retries
// transient failures cfg.Retries times.
func New(cfg config.OracleConfig, log zerolog.Logger) (Source, error) {
	timeout := cfg.TimeoutDuration()
	wrap := func(s Source) Source {
		if cfg.Retries <= 0 {
			return s
		}
		return &Retrying{Source: s, Retries: cfg.Retries}
	}

	switch cfg.Source {
	case "", "auto":
		return NewChain(log,
			wrap(NewCoinbase("", timeout)),
			wrap(NewCoinGecko("", timeout)),
			wrap(NewBinance("", timeout)),
		), nil
	case "coinbase":
		return wrap(NewCoinbase("", timeout)), nil
	case "coingecko":
		return wrap(NewCoinGecko("", timeout)), nil
	case "binance":
		return wrap(NewBinance("", timeout)), nil
	}
	return nil, fmt.Errorf("unknown market data source %q", cfg.Source)
}
