package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rustyeddy/simtrader/market"
)

// Retrying retries transient failures of the wrapped source with exponential
// backoff. Client errors other than 429 are not retried.
type Retrying struct {
	Source
	Retries         int
	InitialInterval time.Duration
}

func (r *Retrying) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	var q market.Quote
	op := func() error {
		var err error
		q, err = r.Source.Quote(ctx, symbol)
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	if r.InitialInterval > 0 {
		eb.InitialInterval = r.InitialInterval
	}
	retries := r.Retries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)

	if err := backoff.Retry(op, b); err != nil {
		return market.Quote{}, err
	}
	return q, nil
}
