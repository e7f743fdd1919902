package cmd

import (
	"context"
	"fmt"

	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/store"
	"github.com/rustyeddy/simtrader/store/postgres"
	"github.com/rustyeddy/simtrader/store/sqlite"
)

func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		st, err := sqlite.Open(sc.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", sc.DSN, err)
		}
		return st, nil
	case "postgres":
		st, err := postgres.Open(ctx, sc.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
}
