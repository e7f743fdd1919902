package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/simtrader/journal"
	"github.com/rustyeddy/simtrader/market"
	"github.com/rustyeddy/simtrader/store"
)

const tradeColumns = `id, simulation_id, symbol, side, action, quantity, entry_price, exit_price,
	pnl, fees, interpretation, created_at, closed_at`

func (s *Store) InsertTrade(ctx context.Context, t *store.Trade) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO simulation_trades (`+tradeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.SimulationID, t.Symbol, string(t.Side), string(t.Action),
		t.Quantity.String(), t.EntryPrice.String(), nullDecimalString(t.ExitPrice), nullDecimalString(t.PnL),
		t.Fees.String(), t.Interpretation, t.CreatedAt.UTC(), utcPtr(t.ClosedAt),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("trade %s: %w", t.ID, store.ErrDuplicateKey)
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *Store) CloseTrade(ctx context.Context, id string, exitPrice, netPnL, totalFees decimal.Decimal, closedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE simulation_trades
		SET exit_price = $1, pnl = $2, fees = $3, closed_at = $4
		WHERE id = $5 AND closed_at IS NULL`,
		exitPrice.String(), netPnL.String(), totalFees.String(), closedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("open trade %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) OpenTrade(ctx context.Context, simulationID, symbol string) (*store.Trade, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tradeColumns+` FROM simulation_trades
		WHERE simulation_id = $1 AND symbol = $2 AND closed_at IS NULL
		ORDER BY created_at DESC LIMIT 1`, simulationID, symbol)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("open trade %s/%s: %w", simulationID, symbol, store.ErrNotFound)
		}
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTrades(ctx context.Context, simulationID string, limit int) ([]*store.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM simulation_trades
		WHERE simulation_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{simulationID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*store.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrade(row pgx.Row) (*store.Trade, error) {
	var (
		t                store.Trade
		side, action     string
		qty, entry, fees string
		exitPrice, pnl   *string
	)
	if err := row.Scan(
		&t.ID, &t.SimulationID, &t.Symbol, &side, &action,
		&qty, &entry, &exitPrice, &pnl,
		&fees, &t.Interpretation, &t.CreatedAt, &t.ClosedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if t.Quantity, err = parseDecimal(qty); err != nil {
		return nil, err
	}
	if t.EntryPrice, err = parseDecimal(entry); err != nil {
		return nil, err
	}
	if t.Fees, err = parseDecimal(fees); err != nil {
		return nil, err
	}
	if t.ExitPrice, err = parseNullDecimal(exitPrice); err != nil {
		return nil, err
	}
	if t.PnL, err = parseNullDecimal(pnl); err != nil {
		return nil, err
	}
	t.Side = market.Side(side)
	t.Action = journal.Action(action)
	t.CreatedAt = t.CreatedAt.UTC()
	t.ClosedAt = utcPtr(t.ClosedAt)
	return &t, nil
}
