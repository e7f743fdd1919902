package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO simulation_trades (`+tradeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SimulationID, t.Symbol, string(t.Side), string(t.Action),
		t.Quantity.String(), t.EntryPrice.String(), t.ExitPrice, t.PnL,
		t.Fees.String(), t.Interpretation, t.CreatedAt.UTC(), nullTime(t.ClosedAt),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("trade %s: %w", t.ID, store.ErrDuplicateKey)
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *Store) CloseTrade(ctx context.Context, id string, exitPrice, netPnL, totalFees decimal.Decimal, closedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE simulation_trades
		SET exit_price = ?, pnl = ?, fees = ?, closed_at = ?
		WHERE id = ? AND closed_at IS NULL`,
		exitPrice.String(), netPnL.String(), totalFees.String(), closedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	return expectOne(res, "open trade", id)
}

func (s *Store) OpenTrade(ctx context.Context, simulationID, symbol string) (*store.Trade, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tradeColumns+` FROM simulation_trades
		WHERE simulation_id = ? AND symbol = ? AND closed_at IS NULL
		ORDER BY created_at DESC LIMIT 1`, simulationID, symbol)
	t, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("open trade %s/%s: %w", simulationID, symbol, store.ErrNotFound)
		}
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTrades(ctx context.Context, simulationID string, limit int) ([]*store.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM simulation_trades
		WHERE simulation_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{simulationID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func scanTrade(row scanner) (*store.Trade, error) {
	var (
		t            store.Trade
		side, action string
		closed       sql.NullTime
	)
	if err := row.Scan(
		&t.ID, &t.SimulationID, &t.Symbol, &side, &action,
		&t.Quantity, &t.EntryPrice, &t.ExitPrice, &t.PnL,
		&t.Fees, &t.Interpretation, &t.CreatedAt, &closed,
	); err != nil {
		return nil, err
	}
	t.Side = market.Side(side)
	t.Action = journal.Action(action)
	t.CreatedAt = t.CreatedAt.UTC()
	t.ClosedAt = timePtr(closed)
	return &t, nil
}
