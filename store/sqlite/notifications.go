package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rustyeddy/simtrader/store"
)

func (s *Store) InsertNotification(ctx context.Context, n *store.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Status == "" {
		n.Status = store.DeliveryPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications
		(id, simulation_id, type, symbol, channel, content, status, error, created_at, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, nullString(n.SimulationID), n.Type, n.Symbol, n.Channel, n.Content,
		string(n.Status), n.Error, n.CreatedAt.UTC(), nullTime(n.SentAt),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, simulationID string, limit int) ([]*store.Notification, error) {
	query := `SELECT id, COALESCE(simulation_id, ''), type, symbol, channel, content, status, error, created_at, sent_at
		FROM notifications WHERE COALESCE(simulation_id, '') = ?
		ORDER BY created_at DESC, id DESC`
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

	var out []*store.Notification
	for rows.Next() {
		var (
			n      store.Notification
			status string
			sent   sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.SimulationID, &n.Type, &n.Symbol, &n.Channel, &n.Content,
			&status, &n.Error, &n.CreatedAt, &sent); err != nil {
			return nil, err
		}
		n.Status = store.DeliveryStatus(status)
		n.CreatedAt = n.CreatedAt.UTC()
		n.SentAt = timePtr(sent)
		out = append(out, &n)
	}
	return out, rows.Err()
}
