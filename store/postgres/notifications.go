package postgres

import (
	"context"
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
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications
		(id, simulation_id, type, symbol, channel, content, status, error, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, nullIfEmpty(n.SimulationID), n.Type, n.Symbol, n.Channel, n.Content,
		string(n.Status), n.Error, n.CreatedAt.UTC(), utcPtr(n.SentAt),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, simulationID string, limit int) ([]*store.Notification, error) {
	query := `SELECT id, COALESCE(simulation_id, ''), type, symbol, channel, content, status, error, created_at, sent_at
		FROM notifications WHERE COALESCE(simulation_id, '') = $1
		ORDER BY created_at DESC, id DESC`
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

	var out []*store.Notification
	for rows.Next() {
		var (
			n      store.Notification
			status string
		)
		if err := rows.Scan(&n.ID, &n.SimulationID, &n.Type, &n.Symbol, &n.Channel, &n.Content,
			&status, &n.Error, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, err
		}
		n.Status = store.DeliveryStatus(status)
		n.CreatedAt = n.CreatedAt.UTC()
		n.SentAt = utcPtr(n.SentAt)
		out = append(out, &n)
	}
	return out, rows.Err()
}
