package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rustyeddy/simtrader/store"
)

const simulationColumns = `id, name, config_json::text, status, pid, created_at, updated_at,
	started_at, stopped_at, paused_at, error_message`

func (s *Store) CreateSimulation(ctx context.Context, sim *store.Simulation) error {
	now := time.Now().UTC()
	if sim.CreatedAt.IsZero() {
		sim.CreatedAt = now
	}
	sim.UpdatedAt = now
	if sim.Status == "" {
		sim.Status = store.StatusPending
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO simulations (id, name, config_json, status, pid, created_at, updated_at,
			started_at, stopped_at, paused_at, error_message)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sim.ID, sim.Name, string(sim.Config), string(sim.Status), nullPID(sim.PID),
		sim.CreatedAt.UTC(), sim.UpdatedAt,
		utcPtr(sim.StartedAt), utcPtr(sim.StoppedAt), utcPtr(sim.PausedAt),
		sim.ErrorMessage,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("simulation %s: %w", sim.ID, store.ErrDuplicateKey)
		}
		return fmt.Errorf("insert simulation: %w", err)
	}
	return nil
}

func (s *Store) GetSimulation(ctx context.Context, id string) (*store.Simulation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+simulationColumns+` FROM simulations WHERE id = $1`, id)
	sim, err := scanSimulation(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("simulation %s: %w", id, store.ErrNotFound)
		}
		return nil, err
	}
	return sim, nil
}

func (s *Store) ListSimulations(ctx context.Context, statuses ...store.Status) ([]*store.Simulation, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.pool.Query(ctx, `SELECT `+simulationColumns+` FROM simulations
			ORDER BY created_at DESC, id DESC`)
	} else {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		rows, err = s.pool.Query(ctx, `SELECT `+simulationColumns+` FROM simulations
			WHERE status = ANY($1) ORDER BY created_at DESC, id DESC`, names)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*store.Simulation
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sim)
	}
	return out, rows.Err()
}

func (s *Store) UpdateSimulation(ctx context.Context, sim *store.Simulation) error {
	sim.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE simulations SET
			name = $1, config_json = $2::jsonb, status = $3, pid = $4, updated_at = $5,
			started_at = $6, stopped_at = $7, paused_at = $8, error_message = $9
		WHERE id = $10`,
		sim.Name, string(sim.Config), string(sim.Status), nullPID(sim.PID), sim.UpdatedAt,
		utcPtr(sim.StartedAt), utcPtr(sim.StoppedAt), utcPtr(sim.PausedAt), sim.ErrorMessage,
		sim.ID,
	)
	if err != nil {
		return fmt.Errorf("update simulation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("simulation %s: %w", sim.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteSimulation(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM simulations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete simulation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("simulation %s: %w", id, store.ErrNotFound)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM journal_entries WHERE account = $1`, id); err != nil {
		return fmt.Errorf("delete journal: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) CountActive(ctx context.Context, excludeID string) (int, error) {
	names := make([]string, len(store.ActiveStatuses))
	for i, st := range store.ActiveStatuses {
		names[i] = string(st)
	}

	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM simulations
		WHERE status = ANY($1) AND id <> $2`, names, excludeID).Scan(&n)
	return n, err
}

func scanSimulation(row pgx.Row) (*store.Simulation, error) {
	var (
		sim            store.Simulation
		config, status string
		pid            *int32
	)
	if err := row.Scan(
		&sim.ID, &sim.Name, &config, &status, &pid,
		&sim.CreatedAt, &sim.UpdatedAt,
		&sim.StartedAt, &sim.StoppedAt, &sim.PausedAt,
		&sim.ErrorMessage,
	); err != nil {
		return nil, err
	}
	sim.Config = []byte(config)
	sim.Status = store.Status(status)
	if pid != nil {
		sim.PID = int(*pid)
	}
	sim.CreatedAt = sim.CreatedAt.UTC()
	sim.UpdatedAt = sim.UpdatedAt.UTC()
	sim.StartedAt = utcPtr(sim.StartedAt)
	sim.StoppedAt = utcPtr(sim.StoppedAt)
	sim.PausedAt = utcPtr(sim.PausedAt)
	return &sim, nil
}

func nullPID(pid int) *int32 {
	if pid == 0 {
		return nil
	}
	v := int32(pid)
	return &v
}
