package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/simtrader/store"
)

const simulationColumns = `id, name, config_json, status, pid, created_at, updated_at,
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO simulations (`+simulationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sim.ID, sim.Name, string(sim.Config), string(sim.Status), nullPID(sim.PID),
		sim.CreatedAt.UTC(), sim.UpdatedAt,
		nullTime(sim.StartedAt), nullTime(sim.StoppedAt), nullTime(sim.PausedAt),
		sim.ErrorMessage,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("simulation %s: %w", sim.ID, store.ErrDuplicateKey)
		}
		return fmt.Errorf("insert simulation: %w", err)
	}
	return nil
}

func (s *Store) GetSimulation(ctx context.Context, id string) (*store.Simulation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+simulationColumns+` FROM simulations WHERE id = ?`, id)
	sim, err := scanSimulation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("simulation %s: %w", id, store.ErrNotFound)
		}
		return nil, err
	}
	return sim, nil
}

func (s *Store) ListSimulations(ctx context.Context, statuses ...store.Status) ([]*store.Simulation, error) {
	query := `SELECT ` + simulationColumns + ` FROM simulations`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		ph := make([]string, len(statuses))
		for i, st := range statuses {
			ph[i] = "?"
			args = append(args, string(st))
		}
		query += ` WHERE status IN (` + strings.Join(ph, ",") + `)`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	res, err := s.db.ExecContext(ctx, `
		UPDATE simulations SET
			name = ?, config_json = ?, status = ?, pid = ?, updated_at = ?,
			started_at = ?, stopped_at = ?, paused_at = ?, error_message = ?
		WHERE id = ?`,
		sim.Name, string(sim.Config), string(sim.Status), nullPID(sim.PID), sim.UpdatedAt,
		nullTime(sim.StartedAt), nullTime(sim.StoppedAt), nullTime(sim.PausedAt), sim.ErrorMessage,
		sim.ID,
	)
	if err != nil {
		return fmt.Errorf("update simulation: %w", err)
	}
	return expectOne(res, "simulation", sim.ID)
}

func (s *Store) DeleteSimulation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM simulations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete simulation: %w", err)
	}
	if err := expectOne(res, "simulation", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM journal_entries WHERE account = ?`, id); err != nil {
		return fmt.Errorf("delete journal: %w", err)
	}
	return tx.Commit()
}

func (s *Store) CountActive(ctx context.Context, excludeID string) (int, error) {
	ph := make([]string, len(store.ActiveStatuses))
	args := make([]any, 0, len(store.ActiveStatuses)+1)
	for i, st := range store.ActiveStatuses {
		ph[i] = "?"
		args = append(args, string(st))
	}
	args = append(args, excludeID)

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM simulations
		WHERE status IN (`+strings.Join(ph, ",")+`) AND id != ?`, args...).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSimulation(row scanner) (*store.Simulation, error) {
	var (
		sim                        store.Simulation
		config, status             string
		pid                        sql.NullInt64
		started, stopped, pausedAt sql.NullTime
	)
	if err := row.Scan(
		&sim.ID, &sim.Name, &config, &status, &pid,
		&sim.CreatedAt, &sim.UpdatedAt,
		&started, &stopped, &pausedAt,
		&sim.ErrorMessage,
	); err != nil {
		return nil, err
	}
	sim.Config = []byte(config)
	sim.Status = store.Status(status)
	sim.PID = int(pid.Int64)
	sim.CreatedAt = sim.CreatedAt.UTC()
	sim.UpdatedAt = sim.UpdatedAt.UTC()
	sim.StartedAt = timePtr(started)
	sim.StoppedAt = timePtr(stopped)
	sim.PausedAt = timePtr(pausedAt)
	return &sim, nil
}

func nullPID(pid int) any {
	if pid == 0 {
		return nil
	}
	return pid
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}
