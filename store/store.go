// Package store defines the persistence layer shared by the supervisor, the
// workers and the CLI. Backends live in store/sqlite and store/postgres.
package store

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/simtrader/journal"
	"github.com/rustyeddy/simtrader/market"
)

// Status is the lifecycle state of a simulation record.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
	StatusError   Status = "error"
)

// Active statuses count against the concurrency limit.
func (s Status) Active() bool {
	return slices.Contains(ActiveStatuses, s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPaused, StatusStopped, StatusError:
		return true
	}
	return false
}

// ActiveStatuses lists the statuses that hold a concurrency slot.
var ActiveStatuses = []Status{StatusPending, StatusRunning, StatusPaused}

type Simulation struct {
	ID           string
	Name         string
	Config       json.RawMessage
	Status       Status
	PID          int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	StoppedAt    *time.Time
	PausedAt     *time.Time
	ErrorMessage string
}

// Trade mirrors the journal for dashboards and statistics. ExitPrice, PnL and
// ClosedAt are null until the trade closes; PnL is net of the exit fee.
type Trade struct {
	ID             string
	SimulationID   string
	Symbol         string
	Side           market.Side
	Action         journal.Action
	Quantity       decimal.Decimal
	EntryPrice     decimal.Decimal
	ExitPrice      decimal.NullDecimal
	PnL            decimal.NullDecimal
	Fees           decimal.Decimal
	Interpretation string
	CreatedAt      time.Time
	ClosedAt       *time.Time
}

func (t Trade) Closed() bool { return t.ClosedAt != nil }

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
)

type Notification struct {
	ID           string
	SimulationID string
	Type         string
	Symbol       string
	Channel      string
	Content      string
	Status       DeliveryStatus
	Error        string
	CreatedAt    time.Time
	SentAt       *time.Time
}

type SimulationStore interface {
	CreateSimulation(ctx context.Context, s *Simulation) error
	GetSimulation(ctx context.Context, id string) (*Simulation, error)
	// ListSimulations returns records newest first, optionally filtered by status.
	ListSimulations(ctx context.Context, statuses ...Status) ([]*Simulation, error)
	UpdateSimulation(ctx context.Context, s *Simulation) error
	// DeleteSimulation removes the record with its trades, notifications and
	// journal entries.
	DeleteSimulation(ctx context.Context, id string) error
	// CountActive counts pending, running and paused records other than excludeID.
	CountActive(ctx context.Context, excludeID string) (int, error)
}

type TradeStore interface {
	InsertTrade(ctx context.Context, t *Trade) error
	CloseTrade(ctx context.Context, id string, exitPrice, netPnL, totalFees decimal.Decimal, closedAt time.Time) error
	// OpenTrade returns the unclosed trade for a symbol, or ErrNotFound.
	OpenTrade(ctx context.Context, simulationID, symbol string) (*Trade, error)
	// ListTrades returns trades newest first; limit <= 0 means all.
	ListTrades(ctx context.Context, simulationID string, limit int) ([]*Trade, error)
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, simulationID string, limit int) ([]*Notification, error)
}

type Store interface {
	SimulationStore
	TradeStore
	NotificationStore
	// Journal returns the trade journal backed by the same database.
	Journal() journal.Journal
	Close() error
}
