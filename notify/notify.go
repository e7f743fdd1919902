// Package notify delivers simulation events to chat channels and records
// every delivery attempt.
package notify

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/simtrader/pkg/id"
	"github.com/rustyeddy/simtrader/store"
)

type Type string

const (
	Signal           Type = "signal"
	TradeOpened      Type = "trade_opened"
	TradeClosed      Type = "trade_closed"
	SimulationStatus Type = "simulation_status"
	Warning          Type = "warning"
	Error            Type = "error"
)

type Field struct {
	Name  string
	Value string
}

// Event is one notification. Message is plain text; Fields carry details
// that channels may render separately.
type Event struct {
	Type         Type
	SimulationID string
	Simulation   string
	Symbol       string
	Title        string
	Message      string
	Fields       []Field
	PnL          decimal.Decimal
	Time         time.Time
}

// Text renders the event as a single plain text block.
func (e Event) Text() string {
	var b strings.Builder
	b.WriteString(e.Title)
	if e.Message != "" {
		b.WriteString("\n")
		b.WriteString(e.Message)
	}
	for _, f := range e.Fields {
		b.WriteString("\n")
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
	}
	return b.String()
}

type Notifier interface {
	Name() string
	Enabled() bool
	Notify(ctx context.Context, e Event) error
}

// Recorder stores the outcome of an event delivery.
type Recorder interface {
	Record(ctx context.Context, e Event, channels []string, err error) error
}

// Manager fans an event out to every enabled notifier.
type Manager struct {
	notifiers []Notifier
	recorder  Recorder
	log       zerolog.Logger
}

func NewManager(log zerolog.Logger, rec Recorder, notifiers ...Notifier) *Manager {
	return &Manager{notifiers: notifiers, recorder: rec, log: log}
}

func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Channels lists the enabled external channels.
func (m *Manager) Channels() []string {
	var out []string
	for _, n := range m.notifiers {
		if n.Enabled() && n.Name() != logChannel {
			out = append(out, n.Name())
		}
	}
	return out
}

// Notify delivers e and records the outcome. Delivery failures are logged and
// returned joined; they never stop other channels.
func (m *Manager) Notify(ctx context.Context, e Event) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	var (
		errs     []error
		channels []string
	)
	for _, n := range m.notifiers {
		if !n.Enabled() {
			continue
		}
		if n.Name() != logChannel {
			channels = append(channels, n.Name())
		}
		if err := n.Notify(ctx, e); err != nil {
			m.log.Warn().Err(err).Str("channel", n.Name()).Str("type", string(e.Type)).Msg("notification failed")
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)

	if m.recorder != nil {
		if rerr := m.recorder.Record(ctx, e, channels, err); rerr != nil {
			m.log.Error().Err(rerr).Msg("record notification")
		}
	}
	return err
}

// StoreRecorder writes one notifications row per event.
type StoreRecorder struct {
	Store store.NotificationStore
}

func (r StoreRecorder) Record(ctx context.Context, e Event, channels []string, err error) error {
	n := &store.Notification{
		ID:           id.New(),
		SimulationID: e.SimulationID,
		Type:         string(e.Type),
		Symbol:       e.Symbol,
		Channel:      strings.Join(channels, ","),
		Content:      e.Text(),
		CreatedAt:    e.Time,
	}
	switch {
	case len(channels) == 0:
		n.Status = store.DeliverySkipped
		n.Error = "no notification channel enabled"
	case err != nil:
		n.Status = store.DeliveryFailed
		n.Error = err.Error()
	default:
		n.Status = store.DeliverySent
		now := time.Now().UTC()
		n.SentAt = &now
	}
	return r.Store.InsertNotification(ctx, n)
}

// stripURL drops the request URL from transport errors. Bot tokens and
// webhook secrets live in the URL.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
