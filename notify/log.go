package notify

import (
	"context"

	"github.com/rs/zerolog"
)

const logChannel = "log"

// Log writes events to a zerolog logger. It is always enabled and is not
// counted as a delivery channel.
type Log struct {
	log zerolog.Logger
}

func NewLog(l zerolog.Logger) *Log { return &Log{log: l} }

func (l *Log) Name() string { return logChannel }

func (l *Log) Enabled() bool { return true }

func (l *Log) Notify(_ context.Context, e Event) error {
	ev := l.log.Info()
	switch e.Type {
	case Warning:
		ev = l.log.Warn()
	case Error:
		ev = l.log.Error()
	}
	ev.Str("type", string(e.Type)).
		Str("simulation_id", e.SimulationID).
		Str("symbol", e.Symbol).
		Str("message", e.Message).
		Msg(e.Title)
	return nil
}
