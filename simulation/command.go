package simulation

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/simtrader/store"
)

// Command is a control message sent to a running worker.
type Command string

const (
	CmdStop   Command = "stop"
	CmdPause  Command = "pause"
	CmdResume Command = "resume"
)

func ParseCommand(s string) (Command, error) {
	switch c := Command(strings.ToLower(strings.TrimSpace(s))); c {
	case CmdStop, CmdPause, CmdResume:
		return c, nil
	}
	return "", fmt.Errorf("unknown command %q", s)
}

// Event is a state report from a worker to the supervisor.
type Event struct {
	SimulationID string       `json:"simulation_id"`
	Status       store.Status `json:"status"`
	Message      string       `json:"message,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}
