package simulation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/simtrader/store"
)

// ErrWorkerExited is returned when sending to a worker that has finished.
var ErrWorkerExited = errors.New("worker exited")

// Handle controls one launched worker.
type Handle interface {
	Send(cmd Command) error
	// Done is closed once the worker has exited.
	Done() <-chan struct{}
	Kill() error
	PID() int
}

// Launcher starts a worker for a simulation record. The worker reports state
// changes on events until it exits.
type Launcher interface {
	Launch(ctx context.Context, rec *store.Simulation, events chan<- Event) (Handle, error)
}

// WorkerFactory builds a worker for a record. The returned cleanup releases
// anything the worker owns and may be nil.
type WorkerFactory func(ctx context.Context, rec *store.Simulation) (*Worker, func(), error)

// InProcessLauncher runs workers as goroutines in the supervisor process.
// Panics are recovered into error events, but a worker that hangs or
// corrupts memory is not isolated from its siblings. Use it for tests and
// single-process deployments.
type InProcessLauncher struct {
	Build WorkerFactory
	Log   zerolog.Logger
}

func (l *InProcessLauncher) Launch(ctx context.Context, rec *store.Simulation, events chan<- Event) (Handle, error) {
	w, cleanup, err := l.Build(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("build worker %s: %w", rec.ID, err)
	}

	wctx, cancel := context.WithCancel(context.Background())
	h := &inProcessHandle{
		commands: make(chan Command, 8),
		done:     make(chan struct{}),
		cancel:   cancel,
	}

	go func() {
		defer close(h.done)
		defer cancel()
		if cleanup != nil {
			defer cleanup()
		}
		defer func() {
			if r := recover(); r != nil {
				l.Log.Error().Str("simulation_id", rec.ID).Interface("panic", r).Msg("worker panicked")
				w.emit(events, store.StatusError, fmt.Sprintf("worker panicked: %v", r))
			}
		}()
		_ = w.Run(wctx, h.commands, events)
	}()
	return h, nil
}

type inProcessHandle struct {
	commands chan Command
	done     chan struct{}
	cancel   context.CancelFunc
	once     sync.Once
}

func (h *inProcessHandle) Send(cmd Command) error {
	select {
	case <-h.done:
		return ErrWorkerExited
	default:
	}
	select {
	case h.commands <- cmd:
		return nil
	case <-h.done:
		return ErrWorkerExited
	}
}

func (h *inProcessHandle) Done() <-chan struct{} { return h.done }

// Kill cancels the worker's context. The goroutine exits at its next
// suspension point.
func (h *inProcessHandle) Kill() error {
	h.once.Do(h.cancel)
	return nil
}

func (h *inProcessHandle) PID() int { return os.Getpid() }
