package simulation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/simtrader/store"
)

// ProcessLauncher runs every worker in its own OS process by re-executing
// the simtrader binary as "worker --id <id>". Commands travel on the child's
// stdin one per line and events come back on its stdout as JSON lines. The
// child's stderr carries its logs.
type ProcessLauncher struct {
	// Executable defaults to the running binary.
	Executable string
	// Args are placed before "worker --id <id>", e.g. a --config flag.
	Args   []string
	Env    []string
	Stderr io.Writer
	Log    zerolog.Logger
}

func (l *ProcessLauncher) Launch(ctx context.Context, rec *store.Simulation, events chan<- Event) (Handle, error) {
	exe := l.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
	}

	args := append(append([]string{}, l.Args...), "worker", "--id", rec.ID)
	// Not CommandContext: the worker outlives the request that started it.
	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.Stderr = l.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker process: %w", err)
	}

	h := &processHandle{cmd: cmd, stdin: stdin, done: make(chan struct{})}
	log := l.Log.With().Str("simulation_id", rec.ID).Int("pid", cmd.Process.Pid).Logger()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			var ev Event
			if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
				log.Warn().Err(err).Str("line", sc.Text()).Msg("bad event line from worker")
				continue
			}
			events <- ev
		}
	}()

	go func() {
		<-readDone
		err := cmd.Wait()
		if err != nil {
			log.Warn().Err(err).Msg("worker process exited")
		} else {
			log.Debug().Msg("worker process exited")
		}
		close(h.done)
	}()

	log.Info().Msg("worker process started")
	return h, nil
}

type processHandle struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}
}

func (h *processHandle) Send(c Command) error {
	select {
	case <-h.done:
		return ErrWorkerExited
	default:
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := fmt.Fprintln(h.stdin, string(c)); err != nil {
		return fmt.Errorf("send %s: %w", c, err)
	}
	return nil
}

func (h *processHandle) Done() <-chan struct{} { return h.done }

func (h *processHandle) Kill() error {
	select {
	case <-h.done:
		return nil
	default:
	}
	return h.cmd.Process.Kill()
}

func (h *processHandle) PID() int { return h.cmd.Process.Pid }

// ServeWorker is the child side of ProcessLauncher. It reads commands from
// in, writes events to out and returns when the worker exits. Closing in,
// which happens when the supervisor dies, stops the worker.
func ServeWorker(ctx context.Context, w *Worker, in io.Reader, out io.Writer, log zerolog.Logger) error {
	commands := make(chan Command, 8)
	events := make(chan Event, 16)

	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			c, err := ParseCommand(sc.Text())
			if err != nil {
				log.Warn().Err(err).Msg("ignoring control line")
				continue
			}
			commands <- c
		}
		close(commands)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		enc := json.NewEncoder(out)
		for ev := range events {
			if err := enc.Encode(ev); err != nil {
				log.Error().Err(err).Msg("write event")
			}
		}
	}()

	err := w.Run(ctx, commands, events)
	close(events)
	<-writerDone
	return err
}
