package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/simtrader/config"
	"github.com/rustyeddy/simtrader/pkg/id"
	"github.com/rustyeddy/simtrader/store"
)

// Messages written to records by the supervisor itself.
const (
	MsgWorkerDied = "worker terminated unexpectedly"
	MsgNoWorker   = "no live worker for active record"
	MsgRecovered  = "recovered after restart"
	MsgShutdown   = "supervisor shutdown"
	MsgKilled     = "killed after stop timeout"
)

type Options struct {
	MaxConcurrent int
	StopTimeout   time.Duration
	WatchInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrent <= 0 || o.MaxConcurrent > config.MaxConcurrentLimit {
		o.MaxConcurrent = config.MaxConcurrentLimit
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 10 * time.Second
	}
	if o.WatchInterval <= 0 {
		o.WatchInterval = 2 * time.Second
	}
	return o
}

// OptionsFrom maps the supervisor section of the application config.
func OptionsFrom(c config.SupervisorConfig) Options {
	return Options{
		MaxConcurrent: c.MaxConcurrent,
		StopTimeout:   c.StopTimeoutDuration(),
		WatchInterval: c.WatchIntervalDuration(),
	}
}

// View is a simulation record with the supervisor's knowledge of its worker.
type View struct {
	*store.Simulation
	WorkerAlive bool
}

type workerRef struct {
	simID   string
	handle  Handle
	lastErr string
}

// launchEvent is an event tagged with the launch that produced it, so events
// from a replaced worker never touch its successor's record.
type launchEvent struct {
	ref *workerRef
	Event
}

// Supervisor owns every worker of one process. It is the only writer of
// lifecycle status besides the events workers report back to it.
type Supervisor struct {
	store    store.Store
	launcher Launcher
	log      zerolog.Logger
	opts     Options
	events   chan launchEvent

	// opMu serializes lifecycle operations so capacity checks and the status
	// writes that follow them are atomic. recMu guards read-modify-write of a
	// record and is also taken by the event loop. mu guards workers.
	// Lock order is opMu, recMu, mu.
	opMu    sync.Mutex
	recMu   sync.Mutex
	mu      sync.Mutex
	workers map[string]*workerRef
}

func NewSupervisor(st store.Store, l Launcher, log zerolog.Logger, opts Options) *Supervisor {
	return &Supervisor{
		store:    st,
		launcher: l,
		log:      log,
		opts:     opts.withDefaults(),
		events:   make(chan launchEvent, 64),
		workers:  make(map[string]*workerRef),
	}
}

func (s *Supervisor) Options() Options { return s.opts }

// Create validates cfg and persists a pending record.
func (s *Supervisor) Create(ctx context.Context, name string, cfg config.Simulation) (*store.Simulation, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if name == "" {
		name = cfg.Name
	}
	if name == "" {
		name = cfg.CryptoDisplayName + " simulation"
	}
	cfg.Name = name
	blob, err := cfg.JSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	n, err := s.store.CountActive(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("count active simulations: %w", err)
	}
	if n >= s.opts.MaxConcurrent {
		return nil, fmt.Errorf("%w: %w: %d of %d simulations active",
			ErrValidation, ErrConcurrencyLimit, n, s.opts.MaxConcurrent)
	}

	rec := &store.Simulation{
		ID:     id.New(),
		Name:   name,
		Config: blob,
		Status: store.StatusPending,
	}
	if err := s.store.CreateSimulation(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist simulation: %w", err)
	}
	s.log.Info().Str("simulation_id", rec.ID).Str("name", name).Str("symbol", cfg.Symbol).Msg("simulation created")
	return rec, nil
}

// Start launches a worker for a pending, stopped or failed simulation.
func (s *Supervisor) Start(ctx context.Context, simID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.start(ctx, simID)
}

func (s *Supervisor) start(ctx context.Context, simID string) error {
	rec, err := s.get(ctx, simID)
	if err != nil {
		return err
	}
	if rec.Status == store.StatusRunning || rec.Status == store.StatusPaused {
		return fmt.Errorf("%w: simulation %s is %s", ErrInvalidState, simID, rec.Status)
	}
	if s.alive(simID) {
		return fmt.Errorf("%w: simulation %s still has a live worker", ErrInvalidState, simID)
	}

	n, err := s.store.CountActive(ctx, simID)
	if err != nil {
		return fmt.Errorf("count active simulations: %w", err)
	}
	if n >= s.opts.MaxConcurrent {
		return fmt.Errorf("%w: %d of %d simulations active, cannot start %s",
			ErrConcurrencyLimit, n, s.opts.MaxConcurrent, simID)
	}

	if s.launcher == nil {
		return fmt.Errorf("%w: no launcher configured", ErrInvalidState)
	}
	ch := make(chan Event, 16)
	h, err := s.launcher.Launch(ctx, rec, ch)
	if err != nil {
		_ = s.update(ctx, simID, func(r *store.Simulation) bool {
			r.Status = store.StatusError
			r.ErrorMessage = err.Error()
			r.PID = 0
			return true
		})
		return fmt.Errorf("launch worker for %s: %w", simID, err)
	}

	// Tracked before the record says running, so the watcher never sees a
	// running record without a handle.
	ref := &workerRef{simID: simID, handle: h}
	s.mu.Lock()
	s.workers[simID] = ref
	s.mu.Unlock()
	go s.forward(ref, ch)

	now := time.Now().UTC()
	err = s.update(ctx, simID, func(r *store.Simulation) bool {
		r.Status = store.StatusRunning
		r.PID = h.PID()
		r.StartedAt = &now
		r.StoppedAt = nil
		r.PausedAt = nil
		r.ErrorMessage = ""
		return true
	})
	if err != nil {
		_ = h.Kill()
		s.untrack(simID)
		return err
	}
	s.log.Info().Str("simulation_id", simID).Int("pid", h.PID()).Msg("simulation started")
	return nil
}

// Stop asks the worker to stop and waits up to StopTimeout before killing it.
func (s *Supervisor) Stop(ctx context.Context, simID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.stop(ctx, simID, "")
}

func (s *Supervisor) stop(ctx context.Context, simID, reason string) error {
	rec, err := s.get(ctx, simID)
	if err != nil {
		return err
	}
	if !rec.Status.Active() && !s.alive(simID) {
		return fmt.Errorf("%w: simulation %s is already %s", ErrInvalidState, simID, rec.Status)
	}

	if t := s.lookup(simID); t != nil {
		if graceful := s.halt(simID, t.handle); !graceful && reason == "" {
			reason = MsgKilled
		}
		s.untrack(simID)
	}

	now := time.Now().UTC()
	err = s.update(ctx, simID, func(r *store.Simulation) bool {
		if r.Status == store.StatusError {
			return false
		}
		r.Status = store.StatusStopped
		r.StoppedAt = &now
		r.PausedAt = nil
		r.PID = 0
		r.ErrorMessage = reason
		return true
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("simulation_id", simID).Str("reason", reason).Msg("simulation stopped")
	return nil
}

// halt sends stop and waits for the worker to exit, killing it on timeout.
// It reports whether the exit was graceful.
func (s *Supervisor) halt(simID string, h Handle) bool {
	if err := h.Send(CmdStop); err != nil && !errors.Is(err, ErrWorkerExited) {
		s.log.Warn().Err(err).Str("simulation_id", simID).Msg("send stop failed")
	}
	timer := time.NewTimer(s.opts.StopTimeout)
	defer timer.Stop()
	select {
	case <-h.Done():
		return true
	case <-timer.C:
	}

	s.log.Warn().Str("simulation_id", simID).Dur("timeout", s.opts.StopTimeout).Msg("worker did not stop in time, killing")
	if err := h.Kill(); err != nil {
		s.log.Error().Err(err).Str("simulation_id", simID).Msg("kill worker")
	}
	select {
	case <-h.Done():
	case <-time.After(s.opts.StopTimeout):
		s.log.Error().Str("simulation_id", simID).Msg("worker still alive after kill")
	}
	return false
}

// Pause requires a running simulation with a live worker.
func (s *Supervisor) Pause(ctx context.Context, simID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	rec, err := s.get(ctx, simID)
	if err != nil {
		return err
	}
	if rec.Status != store.StatusRunning {
		return fmt.Errorf("%w: cannot pause simulation %s in status %s", ErrInvalidState, simID, rec.Status)
	}
	t := s.lookup(simID)
	if t == nil || !alive(t.handle) {
		return fmt.Errorf("%w: simulation %s has no live worker", ErrInvalidState, simID)
	}
	if err := t.handle.Send(CmdPause); err != nil {
		return sendError("pause", simID, err)
	}

	now := time.Now().UTC()
	return s.update(ctx, simID, func(r *store.Simulation) bool {
		r.Status = store.StatusPaused
		r.PausedAt = &now
		return true
	})
}

// Resume requires a paused simulation. When its worker is gone a new one is
// launched instead.
func (s *Supervisor) Resume(ctx context.Context, simID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	rec, err := s.get(ctx, simID)
	if err != nil {
		return err
	}
	if rec.Status != store.StatusPaused {
		return fmt.Errorf("%w: cannot resume simulation %s in status %s", ErrInvalidState, simID, rec.Status)
	}

	t := s.lookup(simID)
	if t == nil || !alive(t.handle) {
		s.untrack(simID)
		if err := s.update(ctx, simID, func(r *store.Simulation) bool {
			r.Status = store.StatusStopped
			r.PID = 0
			return true
		}); err != nil {
			return err
		}
		return s.start(ctx, simID)
	}

	if err := t.handle.Send(CmdResume); err != nil {
		return sendError("resume", simID, err)
	}
	return s.update(ctx, simID, func(r *store.Simulation) bool {
		r.Status = store.StatusRunning
		r.PausedAt = nil
		return true
	})
}

// Delete stops an active simulation and removes its record, trades,
// notifications and journal.
func (s *Supervisor) Delete(ctx context.Context, simID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	rec, err := s.get(ctx, simID)
	if err != nil {
		return err
	}
	if rec.Status.Active() || s.alive(simID) {
		if err := s.stop(ctx, simID, ""); err != nil && !errors.Is(err, ErrInvalidState) {
			return err
		}
	}

	s.recMu.Lock()
	defer s.recMu.Unlock()
	if err := s.store.DeleteSimulation(ctx, simID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, simID)
		}
		return fmt.Errorf("delete simulation %s: %w", simID, err)
	}
	s.log.Info().Str("simulation_id", simID).Msg("simulation deleted")
	return nil
}

func (s *Supervisor) Get(ctx context.Context, simID string) (View, error) {
	rec, err := s.get(ctx, simID)
	if err != nil {
		return View{}, err
	}
	return View{Simulation: rec, WorkerAlive: s.alive(simID)}, nil
}

func (s *Supervisor) List(ctx context.Context, statuses ...store.Status) ([]View, error) {
	recs, err := s.store.ListSimulations(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("list simulations: %w", err)
	}
	out := make([]View, len(recs))
	for i, r := range recs {
		out[i] = View{Simulation: r, WorkerAlive: s.alive(r.ID)}
	}
	return out, nil
}

// Trades lists a simulation's trades newest first; limit <= 0 means all.
func (s *Supervisor) Trades(ctx context.Context, simID string, limit int) ([]*store.Trade, error) {
	if _, err := s.get(ctx, simID); err != nil {
		return nil, err
	}
	trades, err := s.store.ListTrades(ctx, simID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades for %s: %w", simID, err)
	}
	return trades, nil
}

func (s *Supervisor) Stats(ctx context.Context, simID string) (store.Stats, error) {
	if _, err := s.get(ctx, simID); err != nil {
		return store.Stats{}, err
	}
	return store.SimulationStats(ctx, s.store, simID)
}

// Recover marks records left running or paused by a previous process as
// stopped. They are never resumed automatically.
func (s *Supervisor) Recover(ctx context.Context) (int, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	recs, err := s.store.ListSimulations(ctx, store.StatusRunning, store.StatusPaused)
	if err != nil {
		return 0, fmt.Errorf("list orphaned simulations: %w", err)
	}
	n := 0
	for _, r := range recs {
		if s.alive(r.ID) {
			continue
		}
		if err := s.markStopped(ctx, r.ID, MsgRecovered); err != nil {
			return n, err
		}
		s.log.Warn().Str("simulation_id", r.ID).Str("was", string(r.Status)).Msg("orphaned simulation marked stopped")
		n++
	}
	return n, nil
}

// Reconcile releases dead workers and fixes records that claim to run
// without one. A worker that reported an error leaves its record in error;
// any other death is recorded as stopped.
func (s *Supervisor) Reconcile(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	dead := make(map[string]string)
	for simID, t := range s.workers {
		if !alive(t.handle) {
			dead[simID] = t.lastErr
			delete(s.workers, simID)
		}
	}
	s.mu.Unlock()

	var errs []error
	for simID, lastErr := range dead {
		status, msg := store.StatusStopped, MsgWorkerDied
		if lastErr != "" {
			status, msg = store.StatusError, lastErr
		}
		now := time.Now().UTC()
		err := s.update(ctx, simID, func(r *store.Simulation) bool {
			if !r.Status.Active() {
				return false
			}
			r.Status = status
			r.ErrorMessage = msg
			r.StoppedAt = &now
			r.PID = 0
			return true
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		s.log.Warn().Str("simulation_id", simID).Str("status", string(status)).Str("reason", msg).Msg("reconciled dead worker")
	}

	recs, err := s.store.ListSimulations(ctx, store.StatusRunning, store.StatusPaused)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("list active simulations: %w", err))...)
	}
	for _, r := range recs {
		if s.alive(r.ID) {
			continue
		}
		if err := s.markStopped(ctx, r.ID, MsgNoWorker); err != nil {
			errs = append(errs, err)
			continue
		}
		s.log.Warn().Str("simulation_id", r.ID).Msg("active record without worker marked stopped")
	}
	return errors.Join(errs...)
}

// Run recovers orphaned records, then consumes worker events and reconciles
// every WatchInterval until ctx is done. Running workers are stopped before
// it returns.
func (s *Supervisor) Run(ctx context.Context) error {
	if n, err := s.Recover(ctx); err != nil {
		return err
	} else if n > 0 {
		s.log.Info().Int("count", n).Msg("recovered orphaned simulations")
	}

	evCtx, stopEvents := context.WithCancel(context.Background())
	evDone := make(chan struct{})
	go func() {
		defer close(evDone)
		s.consume(evCtx)
	}()

	ticker := time.NewTicker(s.opts.WatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Shutdown(context.WithoutCancel(ctx))
			stopEvents()
			<-evDone
			return nil
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("reconcile failed")
			}
		}
	}
}

// forward relays the events of one launch until its worker has exited and
// everything it emitted has been passed on.
func (s *Supervisor) forward(ref *workerRef, ch <-chan Event) {
	for {
		select {
		case ev := <-ch:
			s.events <- launchEvent{ref: ref, Event: ev}
		case <-ref.handle.Done():
			for {
				select {
				case ev := <-ch:
					s.events <- launchEvent{ref: ref, Event: ev}
				default:
					return
				}
			}
		}
	}
}

func (s *Supervisor) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued so final statuses are kept.
			for {
				select {
				case ev := <-s.events:
					s.handleEvent(context.Background(), ev)
				default:
					return
				}
			}
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		}
	}
}

// handleEvent applies a worker event to its record. Events from a worker
// that has since been replaced are dropped. Stopped and error events release
// the worker's slot in the workers map.
func (s *Supervisor) handleEvent(ctx context.Context, le launchEvent) {
	ev := le.Event
	simID := le.ref.simID
	log := s.log.With().Str("simulation_id", simID).Str("status", string(ev.Status)).Logger()
	log.Debug().Str("message", ev.Message).Msg("worker event")

	s.mu.Lock()
	cur, tracked := s.workers[simID]
	if tracked && cur != le.ref {
		s.mu.Unlock()
		log.Debug().Msg("dropping event from replaced worker")
		return
	}
	if ev.Status == store.StatusError {
		le.ref.lastErr = ev.Message
	}
	if tracked && (ev.Status == store.StatusError || ev.Status == store.StatusStopped) {
		delete(s.workers, simID)
	}
	s.mu.Unlock()

	var apply func(r *store.Simulation) bool
	switch ev.Status {
	case store.StatusError:
		log.Error().Str("message", ev.Message).Msg("worker failed")
		apply = func(r *store.Simulation) bool {
			if r.Status == store.StatusError {
				return false
			}
			ts := ev.Timestamp
			r.Status = store.StatusError
			r.ErrorMessage = ev.Message
			r.StoppedAt = &ts
			r.PID = 0
			return true
		}
	case store.StatusPaused:
		apply = func(r *store.Simulation) bool {
			if r.Status != store.StatusRunning {
				return false
			}
			ts := ev.Timestamp
			r.Status = store.StatusPaused
			r.PausedAt = &ts
			return true
		}
	case store.StatusRunning:
		apply = func(r *store.Simulation) bool {
			if r.Status != store.StatusPaused && r.Status != store.StatusPending {
				return false
			}
			r.Status = store.StatusRunning
			r.PausedAt = nil
			return true
		}
	case store.StatusStopped:
		apply = func(r *store.Simulation) bool {
			if !r.Status.Active() {
				return false
			}
			ts := ev.Timestamp
			r.Status = store.StatusStopped
			r.StoppedAt = &ts
			r.PausedAt = nil
			r.PID = 0
			r.ErrorMessage = ev.Message
			return true
		}
	default:
		log.Warn().Msg("ignoring event with unknown status")
		return
	}

	if err := s.update(ctx, simID, apply); err != nil && !errors.Is(err, ErrNotFound) {
		log.Error().Err(err).Msg("apply worker event")
	}
}

// Shutdown stops every live worker in parallel.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	ids := make([]string, 0, len(s.workers))
	for simID := range s.workers {
		ids = append(ids, simID)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, simID := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.stop(ctx, simID, MsgShutdown); err != nil && !errors.Is(err, ErrInvalidState) {
				s.log.Error().Err(err).Str("simulation_id", simID).Msg("stop on shutdown")
			}
		}()
	}
	wg.Wait()
}

func (s *Supervisor) get(ctx context.Context, simID string) (*store.Simulation, error) {
	rec, err := s.store.GetSimulation(ctx, simID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, simID)
		}
		return nil, fmt.Errorf("load simulation %s: %w", simID, err)
	}
	return rec, nil
}

// update applies fn to the current record and saves it when fn reports a
// change.
func (s *Supervisor) update(ctx context.Context, simID string, fn func(*store.Simulation) bool) error {
	s.recMu.Lock()
	defer s.recMu.Unlock()

	rec, err := s.get(ctx, simID)
	if err != nil {
		return err
	}
	if !fn(rec) {
		return nil
	}
	if err := s.store.UpdateSimulation(ctx, rec); err != nil {
		return fmt.Errorf("update simulation %s: %w", simID, err)
	}
	return nil
}

func (s *Supervisor) markStopped(ctx context.Context, simID, msg string) error {
	now := time.Now().UTC()
	return s.update(ctx, simID, func(r *store.Simulation) bool {
		r.Status = store.StatusStopped
		r.ErrorMessage = msg
		r.StoppedAt = &now
		r.PausedAt = nil
		r.PID = 0
		return true
	})
}

func (s *Supervisor) lookup(simID string) *workerRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workers[simID]
}

func (s *Supervisor) untrack(simID string) {
	s.mu.Lock()
	delete(s.workers, simID)
	s.mu.Unlock()
}

func (s *Supervisor) alive(simID string) bool {
	t := s.lookup(simID)
	return t != nil && alive(t.handle)
}

// sendError reports a worker that exited between the liveness check and the
// send as an invalid state.
func sendError(op, simID string, err error) error {
	if errors.Is(err, ErrWorkerExited) {
		return fmt.Errorf("%w: simulation %s has no live worker", ErrInvalidState, simID)
	}
	return fmt.Errorf("%s %s: %w", op, simID, err)
}

func alive(h Handle) bool {
	select {
	case <-h.Done():
		return false
	default:
		return true
	}
}
