package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the supervisor's view of one managed worker.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Status is a point-in-time snapshot of a managed worker.
type Status struct {
	Name          string        `json:"name"`
	State         State         `json:"state"`
	Uptime        time.Duration `json:"uptime"`
	Restarts      int           `json:"restarts"`
	JobsProcessed int           `json:"jobs_processed"`
	LastExecution string        `json:"last_execution,omitempty"`
}

// Factory builds a fresh worker for a supervised slot. Restarts call it
// again rather than reusing the stopped instance.
type Factory func(name string) *Worker

type managed struct {
	worker    *Worker
	cancel    context.CancelFunc
	done      chan struct{}
	state     State
	startedAt time.Time
	restarts  int
}

// Supervisor owns named worker loops: it starts them, stops them and
// restarts them on request. Workers never manage their own lifecycle.
type Supervisor struct {
	factory Factory
	logger  *slog.Logger

	mu      sync.Mutex
	workers map[string]*managed
}

// NewSupervisor creates a supervisor that builds workers with the factory.
func NewSupervisor(factory Factory, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		factory: factory,
		logger:  logger.With("module", "supervisor"),
		workers: make(map[string]*managed),
	}
}

// Start launches the named worker. Starting an already-running worker is an
// error; a stopped slot is reused.
func (s *Supervisor) Start(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.workers[name]
	if ok && existing.state == StateRunning {
		return fmt.Errorf("worker %q is already running", name)
	}

	restarts := 0
	if ok {
		restarts = existing.restarts
	}

	s.launch(ctx, name, restarts)

	return nil
}

// launch starts a worker loop for the slot. Caller holds the lock.
func (s *Supervisor) launch(ctx context.Context, name string, restarts int) {
	runCtx, cancel := context.WithCancel(ctx)

	m := &managed{
		worker:    s.factory(name),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateRunning,
		startedAt: time.Now().UTC(),
		restarts:  restarts,
	}

	s.workers[name] = m

	go func() {
		defer close(m.done)

		err := m.worker.Run(runCtx)
		if err != nil {
			s.logger.Error("Worker exited with error", "worker", name, "error", err)
		}

		s.mu.Lock()
		if s.workers[name] == m {
			m.state = StateStopped
		}
		s.mu.Unlock()
	}()

	s.logger.Info("Worker started", "worker", name, "restarts", restarts)
}

// Stop cancels the named worker and waits for its loop to drain.
func (s *Supervisor) Stop(name string) error {
	s.mu.Lock()

	m, ok := s.workers[name]
	if !ok || m.state != StateRunning {
		s.mu.Unlock()

		return fmt.Errorf("worker %q is not running", name)
	}

	m.cancel()
	s.mu.Unlock()

	<-m.done

	s.logger.Info("Worker stopped", "worker", name)

	return nil
}

// Restart stops the named worker and starts a fresh instance in its slot,
// bumping the restart counter.
func (s *Supervisor) Restart(ctx context.Context, name string) error {
	s.mu.Lock()

	m, ok := s.workers[name]
	if !ok || m.state != StateRunning {
		s.mu.Unlock()

		return fmt.Errorf("worker %q is not running", name)
	}

	m.cancel()
	s.mu.Unlock()

	<-m.done

	s.mu.Lock()
	defer s.mu.Unlock()

	// A concurrent Start may have taken the slot while we waited for the
	// old loop to drain; launching over it would orphan its cancel handle.
	if s.workers[name] != m {
		return fmt.Errorf("worker %q was restarted concurrently", name)
	}

	s.logger.Info("Worker stopped", "worker", name)
	s.launch(ctx, name, m.restarts+1)

	return nil
}

// StopAll stops every running worker. Used on shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	names := make([]string, 0, len(s.workers))

	for name, m := range s.workers {
		if m.state == StateRunning {
			names = append(names, name)
		}
	}
	s.mu.Unlock()

	for _, name := range names {
		_ = s.Stop(name)
	}
}

// Status reports the named worker, or an error for an unknown name.
func (s *Supervisor) Status(name string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.workers[name]
	if !ok {
		return Status{}, fmt.Errorf("unknown worker %q", name)
	}

	return s.snapshot(name, m), nil
}

// Statuses reports every managed worker.
func (s *Supervisor) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]Status, 0, len(s.workers))
	for name, m := range s.workers {
		statuses = append(statuses, s.snapshot(name, m))
	}

	return statuses
}

func (s *Supervisor) snapshot(name string, m *managed) Status {
	status := Status{
		Name:          name,
		State:         m.state,
		Restarts:      m.restarts,
		JobsProcessed: m.worker.JobsProcessed(),
		LastExecution: m.worker.LastExecutionID(),
	}

	if m.state == StateRunning {
		status.Uptime = time.Since(m.startedAt)
	}

	return status
}
