// Package scheduler runs named periodic tasks under a suture supervisor.
// Each task is single-flight: a cycle never starts while the previous cycle
// of the same task is still running.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/flor3z/matchlog/internal/metrics"
)

var (
	// ErrBusy is returned by RunOnce while a cycle of the task is in flight
	ErrBusy = errors.New("scheduler: task is already running")
	// ErrUnknownTask is returned by RunOnce for a name that was never added
	ErrUnknownTask = errors.New("scheduler: unknown task")
)

// Task is a unit of periodic work
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type task struct {
	Task
	running sync.Mutex
}

// Scheduler owns the supervisor and the registered tasks
type Scheduler struct {
	sup *suture.Supervisor

	mu    sync.RWMutex
	tasks map[string]*task
	order []string
}

// New creates a scheduler whose supervisor events go to logger
func New(name string, logger *slog.Logger) *Scheduler {
	handler := &sutureslog.Handler{Logger: logger}
	return &Scheduler{
		sup: suture.New(name, suture.Spec{
			EventHook:      handler.MustHook(),
			FailureBackoff: 15 * time.Second,
			Timeout:        10 * time.Second,
		}),
		tasks: make(map[string]*task),
	}
}

// Add registers a periodic task. Tasks added after Serve starts begin immediately.
func (s *Scheduler) Add(t Task) error {
	if t.Name == "" || t.Run == nil {
		return fmt.Errorf("scheduler: task needs a name and a run function")
	}
	if t.Interval <= 0 {
		return fmt.Errorf("scheduler: task %s has non-positive interval %s", t.Name, t.Interval)
	}

	s.mu.Lock()
	if _, exists := s.tasks[t.Name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: task %s already added", t.Name)
	}
	tk := &task{Task: t}
	s.tasks[t.Name] = tk
	s.order = append(s.order, t.Name)
	s.mu.Unlock()

	s.sup.Add(tk)
	return nil
}

// AddService supervises a long-running service next to the tasks
func (s *Scheduler) AddService(svc suture.Service) {
	s.sup.Add(svc)
}

// Tasks lists task names in the order they were added
func (s *Scheduler) Tasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Serve runs every task and service until ctx is cancelled
func (s *Scheduler) Serve(ctx context.Context) error {
	err := s.sup.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RunOnce runs one cycle of the named task now and returns its error
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.RLock()
	tk, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return tk.cycle(ctx)
}

// Serve implements suture.Service: one cycle right away, then one per interval
func (t *task) Serve(ctx context.Context) error {
	slog.Info("Starting task", "task", t.Name, "interval", t.Interval)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	t.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Task stopped", "task", t.Name)
			return ctx.Err()
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *task) String() string {
	return t.Name
}

// tick runs a scheduled cycle; failures are logged and the next tick retries
func (t *task) tick(ctx context.Context) {
	err := t.cycle(ctx)
	switch {
	case errors.Is(err, ErrBusy):
		slog.Debug("Skipping cycle, previous one still running", "task", t.Name)
	case err != nil && ctx.Err() == nil:
		slog.Error("Task cycle failed", "task", t.Name, "error", err)
	}
}

func (t *task) cycle(ctx context.Context) error {
	if !t.running.TryLock() {
		return ErrBusy
	}
	defer t.running.Unlock()

	start := time.Now()
	err := t.Run(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.TaskDuration.WithLabelValues(t.Name, status).Observe(time.Since(start).Seconds())
	return err
}
