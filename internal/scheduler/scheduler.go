// Package scheduler runs the named background tasks on cron specs. Each task is gated by its
// feature switch, never overlaps itself, and optionally takes a cluster-wide lease.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/lease"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/service"
)

var (
	ErrUnknownTask = errors.New("unknown task")
	ErrTaskRunning = errors.New("task already running")
)

// Task is one named unit of background work. Run returns a summary for logs and the API.
type Task struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (any, error)
}

type TaskStatus struct {
	Name       string     `json:"name"`
	Spec       string     `json:"spec"`
	Enabled    bool       `json:"enabled"`
	Running    bool       `json:"running"`
	Runs       int        `json:"runs"`
	LastStart  *time.Time `json:"last_start,omitempty"`
	LastEnd    *time.Time `json:"last_end,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	LastResult any        `json:"last_result,omitempty"`
}

type taskState struct {
	task  Task
	entry cron.EntryID

	running sync.Mutex

	mu     sync.Mutex
	status TaskStatus
}

type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context

	Switches *service.SystemSettingsService
	Locker   lease.Locker
	LeaseTTL time.Duration
	Now      func() time.Time

	mu    sync.RWMutex
	tasks map[string]*taskState
}

func New(logger *zap.Logger, baseCtx context.Context) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		baseCtx: baseCtx,
		tasks:   map[string]*taskState{},
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Register adds a task. An empty spec registers it for RunNow only.
func (s *Scheduler) Register(t Task) error {
	name := strings.TrimSpace(t.Name)
	if name == "" || t.Run == nil {
		return errors.New("task name and run func are required")
	}
	t.Name = name
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("task %s already registered", name)
	}
	st := &taskState{task: t, status: TaskStatus{Name: name, Spec: t.Spec}}
	if spec := strings.TrimSpace(t.Spec); spec != "" && spec != "-" {
		id, err := s.cron.AddFunc(spec, func() { s.scheduled(st) })
		if err != nil {
			return fmt.Errorf("task %s spec %q: %w", name, spec, err)
		}
		st.entry = id
	}
	s.tasks[name] = st
	return nil
}

func (s *Scheduler) scheduled(st *taskState) {
	ctx := s.baseCtx
	if ctx.Err() != nil {
		return
	}
	if s.Switches != nil && !s.Switches.IsEnabled(ctx, service.TaskSwitchKey(st.task.Name), true) {
		return
	}
	_, err := s.run(ctx, st)
	switch {
	case err == nil, errors.Is(err, ErrTaskRunning), errors.Is(err, lease.ErrHeld):
	case errors.Is(err, context.Canceled):
	default:
		if s.logger != nil {
			s.logger.Warn("task failed", zap.String("task", st.task.Name), zap.Error(err))
		}
	}
}

// RunNow runs a task synchronously regardless of its switch.
func (s *Scheduler) RunNow(ctx context.Context, name string) (any, error) {
	s.mu.RLock()
	st, ok := s.tasks[strings.TrimSpace(name)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return s.run(ctx, st)
}

func (s *Scheduler) run(ctx context.Context, st *taskState) (any, error) {
	if !st.running.TryLock() {
		return nil, ErrTaskRunning
	}
	defer st.running.Unlock()

	start := s.now()
	st.mu.Lock()
	st.status.Running = true
	st.status.LastStart = &start
	st.mu.Unlock()

	var result any
	ttl := s.LeaseTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	err := lease.With(ctx, s.Locker, lease.TaskKey(st.task.Name), ttl, func(ctx context.Context) error {
		var runErr error
		result, runErr = st.task.Run(ctx)
		return runErr
	})

	end := s.now()
	st.mu.Lock()
	st.status.Running = false
	st.status.LastEnd = &end
	st.status.Runs++
	st.status.LastResult = result
	st.status.LastError = ""
	if err != nil {
		st.status.LastError = err.Error()
	}
	st.mu.Unlock()

	if s.logger != nil && err == nil {
		s.logger.Debug("task finished",
			zap.String("task", st.task.Name),
			zap.Duration("took", end.Sub(start)),
			zap.Any("result", result),
		)
	}
	return result, err
}

// List reports every registered task with its switch state.
func (s *Scheduler) List(ctx context.Context) []TaskStatus {
	s.mu.RLock()
	states := make([]*taskState, 0, len(s.tasks))
	for _, st := range s.tasks {
		states = append(states, st)
	}
	s.mu.RUnlock()

	out := make([]TaskStatus, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		status := st.status
		st.mu.Unlock()
		status.Enabled = s.Switches == nil || s.Switches.IsEnabled(ctx, service.TaskSwitchKey(st.task.Name), true)
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) Start() {
	if s.logger != nil {
		s.logger.Info("scheduler started", zap.Int("tasks", len(s.cron.Entries())))
	}
	s.cron.Start()
}

// Stop waits for running jobs to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	if s.logger != nil {
		s.logger.Info("scheduler stopped")
	}
}

// cronLogger adapts zap to cron's logger for skip and panic reports.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
