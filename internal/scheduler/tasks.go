package scheduler

import (
	"context"
	"errors"
	"strings"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/decision"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/orchestrator"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/service"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/strategy"
)

type DecisionRunner interface {
	RunMode(ctx context.Context, mode string) (decision.Summary, error)
}

type StrategyRunner interface {
	RunMode(ctx context.Context, mode string) (strategy.RunSummary, error)
}

type OrderMaintainer interface {
	RefreshAcked(ctx context.Context, filter func(*models.BrokerAccount) bool) (int, error)
	SweepStale(ctx context.Context) (int, error)
	Reconcile(ctx context.Context) error
}

type PositionWatcher interface {
	RunOnce(ctx context.Context) (service.MonitorResult, error)
	Trail(ctx context.Context) (service.MonitorResult, error)
	KillSwitch(ctx context.Context) (service.MonitorResult, error)
}

type Deps struct {
	Decisions  DecisionRunner
	Strategies StrategyRunner
	Orders     OrderMaintainer
	Positions  PositionWatcher
}

// DefaultSpecs are six-field cron specs (seconds first) or @every descriptors.
func DefaultSpecs() map[string]string {
	return map[string]string{
		service.TaskEngineExternal:  "@every 10s",
		service.TaskEngineHarami:    "@every 5m",
		service.TaskEngineScalper:   "@every 45s",
		service.TaskPaperFill:       "@every 5s",
		service.TaskPositionMonitor: "@every 60s",
		service.TaskTrailingStop:    "@every 60s",
		service.TaskKillSwitch:      "@every 60s",
		service.TaskStaleOrderSweep: "@every 60s",
		service.TaskReconcile:       "@every 5m",
	}
}

// Build returns the task catalog. Tasks whose dependency is missing are left out, and a
// spec of "-" keeps a task available to RunNow without scheduling it.
func Build(specs map[string]string, deps Deps) []Task {
	spec := func(name string) string {
		if v, ok := specs[name]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return DefaultSpecs()[name]
	}
	var out []Task
	if deps.Decisions != nil {
		out = append(out, Task{
			Name: service.TaskEngineExternal,
			Spec: spec(service.TaskEngineExternal),
			Run: func(ctx context.Context) (any, error) {
				return deps.Decisions.RunMode(ctx, models.EngineModeExternal)
			},
		})
		if deps.Strategies != nil {
			out = append(out,
				engineTask(service.TaskEngineHarami, spec(service.TaskEngineHarami), models.EngineModeHarami, deps),
				engineTask(service.TaskEngineScalper, spec(service.TaskEngineScalper), models.EngineModeScalper, deps),
			)
		}
	}
	if deps.Orders != nil {
		out = append(out,
			Task{
				Name: service.TaskPaperFill,
				Spec: spec(service.TaskPaperFill),
				Run: func(ctx context.Context) (any, error) {
					n, err := deps.Orders.RefreshAcked(ctx, orchestrator.IsPaperAccount)
					return map[string]int{"changed": n}, err
				},
			},
			Task{
				Name: service.TaskStaleOrderSweep,
				Spec: spec(service.TaskStaleOrderSweep),
				Run: func(ctx context.Context) (any, error) {
					n, err := deps.Orders.SweepStale(ctx)
					return map[string]int{"canceled": n}, err
				},
			},
			Task{
				Name: service.TaskReconcile,
				Spec: spec(service.TaskReconcile),
				Run: func(ctx context.Context) (any, error) {
					return nil, deps.Orders.Reconcile(ctx)
				},
			},
		)
	}
	if deps.Positions != nil {
		out = append(out,
			Task{
				Name: service.TaskPositionMonitor,
				Spec: spec(service.TaskPositionMonitor),
				Run:  func(ctx context.Context) (any, error) { return deps.Positions.RunOnce(ctx) },
			},
			Task{
				Name: service.TaskTrailingStop,
				Spec: spec(service.TaskTrailingStop),
				Run:  func(ctx context.Context) (any, error) { return deps.Positions.Trail(ctx) },
			},
			Task{
				Name: service.TaskKillSwitch,
				Spec: spec(service.TaskKillSwitch),
				Run:  func(ctx context.Context) (any, error) { return deps.Positions.KillSwitch(ctx) },
			},
		)
	}
	return out
}

// engineTask scans candles for the mode's bots and then decides the signals it emitted.
func engineTask(name, spec, mode string, deps Deps) Task {
	return Task{
		Name: name,
		Spec: spec,
		Run: func(ctx context.Context) (any, error) {
			scan, scanErr := deps.Strategies.RunMode(ctx, mode)
			if errors.Is(scanErr, context.Canceled) {
				return nil, scanErr
			}
			decided, err := deps.Decisions.RunMode(ctx, mode)
			return map[string]any{"scan": scan, "decisions": decided}, errors.Join(scanErr, err)
		},
	}
}

// RegisterAll registers every task, stopping at the first bad spec.
func (s *Scheduler) RegisterAll(tasks []Task) error {
	for _, t := range tasks {
		if err := s.Register(t); err != nil {
			return err
		}
	}
	return nil
}
