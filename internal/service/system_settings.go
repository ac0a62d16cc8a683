package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
)

const (
	TaskEngineExternal  = "engine_external"
	TaskEngineHarami    = "engine_harami"
	TaskEngineScalper   = "engine_scalper"
	TaskPaperFill       = "paper_fill"
	TaskPositionMonitor = "position_monitor"
	TaskTrailingStop    = "trailing_stop"
	TaskKillSwitch      = "kill_switch"
	TaskStaleOrderSweep = "stale_order_sweep"
	TaskReconcile       = "reconcile"
)

// TaskSwitchKey is the feature switch gating a scheduled task.
func TaskSwitchKey(task string) string {
	return "task." + strings.TrimSpace(task) + ".enabled"
}

// DefaultFeatureSwitches lists every task switch. Engines and exits are further gated per bot.
func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		TaskSwitchKey(TaskEngineExternal):  true,
		TaskSwitchKey(TaskEngineHarami):    true,
		TaskSwitchKey(TaskEngineScalper):   true,
		TaskSwitchKey(TaskPaperFill):       true,
		TaskSwitchKey(TaskPositionMonitor): true,
		TaskSwitchKey(TaskTrailingStop):    true,
		TaskSwitchKey(TaskKillSwitch):      true,
		TaskSwitchKey(TaskStaleOrderSweep): true,
		TaskSwitchKey(TaskReconcile):       true,
	}
}

type SystemSettingsService struct {
	Repo repository.Repository
}

// EnsureDefaultSwitches inserts missing switches. Existing rows keep the operator's value.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	defaults := DefaultFeatureSwitches()
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		existing, err := s.Repo.GetFeatureSwitch(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		item := &models.FeatureSwitch{
			Key:         key,
			Enabled:     defaults[key],
			Description: "feature switch",
		}
		if err := s.Repo.UpsertFeatureSwitch(ctx, item); err != nil {
			return fmt.Errorf("seed switch %s: %w", key, err)
		}
	}
	return nil
}

// IsEnabled falls back when the switch is missing or unreadable.
func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetFeatureSwitch(ctx, key)
	if err != nil || item == nil {
		return fallback
	}
	return item.Enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) (*models.FeatureSwitch, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("switch key is required")
	}
	item, err := s.Repo.GetFeatureSwitch(ctx, key)
	if err != nil {
		return nil, err
	}
	if item == nil {
		item = &models.FeatureSwitch{Key: key, Description: "feature switch"}
	}
	item.Enabled = enabled
	if err := s.Repo.UpsertFeatureSwitch(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *SystemSettingsService) List(ctx context.Context) ([]models.FeatureSwitch, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	items, err := s.Repo.ListFeatureSwitches(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items, nil
}
