package settings

import (
	"context"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

type Store interface {
	GetTradingProfileByID(ctx context.Context, id uint64) (*models.TradingProfile, error)
	GetDefaultTradingProfile(ctx context.Context) (*models.TradingProfile, error)
	GetExecutionSetting(ctx context.Context, key string) (*models.ExecutionSetting, error)
}

// Load reads the bot's trading profile (or the default one) and the global execution
// setting, then resolves the effective configuration.
func Load(ctx context.Context, store Store, bot *models.Bot) (ResolvedConfig, error) {
	if store == nil {
		return Effective(bot, nil, nil), nil
	}
	var (
		profile *models.TradingProfile
		err     error
	)
	if bot != nil && bot.TradingProfileID != nil {
		profile, err = store.GetTradingProfileByID(ctx, *bot.TradingProfileID)
		if err != nil {
			return ResolvedConfig{}, err
		}
	}
	if profile == nil {
		profile, err = store.GetDefaultTradingProfile(ctx)
		if err != nil {
			return ResolvedConfig{}, err
		}
	}
	global, err := store.GetExecutionSetting(ctx, models.ExecutionSettingDefaultKey)
	if err != nil {
		return ResolvedConfig{}, err
	}
	return Effective(bot, profile, global), nil
}
