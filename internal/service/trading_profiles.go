package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

// DefaultProfileSlug is marked default when no profile carries the flag yet.
const DefaultProfileSlug = "very_safe"

var weekdaysOnly = []string{"mon", "tue", "wed", "thu", "fri"}

func preset(slug, name, risk string, trades, concurrent int, drawdown string, minScore, quality float64, cooldown int, start, end string) models.TradingProfile {
	return models.TradingProfile{
		Slug:                   slug,
		Name:                   name,
		RiskPerTradePct:        decimal.RequireFromString(risk),
		MaxTradesPerDay:        trades,
		MaxConcurrentPositions: concurrent,
		MaxDrawdownPct:         decimal.RequireFromString(drawdown),
		DecisionMinScore:       minScore,
		SignalQualityThreshold: quality,
		CooldownSeconds:        cooldown,
		AllowedDays:            append([]string(nil), weekdaysOnly...),
		TradingStart:           start,
		TradingEnd:             end,
	}
}

// DefaultTradingProfiles are the built-in risk presets.
func DefaultTradingProfiles() []models.TradingProfile {
	return []models.TradingProfile{
		preset("very_safe", "Very Safe (Beginner)", "0.5", 2, 1, "3.0", 0.65, 0.70, 600, "08:00", "17:00"),
		preset("balanced", "Balanced", "1.0", 6, 2, "5.0", 0.6, 0.65, 300, "06:00", "19:00"),
		preset("day_trader", "Aggressive Day Trader", "2.0", 20, 4, "8.0", 0.55, 0.60, 60, "06:00", "20:00"),
		preset("scalper", "Scalper", "3.0", 60, 6, "10.0", 0.45, 0.55, 15, "07:00", "16:00"),
		preset("long_term", "Long-Term Investor", "0.75", 1, 2, "7.0", 0.7, 0.75, 1800, "08:00", "20:00"),
		preset("custom", "Custom / Advanced", "1.5", 10, 3, "12.0", 0.5, 0.5, 120, "00:00", "23:59"),
	}
}

// EnsureDefaultProfiles inserts missing presets by slug. Existing rows are left as edited, and
// the default flag is only set when no profile has it.
func (s *SystemSettingsService) EnsureDefaultProfiles(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	existing, err := s.Repo.ListTradingProfiles(ctx)
	if err != nil {
		return err
	}
	have := map[string]bool{}
	hasDefault := false
	for _, p := range existing {
		have[p.Slug] = true
		hasDefault = hasDefault || p.IsDefault
	}
	for _, p := range DefaultTradingProfiles() {
		if have[p.Slug] {
			continue
		}
		item := p
		item.IsDefault = !hasDefault && item.Slug == DefaultProfileSlug
		if err := s.Repo.UpsertTradingProfile(ctx, &item); err != nil {
			return fmt.Errorf("seed trading profile %s: %w", p.Slug, err)
		}
		hasDefault = hasDefault || item.IsDefault
	}
	return nil
}
