package settings

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

func TestEffectiveDefaults(t *testing.T) {
	cfg := Effective(nil, nil, nil)
	assert.Equal(t, 0.5, cfg.DecisionMinScore)
	assert.Equal(t, 0.8, cfg.FlipScore)
	assert.False(t, cfg.AllowHedging)
	assert.Equal(t, 15*time.Minute, cfg.FlipCooldown)
	assert.Equal(t, 3, cfg.MaxFlipsPerDay)
	assert.Equal(t, time.Minute, cfg.OrderCooldown)
	assert.Equal(t, 180*time.Second, cfg.OrderAckTimeout)
	assert.True(t, cfg.MaxOrderLot.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, 0, cfg.MaxLossStreak)
	assert.False(t, cfg.Schedule.Enabled)
}

func TestEffectiveBotOverridesGlobal(t *testing.T) {
	botScore, globalScore := 0.7, 0.6
	hedge := true
	flips := 0
	global := &models.ExecutionSetting{DecisionMinScore: &globalScore, MaxFlipsPerDay: &flips}
	bot := &models.Bot{DecisionMinScore: &botScore, AllowHedging: &hedge}

	cfg := Effective(bot, nil, global)
	assert.Equal(t, 0.7, cfg.DecisionMinScore)
	assert.True(t, cfg.AllowHedging)
	assert.Equal(t, 0, cfg.MaxFlipsPerDay)

	cfg = Effective(&models.Bot{}, &models.TradingProfile{DecisionMinScore: 0.65}, global)
	assert.Equal(t, 0.65, cfg.DecisionMinScore)
}

func TestEffectiveLossStreakFloor(t *testing.T) {
	gMax, gCool := 5, 30
	global := &models.ExecutionSetting{MaxLossStreakBeforePause: &gMax, LossStreakCooldownMin: &gCool}

	relax := &models.Bot{LossStreakAutopauseEnabled: true, MaxLossStreakBeforePause: 8, LossStreakCooldownMin: 10}
	cfg := Effective(relax, nil, global)
	assert.Equal(t, 5, cfg.MaxLossStreak)
	assert.Equal(t, 30*time.Minute, cfg.LossStreakCooldown)

	tighten := &models.Bot{LossStreakAutopauseEnabled: true, MaxLossStreakBeforePause: 2, LossStreakCooldownMin: 90}
	cfg = Effective(tighten, nil, global)
	assert.Equal(t, 2, cfg.MaxLossStreak)
	assert.Equal(t, 90*time.Minute, cfg.LossStreakCooldown)

	optOut := &models.Bot{MaxLossStreakBeforePause: 2}
	cfg = Effective(optOut, nil, nil)
	assert.Equal(t, 0, cfg.MaxLossStreak)
}

func TestEffectiveDrawdownMostConservative(t *testing.T) {
	gSoft := decimal.NewFromInt(3)
	gMult := decimal.RequireFromString("0.5")
	bot := &models.Bot{
		SoftDrawdownLimitPct: decimal.NewFromInt(5),
		HardDrawdownLimitPct: decimal.NewFromInt(8),
		SoftSizeMultiplier:   decimal.RequireFromString("0.8"),
	}
	cfg := Effective(bot, nil, &models.ExecutionSetting{SoftDrawdownLimitPct: &gSoft, SoftSizeMultiplier: &gMult})
	assert.True(t, cfg.SoftDrawdownPct.Equal(gSoft))
	assert.True(t, cfg.HardDrawdownPct.Equal(decimal.NewFromInt(8)))
	assert.True(t, cfg.SoftSizeMultiplier.Equal(gMult))
	assert.True(t, cfg.HardSizeMultiplier.Equal(decimal.NewFromInt(1)))
}

func TestEffectiveScheduleSource(t *testing.T) {
	profile := &models.TradingProfile{AllowedDays: []string{"mon", "tue"}, TradingStart: "06:00", TradingEnd: "18:00"}

	// enforced by default, every part from the profile
	cfg := Effective(&models.Bot{}, profile, nil)
	require.True(t, cfg.Schedule.Enabled)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday}, cfg.Schedule.Days)
	assert.Equal(t, 360, cfg.Schedule.Start)
	assert.Equal(t, 1080, cfg.Schedule.End)

	bot := &models.Bot{
		AllowedTradingDays: []string{"Friday"},
		TradingWindowStart: "22:00",
		TradingWindowEnd:   "02:00",
	}
	cfg = Effective(bot, profile, nil)
	assert.Equal(t, []time.Weekday{time.Friday}, cfg.Schedule.Days)
	assert.Equal(t, 22*60, cfg.Schedule.Start)
	assert.Equal(t, 2*60, cfg.Schedule.End)

	// days fall back on their own
	cfg = Effective(&models.Bot{TradingWindowStart: "09:00", TradingWindowEnd: "10:00"}, profile, nil)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday}, cfg.Schedule.Days)
	assert.Equal(t, 540, cfg.Schedule.Start)
	assert.Equal(t, 600, cfg.Schedule.End)
}

func TestEffectiveScheduleDisabledIgnoresProfile(t *testing.T) {
	off := false
	profile := &models.TradingProfile{
		AllowedDays:  []string{"mon", "tue", "wed", "thu", "fri"},
		TradingStart: "08:00",
		TradingEnd:   "17:00",
	}
	bot := &models.Bot{TradingScheduleEnabled: &off, AllowedTradingDays: []string{"mon"}}
	cfg := Effective(bot, profile, nil)
	if cfg.Schedule.Enabled {
		t.Fatalf("schedule=%+v want disabled when the bot turns enforcement off", cfg.Schedule)
	}

	// no days and no window: nothing to enforce
	cfg = Effective(&models.Bot{}, nil, nil)
	assert.False(t, cfg.Schedule.Enabled)
}

func TestParseClock(t *testing.T) {
	m, ok := ParseClock("09:30")
	require.True(t, ok)
	assert.Equal(t, 570, m)
	_, ok = ParseClock("25:00")
	assert.False(t, ok)
	_, ok = ParseClock("nope")
	assert.False(t, ok)
}
