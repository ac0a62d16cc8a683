// Package settings merges bot overrides, the bot's trading profile, the global
// ExecutionSetting row and compiled defaults into one ResolvedConfig.
package settings

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

// Defaults are the compiled fallbacks used when neither the bot nor the global row sets a knob.
var Defaults = ResolvedConfig{
	DecisionMinScore:   0.5,
	FlipScore:          0.8,
	FlipCooldown:       15 * time.Minute,
	MaxFlipsPerDay:     3,
	OrderCooldown:      60 * time.Second,
	OrderAckTimeout:    180 * time.Second,
	ScalpSLOffset:      decimal.RequireFromString("0.0003"),
	ScalpTPOffset:      decimal.RequireFromString("0.0005"),
	ScalpQtyMultiplier: decimal.RequireFromString("0.3"),
	EarlyExitMaxPct:    decimal.RequireFromString("0.02"),
	TrailingTrigger:    decimal.RequireFromString("0.0005"),
	TrailingDistance:   decimal.RequireFromString("0.0003"),
	PaperStartBalance:  decimal.NewFromInt(100000),
	MaxOrderLot:        decimal.RequireFromString("0.05"),
	MaxOrderNotional:   decimal.NewFromInt(5000),
	BotMinDefaultQty:   decimal.RequireFromString("0.01"),
	SoftSizeMultiplier: decimal.NewFromInt(1),
	HardSizeMultiplier: decimal.NewFromInt(1),
}

// Schedule is a weekly trading window in UTC. Start > End wraps past midnight.
type Schedule struct {
	Enabled bool
	Days    []time.Weekday
	Start   int // minutes since midnight
	End     int
}

type ResolvedConfig struct {
	DecisionMinScore float64
	FlipScore        float64
	AllowHedging     bool
	FlipCooldown     time.Duration
	MaxFlipsPerDay   int
	OrderCooldown    time.Duration
	OrderAckTimeout  time.Duration

	ScalpSLOffset      decimal.Decimal
	ScalpTPOffset      decimal.Decimal
	ScalpQtyMultiplier decimal.Decimal
	AllowOppositeScalp bool

	EarlyExitMaxPct            decimal.Decimal
	TrailingTrigger            decimal.Decimal
	TrailingDistance           decimal.Decimal
	KillSwitchEnabled          bool
	KillSwitchMaxUnrealizedPct decimal.Decimal

	PaperStartBalance decimal.Decimal
	MaxOrderLot       decimal.Decimal
	MaxOrderNotional  decimal.Decimal
	BotMinDefaultQty  decimal.Decimal

	// MaxLossStreak of 0 disables streak pauses.
	MaxLossStreak      int
	LossStreakCooldown time.Duration

	SoftDrawdownPct    decimal.Decimal
	HardDrawdownPct    decimal.Decimal
	SoftSizeMultiplier decimal.Decimal
	HardSizeMultiplier decimal.Decimal

	MaxPositionsPerSymbol  int
	MaxConcurrentPositions int
	MaxTradesPerDay        int
	TradeInterval          time.Duration

	Schedule Schedule
}

// Effective resolves the configuration for one decision cycle. profile and global may be nil.
func Effective(bot *models.Bot, profile *models.TradingProfile, global *models.ExecutionSetting) ResolvedConfig {
	cfg := Defaults
	if global == nil {
		global = &models.ExecutionSetting{}
	}
	if bot == nil {
		bot = &models.Bot{}
	}

	cfg.DecisionMinScore = firstFloat(bot.DecisionMinScore, profileScore(profile), global.DecisionMinScore, cfg.DecisionMinScore)
	cfg.FlipScore = firstFloat(bot.DecisionFlipScore, nil, global.DecisionFlipScore, cfg.FlipScore)
	cfg.AllowHedging = firstBool(bot.AllowHedging, global.AllowHedging, cfg.AllowHedging)
	cfg.FlipCooldown = minutes(firstInt(bot.FlipCooldownMin, global.FlipCooldownMin, int(cfg.FlipCooldown/time.Minute)))
	cfg.MaxFlipsPerDay = firstInt(bot.MaxFlipsPerDay, global.MaxFlipsPerDay, cfg.MaxFlipsPerDay)
	cfg.OrderCooldown = seconds(firstInt(bot.OrderCooldownSec, profileCooldown(profile), firstInt(global.OrderCooldownSec, nil, int(cfg.OrderCooldown/time.Second))))
	cfg.OrderAckTimeout = seconds(firstInt(global.OrderAckTimeoutSec, nil, int(cfg.OrderAckTimeout/time.Second)))

	cfg.ScalpSLOffset = firstDec(global.ScalpSLOffset, cfg.ScalpSLOffset)
	cfg.ScalpTPOffset = firstDec(global.ScalpTPOffset, cfg.ScalpTPOffset)
	cfg.ScalpQtyMultiplier = firstDec(global.ScalpQtyMultiplier, cfg.ScalpQtyMultiplier)
	cfg.AllowOppositeScalp = bot.AllowOppositeScalp

	cfg.EarlyExitMaxPct = firstDec(global.EarlyExitMaxPct, cfg.EarlyExitMaxPct)
	cfg.TrailingTrigger = firstDec(global.TrailingTrigger, cfg.TrailingTrigger)
	cfg.TrailingDistance = firstDec(global.TrailingDistance, cfg.TrailingDistance)
	cfg.KillSwitchEnabled = bot.KillSwitchEnabled
	cfg.KillSwitchMaxUnrealizedPct = bot.KillSwitchMaxUnrealizedPct
	if !cfg.KillSwitchMaxUnrealizedPct.IsPositive() {
		cfg.KillSwitchMaxUnrealizedPct = cfg.EarlyExitMaxPct
	}

	cfg.PaperStartBalance = firstDec(global.PaperStartBalance, cfg.PaperStartBalance)
	cfg.MaxOrderLot = firstDec(global.MaxOrderLot, cfg.MaxOrderLot)
	cfg.MaxOrderNotional = firstDec(global.MaxOrderNotional, cfg.MaxOrderNotional)
	cfg.BotMinDefaultQty = firstDec(global.BotMinDefaultQty, cfg.BotMinDefaultQty)

	cfg.MaxLossStreak, cfg.LossStreakCooldown = lossStreak(bot, global)

	// Drawdown: the most conservative positive value of bot and global wins.
	cfg.SoftDrawdownPct = minPositive(bot.SoftDrawdownLimitPct, deref(global.SoftDrawdownLimitPct), decimal.Zero)
	cfg.HardDrawdownPct = minPositive(bot.HardDrawdownLimitPct, deref(global.HardDrawdownLimitPct), decimal.Zero)
	cfg.SoftSizeMultiplier = minPositive(bot.SoftSizeMultiplier, deref(global.SoftSizeMultiplier), cfg.SoftSizeMultiplier)
	cfg.HardSizeMultiplier = minPositive(bot.HardSizeMultiplier, deref(global.HardSizeMultiplier), cfg.HardSizeMultiplier)

	cfg.MaxPositionsPerSymbol = bot.RiskMaxPositionsPerSymbol
	cfg.MaxConcurrentPositions = bot.RiskMaxConcurrentPositions
	cfg.MaxTradesPerDay = bot.MaxTradesPerDay
	if profile != nil {
		if cfg.MaxConcurrentPositions <= 0 {
			cfg.MaxConcurrentPositions = profile.MaxConcurrentPositions
		}
		if cfg.MaxTradesPerDay <= 0 {
			cfg.MaxTradesPerDay = profile.MaxTradesPerDay
		}
	}
	cfg.TradeInterval = minutes(bot.TradeIntervalMinutes)

	if bot.ScheduleEnforced() {
		cfg.Schedule = scheduleFor(bot, profile)
	}
	return cfg
}

// scheduleFor takes each part of the window from the bot, falling back to the profile. A
// window needs both ends; with no days and no window the schedule stays disabled.
func scheduleFor(bot *models.Bot, profile *models.TradingProfile) Schedule {
	days := []string(bot.AllowedTradingDays)
	start, end := bot.TradingWindowStart, bot.TradingWindowEnd
	if profile != nil {
		if len(days) == 0 {
			days = profile.AllowedDays
		}
		if strings.TrimSpace(start) == "" {
			start = profile.TradingStart
		}
		if strings.TrimSpace(end) == "" {
			end = profile.TradingEnd
		}
	}
	return buildSchedule(days, start, end)
}

// lossStreak applies the platform floor: a positive global max always applies and a bot
// that opted in may only tighten it. The cooldown is the longest configured one.
func lossStreak(bot *models.Bot, global *models.ExecutionSetting) (int, time.Duration) {
	globalMax := derefInt(global.MaxLossStreakBeforePause)
	effective := 0
	if globalMax > 0 {
		effective = globalMax
	}
	if bot.LossStreakAutopauseEnabled && bot.MaxLossStreakBeforePause > 0 {
		if effective == 0 || bot.MaxLossStreakBeforePause < effective {
			effective = bot.MaxLossStreakBeforePause
		}
	}
	cooldown := derefInt(global.LossStreakCooldownMin)
	if bot.LossStreakCooldownMin > cooldown {
		cooldown = bot.LossStreakCooldownMin
	}
	if cooldown < 0 {
		cooldown = 0
	}
	return effective, minutes(cooldown)
}

func buildSchedule(days []string, start, end string) Schedule {
	out := Schedule{Start: 0, End: 24 * 60}
	for _, d := range days {
		if wd, ok := ParseWeekday(d); ok {
			out.Days = append(out.Days, wd)
		}
	}
	s, okStart := ParseClock(start)
	e, okEnd := ParseClock(end)
	if okStart && okEnd {
		out.Start, out.End = s, e
	}
	out.Enabled = len(out.Days) > 0 || (okStart && okEnd)
	return out
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWeekday accepts three-letter or full day names in any case.
func ParseWeekday(raw string) (time.Weekday, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if len(key) > 3 {
		key = key[:3]
	}
	wd, ok := weekdays[key]
	return wd, ok
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(raw string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, false
	}
	return h*60 + m, true
}

func profileScore(p *models.TradingProfile) *float64 {
	if p == nil || p.DecisionMinScore <= 0 {
		return nil
	}
	v := p.DecisionMinScore
	return &v
}

func profileCooldown(p *models.TradingProfile) *int {
	if p == nil || p.CooldownSeconds <= 0 {
		return nil
	}
	v := p.CooldownSeconds
	return &v
}

func firstFloat(bot, profile, global *float64, fallback float64) float64 {
	for _, v := range []*float64{bot, profile, global} {
		if v != nil && *v > 0 {
			return *v
		}
	}
	return fallback
}

func firstInt(a, b *int, fallback int) int {
	for _, v := range []*int{a, b} {
		if v != nil && *v >= 0 {
			return *v
		}
	}
	return fallback
}

func firstBool(a, b *bool, fallback bool) bool {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return fallback
}

func firstDec(v *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if v != nil && v.IsPositive() {
		return *v
	}
	return fallback
}

func minPositive(a, b, fallback decimal.Decimal) decimal.Decimal {
	switch {
	case a.IsPositive() && b.IsPositive():
		return decimal.Min(a, b)
	case a.IsPositive():
		return a
	case b.IsPositive():
		return b
	}
	return fallback
}

func deref(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
