package risk

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository/memory"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/settings"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newGuard(t *testing.T, bot *models.Bot) (*Guard, *memory.Store) {
	t.Helper()
	store := memory.New()
	store.SetClock(func() time.Time { return t0 })
	if err := store.InsertBot(context.Background(), bot); err != nil {
		t.Fatalf("insert bot: %v", err)
	}
	g := NewGuard(store, nil)
	g.Now = func() time.Time { return t0 }
	return g, store
}

func TestEvaluatePausesAtStreakMax(t *testing.T) {
	bot := &models.Bot{
		Status:                     models.BotStatusActive,
		CurrentLossStreak:          3,
		LossStreakAutopauseEnabled: true,
		MaxLossStreakBeforePause:   3,
		LossStreakCooldownMin:      30,
	}
	g, store := newGuard(t, bot)
	ctx := context.Background()
	cfg := settings.Effective(bot, nil, nil)

	v, err := g.Evaluate(ctx, bot, cfg, t0)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v.Allow || !v.Pause || v.Reason != ReasonLossStreakPause {
		t.Fatalf("verdict=%+v want pause", v)
	}
	stored, _ := store.GetBotByID(ctx, bot.ID)
	if stored.PausedUntil == nil || !stored.PausedUntil.Equal(t0.Add(30*time.Minute)) {
		t.Fatalf("paused_until=%v", stored.PausedUntil)
	}

	// still paused for the next signal
	v, err = g.Evaluate(ctx, stored, settings.Effective(stored, nil, nil), t0.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v.Allow || v.Reason != ReasonPaused {
		t.Fatalf("verdict=%+v want paused", v)
	}

	// expiry resumes and resets the streak
	later := t0.Add(31 * time.Minute)
	v, err = g.Evaluate(ctx, stored, settings.Effective(stored, nil, nil), later)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !v.Allow {
		t.Fatalf("verdict=%+v want allow after expiry", v)
	}
	stored, _ = store.GetBotByID(ctx, bot.ID)
	if stored.Status != models.BotStatusActive || stored.CurrentLossStreak != 0 || stored.PausedUntil != nil {
		t.Fatalf("bot after expiry=%+v", stored)
	}
}

func TestEvaluateZeroCooldownNeedsManualResume(t *testing.T) {
	bot := &models.Bot{
		Status:                     models.BotStatusActive,
		CurrentLossStreak:          2,
		LossStreakAutopauseEnabled: true,
		MaxLossStreakBeforePause:   2,
	}
	g, store := newGuard(t, bot)
	ctx := context.Background()
	if _, err := g.Evaluate(ctx, bot, settings.Effective(bot, nil, nil), t0); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	stored, _ := store.GetBotByID(ctx, bot.ID)
	if stored.Status != models.BotStatusPaused || stored.PausedUntil != nil {
		t.Fatalf("bot=%+v want open-ended pause", stored)
	}
	v, _ := g.Evaluate(ctx, stored, settings.Effective(stored, nil, nil), t0.Add(48*time.Hour))
	if v.Allow || v.Reason != ReasonBotPaused {
		t.Fatalf("verdict=%+v want bot_paused", v)
	}
	resumed, err := g.Resume(ctx, bot.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != models.BotStatusActive || resumed.CurrentLossStreak != 0 {
		t.Fatalf("resumed=%+v", resumed)
	}
}

func TestRecordTradeResultStreak(t *testing.T) {
	bot := &models.Bot{Status: models.BotStatusActive, CurrentLossStreak: 1}
	g, _ := newGuard(t, bot)
	ctx := context.Background()

	b, err := g.RecordTradeResult(ctx, bot.ID, decimal.NewFromInt(-5))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if b.CurrentLossStreak != 2 {
		t.Fatalf("streak=%d want=2", b.CurrentLossStreak)
	}
	b, _ = g.RecordTradeResult(ctx, bot.ID, decimal.Zero)
	if b.CurrentLossStreak != 2 {
		t.Fatalf("breakeven streak=%d want=2", b.CurrentLossStreak)
	}
	b, _ = g.RecordTradeResult(ctx, bot.ID, decimal.NewFromInt(3))
	if b.CurrentLossStreak != 0 {
		t.Fatalf("win streak=%d want=0", b.CurrentLossStreak)
	}
}

func TestRecordTradeResultAppliesGlobalFloor(t *testing.T) {
	bot := &models.Bot{Status: models.BotStatusActive, CurrentLossStreak: 1}
	g, store := newGuard(t, bot)
	ctx := context.Background()
	maxStreak, cool := 2, 15
	_ = store.UpsertExecutionSetting(ctx, &models.ExecutionSetting{MaxLossStreakBeforePause: &maxStreak, LossStreakCooldownMin: &cool})

	b, err := g.RecordTradeResult(ctx, bot.ID, decimal.NewFromInt(-1))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if b.Status != models.BotStatusPaused || b.PausedUntil == nil || !b.PausedUntil.Equal(t0.Add(15*time.Minute)) {
		t.Fatalf("bot=%+v want paused for 15m", b)
	}
}

func TestSizeMultiplier(t *testing.T) {
	bot := &models.Bot{
		Status:               models.BotStatusActive,
		SoftDrawdownLimitPct: decimal.NewFromInt(1),
		HardDrawdownLimitPct: decimal.NewFromInt(2),
		SoftSizeMultiplier:   decimal.RequireFromString("0.5"),
		HardSizeMultiplier:   decimal.RequireFromString("0.25"),
	}
	g, store := newGuard(t, bot)
	ctx := context.Background()
	cfg := settings.Effective(bot, nil, nil)

	mult, err := g.SizeMultiplier(ctx, bot, cfg, t0)
	if err != nil || !mult.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("mult=%s err=%v want=1", mult, err)
	}

	loss := decimal.NewFromInt(-1500) // 1.5% of 100000
	_ = store.InsertTradeLog(ctx, &models.TradeLog{BotID: bot.ID, PnL: &loss})
	g.Invalidate(bot.ID)
	mult, _ = g.SizeMultiplier(ctx, bot, cfg, t0)
	if !mult.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("soft mult=%s want=0.5", mult)
	}

	more := decimal.NewFromInt(-600)
	_ = store.InsertTradeLog(ctx, &models.TradeLog{BotID: bot.ID, PnL: &more})
	g.Invalidate(bot.ID)
	mult, _ = g.SizeMultiplier(ctx, bot, cfg, t0)
	if !mult.Equal(decimal.RequireFromString("0.25")) {
		t.Fatalf("hard mult=%s want=0.25", mult)
	}

	reset := t0.Add(time.Minute)
	bot.AllocationStartedAt = &reset
	mult, _ = g.SizeMultiplier(ctx, bot, cfg, t0.Add(2*time.Minute))
	if !mult.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("after reset mult=%s want=1", mult)
	}
}

func TestSizeMultiplierCountsLossesSinceAllocationStart(t *testing.T) {
	started := t0.Add(-72 * time.Hour)
	bot := &models.Bot{
		Status:               models.BotStatusActive,
		HardDrawdownLimitPct: decimal.NewFromInt(5),
		HardSizeMultiplier:   decimal.RequireFromString("0.25"),
		AllocationStartedAt:  &started,
	}
	g, store := newGuard(t, bot)
	ctx := context.Background()
	cfg := settings.Effective(bot, nil, nil)

	loss := decimal.NewFromInt(-6000)
	if err := store.InsertTradeLog(ctx, &models.TradeLog{BotID: bot.ID, PnL: &loss, CreatedAt: t0.Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("insert trade log: %v", err)
	}
	// older than the allocation start, ignored
	old := decimal.NewFromInt(-50000)
	if err := store.InsertTradeLog(ctx, &models.TradeLog{BotID: bot.ID, PnL: &old, CreatedAt: t0.Add(-96 * time.Hour)}); err != nil {
		t.Fatalf("insert trade log: %v", err)
	}

	if got := Baseline(bot, t0); !got.Equal(started) {
		t.Fatalf("baseline=%s want=%s", got, started)
	}
	mult, err := g.SizeMultiplier(ctx, bot, cfg, t0)
	if err != nil || !mult.Equal(decimal.RequireFromString("0.25")) {
		t.Fatalf("mult=%s err=%v want=0.25", mult, err)
	}

	bot.AllocationStartedAt = nil
	g.Invalidate(bot.ID)
	mult, _ = g.SizeMultiplier(ctx, bot, cfg, t0)
	if !mult.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("day baseline mult=%s want=1", mult)
	}
}

func TestWithinSchedule(t *testing.T) {
	s := settings.Schedule{Enabled: true, Days: []time.Weekday{time.Friday}, Start: 22 * 60, End: 2 * 60}
	fri := time.Date(2026, 3, 13, 23, 0, 0, 0, time.UTC)
	if !WithinSchedule(s, fri) {
		t.Fatalf("friday 23:00 should be inside")
	}
	if !WithinSchedule(s, fri.Add(2*time.Hour)) {
		t.Fatalf("saturday 01:00 belongs to friday window")
	}
	if WithinSchedule(s, fri.Add(4*time.Hour)) {
		t.Fatalf("saturday 03:00 should be outside")
	}
	day := settings.Schedule{Enabled: true, Start: 6 * 60, End: 18 * 60}
	if WithinSchedule(day, time.Date(2026, 3, 10, 5, 59, 0, 0, time.UTC)) {
		t.Fatalf("05:59 should be outside")
	}
	if !WithinSchedule(settings.Schedule{}, fri) {
		t.Fatalf("disabled schedule always allows")
	}
}
