// Package risk owns the per-bot psychology state: loss streaks, pauses and drawdown sizing.
// current_loss_streak, paused_until and the pause status are written only from here.
package risk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/settings"
)

const (
	ReasonBotInactive     = "bot_inactive"
	ReasonPaused          = "paused"
	ReasonBotPaused       = "bot_paused"
	ReasonLossStreakPause = "loss_streak_pause"
)

var ErrBotNotFound = errors.New("bot not found")

type Store interface {
	UpdateBotLocked(ctx context.Context, id uint64, fn func(bot *models.Bot) error) (*models.Bot, error)
	SumRealizedPnLSince(ctx context.Context, botID uint64, since time.Time) (decimal.Decimal, error)
	GetExecutionSetting(ctx context.Context, key string) (*models.ExecutionSetting, error)
}

// Verdict is the outcome of one guard evaluation.
type Verdict struct {
	Allow       bool
	Pause       bool // a pause was applied by this evaluation
	PausedUntil *time.Time
	Multiplier  decimal.Decimal
	Reason      string
	Bot         *models.Bot
}

type Guard struct {
	Repo     Store
	Logger   *zap.Logger
	CacheTTL time.Duration
	Now      func() time.Time

	mu       sync.Mutex
	pnlCache map[pnlKey]pnlEntry
}

type pnlKey struct {
	botID uint64
	since int64
}

type pnlEntry struct {
	value    decimal.Decimal
	loadedAt time.Time
}

func NewGuard(repo Store, logger *zap.Logger) *Guard {
	return &Guard{Repo: repo, Logger: logger, CacheTTL: 5 * time.Second, Now: func() time.Time { return time.Now().UTC() }}
}

func (g *Guard) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

// Evaluate decides whether bot may trade at now. When the loss streak has reached the
// configured maximum the pause is applied in the same row-locked transaction that re-checks it.
func (g *Guard) Evaluate(ctx context.Context, bot *models.Bot, cfg settings.ResolvedConfig, now time.Time) (Verdict, error) {
	if bot == nil {
		return Verdict{Reason: ReasonBotInactive}, ErrBotNotFound
	}
	v := Verdict{Multiplier: decimal.NewFromInt(1), Bot: bot}
	switch bot.Status {
	case models.BotStatusActive:
	case models.BotStatusPaused:
		if bot.PausedUntil == nil {
			v.Reason = ReasonBotPaused
			return v, nil
		}
	default:
		v.Reason = ReasonBotInactive
		return v, nil
	}
	if bot.PausedUntil != nil {
		if now.Before(*bot.PausedUntil) {
			v.Reason = ReasonPaused
			v.PausedUntil = bot.PausedUntil
			return v, nil
		}
		resumed, err := g.resumeExpired(ctx, bot.ID, now)
		if err != nil {
			return v, err
		}
		if resumed != nil {
			bot = resumed
			v.Bot = resumed
		}
	}

	if cfg.MaxLossStreak > 0 && bot.CurrentLossStreak >= cfg.MaxLossStreak {
		paused, applied, err := g.checkAndPause(ctx, bot.ID, now)
		if err != nil {
			return v, err
		}
		if applied || (paused != nil && paused.IsPausedAt(now)) {
			v.Reason = ReasonLossStreakPause
			v.Pause = applied
			if paused != nil {
				v.PausedUntil = paused.PausedUntil
				v.Bot = paused
			}
			if g.Logger != nil && applied {
				g.Logger.Info("risk: loss streak pause",
					zap.Uint64("bot_id", bot.ID),
					zap.Int("streak", bot.CurrentLossStreak),
					zap.Int("max", cfg.MaxLossStreak),
				)
			}
			return v, nil
		}
	}

	mult, err := g.SizeMultiplier(ctx, bot, cfg, now)
	if err != nil {
		return v, err
	}
	v.Multiplier = mult
	v.Allow = true
	return v, nil
}

// checkAndPause re-reads the bot under lock and pauses it when the streak still warrants it.
func (g *Guard) checkAndPause(ctx context.Context, botID uint64, now time.Time) (*models.Bot, bool, error) {
	global, err := g.global(ctx)
	if err != nil {
		return nil, false, err
	}
	applied := false
	bot, err := g.Repo.UpdateBotLocked(ctx, botID, func(b *models.Bot) error {
		if b.IsPausedAt(now) {
			return nil
		}
		cfg := settings.Effective(b, nil, global)
		if cfg.MaxLossStreak <= 0 || b.CurrentLossStreak < cfg.MaxLossStreak {
			return nil
		}
		applyPause(b, cfg.LossStreakCooldown, now)
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return bot, applied, nil
}

func (g *Guard) resumeExpired(ctx context.Context, botID uint64, now time.Time) (*models.Bot, error) {
	return g.Repo.UpdateBotLocked(ctx, botID, func(b *models.Bot) error {
		if b.PausedUntil == nil || now.Before(*b.PausedUntil) {
			return nil
		}
		b.PausedUntil = nil
		if b.Status == models.BotStatusPaused {
			b.Status = models.BotStatusActive
		}
		b.CurrentLossStreak = 0
		return nil
	})
}

// applyPause sets a timed pause, or an open-ended one when cooldown is zero.
func applyPause(b *models.Bot, cooldown time.Duration, now time.Time) {
	b.Status = models.BotStatusPaused
	if cooldown > 0 {
		until := now.Add(cooldown)
		b.PausedUntil = &until
		return
	}
	b.PausedUntil = nil
}

// RecordTradeResult is the only writer of current_loss_streak: +1 on a loss, reset on a
// win, unchanged on breakeven. A streak reaching the maximum pauses the bot in the same transaction.
func (g *Guard) RecordTradeResult(ctx context.Context, botID uint64, pnl decimal.Decimal) (*models.Bot, error) {
	if g == nil || g.Repo == nil {
		return nil, nil
	}
	global, err := g.global(ctx)
	if err != nil {
		return nil, err
	}
	now := g.now()
	paused := false
	bot, err := g.Repo.UpdateBotLocked(ctx, botID, func(b *models.Bot) error {
		switch pnl.Sign() {
		case -1:
			b.CurrentLossStreak++
		case 1:
			b.CurrentLossStreak = 0
		}
		cfg := settings.Effective(b, nil, global)
		if cfg.MaxLossStreak > 0 && b.CurrentLossStreak >= cfg.MaxLossStreak && !b.IsPausedAt(now) {
			applyPause(b, cfg.LossStreakCooldown, now)
			paused = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, ErrBotNotFound
	}
	g.Invalidate(botID)
	if g.Logger != nil {
		g.Logger.Debug("risk: trade result recorded",
			zap.Uint64("bot_id", botID),
			zap.String("pnl", pnl.String()),
			zap.Int("streak", bot.CurrentLossStreak),
			zap.Bool("paused", paused),
		)
	}
	return bot, nil
}

// Resume clears any pause and resets the streak.
func (g *Guard) Resume(ctx context.Context, botID uint64) (*models.Bot, error) {
	bot, err := g.Repo.UpdateBotLocked(ctx, botID, func(b *models.Bot) error {
		b.PausedUntil = nil
		b.CurrentLossStreak = 0
		if b.Status == models.BotStatusPaused {
			b.Status = models.BotStatusActive
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, ErrBotNotFound
	}
	return bot, nil
}

// Pause holds the bot until the operator resumes it.
func (g *Guard) Pause(ctx context.Context, botID uint64) (*models.Bot, error) {
	now := g.now()
	bot, err := g.Repo.UpdateBotLocked(ctx, botID, func(b *models.Bot) error {
		applyPause(b, 0, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, ErrBotNotFound
	}
	return bot, nil
}

// ResetAllocation starts a new drawdown baseline at now.
func (g *Guard) ResetAllocation(ctx context.Context, botID uint64) (*models.Bot, error) {
	realized, err := g.Repo.SumRealizedPnLSince(ctx, botID, time.Time{})
	if err != nil {
		return nil, err
	}
	now := g.now()
	bot, err := g.Repo.UpdateBotLocked(ctx, botID, func(b *models.Bot) error {
		b.AllocationStartPnL = realized
		b.AllocationStartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, ErrBotNotFound
	}
	g.Invalidate(botID)
	return bot, nil
}

// SizeMultiplier scales order size down when realized drawdown since the baseline crosses the
// soft or hard limit. Hard takes precedence.
func (g *Guard) SizeMultiplier(ctx context.Context, bot *models.Bot, cfg settings.ResolvedConfig, now time.Time) (decimal.Decimal, error) {
	one := decimal.NewFromInt(1)
	if bot == nil || (!cfg.SoftDrawdownPct.IsPositive() && !cfg.HardDrawdownPct.IsPositive()) {
		return one, nil
	}
	if !cfg.PaperStartBalance.IsPositive() {
		return one, nil
	}
	realized, err := g.realizedSince(ctx, bot.ID, Baseline(bot, now))
	if err != nil {
		return one, err
	}
	if !realized.IsNegative() {
		return one, nil
	}
	ddPct := realized.Neg().Div(cfg.PaperStartBalance).Mul(decimal.NewFromInt(100))
	if cfg.HardDrawdownPct.IsPositive() && ddPct.GreaterThanOrEqual(cfg.HardDrawdownPct) {
		return cfg.HardSizeMultiplier, nil
	}
	if cfg.SoftDrawdownPct.IsPositive() && ddPct.GreaterThanOrEqual(cfg.SoftDrawdownPct) {
		return cfg.SoftSizeMultiplier, nil
	}
	return one, nil
}

// Baseline is the bot's allocation start when set, else the UTC day start.
func Baseline(bot *models.Bot, now time.Time) time.Time {
	if bot != nil && bot.AllocationStartedAt != nil && !bot.AllocationStartedAt.IsZero() {
		return bot.AllocationStartedAt.UTC()
	}
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (g *Guard) realizedSince(ctx context.Context, botID uint64, since time.Time) (decimal.Decimal, error) {
	key := pnlKey{botID: botID, since: since.Unix()}
	now := g.now()
	g.mu.Lock()
	if hit, ok := g.pnlCache[key]; ok && now.Sub(hit.loadedAt) < g.CacheTTL {
		g.mu.Unlock()
		return hit.value, nil
	}
	g.mu.Unlock()

	val, err := g.Repo.SumRealizedPnLSince(ctx, botID, since)
	if err != nil {
		return decimal.Zero, err
	}
	g.mu.Lock()
	if g.pnlCache == nil {
		g.pnlCache = map[pnlKey]pnlEntry{}
	}
	g.pnlCache[key] = pnlEntry{value: val, loadedAt: now}
	g.mu.Unlock()
	return val, nil
}

// Invalidate drops cached realized PnL for a bot after a new closing fill.
func (g *Guard) Invalidate(botID uint64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for k := range g.pnlCache {
		if k.botID == botID {
			delete(g.pnlCache, k)
		}
	}
}

func (g *Guard) global(ctx context.Context) (*models.ExecutionSetting, error) {
	return g.Repo.GetExecutionSetting(ctx, models.ExecutionSettingDefaultKey)
}
