// Package strategy runs the in-process candle engines and turns their setups into signals
// for the decision engine.
package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/assets"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/connector"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
)

const (
	defaultBars      = 200
	defaultTimeframe = "5m"

	SkipNoSymbol      = "no_symbol"
	SkipNoBroker      = "no_active_broker"
	SkipTimeframe     = "timeframe_not_accepted"
	SkipNoCandles     = "no_candles"
	SkipSessionClosed = "session_closed"
	SkipScoreBelowMin = "score_below_min"
	SkipDuplicateBar  = "duplicate_bar"
	SkipBadParams     = "invalid_scalper_params"
	SkipNotEnoughBars = "not_enough_closed_bars"
)

// Runner scans bots in an engine mode and records a signal for every new setup. Each bar
// produces at most one signal per bot because the dedupe key carries the bar open time.
type Runner struct {
	Repo      repository.Repository
	Candles   connector.CandleSource
	Assets    *assets.Resolver
	Detectors []Detector
	Logger    *zap.Logger

	Bars int
	Now  func() time.Time
}

// BotResult is the outcome of one bot scan.
type BotResult struct {
	BotID     uint64  `json:"bot_id"`
	Symbol    string  `json:"symbol,omitempty"`
	Timeframe string  `json:"timeframe,omitempty"`
	Session   string  `json:"session,omitempty"`
	Strategy  string  `json:"strategy,omitempty"`
	Reason    string  `json:"reason"`
	Direction string  `json:"direction,omitempty"`
	Score     float64 `json:"score,omitempty"`
	SignalID  uint64  `json:"signal_id,omitempty"`
	Emitted   bool    `json:"emitted"`
}

type RunSummary struct {
	Bots    int `json:"bots"`
	Emitted int `json:"emitted"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) detectors() []Detector {
	if len(r.Detectors) > 0 {
		return r.Detectors
	}
	return DefaultDetectors()
}

// RunMode scans every active auto-trading bot whose engine mode is mode.
func (r *Runner) RunMode(ctx context.Context, mode string) (RunSummary, error) {
	var sum RunSummary
	if r == nil || r.Repo == nil || r.Candles == nil {
		return sum, nil
	}
	active := models.BotStatusActive
	autoTrade := true
	bots, err := r.Repo.ListBots(ctx, repository.ListBotsParams{
		Status:     &active,
		EngineMode: &mode,
		AutoTrade:  &autoTrade,
		Limit:      1000,
	})
	if err != nil {
		return sum, err
	}
	var errs []error
	for i := range bots {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Bots++
		res, err := r.RunBot(ctx, &bots[i])
		switch {
		case err != nil:
			sum.Failed++
			errs = append(errs, fmt.Errorf("bot %d: %w", bots[i].ID, err))
		case res.Emitted:
			sum.Emitted++
		default:
			sum.Skipped++
		}
	}
	if r.Logger != nil {
		r.Logger.Info("strategy run finished",
			zap.String("mode", mode),
			zap.Int("bots", sum.Bots),
			zap.Int("emitted", sum.Emitted),
			zap.Int("skipped", sum.Skipped),
			zap.Int("failed", sum.Failed),
		)
	}
	return sum, errors.Join(errs...)
}

// RunBot scans one bot. Scalper bots get a ScalperRunLog row for every run, including skips.
func (r *Runner) RunBot(ctx context.Context, bot *models.Bot) (BotResult, error) {
	res, err := r.scan(ctx, bot)
	if bot != nil && bot.EngineMode == models.EngineModeScalper {
		if logErr := r.logScalperRun(ctx, bot, res, err); logErr != nil && r.Logger != nil {
			r.Logger.Warn("scalper run log failed", zap.Uint64("bot_id", bot.ID), zap.Error(logErr))
		}
	}
	return res, err
}

func (r *Runner) scan(ctx context.Context, bot *models.Bot) (BotResult, error) {
	res := BotResult{}
	if bot == nil {
		return res, errors.New("nil bot")
	}
	res.BotID = bot.ID
	now := r.now()

	symbol, err := r.botSymbol(ctx, bot)
	if err != nil {
		return res, err
	}
	if symbol == "" {
		res.Reason = SkipNoSymbol
		return res, nil
	}
	res.Symbol = symbol

	if bot.BrokerAccountID == nil {
		res.Reason = SkipNoBroker
		return res, nil
	}
	account, err := r.Repo.GetBrokerAccountByID(ctx, *bot.BrokerAccountID)
	if err != nil {
		return res, err
	}
	if account == nil || !account.IsActive {
		res.Reason = SkipNoBroker
		return res, nil
	}

	timeframe := strings.TrimSpace(bot.DefaultTimeframe)
	if timeframe == "" {
		timeframe = defaultTimeframe
	}
	minScore := 0.0
	if bot.EngineMode == models.EngineModeScalper {
		params, err := ParseScalperParams(bot.ScalperParams)
		if err != nil {
			res.Reason = SkipBadParams
			return res, nil
		}
		timeframe = params.Timeframe
		minScore = params.MinScore
		session, open := params.Session(now)
		res.Session = session
		if !open {
			res.Timeframe = timeframe
			res.Reason = SkipSessionClosed
			return res, nil
		}
	}
	res.Timeframe = timeframe
	if !bot.AcceptsTimeframe(timeframe) {
		res.Reason = SkipTimeframe
		return res, nil
	}

	bars := r.Bars
	if bars <= 0 {
		bars = defaultBars
	}
	candles, err := r.Candles.Candles(ctx, assets.CanonicalSymbol(symbol), timeframe, bars)
	if err != nil {
		return res, err
	}
	closed := closedBars(candles, now)
	if len(closed) == 0 {
		res.Reason = SkipNoCandles
		return res, nil
	}
	if len(closed) < 2 {
		res.Reason = SkipNotEnoughBars
		return res, nil
	}

	setup := Combine(r.detectors(), closed)
	res.Strategy, res.Score = setup.Strategy, setup.Score
	if !setup.Open {
		res.Reason = setup.Reason
		return res, nil
	}
	res.Direction = setup.Direction
	if setup.Score < minScore {
		res.Reason = SkipScoreBelowMin
		return res, nil
	}

	bar := closed[len(closed)-1]
	sig := &models.Signal{
		BotID:     &bot.ID,
		Source:    bot.EngineMode,
		Symbol:    symbol,
		Timeframe: timeframe,
		Direction: setup.Direction,
		Score:     setup.Score,
		DedupeKey: DedupeKey(bot.ID, symbol, timeframe, bar.OpenTime),
		Payload:   setupPayload(setup),
	}
	created, err := r.Repo.InsertSignal(ctx, sig)
	if err != nil {
		return res, err
	}
	if !created {
		res.Reason = SkipDuplicateBar
		return res, nil
	}
	res.SignalID = sig.ID
	res.Reason = setup.Reason
	res.Emitted = true
	if r.Logger != nil {
		r.Logger.Info("strategy signal emitted",
			zap.Uint64("bot_id", bot.ID),
			zap.Uint64("signal_id", sig.ID),
			zap.String("symbol", symbol),
			zap.String("timeframe", timeframe),
			zap.String("strategy", setup.Strategy),
			zap.String("direction", setup.Direction),
			zap.Float64("score", setup.Score),
		)
	}
	return res, nil
}

// DedupeKey identifies one bar of one bot.
func DedupeKey(botID uint64, symbol, timeframe string, barOpen time.Time) string {
	return fmt.Sprintf("%d|%s|%s|%d", botID, assets.CanonicalSymbol(symbol), strings.ToLower(timeframe), barOpen.UTC().Unix())
}

func (r *Runner) botSymbol(ctx context.Context, bot *models.Bot) (string, error) {
	if bot.AssetID != nil && *bot.AssetID != 0 && r.Assets != nil {
		asset, err := r.Assets.ResolveAsset(ctx, *bot.AssetID)
		if err != nil {
			if errors.Is(err, assets.ErrUnknownAsset) {
				return "", nil
			}
			return "", err
		}
		return asset.Symbol, nil
	}
	for _, s := range bot.AllowedSymbols {
		if strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), nil
		}
	}
	return "", nil
}

// closedBars drops a trailing bar that has not closed yet.
func closedBars(candles []connector.Candle, now time.Time) []connector.Candle {
	if len(candles) == 0 {
		return candles
	}
	last := candles[len(candles)-1]
	if !last.CloseTime.IsZero() && last.CloseTime.After(now) {
		return candles[:len(candles)-1]
	}
	return candles
}

func setupPayload(s Setup) datatypes.JSON {
	raw, _ := json.Marshal(map[string]any{
		"strategy": s.Strategy,
		"reason":   s.Reason,
		"entry":    s.Entry.String(),
		"sl":       s.SL.String(),
		"tp":       s.TP.String(),
		"atr":      s.ATR.String(),
	})
	return datatypes.JSON(raw)
}

func (r *Runner) logScalperRun(ctx context.Context, bot *models.Bot, res BotResult, runErr error) error {
	summary := map[string]any{"result": res}
	if runErr != nil {
		summary["error"] = runErr.Error()
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	timeframe := res.Timeframe
	if timeframe == "" {
		timeframe = defaultScalperTimeframe
	}
	return r.Repo.InsertScalperRunLog(ctx, &models.ScalperRunLog{
		BotID:     bot.ID,
		RunID:     uuid.NewString(),
		Timeframe: timeframe,
		Session:   res.Session,
		Summary:   datatypes.JSON(raw),
	})
}
