package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/alert"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/assets"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/connector"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/marketdata"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/orchestrator"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/settings"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/strategy"
)

const (
	positionBatch      = 500
	killSwitchBars     = 100
	alertSourceMonitor = "position_monitor"
)

// PositionCloser submits a close order for an open position.
type PositionCloser interface {
	ClosePosition(ctx context.Context, pos *models.Position, reason string) (*models.Order, error)
}

// PositionManager watches open positions against the price feed. Each pass is independent and
// safe to run on its own schedule.
type PositionManager struct {
	Repo   repository.Repository
	Closer PositionCloser
	Feed   marketdata.PriceFeed
	Alerts alert.Notifier
	Logger *zap.Logger

	// Candles enables the kill switch's engine confirmation. Nil disables it.
	Candles   connector.CandleSource
	Detectors []strategy.Detector

	Now func() time.Time
}

type MonitorResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Closed  int `json:"closed"`
	NoPrice int `json:"no_price"`
	Failed  int `json:"failed"`
}

func (m *PositionManager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *PositionManager) openPositions(ctx context.Context) ([]models.Position, error) {
	status := models.PositionStatusOpen
	asc := true
	var out []models.Position
	for offset := 0; ; offset += positionBatch {
		page, err := m.Repo.ListPositions(ctx, repository.ListPositionsParams{
			Status:  &status,
			Limit:   positionBatch,
			Offset:  offset,
			OrderBy: "id",
			Asc:     &asc,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < positionBatch {
			return out, nil
		}
	}
}

// RunOnce refreshes unrealized PnL and closes positions past the early-exit loss. Paper
// positions also close on a crossed stop or target.
func (m *PositionManager) RunOnce(ctx context.Context) (MonitorResult, error) {
	var res MonitorResult
	if m == nil || m.Repo == nil {
		return res, nil
	}
	cfg, err := settings.Load(ctx, m.Repo, nil)
	if err != nil {
		return res, err
	}
	items, err := m.openPositions(ctx)
	if err != nil {
		return res, err
	}
	paper := map[uint64]bool{}
	var errs []error
	for i := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		pos := &items[i]
		res.Checked++
		mkt, err := marketdata.Price(ctx, m.Feed, pos.Symbol)
		if err != nil {
			res.NoPrice++
			continue
		}

		pnl := UnrealizedPnL(*pos, mkt)
		if !pnl.Equal(pos.UnrealizedPnL) {
			pos.UnrealizedPnL = pnl
			if err := m.Repo.SavePosition(ctx, pos); err != nil {
				res.Failed++
				errs = append(errs, fmt.Errorf("position %d: %w", pos.ID, err))
				continue
			}
			res.Updated++
		}

		reason := ""
		if ShouldEarlyExit(*pos, mkt, cfg.EarlyExitMaxPct) {
			reason = CloseReasonEarlyExit
		} else if m.isPaper(ctx, paper, pos.BrokerAccountID) {
			reason = ProtectiveHit(*pos, mkt)
		}
		if reason == "" {
			continue
		}
		if err := m.close(ctx, pos, mkt, reason); err != nil {
			res.Failed++
			errs = append(errs, err)
			continue
		}
		res.Closed++
	}
	return res, errors.Join(errs...)
}

// isPaper reports accounts whose venue holds no stop or target orders, so SL/TP are
// enforced here.
func (m *PositionManager) isPaper(ctx context.Context, cache map[uint64]bool, accountID uint64) bool {
	if v, ok := cache[accountID]; ok {
		return v
	}
	account, err := m.Repo.GetBrokerAccountByID(ctx, accountID)
	v := err == nil && account != nil && orchestrator.IsPaperAccount(account)
	cache[accountID] = v
	return v
}

// Trail moves stops behind price on positions in profit by at least the trailing trigger.
func (m *PositionManager) Trail(ctx context.Context) (MonitorResult, error) {
	var res MonitorResult
	if m == nil || m.Repo == nil {
		return res, nil
	}
	cfg, err := settings.Load(ctx, m.Repo, nil)
	if err != nil {
		return res, err
	}
	items, err := m.openPositions(ctx)
	if err != nil {
		return res, err
	}
	var errs []error
	for i := range items {
		pos := &items[i]
		res.Checked++
		mkt, err := marketdata.Price(ctx, m.Feed, pos.Symbol)
		if err != nil {
			res.NoPrice++
			continue
		}
		prev := pos.SL
		if !ApplyTrailing(pos, mkt, cfg.TrailingTrigger, cfg.TrailingDistance) {
			continue
		}
		if err := m.Repo.SavePosition(ctx, pos); err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("position %d: %w", pos.ID, err))
			continue
		}
		res.Updated++
		if m.Logger != nil {
			fields := []zap.Field{
				zap.Uint64("position_id", pos.ID),
				zap.String("symbol", pos.Symbol),
				zap.String("price", mkt.String()),
				zap.String("sl", pos.SL.String()),
			}
			if prev != nil {
				fields = append(fields, zap.String("prev_sl", prev.String()))
			}
			m.Logger.Info("trailing stop moved", fields...)
		}
	}
	return res, errors.Join(errs...)
}

// KillSwitch closes losing positions on accounts traded by a bot with the kill switch armed.
func (m *PositionManager) KillSwitch(ctx context.Context) (MonitorResult, error) {
	var res MonitorResult
	if m == nil || m.Repo == nil {
		return res, nil
	}
	active := models.BotStatusActive
	autoTrade := true
	bots, err := m.Repo.ListBots(ctx, repository.ListBotsParams{Status: &active, AutoTrade: &autoTrade, Limit: 1000})
	if err != nil {
		return res, err
	}
	armed := make([]models.Bot, 0, len(bots))
	for _, b := range bots {
		if b.KillSwitchEnabled && b.BrokerAccountID != nil {
			armed = append(armed, b)
		}
	}
	if len(armed) == 0 {
		return res, nil
	}
	items, err := m.openPositions(ctx)
	if err != nil {
		return res, err
	}
	var errs []error
	for i := range items {
		pos := &items[i]
		bot := m.guardingBot(ctx, armed, pos)
		if bot == nil {
			continue
		}
		res.Checked++
		mkt, err := marketdata.Price(ctx, m.Feed, pos.Symbol)
		if err != nil {
			res.NoPrice++
			continue
		}
		cfg, err := settings.Load(ctx, m.Repo, bot)
		if err != nil {
			res.Failed++
			errs = append(errs, err)
			continue
		}
		pct := normalizePct(cfg.KillSwitchMaxUnrealizedPct)
		opposite := false
		if UnrealizedPnL(*pos, mkt).IsNegative() {
			opposite = m.engineOpposes(ctx, bot, pos)
		}
		if !ShouldKillSwitch(*pos, mkt, pct, opposite) {
			continue
		}
		if err := m.close(ctx, pos, mkt, CloseReasonKillSwitch); err != nil {
			res.Failed++
			errs = append(errs, err)
			continue
		}
		res.Closed++
	}
	return res, errors.Join(errs...)
}

// guardingBot returns the first armed bot on the position's account that trades its symbol.
func (m *PositionManager) guardingBot(ctx context.Context, armed []models.Bot, pos *models.Position) *models.Bot {
	want := assets.CanonicalSymbol(pos.Symbol)
	for i := range armed {
		b := &armed[i]
		if *b.BrokerAccountID != pos.BrokerAccountID {
			continue
		}
		if b.ID == pos.BotID {
			return b
		}
		if len(b.AllowedSymbols) == 0 && b.AssetID == nil {
			return b
		}
		for _, s := range b.AllowedSymbols {
			if assets.CanonicalSymbol(s) == want {
				return b
			}
		}
		if b.AssetID != nil {
			asset, err := m.Repo.GetAssetByID(ctx, *b.AssetID)
			if err == nil && asset != nil && assets.CanonicalSymbol(asset.Symbol) == want {
				return b
			}
		}
	}
	return nil
}

// engineOpposes runs the candle detectors on the bot's timeframe and reports a fresh setup
// against the position.
func (m *PositionManager) engineOpposes(ctx context.Context, bot *models.Bot, pos *models.Position) bool {
	if m.Candles == nil {
		return false
	}
	tf := bot.DefaultTimeframe
	if tf == "" {
		tf = "5m"
	}
	bars, err := m.Candles.Candles(ctx, assets.CanonicalSymbol(pos.Symbol), tf, killSwitchBars)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("kill switch candles unavailable", zap.String("symbol", pos.Symbol), zap.Error(err))
		}
		return false
	}
	if n := len(bars); n > 0 && bars[n-1].CloseTime.After(m.now()) {
		bars = bars[:n-1]
	}
	detectors := m.Detectors
	if len(detectors) == 0 {
		detectors = strategy.DefaultDetectors()
	}
	setup := strategy.Combine(detectors, bars)
	return setup.Open && setup.Direction != "" && setup.Direction != pos.Direction()
}

func (m *PositionManager) close(ctx context.Context, pos *models.Position, mkt decimal.Decimal, reason string) error {
	if m.Closer == nil {
		return errors.New("position manager: no closer configured")
	}
	pnl := UnrealizedPnL(*pos, mkt)
	order, err := m.Closer.ClosePosition(ctx, pos, reason)
	if err != nil {
		return fmt.Errorf("close position %d (%s): %w", pos.ID, reason, err)
	}
	if m.Logger != nil {
		m.Logger.Warn("position closed by monitor",
			zap.Uint64("position_id", pos.ID),
			zap.Uint64("bot_id", pos.BotID),
			zap.String("symbol", pos.Symbol),
			zap.String("reason", reason),
			zap.String("price", mkt.String()),
			zap.String("unrealized", pnl.String()),
		)
	}
	if m.Alerts == nil {
		return nil
	}
	kind := alert.KindEarlyExit
	level := alert.LevelWarn
	switch reason {
	case CloseReasonKillSwitch:
		kind, level = alert.KindKillSwitch, alert.LevelError
	case CloseReasonStopLoss, CloseReasonTakeProfit:
		kind, level = reason, alert.LevelInfo
	}
	ev := alert.Event{
		Kind:    kind,
		Level:   level,
		Message: fmt.Sprintf("%s %s closed at %s", pos.Symbol, reason, mkt.String()),
		BotID:   pos.BotID,
		Symbol:  pos.Symbol,
		Source:  alertSourceMonitor,
		SentAt:  m.now(),
		Details: map[string]any{
			"position_id": pos.ID,
			"qty":         pos.Qty.String(),
			"avg_price":   pos.AvgPrice.String(),
			"unrealized":  pnl.String(),
		},
	}
	if order != nil {
		ev.OrderID = order.ID
	}
	m.Alerts.Notify(ctx, ev)
	return nil
}
