// Package decision turns a stored signal into exactly one Decision per bot. Every guardrail
// that blocks a trade produces a skip decision with a reason instead of an error.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/assets"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/lease"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/risk"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/settings"
)

const (
	ReasonBotInactive         = risk.ReasonBotInactive
	ReasonAutoTradeOff        = "auto_trade_disabled"
	ReasonNoBrokerAccount     = "no_broker_account"
	ReasonOutsideWindow       = "outside_trading_window"
	ReasonSymbolNotAllowed    = "symbol_not_allowed"
	ReasonTimeframeNotAllowed = "timeframe_not_allowed"
	ReasonScoreBelowMin       = "score_below_min"
	ReasonNoPosition          = "no_position"
	ReasonDuplicateExposure   = "duplicate_exposure"
	ReasonOppositePosition    = "opposite_position"
	ReasonMaxPerSymbol        = "max_positions_per_symbol"
	ReasonMaxConcurrent       = "max_concurrent_positions"
	ReasonDailyTradeLimit     = "daily_trade_limit_reached"
	ReasonTradeInterval       = "min_trade_interval_not_elapsed"
	ReasonInvalidDirection    = "invalid_direction"
	ReasonSignalOpen          = "signal"
	ReasonSignalClose         = "signal_close"
	ReasonFlip                = "flip_triggered"
	ReasonHedge               = "hedge"
	ReasonOppositeScalp       = "opposite_scalp"
)

const defaultPendingBatchLimit = 50

var ErrSignalNotFound = errors.New("signal not found")

// Executor submits actionable decisions. The orchestrator implements it.
type Executor interface {
	Execute(ctx context.Context, decision *models.Decision) (*models.Order, error)
}

type Engine struct {
	Repo     repository.Repository
	Guard    *risk.Guard
	Assets   *assets.Resolver
	Executor Executor
	// Locker serializes a bot's evaluation and submission. Nil runs unlocked.
	Locker lease.Locker
	Logger *zap.Logger

	// PendingLimit caps the signals evaluated per bot per ProcessPending call.
	PendingLimit int
	LeaseTTL     time.Duration
	LeaseWait    time.Duration
	Now          func() time.Time
}

// withBotLease holds the bot lease from evaluation until the venue has answered. The
// executor joins the same lease through the context.
func (e *Engine) withBotLease(ctx context.Context, botID uint64, fn func(ctx context.Context) error) error {
	ttl := e.LeaseTTL
	if ttl <= 0 {
		ttl = settings.Defaults.OrderAckTimeout + 30*time.Second
	}
	wait := e.LeaseWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return lease.Wait(ctx, e.Locker, lease.BotKey(botID), ttl, wait, fn)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// outcome is the engine's verdict before it is persisted.
type outcome struct {
	action string
	reason string
	params models.DecisionParams
}

func skip(reason string) outcome {
	return outcome{action: models.ActionSkip, reason: reason}
}

// Evaluate records the decision for (bot, signal). A decision that already exists is returned
// unchanged, so repeated evaluation is harmless.
func (e *Engine) Evaluate(ctx context.Context, signal *models.Signal, bot *models.Bot) (*models.Decision, error) {
	if e == nil || e.Repo == nil {
		return nil, errors.New("decision engine not configured")
	}
	if signal == nil || bot == nil {
		return nil, fmt.Errorf("evaluate: %w", ErrSignalNotFound)
	}
	if existing, err := e.Repo.GetDecisionByBotSignal(ctx, bot.ID, signal.ID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	now := e.now()
	cfg, err := settings.Load(ctx, e.Repo, bot)
	if err != nil {
		return nil, err
	}
	out, err := e.decide(ctx, signal, bot, cfg, now)
	if err != nil {
		return nil, err
	}
	if out.params.Direction == "" && out.action != models.ActionSkip {
		out.params.Direction = strings.ToLower(signal.Direction)
	}

	d := &models.Decision{
		BotID:     bot.ID,
		SignalID:  signal.ID,
		Symbol:    signal.Symbol,
		Action:    out.action,
		Reason:    out.reason,
		Score:     signal.Score,
		Params:    datatypes.NewJSONType(out.params),
		DecidedAt: now,
	}
	created, err := e.Repo.InsertDecision(ctx, d)
	if err != nil {
		return nil, err
	}
	if !created {
		return e.Repo.GetDecisionByBotSignal(ctx, bot.ID, signal.ID)
	}
	if e.Logger != nil {
		level := e.Logger.Info
		if d.Action == models.ActionSkip {
			level = e.Logger.Debug
		}
		level("decision recorded",
			zap.Uint64("bot_id", bot.ID),
			zap.Uint64("signal_id", signal.ID),
			zap.String("symbol", signal.Symbol),
			zap.String("action", d.Action),
			zap.String("reason", d.Reason),
			zap.Float64("score", d.Score),
		)
	}
	return d, nil
}

func (e *Engine) decide(ctx context.Context, signal *models.Signal, bot *models.Bot, cfg settings.ResolvedConfig, now time.Time) (outcome, error) {
	if bot.Status == models.BotStatusStopped {
		return skip(ReasonBotInactive), nil
	}
	if !bot.AutoTrade {
		return skip(ReasonAutoTradeOff), nil
	}
	if bot.PausedUntil != nil && now.Before(*bot.PausedUntil) {
		return skip(risk.ReasonPaused), nil
	}
	if e.Guard != nil {
		v, err := e.Guard.Evaluate(ctx, bot, cfg, now)
		if err != nil {
			return outcome{}, err
		}
		if !v.Allow {
			return skip(v.Reason), nil
		}
		if v.Bot != nil {
			bot = v.Bot
		}
	}
	if !risk.WithinSchedule(cfg.Schedule, now) {
		return skip(ReasonOutsideWindow), nil
	}
	ok, err := e.symbolAllowed(ctx, bot, signal.Symbol)
	if err != nil {
		return outcome{}, err
	}
	if !ok {
		return skip(ReasonSymbolNotAllowed), nil
	}
	if !bot.AcceptsTimeframe(signal.Timeframe) {
		return skip(ReasonTimeframeNotAllowed), nil
	}
	if signal.Score < cfg.DecisionMinScore {
		return skip(ReasonScoreBelowMin), nil
	}
	if bot.BrokerAccountID == nil || *bot.BrokerAccountID == 0 {
		return skip(ReasonNoBrokerAccount), nil
	}
	accountID := *bot.BrokerAccountID

	positions, err := e.openPositions(ctx, accountID, signal.Symbol)
	if err != nil {
		return outcome{}, err
	}
	direction := strings.ToLower(strings.TrimSpace(signal.Direction))

	if direction == models.DirectionClose {
		pos := primaryPosition(positions, bot.ID)
		if pos == nil {
			return skip(ReasonNoPosition), nil
		}
		return outcome{
			action: models.ActionClose,
			reason: ReasonSignalClose,
			params: models.DecisionParams{Direction: models.DirectionClose, PositionID: pos.ID},
		}, nil
	}
	if direction != models.DirectionBuy && direction != models.DirectionSell {
		return skip(ReasonInvalidDirection), nil
	}

	// an unfilled order already carries this exposure
	pending, err := e.inFlight(ctx, bot.ID, signal.Symbol, direction)
	if err != nil {
		return outcome{}, err
	}
	if pending {
		return skip(ReasonDuplicateExposure), nil
	}

	out := outcome{action: models.ActionOpen, reason: ReasonSignalOpen, params: payloadParams(signal)}
	out.params.Direction = direction

	if pos := primaryPosition(positions, bot.ID); pos != nil {
		if pos.Direction() == direction {
			return skip(ReasonDuplicateExposure), nil
		}
		flip, err := e.flipAllowed(ctx, bot.ID, signal.Score, cfg, now)
		if err != nil {
			return outcome{}, err
		}
		switch {
		case flip:
			out.action = models.ActionFlip
			out.reason = ReasonFlip
			out.params.PositionID = pos.ID
		case cfg.AllowHedging:
			out.reason = ReasonHedge
			out.params.Hedge = true
		case cfg.AllowOppositeScalp:
			out.reason = ReasonOppositeScalp
			out.params.Scalp = true
			mult, sl, tp := cfg.ScalpQtyMultiplier, cfg.ScalpSLOffset, cfg.ScalpTPOffset
			out.params.QtyMultiplier = &mult
			out.params.SLOffset = &sl
			out.params.TPOffset = &tp
			// scalp levels come from the offsets, not the signal's own SL/TP
			out.params.SL, out.params.TP = nil, nil
		default:
			return skip(ReasonOppositePosition), nil
		}
	}

	if reason, err := e.limitsReached(ctx, bot, accountID, positions, out, cfg, now); err != nil {
		return outcome{}, err
	} else if reason != "" {
		return skip(reason), nil
	}
	return out, nil
}

func (e *Engine) symbolAllowed(ctx context.Context, bot *models.Bot, symbol string) (bool, error) {
	if bot.AssetID != nil && *bot.AssetID != 0 && e.Assets != nil {
		asset, err := e.Assets.ResolveAsset(ctx, *bot.AssetID)
		if err != nil {
			if errors.Is(err, assets.ErrUnknownAsset) {
				return false, nil
			}
			return false, err
		}
		return assets.SymbolsMatch(asset.Symbol, symbol), nil
	}
	if len(bot.AllowedSymbols) == 0 {
		return true, nil
	}
	for _, s := range bot.AllowedSymbols {
		if assets.SymbolsMatch(s, symbol) {
			return true, nil
		}
	}
	return false, nil
}

// openPositions lists open positions on the account whose symbol matches canonically.
func (e *Engine) openPositions(ctx context.Context, accountID uint64, symbol string) ([]models.Position, error) {
	items, err := e.Repo.ListOpenPositions(ctx, accountID, "")
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, p := range items {
		if assets.SymbolsMatch(p.Symbol, symbol) && !p.Qty.IsZero() {
			out = append(out, p)
		}
	}
	return out, nil
}

// inFlight reports whether the bot has an unfinished opening order on symbol in direction.
func (e *Engine) inFlight(ctx context.Context, botID uint64, symbol, side string) (bool, error) {
	opening := false
	orders, err := e.Repo.ListOrders(ctx, repository.ListOrdersParams{
		BotID:    &botID,
		Statuses: []string{models.OrderStatusNew, models.OrderStatusAck, models.OrderStatusPartFilled},
		Close:    &opening,
		Limit:    200,
	})
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		if o.Side == side && assets.SymbolsMatch(o.Symbol, symbol) {
			return true, nil
		}
	}
	return false, nil
}

// primaryPosition is the non-scalp exposure the bot is judged against, the bot's own first.
func primaryPosition(positions []models.Position, botID uint64) *models.Position {
	var fallback *models.Position
	for i := range positions {
		p := &positions[i]
		if p.Scalp {
			continue
		}
		if p.BotID == botID {
			return p
		}
		if fallback == nil {
			fallback = p
		}
	}
	if fallback != nil {
		return fallback
	}
	if len(positions) > 0 {
		return &positions[0]
	}
	return nil
}

func (e *Engine) flipAllowed(ctx context.Context, botID uint64, score float64, cfg settings.ResolvedConfig, now time.Time) (bool, error) {
	if score < cfg.FlipScore {
		return false, nil
	}
	flipAction := models.ActionFlip
	if cfg.MaxFlipsPerDay > 0 {
		day := dayStart(now)
		n, err := e.Repo.CountDecisions(ctx, repository.ListDecisionsParams{BotID: &botID, Action: &flipAction, Since: &day})
		if err != nil {
			return false, err
		}
		if n >= int64(cfg.MaxFlipsPerDay) {
			return false, nil
		}
	}
	if cfg.FlipCooldown > 0 {
		last, err := e.Repo.ListDecisions(ctx, repository.ListDecisionsParams{BotID: &botID, Action: &flipAction, Limit: 1})
		if err != nil {
			return false, err
		}
		if len(last) > 0 && now.Sub(last[0].DecidedAt) < cfg.FlipCooldown {
			return false, nil
		}
	}
	return true, nil
}

// limitsReached applies the position and trade-count limits. Flips replace exposure and are
// exempt from the position counts.
func (e *Engine) limitsReached(ctx context.Context, bot *models.Bot, accountID uint64, positions []models.Position, out outcome, cfg settings.ResolvedConfig, now time.Time) (string, error) {
	if out.action == models.ActionOpen {
		if cfg.MaxPositionsPerSymbol > 0 && len(positions) >= cfg.MaxPositionsPerSymbol {
			return ReasonMaxPerSymbol, nil
		}
		if cfg.MaxConcurrentPositions > 0 {
			all, err := e.Repo.ListOpenPositions(ctx, accountID, "")
			if err != nil {
				return "", err
			}
			if len(all) >= cfg.MaxConcurrentPositions {
				return ReasonMaxConcurrent, nil
			}
		}
	}
	if cfg.MaxTradesPerDay > 0 {
		day := dayStart(now)
		closeOrders := false
		n, err := e.Repo.CountOrders(ctx, repository.ListOrdersParams{
			BotID:        &bot.ID,
			Statuses:     []string{models.OrderStatusFilled},
			Close:        &closeOrders,
			CreatedSince: &day,
		})
		if err != nil {
			return "", err
		}
		if n >= int64(cfg.MaxTradesPerDay) {
			return ReasonDailyTradeLimit, nil
		}
	}
	if cfg.TradeInterval > 0 {
		last, err := e.Repo.LastActionableDecision(ctx, bot.ID)
		if err != nil {
			return "", err
		}
		if last != nil && now.Sub(last.DecidedAt) < cfg.TradeInterval {
			return ReasonTradeInterval, nil
		}
	}
	return "", nil
}

// payloadParams lifts explicit levels from the signal payload. Unknown keys are ignored.
func payloadParams(signal *models.Signal) models.DecisionParams {
	var p models.DecisionParams
	if len(signal.Payload) == 0 {
		return p
	}
	var raw map[string]any
	if err := json.Unmarshal(signal.Payload, &raw); err != nil {
		return p
	}
	p.SL = payloadDecimal(raw, "sl", "stop_loss")
	p.TP = payloadDecimal(raw, "tp", "take_profit")
	p.ATR = payloadDecimal(raw, "atr")
	p.Price = payloadDecimal(raw, "price", "entry")
	return p
}

func payloadDecimal(raw map[string]any, keys ...string) *decimal.Decimal {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		var (
			d   decimal.Decimal
			err error
		)
		switch t := v.(type) {
		case float64:
			d = decimal.NewFromFloat(t)
		case string:
			d, err = decimal.NewFromString(strings.TrimSpace(t))
		default:
			continue
		}
		if err != nil || !d.IsPositive() {
			continue
		}
		return &d
	}
	return nil
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
