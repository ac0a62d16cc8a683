// Package orchestrator turns actionable decisions into venue orders and owns every order
// status change after that.
package orchestrator

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
	"github.com/KOppong41/ez-pip-razor-sub001/internal/lease"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/marketdata"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/risk"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/settings"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/sizing"
)

const (
	ReasonOrderCooldown = "order_cooldown"
	ReasonMissingSLTP   = "missing_sl_tp"
	ReasonNoPrice       = "no_price"
	ReasonNothingToDo   = "position_already_closed"
)

var (
	ErrNotSubmitted    = errors.New("order not submitted")
	ErrNoBrokerAccount = errors.New("bot has no broker account")
	ErrNotFound        = errors.New("not found")
)

// Rejection explains why an actionable decision produced no order. Sizing rejections are
// wrapped as well so callers only need RejectionReason.
type Rejection struct {
	Reason string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("order not submitted: %s: %v", r.Reason, r.Err)
	}
	return "order not submitted: " + r.Reason
}

func (r *Rejection) Unwrap() []error {
	if r.Err != nil {
		return []error{ErrNotSubmitted, r.Err}
	}
	return []error{ErrNotSubmitted}
}

func RejectionReason(err error) string {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return sizing.RejectionReason(err)
}

// ConnectorSource resolves the venue adapter for a broker account.
type ConnectorSource interface {
	For(account *models.BrokerAccount) connector.Connector
}

type Orchestrator struct {
	Repo       repository.Repository
	Connectors ConnectorSource
	Assets     *assets.Resolver
	Guard      *risk.Guard
	Locker     lease.Locker
	Feed       marketdata.PriceFeed
	Alerts     alert.Notifier
	Logger     *zap.Logger

	LeaseTTL  time.Duration
	LeaseWait time.Duration
	// ReconcileGrace protects venue positions with recent local order activity.
	ReconcileGrace time.Duration

	Now func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

// Execute submits the order(s) an actionable decision calls for. Skip decisions are a no-op.
// The bot lease is held from the cooldown check until the venue has answered.
func (o *Orchestrator) Execute(ctx context.Context, decision *models.Decision) (*models.Order, error) {
	if o == nil || o.Repo == nil || decision == nil || decision.Action == models.ActionSkip {
		return nil, nil
	}
	bot, err := o.Repo.GetBotByID(ctx, decision.BotID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, fmt.Errorf("bot %d: %w", decision.BotID, ErrNotFound)
	}
	account, err := o.accountFor(ctx, bot.BrokerAccountID)
	if err != nil {
		return nil, err
	}
	cfg, err := settings.Load(ctx, o.Repo, bot)
	if err != nil {
		return nil, err
	}

	var out *models.Order
	err = o.withBotLease(ctx, bot.ID, cfg, func(ctx context.Context) error {
		var err error
		out, err = o.execute(ctx, decision, bot, account, cfg)
		return err
	})
	return out, err
}

func (o *Orchestrator) execute(ctx context.Context, decision *models.Decision, bot *models.Bot, account *models.BrokerAccount, cfg settings.ResolvedConfig) (*models.Order, error) {
	params := decision.Params.Data()

	if decision.Action == models.ActionClose {
		pos, err := o.openPosition(ctx, params.PositionID)
		if err != nil {
			return nil, err
		}
		if pos == nil {
			return nil, &Rejection{Reason: ReasonNothingToDo}
		}
		return o.closePosition(ctx, pos, account, cfg, "signal_close")
	}

	// existing rows short-circuit before the cooldown so a replay of the same decision stays idempotent
	side := params.Direction
	clientID := ClientOrderID(decision.ID, account.ID, decision.Symbol, side)
	if existing, err := o.Repo.GetOrderByClientOrderID(ctx, clientID); err != nil {
		return nil, err
	} else if existing != nil {
		if existing.Status == models.OrderStatusNew {
			return o.dispatch(ctx, existing, account, cfg)
		}
		return existing, nil
	}

	if cfg.OrderCooldown > 0 {
		last, err := o.Repo.LastOrderForBot(ctx, bot.ID)
		if err != nil {
			return nil, err
		}
		if last != nil && o.now().Sub(last.CreatedAt) < cfg.OrderCooldown {
			return nil, &Rejection{Reason: ReasonOrderCooldown}
		}
	}

	if decision.Action == models.ActionFlip {
		pos, err := o.openPosition(ctx, params.PositionID)
		if err != nil {
			return nil, err
		}
		if pos != nil {
			closing, err := o.closePosition(ctx, pos, account, cfg, "flip")
			if err != nil {
				return nil, fmt.Errorf("flip close: %w", err)
			}
			if closing != nil && closing.Status == models.OrderStatusError {
				return closing, fmt.Errorf("flip close order %d failed: %s", closing.ID, closing.ErrorMsg)
			}
		}
	}

	order, err := o.buildOpenOrder(ctx, decision, bot, account, cfg, clientID)
	if err != nil {
		if o.Logger != nil && RejectionReason(err) != "" {
			o.Logger.Debug("orchestrator: order not submitted",
				zap.Uint64("bot_id", bot.ID),
				zap.Uint64("decision_id", decision.ID),
				zap.String("reason", RejectionReason(err)),
			)
		}
		return nil, err
	}
	stored, created, err := o.Repo.CreateOrderIfAbsent(ctx, order)
	if err != nil {
		return nil, err
	}
	if !created && stored.Status != models.OrderStatusNew {
		return stored, nil
	}
	return o.dispatch(ctx, stored, account, cfg)
}

func (o *Orchestrator) buildOpenOrder(ctx context.Context, decision *models.Decision, bot *models.Bot, account *models.BrokerAccount, cfg settings.ResolvedConfig, clientID string) (*models.Order, error) {
	params := decision.Params.Data()
	side := params.Direction
	if side != models.SideBuy && side != models.SideSell {
		return nil, &Rejection{Reason: sizing.ReasonInvalidQty, Err: fmt.Errorf("direction %q", side)}
	}
	cons, err := o.Assets.Resolve(ctx, decision.Symbol)
	if err != nil {
		return nil, err
	}
	price, err := marketdata.Price(ctx, o.Feed, decision.Symbol)
	if err != nil {
		if params.Price == nil || !params.Price.IsPositive() {
			price = decimal.Zero
		} else {
			price = *params.Price
		}
	}

	mult := decimal.NewFromInt(1)
	if o.Guard != nil {
		m, err := o.Guard.SizeMultiplier(ctx, bot, cfg, o.now())
		if err != nil {
			return nil, err
		}
		mult = m
	}
	qtyMult := params.QtyMultiplier
	if params.Scalp && qtyMult == nil {
		qtyMult = &cfg.ScalpQtyMultiplier
	}
	res, err := sizing.Size(sizing.Input{
		DefaultQty:       bot.DefaultQty,
		BotMinDefaultQty: cfg.BotMinDefaultQty,
		RiskMultiplier:   mult,
		QtyMultiplier:    qtyMult,
		Constraints:      cons,
		Price:            price,
		MaxOrderLot:      cfg.MaxOrderLot,
		MaxOrderNotional: cfg.MaxOrderNotional,
	})
	if err != nil {
		return nil, err
	}

	levels := sizing.LevelsInput{
		Symbol: decision.Symbol,
		Side:   side,
		Price:  price,
		SL:     params.SL,
		TP:     params.TP,
	}
	if params.ATR != nil {
		levels.ATR = *params.ATR
	}
	if params.Scalp {
		levels.SLOffset, levels.TPOffset = params.SLOffset, params.TPOffset
		if levels.SLOffset == nil {
			levels.SLOffset = &cfg.ScalpSLOffset
		}
		if levels.TPOffset == nil {
			levels.TPOffset = &cfg.ScalpTPOffset
		}
	}
	sl, tp := sizing.ProtectiveLevels(levels)
	if connector.NormalizeBroker(account.Broker) != connector.BrokerPaper && (sl == nil || tp == nil) {
		return nil, &Rejection{Reason: ReasonMissingSLTP}
	}

	decisionID := decision.ID
	order := &models.Order{
		BotID:           bot.ID,
		BrokerAccountID: account.ID,
		DecisionID:      &decisionID,
		ClientOrderID:   clientID,
		Symbol:          decision.Symbol,
		Side:            side,
		Qty:             res.Qty,
		SL:              sl,
		TP:              tp,
		Status:          models.OrderStatusNew,
		FilledQty:       decimal.Zero,
	}
	if price.IsPositive() {
		order.Price = &price
	}
	return order, nil
}

func ackTimeout(cfg settings.ResolvedConfig) time.Duration {
	if cfg.OrderAckTimeout > 0 {
		return cfg.OrderAckTimeout
	}
	return settings.Defaults.OrderAckTimeout
}

// dispatch sends a new order to its venue under the ack deadline and applies the answer.
// A connector failure always moves the order to error; it is never left new.
func (o *Orchestrator) dispatch(ctx context.Context, order *models.Order, account *models.BrokerAccount, cfg settings.ResolvedConfig) (*models.Order, error) {
	conn := o.connectorFor(account)
	dctx, cancel := context.WithTimeout(ctx, ackTimeout(cfg))
	report, err := conn.PlaceOrder(dctx, order)
	cancel()
	if err == nil && report == nil {
		err = fmt.Errorf("%w: connector returned no report", connector.ErrUnknown)
	}
	if err != nil {
		msg := err.Error()
		if report != nil && report.Message != "" {
			msg = report.Message
		}
		updated, uerr := o.UpdateStatus(context.WithoutCancel(ctx), order, models.OrderStatusError, Patch{ErrorMsg: msg})
		if uerr != nil && o.Logger != nil {
			o.Logger.Error("orchestrator: failed to record dispatch error", zap.Uint64("order_id", order.ID), zap.Error(uerr))
		}
		if updated == nil {
			updated = order
		}
		o.notifyDispatchError(ctx, updated, err)
		return updated, fmt.Errorf("dispatch order %d via %s: %w", order.ID, conn.Name(), err)
	}
	return o.ApplyReport(ctx, order, report)
}

func (o *Orchestrator) notifyDispatchError(ctx context.Context, order *models.Order, err error) {
	kind := alert.KindOrderError
	level := alert.LevelWarn
	if connector.IsConfiguration(err) {
		kind = alert.KindConnectorConfig
		level = alert.LevelError
	}
	if o.Logger != nil {
		o.Logger.Warn("orchestrator: order dispatch failed",
			zap.Uint64("order_id", order.ID),
			zap.Uint64("bot_id", order.BotID),
			zap.String("symbol", order.Symbol),
			zap.Bool("transient", connector.IsTransient(err)),
			zap.Error(err),
		)
	}
	if o.Alerts != nil {
		o.Alerts.Notify(ctx, alert.Event{
			Kind:    kind,
			Level:   level,
			Message: err.Error(),
			BotID:   order.BotID,
			OrderID: order.ID,
			Symbol:  order.Symbol,
		})
	}
}

func (o *Orchestrator) withBotLease(ctx context.Context, botID uint64, cfg settings.ResolvedConfig, fn func(ctx context.Context) error) error {
	ttl := o.LeaseTTL
	if ttl <= 0 {
		// the lease must outlive a full dispatch
		ttl = ackTimeout(cfg) + 30*time.Second
	}
	wait := o.LeaseWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return lease.Wait(ctx, o.Locker, lease.BotKey(botID), ttl, wait, fn)
}

func (o *Orchestrator) accountFor(ctx context.Context, id *uint64) (*models.BrokerAccount, error) {
	if id == nil || *id == 0 {
		return nil, ErrNoBrokerAccount
	}
	account, err := o.Repo.GetBrokerAccountByID(ctx, *id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("broker account %d: %w", *id, ErrNotFound)
	}
	return account, nil
}

func (o *Orchestrator) connectorFor(account *models.BrokerAccount) connector.Connector {
	if o.Connectors == nil {
		return connector.NotConfigured{Broker: connector.NormalizeBroker(account.Broker)}
	}
	return o.Connectors.For(account)
}

func (o *Orchestrator) openPosition(ctx context.Context, id uint64) (*models.Position, error) {
	if id == 0 {
		return nil, nil
	}
	pos, err := o.Repo.GetPositionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pos == nil || pos.Status != models.PositionStatusOpen || pos.Qty.IsZero() {
		return nil, nil
	}
	return pos, nil
}
