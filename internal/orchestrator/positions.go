package orchestrator

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/alert"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/assets"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/connector"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

const (
	TradeLogOpen   = "open"
	TradeLogClosed = "closed"

	CloseReasonDefault          = "closed"
	CloseReasonReconcileMissing = "reconcile_missing"
)

// bookFill applies qty filled at price to the position book and appends a trade log.
// Closing fills realise PnL; a fully closed position feeds the loss streak.
func (o *Orchestrator) bookFill(ctx context.Context, order *models.Order, qty, price decimal.Decimal) (uint64, error) {
	var (
		pos *models.Position
		err error
	)
	if order.PositionID != nil {
		pos, err = o.Repo.GetPositionByID(ctx, *order.PositionID)
		if err != nil {
			return 0, err
		}
	}
	if connector.IsCloseOrder(order) {
		if pos == nil || pos.Status != models.PositionStatusOpen {
			pos, err = o.positionToReduce(ctx, order)
			if err != nil {
				return 0, err
			}
		}
		return o.bookClose(ctx, order, pos, qty, price)
	}
	return o.bookOpen(ctx, order, pos, qty, price)
}

func (o *Orchestrator) bookOpen(ctx context.Context, order *models.Order, pos *models.Position, qty, price decimal.Decimal) (uint64, error) {
	now := o.now()
	if pos == nil || pos.Status != models.PositionStatusOpen {
		pos = &models.Position{
			BrokerAccountID: order.BrokerAccountID,
			BotID:           order.BotID,
			Symbol:          order.Symbol,
			Qty:             decimal.Zero,
			AvgPrice:        decimal.Zero,
			Status:          models.PositionStatusOpen,
			OpenedAt:        now,
		}
		if order.DecisionID != nil {
			if d, err := o.Repo.GetDecisionByID(ctx, *order.DecisionID); err == nil && d != nil {
				pos.Scalp = d.Params.Data().Scalp
			}
		}
	}
	signed := qty
	if order.Side == models.SideSell {
		signed = qty.Neg()
	}
	oldAbs := pos.Qty.Abs()
	newQty := pos.Qty.Add(signed)
	if newQty.Abs().IsPositive() {
		pos.AvgPrice = oldAbs.Mul(pos.AvgPrice).Add(qty.Mul(price)).Div(newQty.Abs())
	}
	pos.Qty = newQty
	if order.SL != nil {
		pos.SL = order.SL
	}
	if order.TP != nil {
		pos.TP = order.TP
	}
	if err := o.Repo.SavePosition(ctx, pos); err != nil {
		return 0, err
	}
	p := price
	if err := o.Repo.InsertTradeLog(ctx, &models.TradeLog{
		OrderID:         order.ID,
		BotID:           order.BotID,
		BrokerAccountID: order.BrokerAccountID,
		Symbol:          order.Symbol,
		Side:            order.Side,
		Qty:             qty,
		Price:           &p,
		Status:          TradeLogOpen,
	}); err != nil {
		return pos.ID, err
	}
	return pos.ID, nil
}

func (o *Orchestrator) bookClose(ctx context.Context, order *models.Order, pos *models.Position, qty, price decimal.Decimal) (uint64, error) {
	p := price
	log := &models.TradeLog{
		OrderID:         order.ID,
		BotID:           order.BotID,
		BrokerAccountID: order.BrokerAccountID,
		Symbol:          order.Symbol,
		Side:            order.Side,
		Qty:             qty,
		Price:           &p,
		Status:          TradeLogClosed,
	}
	if pos == nil {
		// reconcile flattening of a venue-only position has nothing local to reduce
		if o.Logger != nil {
			o.Logger.Warn("closing fill without local position", zap.Uint64("order_id", order.ID), zap.String("symbol", order.Symbol))
		}
		return 0, o.Repo.InsertTradeLog(ctx, log)
	}

	now := o.now()
	dir := int64(pos.Qty.Sign())
	closeQty := decimal.Min(qty, pos.Qty.Abs())
	realized := price.Sub(pos.AvgPrice).Mul(closeQty).Mul(decimal.NewFromInt(dir))
	pos.Qty = pos.Qty.Sub(closeQty.Mul(decimal.NewFromInt(dir)))
	pos.RealizedPnL = pos.RealizedPnL.Add(realized)
	closed := pos.Qty.IsZero()
	if closed {
		pos.Status = models.PositionStatusClosed
		pos.ClosedAt = &now
		pos.UnrealizedPnL = decimal.Zero
		if pos.CloseReason == "" {
			pos.CloseReason = CloseReasonDefault
		}
	} else {
		pos.UnrealizedPnL = price.Sub(pos.AvgPrice).Mul(pos.Qty)
	}
	if err := o.Repo.SavePosition(ctx, pos); err != nil {
		return 0, err
	}
	log.PnL = &realized
	if err := o.Repo.InsertTradeLog(ctx, log); err != nil {
		return pos.ID, err
	}
	if o.Guard != nil {
		o.Guard.Invalidate(pos.BotID)
	}
	if closed {
		o.recordResult(ctx, pos)
	}
	return pos.ID, nil
}

func (o *Orchestrator) recordResult(ctx context.Context, pos *models.Position) {
	if o.Guard == nil {
		return
	}
	bot, err := o.Guard.RecordTradeResult(ctx, pos.BotID, pos.RealizedPnL)
	if err != nil {
		if o.Logger != nil {
			o.Logger.Error("record trade result failed", zap.Uint64("bot_id", pos.BotID), zap.Error(err))
		}
		return
	}
	if bot != nil && bot.IsPausedAt(o.now()) && o.Alerts != nil {
		o.Alerts.Notify(ctx, alert.Event{
			Kind:    alert.KindLossStreakPause,
			Level:   alert.LevelWarn,
			Message: fmt.Sprintf("bot paused after %d consecutive losses", bot.CurrentLossStreak),
			BotID:   bot.ID,
			Symbol:  pos.Symbol,
		})
	}
}

// positionToReduce finds the open position a close order without an explicit position id
// works against: same account and symbol, opposite direction, same bot preferred.
func (o *Orchestrator) positionToReduce(ctx context.Context, order *models.Order) (*models.Position, error) {
	items, err := o.Repo.ListOpenPositions(ctx, order.BrokerAccountID, order.Symbol)
	if err != nil {
		return nil, err
	}
	var fallback *models.Position
	for i := range items {
		p := items[i]
		if !assets.SymbolsMatch(p.Symbol, order.Symbol) || p.Direction() == order.Side || p.Qty.IsZero() {
			continue
		}
		if p.BotID == order.BotID {
			return &p, nil
		}
		if fallback == nil {
			fallback = &p
		}
	}
	return fallback, nil
}

// closeLocally marks a position closed without a venue order.
func (o *Orchestrator) closeLocally(ctx context.Context, pos *models.Position, reason string) error {
	now := o.now()
	pos.Status = models.PositionStatusClosed
	pos.ClosedAt = &now
	pos.CloseReason = reason
	pos.UnrealizedPnL = decimal.Zero
	return o.Repo.SavePosition(ctx, pos)
}
