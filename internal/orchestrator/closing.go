package orchestrator

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/settings"
)

const maxCloseRetries = 5

// ClosePosition builds and dispatches an order that flattens pos. A close already in flight
// is returned instead of a second one.
func (o *Orchestrator) ClosePosition(ctx context.Context, pos *models.Position, reason string) (*models.Order, error) {
	if pos == nil || pos.Status != models.PositionStatusOpen || pos.Qty.IsZero() {
		return nil, &Rejection{Reason: ReasonNothingToDo}
	}
	account, err := o.accountFor(ctx, &pos.BrokerAccountID)
	if err != nil {
		return nil, err
	}
	bot, err := o.Repo.GetBotByID(ctx, pos.BotID)
	if err != nil {
		return nil, err
	}
	cfg, err := settings.Load(ctx, o.Repo, bot)
	if err != nil {
		return nil, err
	}
	var out *models.Order
	err = o.withBotLease(ctx, pos.BotID, cfg, func(ctx context.Context) error {
		var err error
		out, err = o.closePosition(ctx, pos, account, cfg, reason)
		return err
	})
	return out, err
}

func (o *Orchestrator) closePosition(ctx context.Context, pos *models.Position, account *models.BrokerAccount, cfg settings.ResolvedConfig, reason string) (*models.Order, error) {
	side := models.SideSell
	if pos.Qty.IsNegative() {
		side = models.SideBuy
	}
	posID := pos.ID
	order := &models.Order{
		BotID:           pos.BotID,
		BrokerAccountID: account.ID,
		PositionID:      &posID,
		Symbol:          pos.Symbol,
		Side:            side,
		Qty:             pos.Qty.Abs(),
		Close:           true,
		Status:          models.OrderStatusNew,
		FilledQty:       decimal.Zero,
	}
	stored, fresh, err := o.createCloseOrder(ctx, CloseOrderID(pos.ID, account.ID, pos.Symbol), order)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return stored, nil
	}
	if reason != "" && pos.CloseReason != reason {
		pos.CloseReason = reason
		if err := o.Repo.SavePosition(ctx, pos); err != nil {
			return nil, err
		}
	}
	return o.dispatch(ctx, stored, account, cfg)
}

// createCloseOrder inserts order under base id, or a retry id when earlier attempts ended in
// error or canceled. fresh is false when a live close already exists.
func (o *Orchestrator) createCloseOrder(ctx context.Context, base string, order *models.Order) (*models.Order, bool, error) {
	for n := 0; n <= maxCloseRetries; n++ {
		order.ClientOrderID = retryID(base, n)
		stored, created, err := o.Repo.CreateOrderIfAbsent(ctx, order)
		if err != nil {
			return nil, false, err
		}
		if created {
			return stored, true, nil
		}
		switch stored.Status {
		case models.OrderStatusError, models.OrderStatusCanceled:
			continue
		case models.OrderStatusFilled:
			// the earlier close filled; a fresh one is only needed while the position is still open
			continue
		case models.OrderStatusNew:
			return stored, true, nil
		default:
			return stored, false, nil
		}
	}
	return nil, false, fmt.Errorf("close order %s: retry limit reached", base)
}
