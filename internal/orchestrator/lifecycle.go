package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/connector"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/settings"
)

// Patch carries venue facts that accompany a status change.
type Patch struct {
	VenueOrderID string
	FilledQty    *decimal.Decimal
	AvgPrice     *decimal.Decimal
	ErrorMsg     string
}

const errorHistorySep = " | "

// UpdateStatus moves order to target if the transition is legal and the row still has the
// status the caller saw. Fill progress is booked into positions and trade logs.
// part_filled may be re-applied with a larger filled qty.
func (o *Orchestrator) UpdateStatus(ctx context.Context, order *models.Order, target string, patch Patch) (*models.Order, error) {
	if order == nil {
		return nil, ErrNotFound
	}
	from := order.Status
	sameFill := from == target && target == models.OrderStatusPartFilled
	if !CanTransition(from, target) && !sameFill {
		return order, fmt.Errorf("%w: %s -> %s (order %d)", ErrInvalidTransition, from, target, order.ID)
	}
	now := o.now()
	updates := map[string]any{"status": target}
	next := *order
	next.Status = target

	if patch.VenueOrderID != "" && patch.VenueOrderID != order.VenueOrderID {
		updates["venue_order_id"] = patch.VenueOrderID
		next.VenueOrderID = patch.VenueOrderID
	}
	switch target {
	case models.OrderStatusAck:
		if order.AckedAt == nil {
			updates["acked_at"] = now
			next.AckedAt = &now
		}
	case models.OrderStatusFilled:
		updates["filled_at"] = now
		next.FilledAt = &now
		if order.AckedAt == nil {
			updates["acked_at"] = now
			next.AckedAt = &now
		}
	case models.OrderStatusCanceled:
		updates["canceled_at"] = now
		next.CanceledAt = &now
	}
	if patch.ErrorMsg != "" {
		msg := patch.ErrorMsg
		if order.ErrorMsg != "" && !strings.Contains(order.ErrorMsg, patch.ErrorMsg) {
			msg = order.ErrorMsg + errorHistorySep + patch.ErrorMsg
		}
		updates["error_msg"] = msg
		next.ErrorMsg = msg
	}

	filled := order.FilledQty
	if patch.FilledQty != nil && patch.FilledQty.GreaterThan(filled) {
		filled = *patch.FilledQty
	}
	if target == models.OrderStatusFilled && !filled.IsPositive() {
		filled = order.Qty
	}
	if filled.GreaterThan(order.Qty) {
		filled = order.Qty
	}
	fillPrice := patch.AvgPrice
	if fillPrice == nil {
		fillPrice = order.AvgFillPrice
	}
	if fillPrice == nil {
		fillPrice = order.Price
	}
	delta := filled.Sub(order.FilledQty)
	if delta.IsPositive() {
		updates["filled_qty"] = filled
		next.FilledQty = filled
		if fillPrice != nil {
			updates["avg_fill_price"] = *fillPrice
			p := *fillPrice
			next.AvgFillPrice = &p
		}
	}

	if err := o.Repo.UpdateOrder(ctx, order.ID, from, updates); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			current, _ := o.Repo.GetOrderByID(ctx, order.ID)
			if current != nil {
				return current, err
			}
		}
		return order, err
	}
	next.UpdatedAt = now
	if o.Logger != nil {
		o.Logger.Info("order status changed",
			zap.Uint64("order_id", order.ID),
			zap.Uint64("bot_id", order.BotID),
			zap.String("from", from),
			zap.String("to", target),
			zap.String("filled_qty", next.FilledQty.String()),
		)
	}

	if delta.IsPositive() {
		if fillPrice == nil || !fillPrice.IsPositive() {
			if o.Logger != nil {
				o.Logger.Warn("fill without price; position not booked", zap.Uint64("order_id", order.ID))
			}
			return &next, nil
		}
		posID, err := o.bookFill(ctx, &next, delta, *fillPrice)
		if err != nil {
			return &next, fmt.Errorf("book fill for order %d: %w", order.ID, err)
		}
		if posID != 0 && (next.PositionID == nil || *next.PositionID != posID) {
			if err := o.Repo.UpdateOrder(ctx, order.ID, target, map[string]any{"position_id": posID}); err == nil {
				next.PositionID = &posID
			}
		}
	}
	return &next, nil
}

// ApplyReport reconciles a venue report into the local order. Reports that repeat the
// current state are ignored; the venue is authoritative for fills and cancellations.
func (o *Orchestrator) ApplyReport(ctx context.Context, order *models.Order, report *connector.Report) (*models.Order, error) {
	if order == nil || report == nil {
		return order, nil
	}
	target := report.Status
	if target == "" || order.IsTerminal() {
		return order, nil
	}
	if order.Status == models.OrderStatusPartFilled && target == models.OrderStatusAck {
		return order, nil
	}
	patch := Patch{VenueOrderID: report.VenueOrderID, AvgPrice: report.AvgPrice, ErrorMsg: report.Message}
	if report.FilledQty.IsPositive() {
		q := report.FilledQty
		patch.FilledQty = &q
	}
	if target == models.OrderStatusError && patch.ErrorMsg == "" {
		patch.ErrorMsg = "venue rejected order"
	}
	if target != models.OrderStatusError && target != models.OrderStatusCanceled {
		// informational messages (e.g. a failed protective stop) do not belong in error history
		if report.Message != "" && o.Logger != nil {
			o.Logger.Warn("venue report note", zap.Uint64("order_id", order.ID), zap.String("message", report.Message))
		}
		patch.ErrorMsg = ""
	}

	if target == order.Status {
		if target != models.OrderStatusPartFilled || patch.FilledQty == nil || !patch.FilledQty.GreaterThan(order.FilledQty) {
			return order, nil
		}
	}
	// a fill reported against a new order still passes through the new->filled edge;
	// a partial fill on a new order is recorded as ack first.
	if order.Status == models.OrderStatusNew && target == models.OrderStatusPartFilled {
		acked, err := o.UpdateStatus(ctx, order, models.OrderStatusAck, Patch{VenueOrderID: report.VenueOrderID})
		if err != nil {
			return acked, err
		}
		order = acked
	}
	// canceled after a partial fill still books the partial quantity
	if target == models.OrderStatusCanceled && patch.FilledQty != nil && patch.FilledQty.GreaterThan(order.FilledQty) &&
		order.Status == models.OrderStatusAck {
		part, err := o.UpdateStatus(ctx, order, models.OrderStatusPartFilled, Patch{FilledQty: patch.FilledQty, AvgPrice: patch.AvgPrice})
		if err != nil {
			return part, err
		}
		order = part
		patch.FilledQty = nil
	}
	return o.UpdateStatus(ctx, order, target, patch)
}

// CancelOrder is the operator cancel: the venue is asked first, then the row is closed out.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID uint64) (*models.Order, error) {
	order, err := o.Repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if order.IsTerminal() {
		return order, fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, order.ID, order.Status)
	}
	account, err := o.Repo.GetBrokerAccountByID(ctx, order.BrokerAccountID)
	if err != nil {
		return nil, err
	}
	msg := "canceled by operator"
	if account != nil {
		cfg, err := settings.Load(ctx, o.Repo, nil)
		if err != nil {
			return order, fmt.Errorf("load settings: %w", err)
		}
		cctx, cancel := context.WithTimeout(ctx, ackTimeout(cfg))
		report, err := o.connectorFor(account).CancelOrder(cctx, order)
		cancel()
		switch {
		case err == nil && report != nil && report.Status == models.OrderStatusFilled:
			return o.ApplyReport(ctx, order, report)
		case err == nil:
		case errors.Is(err, connector.ErrOrderNotFound), errors.Is(err, connector.ErrNotConfigured):
			msg += "; venue: " + err.Error()
		default:
			return order, fmt.Errorf("venue cancel: %w", err)
		}
	}
	return o.UpdateStatus(ctx, order, models.OrderStatusCanceled, Patch{ErrorMsg: msg})
}
