// Package sizing turns a decision into an order quantity that satisfies asset and global limits.
package sizing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/assets"
)

var ErrRejected = errors.New("order rejected by sizing")

const (
	ReasonBelowMinLot        = "below_min_lot"
	ReasonMaxLotBelowMin     = "max_lot_below_min"
	ReasonBelowMinNotional   = "below_min_notional"
	ReasonExceedsMaxOrderLot = "exceeds_max_order_lot"
	ReasonExceedsMaxNotional = "exceeds_max_order_notional"
	ReasonInvalidQty         = "invalid_qty"
)

// Rejection is returned when no compliant quantity exists; it wraps ErrRejected.
type Rejection struct {
	Reason string
	Qty    decimal.Decimal
	Limit  decimal.Decimal
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("sizing rejected: %s (qty=%s limit=%s)", r.Reason, r.Qty.String(), r.Limit.String())
}

func (r *Rejection) Unwrap() error { return ErrRejected }

// RejectionReason extracts the reason from a sizing error, or "".
func RejectionReason(err error) string {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}

type Input struct {
	DefaultQty       decimal.Decimal // bot default_qty
	BotMinDefaultQty decimal.Decimal
	RiskMultiplier   decimal.Decimal // zero means 1
	QtyMultiplier    *decimal.Decimal
	Constraints      assets.Constraints
	Price            decimal.Decimal // zero skips notional checks
	MaxOrderLot      decimal.Decimal // zero disables
	MaxOrderNotional decimal.Decimal // zero disables
}

type Result struct {
	Qty       decimal.Decimal
	Requested decimal.Decimal
	Notional  decimal.Decimal
}

// Size computes base_qty × risk multiplier × decision multiplier, floors it to the lot step and
// validates it against the lot bounds, min notional and the global ceilings. Quantities are
// never raised to reach a minimum.
func Size(in Input) (Result, error) {
	base := in.DefaultQty
	if !base.IsPositive() {
		base = in.Constraints.RecommendedQty
	}
	if in.BotMinDefaultQty.IsPositive() && base.LessThan(in.BotMinDefaultQty) {
		base = in.BotMinDefaultQty
	}
	if !base.IsPositive() {
		return Result{}, &Rejection{Reason: ReasonInvalidQty, Qty: base}
	}
	qty := base
	if in.RiskMultiplier.IsPositive() {
		qty = qty.Mul(in.RiskMultiplier)
	}
	if in.QtyMultiplier != nil && in.QtyMultiplier.IsPositive() {
		qty = qty.Mul(*in.QtyMultiplier)
	}
	res := Result{Requested: qty}

	lot := in.Constraints.Lot
	if lot.MaxLot.IsPositive() && lot.MinLot.IsPositive() && lot.MaxLot.LessThan(lot.MinLot) && qty.GreaterThan(lot.MaxLot) {
		return res, &Rejection{Reason: ReasonMaxLotBelowMin, Qty: qty, Limit: lot.MaxLot}
	}
	snapped := assets.SnapQuantity(qty, lot)
	if !snapped.IsPositive() {
		if lot.MinLot.IsPositive() {
			return res, &Rejection{Reason: ReasonBelowMinLot, Qty: snapped, Limit: lot.MinLot}
		}
		return res, &Rejection{Reason: ReasonInvalidQty, Qty: snapped}
	}
	if lot.MinLot.IsPositive() && snapped.LessThan(lot.MinLot) {
		return res, &Rejection{Reason: ReasonBelowMinLot, Qty: snapped, Limit: lot.MinLot}
	}

	// The global lot ceiling never drops below the broker minimum.
	maxOrderLot := in.MaxOrderLot
	if maxOrderLot.IsPositive() && lot.MinLot.GreaterThan(maxOrderLot) {
		maxOrderLot = lot.MinLot
	}
	if maxOrderLot.IsPositive() && snapped.GreaterThan(maxOrderLot) {
		return res, &Rejection{Reason: ReasonExceedsMaxOrderLot, Qty: snapped, Limit: maxOrderLot}
	}

	res.Qty = snapped
	if in.Price.IsPositive() {
		res.Notional = in.Price.Mul(snapped)
		if in.Constraints.MinNotional.IsPositive() && res.Notional.LessThan(in.Constraints.MinNotional) {
			return res, &Rejection{Reason: ReasonBelowMinNotional, Qty: snapped, Limit: in.Constraints.MinNotional}
		}
		if in.MaxOrderNotional.IsPositive() && res.Notional.GreaterThan(in.MaxOrderNotional) {
			return res, &Rejection{Reason: ReasonExceedsMaxNotional, Qty: snapped, Limit: in.MaxOrderNotional}
		}
	}
	return res, nil
}
