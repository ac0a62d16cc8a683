package service

import (
	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

const (
	CloseReasonEarlyExit  = "early_exit"
	CloseReasonKillSwitch = "kill_switch"
	CloseReasonStopLoss   = "stop_loss"
	CloseReasonTakeProfit = "take_profit"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// UnrealizedPnL is positive when the position is in profit at mkt. Qty is signed.
func UnrealizedPnL(pos models.Position, mkt decimal.Decimal) decimal.Decimal {
	return mkt.Sub(pos.AvgPrice).Mul(pos.Qty)
}

// lossRatio is loss / notional at mkt; negative when in profit. ok is false for a flat book.
func lossRatio(pos models.Position, mkt decimal.Decimal) (decimal.Decimal, bool) {
	notional := pos.Qty.Abs().Mul(mkt)
	if !notional.IsPositive() {
		return decimal.Zero, false
	}
	return UnrealizedPnL(pos, mkt).Neg().Div(notional), true
}

// ShouldEarlyExit reports a loss of at least maxPct of notional.
func ShouldEarlyExit(pos models.Position, mkt, maxPct decimal.Decimal) bool {
	if !maxPct.IsPositive() {
		return false
	}
	ratio, ok := lossRatio(pos, mkt)
	return ok && ratio.GreaterThanOrEqual(maxPct)
}

// ShouldKillSwitch fires on a losing position once the loss reaches twice pct, or at any loss
// when the candle engine points the other way.
func ShouldKillSwitch(pos models.Position, mkt, pct decimal.Decimal, engineOpposite bool) bool {
	ratio, ok := lossRatio(pos, mkt)
	if !ok || !ratio.IsPositive() {
		return false
	}
	if engineOpposite {
		return true
	}
	return pct.IsPositive() && ratio.GreaterThanOrEqual(pct.Mul(two))
}

// normalizePct accepts a fraction (0.01) or a percentage (1 meaning 1%).
func normalizePct(v decimal.Decimal) decimal.Decimal {
	if v.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return v.Div(hundred)
	}
	return v
}

// ApplyTrailing ratchets the stop behind price once profit reaches trigger. A stop only ever
// tightens. Reports whether pos.SL changed.
func ApplyTrailing(pos *models.Position, mkt, trigger, distance decimal.Decimal) bool {
	if pos == nil || !distance.IsPositive() {
		return false
	}
	switch pos.Qty.Sign() {
	case 1:
		if mkt.Sub(pos.AvgPrice).LessThan(trigger) {
			return false
		}
		next := mkt.Sub(distance)
		if pos.SL == nil || next.GreaterThan(*pos.SL) {
			pos.SL = &next
			return true
		}
	case -1:
		if pos.AvgPrice.Sub(mkt).LessThan(trigger) {
			return false
		}
		next := mkt.Add(distance)
		if pos.SL == nil || next.LessThan(*pos.SL) {
			pos.SL = &next
			return true
		}
	}
	return false
}

// ProtectiveHit reports a stop or target crossed at mkt. Used for venues that do not hold
// protective orders themselves.
func ProtectiveHit(pos models.Position, mkt decimal.Decimal) string {
	switch pos.Qty.Sign() {
	case 1:
		if pos.SL != nil && mkt.LessThanOrEqual(*pos.SL) {
			return CloseReasonStopLoss
		}
		if pos.TP != nil && mkt.GreaterThanOrEqual(*pos.TP) {
			return CloseReasonTakeProfit
		}
	case -1:
		if pos.SL != nil && mkt.GreaterThanOrEqual(*pos.SL) {
			return CloseReasonStopLoss
		}
		if pos.TP != nil && mkt.LessThanOrEqual(*pos.TP) {
			return CloseReasonTakeProfit
		}
	}
	return ""
}
