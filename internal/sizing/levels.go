package sizing

import (
	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/assets"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

var (
	atrSLFactor   = decimal.RequireFromString("1.2")
	atrTPFactor   = decimal.RequireFromString("1.8")
	pctSLFallback = decimal.RequireFromString("0.0025")
	pctTPFallback = decimal.RequireFromString("0.0035")
	minStopBuffer = decimal.RequireFromString("1.5")
)

// LevelsInput describes what is known when protective levels are built.
type LevelsInput struct {
	Symbol   string
	Side     string
	Price    decimal.Decimal // reference entry price; zero means unknown
	ATR      decimal.Decimal
	SL       *decimal.Decimal // explicit levels win
	TP       *decimal.Decimal
	SLOffset *decimal.Decimal // scalp offsets, as price fractions
	TPOffset *decimal.Decimal
}

// ProtectiveLevels fills SL/TP from explicit values, scalp offsets, ATR, then a percent of price,
// and widens both to the symbol minimum when they sit too close together.
func ProtectiveLevels(in LevelsInput) (sl, tp *decimal.Decimal) {
	sl, tp = in.SL, in.TP
	px := in.Price
	if !px.IsPositive() {
		return sl, tp
	}
	buy := in.Side == models.SideBuy
	away := func(offset decimal.Decimal, adverse bool) *decimal.Decimal {
		var v decimal.Decimal
		if buy == adverse {
			v = px.Sub(offset)
		} else {
			v = px.Add(offset)
		}
		return &v
	}
	if sl == nil {
		switch {
		case in.SLOffset != nil && in.SLOffset.IsPositive():
			sl = away(px.Mul(*in.SLOffset), true)
		case in.ATR.IsPositive():
			sl = away(in.ATR.Mul(atrSLFactor), true)
		default:
			sl = away(px.Mul(pctSLFallback), true)
		}
	}
	if tp == nil {
		switch {
		case in.TPOffset != nil && in.TPOffset.IsPositive():
			tp = away(px.Mul(*in.TPOffset), false)
		case in.ATR.IsPositive():
			tp = away(in.ATR.Mul(atrTPFactor), false)
		default:
			tp = away(px.Mul(pctTPFallback), false)
		}
	}
	minDist := assets.MinStopDistance(in.Symbol)
	if sl.Sub(*tp).Abs().LessThan(minDist) {
		widened := minDist.Mul(minStopBuffer)
		sl = away(widened, true)
		tp = away(widened, false)
	}
	return sl, tp
}
