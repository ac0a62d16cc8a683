package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/connector"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

const (
	atrPeriod      = 14
	trendLookback  = 20
	swingLookback  = 20
	trendUp        = "up"
	trendDown      = "down"
	trendFlat      = "flat"
	sideLow        = "low"
	sideHigh       = "high"
	proximityRange = 1.5
)

var (
	dHalf  = decimal.RequireFromString("0.5")
	dOne   = decimal.NewFromInt(1)
	dTwo   = decimal.NewFromInt(2)
	dThree = decimal.NewFromInt(3)
)

// Harami is a large impulse bar followed by an inside bar of the opposite colour, traded as a
// reversal near the recent swing extreme.
type Harami struct {
	MinScore float64
}

func (Harami) Name() string { return "harami" }

func (h Harami) Detect(candles []connector.Candle) Setup {
	out := Setup{Strategy: h.Name()}
	if len(candles) < 2 {
		out.Reason = "not_enough_candles"
		return out
	}
	c1, c2 := candles[len(candles)-2], candles[len(candles)-1]
	atr := atrLike(candles, atrPeriod)
	if !atr.IsPositive() {
		out.Reason = "atr_zero"
		return out
	}
	out.ATR = atr
	rng1 := barRange(c1)
	if rng1.LessThanOrEqual(atr.Mul(dHalf)) {
		out.Reason = "impulse_range_too_small"
		return out
	}
	if rng1.GreaterThanOrEqual(atr.Mul(dThree)) {
		out.Reason = "impulse_range_too_large"
		return out
	}
	trend := detectTrend(candles, trendLookback, atr, dOne)
	lo1, hi1 := bodyBounds(c1)
	lo2, hi2 := bodyBounds(c2)
	inside := lo2.GreaterThanOrEqual(lo1) && hi2.LessThanOrEqual(hi1)

	switch {
	case bearish(c1) && bullish(c2):
		if trend != trendDown {
			out.Reason = "no_downtrend"
			return out
		}
		if !inside {
			break
		}
		if !nearExtreme(candles, sideLow, swingLookback, atr, decimal.RequireFromString("0.75")) {
			out.Reason = "not_near_swing_low"
			return out
		}
		entry := c2.Close
		sl := decimal.Min(c1.Low, c2.Low).Sub(atr)
		risk := entry.Sub(sl)
		if !risk.IsPositive() {
			out.Reason = "invalid_risk_bull"
			return out
		}
		score := haramiScore(c1, c2, atr, trend, distanceToExtreme(candles, sideLow, swingLookback))
		if score < h.MinScore {
			out.Reason, out.Score = "harami_quality_too_low", score
			return out
		}
		return Setup{Strategy: h.Name(), Open: true, Direction: models.DirectionBuy, Entry: entry, SL: sl,
			TP: entry.Add(risk.Mul(dThree)), ATR: atr, Reason: "bullish_harami", Score: score}
	case bullish(c1) && bearish(c2):
		if trend != trendUp {
			out.Reason = "no_uptrend"
			return out
		}
		if !inside {
			break
		}
		if !nearExtreme(candles, sideHigh, swingLookback, atr, decimal.RequireFromString("0.75")) {
			out.Reason = "not_near_swing_high"
			return out
		}
		entry := c2.Close
		sl := decimal.Max(c1.High, c2.High).Add(atr)
		risk := sl.Sub(entry)
		if !risk.IsPositive() {
			out.Reason = "invalid_risk_bear"
			return out
		}
		score := haramiScore(c1, c2, atr, trend, distanceToExtreme(candles, sideHigh, swingLookback))
		if score < h.MinScore {
			out.Reason, out.Score = "harami_quality_too_low", score
			return out
		}
		return Setup{Strategy: h.Name(), Open: true, Direction: models.DirectionSell, Entry: entry, SL: sl,
			TP: entry.Sub(risk.Mul(dThree)), ATR: atr, Reason: "bearish_harami", Score: score}
	}
	out.Reason = "no_harami"
	return out
}

// Engulfing is a bar whose body swallows the previous opposite-coloured body after a trend.
type Engulfing struct{}

func (Engulfing) Name() string { return "engulfing" }

func (e Engulfing) Detect(candles []connector.Candle) Setup {
	out := Setup{Strategy: e.Name()}
	if len(candles) < 2 {
		out.Reason = "not_enough_candles"
		return out
	}
	c1, c2 := candles[len(candles)-2], candles[len(candles)-1]
	atr := atrLike(candles, atrPeriod)
	if !atr.IsPositive() {
		out.Reason = "atr_zero"
		return out
	}
	out.ATR = atr
	rng2 := barRange(c2)
	if rng2.LessThanOrEqual(atr.Mul(dHalf)) {
		out.Reason = "range_too_small"
		return out
	}
	if rng2.GreaterThanOrEqual(atr.Mul(decimal.RequireFromString("2.5"))) {
		out.Reason = "range_too_large"
		return out
	}
	trend := detectTrend(candles, trendLookback, atr, dHalf)
	buffer := atr.Mul(decimal.RequireFromString("0.25"))

	if bearish(c1) && bullish(c2) && c2.Open.LessThanOrEqual(c1.Close) && c2.Close.GreaterThanOrEqual(c1.Open) {
		if trend != trendDown {
			out.Reason = "no_downtrend"
			return out
		}
		if !nearExtreme(candles, sideLow, swingLookback, atr, dHalf) {
			out.Reason = "not_near_swing_low"
			return out
		}
		entry := c2.Close
		sl := decimal.Min(c1.Low, c2.Low).Sub(buffer)
		risk := entry.Sub(sl)
		if !risk.IsPositive() {
			out.Reason = "invalid_risk_bull"
			return out
		}
		return Setup{Strategy: e.Name(), Open: true, Direction: models.DirectionBuy, Entry: entry, SL: sl,
			TP: entry.Add(risk.Mul(dTwo)), ATR: atr, Reason: "bullish_engulfing",
			Score: engulfingScore(c1, c2, atr, trend, distanceToExtreme(candles, sideLow, swingLookback))}
	}
	if bullish(c1) && bearish(c2) && c2.Open.GreaterThanOrEqual(c1.Close) && c2.Close.LessThanOrEqual(c1.Open) {
		if trend != trendUp {
			out.Reason = "no_uptrend"
			return out
		}
		if !nearExtreme(candles, sideHigh, swingLookback, atr, dHalf) {
			out.Reason = "not_near_swing_high"
			return out
		}
		entry := c2.Close
		sl := decimal.Max(c1.High, c2.High).Add(buffer)
		risk := sl.Sub(entry)
		if !risk.IsPositive() {
			out.Reason = "invalid_risk_bear"
			return out
		}
		return Setup{Strategy: e.Name(), Open: true, Direction: models.DirectionSell, Entry: entry, SL: sl,
			TP: entry.Sub(risk.Mul(dTwo)), ATR: atr, Reason: "bearish_engulfing",
			Score: engulfingScore(c1, c2, atr, trend, distanceToExtreme(candles, sideHigh, swingLookback))}
	}
	out.Reason = "no_engulfing"
	return out
}

func bullish(c connector.Candle) bool { return c.Close.GreaterThan(c.Open) }
func bearish(c connector.Candle) bool { return c.Close.LessThan(c.Open) }

func body(c connector.Candle) decimal.Decimal     { return c.Close.Sub(c.Open).Abs() }
func barRange(c connector.Candle) decimal.Decimal { return c.High.Sub(c.Low) }

func bodyBounds(c connector.Candle) (decimal.Decimal, decimal.Decimal) {
	return decimal.Min(c.Open, c.Close), decimal.Max(c.Open, c.Close)
}

// atrLike is the mean high-low range of the last period bars, zero when there are fewer.
func atrLike(candles []connector.Candle, period int) decimal.Decimal {
	if len(candles) < period || period <= 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, c := range candles[len(candles)-period:] {
		total = total.Add(barRange(c))
	}
	return total.Div(decimal.NewFromInt(int64(period)))
}

func detectTrend(candles []connector.Candle, lookback int, atr, minChangeATR decimal.Decimal) string {
	if len(candles) < lookback+1 || !atr.IsPositive() {
		return trendFlat
	}
	window := candles[len(candles)-(lookback+1):]
	change := window[len(window)-1].Close.Sub(window[0].Close)
	threshold := atr.Mul(minChangeATR)
	switch {
	case change.GreaterThanOrEqual(threshold):
		return trendUp
	case change.LessThanOrEqual(threshold.Neg()):
		return trendDown
	}
	return trendFlat
}

func distanceToExtreme(candles []connector.Candle, side string, lookback int) decimal.Decimal {
	if len(candles) == 0 {
		return decimal.Zero
	}
	if lookback > len(candles) {
		lookback = len(candles)
	}
	window := candles[len(candles)-lookback:]
	last := window[len(window)-1]
	if side == sideLow {
		swing := window[0].Low
		for _, c := range window[1:] {
			swing = decimal.Min(swing, c.Low)
		}
		return last.Low.Sub(swing).Abs()
	}
	swing := window[0].High
	for _, c := range window[1:] {
		swing = decimal.Max(swing, c.High)
	}
	return swing.Sub(last.High).Abs()
}

func nearExtreme(candles []connector.Candle, side string, lookback int, atr, maxDistATR decimal.Decimal) bool {
	if !atr.IsPositive() {
		return false
	}
	return distanceToExtreme(candles, side, lookback).LessThanOrEqual(atr.Mul(maxDistATR))
}

func proximity(dist, atr decimal.Decimal) float64 {
	span := atr.Mul(decimal.NewFromFloat(proximityRange))
	if !span.IsPositive() {
		return 0
	}
	return clamp01(dOne.Sub(dist.Div(span)).InexactFloat64())
}

func trendBonus(trend string) float64 {
	if trend == trendUp || trend == trendDown {
		return 0.1
	}
	return 0
}

func haramiScore(c1, c2 connector.Candle, atr decimal.Decimal, trend string, dist decimal.Decimal) float64 {
	b1, b2 := body(c1), body(c2)
	if !atr.IsPositive() || !b1.IsPositive() || !b2.IsPositive() {
		return 0
	}
	size := decimal.Min(b1.Div(atr), dThree).Div(dThree).InexactFloat64()
	limit := decimal.RequireFromString("1.2")
	ratio := clamp01(decimal.Max(decimal.Zero, limit.Sub(b2.Div(b1))).Div(limit).InexactFloat64())
	return clamp01(0.4*size + 0.3*ratio + 0.3*proximity(dist, atr) + trendBonus(trend))
}

func engulfingScore(c1, c2 connector.Candle, atr decimal.Decimal, trend string, dist decimal.Decimal) float64 {
	b1, b2, rng2 := body(c1), body(c2), barRange(c2)
	if !atr.IsPositive() || !b1.IsPositive() || !b2.IsPositive() || !rng2.IsPositive() {
		return 0
	}
	rng := decimal.Min(rng2.Div(atr), dTwo).Div(dTwo).InexactFloat64()
	ratio := decimal.Min(b2.Div(b1), dThree).Div(dThree).InexactFloat64()
	return clamp01(0.4*rng + 0.3*ratio + 0.3*proximity(dist, atr) + trendBonus(trend))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
