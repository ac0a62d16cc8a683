package assets

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	UnitPrice  = "price"
	UnitPoints = "points"
	UnitPips   = "pips"
)

var defaultPip = decimal.RequireFromString("0.0001")

// LotConstraints are zero when not configured.
type LotConstraints struct {
	MinLot  decimal.Decimal
	MaxLot  decimal.Decimal
	LotStep decimal.Decimal
}

type Constraints struct {
	Symbol         string
	Category       string
	Lot            LotConstraints
	RecommendedQty decimal.Decimal
	Point          decimal.Decimal
	MinNotional    decimal.Decimal
	MaxSpread      decimal.Decimal
}

// PipSize is 10 points on fractional-point instruments, else one point.
func (c Constraints) PipSize() decimal.Decimal {
	return pipSize(c.Point)
}

func pipSize(point decimal.Decimal) decimal.Decimal {
	if !point.IsPositive() {
		return defaultPip
	}
	if point.LessThan(decimal.NewFromInt(1)) {
		return point.Mul(decimal.NewFromInt(10))
	}
	return point
}

// SnapQuantity floors q to the lot step and clamps it to the max lot. It never rounds up;
// callers must reject results below the min lot.
func SnapQuantity(q decimal.Decimal, lot LotConstraints) decimal.Decimal {
	snapped := q
	if lot.LotStep.IsPositive() {
		snapped = q.Div(lot.LotStep).Floor().Mul(lot.LotStep)
	}
	if lot.MaxLot.IsPositive() && snapped.GreaterThan(lot.MaxLot) {
		snapped = lot.MaxLot
	}
	return snapped
}

// DistanceToPrice converts a distance in unit into a price delta. Unknown units pass through.
func DistanceToPrice(v decimal.Decimal, unit string, point decimal.Decimal) decimal.Decimal {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case UnitPrice:
		return v
	case UnitPoints, "":
		if !point.IsPositive() {
			return v
		}
		return v.Mul(point)
	case UnitPips:
		return v.Mul(pipSize(point))
	}
	return v
}

var (
	minStopMetals = decimal.RequireFromString("0.01")
	minStopForex  = decimal.RequireFromString("0.0005")
	minStopOther  = decimal.RequireFromString("0.0001")
)

// MinStopDistance is the smallest SL/TP distance accepted for symbol.
func MinStopDistance(symbol string) decimal.Decimal {
	s := CanonicalSymbol(symbol)
	switch {
	case strings.HasPrefix(s, "XAU"):
		return minStopMetals
	case IsForexPair(s):
		return minStopForex
	}
	return minStopOther
}
