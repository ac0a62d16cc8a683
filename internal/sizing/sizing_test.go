package sizing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/assets"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func fxConstraints() assets.Constraints {
	return assets.Constraints{
		Symbol:         "EURUSD",
		Lot:            assets.LotConstraints{MinLot: d("0.01"), MaxLot: d("0.5"), LotStep: d("0.01")},
		RecommendedQty: d("0.1"),
		Point:          d("0.00001"),
	}
}

func TestSizeFloorsToStep(t *testing.T) {
	res, err := Size(Input{DefaultQty: d("0.078"), Constraints: fxConstraints()})
	require.NoError(t, err)
	assert.True(t, res.Qty.Equal(d("0.07")), "qty=%s", res.Qty)
	assert.True(t, res.Requested.Equal(d("0.078")))
}

func TestSizeClampsToMaxLot(t *testing.T) {
	res, err := Size(Input{DefaultQty: d("0.83"), Constraints: fxConstraints()})
	require.NoError(t, err)
	assert.True(t, res.Qty.Equal(d("0.5")), "qty=%s", res.Qty)
}

func TestSizeAppliesMultipliers(t *testing.T) {
	scalp := d("0.3")
	res, err := Size(Input{
		DefaultQty:     d("0.2"),
		RiskMultiplier: d("0.5"),
		QtyMultiplier:  &scalp,
		Constraints:    fxConstraints(),
	})
	require.NoError(t, err)
	assert.True(t, res.Qty.Equal(d("0.03")), "qty=%s", res.Qty)
}

func TestSizeFallsBackToRecommendedAndBotMin(t *testing.T) {
	res, err := Size(Input{Constraints: fxConstraints()})
	require.NoError(t, err)
	assert.True(t, res.Qty.Equal(d("0.1")))

	res, err = Size(Input{DefaultQty: d("0.01"), BotMinDefaultQty: d("0.02"), Constraints: fxConstraints()})
	require.NoError(t, err)
	assert.True(t, res.Qty.Equal(d("0.02")))
}

func TestSizeRejections(t *testing.T) {
	cases := []struct {
		name   string
		in     Input
		reason string
	}{
		{
			name:   "below min lot after multiplier",
			in:     Input{DefaultQty: d("0.02"), RiskMultiplier: d("0.25"), Constraints: fxConstraints()},
			reason: ReasonBelowMinLot,
		},
		{
			name: "max lot below min",
			in: Input{DefaultQty: d("1"), Constraints: assets.Constraints{
				Lot: assets.LotConstraints{MinLot: d("0.5"), MaxLot: d("0.1"), LotStep: d("0.1")},
			}},
			reason: ReasonMaxLotBelowMin,
		},
		{
			name: "below min notional",
			in: Input{DefaultQty: d("0.01"), Price: d("1.1"), Constraints: assets.Constraints{
				Lot: assets.LotConstraints{MinLot: d("0.01"), LotStep: d("0.01")}, MinNotional: d("1"),
			}},
			reason: ReasonBelowMinNotional,
		},
		{
			name:   "global lot ceiling",
			in:     Input{DefaultQty: d("0.1"), MaxOrderLot: d("0.05"), Constraints: fxConstraints()},
			reason: ReasonExceedsMaxOrderLot,
		},
		{
			name:   "global notional ceiling",
			in:     Input{DefaultQty: d("0.05"), Price: d("2000000"), MaxOrderNotional: d("5000"), Constraints: fxConstraints()},
			reason: ReasonExceedsMaxNotional,
		},
		{
			name:   "nothing to size",
			in:     Input{Constraints: assets.Constraints{}},
			reason: ReasonInvalidQty,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Size(tc.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRejected))
			assert.Equal(t, tc.reason, RejectionReason(err))
		})
	}
}

func TestSizeGlobalCeilingRespectsBrokerMin(t *testing.T) {
	c := fxConstraints()
	c.Lot.MinLot = d("0.1")
	res, err := Size(Input{DefaultQty: d("0.1"), MaxOrderLot: d("0.05"), Constraints: c})
	require.NoError(t, err)
	assert.True(t, res.Qty.Equal(d("0.1")))
}

func TestSizeNeverExceedsRequest(t *testing.T) {
	for _, raw := range []string{"0.011", "0.0199", "0.123456", "0.49999", "3"} {
		res, err := Size(Input{DefaultQty: d(raw), Constraints: fxConstraints()})
		require.NoError(t, err, raw)
		assert.True(t, res.Qty.LessThanOrEqual(d(raw)), "qty=%s in=%s", res.Qty, raw)
		again, err := Size(Input{DefaultQty: res.Qty, Constraints: fxConstraints()})
		require.NoError(t, err)
		assert.True(t, again.Qty.Equal(res.Qty), "not idempotent for %s", raw)
	}
}

func TestProtectiveLevels(t *testing.T) {
	sl, tp := ProtectiveLevels(LevelsInput{Symbol: "EURUSD", Side: models.SideBuy, Price: d("1.1")})
	require.NotNil(t, sl)
	require.NotNil(t, tp)
	assert.True(t, sl.Equal(d("1.09725")), "sl=%s", sl)
	assert.True(t, tp.Equal(d("1.10385")), "tp=%s", tp)

	sl, tp = ProtectiveLevels(LevelsInput{Symbol: "XAUUSD", Side: models.SideSell, Price: d("2000"), ATR: d("5")})
	assert.True(t, sl.Equal(d("2006")), "sl=%s", sl)
	assert.True(t, tp.Equal(d("1991")), "tp=%s", tp)

	slOff, tpOff := d("0.0003"), d("0.0005")
	sl, tp = ProtectiveLevels(LevelsInput{Symbol: "BTCUSDT", Side: models.SideBuy, Price: d("100"), SLOffset: &slOff, TPOffset: &tpOff})
	assert.True(t, sl.Equal(d("99.97")), "sl=%s", sl)
	assert.True(t, tp.Equal(d("100.05")), "tp=%s", tp)

	explicitSL, explicitTP := d("1.0999"), d("1.1001")
	sl, tp = ProtectiveLevels(LevelsInput{Symbol: "EURUSD", Side: models.SideBuy, Price: d("1.1"), SL: &explicitSL, TP: &explicitTP})
	assert.True(t, sl.Equal(d("1.09925")), "widened sl=%s", sl)
	assert.True(t, tp.Equal(d("1.10075")), "widened tp=%s", tp)

	sl, tp = ProtectiveLevels(LevelsInput{Symbol: "EURUSD", Side: models.SideBuy})
	assert.Nil(t, sl)
	assert.Nil(t, tp)
}
