package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/connector"
)

// Setup is what a detector found on the latest closed bars. Open is false for every skip and
// Reason then says why.
type Setup struct {
	Strategy  string
	Open      bool
	Direction string
	Entry     decimal.Decimal
	SL        decimal.Decimal
	TP        decimal.Decimal
	ATR       decimal.Decimal
	Reason    string
	Score     float64
}

// Detector inspects closed candles, oldest first.
type Detector interface {
	Name() string
	Detect(candles []connector.Candle) Setup
}

// DefaultDetectors is the candle engine used by harami and scalper bots, highest priority first.
func DefaultDetectors() []Detector {
	return []Detector{Engulfing{}, Harami{MinScore: 0.5}}
}

// Combine runs every detector and picks one opening setup. Candidates pointing in different
// directions cancel each other out; otherwise the first detector in priority order wins.
func Combine(detectors []Detector, candles []connector.Candle) Setup {
	if len(candles) == 0 {
		return Setup{Strategy: "engine", Reason: "no_candles"}
	}
	var (
		picked    *Setup
		direction string
		last      Setup
	)
	for _, d := range detectors {
		s := d.Detect(candles)
		last = s
		if !s.Open {
			continue
		}
		if direction != "" && s.Direction != direction {
			return Setup{Strategy: "engine", Reason: "conflicting_directions"}
		}
		direction = s.Direction
		if picked == nil {
			cp := s
			picked = &cp
		}
	}
	if picked != nil {
		return *picked
	}
	if len(detectors) == 1 {
		return last
	}
	return Setup{Strategy: "engine", Reason: "no_setup"}
}
