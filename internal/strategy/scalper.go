package strategy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/settings"
)

const (
	defaultScalperTimeframe = "1m"
	defaultScalperMinScore  = 0.55
	SessionAll              = "all"
	SessionClosed           = "closed"
)

// SessionWindow is a UTC clock range. End before Start wraps past midnight.
type SessionWindow struct {
	Label    string `json:"label"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Disabled bool   `json:"disabled,omitempty"`
}

func (w SessionWindow) contains(t time.Time) bool {
	if w.Disabled {
		return false
	}
	start, ok1 := settings.ParseClock(w.Start)
	end, ok2 := settings.ParseClock(w.End)
	if !ok1 || !ok2 {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	if start <= end {
		return m >= start && m <= end
	}
	return m >= start || m <= end
}

// ScalperParams is the bot's scalper_params column.
type ScalperParams struct {
	Timeframe string          `json:"timeframe"`
	MinScore  float64         `json:"min_score"`
	Sessions  []SessionWindow `json:"sessions"`
}

func ParseScalperParams(raw datatypes.JSON) (ScalperParams, error) {
	p := ScalperParams{Timeframe: defaultScalperTimeframe, MinScore: defaultScalperMinScore}
	if len(raw) == 0 || strings.TrimSpace(string(raw)) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("scalper params: %w", err)
	}
	if strings.TrimSpace(p.Timeframe) == "" {
		p.Timeframe = defaultScalperTimeframe
	}
	if p.MinScore <= 0 {
		p.MinScore = defaultScalperMinScore
	}
	return p, nil
}

// Session names the open trading session at t. With no sessions configured the market is
// always open.
func (p ScalperParams) Session(t time.Time) (string, bool) {
	if len(p.Sessions) == 0 {
		return SessionAll, true
	}
	t = t.UTC()
	for _, w := range p.Sessions {
		if w.contains(t) {
			label := strings.TrimSpace(w.Label)
			if label == "" {
				label = "session"
			}
			return label, true
		}
	}
	return SessionClosed, false
}
