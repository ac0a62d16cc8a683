package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	ActionOpen  = "open"
	ActionFlip  = "flip"
	ActionClose = "close"
	ActionSkip  = "skip"
)

// DecisionParams carries what the orchestrator needs to act on a decision.
type DecisionParams struct {
	Direction     string           `json:"direction,omitempty"`
	Hedge         bool             `json:"hedge,omitempty"`
	Scalp         bool             `json:"scalp,omitempty"`
	QtyMultiplier *decimal.Decimal `json:"qty_multiplier,omitempty"`
	SLOffset      *decimal.Decimal `json:"sl_offset,omitempty"`
	TPOffset      *decimal.Decimal `json:"tp_offset,omitempty"`
	PositionID    uint64           `json:"position_id,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	ATR           *decimal.Decimal `json:"atr,omitempty"`
	SL            *decimal.Decimal `json:"sl,omitempty"`
	TP            *decimal.Decimal `json:"tp,omitempty"`
}

// Decision is the append-only audit record of one signal evaluation for one bot.
type Decision struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	BotID    uint64 `gorm:"not null;uniqueIndex:idx_decision_bot_signal;index:idx_decision_bot_time"`
	SignalID uint64 `gorm:"not null;uniqueIndex:idx_decision_bot_signal"`
	Symbol   string `gorm:"type:varchar(32);not null;index"`

	Action string                              `gorm:"type:varchar(16);not null;index"`
	Reason string                              `gorm:"type:varchar(255)"`
	Score  float64                             `gorm:"not null;default:0"`
	Params datatypes.JSONType[DecisionParams] `gorm:"type:jsonb"`

	DecidedAt time.Time `gorm:"type:timestamptz;not null;index:idx_decision_bot_time"`
}

func (Decision) TableName() string {
	return "decisions"
}
