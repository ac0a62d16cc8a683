package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TradingProfile is a named, read-only risk preset selected by bots.
type TradingProfile struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Slug string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name string `gorm:"type:varchar(128);not null"`

	RiskPerTradePct        decimal.Decimal `gorm:"type:numeric(5,2);not null;default:1"`
	MaxTradesPerDay        int             `gorm:"not null;default:5"`
	MaxConcurrentPositions int             `gorm:"not null;default:3"`
	MaxDrawdownPct         decimal.Decimal `gorm:"type:numeric(5,2);not null;default:5"`
	DecisionMinScore       float64         `gorm:"type:numeric(6,4);not null;default:0.5"`
	SignalQualityThreshold float64         `gorm:"type:numeric(6,4);not null;default:0.6"`
	CooldownSeconds        int             `gorm:"not null;default:300"`

	AllowedDays  datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	TradingStart string                      `gorm:"type:varchar(5);not null;default:'06:00'"`
	TradingEnd   string                      `gorm:"type:varchar(5);not null;default:'18:00'"`

	IsDefault bool      `gorm:"not null;default:false;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TradingProfile) TableName() string {
	return "trading_profiles"
}
