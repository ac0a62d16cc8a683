package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	BotStatusActive  = "active"
	BotStatusPaused  = "paused"
	BotStatusStopped = "stopped"

	EngineModeExternal = "external"
	EngineModeHarami   = "harami"
	EngineModeScalper  = "scalper"
)

// Bot owns one asset on one broker account and carries its own guardrail overrides.
// CurrentLossStreak and PausedUntil are written only by the risk guard.
type Bot struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(100);not null"`

	Status     string `gorm:"type:varchar(16);not null;default:'active';index"`
	EngineMode string `gorm:"type:varchar(16);not null;default:'external';index"`
	AutoTrade  bool   `gorm:"not null;default:false"`

	AssetID          *uint64 `gorm:"index"`
	BrokerAccountID  *uint64 `gorm:"index"`
	TradingProfileID *uint64 `gorm:"index"`

	DefaultQty        decimal.Decimal             `gorm:"type:numeric(20,8);not null;default:0"`
	DefaultTimeframe  string                      `gorm:"type:varchar(10);not null;default:'5m'"`
	AllowedSymbols    datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	AllowedTimeframes datatypes.JSONSlice[string] `gorm:"type:jsonb"`

	// Per-bot decision overrides. Nil means inherit.
	DecisionMinScore  *float64 `gorm:"type:numeric(6,4)"`
	DecisionFlipScore *float64 `gorm:"type:numeric(6,4)"`
	AllowHedging      *bool
	FlipCooldownMin   *int
	MaxFlipsPerDay    *int
	OrderCooldownSec  *int

	RiskMaxPositionsPerSymbol  int `gorm:"not null;default:1"`
	RiskMaxConcurrentPositions int `gorm:"not null;default:0"`
	MaxTradesPerDay            int `gorm:"not null;default:0"`
	TradeIntervalMinutes       int `gorm:"not null;default:0"`

	// TradingScheduleEnabled nil means enforced.
	TradingScheduleEnabled *bool                       `gorm:"not null;default:true"`
	AllowedTradingDays     datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	TradingWindowStart     string                      `gorm:"type:varchar(5)"`
	TradingWindowEnd       string                      `gorm:"type:varchar(5)"`

	AllowOppositeScalp bool `gorm:"not null;default:false"`

	CurrentLossStreak          int        `gorm:"not null;default:0"`
	PausedUntil                *time.Time `gorm:"type:timestamptz"`
	LossStreakAutopauseEnabled bool       `gorm:"not null;default:false"`
	MaxLossStreakBeforePause   int        `gorm:"not null;default:0"`
	LossStreakCooldownMin      int        `gorm:"not null;default:0"`

	SoftDrawdownLimitPct decimal.Decimal `gorm:"type:numeric(6,2);not null;default:0"`
	HardDrawdownLimitPct decimal.Decimal `gorm:"type:numeric(6,2);not null;default:0"`
	SoftSizeMultiplier   decimal.Decimal `gorm:"type:numeric(8,4);not null;default:1"`
	HardSizeMultiplier   decimal.Decimal `gorm:"type:numeric(8,4);not null;default:1"`

	AllocationStartPnL  decimal.Decimal `gorm:"column:allocation_start_pnl;type:numeric(20,8);not null;default:0"`
	AllocationStartedAt *time.Time      `gorm:"type:timestamptz"`

	KillSwitchEnabled          bool            `gorm:"not null;default:false"`
	KillSwitchMaxUnrealizedPct decimal.Decimal `gorm:"type:numeric(8,4);not null;default:0"`

	ScalperParams datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Bot) TableName() string {
	return "bots"
}

// IsPausedAt reports whether the bot is held by a pause at t. A paused status without
// an expiry needs a manual resume.
// ScheduleEnforced reports whether new trades are limited to the trading days and window.
func (b Bot) ScheduleEnforced() bool {
	return b.TradingScheduleEnabled == nil || *b.TradingScheduleEnabled
}

func (b Bot) IsPausedAt(t time.Time) bool {
	if b.PausedUntil != nil && t.Before(*b.PausedUntil) {
		return true
	}
	return b.Status == BotStatusPaused && b.PausedUntil == nil
}

// AcceptsTimeframe reports whether the bot trades timeframe. An empty allow list accepts all.
func (b Bot) AcceptsTimeframe(timeframe string) bool {
	if len(b.AllowedTimeframes) == 0 {
		return true
	}
	for _, tf := range b.AllowedTimeframes {
		if strings.EqualFold(tf, timeframe) {
			return true
		}
	}
	return false
}
