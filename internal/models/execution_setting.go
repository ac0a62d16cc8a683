package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const ExecutionSettingDefaultKey = "default"

// ExecutionSetting holds the global runtime knobs. Zero values fall through to compiled defaults.
type ExecutionSetting struct {
	ID  uint64 `gorm:"primaryKey;autoIncrement"`
	Key string `gorm:"type:varchar(32);not null;uniqueIndex"`

	DecisionMinScore   *float64 `gorm:"type:numeric(6,4)"`
	DecisionFlipScore  *float64 `gorm:"type:numeric(6,4)"`
	AllowHedging       *bool
	FlipCooldownMin    *int
	MaxFlipsPerDay     *int
	OrderCooldownSec   *int
	OrderAckTimeoutSec *int
	ScalpSLOffset      *decimal.Decimal `gorm:"column:scalp_sl_offset;type:numeric(12,6)"`
	ScalpTPOffset      *decimal.Decimal `gorm:"column:scalp_tp_offset;type:numeric(12,6)"`
	ScalpQtyMultiplier *decimal.Decimal `gorm:"type:numeric(8,4)"`
	EarlyExitMaxPct    *decimal.Decimal `gorm:"column:early_exit_max_unrealized_pct;type:numeric(8,4)"`
	TrailingTrigger    *decimal.Decimal `gorm:"type:numeric(12,6)"`
	TrailingDistance   *decimal.Decimal `gorm:"type:numeric(12,6)"`
	PaperStartBalance  *decimal.Decimal `gorm:"type:numeric(20,2)"`
	MaxOrderLot        *decimal.Decimal `gorm:"type:numeric(20,8)"`
	MaxOrderNotional   *decimal.Decimal `gorm:"type:numeric(20,2)"`
	BotMinDefaultQty   *decimal.Decimal `gorm:"type:numeric(20,8)"`

	MaxLossStreakBeforePause *int
	LossStreakCooldownMin    *int
	SoftDrawdownLimitPct     *decimal.Decimal `gorm:"type:numeric(6,2)"`
	HardDrawdownLimitPct     *decimal.Decimal `gorm:"type:numeric(6,2)"`
	SoftSizeMultiplier       *decimal.Decimal `gorm:"type:numeric(8,4)"`
	HardSizeMultiplier       *decimal.Decimal `gorm:"type:numeric(8,4)"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (ExecutionSetting) TableName() string {
	return "execution_settings"
}
