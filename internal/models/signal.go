package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	DirectionBuy   = "buy"
	DirectionSell  = "sell"
	DirectionClose = "close"
)

// Signal is an external or engine-produced trade idea. Rows are never updated.
type Signal struct {
	ID    uint64  `gorm:"primaryKey;autoIncrement"`
	BotID *uint64 `gorm:"index"`

	Source    string  `gorm:"type:varchar(32);not null;index"`
	Symbol    string  `gorm:"type:varchar(32);not null;index"`
	Timeframe string  `gorm:"type:varchar(10);not null;default:'5m'"`
	Direction string  `gorm:"type:varchar(5);not null"`
	Score     float64 `gorm:"not null;default:0"`
	DedupeKey string  `gorm:"type:varchar(128);not null;uniqueIndex"`

	Payload       datatypes.JSON  `gorm:"type:jsonb"`
	TrailTrigger  decimal.Decimal `gorm:"type:numeric(12,6);not null;default:0"`
	TrailDistance decimal.Decimal `gorm:"type:numeric(12,6);not null;default:0"`

	ReceivedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Signal) TableName() string {
	return "signals"
}
