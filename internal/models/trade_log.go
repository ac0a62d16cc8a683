package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeLog is appended on every fill; PnL is set when the fill reduces a position.
type TradeLog struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID         uint64 `gorm:"not null;index"`
	BotID           uint64 `gorm:"not null;index:idx_trade_log_bot_time"`
	BrokerAccountID uint64 `gorm:"not null;index"`

	Symbol string           `gorm:"type:varchar(32);not null"`
	Side   string           `gorm:"type:varchar(4);not null"`
	Qty    decimal.Decimal  `gorm:"type:numeric(20,8);not null"`
	Price  *decimal.Decimal `gorm:"type:numeric(20,8)"`
	PnL    *decimal.Decimal `gorm:"column:pnl;type:numeric(20,8)"`
	Status string           `gorm:"type:varchar(32);not null;default:'open'"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index:idx_trade_log_bot_time"`
}

func (TradeLog) TableName() string {
	return "trade_logs"
}
