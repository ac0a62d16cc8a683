package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusNew        = "new"
	OrderStatusAck        = "ack"
	OrderStatusFilled     = "filled"
	OrderStatusPartFilled = "part_filled"
	OrderStatusCanceled   = "canceled"
	OrderStatusError      = "error"

	SideBuy  = "buy"
	SideSell = "sell"
)

type Order struct {
	ID              uint64  `gorm:"primaryKey;autoIncrement"`
	BotID           uint64  `gorm:"not null;index"`
	BrokerAccountID uint64  `gorm:"not null;index"`
	DecisionID      *uint64 `gorm:"index"`
	PositionID      *uint64 `gorm:"index"`

	ClientOrderID string `gorm:"type:varchar(64);not null;uniqueIndex"`
	VenueOrderID  string `gorm:"type:varchar(100);index"`

	Symbol string           `gorm:"type:varchar(32);not null;index"`
	Side   string           `gorm:"type:varchar(4);not null"`
	Qty    decimal.Decimal  `gorm:"type:numeric(20,8);not null"`
	Price  *decimal.Decimal `gorm:"type:numeric(20,8)"`
	SL     *decimal.Decimal `gorm:"column:sl;type:numeric(20,8)"`
	TP     *decimal.Decimal `gorm:"column:tp;type:numeric(20,8)"`
	Close  bool             `gorm:"column:is_close;not null;default:false"`

	Status       string           `gorm:"type:varchar(20);not null;default:'new';index"`
	FilledQty    decimal.Decimal  `gorm:"type:numeric(20,8);not null;default:0"`
	AvgFillPrice *decimal.Decimal `gorm:"type:numeric(20,8)"`
	ErrorMsg     string           `gorm:"type:text"`

	AckedAt    *time.Time `gorm:"type:timestamptz"`
	FilledAt   *time.Time `gorm:"type:timestamptz"`
	CanceledAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (Order) TableName() string {
	return "orders"
}

func (o Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusError:
		return true
	}
	return false
}
