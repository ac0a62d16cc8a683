package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Position qty is signed: positive long, negative short.
type Position struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	BrokerAccountID uint64 `gorm:"not null;index:idx_position_account_symbol"`
	BotID           uint64 `gorm:"not null;index"`
	Symbol          string `gorm:"type:varchar(32);not null;index:idx_position_account_symbol"`

	Qty      decimal.Decimal  `gorm:"type:numeric(20,8);not null;default:0"`
	AvgPrice decimal.Decimal  `gorm:"type:numeric(20,8);not null;default:0"`
	SL       *decimal.Decimal `gorm:"column:sl;type:numeric(20,8)"`
	TP       *decimal.Decimal `gorm:"column:tp;type:numeric(20,8)"`
	Scalp    bool             `gorm:"not null;default:false"`

	Status        string          `gorm:"type:varchar(12);not null;default:'open';index"`
	UnrealizedPnL decimal.Decimal `gorm:"column:unrealized_pnl;type:numeric(20,8);not null;default:0"`
	RealizedPnL   decimal.Decimal `gorm:"column:realized_pnl;type:numeric(20,8);not null;default:0"`
	CloseReason   string          `gorm:"type:varchar(32)"`

	OpenedAt time.Time  `gorm:"type:timestamptz;not null"`
	ClosedAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Position) TableName() string {
	return "positions"
}

// Direction returns buy for long, sell for short and "" when flat.
func (p Position) Direction() string {
	switch p.Qty.Sign() {
	case 1:
		return DirectionBuy
	case -1:
		return DirectionSell
	}
	return ""
}
