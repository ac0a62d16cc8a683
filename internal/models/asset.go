package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AssetCategoryForex       = "forex"
	AssetCategoryCrypto      = "crypto"
	AssetCategoryIndices     = "indices"
	AssetCategoryCommodities = "commodities"
	AssetCategoryMetals      = "metals"
)

// Asset is per-symbol reference data used for sizing.
type Asset struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol      string `gorm:"type:varchar(32);not null;uniqueIndex"`
	DisplayName string `gorm:"type:varchar(64)"`
	Category    string `gorm:"type:varchar(32);not null;default:'forex';index"`

	MinQty         decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0.01"`
	RecommendedQty decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0.10"`
	MaxQty         decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0"`
	LotStep        decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0"`
	Point          decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	MaxSpread      decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0"`
	MinNotional    decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0"`

	IsActive bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Asset) TableName() string {
	return "assets"
}

var ErrInvalidAssetLimits = errors.New("active asset requires 0 < min_qty <= recommended_qty")

// Validate enforces the quantity invariant for active assets.
func (a Asset) Validate() error {
	if !a.IsActive {
		return nil
	}
	if !a.MinQty.IsPositive() || !a.RecommendedQty.IsPositive() || a.MinQty.GreaterThan(a.RecommendedQty) {
		return ErrInvalidAssetLimits
	}
	return nil
}
