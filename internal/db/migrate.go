package db

import (
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		// reference
		&models.Asset{},
		&models.TradingProfile{},
		&models.BrokerAccount{},
		&models.ExecutionSetting{},
		&models.FeatureSwitch{},
		// bots and pipeline
		&models.Bot{},
		&models.Signal{},
		&models.Decision{},
		&models.Order{},
		&models.Position{},
		&models.TradeLog{},
		&models.ScalperRunLog{},
	)
}
