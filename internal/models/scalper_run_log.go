package models

import (
	"time"

	"gorm.io/datatypes"
)

type ScalperRunLog struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement"`
	BotID     uint64         `gorm:"not null;index:idx_scalper_run_bot_time"`
	RunID     string         `gorm:"type:varchar(36);not null"`
	Timeframe string         `gorm:"type:varchar(8);not null;default:'1m'"`
	Session   string         `gorm:"type:varchar(32);index"`
	Summary   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"type:timestamptz;autoCreateTime;index:idx_scalper_run_bot_time"`
}

func (ScalperRunLog) TableName() string {
	return "scalper_run_logs"
}
