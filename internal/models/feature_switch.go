package models

import "time"

// FeatureSwitch gates scheduled tasks at runtime.
type FeatureSwitch struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	Key         string    `gorm:"type:varchar(120);not null;uniqueIndex"`
	Enabled     bool      `gorm:"not null;default:false"`
	Description string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (FeatureSwitch) TableName() string {
	return "feature_switches"
}
