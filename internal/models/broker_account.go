package models

import "time"

// BrokerAccount holds venue credentials. APISecretEnc is sealed with the secrets package.
type BrokerAccount struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Name       string `gorm:"type:varchar(100);not null"`
	Broker     string `gorm:"type:varchar(20);not null;uniqueIndex:idx_broker_account_ref"`
	AccountRef string `gorm:"type:varchar(128);not null;uniqueIndex:idx_broker_account_ref"`

	APIKey       string `gorm:"type:varchar(256)"`
	APISecretEnc string `gorm:"type:text" json:"-"`
	BaseURL      string `gorm:"type:varchar(256)"`
	Testnet      bool   `gorm:"not null;default:false"`

	BaseCcy  string `gorm:"type:varchar(10);not null;default:'USD'"`
	IsActive bool   `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (BrokerAccount) TableName() string {
	return "broker_accounts"
}
