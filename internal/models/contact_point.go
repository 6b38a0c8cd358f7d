package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ContactPointTypeWebhook  = "webhook"
	ContactPointTypeTelegram = "telegram"
	ContactPointTypeSlack    = "slack"
)

// ContactPoint is a notification destination. Settings is a typed-per-kind
// JSON object; secret-bearing values inside it are encrypted at rest.
type ContactPoint struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	UUID string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name string `gorm:"type:varchar(200);not null"`
	Type string `gorm:"type:varchar(20);not null;index"`

	Settings datatypes.JSON `gorm:"type:jsonb;not null"`
	Enabled  bool           `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (ContactPoint) TableName() string {
	return "contact_points"
}
