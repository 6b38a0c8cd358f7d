package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	DigestStatusReady       = "ready"
	DigestStatusUnavailable = "unavailable"
)

// SignalNotification records one trigger of a signal. The signal fields are a
// snapshot taken at trigger time, kept even if the signal is later edited or
// archived. CurrentProcessedAt doubles as the dispatch lease: while set, one
// dispatcher owns the record; LastProcessedAt marks the last settled dispatch.
type SignalNotification struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	UUID string `gorm:"type:varchar(64);not null;uniqueIndex"`

	SignalID     uint64 `gorm:"not null;index"`
	SignalUUID   string `gorm:"type:varchar(64);not null;index"`
	SignalName   string `gorm:"type:varchar(200);not null"`
	SignalStatus string `gorm:"type:varchar(20);not null"`

	IssuedAt time.Time `gorm:"type:timestamptz;not null;index"`

	ArticleIDs   datatypes.JSON `gorm:"type:jsonb"`
	Digest       string         `gorm:"type:text"`
	DigestStatus string         `gorm:"type:varchar(20)"`

	LastProcessedAt    *time.Time `gorm:"type:timestamptz"`
	CurrentProcessedAt *time.Time `gorm:"type:timestamptz;index"`

	ContactPoints []ContactPointNotification `gorm:"foreignKey:NotificationID"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (SignalNotification) TableName() string {
	return "signal_notifications"
}

const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
)

// ContactPointNotification tracks delivery to one contact point of one
// notification. The (notification, contact point) pair is unique so resumed
// dispatch upserts instead of duplicating rows.
type ContactPointNotification struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	NotificationID uint64 `gorm:"not null;index;uniqueIndex:idx_notification_contact"`

	ContactPointUUID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_notification_contact"`
	ContactPointName string `gorm:"type:varchar(200);not null"`
	ContactPointType string `gorm:"type:varchar(20);not null"`

	Status      string     `gorm:"type:varchar(20);not null;index;default:'pending'"`
	Attempts    int        `gorm:"not null;default:0"`
	LastError   string     `gorm:"type:text"`
	DeliveredAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (ContactPointNotification) TableName() string {
	return "contact_point_notifications"
}
