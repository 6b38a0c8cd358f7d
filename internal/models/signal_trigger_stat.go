package models

import (
	"time"
)

// SignalTriggerStat aggregates per-signal trigger and delivery outcomes by
// calendar day, maintained by the stats service for ops dashboards.
type SignalTriggerStat struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	SignalUUID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_signal_trigger_daily;index"`
	Date       time.Time `gorm:"type:date;not null;uniqueIndex:idx_signal_trigger_daily;index"`

	TriggerCount   int `gorm:"not null;default:0"`
	DeliveredCount int `gorm:"not null;default:0"`
	FailedCount    int `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (SignalTriggerStat) TableName() string {
	return "signal_trigger_stats"
}
