package models

import (
	"time"

	"gorm.io/datatypes"
)

// Signal lifecycle statuses. A stopped signal can resume to active or be
// archived; archived is terminal.
const (
	SignalStatusDraft    = "draft"
	SignalStatusActive   = "active"
	SignalStatusStopped  = "stopped"
	SignalStatusArchived = "archived"
)

// Signal evaluation modes. Immutable once the signal is created.
const (
	SignalTypeArticles = "articles"
	SignalTypeVolume   = "articles_volume"
)

const (
	NotificationPolicyScheduled = "scheduled"
	NotificationPolicyImmediate = "immediate"
)

const (
	SelectionPolicyLatest       = "latest"
	SelectionPolicyMostRelevant = "most_relevant"
	SelectionPolicyAISummary    = "ai_newsletter_summary"
)

// Signal is a persistent monitoring rule: a content filter or volume
// comparison evaluated on a schedule, notifying a set of contact points.
type Signal struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	UUID string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name string `gorm:"type:varchar(200);not null"`

	Status     string `gorm:"type:varchar(20);not null;index;default:'draft'"`
	SignalType string `gorm:"type:varchar(30);not null;index"`

	NotificationPolicy string `gorm:"type:varchar(20);not null;default:'scheduled'"`
	SelectionPolicy    string `gorm:"type:varchar(40);not null;default:'latest'"`

	// Query holds the filter expression and, for volume signals, the
	// comparison. Schedule holds the interval list for scheduled policies.
	Query           datatypes.JSON `gorm:"type:jsonb;not null"`
	Schedule        datatypes.JSON `gorm:"type:jsonb"`
	ContactPointIDs datatypes.JSON `gorm:"type:jsonb"`

	// LastEvaluatedAt is the content watermark: articles published before it
	// have already been considered.
	LastEvaluatedAt *time.Time `gorm:"type:timestamptz;index"`
	// LastScheduledAt is the truncated-to-minute instant of the last due
	// schedule match, so one matching minute fires at most once.
	LastScheduledAt *time.Time `gorm:"type:timestamptz"`
	LastImmediateAt *time.Time `gorm:"type:timestamptz"`
	LastTriggeredAt *time.Time `gorm:"type:timestamptz;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Signal) TableName() string {
	return "signals"
}
