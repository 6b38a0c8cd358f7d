package models

import (
	"time"

	"gorm.io/datatypes"
)

// Article is one content item handed over by the upstream ingestion pipeline.
// Only the attributes the filter schema and volume counters read are kept.
type Article struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	ExternalID string `gorm:"type:varchar(100);not null;uniqueIndex"`

	Title string `gorm:"type:text;not null"`
	URL   string `gorm:"type:text"`

	Source   string `gorm:"type:varchar(100);index"`
	Country  string `gorm:"type:varchar(10);index"`
	Language string `gorm:"type:varchar(10)"`
	Category string `gorm:"type:varchar(50);index"`

	CompanyIDs datatypes.JSON `gorm:"type:jsonb"`
	Topics     datatypes.JSON `gorm:"type:jsonb"`

	RelevanceScore *float64

	PublishedAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt   time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Article) TableName() string {
	return "articles"
}
