package db

import (
	"newswatch/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Article{},
		&models.ContactPoint{},
		&models.Signal{},
		&models.SignalNotification{},
		&models.ContactPointNotification{},
		&models.SignalTriggerStat{},
		&models.SystemSetting{},
	)
}
