package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"newswatch/internal/models"
)

// Repository is the persistence boundary shared by the engine, dispatcher,
// background services, and handlers.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Signals
	InsertSignal(ctx context.Context, item *models.Signal) error
	UpdateSignal(ctx context.Context, item *models.Signal) error
	GetSignalByUUID(ctx context.Context, uuid string) (*models.Signal, error)
	ListSignals(ctx context.Context, params ListSignalsParams) ([]models.Signal, error)
	CountSignals(ctx context.Context, params ListSignalsParams) (int64, error)
	// UpdateSignalMarks writes only the non-nil bookkeeping timestamps.
	UpdateSignalMarks(ctx context.Context, signalID uint64, marks SignalMarks) error
	UpdateSignalMarksTx(ctx context.Context, tx *gorm.DB, signalID uint64, marks SignalMarks) error

	// Contact points
	InsertContactPoint(ctx context.Context, item *models.ContactPoint) error
	UpdateContactPoint(ctx context.Context, item *models.ContactPoint) error
	DeleteContactPoint(ctx context.Context, uuid string) (int64, error)
	GetContactPointByUUID(ctx context.Context, uuid string) (*models.ContactPoint, error)
	ListContactPoints(ctx context.Context, params ListContactPointsParams) ([]models.ContactPoint, error)
	CountContactPoints(ctx context.Context, params ListContactPointsParams) (int64, error)
	ListContactPointsByUUIDs(ctx context.Context, uuids []string) ([]models.ContactPoint, error)

	// Notifications. Insert persists the nested contact-point rows with the
	// record; reads preload them.
	InsertNotificationTx(ctx context.Context, tx *gorm.DB, item *models.SignalNotification) error
	GetNotificationByUUID(ctx context.Context, uuid string) (*models.SignalNotification, error)
	ListNotifications(ctx context.Context, params ListNotificationsParams) ([]models.SignalNotification, error)
	CountNotifications(ctx context.Context, params ListNotificationsParams) (int64, error)
	// ListResumableNotifications returns records whose dispatch lease went
	// stale before the cutoff: current_processed_at set and older than it.
	ListResumableNotifications(ctx context.Context, staleBefore time.Time, limit int) ([]models.SignalNotification, error)
	// ClaimNotificationLease sets current_processed_at to now only when it
	// still equals prev (nil means unclaimed). Reports whether the compare
	// and set won.
	ClaimNotificationLease(ctx context.Context, notificationID uint64, prev *time.Time, now time.Time) (bool, error)
	// ReleaseNotificationLease settles the record: sets last_processed_at and
	// clears current_processed_at, only while still owned by owner.
	ReleaseNotificationLease(ctx context.Context, notificationID uint64, owner time.Time, processedAt time.Time) (bool, error)
	MarkContactPointDelivery(ctx context.Context, id uint64, status string, attempts int, lastError string, deliveredAt *time.Time) error
	ListContactPointNotifications(ctx context.Context, notificationID uint64) ([]models.ContactPointNotification, error)
	DeleteSettledNotificationsBefore(ctx context.Context, before time.Time) (int64, error)

	// Articles
	UpsertArticles(ctx context.Context, items []models.Article) (int64, error)
	ListArticles(ctx context.Context, params ListArticlesParams) ([]models.Article, error)
	CountArticles(ctx context.Context, params ListArticlesParams) (int64, error)
	DeleteArticlesBefore(ctx context.Context, before time.Time) (int64, error)

	// System settings
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	UpsertSystemSetting(ctx context.Context, key string, value []byte, description string) error
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
	CountSystemSettings(ctx context.Context, params ListSystemSettingsParams) (int64, error)

	// Trigger stats
	IncrementTriggerStat(ctx context.Context, signalUUID string, day time.Time, triggers, delivered, failed int) error
	ListTriggerStats(ctx context.Context, params ListTriggerStatsParams) ([]models.SignalTriggerStat, error)
}

// SignalMarks carries the evaluation bookkeeping written back after a tick.
// Nil fields are left untouched.
type SignalMarks struct {
	LastEvaluatedAt *time.Time
	LastScheduledAt *time.Time
	LastImmediateAt *time.Time
	LastTriggeredAt *time.Time
}

type ListSignalsParams struct {
	Limit              int
	Offset             int
	Status             *string
	SignalType         *string
	NotificationPolicy *string
	Search             *string
	OrderBy            string
	Asc                *bool
}

type ListContactPointsParams struct {
	Limit   int
	Offset  int
	Type    *string
	Enabled *bool
	OrderBy string
	Asc     *bool
}

type ListNotificationsParams struct {
	Limit      int
	Offset     int
	SignalUUID *string
	Since      *time.Time
	Until      *time.Time
	// Settled filters on last_processed_at being set (true) or absent (false).
	Settled *bool
	OrderBy string
	Asc     *bool
}

type ListArticlesParams struct {
	Limit    int
	Offset   int
	Source   *string
	Country  *string
	Category *string
	// Since is exclusive and Until inclusive on published_at, matching the
	// engine's watermark semantics.
	Since   *time.Time
	Until   *time.Time
	OrderBy string
	Asc     *bool
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}

type ListTriggerStatsParams struct {
	Limit      int
	Offset     int
	SignalUUID *string
	Since      *time.Time
	Until      *time.Time
}
