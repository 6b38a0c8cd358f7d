package service

import (
	"context"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"newswatch/internal/models"
	"newswatch/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository
// covering the settings, retention, and stats calls the services make.
type stubRepo struct {
	mu       sync.Mutex
	settings map[string]*models.SystemSetting
	stats    []models.SignalTriggerStat

	articlesDeleted      int64
	notificationsDeleted int64
	articleCutoff        *time.Time
	notificationCutoff   *time.Time
}

func newStubRepo() *stubRepo {
	return &stubRepo{settings: map[string]*models.SystemSetting{}}
}

func (s *stubRepo) setSwitch(key string, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = &models.SystemSetting{Key: key, Value: datatypes.JSON(raw)}
}

func (s *stubRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (s *stubRepo) UpsertSystemSetting(ctx context.Context, key string, value []byte, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(value),
		Description: description,
	}
	return nil
}

func (s *stubRepo) DeleteArticlesBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articleCutoff = &before
	return s.articlesDeleted, nil
}

func (s *stubRepo) DeleteSettledNotificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notificationCutoff = &before
	return s.notificationsDeleted, nil
}

func (s *stubRepo) ListTriggerStats(ctx context.Context, params repository.ListTriggerStatsParams) ([]models.SignalTriggerStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.SignalTriggerStat{}
	for _, row := range s.stats {
		if params.SignalUUID != nil && row.SignalUUID != *params.SignalUUID {
			continue
		}
		if params.Since != nil && row.Date.Before(*params.Since) {
			continue
		}
		if params.Until != nil && row.Date.After(*params.Until) {
			continue
		}
		out = append(out, row)
	}
	if params.Offset > 0 {
		if params.Offset >= len(out) {
			return []models.SignalTriggerStat{}, nil
		}
		out = out[params.Offset:]
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }
func (s *stubRepo) InsertSignal(ctx context.Context, item *models.Signal) error { return nil }
func (s *stubRepo) UpdateSignal(ctx context.Context, item *models.Signal) error { return nil }
func (s *stubRepo) GetSignalByUUID(ctx context.Context, uuid string) (*models.Signal, error) {
	return nil, nil
}
func (s *stubRepo) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.Signal, error) {
	return nil, nil
}
func (s *stubRepo) CountSignals(ctx context.Context, params repository.ListSignalsParams) (int64, error) {
	return 0, nil
}
func (s *stubRepo) UpdateSignalMarks(ctx context.Context, signalID uint64, marks repository.SignalMarks) error {
	return nil
}
func (s *stubRepo) UpdateSignalMarksTx(ctx context.Context, tx *gorm.DB, signalID uint64, marks repository.SignalMarks) error {
	return nil
}
func (s *stubRepo) InsertContactPoint(ctx context.Context, item *models.ContactPoint) error {
	return nil
}
func (s *stubRepo) UpdateContactPoint(ctx context.Context, item *models.ContactPoint) error {
	return nil
}
func (s *stubRepo) DeleteContactPoint(ctx context.Context, uuid string) (int64, error) {
	return 0, nil
}
func (s *stubRepo) GetContactPointByUUID(ctx context.Context, uuid string) (*models.ContactPoint, error) {
	return nil, nil
}
func (s *stubRepo) ListContactPoints(ctx context.Context, params repository.ListContactPointsParams) ([]models.ContactPoint, error) {
	return nil, nil
}
func (s *stubRepo) CountContactPoints(ctx context.Context, params repository.ListContactPointsParams) (int64, error) {
	return 0, nil
}
func (s *stubRepo) ListContactPointsByUUIDs(ctx context.Context, uuids []string) ([]models.ContactPoint, error) {
	return nil, nil
}
func (s *stubRepo) InsertNotificationTx(ctx context.Context, tx *gorm.DB, item *models.SignalNotification) error {
	return nil
}
func (s *stubRepo) GetNotificationByUUID(ctx context.Context, uuid string) (*models.SignalNotification, error) {
	return nil, nil
}
func (s *stubRepo) ListNotifications(ctx context.Context, params repository.ListNotificationsParams) ([]models.SignalNotification, error) {
	return nil, nil
}
func (s *stubRepo) CountNotifications(ctx context.Context, params repository.ListNotificationsParams) (int64, error) {
	return 0, nil
}
func (s *stubRepo) ListResumableNotifications(ctx context.Context, staleBefore time.Time, limit int) ([]models.SignalNotification, error) {
	return nil, nil
}
func (s *stubRepo) ClaimNotificationLease(ctx context.Context, notificationID uint64, prev *time.Time, now time.Time) (bool, error) {
	return false, nil
}
func (s *stubRepo) ReleaseNotificationLease(ctx context.Context, notificationID uint64, owner time.Time, processedAt time.Time) (bool, error) {
	return false, nil
}
func (s *stubRepo) MarkContactPointDelivery(ctx context.Context, id uint64, status string, attempts int, lastError string, deliveredAt *time.Time) error {
	return nil
}
func (s *stubRepo) ListContactPointNotifications(ctx context.Context, notificationID uint64) ([]models.ContactPointNotification, error) {
	return nil, nil
}
func (s *stubRepo) UpsertArticles(ctx context.Context, items []models.Article) (int64, error) {
	return 0, nil
}
func (s *stubRepo) ListArticles(ctx context.Context, params repository.ListArticlesParams) ([]models.Article, error) {
	return nil, nil
}
func (s *stubRepo) CountArticles(ctx context.Context, params repository.ListArticlesParams) (int64, error) {
	return 0, nil
}
func (s *stubRepo) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	return nil, nil
}
func (s *stubRepo) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	return 0, nil
}
func (s *stubRepo) IncrementTriggerStat(ctx context.Context, signalUUID string, day time.Time, triggers, delivered, failed int) error {
	return nil
}

var _ repository.Repository = (*stubRepo)(nil)
