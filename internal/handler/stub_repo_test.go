package handler

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"newswatch/internal/models"
	"newswatch/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It implements the full interface but only the slices handler tests touch
// are live.
type stubRepo struct {
	mu sync.Mutex

	signals       map[string]*models.Signal
	points        map[string]*models.ContactPoint
	notifications map[string]*models.SignalNotification
	settings      map[string]*models.SystemSetting
	stats         []models.SignalTriggerStat

	upsertedArticles []models.Article

	nextID uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		signals:       map[string]*models.Signal{},
		points:        map[string]*models.ContactPoint{},
		notifications: map[string]*models.SignalNotification{},
		settings:      map[string]*models.SystemSetting{},
		nextID:        100,
	}
}

func (s *stubRepo) addSignal(item models.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == 0 {
		s.nextID++
		item.ID = s.nextID
	}
	s.signals[item.UUID] = &item
}

func (s *stubRepo) addPoint(item models.ContactPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == 0 {
		s.nextID++
		item.ID = s.nextID
	}
	s.points[item.UUID] = &item
}

func (s *stubRepo) signal(uuid string) *models.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.signals[uuid]; ok {
		copied := *item
		return &copied
	}
	return nil
}

func (s *stubRepo) point(uuid string) *models.ContactPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.points[uuid]; ok {
		copied := *item
		return &copied
	}
	return nil
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) InsertSignal(ctx context.Context, item *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item.ID = s.nextID
	copied := *item
	s.signals[item.UUID] = &copied
	return nil
}

func (s *stubRepo) UpdateSignal(ctx context.Context, item *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.signals[item.UUID] = &copied
	return nil
}

func (s *stubRepo) GetSignalByUUID(ctx context.Context, uuid string) (*models.Signal, error) {
	return s.signal(strings.TrimSpace(uuid)), nil
}

func (s *stubRepo) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Signal, 0, len(s.signals))
	for _, item := range s.signals {
		if params.Status != nil && item.Status != *params.Status {
			continue
		}
		if params.SignalType != nil && item.SignalType != *params.SignalType {
			continue
		}
		if params.Search != nil && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(*params.Search)) {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) CountSignals(ctx context.Context, params repository.ListSignalsParams) (int64, error) {
	items, _ := s.ListSignals(ctx, params)
	return int64(len(items)), nil
}

func (s *stubRepo) UpdateSignalMarks(ctx context.Context, signalID uint64, marks repository.SignalMarks) error {
	return nil
}

func (s *stubRepo) UpdateSignalMarksTx(ctx context.Context, tx *gorm.DB, signalID uint64, marks repository.SignalMarks) error {
	return nil
}

func (s *stubRepo) InsertContactPoint(ctx context.Context, item *models.ContactPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item.ID = s.nextID
	copied := *item
	s.points[item.UUID] = &copied
	return nil
}

func (s *stubRepo) UpdateContactPoint(ctx context.Context, item *models.ContactPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.points[item.UUID] = &copied
	return nil
}

func (s *stubRepo) DeleteContactPoint(ctx context.Context, uuid string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.points[uuid]; !ok {
		return 0, nil
	}
	delete(s.points, uuid)
	return 1, nil
}

func (s *stubRepo) GetContactPointByUUID(ctx context.Context, uuid string) (*models.ContactPoint, error) {
	return s.point(strings.TrimSpace(uuid)), nil
}

func (s *stubRepo) ListContactPoints(ctx context.Context, params repository.ListContactPointsParams) ([]models.ContactPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ContactPoint, 0, len(s.points))
	for _, item := range s.points {
		if params.Type != nil && item.Type != *params.Type {
			continue
		}
		if params.Enabled != nil && item.Enabled != *params.Enabled {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) CountContactPoints(ctx context.Context, params repository.ListContactPointsParams) (int64, error) {
	items, _ := s.ListContactPoints(ctx, params)
	return int64(len(items)), nil
}

func (s *stubRepo) ListContactPointsByUUIDs(ctx context.Context, uuids []string) ([]models.ContactPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ContactPoint, 0, len(uuids))
	for _, id := range uuids {
		if item, ok := s.points[id]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *stubRepo) InsertNotificationTx(ctx context.Context, tx *gorm.DB, item *models.SignalNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item.ID = s.nextID
	copied := *item
	s.notifications[item.UUID] = &copied
	return nil
}

func (s *stubRepo) GetNotificationByUUID(ctx context.Context, uuid string) (*models.SignalNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.notifications[strings.TrimSpace(uuid)]; ok {
		copied := *item
		return &copied, nil
	}
	return nil, nil
}

func (s *stubRepo) ListNotifications(ctx context.Context, params repository.ListNotificationsParams) ([]models.SignalNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SignalNotification, 0, len(s.notifications))
	for _, item := range s.notifications {
		if params.SignalUUID != nil && item.SignalUUID != *params.SignalUUID {
			continue
		}
		if params.Settled != nil {
			settled := item.LastProcessedAt != nil
			if settled != *params.Settled {
				continue
			}
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) CountNotifications(ctx context.Context, params repository.ListNotificationsParams) (int64, error) {
	items, _ := s.ListNotifications(ctx, params)
	return int64(len(items)), nil
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

func (s *stubRepo) DeleteSettledNotificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (s *stubRepo) UpsertArticles(ctx context.Context, items []models.Article) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertedArticles = append(s.upsertedArticles, items...)
	return int64(len(items)), nil
}

func (s *stubRepo) ListArticles(ctx context.Context, params repository.ListArticlesParams) ([]models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Article(nil), s.upsertedArticles...), nil
}

func (s *stubRepo) CountArticles(ctx context.Context, params repository.ListArticlesParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.upsertedArticles)), nil
}

func (s *stubRepo) DeleteArticlesBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (s *stubRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.settings[key]; ok {
		copied := *item
		return &copied, nil
	}
	return nil, nil
}

func (s *stubRepo) UpsertSystemSetting(ctx context.Context, key string, value []byte, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.settings[key]; ok {
		item.Value = append([]byte(nil), value...)
		item.Description = description
		item.UpdatedAt = time.Now().UTC()
		return nil
	}
	s.nextID++
	s.settings[key] = &models.SystemSetting{
		ID:          s.nextID,
		Key:         key,
		Value:       append([]byte(nil), value...),
		Description: description,
		UpdatedAt:   time.Now().UTC(),
	}
	return nil
}

func (s *stubRepo) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SystemSetting, 0, len(s.settings))
	for _, item := range s.settings {
		if params.Prefix != nil && !strings.HasPrefix(item.Key, *params.Prefix) {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *stubRepo) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	items, _ := s.ListSystemSettings(ctx, params)
	return int64(len(items)), nil
}

func (s *stubRepo) IncrementTriggerStat(ctx context.Context, signalUUID string, day time.Time, triggers, delivered, failed int) error {
	return nil
}

func (s *stubRepo) ListTriggerStats(ctx context.Context, params repository.ListTriggerStatsParams) ([]models.SignalTriggerStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SignalTriggerStat(nil), s.stats...), nil
}

var _ repository.Repository = (*stubRepo)(nil)
