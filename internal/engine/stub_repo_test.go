package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"newswatch/internal/models"
	"newswatch/internal/repository"
)

type statCall struct {
	signalUUID string
	triggers   int
	delivered  int
	failed     int
}

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It keeps signals addressable by ID so tests can inspect the marks the
// engine writes back.
type stubRepo struct {
	mu            sync.Mutex
	signals       map[uint64]*models.Signal
	points        map[string]models.ContactPoint
	notifications []*models.SignalNotification
	statCalls     []statCall
	listErr       error
	markErr       error
	nextID        uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		signals: map[uint64]*models.Signal{},
		points:  map[string]models.ContactPoint{},
		nextID:  100,
	}
}

func (s *stubRepo) addSignal(sig models.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := sig
	s.signals[sig.ID] = &copied
}

func (s *stubRepo) addPoint(p models.ContactPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[p.UUID] = p
}

func (s *stubRepo) addNotification(item models.SignalNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := item
	s.notifications = append(s.notifications, &copied)
}

func (s *stubRepo) signal(id uint64) models.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.signals[id]
}

func (s *stubRepo) issued() []*models.SignalNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.SignalNotification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

func (s *stubRepo) stats() []statCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]statCall, len(s.statCalls))
	copy(out, s.statCalls)
	return out
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (s *stubRepo) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []models.Signal{}
	for _, sig := range s.signals {
		if params.Status != nil && sig.Status != *params.Status {
			continue
		}
		if params.NotificationPolicy != nil && sig.NotificationPolicy != *params.NotificationPolicy {
			continue
		}
		out = append(out, *sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) UpdateSignalMarks(ctx context.Context, signalID uint64, marks repository.SignalMarks) error {
	return s.applyMarks(signalID, marks)
}

func (s *stubRepo) UpdateSignalMarksTx(ctx context.Context, tx *gorm.DB, signalID uint64, marks repository.SignalMarks) error {
	return s.applyMarks(signalID, marks)
}

func (s *stubRepo) applyMarks(signalID uint64, marks repository.SignalMarks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	sig, ok := s.signals[signalID]
	if !ok {
		return nil
	}
	if marks.LastEvaluatedAt != nil {
		sig.LastEvaluatedAt = marks.LastEvaluatedAt
	}
	if marks.LastScheduledAt != nil {
		sig.LastScheduledAt = marks.LastScheduledAt
	}
	if marks.LastImmediateAt != nil {
		sig.LastImmediateAt = marks.LastImmediateAt
	}
	if marks.LastTriggeredAt != nil {
		sig.LastTriggeredAt = marks.LastTriggeredAt
	}
	return nil
}

func (s *stubRepo) InsertNotificationTx(ctx context.Context, tx *gorm.DB, item *models.SignalNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item.ID = s.nextID
	for i := range item.ContactPoints {
		s.nextID++
		item.ContactPoints[i].ID = s.nextID
		item.ContactPoints[i].NotificationID = item.ID
	}
	s.notifications = append(s.notifications, item)
	return nil
}

func (s *stubRepo) ListContactPointsByUUIDs(ctx context.Context, uuids []string) ([]models.ContactPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ContactPoint{}
	for _, id := range uuids {
		if p, ok := s.points[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRepo) IncrementTriggerStat(ctx context.Context, signalUUID string, day time.Time, triggers, delivered, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statCalls = append(s.statCalls, statCall{signalUUID, triggers, delivered, failed})
	return nil
}

func (s *stubRepo) InsertSignal(ctx context.Context, item *models.Signal) error { return nil }
func (s *stubRepo) UpdateSignal(ctx context.Context, item *models.Signal) error { return nil }
func (s *stubRepo) GetSignalByUUID(ctx context.Context, uuid string) (*models.Signal, error) {
	return nil, nil
}
func (s *stubRepo) CountSignals(ctx context.Context, params repository.ListSignalsParams) (int64, error) {
	return 0, nil
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
	return true, nil
}
func (s *stubRepo) ReleaseNotificationLease(ctx context.Context, notificationID uint64, owner time.Time, processedAt time.Time) (bool, error) {
	return true, nil
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
	return 0, nil
}
func (s *stubRepo) ListArticles(ctx context.Context, params repository.ListArticlesParams) ([]models.Article, error) {
	return nil, nil
}
func (s *stubRepo) CountArticles(ctx context.Context, params repository.ListArticlesParams) (int64, error) {
	return 0, nil
}
func (s *stubRepo) DeleteArticlesBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}
func (s *stubRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	return nil, nil
}
func (s *stubRepo) UpsertSystemSetting(ctx context.Context, key string, value []byte, description string) error {
	return nil
}
func (s *stubRepo) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	return nil, nil
}
func (s *stubRepo) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	return 0, nil
}
func (s *stubRepo) ListTriggerStats(ctx context.Context, params repository.ListTriggerStatsParams) ([]models.SignalTriggerStat, error) {
	return nil, nil
}

var _ repository.Repository = (*stubRepo)(nil)
