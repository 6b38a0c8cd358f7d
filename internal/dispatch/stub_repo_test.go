package dispatch

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

	triggers  int
	delivered int
	failed    int
}

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It implements the full interface but only the notification, contact point,
// and trigger stat methods carry state.
type stubRepo struct {
	mu sync.Mutex

	notifications map[uint64]*models.SignalNotification
	rows          map[uint64]*models.ContactPointNotification
	points        map[string]models.ContactPoint

	rejectClaims bool
	statCalls    []statCall
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		notifications: map[uint64]*models.SignalNotification{},
		rows:          map[uint64]*models.ContactPointNotification{},
		points:        map[string]models.ContactPoint{},
	}
}

func (s *stubRepo) addNotification(item models.SignalNotification, rows ...models.ContactPointNotification) *models.SignalNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := item
	for i := range rows {
		row := rows[i]
		row.NotificationID = item.ID
		s.rows[row.ID] = &row
	}
	stored.ContactPoints = nil
	s.notifications[item.ID] = &stored
	view := item
	view.ContactPoints = append([]models.ContactPointNotification{}, rows...)
	return &view
}

func (s *stubRepo) rowsFor(notificationID uint64) []models.ContactPointNotification {
	out := []models.ContactPointNotification{}
	for _, row := range s.rows {
		if row.NotificationID == notificationID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *stubRepo) row(id uint64) models.ContactPointNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.rows[id]
}

func (s *stubRepo) notification(id uint64) models.SignalNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.notifications[id]
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

func (s *stubRepo) ClaimNotificationLease(ctx context.Context, notificationID uint64, prev *time.Time, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectClaims {
		return false, nil
	}
	n, ok := s.notifications[notificationID]
	if !ok {
		return false, nil
	}
	cur := n.CurrentProcessedAt
	if prev == nil && cur != nil {
		return false, nil
	}
	if prev != nil && (cur == nil || !cur.Equal(*prev)) {
		return false, nil
	}
	t := now
	n.CurrentProcessedAt = &t
	return true, nil
}

func (s *stubRepo) ReleaseNotificationLease(ctx context.Context, notificationID uint64, owner time.Time, processedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[notificationID]
	if !ok {
		return false, nil
	}
	if n.CurrentProcessedAt == nil || !n.CurrentProcessedAt.Equal(owner) {
		return false, nil
	}
	p := processedAt
	n.LastProcessedAt = &p
	n.CurrentProcessedAt = nil
	return true, nil
}

func (s *stubRepo) MarkContactPointDelivery(ctx context.Context, id uint64, status string, attempts int, lastError string, deliveredAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil
	}
	row.Status = status
	row.Attempts = attempts
	row.LastError = lastError
	row.DeliveredAt = deliveredAt
	return nil
}

func (s *stubRepo) ListResumableNotifications(ctx context.Context, staleBefore time.Time, limit int) ([]models.SignalNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.SignalNotification{}
	for _, n := range s.notifications {
		if n.CurrentProcessedAt == nil || !n.CurrentProcessedAt.Before(staleBefore) {
			continue
		}
		item := *n
		item.ContactPoints = s.rowsFor(n.ID)
		out = append(out, item)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *stubRepo) IncrementTriggerStat(ctx context.Context, signalUUID string, day time.Time, triggers, delivered, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statCalls = append(s.statCalls, statCall{signalUUID: signalUUID, triggers: triggers, delivered: delivered, failed: failed})
	return nil
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
