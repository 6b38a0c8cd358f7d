package content

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"newswatch/internal/models"
	"newswatch/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It implements the full interface but only the article methods carry state;
// everything else returns zero values.
type stubRepo struct {
	articles    []models.Article
	articlesErr error

	listCalls  int
	countCalls int
}

func (s *stubRepo) filtered(params repository.ListArticlesParams) []models.Article {
	out := make([]models.Article, 0, len(s.articles))
	for _, a := range s.articles {
		if params.Source != nil && *params.Source != "" && a.Source != *params.Source {
			continue
		}
		if params.Country != nil && *params.Country != "" && a.Country != *params.Country {
			continue
		}
		if params.Category != nil && *params.Category != "" && a.Category != *params.Category {
			continue
		}
		if params.Since != nil && !a.PublishedAt.After(*params.Since) {
			continue
		}
		if params.Until != nil && a.PublishedAt.After(*params.Until) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (s *stubRepo) ListArticles(ctx context.Context, params repository.ListArticlesParams) ([]models.Article, error) {
	if s.articlesErr != nil {
		return nil, s.articlesErr
	}
	s.listCalls++
	items := s.filtered(params)
	asc := params.Asc != nil && *params.Asc
	sort.Slice(items, func(i, j int) bool {
		if items[i].PublishedAt.Equal(items[j].PublishedAt) {
			if asc {
				return items[i].ID < items[j].ID
			}
			return items[i].ID > items[j].ID
		}
		if asc {
			return items[i].PublishedAt.Before(items[j].PublishedAt)
		}
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	limit := params.Limit
	if limit <= 0 {
		limit = 200
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], nil
}

func (s *stubRepo) CountArticles(ctx context.Context, params repository.ListArticlesParams) (int64, error) {
	if s.articlesErr != nil {
		return 0, s.articlesErr
	}
	s.countCalls++
	return int64(len(s.filtered(params))), nil
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
func (s *stubRepo) DeleteSettledNotificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (s *stubRepo) UpsertArticles(ctx context.Context, items []models.Article) (int64, error) {
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

func (s *stubRepo) IncrementTriggerStat(ctx context.Context, signalUUID string, day time.Time, triggers, delivered, failed int) error {
	return nil
}
func (s *stubRepo) ListTriggerStats(ctx context.Context, params repository.ListTriggerStatsParams) ([]models.SignalTriggerStat, error) {
	return nil, nil
}

var _ repository.Repository = (*stubRepo)(nil)
