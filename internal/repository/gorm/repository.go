package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"newswatch/internal/models"
	"newswatch/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- signals ----------------------------------------------------------------

func (s *Store) InsertSignal(ctx context.Context, item *models.Signal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateSignal(ctx context.Context, item *models.Signal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) GetSignalByUUID(ctx context.Context, uuid string) (*models.Signal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Signal
	err := s.db.WithContext(ctx).Where("uuid = ?", strings.TrimSpace(uuid)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func signalQuery(db *gorm.DB, params repository.ListSignalsParams) *gorm.DB {
	query := db.Model(&models.Signal{})
	if params.Status != nil && *params.Status != "" {
		query = query.Where("status = ?", *params.Status)
	}
	if params.SignalType != nil && *params.SignalType != "" {
		query = query.Where("signal_type = ?", *params.SignalType)
	}
	if params.NotificationPolicy != nil && *params.NotificationPolicy != "" {
		query = query.Where("notification_policy = ?", *params.NotificationPolicy)
	}
	if params.Search != nil && strings.TrimSpace(*params.Search) != "" {
		query = query.Where("name ILIKE ?", "%"+strings.TrimSpace(*params.Search)+"%")
	}
	return query
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.Signal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := signalQuery(s.db.WithContext(ctx), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Signal
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSignals(ctx context.Context, params repository.ListSignalsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := signalQuery(s.db.WithContext(ctx), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) UpdateSignalMarks(ctx context.Context, signalID uint64, marks repository.SignalMarks) error {
	if s == nil || s.db == nil {
		return nil
	}
	return updateSignalMarks(s.db.WithContext(ctx), signalID, marks)
}

func (s *Store) UpdateSignalMarksTx(ctx context.Context, tx *gorm.DB, signalID uint64, marks repository.SignalMarks) error {
	if tx == nil {
		return nil
	}
	return updateSignalMarks(tx.WithContext(ctx), signalID, marks)
}

func updateSignalMarks(db *gorm.DB, signalID uint64, marks repository.SignalMarks) error {
	updates := map[string]interface{}{}
	if marks.LastEvaluatedAt != nil {
		updates["last_evaluated_at"] = *marks.LastEvaluatedAt
	}
	if marks.LastScheduledAt != nil {
		updates["last_scheduled_at"] = *marks.LastScheduledAt
	}
	if marks.LastImmediateAt != nil {
		updates["last_immediate_at"] = *marks.LastImmediateAt
	}
	if marks.LastTriggeredAt != nil {
		updates["last_triggered_at"] = *marks.LastTriggeredAt
	}
	if len(updates) == 0 {
		return nil
	}
	return db.Model(&models.Signal{}).Where("id = ?", signalID).Updates(updates).Error
}

// --- contact points ---------------------------------------------------------

func (s *Store) InsertContactPoint(ctx context.Context, item *models.ContactPoint) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateContactPoint(ctx context.Context, item *models.ContactPoint) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) DeleteContactPoint(ctx context.Context, uuid string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("uuid = ?", strings.TrimSpace(uuid)).Delete(&models.ContactPoint{})
	return res.RowsAffected, res.Error
}

func (s *Store) GetContactPointByUUID(ctx context.Context, uuid string) (*models.ContactPoint, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.ContactPoint
	err := s.db.WithContext(ctx).Where("uuid = ?", strings.TrimSpace(uuid)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func contactPointQuery(db *gorm.DB, params repository.ListContactPointsParams) *gorm.DB {
	query := db.Model(&models.ContactPoint{})
	if params.Type != nil && *params.Type != "" {
		query = query.Where("type = ?", *params.Type)
	}
	if params.Enabled != nil {
		query = query.Where("enabled = ?", *params.Enabled)
	}
	return query
}

func (s *Store) ListContactPoints(ctx context.Context, params repository.ListContactPointsParams) ([]models.ContactPoint, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := contactPointQuery(s.db.WithContext(ctx), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.ContactPoint
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountContactPoints(ctx context.Context, params repository.ListContactPointsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := contactPointQuery(s.db.WithContext(ctx), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListContactPointsByUUIDs(ctx context.Context, uuids []string) ([]models.ContactPoint, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	clean := cleanStrings(uuids)
	if len(clean) == 0 {
		return nil, nil
	}
	var items []models.ContactPoint
	if err := s.db.WithContext(ctx).Where("uuid IN ?", clean).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- notifications ----------------------------------------------------------

func (s *Store) InsertNotificationTx(ctx context.Context, tx *gorm.DB, item *models.SignalNotification) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) GetNotificationByUUID(ctx context.Context, uuid string) (*models.SignalNotification, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.SignalNotification
	err := s.db.WithContext(ctx).
		Preload("ContactPoints").
		Where("uuid = ?", strings.TrimSpace(uuid)).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func notificationQuery(db *gorm.DB, params repository.ListNotificationsParams) *gorm.DB {
	query := db.Model(&models.SignalNotification{})
	if params.SignalUUID != nil && *params.SignalUUID != "" {
		query = query.Where("signal_uuid = ?", *params.SignalUUID)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("issued_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("issued_at <= ?", *params.Until)
	}
	if params.Settled != nil {
		if *params.Settled {
			query = query.Where("last_processed_at IS NOT NULL")
		} else {
			query = query.Where("last_processed_at IS NULL")
		}
	}
	return query
}

func (s *Store) ListNotifications(ctx context.Context, params repository.ListNotificationsParams) ([]models.SignalNotification, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := notificationQuery(s.db.WithContext(ctx), params).Preload("ContactPoints")
	query = applyOrder(query, params.OrderBy, params.Asc, "issued_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.SignalNotification
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountNotifications(ctx context.Context, params repository.ListNotificationsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := notificationQuery(s.db.WithContext(ctx), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListResumableNotifications(ctx context.Context, staleBefore time.Time, limit int) ([]models.SignalNotification, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.SignalNotification
	err := s.db.WithContext(ctx).
		Preload("ContactPoints").
		Where("current_processed_at IS NOT NULL").
		Where("current_processed_at < ?", staleBefore).
		Order("current_processed_at asc").
		Limit(normalizeLimit(limit, 50)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ClaimNotificationLease(ctx context.Context, notificationID uint64, prev *time.Time, now time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.SignalNotification{}).
		Where("id = ?", notificationID)
	if prev == nil {
		query = query.Where("current_processed_at IS NULL")
	} else {
		query = query.Where("current_processed_at = ?", *prev)
	}
	res := query.Update("current_processed_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ReleaseNotificationLease(ctx context.Context, notificationID uint64, owner time.Time, processedAt time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.SignalNotification{}).
		Where("id = ?", notificationID).
		Where("current_processed_at = ?", owner).
		Updates(map[string]interface{}{
			"last_processed_at":    processedAt,
			"current_processed_at": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) MarkContactPointDelivery(ctx context.Context, id uint64, status string, attempts int, lastError string, deliveredAt *time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	updates := map[string]interface{}{
		"status":     status,
		"attempts":   attempts,
		"last_error": lastError,
	}
	if deliveredAt != nil {
		updates["delivered_at"] = *deliveredAt
	}
	return s.db.WithContext(ctx).
		Model(&models.ContactPointNotification{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *Store) ListContactPointNotifications(ctx context.Context, notificationID uint64) ([]models.ContactPointNotification, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ContactPointNotification
	err := s.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteSettledNotificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&models.SignalNotification{}).
			Select("id").
			Where("last_processed_at IS NOT NULL").
			Where("issued_at < ?", before)
		if err := tx.Where("notification_id IN (?)", ids).Delete(&models.ContactPointNotification{}).Error; err != nil {
			return err
		}
		res := tx.Where("last_processed_at IS NOT NULL").
			Where("issued_at < ?", before).
			Delete(&models.SignalNotification{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

// --- articles ---------------------------------------------------------------

func (s *Store) UpsertArticles(ctx context.Context, items []models.Article) (int64, error) {
	if s == nil || s.db == nil || len(items) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title",
			"url",
			"source",
			"country",
			"language",
			"category",
			"company_ids",
			"topics",
			"relevance_score",
			"published_at",
		}),
	}).CreateInBatches(items, 200)
	return res.RowsAffected, res.Error
}

func articleQuery(db *gorm.DB, params repository.ListArticlesParams) *gorm.DB {
	query := db.Model(&models.Article{})
	if params.Source != nil && *params.Source != "" {
		query = query.Where("source = ?", *params.Source)
	}
	if params.Country != nil && *params.Country != "" {
		query = query.Where("country = ?", *params.Country)
	}
	if params.Category != nil && *params.Category != "" {
		query = query.Where("category = ?", *params.Category)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("published_at > ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("published_at <= ?", *params.Until)
	}
	return query
}

func (s *Store) ListArticles(ctx context.Context, params repository.ListArticlesParams) ([]models.Article, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := articleQuery(s.db.WithContext(ctx), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "published_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Article
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountArticles(ctx context.Context, params repository.ListArticlesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := articleQuery(s.db.WithContext(ctx), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) DeleteArticlesBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("published_at < ?", before).
		Delete(&models.Article{})
	return res.RowsAffected, res.Error
}

// --- system settings --------------------------------------------------------

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Where("key = ?", strings.TrimSpace(key)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertSystemSetting(ctx context.Context, key string, value []byte, description string) error {
	if s == nil || s.db == nil {
		return nil
	}
	item := models.SystemSetting{
		Key:         strings.TrimSpace(key),
		Value:       value,
		Description: description,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description"}),
	}).Create(&item).Error
}

func settingQuery(db *gorm.DB, params repository.ListSystemSettingsParams) *gorm.DB {
	query := db.Model(&models.SystemSetting{})
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where("key LIKE ?", strings.TrimSpace(*params.Prefix)+"%")
	}
	return query
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := settingQuery(s.db.WithContext(ctx), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "key")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.SystemSetting
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := settingQuery(s.db.WithContext(ctx), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// --- trigger stats ----------------------------------------------------------

func (s *Store) IncrementTriggerStat(ctx context.Context, signalUUID string, day time.Time, triggers, delivered, failed int) error {
	if s == nil || s.db == nil || strings.TrimSpace(signalUUID) == "" {
		return nil
	}
	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	item := models.SignalTriggerStat{
		SignalUUID:     strings.TrimSpace(signalUUID),
		Date:           date,
		TriggerCount:   triggers,
		DeliveredCount: delivered,
		FailedCount:    failed,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "signal_uuid"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"trigger_count":   gorm.Expr("signal_trigger_stats.trigger_count + ?", triggers),
			"delivered_count": gorm.Expr("signal_trigger_stats.delivered_count + ?", delivered),
			"failed_count":    gorm.Expr("signal_trigger_stats.failed_count + ?", failed),
		}),
	}).Create(&item).Error
}

func (s *Store) ListTriggerStats(ctx context.Context, params repository.ListTriggerStatsParams) ([]models.SignalTriggerStat, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SignalTriggerStat{})
	if params.SignalUUID != nil && *params.SignalUUID != "" {
		query = query.Where("signal_uuid = ?", *params.SignalUUID)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("date >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("date <= ?", *params.Until)
	}
	query = query.Order("date desc").Order("signal_uuid asc")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.SignalTriggerStat
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

var _ repository.Repository = (*Store)(nil)
