package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"newswatch/internal/repository"
)

// RetentionService prunes old articles and settled notifications. Unsettled
// notifications are never touched regardless of age.
type RetentionService struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Flags  *SystemSettingsService

	ArticleDays      int
	NotificationDays int
}

func (s *RetentionService) articleDays() int {
	if s != nil && s.ArticleDays > 0 {
		return s.ArticleDays
	}
	return 90
}

func (s *RetentionService) notificationDays() int {
	if s != nil && s.NotificationDays > 0 {
		return s.NotificationDays
	}
	return 180
}

func (s *RetentionService) Run(ctx context.Context, interval time.Duration) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil && s.Logger != nil {
			s.Logger.Warn("retention run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (s *RetentionService) RunOnce(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	if s.Flags != nil && !s.Flags.IsEnabled(ctx, SwitchRetention, true) {
		return nil
	}
	now := time.Now().UTC()

	articles, err := s.Repo.DeleteArticlesBefore(ctx, now.AddDate(0, 0, -s.articleDays()))
	if err != nil {
		return err
	}
	notifications, err := s.Repo.DeleteSettledNotificationsBefore(ctx, now.AddDate(0, 0, -s.notificationDays()))
	if err != nil {
		return err
	}
	if (articles > 0 || notifications > 0) && s.Logger != nil {
		s.Logger.Info("retention pruned rows",
			zap.Int64("articles", articles),
			zap.Int64("notifications", notifications),
		)
	}
	return nil
}
