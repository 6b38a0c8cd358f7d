package service

import (
	"context"

	"go.uber.org/zap"
)

// Resumer re-claims and finishes stale-leased notifications.
type Resumer interface {
	Resume(ctx context.Context) (int, error)
}

// SweepService resumes notifications whose lease went stale, the
// crash-recovery path for dispatch runs that died mid-flight. It is driven
// from the cron runner.
type SweepService struct {
	Dispatcher Resumer
	Logger     *zap.Logger
	Flags      *SystemSettingsService
}

func (s *SweepService) RunOnce(ctx context.Context) error {
	if s == nil || s.Dispatcher == nil {
		return nil
	}
	if s.Flags != nil && !s.Flags.IsEnabled(ctx, SwitchResume, true) {
		return nil
	}
	// A disabled dispatch path also pauses resumes; leases simply stay
	// stale until it is switched back on.
	if s.Flags != nil && !s.Flags.IsEnabled(ctx, SwitchDispatch, true) {
		return nil
	}
	resumed, err := s.Dispatcher.Resume(ctx)
	if err != nil {
		return err
	}
	if resumed > 0 && s.Logger != nil {
		s.Logger.Info("resumed stale notifications", zap.Int("count", resumed))
	}
	return nil
}
