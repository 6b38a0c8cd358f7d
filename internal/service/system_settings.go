package service

import (
	"context"
	"encoding/json"
	"strings"

	"newswatch/internal/repository"
)

// Feature switches persisted as system settings. Every switch defaults to on;
// flipping one off pauses the matching background path without a restart.
const (
	SwitchEngine    = "switch.engine"
	SwitchImmediate = "switch.immediate"
	SwitchDispatch  = "switch.dispatch"
	SwitchResume    = "switch.resume_sweep"
	SwitchRetention = "switch.retention"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		SwitchEngine:    true,
		SwitchImmediate: true,
		SwitchDispatch:  true,
		SwitchResume:    true,
		SwitchRetention: true,
	}
}

type SystemSettingsService struct {
	Repo repository.Repository
}

// EnsureDefaultSwitches seeds missing switches at boot. Existing values are
// never overwritten, so an operator's choice survives restarts.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		if err := s.Repo.UpsertSystemSetting(ctx, key, raw, "feature switch"); err != nil {
			return err
		}
	}
	return nil
}

// IsEnabled reads a boolean switch, falling back when the key is missing or
// unreadable.
func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	raw, _ := json.Marshal(enabled)
	return s.Repo.UpsertSystemSetting(ctx, key, raw, "feature switch")
}
