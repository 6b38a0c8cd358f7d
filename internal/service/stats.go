package service

import (
	"context"
	"time"

	"newswatch/internal/models"
	"newswatch/internal/repository"
)

// TriggerSummary totals a signal's daily stat rows over a trailing window.
type TriggerSummary struct {
	SignalUUID string `json:"signal_uuid,omitempty"`
	Days       int    `json:"days"`
	Triggers   int    `json:"triggers"`
	Delivered  int    `json:"delivered"`
	Failed     int    `json:"failed"`
}

// TriggerStatsService reads the per-signal daily counters the engine and
// dispatcher maintain.
type TriggerStatsService struct {
	Repo repository.Repository
}

func (s *TriggerStatsService) List(ctx context.Context, params repository.ListTriggerStatsParams) ([]models.SignalTriggerStat, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListTriggerStats(ctx, params)
}

// Summarize totals the trailing days of one signal's counters, today
// included. A non-positive window defaults to 7 days.
func (s *TriggerStatsService) Summarize(ctx context.Context, signalUUID string, days int) (*TriggerSummary, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	if days <= 0 {
		days = 7
	}
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(days - 1))
	summary := &TriggerSummary{SignalUUID: signalUUID, Days: days}
	offset := 0
	for {
		batch, err := s.Repo.ListTriggerStats(ctx, repository.ListTriggerStatsParams{
			Limit:      500,
			Offset:     offset,
			SignalUUID: &signalUUID,
			Since:      &since,
		})
		if err != nil {
			return nil, err
		}
		for _, row := range batch {
			summary.Triggers += row.TriggerCount
			summary.Delivered += row.DeliveredCount
			summary.Failed += row.FailedCount
		}
		if len(batch) < 500 {
			return summary, nil
		}
		offset += 500
	}
}
