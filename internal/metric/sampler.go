package metric

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"go.uber.org/zap"

	"newswatch/internal/cache"
	"newswatch/internal/filter"
)

// CountSource supplies article counts scoped to a filter expression. Daily
// counts are bucketed per 24h window ending at end, oldest first.
type CountSource interface {
	CountInWindow(ctx context.Context, expr *filter.Expr, from, to time.Time) (float64, error)
	DailyCounts(ctx context.Context, expr *filter.Expr, days int, end time.Time) ([]float64, error)
}

// Sampler resolves volume-comparison operands to scalars at one anchor time.
// Read-only; an optional cache short-circuits repeat count queries when many
// signals share a window within the same evaluation tick.
type Sampler struct {
	Source   CountSource
	Cache    cache.Store
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// Sample resolves one operand against expr at anchor. Percentage kinds return
// ErrUndefinedMetric when the baseline is zero and the current volume is not.
func (s *Sampler) Sample(ctx context.Context, op Operand, expr *filter.Expr, anchor time.Time) (float64, error) {
	if s == nil || s.Source == nil {
		return 0, fmt.Errorf("sampler not configured")
	}
	switch strings.ToLower(strings.TrimSpace(op.Kind)) {
	case KindThreshold:
		if op.Threshold == nil {
			return 0, fmt.Errorf("%w: threshold operand without value", ErrInvalidComparison)
		}
		f, _ := op.Threshold.Float64()
		return f, nil
	case KindVolume:
		period := op.PeriodDays
		if period <= 0 {
			period = 1
		}
		return s.countWindow(ctx, expr, anchor.Add(-time.Duration(period)*24*time.Hour), anchor)
	case KindMAVal:
		daily, err := s.dailyCounts(ctx, expr, op.TrailingDays, anchor)
		if err != nil {
			return 0, err
		}
		return mean(daily), nil
	case KindEMAVal:
		daily, err := s.dailyCounts(ctx, expr, op.TrailingDays, anchor)
		if err != nil {
			return 0, err
		}
		return ema(daily, op.TrailingDays), nil
	case KindMAPct:
		return s.pct(ctx, op, expr, anchor, mean)
	case KindEMAPct:
		return s.pct(ctx, op, expr, anchor, func(v []float64) float64 { return ema(v, op.TrailingDays) })
	default:
		return 0, fmt.Errorf("%w: unknown operand kind %q", ErrInvalidComparison, op.Kind)
	}
}

// pct computes the deviation of the current day's volume from a baseline over
// the trailing window that precedes it.
func (s *Sampler) pct(ctx context.Context, op Operand, expr *filter.Expr, anchor time.Time, baselineOf func([]float64) float64) (float64, error) {
	daily, err := s.dailyCounts(ctx, expr, op.TrailingDays+1, anchor)
	if err != nil {
		return 0, err
	}
	if len(daily) == 0 {
		return 0, nil
	}
	current := daily[len(daily)-1]
	baseline := baselineOf(daily[:len(daily)-1])
	if baseline == 0 {
		if current == 0 {
			return 0, nil
		}
		return 0, ErrUndefinedMetric
	}
	return (current - baseline) / baseline * 100, nil
}

func (s *Sampler) countWindow(ctx context.Context, expr *filter.Expr, from, to time.Time) (float64, error) {
	key := s.cacheKey("window", expr, to, int(to.Sub(from)/time.Hour))
	if v, ok := s.cachedFloat(ctx, key); ok {
		return v, nil
	}
	v, err := s.Source.CountInWindow(ctx, expr, from, to)
	if err != nil {
		return 0, err
	}
	s.storeFloat(ctx, key, v)
	return v, nil
}

func (s *Sampler) dailyCounts(ctx context.Context, expr *filter.Expr, days int, end time.Time) ([]float64, error) {
	if days < 1 {
		days = 1
	}
	key := s.cacheKey("daily", expr, end, days)
	if s.Cache != nil {
		if raw, found, err := s.Cache.Get(ctx, key); err == nil && found {
			var out []float64
			if json.Unmarshal(raw, &out) == nil && len(out) == days {
				return out, nil
			}
		}
	}
	out, err := s.Source.DailyCounts(ctx, expr, days, end)
	if err != nil {
		return nil, err
	}
	if len(out) != days {
		return nil, fmt.Errorf("count source returned %d daily buckets, want %d", len(out), days)
	}
	if s.Cache != nil {
		if raw, err := json.Marshal(out); err == nil {
			if err := s.Cache.Set(ctx, key, raw, s.cacheTTL()); err != nil && s.Logger != nil {
				s.Logger.Warn("sample cache set failed", zap.Error(err))
			}
		}
	}
	return out, nil
}

func (s *Sampler) cachedFloat(ctx context.Context, key string) (float64, bool) {
	if s.Cache == nil {
		return 0, false
	}
	raw, found, err := s.Cache.Get(ctx, key)
	if err != nil || !found {
		return 0, false
	}
	var v float64
	if json.Unmarshal(raw, &v) != nil {
		return 0, false
	}
	return v, true
}

func (s *Sampler) storeFloat(ctx context.Context, key string, v float64) {
	if s.Cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.Cache.Set(ctx, key, raw, s.cacheTTL()); err != nil && s.Logger != nil {
		s.Logger.Warn("sample cache set failed", zap.Error(err))
	}
}

func (s *Sampler) cacheTTL() time.Duration {
	if s.CacheTTL > 0 {
		return s.CacheTTL
	}
	return 90 * time.Second
}

func (s *Sampler) cacheKey(kind string, expr *filter.Expr, anchor time.Time, span int) string {
	h := fnv.New64a()
	if expr != nil {
		if raw, err := json.Marshal(expr); err == nil {
			_, _ = h.Write(raw)
		}
	}
	return fmt.Sprintf("sample:%s:%x:%d:%d", kind, h.Sum64(), span, anchor.Unix())
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// ema folds the samples with smoothing 2/(trailingDays+1), seeded with the
// first sample.
func ema(v []float64, trailingDays int) float64 {
	if len(v) == 0 {
		return 0
	}
	if trailingDays < 1 {
		trailingDays = len(v)
	}
	alpha := 2 / (float64(trailingDays) + 1)
	out := v[0]
	for _, x := range v[1:] {
		out = alpha*x + (1-alpha)*out
	}
	return out
}
