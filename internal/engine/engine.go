// Package engine evaluates active signals and issues notifications. Scheduled
// signals are checked every tick against their interval policy; immediate
// signals are checked when the article hub reports new content.
package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"newswatch/internal/content"
	"newswatch/internal/dispatch"
	"newswatch/internal/metric"
	"newswatch/internal/metrics"
	"newswatch/internal/models"
	"newswatch/internal/query"
	"newswatch/internal/repository"
	"newswatch/internal/schedule"
	"newswatch/internal/selection"
	"newswatch/internal/service"
)

type Engine struct {
	Repo       repository.Repository
	Source     content.Source
	Sampler    *metric.Sampler
	Selector   *selection.Resolver
	Dispatcher *dispatch.Dispatcher
	Hub        *content.Hub
	Flags      *service.SystemSettingsService
	Logger     *zap.Logger

	TickInterval time.Duration
	Workers      int
	// ImmediateDebounce throttles per-signal immediate evaluation. Zero
	// disables the debounce.
	ImmediateDebounce time.Duration

	// Now is a clock hook for tests.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) tickInterval() time.Duration {
	if e != nil && e.TickInterval > 0 {
		return e.TickInterval
	}
	return time.Minute
}

func (e *Engine) workers() int {
	if e != nil && e.Workers > 0 {
		return e.Workers
	}
	return 8
}

func (e *Engine) selector() *selection.Resolver {
	if e != nil && e.Selector != nil {
		return e.Selector
	}
	return &selection.Resolver{}
}

// Run drives the engine until ctx is cancelled: periodic ticks for scheduled
// signals and hub events for immediate ones.
func (e *Engine) Run(ctx context.Context) error {
	if e == nil {
		return nil
	}
	ticker := time.NewTicker(e.tickInterval())
	defer ticker.Stop()

	var events <-chan content.Event
	if e.Hub != nil {
		events = e.Hub.Subscribe(content.EventArticlesChanged, 16)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil && e.Logger != nil {
				e.Logger.Warn("tick failed", zap.Error(err))
			}
		case <-events:
			e.EvaluateImmediate(ctx)
		}
	}
}

// Tick evaluates every active scheduled signal that is due at this instant.
func (e *Engine) Tick(ctx context.Context) error {
	if e == nil || e.Repo == nil {
		return nil
	}
	if e.Flags != nil && !e.Flags.IsEnabled(ctx, service.SwitchEngine, true) {
		return nil
	}
	started := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(started).Seconds()) }()

	now := e.now()
	signals, err := e.listActive(ctx, models.NotificationPolicyScheduled)
	if err != nil {
		return err
	}
	e.runPool(ctx, signals, func(ctx context.Context, sig models.Signal) {
		e.evaluateScheduled(ctx, sig, now)
	})
	return nil
}

// EvaluateImmediate evaluates every active immediate signal, subject to the
// per-signal debounce.
func (e *Engine) EvaluateImmediate(ctx context.Context) {
	if e == nil || e.Repo == nil {
		return
	}
	if e.Flags != nil && !e.Flags.IsEnabled(ctx, service.SwitchImmediate, true) {
		return
	}
	now := e.now()
	signals, err := e.listActive(ctx, models.NotificationPolicyImmediate)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn("list immediate signals failed", zap.Error(err))
		}
		return
	}
	e.runPool(ctx, signals, func(ctx context.Context, sig models.Signal) {
		e.evaluateImmediate(ctx, sig, now)
	})
}

func (e *Engine) listActive(ctx context.Context, policy string) ([]models.Signal, error) {
	status := models.SignalStatusActive
	out := []models.Signal{}
	offset := 0
	for {
		batch, err := e.Repo.ListSignals(ctx, repository.ListSignalsParams{
			Limit:              500,
			Offset:             offset,
			Status:             &status,
			NotificationPolicy: &policy,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < 500 {
			return out, nil
		}
		offset += 500
	}
}

func (e *Engine) runPool(ctx context.Context, signals []models.Signal, fn func(context.Context, models.Signal)) {
	if len(signals) == 0 {
		return
	}
	jobs := make(chan models.Signal)
	var wg sync.WaitGroup
	for i := 0; i < e.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sig := range jobs {
				fn(ctx, sig)
			}
		}()
	}
feed:
	for _, sig := range signals {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- sig:
		}
	}
	close(jobs)
	wg.Wait()
}

func (e *Engine) evaluateScheduled(ctx context.Context, sig models.Signal, now time.Time) {
	if sig.Status != models.SignalStatusActive {
		metrics.EvaluationsTotal.WithLabelValues("skipped").Inc()
		return
	}
	pol, err := schedule.Parse(sig.Schedule)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		if e.Logger != nil {
			e.Logger.Error("signal has a broken schedule", zap.String("signal", sig.Name), zap.Error(err))
		}
		return
	}
	if !schedule.IsDue(pol, sig.NotificationPolicy, now, sig.LastScheduledAt) {
		return
	}
	minute := now.Truncate(time.Minute)
	e.finishEvaluation(ctx, sig, now, repository.SignalMarks{LastScheduledAt: &minute})
}

func (e *Engine) evaluateImmediate(ctx context.Context, sig models.Signal, now time.Time) {
	if sig.Status != models.SignalStatusActive {
		metrics.EvaluationsTotal.WithLabelValues("skipped").Inc()
		return
	}
	if d := e.ImmediateDebounce; d > 0 && sig.LastImmediateAt != nil && now.Sub(*sig.LastImmediateAt) < d {
		return
	}
	at := now
	e.finishEvaluation(ctx, sig, now, repository.SignalMarks{LastImmediateAt: &at})
}

// finishEvaluation runs the signal's condition and writes the outcome. The
// content watermark advances on every successful evaluation, triggered or
// not, and stays put on failure so the next run retries the same window.
func (e *Engine) finishEvaluation(ctx context.Context, sig models.Signal, now time.Time, extra repository.SignalMarks) {
	triggered, matched, err := e.evaluate(ctx, &sig, now)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		if e.Logger != nil {
			e.Logger.Warn("evaluation failed", zap.String("signal", sig.Name), zap.Error(err))
		}
		return
	}
	watermark := now
	marks := extra
	marks.LastEvaluatedAt = &watermark
	if !triggered {
		metrics.EvaluationsTotal.WithLabelValues("not_triggered").Inc()
		if err := e.Repo.UpdateSignalMarks(ctx, sig.ID, marks); err != nil && e.Logger != nil {
			e.Logger.Warn("mark update failed", zap.String("signal", sig.Name), zap.Error(err))
		}
		return
	}
	marks.LastTriggeredAt = &watermark
	if err := e.issueNotification(ctx, &sig, now, matched, marks); err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		if e.Logger != nil {
			e.Logger.Warn("notification issue failed", zap.String("signal", sig.Name), zap.Error(err))
		}
		return
	}
	metrics.EvaluationsTotal.WithLabelValues("triggered").Inc()
}

func (e *Engine) evaluate(ctx context.Context, sig *models.Signal, now time.Time) (bool, []models.Article, error) {
	q, err := query.Parse(sig.Query)
	if err != nil {
		return false, nil, err
	}
	// Queries are validated at save time; revalidating here keeps a signal
	// written around the API from panicking a worker.
	if err := query.Validate(q, sig.SignalType); err != nil {
		return false, nil, err
	}
	if sig.SignalType == models.SignalTypeVolume {
		ok, err := e.Sampler.Evaluate(ctx, *q.Volume, q.Filter, now)
		if err != nil || !ok {
			return false, nil, err
		}
	}
	// No limit here: the selection resolver cuts the matched set to its own
	// cap, and relevance ordering needs the whole window, not the newest N.
	matched, warnings, err := e.Source.FindMatching(ctx, q.Filter, sig.LastEvaluatedAt, 0)
	metrics.FilterWarnings.Add(float64(warnings))
	if err != nil {
		return false, nil, err
	}
	if sig.SignalType == models.SignalTypeVolume {
		// The comparison already fired; matched articles only enrich the
		// notification content.
		return true, matched, nil
	}
	return len(matched) > 0, matched, nil
}

func (e *Engine) issueNotification(ctx context.Context, sig *models.Signal, now time.Time, matched []models.Article, marks repository.SignalMarks) error {
	rows, err := e.contactPointRows(ctx, sig)
	if err != nil {
		return err
	}
	sel := e.selector().Select(ctx, sig.SelectionPolicy, matched)
	ids := make([]uint64, 0, len(sel.Items))
	for _, a := range sel.Items {
		ids = append(ids, a.ID)
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	claim := now.UTC().Truncate(time.Microsecond)
	item := &models.SignalNotification{
		UUID:               uuid.NewString(),
		SignalID:           sig.ID,
		SignalUUID:         sig.UUID,
		SignalName:         sig.Name,
		SignalStatus:       sig.Status,
		IssuedAt:           now,
		ArticleIDs:         idsJSON,
		Digest:             sel.Digest,
		DigestStatus:       sel.DigestStatus,
		CurrentProcessedAt: &claim,
		ContactPoints:      rows,
	}
	err = e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := e.Repo.InsertNotificationTx(ctx, tx, item); err != nil {
			return err
		}
		return e.Repo.UpdateSignalMarksTx(ctx, tx, sig.ID, marks)
	})
	if err != nil {
		return err
	}
	metrics.TriggersTotal.WithLabelValues(sig.NotificationPolicy).Inc()
	if err := e.Repo.IncrementTriggerStat(ctx, sig.UUID, now, 1, 0, 0); err != nil && e.Logger != nil {
		e.Logger.Warn("trigger stat update failed", zap.String("signal", sig.UUID), zap.Error(err))
	}
	if e.Logger != nil {
		e.Logger.Info("signal triggered",
			zap.String("signal", sig.Name),
			zap.String("notification", item.UUID),
			zap.Int("articles", len(ids)),
		)
	}
	if e.Dispatcher != nil && (e.Flags == nil || e.Flags.IsEnabled(ctx, service.SwitchDispatch, true)) {
		if err := e.Dispatcher.Dispatch(ctx, item); err != nil && e.Logger != nil {
			// The record is persisted and leased; the resume sweep picks
			// it up once the lease goes stale.
			e.Logger.Warn("dispatch failed", zap.String("notification", item.UUID), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) contactPointRows(ctx context.Context, sig *models.Signal) ([]models.ContactPointNotification, error) {
	if len(sig.ContactPointIDs) == 0 {
		return nil, nil
	}
	var uuids []string
	if err := json.Unmarshal(sig.ContactPointIDs, &uuids); err != nil {
		return nil, err
	}
	if len(uuids) == 0 {
		return nil, nil
	}
	points, err := e.Repo.ListContactPointsByUUIDs(ctx, uuids)
	if err != nil {
		return nil, err
	}
	if len(points) < len(uuids) && e.Logger != nil {
		e.Logger.Warn("signal references missing contact points",
			zap.String("signal", sig.Name),
			zap.Int("configured", len(uuids)),
			zap.Int("found", len(points)),
		)
	}
	rows := make([]models.ContactPointNotification, 0, len(points))
	for _, p := range points {
		rows = append(rows, models.ContactPointNotification{
			ContactPointUUID: p.UUID,
			ContactPointName: p.Name,
			ContactPointType: p.Type,
			Status:           models.DeliveryStatusPending,
		})
	}
	return rows, nil
}

