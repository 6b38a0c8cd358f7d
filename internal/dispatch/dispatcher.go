package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"newswatch/internal/content"
	"newswatch/internal/metrics"
	"newswatch/internal/models"
	"newswatch/internal/repository"
)

type outcome int

const (
	outcomeRetryable outcome = iota
	outcomeDelivered
	outcomePermanent
)

// Dispatcher drives delivery of one notification to all of its contact
// points. Every notification is owned through a lease on
// current_processed_at; losing the compare-and-set means another worker
// already holds it.
type Dispatcher struct {
	Repo       repository.Repository
	Transports Registry
	Logger     *zap.Logger
	Hub        *content.Hub

	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Timeout     time.Duration
	LeaseTTL    time.Duration
	ResumeBatch int

	// Reveal decrypts one settings value. Plain values pass through
	// unchanged.
	Reveal func(string) (string, error)

	// Now is a clock hook for tests.
	Now func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// leaseTime returns a claim timestamp at the precision timestamptz keeps,
// so the release compare-and-set sees the same value it wrote.
func (d *Dispatcher) leaseTime() time.Time {
	return d.now().UTC().Truncate(time.Microsecond)
}

func (d *Dispatcher) maxAttempts() int {
	if d != nil && d.MaxAttempts > 0 {
		return d.MaxAttempts
	}
	return 4
}

func (d *Dispatcher) baseBackoff() time.Duration {
	if d != nil && d.BaseBackoff > 0 {
		return d.BaseBackoff
	}
	return 2 * time.Second
}

func (d *Dispatcher) maxBackoff() time.Duration {
	if d != nil && d.MaxBackoff > 0 {
		return d.MaxBackoff
	}
	return 30 * time.Second
}

func (d *Dispatcher) sendTimeout() time.Duration {
	if d != nil && d.Timeout > 0 {
		return d.Timeout
	}
	return 60 * time.Second
}

func (d *Dispatcher) leaseTTL() time.Duration {
	if d != nil && d.LeaseTTL > 0 {
		return d.LeaseTTL
	}
	return 2 * time.Minute
}

func (d *Dispatcher) resumeBatch() int {
	if d != nil && d.ResumeBatch > 0 {
		return d.ResumeBatch
	}
	return 50
}

// Dispatch delivers a freshly issued notification. The record normally
// arrives holding the lease taken when it was inserted; an unclaimed record
// is claimed first.
func (d *Dispatcher) Dispatch(ctx context.Context, item *models.SignalNotification) error {
	if d == nil || d.Repo == nil || item == nil {
		return nil
	}
	owner := item.CurrentProcessedAt
	if owner == nil {
		claim := d.leaseTime()
		won, err := d.Repo.ClaimNotificationLease(ctx, item.ID, nil, claim)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		owner = &claim
	}
	return d.process(ctx, item, *owner)
}

// Resume picks up notifications whose lease went stale, claims them with a
// compare-and-set on the observed lease time, and re-runs delivery for the
// contact points that are not DELIVERED yet.
func (d *Dispatcher) Resume(ctx context.Context) (int, error) {
	if d == nil || d.Repo == nil {
		return 0, nil
	}
	staleBefore := d.now().UTC().Add(-d.leaseTTL())
	items, err := d.Repo.ListResumableNotifications(ctx, staleBefore, d.resumeBatch())
	if err != nil {
		return 0, err
	}
	resumed := 0
	for i := range items {
		item := items[i]
		claim := d.leaseTime()
		won, err := d.Repo.ClaimNotificationLease(ctx, item.ID, item.CurrentProcessedAt, claim)
		if err != nil {
			if d.Logger != nil {
				d.Logger.Warn("resume claim failed", zap.String("notification", item.UUID), zap.Error(err))
			}
			continue
		}
		if !won {
			continue
		}
		if err := d.process(ctx, &item, claim); err != nil && d.Logger != nil {
			d.Logger.Warn("resume dispatch failed", zap.String("notification", item.UUID), zap.Error(err))
		}
		resumed++
	}
	return resumed, nil
}

func (d *Dispatcher) process(ctx context.Context, item *models.SignalNotification, owner time.Time) error {
	rows := item.ContactPoints
	points, err := d.loadPoints(ctx, rows)
	if err != nil {
		// Lease stays held and goes stale, so the sweep retries later.
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout())
	defer cancel()

	payload := payloadFor(item)
	outcomes := make([]outcome, len(rows))
	var wg sync.WaitGroup
	for i := range rows {
		if rows[i].Status == models.DeliveryStatusDelivered {
			outcomes[i] = outcomeDelivered
			continue
		}
		if rows[i].Attempts >= d.maxAttempts() {
			outcomes[i] = outcomePermanent
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = d.sendOne(ctx, sendCtx, rows[i], points[rows[i].ContactPointUUID], payload)
		}(i)
	}
	wg.Wait()

	// Settlement counts reflect final row states, including rows settled in
	// earlier runs, because stats are written once per notification.
	delivered := 0
	failed := 0
	retryable := false
	for _, o := range outcomes {
		switch o {
		case outcomeDelivered:
			delivered++
		case outcomePermanent:
			failed++
		case outcomeRetryable:
			retryable = true
		}
	}

	if retryable {
		if d.Logger != nil {
			d.Logger.Warn("dispatch incomplete, lease left for resume",
				zap.String("notification", item.UUID),
				zap.Int("delivered", delivered),
			)
		}
		return nil
	}

	processedAt := d.leaseTime()
	released, err := d.Repo.ReleaseNotificationLease(ctx, item.ID, owner, processedAt)
	if err != nil {
		return err
	}
	if !released {
		// Lost the lease while sending; the current owner settles.
		return nil
	}
	if err := d.Repo.IncrementTriggerStat(ctx, item.SignalUUID, processedAt, 0, delivered, failed); err != nil && d.Logger != nil {
		d.Logger.Warn("trigger stat update failed", zap.String("signal", item.SignalUUID), zap.Error(err))
	}
	if d.Hub != nil {
		d.Hub.Publish(content.Event{
			Type:             content.EventNotificationSettled,
			At:               processedAt,
			NotificationUUID: item.UUID,
			SignalUUID:       item.SignalUUID,
			SignalName:       item.SignalName,
			Delivered:        delivered,
			Failed:           failed,
		})
	}
	if d.Logger != nil {
		d.Logger.Info("notification settled",
			zap.String("notification", item.UUID),
			zap.String("signal", item.SignalName),
			zap.Int("delivered", delivered),
			zap.Int("failed", failed),
		)
	}
	return nil
}

func (d *Dispatcher) loadPoints(ctx context.Context, rows []models.ContactPointNotification) (map[string]*models.ContactPoint, error) {
	uuids := make([]string, 0, len(rows))
	for _, row := range rows {
		uuids = append(uuids, row.ContactPointUUID)
	}
	byUUID := make(map[string]*models.ContactPoint, len(uuids))
	if len(uuids) == 0 {
		return byUUID, nil
	}
	points, err := d.Repo.ListContactPointsByUUIDs(ctx, uuids)
	if err != nil {
		return nil, err
	}
	for i := range points {
		p := points[i]
		p.Settings = d.revealSettings(p.Settings)
		byUUID[p.UUID] = &p
	}
	return byUUID, nil
}

func (d *Dispatcher) sendOne(ctx, sendCtx context.Context, row models.ContactPointNotification, point *models.ContactPoint, payload Payload) outcome {
	budget := d.maxAttempts()
	if point == nil {
		d.markRow(ctx, row.ID, models.DeliveryStatusFailed, budget, "contact point missing", nil)
		return outcomePermanent
	}
	if !point.Enabled {
		d.markRow(ctx, row.ID, models.DeliveryStatusFailed, budget, "contact point disabled", nil)
		return outcomePermanent
	}
	transport, ok := d.Transports.For(point.Type)
	if !ok {
		d.markRow(ctx, row.ID, models.DeliveryStatusFailed, budget, "unsupported contact point type "+point.Type, nil)
		return outcomePermanent
	}
	for attempt := row.Attempts + 1; attempt <= budget; attempt++ {
		err := transport.Send(sendCtx, *point, payload)
		if err == nil {
			now := d.leaseTime()
			d.markRow(ctx, row.ID, models.DeliveryStatusDelivered, attempt, "", &now)
			metrics.DispatchAttempts.WithLabelValues(models.DeliveryStatusDelivered).Inc()
			return outcomeDelivered
		}
		metrics.DispatchAttempts.WithLabelValues(models.DeliveryStatusFailed).Inc()
		if d.Logger != nil {
			d.Logger.Warn("delivery attempt failed",
				zap.String("contact_point", point.Name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		if sendCtx.Err() != nil {
			d.markRow(ctx, row.ID, models.DeliveryStatusFailed, attempt, err.Error(), nil)
			return outcomeRetryable
		}
		if attempt == budget {
			d.markRow(ctx, row.ID, models.DeliveryStatusFailed, attempt, err.Error(), nil)
			return outcomePermanent
		}
		if !sleepCtx(sendCtx, d.backoff(attempt)) {
			d.markRow(ctx, row.ID, models.DeliveryStatusFailed, attempt, err.Error(), nil)
			return outcomeRetryable
		}
	}
	return outcomeRetryable
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	b := d.baseBackoff()
	for i := 1; i < attempt; i++ {
		b *= 2
		if b >= d.maxBackoff() {
			return d.maxBackoff()
		}
	}
	if b > d.maxBackoff() {
		return d.maxBackoff()
	}
	return b
}

func (d *Dispatcher) markRow(ctx context.Context, id uint64, status string, attempts int, lastError string, deliveredAt *time.Time) {
	if err := d.Repo.MarkContactPointDelivery(ctx, id, status, attempts, lastError, deliveredAt); err != nil && d.Logger != nil {
		d.Logger.Warn("mark delivery failed", zap.Uint64("row", id), zap.Error(err))
	}
}

func (d *Dispatcher) revealSettings(raw datatypes.JSON) datatypes.JSON {
	if d.Reveal == nil || len(raw) == 0 {
		return raw
	}
	var settings map[string]string
	if err := json.Unmarshal(raw, &settings); err != nil {
		return raw
	}
	changed := false
	for k, v := range settings {
		plain, err := d.Reveal(v)
		if err != nil {
			if d.Logger != nil {
				d.Logger.Warn("reveal setting failed", zap.String("key", k), zap.Error(err))
			}
			continue
		}
		if plain != v {
			settings[k] = plain
			changed = true
		}
	}
	if !changed {
		return raw
	}
	out, err := json.Marshal(settings)
	if err != nil {
		return raw
	}
	return out
}

func payloadFor(item *models.SignalNotification) Payload {
	count := 0
	if len(item.ArticleIDs) > 0 {
		var ids []uint64
		if err := json.Unmarshal(item.ArticleIDs, &ids); err == nil {
			count = len(ids)
		}
	}
	return Payload{
		NotificationUUID: item.UUID,
		SignalUUID:       item.SignalUUID,
		SignalName:       item.SignalName,
		IssuedAt:         item.IssuedAt,
		Digest:           item.Digest,
		DigestStatus:     item.DigestStatus,
		ArticleCount:     count,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
