package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"newswatch/internal/models"
)

// ErrInvalidSchedule marks policies rejected by Validate at save time.
var ErrInvalidSchedule = errors.New("invalid schedule policy")

// Interval is one firing slot: a time of day on a set of weekdays.
type Interval struct {
	Hour   int      `json:"hour"`
	Minute int      `json:"minute"`
	Days   []string `json:"days"`
}

// Policy is an ordered list of intervals. Immediate-policy signals ignore it.
type Policy struct {
	Intervals []Interval `json:"intervals"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Parse decodes a stored policy. Empty payloads decode to nil.
func Parse(raw []byte) (*Policy, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var p Policy
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return &p, nil
}

// Validate checks a policy against its signal's notification policy. A
// scheduled signal needs at least one well-formed interval; an immediate
// signal may omit the policy entirely.
func Validate(p *Policy, notificationPolicy string) error {
	if notificationPolicy == models.NotificationPolicyImmediate {
		return nil
	}
	if p == nil || len(p.Intervals) == 0 {
		return fmt.Errorf("%w: scheduled signal needs at least one interval", ErrInvalidSchedule)
	}
	for i, iv := range p.Intervals {
		if iv.Hour < 0 || iv.Hour > 23 {
			return fmt.Errorf("%w: interval %d hour %d out of range", ErrInvalidSchedule, i, iv.Hour)
		}
		if iv.Minute < 0 || iv.Minute > 59 {
			return fmt.Errorf("%w: interval %d minute %d out of range", ErrInvalidSchedule, i, iv.Minute)
		}
		if len(iv.Days) == 0 {
			return fmt.Errorf("%w: interval %d has no days", ErrInvalidSchedule, i)
		}
		for _, d := range iv.Days {
			if _, ok := weekdays[strings.ToLower(strings.TrimSpace(d))]; !ok {
				return fmt.Errorf("%w: interval %d unknown day %q", ErrInvalidSchedule, i, d)
			}
		}
	}
	return nil
}

// IsDue reports whether a signal should evaluate now. Immediate policies are
// always due; callers only invoke them on content-change events. Scheduled
// policies are due when now's weekday, hour, and minute hit an interval, at
// most once per matching minute: when lastFired falls in the same truncated
// minute the poll is a repeat and is not due.
func IsDue(p *Policy, notificationPolicy string, now time.Time, lastFired *time.Time) bool {
	if notificationPolicy == models.NotificationPolicyImmediate {
		return true
	}
	if p == nil {
		return false
	}
	minute := now.Truncate(time.Minute)
	if lastFired != nil && lastFired.Truncate(time.Minute).Equal(minute) {
		return false
	}
	for _, iv := range p.Intervals {
		if iv.Hour != minute.Hour() || iv.Minute != minute.Minute() {
			continue
		}
		for _, d := range iv.Days {
			if wd, ok := weekdays[strings.ToLower(strings.TrimSpace(d))]; ok && wd == minute.Weekday() {
				return true
			}
		}
	}
	return false
}
