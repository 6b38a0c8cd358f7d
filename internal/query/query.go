// Package query defines the stored shape of a signal's query: a filter
// expression for content signals, a volume comparison (optionally scoped by a
// filter) for volume signals.
package query

import (
	"encoding/json"
	"errors"
	"fmt"

	"newswatch/internal/filter"
	"newswatch/internal/metric"
	"newswatch/internal/models"
)

var ErrInvalidQuery = errors.New("invalid signal query")

type SignalQuery struct {
	Filter *filter.Expr       `json:"filter,omitempty"`
	Volume *metric.Comparison `json:"volume,omitempty"`
}

func Parse(raw []byte) (*SignalQuery, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var q SignalQuery
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return &q, nil
}

// Validate enforces the signal-type invariant: articles signals carry a
// filter, volume signals carry a comparison. Both nested structures are
// validated in full so malformed queries never reach the engine.
func Validate(q *SignalQuery, signalType string) error {
	switch signalType {
	case models.SignalTypeArticles:
		if q == nil || q.Filter == nil {
			return fmt.Errorf("%w: articles signal needs a filter expression", ErrInvalidQuery)
		}
		if q.Volume != nil {
			return fmt.Errorf("%w: articles signal cannot carry a volume comparison", ErrInvalidQuery)
		}
		return filter.Validate(q.Filter)
	case models.SignalTypeVolume:
		if q == nil || q.Volume == nil {
			return fmt.Errorf("%w: volume signal needs a volume comparison", ErrInvalidQuery)
		}
		if err := q.Volume.Validate(); err != nil {
			return err
		}
		return filter.Validate(q.Filter)
	default:
		return fmt.Errorf("%w: unknown signal type %q", ErrInvalidQuery, signalType)
	}
}
