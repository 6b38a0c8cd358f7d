package metric

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"newswatch/internal/filter"
)

// epsilon bounds eq comparisons on floating samples.
const epsilon = 1e-9

// Compare applies op to left and right after scaling each side by its own
// multiplier (unset means 1).
func Compare(left, right float64, op string, leftMultiplier, rightMultiplier float64) (bool, error) {
	l := left * leftMultiplier
	r := right * rightMultiplier
	switch strings.ToLower(strings.TrimSpace(op)) {
	case OpGT:
		return l > r, nil
	case OpGTE:
		return l >= r, nil
	case OpLT:
		return l < r, nil
	case OpLTE:
		return l <= r, nil
	case OpEQ:
		return math.Abs(l-r) <= epsilon, nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidComparison, op)
	}
}

// Evaluate samples both operands at one anchor and compares them. An
// undefined percentage on either side fails closed: the comparison is false
// and no error is returned, so callers treat it as not-triggered rather than
// a transient failure.
func (s *Sampler) Evaluate(ctx context.Context, cmp Comparison, expr *filter.Expr, anchor time.Time) (bool, error) {
	left, err := s.Sample(ctx, cmp.Left, expr, anchor)
	if err != nil {
		if errors.Is(err, ErrUndefinedMetric) {
			s.warnUndefined(cmp.Left, anchor)
			return false, nil
		}
		return false, err
	}
	right, err := s.Sample(ctx, cmp.Right, expr, anchor)
	if err != nil {
		if errors.Is(err, ErrUndefinedMetric) {
			s.warnUndefined(cmp.Right, anchor)
			return false, nil
		}
		return false, err
	}
	return Compare(left, right, cmp.Operator, cmp.Left.multiplier(), cmp.Right.multiplier())
}

func (s *Sampler) warnUndefined(op Operand, anchor time.Time) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Warn("volume comparison undefined, not triggering",
		zap.String("kind", op.Kind),
		zap.Int("trailing_days", op.TrailingDays),
		zap.Time("anchor", anchor))
}
