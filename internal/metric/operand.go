package metric

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Operand kinds. Each kind resolves to one scalar through Sampler.Sample.
const (
	KindThreshold = "threshold"
	KindVolume    = "volume"
	KindMAVal     = "ma_val"
	KindEMAVal    = "ema_val"
	KindMAPct     = "ma_pct"
	KindEMAPct    = "ema_pct"
)

// Comparison operators.
const (
	OpGT  = "gt"
	OpGTE = "gte"
	OpLT  = "lt"
	OpLTE = "lte"
	OpEQ  = "eq"
)

// ErrUndefinedMetric marks a percentage deviation from a zero baseline with a
// non-zero current volume. Comparisons fail closed on it instead of treating
// it as infinity.
var ErrUndefinedMetric = errors.New("metric undefined for zero baseline")

// ErrInvalidComparison marks comparisons rejected by Validate at save time.
var ErrInvalidComparison = errors.New("invalid volume comparison")

// Operand describes one side of a volume comparison. Threshold operands carry
// a constant; volume operands a window length in days; average operands a
// trailing window. Multiplier scales the sampled value and defaults to 1.
type Operand struct {
	Kind         string           `json:"kind"`
	Threshold    *decimal.Decimal `json:"threshold,omitempty"`
	PeriodDays   int              `json:"period_days,omitempty"`
	TrailingDays int              `json:"trailing_days,omitempty"`
	Multiplier   *decimal.Decimal `json:"multiplier,omitempty"`
}

func (o Operand) multiplier() float64 {
	if o.Multiplier == nil {
		return 1
	}
	f, _ := o.Multiplier.Float64()
	return f
}

// Comparison joins two operands with a relational operator. Both sides are
// sampled at the same anchor time.
type Comparison struct {
	Left     Operand `json:"left"`
	Right    Operand `json:"right"`
	Operator string  `json:"operator"`
}

// Validate rejects comparisons the sampler cannot evaluate.
func (c *Comparison) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: missing comparison", ErrInvalidComparison)
	}
	switch strings.ToLower(strings.TrimSpace(c.Operator)) {
	case OpGT, OpGTE, OpLT, OpLTE, OpEQ:
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidComparison, c.Operator)
	}
	if err := c.Left.validate(); err != nil {
		return err
	}
	return c.Right.validate()
}

func (o Operand) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.Kind)) {
	case KindThreshold:
		if o.Threshold == nil {
			return fmt.Errorf("%w: threshold operand without threshold value", ErrInvalidComparison)
		}
	case KindVolume:
		if o.PeriodDays < 0 {
			return fmt.Errorf("%w: negative period_days", ErrInvalidComparison)
		}
	case KindMAVal, KindEMAVal, KindMAPct, KindEMAPct:
		if o.TrailingDays < 1 {
			return fmt.Errorf("%w: %s operand needs trailing_days >= 1", ErrInvalidComparison, o.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown operand kind %q", ErrInvalidComparison, o.Kind)
	}
	if o.Multiplier != nil && o.Multiplier.IsNegative() {
		return fmt.Errorf("%w: negative multiplier", ErrInvalidComparison)
	}
	return nil
}
