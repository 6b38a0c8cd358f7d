package metric

import (
	"context"
	"errors"
	"testing"
)

func TestCompareOperators(t *testing.T) {
	cases := []struct {
		left, right float64
		op          string
		want        bool
	}{
		{150, 120, OpGT, true},
		{120, 120, OpGT, false},
		{120, 120, OpGTE, true},
		{100, 120, OpLT, true},
		{120, 120, OpLTE, true},
		{120.0000000001, 120, OpEQ, true},
		{121, 120, OpEQ, false},
	}
	for _, c := range cases {
		got, err := Compare(c.left, c.right, c.op, 1, 1)
		if err != nil {
			t.Fatalf("%s: %v", c.op, err)
		}
		if got != c.want {
			t.Fatalf("%v %s %v = %v want %v", c.left, c.op, c.right, got, c.want)
		}
	}

	if _, err := Compare(1, 2, "between", 1, 1); !errors.Is(err, ErrInvalidComparison) {
		t.Fatalf("unknown operator should be rejected, got %v", err)
	}
}

func TestCompareAppliesMultiplier(t *testing.T) {
	// 150 > 60 * 2.0
	got, err := Compare(150, 60, OpGT, 1, 2)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !got {
		t.Fatalf("150 > 60*2 should hold")
	}
	// 150 > 60 * 3.0 does not.
	got, err = Compare(150, 60, OpGT, 1, 3)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if got {
		t.Fatalf("150 > 60*3 should not hold")
	}
}

func TestEvaluateVolumeScenario(t *testing.T) {
	// Current day volume 150 against a 7-day MA of 60 with multiplier 2.
	src := &fakeCounts{window: 150, daily: []float64{60, 60, 60, 60, 60, 60, 60}}
	s := &Sampler{Source: src}
	cmp := Comparison{
		Left:     Operand{Kind: KindVolume, PeriodDays: 1},
		Right:    Operand{Kind: KindMAVal, TrailingDays: 7, Multiplier: dec("2.0")},
		Operator: OpGT,
	}

	got, err := s.Evaluate(context.Background(), cmp, nil, anchorTime())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !got {
		t.Fatalf("150 > 60*2 should trigger")
	}
}

func TestEvaluateUndefinedFailsClosed(t *testing.T) {
	src := &fakeCounts{daily: []float64{0, 0, 0, 25}, window: 25}
	s := &Sampler{Source: src}
	cmp := Comparison{
		Left:     Operand{Kind: KindMAPct, TrailingDays: 3},
		Right:    Operand{Kind: KindThreshold, Threshold: dec("10")},
		Operator: OpGT,
	}

	got, err := s.Evaluate(context.Background(), cmp, nil, anchorTime())
	if err != nil {
		t.Fatalf("undefined must not surface as an error: %v", err)
	}
	if got {
		t.Fatalf("undefined metric must never trigger")
	}
}

func TestEvaluatePropagatesTransientErrors(t *testing.T) {
	srcErr := errors.New("count source unavailable")
	s := &Sampler{Source: &fakeCounts{err: srcErr}}
	cmp := Comparison{
		Left:     Operand{Kind: KindVolume},
		Right:    Operand{Kind: KindThreshold, Threshold: dec("10")},
		Operator: OpGT,
	}
	if _, err := s.Evaluate(context.Background(), cmp, nil, anchorTime()); !errors.Is(err, srcErr) {
		t.Fatalf("transient source error should propagate, got %v", err)
	}
}

func TestComparisonValidate(t *testing.T) {
	good := &Comparison{
		Left:     Operand{Kind: KindVolume, PeriodDays: 1},
		Right:    Operand{Kind: KindMAVal, TrailingDays: 7, Multiplier: dec("2.0")},
		Operator: OpGT,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid comparison rejected: %v", err)
	}

	bad := []*Comparison{
		nil,
		{Left: Operand{Kind: KindVolume}, Right: Operand{Kind: KindVolume}, Operator: "near"},
		{Left: Operand{Kind: KindThreshold}, Right: Operand{Kind: KindVolume}, Operator: OpGT},
		{Left: Operand{Kind: KindMAVal}, Right: Operand{Kind: KindVolume}, Operator: OpGT},
		{Left: Operand{Kind: "median", TrailingDays: 3}, Right: Operand{Kind: KindVolume}, Operator: OpGT},
		{Left: Operand{Kind: KindVolume}, Right: Operand{Kind: KindVolume, Multiplier: dec("-1")}, Operator: OpGT},
	}
	for i, c := range bad {
		if err := c.Validate(); !errors.Is(err, ErrInvalidComparison) {
			t.Fatalf("case %d: want ErrInvalidComparison, got %v", i, err)
		}
	}
}
