package amm

import (
	"math"
	"testing"
)

func TestQuoteOut_ExactFormula(t *testing.T) {
	// 1000 * 1_000_000 / (1_000_000 + 1000) = 999.000999...
	got := QuoteOut(1000, 1_000_000, 1_000_000)
	want := 1000.0 * 1_000_000 / 1_001_000
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("QuoteOut = %.9f, want %.9f", got, want)
	}
	if math.Abs(got-999.000999) > 1e-6 {
		t.Fatalf("QuoteOut = %.9f, want ≈ 999.000999", got)
	}
}

func TestQuoteOut_NoOpInputs(t *testing.T) {
	cases := []struct {
		name              string
		in, resIn, resOut float64
	}{
		{"zero input", 0, 1000, 1000},
		{"negative input", -5, 1000, 1000},
		{"empty in-side", 10, 0, 1000},
		{"empty out-side", 10, 1000, 0},
	}
	for _, tc := range cases {
		if got := QuoteOut(tc.in, tc.resIn, tc.resOut); got != 0 {
			t.Errorf("%s: QuoteOut = %v, want 0", tc.name, got)
		}
	}
}

func TestQuoteOut_MonotonicAndBounded(t *testing.T) {
	const resIn, resOut = 50_000.0, 80_000.0
	prev := 0.0
	for in := 1.0; in < 1e7; in *= 3 {
		out := QuoteOut(in, resIn, resOut)
		if out <= prev {
			t.Fatalf("not monotonic: QuoteOut(%v) = %v <= %v", in, out, prev)
		}
		if out >= resOut {
			t.Fatalf("output %v not bounded by reserveOut %v", out, resOut)
		}
		prev = out
	}
}

func TestApplySwap_PreservesK(t *testing.T) {
	pool := NewPool(1_000_000, 2_500_000)
	k := pool.ReserveToken * pool.ReserveBase

	inputs := []struct {
		amount      float64
		tokenToBase bool
	}{
		{1234.5, true},
		{98765.4, false},
		{1, true},
		{500_000, false},
		{0.001, true},
	}
	for _, in := range inputs {
		out := pool.ApplySwap(in.amount, in.tokenToBase)
		if out <= 0 {
			t.Fatalf("swap %v returned %v", in, out)
		}
		got := pool.ReserveToken * pool.ReserveBase
		if math.Abs(got-k)/k > 1e-12 {
			t.Fatalf("k drifted structurally after swap %v: %v -> %v", in, k, got)
		}
		k = got
	}
}

func TestApplySwap_NoOpLeavesReserves(t *testing.T) {
	pool := NewPool(1000, 1000)
	if out := pool.ApplySwap(0, true); out != 0 {
		t.Fatalf("zero swap returned %v", out)
	}
	if pool.ReserveToken != 1000 || pool.ReserveBase != 1000 {
		t.Fatalf("reserves changed on no-op swap: %+v", pool)
	}
}

func TestPrice(t *testing.T) {
	pool := NewPool(2_000_000, 1_000_000)
	if got := pool.Price(); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("price = %v, want 0.5", got)
	}
	drained := NewPool(0, 1000)
	if got := drained.Price(); got != 0 {
		t.Fatalf("drained pool price = %v, want 0", got)
	}
}

func TestClone_Independent(t *testing.T) {
	pool := NewPool(100, 200)
	cp := pool.Clone()
	cp.ApplySwap(10, true)
	if pool.ReserveToken != 100 || pool.ReserveBase != 200 {
		t.Fatalf("clone mutation leaked into original: %+v", pool)
	}
}
